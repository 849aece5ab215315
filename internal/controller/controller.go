package controller

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/oshokin/smart-alarm/internal/domain/alarm"
	"github.com/oshokin/smart-alarm/internal/hal"
)

const (
	// DefaultTick is the state machine period.
	DefaultTick = 10 * time.Millisecond

	// toggleBoundaryMs is the uptime period of the alternating pulse toggle.
	toggleBoundaryMs = 1000
	msPerSecond      = 1000

	// UptimeWrapMs is where the uptime counter wraps to zero: the largest whole
	// second below 2^32 ms, so whole-second boundaries survive the wrap.
	UptimeWrapMs uint32 = math.MaxUint32 - math.MaxUint32%toggleBoundaryMs
)

var (
	// ErrValueOutOfRange is returned when a setter argument is outside the accepted domain.
	ErrValueOutOfRange = errors.New("value out of range")
	// ErrInvalidMode is returned when SetMode is asked for a mode that needs parameters.
	ErrInvalidMode = errors.New("mode cannot be set directly")
	// ErrInvalidTick is returned for tick intervals that do not divide one second in whole milliseconds.
	ErrInvalidTick = errors.New("invalid tick interval")
	// errAlarmOutputRequired is returned when no alarm output is provided.
	errAlarmOutputRequired = errors.New("alarm output must be provided")
)

// Outputs are the physical lines driven by the controller.
type Outputs struct {
	// Alarm is the speaker or tone gate.
	Alarm hal.Pin
	// Aux is toggled by the alternating pulse. Optional.
	Aux hal.Pin
	// Indicator is the status light. Optional.
	Indicator hal.Indicator
}

// Controller is the alarm mode state machine.
type Controller struct {
	mu sync.Mutex

	outputs Outputs
	tick    time.Duration
	tickMs  uint32
	onError func(error)

	mode         alarm.Mode
	previousMode alarm.Mode
	started      bool

	repeat   RepeatTiming
	pulse    PulseTiming
	altPulse AlternatingPulseTiming

	uptimeMs  uint32
	ticks     uint64
	indicator alarm.Color
	alarmOn   bool
	auxOn     bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithTick sets the tick interval. It is validated by New.
func WithTick(d time.Duration) Option {
	return func(c *Controller) {
		c.tick = d
	}
}

// WithErrorHandler receives output write failures. They never stop the state machine.
func WithErrorHandler(fn func(error)) Option {
	return func(c *Controller) {
		c.onError = fn
	}
}

// New creates a controller in ModeOff.
func New(outputs Outputs, opts ...Option) (*Controller, error) {
	if outputs.Alarm == nil {
		return nil, errAlarmOutputRequired
	}

	if outputs.Aux == nil {
		outputs.Aux = hal.PinFunc(func(bool) error { return nil })
	}

	if outputs.Indicator == nil {
		outputs.Indicator = nopIndicator{}
	}

	c := &Controller{
		outputs:   outputs,
		tick:      DefaultTick,
		onError:   func(error) {},
		mode:      alarm.ModeOff,
		indicator: alarm.ColorOff,
	}

	for _, opt := range opts {
		opt(c)
	}

	if err := validateTick(c.tick); err != nil {
		return nil, err
	}

	c.tickMs = uint32(c.tick / time.Millisecond)

	return c, nil
}

// Tick returns the configured tick interval.
func (c *Controller) Tick() time.Duration {
	return c.tick
}

// Run calls Advance once per tick until ctx is done.
// Ticks missed while the process was descheduled are dropped, not replayed.
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.Advance()
		}
	}
}

// Advance performs exactly one state machine step.
func (c *Controller) Advance() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.uptimeMs = advanceUptime(c.uptimeMs, c.tickMs)
	c.ticks++

	if !c.started {
		c.writeAlarm(false)
		c.writeAux(false)
	}

	if !c.started || c.mode != c.previousMode {
		c.setAux(false)
		c.showIndicator(indicatorFor(c.mode))

		c.previousMode = c.mode
		c.started = true
	}

	switch c.mode {
	case alarm.ModeOff, alarm.ModeSong:
		c.setAlarm(false)
	case alarm.ModeOn:
		c.setAlarm(true)
	case alarm.ModeRepeat:
		c.advanceRepeat()
	case alarm.ModePulse:
		c.advancePulse(&c.pulse)
	case alarm.ModeAlternatingPulse:
		c.advanceAlternatingPulse()
	}
}

// SetMode switches to ModeOff or ModeOn. Setting the active mode again is a no-op.
func (c *Controller) SetMode(mode alarm.Mode) error {
	if mode != alarm.ModeOff && mode != alarm.ModeOn {
		return fmt.Errorf("%s: %w", mode, ErrInvalidMode)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.mode = mode

	return nil
}

// StartRepeat cycles the alarm output on for onMs and off for offMs.
// A positive totalMs ends the cycle with the output de-asserted once it has elapsed.
func (c *Controller) StartRepeat(onMs, offMs, totalMs int) error {
	on, err := milliseconds(onMs)
	if err != nil {
		return fmt.Errorf("on duration: %w", err)
	}

	off, err := milliseconds(offMs)
	if err != nil {
		return fmt.Errorf("off duration: %w", err)
	}

	var total uint32
	if totalMs != 0 {
		if total, err = milliseconds(totalMs); err != nil {
			return fmt.Errorf("total duration: %w", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.repeat = RepeatTiming{
		OnMs:    on,
		OffMs:   off,
		TotalMs: total,
	}
	c.repeat.Phase = alarm.PhaseStart
	c.mode = alarm.ModeRepeat

	return nil
}

// StartPulse asserts the alarm output once for onMs.
func (c *Controller) StartPulse(onMs int) error {
	duration, err := milliseconds(onMs)
	if err != nil {
		return fmt.Errorf("pulse duration: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.pulse = PulseTiming{DurationMs: duration}
	c.pulse.Started = true
	c.mode = alarm.ModePulse

	return nil
}

// StartAlternatingPulse asserts the alarm output for onSeconds and toggles
// the auxiliary output on every whole second of uptime meanwhile.
func (c *Controller) StartAlternatingPulse(onSeconds int) error {
	if onSeconds <= 0 || onSeconds > math.MaxUint32/msPerSecond {
		return fmt.Errorf("pulse duration %d s: %w", onSeconds, ErrValueOutOfRange)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.altPulse = AlternatingPulseTiming{
		PulseTiming: PulseTiming{DurationMs: uint32(onSeconds) * msPerSecond},
	}
	c.altPulse.Started = true
	c.mode = alarm.ModeAlternatingPulse

	return nil
}

// SetIndicator shows color on the status light until the next mode change.
func (c *Controller) SetIndicator(color alarm.Color) error {
	if color >= alarm.PaletteSize {
		return fmt.Errorf("color %d: %w", color, ErrValueOutOfRange)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.showIndicator(color)

	return nil
}

// Indicator returns the color last shown on the status light.
func (c *Controller) Indicator() alarm.Color {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.indicator
}

// Mode returns the active mode.
func (c *Controller) Mode() alarm.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.mode
}

// Snapshot returns a copy of the state machine.
func (c *Controller) Snapshot() alarm.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := alarm.Snapshot{
		Mode:      c.mode,
		Indicator: c.indicator,
		AlarmOn:   c.alarmOn,
		AuxOn:     c.auxOn,
		UptimeMs:  c.uptimeMs,
		Ticks:     c.ticks,
	}

	switch c.mode {
	case alarm.ModeRepeat:
		s.Phase = c.repeat.Phase
		s.ElapsedMs = c.repeat.ElapsedMs
	case alarm.ModePulse:
		s.ElapsedMs = c.pulse.ElapsedMs
	case alarm.ModeAlternatingPulse:
		s.ElapsedMs = c.altPulse.ElapsedMs
	}

	return s
}

func (c *Controller) advanceRepeat() {
	r := &c.repeat

	switch r.Phase {
	case alarm.PhaseStart:
		c.setAlarm(true)

		r.ElapsedMs = 0
		r.TotalElapsedMs = 0
		r.Phase = alarm.PhaseOn

		return
	case alarm.PhaseDone:
		return
	}

	r.ElapsedMs += c.tickMs

	if r.TotalMs > 0 {
		r.TotalElapsedMs += c.tickMs
		if r.TotalElapsedMs > r.TotalMs {
			c.setAlarm(false)

			r.ElapsedMs = 0
			r.Phase = alarm.PhaseDone

			return
		}
	}

	switch {
	case r.Phase == alarm.PhaseOn && r.ElapsedMs > r.OnMs:
		c.setAlarm(false)

		r.ElapsedMs = 0
		r.Phase = alarm.PhaseOff
	case r.Phase == alarm.PhaseOff && r.ElapsedMs > r.OffMs:
		c.setAlarm(true)

		r.ElapsedMs = 0
		r.Phase = alarm.PhaseOn
	}
}

func (c *Controller) advancePulse(p *PulseTiming) {
	if p.Started {
		c.setAlarm(true)

		p.Started = false
		p.Active = true
		p.ElapsedMs = 0

		return
	}

	if !p.Active {
		return
	}

	p.ElapsedMs += c.tickMs
	if p.ElapsedMs > p.DurationMs {
		c.setAlarm(false)

		p.Active = false
	}
}

func (c *Controller) advanceAlternatingPulse() {
	c.advancePulse(&c.altPulse.PulseTiming)

	if !c.altPulse.Active {
		c.setAux(false)

		return
	}

	if c.uptimeMs%toggleBoundaryMs == 0 {
		c.setAux(!c.auxOn)
	}
}

// setAlarm writes the alarm output only when its level changes.
func (c *Controller) setAlarm(on bool) {
	if c.alarmOn != on {
		c.writeAlarm(on)
	}
}

func (c *Controller) setAux(on bool) {
	if c.auxOn != on {
		c.writeAux(on)
	}
}

func (c *Controller) writeAlarm(on bool) {
	if err := c.outputs.Alarm.Set(on); err != nil {
		c.onError(fmt.Errorf("set alarm output: %w", err))

		return
	}

	c.alarmOn = on
}

func (c *Controller) writeAux(on bool) {
	if err := c.outputs.Aux.Set(on); err != nil {
		c.onError(fmt.Errorf("set aux output: %w", err))

		return
	}

	c.auxOn = on
}

func (c *Controller) showIndicator(color alarm.Color) {
	c.indicator = color

	if err := c.outputs.Indicator.Show(color); err != nil {
		c.onError(fmt.Errorf("show indicator: %w", err))
	}
}

// indicatorFor is the status color shown when a mode becomes active.
func indicatorFor(mode alarm.Mode) alarm.Color {
	switch mode {
	case alarm.ModeOff:
		return alarm.ColorGreen
	case alarm.ModeOn:
		return alarm.ColorRed
	case alarm.ModeRepeat, alarm.ModePulse, alarm.ModeAlternatingPulse:
		return alarm.ColorYellow
	default:
		return alarm.ColorOff
	}
}

// advanceUptime adds tickMs to uptime, wrapping at UptimeWrapMs.
func advanceUptime(uptime, tickMs uint32) uint32 {
	next := uint64(uptime) + uint64(tickMs)
	if next >= uint64(UptimeWrapMs) {
		next -= uint64(UptimeWrapMs)
	}

	return uint32(next)
}

func milliseconds(v int) (uint32, error) {
	if v <= 0 || uint64(v) > math.MaxUint32 {
		return 0, fmt.Errorf("%d ms: %w", v, ErrValueOutOfRange)
	}

	return uint32(v), nil
}

func validateTick(d time.Duration) error {
	if d <= 0 || d%time.Millisecond != 0 || time.Second%d != 0 {
		return fmt.Errorf("%s: %w", d, ErrInvalidTick)
	}

	return nil
}

// nopIndicator discards indicator writes.
type nopIndicator struct{}

func (nopIndicator) Show(alarm.Color) error { return nil }
