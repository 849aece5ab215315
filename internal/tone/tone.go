package tone

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/oshokin/smart-alarm/internal/hal"
)

const (
	// DefaultClockHz is the timer clock: a 12 MHz CPU with a /8 prescaler.
	DefaultClockHz = 1_500_000
	// DefaultFrequencyHz is the tone used until a freq command arrives.
	DefaultFrequencyHz = 440
	// MaxDuty is the duty value that makes the tone audible.
	MaxDuty uint8 = 255
)

// ErrFrequencyOutOfRange is returned when the frequency cannot be represented by the timer.
var ErrFrequencyOutOfRange = errors.New("frequency out of range")

// Generator holds the tone timer configuration.
type Generator struct {
	mu      sync.Mutex
	regs    hal.Registers
	clockHz uint32

	frequencyHz int
	compare     uint16
	running     bool
}

// New creates a generator for the given timer clock. A zero clock selects DefaultClockHz.
func New(regs hal.Registers, clockHz uint32) *Generator {
	if clockHz == 0 {
		clockHz = DefaultClockHz
	}

	return &Generator{
		regs:    regs,
		clockHz: clockHz,
	}
}

// Compare returns the compare value for hz without touching the registers.
func Compare(clockHz uint32, hz int) (uint16, error) {
	if hz <= 0 {
		return 0, fmt.Errorf("%d Hz: %w", hz, ErrFrequencyOutOfRange)
	}

	compare := uint64(clockHz) / (2 * uint64(hz))
	if compare == 0 || compare > math.MaxUint16 {
		return 0, fmt.Errorf("%d Hz: %w", hz, ErrFrequencyOutOfRange)
	}

	return uint16(compare), nil
}

// SetFrequency reprograms the compare register and returns the value written.
func (g *Generator) SetFrequency(hz int) (uint16, error) {
	compare, err := Compare(g.clockHz, hz)
	if err != nil {
		return 0, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err = g.regs.SetCompare(compare); err != nil {
		return 0, fmt.Errorf("set compare: %w", err)
	}

	g.frequencyHz = hz
	g.compare = compare

	return compare, nil
}

// Frequency returns the last requested frequency, or 0 if none was set.
func (g *Generator) Frequency() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.frequencyHz
}

// ActualFrequency returns the frequency the timer really produces.
func (g *Generator) ActualFrequency() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.compare == 0 {
		return 0
	}

	return float64(g.clockHz) / (2 * float64(g.compare))
}

// Run makes the tone audible.
func (g *Generator) Run() error {
	return g.gate(true)
}

// Stop silences the tone.
func (g *Generator) Stop() error {
	return g.gate(false)
}

// Set implements hal.Pin.
func (g *Generator) Set(on bool) error {
	return g.gate(on)
}

func (g *Generator) gate(on bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	duty := uint8(0)
	if on {
		duty = MaxDuty
	}

	if err := g.regs.SetDuty(duty); err != nil {
		return fmt.Errorf("set duty: %w", err)
	}

	g.running = on

	return nil
}
