package device

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oshokin/smart-alarm/internal/cmdline"
	"github.com/oshokin/smart-alarm/internal/controller"
	domain "github.com/oshokin/smart-alarm/internal/domain/alarm"
	"github.com/oshokin/smart-alarm/internal/logger"
	"github.com/oshokin/smart-alarm/internal/tone"
)

// handlers implements the command set on top of a device.
type handlers struct {
	ctx context.Context //nolint:containedctx // Handlers have no context parameter; this is the device lifetime.
	d   *Device
}

// registerCommands fills the dispatcher table. Registration order matters for
// first-character matching: pulse is found before pulse2 for a bare "p".
func registerCommands(ctx context.Context, d *Device) error {
	h := &handlers{ctx: ctx, d: d}

	table := []cmdline.Entry{
		{Name: "help", Help: "List commands", Handler: h.help},
		{Name: "test", Help: "Run the light and alarm self-test", Handler: h.test},
		{Name: "alarm", Help: "alarm 0|1, alarmon, alarmoff", Handler: h.alarm},
		{Name: "status", Help: "status 0-3: red, yellow, green, off", Handler: h.status},
		{Name: "repeat", Help: "repeat onMs offMs [totalMs]", Handler: h.repeat},
		{Name: "pulse", Help: "pulse onMs", Handler: h.pulse},
		{Name: "pulse2", Help: "pulse2 onSeconds, toggling aux each second", Handler: h.alternatingPulse},
		{Name: "freq", Help: "freq hz: set the tone frequency", Handler: h.freq},
		{Name: "mode", Help: "Show the current mode", Handler: h.mode},
		{Name: "exit", Help: "Stop the command loop", Handler: h.exit},
	}

	for _, e := range table {
		if err := d.dispatcher.Register(e.Name, e.Help, e.Handler); err != nil {
			return err
		}
	}

	return nil
}

func (h *handlers) help() {
	h.d.dispatcher.Help()
}

// test steps through the indicator colors and sounds the alarm once.
func (h *handlers) test() {
	disp := h.d.dispatcher
	ctrl := h.d.controller

	steps := []struct {
		label string
		apply func() error
	}{
		{"Status red", func() error { return ctrl.SetIndicator(domain.ColorRed) }},
		{"Status yellow", func() error { return ctrl.SetIndicator(domain.ColorYellow) }},
		{"Status green", func() error { return ctrl.SetIndicator(domain.ColorGreen) }},
		{"Alarm on", func() error { return ctrl.SetMode(domain.ModeOn) }},
		{"Alarm off", func() error { return ctrl.SetMode(domain.ModeOff) }},
	}

	for i, step := range steps {
		if i > 0 && !h.pause() {
			disp.Reply("Test aborted")

			return
		}

		disp.Reply(step.label)

		if err := step.apply(); err != nil {
			disp.Replyf("ERROR - %v", err)

			return
		}

		// Progress must reach the operator before the pause.
		h.d.flushConsole()
	}

	disp.Reply("Test complete")
}

// pause waits the self-test pause. It reports false when the device is
// stopping or when the remote caller of the running line has gone away.
func (h *handlers) pause() bool {
	wait := h.d.settings.SelfTestPause
	if wait <= 0 {
		return true
	}

	var callerDone <-chan struct{}
	if h.d.remoteCtx != nil {
		callerDone = h.d.remoteCtx.Done()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-h.ctx.Done():
		return false
	case <-callerDone:
		return false
	case <-timer.C:
		return true
	}
}

// alarm handles "alarm 0|1" and the "alarmon"/"alarmoff" spellings.
func (h *handlers) alarm() {
	disp := h.d.dispatcher

	var on bool

	switch word := disp.Command(); {
	case strings.EqualFold(word, "alarmon"):
		on = true
	case strings.EqualFold(word, "alarmoff"):
		on = false
	default:
		v, err := disp.ArgInt(1)
		if err != nil {
			disp.Reply(cmdline.ReplyInvalidArg)

			return
		}

		switch v {
		case 0:
			on = false
		case 1:
			on = true
		default:
			disp.Reply(cmdline.ReplyOutOfRange)

			return
		}
	}

	mode, label := domain.ModeOff, "Alarm Off"
	if on {
		mode, label = domain.ModeOn, "Alarm On"
	}

	if err := h.d.controller.SetMode(mode); err != nil {
		h.replyError(err)

		return
	}

	disp.Reply(label)
	disp.Reply(cmdline.ReplyOK)
}

func (h *handlers) status() {
	v, ok := h.intArg(1)
	if !ok {
		return
	}

	color, err := domain.ColorFromIndex(v)
	if err != nil {
		h.d.dispatcher.Reply(cmdline.ReplyOutOfRange)

		return
	}

	h.result(h.d.controller.SetIndicator(color))
}

func (h *handlers) repeat() {
	on, ok := h.intArg(1)
	if !ok {
		return
	}

	off, ok := h.intArg(2)
	if !ok {
		return
	}

	total := 0
	if h.d.dispatcher.ArgCount() >= 3 {
		if total, ok = h.intArg(3); !ok {
			return
		}

		// Zero would silently mean "forever".
		if total <= 0 {
			h.d.dispatcher.Reply(cmdline.ReplyOutOfRange)

			return
		}
	}

	h.result(h.d.controller.StartRepeat(on, off, total))
}

func (h *handlers) pulse() {
	v, ok := h.intArg(1)
	if !ok {
		return
	}

	h.result(h.d.controller.StartPulse(v))
}

func (h *handlers) alternatingPulse() {
	v, ok := h.intArg(1)
	if !ok {
		return
	}

	h.result(h.d.controller.StartAlternatingPulse(v))
}

func (h *handlers) freq() {
	v, ok := h.intArg(1)
	if !ok {
		return
	}

	compare, err := h.d.tone.SetFrequency(v)
	if err != nil {
		h.replyError(err)

		return
	}

	h.d.dispatcher.Replyf("Frequency set to %d Hz (compare %d, actual %.1f Hz)", v, compare, h.d.tone.ActualFrequency())
}

func (h *handlers) mode() {
	s := h.d.controller.Snapshot()

	if s.Mode == domain.ModeRepeat {
		h.d.dispatcher.Replyf("Mode: %s (phase %s)", s.Mode, s.Phase)

		return
	}

	h.d.dispatcher.Replyf("Mode: %s", s.Mode)
}

func (h *handlers) exit() {
	h.d.dispatcher.Reply("Bye")
	h.d.exited = true
}

// intArg reads argument k and replies with the parse error when it is missing.
func (h *handlers) intArg(k int) (int, bool) {
	v, err := h.d.dispatcher.ArgInt(k)
	if err != nil {
		h.d.dispatcher.Reply(cmdline.ReplyInvalidArg)

		return 0, false
	}

	return v, true
}

// result replies OK or the error of a setter.
func (h *handlers) result(err error) {
	if err != nil {
		h.replyError(err)

		return
	}

	h.d.dispatcher.Reply(cmdline.ReplyOK)
}

func (h *handlers) replyError(err error) {
	if errors.Is(err, controller.ErrValueOutOfRange) || errors.Is(err, tone.ErrFrequencyOutOfRange) {
		h.d.dispatcher.Reply(cmdline.ReplyOutOfRange)

		return
	}

	logger.WarnKV(h.ctx, "Command failed", "line", h.d.dispatcher.Line(), "error", err)
	h.d.dispatcher.Replyf("ERROR - %v", err)
}
