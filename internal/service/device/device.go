package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/oshokin/smart-alarm/internal/api/grpc/console"
	"github.com/oshokin/smart-alarm/internal/cmdline"
	"github.com/oshokin/smart-alarm/internal/config"
	"github.com/oshokin/smart-alarm/internal/controller"
	domain "github.com/oshokin/smart-alarm/internal/domain/alarm"
	"github.com/oshokin/smart-alarm/internal/hal"
	"github.com/oshokin/smart-alarm/internal/logger"
	"github.com/oshokin/smart-alarm/internal/tone"
	"github.com/oshokin/smart-alarm/internal/transport"
)

// greeting is printed once when the foreground loop starts.
const greeting = "\nsmartAlarm\n"

// request is a remote command line waiting for the foreground loop.
type request struct {
	// ctx is the caller's context; waiting handlers give up when it ends.
	ctx context.Context //nolint:containedctx // The request crosses goroutines with its caller's lifetime.
	// actor is the operator who sent the line.
	actor *domain.Actor
	// line is the command line without terminator.
	line string
	// reply receives the captured output; it is buffered so the loop never blocks.
	reply chan string
}

// Device owns the runtime components of one device.
type Device struct {
	// settings are the validated settings the device was built from.
	settings *config.Config
	// bootID identifies this run in logs and in the remote status.
	bootID string

	// tone programs the tone timer registers.
	tone *tone.Generator
	// controller is the mode state machine.
	controller *controller.Controller
	// dispatcher resolves command lines; only the foreground loop touches it.
	dispatcher *cmdline.Dispatcher
	// transport is the local console link.
	transport transport.Transport

	// requests carries remote command lines to the foreground loop.
	requests chan *request
	// stopped is closed when the foreground loop ends.
	stopped chan struct{}
	// exited is set by the exit command.
	exited bool
	// remoteCtx is the caller's context while a remote line runs, nil otherwise.
	remoteCtx context.Context //nolint:containedctx // Handlers take no arguments; this is how they see the caller.
}

// newDevice builds the controller and the dispatcher over the given backend and link.
// ctx is the lifetime of the device; handlers that wait observe it.
func newDevice(
	ctx context.Context,
	settings *config.Config,
	backend hal.Backend,
	link transport.Transport,
	bootID string,
) (*Device, error) {
	d := &Device{
		settings:  settings,
		bootID:    bootID,
		tone:      tone.New(backend, settings.Tone.ClockHz),
		transport: link,
		requests:  make(chan *request),
		stopped:   make(chan struct{}),
	}

	alarmPin := backend.AlarmPin()

	if settings.Tone.Enabled {
		compare, err := d.tone.SetFrequency(settings.Tone.FrequencyHz)
		if err != nil {
			return nil, fmt.Errorf("program tone: %w", err)
		}

		logger.DebugKV(ctx, "Tone programmed", "frequency_hz", settings.Tone.FrequencyHz, "compare", compare)

		// The tone gate replaces the plain speaker line.
		alarmPin = d.tone
	}

	ctrl, err := controller.New(
		controller.Outputs{
			Alarm:     alarmPin,
			Aux:       backend.AuxPin(),
			Indicator: backend,
		},
		controller.WithTick(settings.Tick),
		controller.WithErrorHandler(func(err error) {
			logger.WarnKV(ctx, "Output write failed", "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create controller: %w", err)
	}

	d.controller = ctrl

	matchMode, _ := cmdline.ParseMatchMode(settings.MatchMode)

	d.dispatcher = cmdline.New(
		cmdline.WithMatchMode(matchMode),
		cmdline.WithEcho(settings.Transport.Echo),
		cmdline.WithOutput(d.send),
	)

	if err = registerCommands(ctx, d); err != nil {
		return nil, fmt.Errorf("register commands: %w", err)
	}

	return d, nil
}

// Exec runs line on the foreground loop and returns the captured reply.
func (d *Device) Exec(ctx context.Context, actor *domain.Actor, line string) (string, error) {
	req := &request{
		ctx:   ctx,
		actor: actor,
		line:  line,
		reply: make(chan string, 1),
	}

	select {
	case <-d.stopped:
		return "", fmt.Errorf("exec %q: %w", line, console.ErrUnavailable)
	case <-ctx.Done():
		return "", ctx.Err()
	case d.requests <- req:
	}

	select {
	case reply := <-req.reply:
		return reply, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Snapshot returns the controller state.
func (d *Device) Snapshot(context.Context) domain.Snapshot {
	return d.controller.Snapshot()
}

// BootID returns the id of this run.
func (d *Device) BootID() string {
	return d.bootID
}

// serve is the foreground loop. It returns nil after exit, end of input or
// cancellation, and an error when the console link fails.
func (d *Device) serve(ctx context.Context) error {
	defer close(d.stopped)

	_, _ = d.dispatcher.Writer().Write([]byte(greeting))

	poll := time.NewTicker(d.settings.PollInterval)
	defer poll.Stop()

	for {
		d.pollTransport(ctx)

		if err := d.transport.Flush(); err != nil {
			logger.WarnKV(ctx, "Console flush failed", "error", err)
		}

		if d.exited {
			logger.Info(ctx, "Foreground loop stopped by exit command")

			return nil
		}

		if err := d.transport.Err(); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, transport.ErrClosed) {
				logger.Info(ctx, "Console input closed")

				return nil
			}

			return fmt.Errorf("read console: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case req := <-d.requests:
			if req.ctx.Err() != nil {
				logger.InfoKV(ctx, "Remote command dropped, caller gone", "actor", req.actor.String(), "line", req.line)

				continue
			}

			req.reply <- d.captureRemote(ctx, req)

			logger.InfoKV(ctx, "Remote command executed", "actor", req.actor.String(), "line", req.line)
		case <-poll.C:
		}
	}
}

// pollTransport feeds every waiting byte to the dispatcher and runs completed lines.
func (d *Device) pollTransport(ctx context.Context) {
	for !d.exited {
		b, ok := d.transport.ReceiveByte()
		if !ok {
			return
		}

		d.dispatcher.Feed(b)

		if d.dispatcher.RunPending() {
			logger.DebugKV(ctx, "Command executed", "line", d.dispatcher.Line())
		}
	}
}

// captureRemote runs a remote line bound to its caller's context.
func (d *Device) captureRemote(ctx context.Context, req *request) string {
	d.remoteCtx = req.ctx
	defer func() { d.remoteCtx = nil }()

	return d.capture(ctx, req.line)
}

// capture runs line with the replies diverted into a buffer.
func (d *Device) capture(ctx context.Context, line string) string {
	var buf bytes.Buffer

	previous := d.dispatcher.Output()
	d.dispatcher.SetOutput(func(b byte) {
		buf.WriteByte(b)
	})

	defer d.dispatcher.SetOutput(previous)

	d.dispatcher.Execute(line)

	logger.DebugKV(ctx, "Command captured", "line", line, "reply_bytes", buf.Len())

	return buf.String()
}

// flushConsole pushes pending replies to the local console.
// Replies of a remote line are collected in a buffer instead, so there is nothing to push.
func (d *Device) flushConsole() {
	if d.remoteCtx != nil {
		return
	}

	// Link failures surface through Err on the next poll.
	_ = d.transport.Flush()
}

// send is the dispatcher sink for the local console.
func (d *Device) send(b byte) {
	// Link failures surface through Err on the next poll.
	_ = d.transport.SendByte(b)
}
