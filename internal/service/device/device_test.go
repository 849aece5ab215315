package device

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/smart-alarm/internal/api/grpc/console"
	"github.com/oshokin/smart-alarm/internal/config"
	domain "github.com/oshokin/smart-alarm/internal/domain/alarm"
	"github.com/oshokin/smart-alarm/internal/hal"
)

var errLinkLost = errors.New("link lost")

// startRun runs the device in the background and returns its result channel.
func startRun(t *testing.T, ctx context.Context, opts *Options) <-chan error {
	t.Helper()

	done := make(chan error, 1)

	go func() {
		done <- Run(ctx, opts)
	}()

	return done
}

// waitRun waits for Run to return.
func waitRun(t *testing.T, done <-chan error) error {
	t.Helper()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("device did not stop")

		return nil
	}
}

// TestRun_LocalConsole drives the device through its console link until exit.
func TestRun_LocalConsole(t *testing.T) {
	t.Parallel()

	settings := testSettings(t)
	settings.ExitHaltsTicks = true

	mem := hal.NewMemory()
	link := new(fakeLink)

	done := startRun(t, t.Context(), &Options{
		Config:    settings,
		Transport: link,
		Backend:   mem,
	})

	require.Eventually(t, func() bool {
		return link.contains("\r\nsmartAlarm\r\n")
	}, 2*time.Second, time.Millisecond)

	link.typeLine("alarm 1\r")

	require.Eventually(t, func() bool {
		writes := mem.AlarmWrites()

		return link.contains("Alarm On\r\nOK\r\n") && len(writes) > 0 && writes[len(writes)-1]
	}, 2*time.Second, time.Millisecond)

	link.typeLine("status 9\rexit\r")

	require.NoError(t, waitRun(t, done))
	require.True(t, link.contains("ERROR - Value out of range\r\nBye\r\n"))
}

// TestRun_ExitKeepsTicking checks that ticks continue after exit until the context ends.
func TestRun_ExitKeepsTicking(t *testing.T) {
	t.Parallel()

	settings := testSettings(t)
	mem := hal.NewMemory()
	link := new(fakeLink)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	done := startRun(t, ctx, &Options{
		Config:    settings,
		Transport: link,
		Backend:   mem,
	})

	link.typeLine("repeat 20 20\rexit\r")

	require.Eventually(t, func() bool {
		return link.contains("Bye\r\n")
	}, 2*time.Second, time.Millisecond)

	// The repeat cycle keeps toggling the output after the loop stopped.
	require.Eventually(t, func() bool {
		return len(mem.AlarmWrites()) >= 4
	}, 2*time.Second, time.Millisecond)

	select {
	case err := <-done:
		t.Fatalf("device stopped early: %v", err)
	default:
	}

	cancel()
	require.NoError(t, waitRun(t, done))
}

// TestRun_EndOfInput checks how the foreground loop reacts to the end of the console input.
func TestRun_EndOfInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{name: "eof", err: io.EOF},
		{name: "link failure", err: errLinkLost, wantErr: errLinkLost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			settings := testSettings(t)
			settings.ExitHaltsTicks = true

			link := new(fakeLink)
			link.typeLine("alarm 1\r")
			link.endInput(tt.err)

			done := startRun(t, t.Context(), &Options{
				Config:    settings,
				Transport: link,
				Backend:   hal.NewMemory(),
			})

			err := waitRun(t, done)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			require.True(t, link.contains("Alarm On\r\nOK\r\n"))
		})
	}
}

// TestExec checks that remote lines run on the foreground loop and are refused after exit.
func TestExec(t *testing.T) {
	t.Parallel()

	d, _, link := newTestDevice(t, testSettings(t))
	actor := &domain.Actor{Hostname: "desk", Username: "op"}

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	served := make(chan error, 1)

	go func() {
		served <- d.serve(ctx)
	}()

	// A partially typed local line survives a remote command.
	link.typeLine("stat")

	reply, err := d.Exec(ctx, actor, "alarm 1")
	require.NoError(t, err)
	require.Equal(t, "Alarm On\r\nOK\r\n", reply)
	require.Equal(t, domain.ModeOn, d.Snapshot(ctx).Mode)
	require.Equal(t, "boot-test", d.BootID())

	link.typeLine("us 1\r")

	require.Eventually(t, func() bool {
		return link.contains("OK\r\n")
	}, 2*time.Second, time.Millisecond)

	require.Equal(t, domain.ColorYellow, d.controller.Indicator())
	require.NotContains(t, link.output(), "Alarm On")

	reply, err = d.Exec(ctx, actor, "exit")
	require.NoError(t, err)
	require.Equal(t, "Bye\r\n", reply)
	require.NoError(t, <-served)

	_, err = d.Exec(ctx, actor, "alarm 0")
	require.ErrorIs(t, err, console.ErrUnavailable)
}

// TestExec_ContextDone checks that a caller gives up when its context ends.
func TestExec_ContextDone(t *testing.T) {
	t.Parallel()

	d, _, _ := newTestDevice(t, testSettings(t))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	// No foreground loop is running, so only the context can end the call.
	_, err := d.Exec(ctx, &domain.Actor{Hostname: "h", Username: "u"}, "mode")
	require.ErrorIs(t, err, context.Canceled)
}

// TestExec_SelfTestOutlivesCaller checks that a remote self-test stops pausing
// once its caller gives up, so the loop serves the next command.
func TestExec_SelfTestOutlivesCaller(t *testing.T) {
	t.Parallel()

	settings := testSettings(t)
	settings.SelfTestPause = time.Hour

	d, _, _ := newTestDevice(t, settings)
	actor := &domain.Actor{Hostname: "desk", Username: "op"}

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	go func() {
		_ = d.serve(ctx)
	}()

	callCtx, callCancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer callCancel()

	started := time.Now()
	_, err := d.Exec(callCtx, actor, "test")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	reply, err := d.Exec(ctx, actor, "mode")
	require.NoError(t, err)
	require.Contains(t, reply, "Mode: ")
	require.Less(t, time.Since(started), 5*time.Second)

	// The aborted test leaves the alarm off.
	require.Equal(t, domain.ModeOff, d.controller.Mode())
}

// TestLoadSettings covers explicit settings, files, defaults and CLI overrides.
func TestLoadSettings(t *testing.T) {
	t.Parallel()

	// Explicit settings are copied, never watched.
	explicit := &config.Config{MatchMode: "exact"}

	settings, watchPath, err := loadSettings(&Options{Config: explicit, Port: "/dev/ttyS1", Baud: 19200})
	require.NoError(t, err)
	require.Empty(t, watchPath)
	require.Equal(t, config.TransportSerial, settings.Transport.Kind)
	require.Equal(t, "/dev/ttyS1", settings.Transport.Port)
	require.Equal(t, 19200, settings.Transport.Baud)
	require.Empty(t, explicit.Transport.Kind)

	// A file is loaded and watched.
	path := filepath.Join(t.TempDir(), "device.yaml")
	require.NoError(t, config.Save(path, &config.Config{LogLevel: "info"}))

	settings, watchPath, err = loadSettings(&Options{ConfigPath: path, URL: "ws://bridge/serial"})
	require.NoError(t, err)
	require.Equal(t, path, watchPath)
	require.Equal(t, config.TransportWebSocket, settings.Transport.Kind)

	// An explicit path must exist.
	_, _, err = loadSettings(&Options{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml")})
	require.ErrorIs(t, err, os.ErrNotExist)

	// Overrides are validated.
	_, _, err = loadSettings(&Options{Config: &config.Config{Tick: 3 * time.Millisecond}})
	require.Error(t, err)
}

// TestResolveListenAddress checks override and port extraction.
func TestResolveListenAddress(t *testing.T) {
	t.Parallel()

	addr, err := resolveListenAddress("device.local:50051", "")
	require.NoError(t, err)
	require.Equal(t, ":50051", addr)

	addr, err = resolveListenAddress("device.local:50051", "127.0.0.1:9000")
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", addr)

	_, err = resolveListenAddress("", "")
	require.ErrorIs(t, err, ErrNoServerAddress)

	_, err = resolveListenAddress("no-port", "")
	require.Error(t, err)
}

// TestFindOtherInstance checks process matching by executable name.
func TestFindOtherInstance(t *testing.T) {
	t.Parallel()

	require.NoError(t, findOtherInstance("no-such-process-4f2a", os.Getpid()))

	self := filepath.Base(os.Args[0])

	require.NoError(t, findOtherInstance(self, os.Getpid()))
	require.ErrorIs(t, findOtherInstance(self, -1), ErrAlreadyRunning)
}

// TestRun_NilOptions rejects a missing options struct.
func TestRun_NilOptions(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, Run(t.Context(), nil), errOptionsRequired)
}
