package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/oshokin/smart-alarm/internal/config"
	domain "github.com/oshokin/smart-alarm/internal/domain/alarm"
	"github.com/oshokin/smart-alarm/internal/hal"
	"github.com/oshokin/smart-alarm/internal/service/checker"
	"github.com/oshokin/smart-alarm/internal/service/client"
	"github.com/oshokin/smart-alarm/internal/service/common"
	"github.com/oshokin/smart-alarm/internal/service/device"
	"github.com/oshokin/smart-alarm/internal/transport"
)

// syncBuffer is a bytes.Buffer safe for one writer and concurrent readers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

// testDevice is a running device with its console peer and outputs.
type testDevice struct {
	// addr is the remote console address.
	addr string
	// cfgPath is the settings file shared with alarm-ctl.
	cfgPath string
	// peer is the operator end of the console link.
	peer net.Conn
	// console collects everything the device wrote to the link.
	console *syncBuffer
	// outputs records every output write.
	outputs *hal.Memory
}

// startDevice runs a device with a settings file, a piped console link and a real gRPC listener.
func startDevice(t *testing.T) *testDevice {
	t.Helper()

	addr := reservePort(t)
	cfgPath := filepath.Join(t.TempDir(), "settings.yaml")

	// Create temporary configuration file.
	require.NoError(t, config.Save(cfgPath, &config.Config{
		Output:        config.OutputConfig{Backend: config.BackendMemory},
		RemoteAddress: addr,
		SelfTestPause: -1,
		Timeout:       3 * time.Second,
	}))

	local, peer := net.Pipe()
	console := new(syncBuffer)

	// The pipe is synchronous: the device blocks on flush until the peer reads.
	go func() {
		_, _ = copyAll(console, peer)
	}()

	mem := hal.NewMemory()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- device.Run(ctx, &device.Options{
			ConfigPath:    cfgPath,
			ListenAddress: addr,
			Transport:     transport.NewStream(local),
			Backend:       mem,
		})
	}()

	t.Cleanup(func() {
		cancel()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("device did not stop")
		}

		_ = peer.Close()
	})

	dev := &testDevice{
		addr:    addr,
		cfgPath: cfgPath,
		peer:    peer,
		console: console,
		outputs: mem,
	}

	// Wait for the remote console to answer.
	c := dev.dial(t)
	require.Eventually(t, func() bool {
		_, err := c.GetStatus(context.Background())

		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	return dev
}

// dial connects a remote console client that is closed with the test.
func (d *testDevice) dial(t *testing.T) *common.Client {
	t.Helper()

	c, err := common.Dial(context.Background(), d.addr, common.WithCallTimeout(3*time.Second))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = c.Close()
	})

	return c
}

// status returns the remote snapshot as plain values.
func (d *testDevice) status(t *testing.T, c *common.Client) map[string]any {
	t.Helper()

	resp, err := c.GetStatus(context.Background())
	require.NoError(t, err)

	return resp.AsMap()
}

func copyAll(dst *syncBuffer, src net.Conn) (int64, error) {
	var total int64

	buf := make([]byte, 256)

	for {
		n, err := src.Read(buf)
		if n > 0 {
			_, _ = dst.Write(buf[:n])
			total += int64(n)
		}

		if err != nil {
			return total, err
		}
	}
}

// reservePort returns address on a free TCP port and closes it.
func reservePort(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := l.Addr().String()
	_ = l.Close()

	return addr
}

// TestGRPC_Roundtrip drives the mode controller through the remote console.
func TestGRPC_Roundtrip(t *testing.T) {
	t.Parallel()

	dev := startDevice(t)
	c := dev.dial(t)
	ctx := context.Background()

	actor := &domain.Actor{
		Hostname: "test-hostname",
		Username: "test-user",
	}

	reply, err := c.Exec(ctx, actor, "repeat 40 40")
	require.NoError(t, err)
	require.Equal(t, "OK\r\n", reply)

	// The repeat cycle toggles the alarm output on and off.
	require.Eventually(t, func() bool {
		writes := dev.outputs.AlarmWrites()

		return strings.Count(boolString(writes), "10") >= 2
	}, 5*time.Second, 10*time.Millisecond)

	snapshot := dev.status(t, c)
	require.Equal(t, "repeat", snapshot["mode"])
	require.Equal(t, "yellow", snapshot["indicator"])
	require.NotEmpty(t, snapshot["boot_id"])

	reply, err = c.Exec(ctx, actor, "status 9")
	require.NoError(t, err)
	require.Equal(t, "ERROR - Value out of range\r\n", reply)

	reply, err = c.Exec(ctx, actor, "exit")
	require.NoError(t, err)
	require.Equal(t, "Bye\r\n", reply)

	// The status stays available after exit, commands do not.
	require.Equal(t, "repeat", dev.status(t, c)["mode"])

	_, err = c.Exec(ctx, actor, "alarm 0")
	require.Equal(t, codes.Unavailable, status.Code(err))
}

// TestLocalAndRemoteConsoles checks that both consoles drive the same controller.
func TestLocalAndRemoteConsoles(t *testing.T) {
	t.Parallel()

	dev := startDevice(t)
	c := dev.dial(t)

	_, err := dev.peer.Write([]byte("alarm 1\r"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		resp, err := c.GetStatus(context.Background())

		return err == nil && resp.AsMap()["mode"] == "on"
	}, 5*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return strings.Contains(dev.console.String(), "\r\nsmartAlarm\r\n") &&
			strings.Contains(dev.console.String(), "Alarm On\r\nOK\r\n")
	}, 5*time.Second, 10*time.Millisecond)

	reply, err := c.Exec(context.Background(), &domain.Actor{Hostname: "h", Username: "u"}, "mode")
	require.NoError(t, err)
	require.Equal(t, "Mode: on\r\n", reply)

	// Remote replies never reach the local console.
	require.NotContains(t, dev.console.String(), "Mode: on")
}

// TestAlarmCtl runs the operator client against the device.
func TestAlarmCtl(t *testing.T) {
	t.Parallel()

	dev := startDevice(t)
	ctx := context.Background()

	var out bytes.Buffer

	require.NoError(t, client.Run(ctx, &client.Options{
		ConfigPath: dev.cfgPath,
		Line:       "freq 880",
		Output:     &out,
	}))
	require.Equal(t, "Frequency set to 880 Hz (compare 852, actual 880.3 Hz)\n", out.String())
	require.Equal(t, []uint16{852}, dev.outputs.CompareWrites())

	out.Reset()

	require.NoError(t, client.Run(ctx, &client.Options{
		ConfigPath: dev.cfgPath,
		Line:       "test",
		Output:     &out,
	}))
	require.Equal(t, "Status red\nStatus yellow\nStatus green\nAlarm on\nAlarm off\nTest complete\n", out.String())

	out.Reset()

	require.NoError(t, client.Run(ctx, &client.Options{
		ConfigPath:    dev.cfgPath,
		ServerAddress: dev.addr,
		Output:        &out,
	}))

	var snapshot map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &snapshot))
	require.Equal(t, "off", snapshot["mode"])
	require.Contains(t, snapshot, "uptime_ms")
}

// TestAlarmCtlWatch follows the device until the alarm is switched on remotely.
func TestAlarmCtlWatch(t *testing.T) {
	t.Parallel()

	dev := startDevice(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out syncBuffer

	done := make(chan error, 1)

	go func() {
		done <- checker.Run(ctx, &checker.Options{
			ConfigPath:   dev.cfgPath,
			PollInterval: 20 * time.Millisecond,
			Until:        "on",
			Output:       &out,
		})
	}()

	require.Eventually(t, func() bool {
		return strings.HasPrefix(out.String(), "mode=off ")
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, client.Run(ctx, &client.Options{
		ConfigPath: dev.cfgPath,
		Line:       "alarm 1",
		Output:     new(bytes.Buffer),
	}))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("watch did not stop at mode on")
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.True(t, strings.HasPrefix(lines[len(lines)-1], "mode=on "), lines)
}

// boolString renders output writes as a string of 1 and 0.
func boolString(writes []bool) string {
	var b strings.Builder

	for _, on := range writes {
		if on {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}

	return b.String()
}
