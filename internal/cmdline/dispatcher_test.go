package cmdline

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// deviceCommands mirrors the command table of the device.
//
//nolint:gochecknoglobals // Test fixture.
var deviceCommands = []string{"help", "test", "alarm", "status", "repeat", "pulse", "pulse2", "freq", "mode", "exit"}

// newRecorder returns a dispatcher writing into a buffer and a call counter per command.
func newRecorder(t *testing.T, opts ...Option) (*Dispatcher, *bytes.Buffer, map[string]int) {
	t.Helper()

	out := new(bytes.Buffer)
	calls := make(map[string]int)

	opts = append([]Option{WithOutput(func(b byte) { out.WriteByte(b) })}, opts...)
	d := New(opts...)

	for _, name := range deviceCommands {
		require.NoError(t, d.Register(name, "runs "+name, func() { calls[name]++ }))
	}

	return d, out, calls
}

func feedString(d *Dispatcher, s string) {
	for i := range len(s) {
		d.Feed(s[i])
		d.RunPending()
	}
}

// TestRegister_Errors covers capacity, duplicate and name validation failures.
func TestRegister_Errors(t *testing.T) {
	t.Parallel()

	d := New(WithCapacity(2))
	noop := func() {}

	require.NoError(t, d.Register("alarm", "", noop))
	require.ErrorIs(t, d.Register("alarm", "", noop), ErrDuplicateName)
	require.NoError(t, d.Register("pulse", "", noop))
	require.ErrorIs(t, d.Register("repeat", "", noop), ErrRegistryFull)

	d = New()
	require.ErrorIs(t, d.Register("", "", noop), ErrInvalidName)
	require.ErrorIs(t, d.Register("two words", "", noop), ErrInvalidName)
	require.ErrorIs(t, d.Register(strings.Repeat("x", MaxNameLength+1), "", noop), ErrInvalidName)
	require.ErrorIs(t, d.Register("nil", "", nil), ErrInvalidName)
	require.NoError(t, d.Register(strings.Repeat("x", MaxNameLength), "", noop))
	require.Len(t, d.entries, 1)
}

// TestRegister_DefaultCapacity fills the default table and expects the next registration to fail.
func TestRegister_DefaultCapacity(t *testing.T) {
	t.Parallel()

	d := New()
	for i := range DefaultCapacity {
		require.NoError(t, d.Register(fmt.Sprintf("cmd%d", i), "", func() {}))
	}

	require.ErrorIs(t, d.Register("extra", "", func() {}), ErrRegistryFull)
}

// TestDispatch_EveryCommand feeds each registered name and expects exactly that handler to run.
func TestDispatch_EveryCommand(t *testing.T) {
	t.Parallel()

	for _, name := range deviceCommands {
		d, out, calls := newRecorder(t)

		feedString(d, name+"\n")

		require.Equal(t, map[string]int{name: 1}, calls, name)
		require.Empty(t, out.String(), name)
	}
}

// TestDispatch_FirstCharacter checks resolution on the first character only.
func TestDispatch_FirstCharacter(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"hxyz":       "help",
		"alarmon":    "alarm",
		"alarmoff":   "alarm",
		"a1":         "alarm",
		"p 25":       "pulse",
		"Pulse2 3":   "pulse2",
		"PULSE2 3":   "pulse",
		"  repeat 1": "repeat",
		"Exit":       "exit",
	}

	for line, want := range cases {
		d, _, calls := newRecorder(t)

		feedString(d, line+"\r")

		require.Equal(t, map[string]int{want: 1}, calls, line)
	}
}

// TestDispatch_Unknown expects the raw line to be echoed in the reply and no handler to run.
func TestDispatch_Unknown(t *testing.T) {
	t.Parallel()

	d, out, calls := newRecorder(t)

	feedString(d, "Zap 1 2\n")

	require.Empty(t, calls)
	require.Equal(t, "Unknown command: Zap 1 2\r\n", out.String())
}

// TestDispatch_ExactMode resolves whole words only.
func TestDispatch_ExactMode(t *testing.T) {
	t.Parallel()

	d, out, calls := newRecorder(t, WithMatchMode(MatchExact))

	feedString(d, "ALARM 1\n")
	feedString(d, "alarmon\n")

	require.Equal(t, map[string]int{"alarm": 1}, calls)
	require.Equal(t, "Unknown command: alarmon\r\n", out.String())
}

// TestArgInt covers token positions, glued arguments and the failure value.
func TestArgInt(t *testing.T) {
	t.Parallel()

	d := New()

	d.Execute("repeat 500 200")

	v, err := d.ArgInt(1)
	require.NoError(t, err)
	require.Equal(t, 500, v)

	v, err = d.ArgInt(2)
	require.NoError(t, err)
	require.Equal(t, 200, v)

	v, err = d.ArgInt(3)
	require.ErrorIs(t, err, ErrArgument)
	require.Zero(t, v)

	_, err = d.ArgInt(0)
	require.ErrorIs(t, err, ErrArgument)
	require.Equal(t, 2, d.ArgCount())

	cases := map[string]int{
		"a1":        1,
		"a 1":       1,
		"alarm 0":   0,
		"s-1":       -1,
		"pulse2 3":  3,
		"\tp  25  ": 25,
	}
	for line, want := range cases {
		d.Execute(line)

		got, err := d.ArgInt(1)
		require.NoError(t, err, line)
		require.Equal(t, want, got, line)
	}

	for _, line := range []string{"alarm", "alarm x", "a1x", "freq 99999999999999999999"} {
		d.Execute(line)

		_, err = d.ArgInt(1)
		require.ErrorIs(t, err, ErrArgument, line)
	}
}

// TestFeed_Overflow discards an over-long line and recovers on the next one.
func TestFeed_Overflow(t *testing.T) {
	t.Parallel()

	d, out, calls := newRecorder(t, WithBufferSize(8))

	feedString(d, "repeat 100 200\n")

	require.Empty(t, calls)
	require.Equal(t, ReplyLineTooLong+"\r\n", out.String())

	feedString(d, "pulse 5\n")
	require.Equal(t, map[string]int{"pulse": 1}, calls)
}

// TestFeed_PendingLine refuses bytes until the pending line has run.
func TestFeed_PendingLine(t *testing.T) {
	t.Parallel()

	d, _, calls := newRecorder(t)

	for _, b := range []byte("test\n") {
		require.True(t, d.Feed(b))
	}

	require.True(t, d.ready)
	require.False(t, d.Feed('x'))
	require.True(t, d.RunPending())
	require.False(t, d.RunPending())
	require.Equal(t, 1, calls["test"])

	// Blank lines and CRLF pairs never produce a dispatch.
	feedString(d, "\r\n\r\n")
	require.False(t, d.ready)
	require.Equal(t, map[string]int{"test": 1}, calls)
}

// TestFeed_Echo writes accepted bytes back with a CRLF terminator.
func TestFeed_Echo(t *testing.T) {
	t.Parallel()

	out := new(bytes.Buffer)
	d := New(WithEcho(true), WithOutput(func(b byte) { out.WriteByte(b) }))
	require.NoError(t, d.Register("mode", "", func() { d.Reply("Mode: off") }))

	feedString(d, "m\r")

	require.Equal(t, "m\r\nMode: off\r\n", out.String())
}

// TestHelp lists entries in registration order and translates newlines.
func TestHelp(t *testing.T) {
	t.Parallel()

	d, out, _ := newRecorder(t)

	d.Help()

	lines := strings.Split(strings.TrimSuffix(out.String(), "\r\n"), "\r\n")
	require.Len(t, lines, len(deviceCommands))
	require.True(t, strings.HasPrefix(lines[0], "help "))
	require.Contains(t, lines[6], "runs pulse2")

	out.Reset()

	_, err := fmt.Fprint(d.Writer(), "a\nb")
	require.NoError(t, err)
	require.Equal(t, "a\r\nb", out.String())
}

// TestParseMatchMode maps configuration names.
func TestParseMatchMode(t *testing.T) {
	t.Parallel()

	m, ok := ParseMatchMode("")
	require.True(t, ok)
	require.Equal(t, MatchFirstChar, m)

	m, ok = ParseMatchMode("Exact")
	require.True(t, ok)
	require.Equal(t, MatchExact, m)
	require.Equal(t, "exact", m.String())

	_, ok = ParseMatchMode("fuzzy")
	require.False(t, ok)
}
