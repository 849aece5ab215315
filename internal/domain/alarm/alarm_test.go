package alarm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestParseMode verifies that every mode name parses back to the same mode.
func TestParseMode(t *testing.T) {
	t.Parallel()

	for m := ModeOff; m <= ModeSong; m++ {
		got, err := ParseMode(m.String())
		require.NoError(t, err)
		require.Equal(t, m, got)
	}

	_, err := ParseMode("siren")
	require.ErrorIs(t, err, ErrUnknownMode)
	require.Equal(t, "mode(42)", Mode(42).String())
}

// TestColorFromIndex checks the documented palette and range rejection.
func TestColorFromIndex(t *testing.T) {
	t.Parallel()

	want := []Color{ColorRed, ColorYellow, ColorGreen, ColorOff}
	for i, c := range want {
		got, err := ColorFromIndex(i)
		require.NoError(t, err)
		require.Equal(t, c, got)
	}

	_, err := ColorFromIndex(4)
	require.ErrorIs(t, err, ErrColorOutOfRange)

	_, err = ColorFromIndex(-1)
	require.ErrorIs(t, err, ErrColorOutOfRange)
}

// TestActorClone verifies that Clone returns a deep copy and handles nil safely.
func TestActorClone(t *testing.T) {
	t.Parallel()
	require.Nil(t, (*Actor)(nil).Clone())

	a := &Actor{
		Hostname: "bench-01",
		Username: "operator",
	}

	b := a.Clone()

	require.Equal(t, a, b)
	require.NotSame(t, a, b)
	require.Equal(t, "operator@bench-01", b.String())
}

// TestSnapshotFields ensures the flattened view carries names rather than raw indices.
func TestSnapshotFields(t *testing.T) {
	t.Parallel()

	s := Snapshot{
		Mode:      ModeRepeat,
		Phase:     PhaseOff,
		Indicator: ColorYellow,
		AlarmOn:   false,
		UptimeMs:  1230,
	}

	f := s.Fields()
	require.Equal(t, "repeat", f["mode"])
	require.Equal(t, "off", f["phase"])
	require.Equal(t, "yellow", f["indicator"])
	require.Equal(t, uint32(1230), f["uptime_ms"])
}

// TestParseActor checks the username@hostname round trip and malformed inputs.
func TestParseActor(t *testing.T) {
	t.Parallel()

	actor := &Actor{Hostname: "desk-01", Username: "DOMAIN\\op@corp"}

	parsed, err := ParseActor(actor.String())
	require.NoError(t, err)
	require.Equal(t, actor, parsed)

	for _, bad := range []string{"", "nobody", "@host", "user@"} {
		_, err = ParseActor(bad)
		require.ErrorIs(t, err, ErrInvalidActor, bad)
	}
}
