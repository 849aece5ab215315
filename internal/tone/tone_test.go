package tone

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/smart-alarm/internal/hal"
)

// TestCompare checks truncation toward zero and the representable range.
func TestCompare(t *testing.T) {
	t.Parallel()

	cases := map[int]uint16{
		440:   1704, // 1_500_000 / 880 = 1704.54...
		1000:  750,
		3000:  250,
		12:    62500,
		20000: 37,
	}
	for hz, want := range cases {
		got, err := Compare(DefaultClockHz, hz)
		require.NoError(t, err, hz)
		require.Equal(t, want, got, hz)
	}

	for _, hz := range []int{0, -5, 11, 1_000_000} {
		_, err := Compare(DefaultClockHz, hz)
		require.ErrorIs(t, err, ErrFrequencyOutOfRange, hz)
	}
}

// TestGenerator_SetFrequency writes the compare register and reports the produced tone.
func TestGenerator_SetFrequency(t *testing.T) {
	t.Parallel()

	regs := hal.NewMemory()
	g := New(regs, 0)

	compare, err := g.SetFrequency(440)
	require.NoError(t, err)
	require.Equal(t, uint16(1704), compare)
	require.Equal(t, []uint16{1704}, regs.CompareWrites())
	require.Equal(t, 440, g.Frequency())
	require.InDelta(t, 440.14, g.ActualFrequency(), 0.01)

	// Rejected frequencies leave the register untouched.
	_, err = g.SetFrequency(0)
	require.ErrorIs(t, err, ErrFrequencyOutOfRange)
	require.Len(t, regs.CompareWrites(), 1)
	require.Equal(t, 440, g.Frequency())
}

// TestGenerator_Gate verifies that run and stop map to full and zero duty.
func TestGenerator_Gate(t *testing.T) {
	t.Parallel()

	regs := hal.NewMemory()
	g := New(regs, DefaultClockHz)

	require.NoError(t, g.Run())
	require.True(t, g.running)
	require.NoError(t, g.Stop())
	require.False(t, g.running)
	require.NoError(t, g.Set(true))

	require.Equal(t, []uint8{MaxDuty, 0, MaxDuty}, regs.DutyWrites())
}
