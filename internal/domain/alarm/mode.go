package alarm

import (
	"errors"
	"fmt"
	"strings"
)

// Mode is the active behavior of the alarm output.
type Mode uint8

const (
	// ModeOff keeps the alarm output de-asserted.
	ModeOff Mode = iota
	// ModeOn keeps the alarm output asserted.
	ModeOn
	// ModeRepeat cycles the output between on and off durations.
	ModeRepeat
	// ModePulse asserts the output once for a fixed duration.
	ModePulse
	// ModeAlternatingPulse is a pulse that also toggles the auxiliary output every second.
	ModeAlternatingPulse
	// ModeSong is reserved and behaves like ModeOff.
	ModeSong
)

// ErrUnknownMode is returned when a mode name cannot be parsed.
var ErrUnknownMode = errors.New("unknown mode")

// modeNames maps modes to their wire and log names.
//
//nolint:gochecknoglobals // Read-only lookup table.
var modeNames = [...]string{
	ModeOff:              "off",
	ModeOn:               "on",
	ModeRepeat:           "repeat",
	ModePulse:            "pulse",
	ModeAlternatingPulse: "pulse2",
	ModeSong:             "song",
}

// String returns the lower-case name of the mode.
func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}

	return fmt.Sprintf("mode(%d)", uint8(m))
}

// ParseMode converts a mode name back to a Mode.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range modeNames {
		if name == s {
			return Mode(i), nil
		}
	}

	return ModeOff, fmt.Errorf("%q: %w", s, ErrUnknownMode)
}

// Phase is the sub-state of ModeRepeat.
type Phase uint8

const (
	// PhaseStart is published by a setter; the next tick asserts the output.
	PhaseStart Phase = iota
	// PhaseOn is the asserted half of the cycle.
	PhaseOn
	// PhaseOff is the de-asserted half of the cycle.
	PhaseOff
	// PhaseDone means the optional total duration has elapsed.
	PhaseDone
)

// String returns the lower-case name of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseStart:
		return "start"
	case PhaseOn:
		return "on"
	case PhaseOff:
		return "off"
	case PhaseDone:
		return "done"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}
