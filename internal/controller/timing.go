package controller

import "github.com/oshokin/smart-alarm/internal/domain/alarm"

// RepeatTiming is the state of ModeRepeat.
type RepeatTiming struct {
	// OnMs is the asserted part of the cycle.
	OnMs uint32
	// OffMs is the de-asserted part of the cycle.
	OffMs uint32
	// TotalMs ends the cycle once exceeded; zero repeats forever.
	TotalMs uint32
	// Phase is the current half of the cycle.
	Phase alarm.Phase
	// ElapsedMs counts time spent in the current phase.
	ElapsedMs uint32
	// TotalElapsedMs counts time since the cycle started.
	TotalElapsedMs uint32
}

// PulseTiming is the state of ModePulse.
type PulseTiming struct {
	// DurationMs is how long the output stays asserted.
	DurationMs uint32
	// Started is a one-shot trigger consumed by the next tick.
	Started bool
	// Active is true while the output is asserted.
	Active bool
	// ElapsedMs counts time since the trigger.
	ElapsedMs uint32
}

// AlternatingPulseTiming is the state of ModeAlternatingPulse.
// The auxiliary output toggles on every whole second of uptime while Active.
type AlternatingPulseTiming struct {
	PulseTiming
}
