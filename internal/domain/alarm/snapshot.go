package alarm

// Snapshot is a copy of the controller state taken between two ticks.
type Snapshot struct {
	// Mode is the active mode.
	Mode Mode
	// Phase is the repeat phase; meaningful only in ModeRepeat.
	Phase Phase
	// Indicator is the color currently shown by the status indicator.
	Indicator Color
	// AlarmOn reports whether the alarm output is asserted.
	AlarmOn bool
	// AuxOn reports whether the auxiliary output is asserted.
	AuxOn bool
	// ElapsedMs is the elapsed time of the current repeat phase or pulse.
	ElapsedMs uint32
	// UptimeMs is the wrapping uptime counter.
	UptimeMs uint32
	// Ticks is the number of ticks processed since start.
	Ticks uint64
}

// Fields flattens the snapshot into plain values for logs and the remote console.
func (s Snapshot) Fields() map[string]any {
	return map[string]any{
		"mode":       s.Mode.String(),
		"phase":      s.Phase.String(),
		"indicator":  s.Indicator.String(),
		"alarm_on":   s.AlarmOn,
		"aux_on":     s.AuxOn,
		"elapsed_ms": s.ElapsedMs,
		"uptime_ms":  s.UptimeMs,
		"ticks":      s.Ticks,
	}
}
