// Package controller implements the tick-driven alarm mode state machine.
//
// A Controller owns the single mode and timing record of the device. Command
// handlers change it through setters, the tick source advances it once per
// tick. Both hold the same mutex for their whole duration, so a tick observes
// either the state before a setter or the complete state after it.
//
// Timing is counted in whole milliseconds from a fixed tick. Phase changes use
// strict comparisons, so a 50 ms on-phase at a 10 ms tick ends on the sixth
// tick, not the fifth. The uptime counter is 32 bits wide and wraps to zero
// at UptimeWrapMs, a whole number of seconds just below 2^32 ms (about 49.7
// days), so the alternating pulse keeps finding its second boundaries.
package controller
