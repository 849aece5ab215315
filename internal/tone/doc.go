// Package tone converts an audible frequency into timer register values and
// gates the tone through the duty cycle.
//
// The compare value is clock/(2*hz) truncated toward zero, so the produced
// frequency is never below the requested one and the error grows with the
// frequency. A Generator also satisfies hal.Pin, which lets the controller
// drive it exactly like a plain on/off speaker line.
package tone
