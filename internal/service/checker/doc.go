// Package checker implements the alarm-ctl watch command: it polls the device
// status at a fixed interval and prints a line whenever the mode, phase,
// indicator or outputs change, optionally stopping once a given mode is reached.
package checker
