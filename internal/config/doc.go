// Package config defines the device settings used by both binaries and
// provides helpers to load, validate, save and watch them in YAML format.
//
// Validate fills in defaults (stdio transport, console outputs, 10 ms tick,
// 9600 baud, 440 Hz tone) so a zero Config is always usable.
package config
