package hal

import "github.com/oshokin/smart-alarm/internal/domain/alarm"

// Pin is a single digital output.
type Pin interface {
	Set(on bool) error
}

// Indicator is the status light.
type Indicator interface {
	Show(color alarm.Color) error
}

// Registers is the timer register pair used for tone synthesis.
type Registers interface {
	SetCompare(value uint16) error
	SetDuty(duty uint8) error
}

// PinFunc adapts a function to the Pin interface.
type PinFunc func(on bool) error

// Set calls f(on).
func (f PinFunc) Set(on bool) error {
	return f(on)
}

// Backend bundles every output of the device: both pins, the status light and the tone registers.
type Backend interface {
	Indicator
	Registers

	// AlarmPin returns the speaker output.
	AlarmPin() Pin
	// AuxPin returns the auxiliary light output.
	AuxPin() Pin
}

var (
	_ Backend = (*Memory)(nil)
	_ Backend = (*Console)(nil)
	_ Backend = (*Modbus)(nil)
)
