// Package hal abstracts the physical outputs driven by the alarm controller.
//
// A Pin is a single on/off line (the alarm speaker, the auxiliary LED), an
// Indicator is the status light, and Registers accepts the compare and duty
// values of the tone timer. Memory records writes, Console renders them to a
// terminal, and Modbus forwards them to a Modbus TCP I/O module.
package hal
