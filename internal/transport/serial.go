package transport

import (
	"fmt"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// PortInfo describes a serial port found on the host.
type PortInfo struct {
	// Name is the device path, e.g. /dev/ttyUSB0 or COM3.
	Name string
	// IsUSB reports a USB serial adapter.
	IsUSB bool
	// VID is the USB vendor id.
	VID string
	// PID is the USB product id.
	PID string
	// SerialNumber is the USB serial number.
	SerialNumber string
	// Product is the USB product name, when known.
	Product string
}

// OpenSerial opens portName at baud, 8 data bits, no parity, one stop bit.
func OpenSerial(portName string, baud int) (*Stream, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", portName, err)
	}

	return NewStream(port), nil
}

// ListPorts enumerates the serial ports of the host.
func ListPorts() ([]PortInfo, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}

	result := make([]PortInfo, 0, len(ports))
	for _, p := range ports {
		result = append(result, PortInfo{
			Name:         p.Name,
			IsUSB:        p.IsUSB,
			VID:          p.VID,
			PID:          p.PID,
			SerialNumber: p.SerialNumber,
			Product:      p.Product,
		})
	}

	return result, nil
}
