package hal

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"

	"github.com/oshokin/smart-alarm/internal/domain/alarm"
)

// Coil values defined by the Modbus write-single-coil function.
const (
	coilOn  uint16 = 0xFF00
	coilOff uint16 = 0x0000
)

// ModbusConfig describes where the outputs live on a Modbus TCP I/O module.
type ModbusConfig struct {
	// Endpoint is the host:port of the Modbus TCP server.
	Endpoint string
	// UnitID is the slave id of the module.
	UnitID uint8
	// Timeout bounds every request.
	Timeout time.Duration
	// AlarmCoil is the coil wired to the speaker relay.
	AlarmCoil uint16
	// AuxCoil is the coil wired to the auxiliary light.
	AuxCoil uint16
	// IndicatorRegister receives the palette index of the status light.
	IndicatorRegister uint16
	// CompareRegister receives the tone timer compare value.
	CompareRegister uint16
	// DutyRegister receives the tone duty value.
	DutyRegister uint16
}

// coilWriter is the subset of modbus.Client used by the backend.
type coilWriter interface {
	WriteSingleCoil(address, value uint16) ([]byte, error)
	WriteSingleRegister(address, value uint16) ([]byte, error)
}

// Modbus drives outputs through a Modbus TCP module.
// It serializes requests because the underlying handler is not safe for concurrent use.
type Modbus struct {
	mu      sync.Mutex
	cfg     ModbusConfig
	handler *modbus.TCPClientHandler
	client  coilWriter
}

var errEndpointRequired = errors.New("modbus endpoint required")

// DialModbus connects to the module described by cfg.
func DialModbus(cfg ModbusConfig) (*Modbus, error) {
	if cfg.Endpoint == "" {
		return nil, errEndpointRequired
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout
	h.SlaveId = cfg.UnitID

	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("connect modbus %s: %w", cfg.Endpoint, err)
	}

	return &Modbus{
		cfg:     cfg,
		handler: h,
		client:  modbus.NewClient(h),
	}, nil
}

// Close releases the TCP connection.
func (m *Modbus) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handler == nil {
		return nil
	}

	return m.handler.Close()
}

// AlarmPin returns the Pin bound to the alarm coil.
func (m *Modbus) AlarmPin() Pin {
	return PinFunc(func(on bool) error {
		return m.writeCoil(m.cfg.AlarmCoil, on)
	})
}

// AuxPin returns the Pin bound to the auxiliary coil.
func (m *Modbus) AuxPin() Pin {
	return PinFunc(func(on bool) error {
		return m.writeCoil(m.cfg.AuxCoil, on)
	})
}

// Show writes the palette index to the indicator register.
func (m *Modbus) Show(color alarm.Color) error {
	return m.writeRegister(m.cfg.IndicatorRegister, uint16(color))
}

// SetCompare writes the tone compare register.
func (m *Modbus) SetCompare(value uint16) error {
	return m.writeRegister(m.cfg.CompareRegister, value)
}

// SetDuty writes the tone duty register.
func (m *Modbus) SetDuty(duty uint8) error {
	return m.writeRegister(m.cfg.DutyRegister, uint16(duty))
}

func (m *Modbus) writeCoil(address uint16, on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	value := coilOff
	if on {
		value = coilOn
	}

	if _, err := m.client.WriteSingleCoil(address, value); err != nil {
		return fmt.Errorf("write coil %d: %w", address, err)
	}

	return nil
}

func (m *Modbus) writeRegister(address, value uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.client.WriteSingleRegister(address, value); err != nil {
		return fmt.Errorf("write register %d: %w", address, err)
	}

	return nil
}
