package hal

import (
	"sync"

	"github.com/oshokin/smart-alarm/internal/domain/alarm"
)

// Memory is an in-process backend that records every write.
// It serves as the dry-run backend and as the test double for the controller.
type Memory struct {
	mu sync.Mutex

	alarm     []bool
	aux       []bool
	indicator []alarm.Color
	compare   []uint16
	duty      []uint8
}

// NewMemory creates an empty recorder.
func NewMemory() *Memory {
	return new(Memory)
}

// AlarmPin returns the Pin that records alarm output writes.
func (m *Memory) AlarmPin() Pin {
	return PinFunc(func(on bool) error {
		m.mu.Lock()
		defer m.mu.Unlock()

		m.alarm = append(m.alarm, on)

		return nil
	})
}

// AuxPin returns the Pin that records auxiliary output writes.
func (m *Memory) AuxPin() Pin {
	return PinFunc(func(on bool) error {
		m.mu.Lock()
		defer m.mu.Unlock()

		m.aux = append(m.aux, on)

		return nil
	})
}

// Show records an indicator write.
func (m *Memory) Show(color alarm.Color) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.indicator = append(m.indicator, color)

	return nil
}

// SetCompare records a compare register write.
func (m *Memory) SetCompare(value uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.compare = append(m.compare, value)

	return nil
}

// SetDuty records a duty register write.
func (m *Memory) SetDuty(duty uint8) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.duty = append(m.duty, duty)

	return nil
}

// AlarmWrites returns a copy of the alarm output history.
func (m *Memory) AlarmWrites() []bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]bool(nil), m.alarm...)
}

// AuxWrites returns a copy of the auxiliary output history.
func (m *Memory) AuxWrites() []bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]bool(nil), m.aux...)
}

// IndicatorWrites returns a copy of the indicator history.
func (m *Memory) IndicatorWrites() []alarm.Color {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]alarm.Color(nil), m.indicator...)
}

// CompareWrites returns a copy of the compare register history.
func (m *Memory) CompareWrites() []uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]uint16(nil), m.compare...)
}

// DutyWrites returns a copy of the duty register history.
func (m *Memory) DutyWrites() []uint8 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]uint8(nil), m.duty...)
}

// Reset clears all recorded writes.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.alarm, m.aux, m.indicator, m.compare, m.duty = nil, nil, nil, nil, nil
}
