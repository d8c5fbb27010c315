package gpio

import (
	"fmt"
	"sync"

	"github.com/cjeanneret/IntakeArm/internal/debug"
)

// Level represents the logical state of a GPIO pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// PinMode indicates whether a GPIO is input or output.
type PinMode int

const (
	Input PinMode = iota
	Output
	InputPullUp
)

// Driver defines the abstract interface for controlling GPIOs.
// This allows plugging in a real Raspberry Pi implementation
// or a mock for development on PC.
type Driver interface {
	SetupPin(pin int, mode PinMode) error
	WritePin(pin int, level Level) error
	ReadPin(pin int) (Level, error)
	Close() error
}

// MockDriver is a test implementation that logs actions and
// remembers pin levels. Inputs can be scripted with SetInput.
// The zero value is ready to use.
type MockDriver struct {
	mu     sync.Mutex
	levels map[int]Level
}

// NewDriver creates a GPIO driver for the given backend.
// "mock" returns a MockDriver (for dev/test), "rpio" the go-rpio
// memory-mapped driver and "cdev" the character device driver on chip.
func NewDriver(backend, chip string) (Driver, error) {
	switch backend {
	case "mock", "":
		debug.Info("Using MOCK GPIO driver (development mode)")
		return &MockDriver{}, nil
	case "rpio":
		return NewRPiRealDriver()
	case "cdev":
		return NewCdevDriver(chip)
	default:
		return nil, fmt.Errorf("unknown gpio backend: %q", backend)
	}
}

// SetInput sets the level that ReadPin reports for pin.
func (m *MockDriver) SetInput(pin int, level Level) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.levels == nil {
		m.levels = make(map[int]Level)
	}
	m.levels[pin] = level
}

func (m *MockDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	return nil
}

func (m *MockDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	m.SetInput(pin, level)
	return nil
}

func (m *MockDriver) ReadPin(pin int) (Level, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	level := m.levels[pin]
	debug.GPIO("ReadPin", pin, level)
	return level, nil
}

func (m *MockDriver) Close() error {
	debug.Trace("GPIO Close (mock)")
	return nil
}
