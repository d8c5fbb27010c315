// Package pwm emits RC servo-style pulses (1-2 ms every 20 ms) that
// PWM motor controllers (SPARK MAX, Talon SRX, Victor SP...) accept as a
// speed command.
package pwm

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/cjeanneret/IntakeArm/internal/config"
	"github.com/cjeanneret/IntakeArm/internal/debug"
)

// pca9685Resolution is the number of ticks per PWM frame on a PCA9685.
const pca9685Resolution = 4096

// Driver sets the high-time of the pulse emitted on a channel.
// A zero width stops the pulse, which motor controllers treat as neutral.
type Driver interface {
	SetPulse(channel int, width time.Duration) error
	Close() error
}

// NewDriver creates a PWM driver for cfg.PWMBackend.
func NewDriver(cfg config.HardwareConfig) (Driver, error) {
	switch cfg.PWMBackend {
	case "mock", "":
		debug.Info("Using MOCK PWM driver (development mode)")
		return &MockDriver{}, nil
	case "rpio":
		return NewRPiPWM(cfg.PWMFreqHz)
	case "pca9685":
		return NewPeriphPCA9685(cfg.I2CBus, cfg.PCA9685Addr, cfg.PWMFreqHz)
	case "gobot":
		return NewGobotPCA9685(cfg.PCA9685Addr, cfg.PWMFreqHz)
	default:
		return nil, fmt.Errorf("unknown pwm backend: %q", cfg.PWMBackend)
	}
}

// Ticks converts a pulse width into a count of resolution-sized ticks of a
// frame running at freqHz. The result is clamped to [0, resolution-1].
func Ticks(width time.Duration, freqHz float64, resolution int) int {
	if width <= 0 || freqHz <= 0 {
		return 0
	}
	t := int(math.Round(width.Seconds() * freqHz * float64(resolution)))
	if t >= resolution {
		t = resolution - 1
	}
	return t
}

// MockDriver records the last pulse written to each channel.
type MockDriver struct {
	mu     sync.Mutex
	pulses map[int]time.Duration
	writes int
}

func (m *MockDriver) SetPulse(channel int, width time.Duration) error {
	debug.PWM("mock", channel, width.Microseconds())
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pulses == nil {
		m.pulses = make(map[int]time.Duration)
	}
	m.pulses[channel] = width
	m.writes++
	return nil
}

// Pulse returns the last width written to channel.
func (m *MockDriver) Pulse(channel int) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pulses[channel]
}

// Writes returns the number of SetPulse calls.
func (m *MockDriver) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *MockDriver) Close() error {
	debug.Trace("PWM Close (mock)")
	return nil
}
