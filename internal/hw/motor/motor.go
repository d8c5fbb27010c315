package motor

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/cjeanneret/IntakeArm/internal/debug"
	"github.com/cjeanneret/IntakeArm/internal/hw/pwm"
)

// Standard RC PWM timing: 1.0 ms full reverse, 1.5 ms neutral, 2.0 ms full forward.
const (
	DefaultNeutral = 1500 * time.Microsecond
	DefaultSpan    = 500 * time.Microsecond
)

// Config holds the hardware configuration for a PWM motor controller.
type Config struct {
	Name     string
	Channel  int
	Inverted bool
	Neutral  time.Duration // pulse width at speed 0. 0 = DefaultNeutral.
	Span     time.Duration // pulse width added at speed 1. 0 = DefaultSpan.
}

// Motor drives one PWM motor controller with a normalized speed.
// Acceleration limiting, current limits, etc. live in the controller itself.
type Motor struct {
	pwm pwm.Driver
	cfg Config

	mu    sync.Mutex
	speed float64
}

// NewMotor creates a motor and commands neutral so the controller arms.
func NewMotor(p pwm.Driver, cfg Config) *Motor {
	if cfg.Neutral <= 0 {
		cfg.Neutral = DefaultNeutral
	}
	if cfg.Span <= 0 {
		cfg.Span = DefaultSpan
	}

	m := &Motor{
		pwm: p,
		cfg: cfg,
	}
	if err := p.SetPulse(cfg.Channel, cfg.Neutral); err != nil {
		debug.Error(fmt.Errorf("motor %s: arm at neutral: %w", cfg.Name, err))
	}
	return m
}

// PulseForSpeed maps a speed in [-1, 1] to a pulse width. Values outside
// the range are clamped and NaN maps to neutral.
func PulseForSpeed(speed float64, neutral, span time.Duration) time.Duration {
	if math.IsNaN(speed) {
		speed = 0
	}
	speed = math.Max(-1, math.Min(1, speed))
	return neutral + time.Duration(math.Round(speed*float64(span)))
}

// SetSpeed commands a speed in [-1, 1] (positive = forward unless inverted).
func (m *Motor) SetSpeed(speed float64) error {
	if math.IsNaN(speed) {
		speed = 0
	}
	speed = math.Max(-1, math.Min(1, speed))

	m.mu.Lock()
	defer m.mu.Unlock()
	if speed != m.speed {
		debug.Speed(m.cfg.Name, speed)
	}
	m.speed = speed

	out := speed
	if m.cfg.Inverted {
		out = -out
	}
	return m.pwm.SetPulse(m.cfg.Channel, PulseForSpeed(out, m.cfg.Neutral, m.cfg.Span))
}

// Speed returns the last commanded speed, before inversion.
func (m *Motor) Speed() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speed
}

// Stop commands neutral.
func (m *Motor) Stop() error {
	return m.SetSpeed(0)
}

// Name returns the configured motor name.
func (m *Motor) Name() string {
	return m.cfg.Name
}

// Group drives several motors with the same speed (leader and followers).
type Group []*Motor

// SetSpeed commands every motor and reports all failures.
func (g Group) SetSpeed(speed float64) error {
	var errs []error
	for _, m := range g {
		if err := m.SetSpeed(speed); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Speed returns the speed of the first motor in the group.
func (g Group) Speed() float64 {
	if len(g) == 0 {
		return 0
	}
	return g[0].Speed()
}
