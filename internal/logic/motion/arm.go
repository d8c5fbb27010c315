package motion

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/cjeanneret/IntakeArm/internal/debug"
	"github.com/cjeanneret/IntakeArm/internal/hw/encoder"
	"github.com/cjeanneret/IntakeArm/internal/hw/gpio"
	"github.com/cjeanneret/IntakeArm/internal/hw/motor"
	"github.com/cjeanneret/IntakeArm/internal/logic/geometry"
)

// Arm is the intake arm subsystem: the pivot motor, the two intake
// rollers, the pivot encoder and the "loaded" proximity sensor.
// It's the layer between commands (pivot to angle, intake) and the
// low-level drivers (PWM, I2C, GPIO).
type Arm struct {
	pivot  *motor.Motor
	intake motor.Group
	sensor encoder.Sensor
	angles *geometry.AngleCalculator

	io           gpio.Driver
	proximityPin int

	mu         sync.Mutex
	lastAngle  float64 // NaN until the first good read
	lastLoaded bool
}

// Snapshot is the observable state of the arm. AngleDeg is nil until
// the encoder has been read successfully.
type Snapshot struct {
	AngleDeg    *float64 `json:"angle_deg,omitempty"`
	PivotSpeed  float64  `json:"pivot_speed"`
	IntakeSpeed float64  `json:"intake_speed"`
	Loaded      bool     `json:"loaded"`
}

// SpeedFunc adapts a speed setter to the actuator port commands expect.
type SpeedFunc func(speed float64)

func (f SpeedFunc) SetSpeed(speed float64) { f(speed) }

// NewArm creates the arm. io and proximityPin may be zero when no
// proximity sensor is wired.
func NewArm(pivot *motor.Motor, intake motor.Group, sensor encoder.Sensor, angles *geometry.AngleCalculator, io gpio.Driver, proximityPin int) (*Arm, error) {
	if io != nil && proximityPin > 0 {
		if err := io.SetupPin(proximityPin, gpio.Input); err != nil {
			return nil, fmt.Errorf("setup proximity pin %d: %w", proximityPin, err)
		}
	}
	return &Arm{
		pivot:        pivot,
		intake:       intake,
		sensor:       sensor,
		angles:       angles,
		io:           io,
		proximityPin: proximityPin,
		lastAngle:    math.NaN(),
	}, nil
}

func (a *Arm) Name() string { return "arm" }

// CurrentAngle reads the encoder. On a read error the last good angle is
// returned, or NaN if there never was one.
func (a *Arm) CurrentAngle() float64 {
	raw, err := a.sensor.Raw()

	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		debug.Error(fmt.Errorf("arm encoder: %w", err))
		return a.lastAngle
	}
	a.lastAngle = a.angles.DegreesFromRaw(raw)
	return a.lastAngle
}

// AngleError returns target minus the current angle.
func (a *Arm) AngleError(targetDeg float64) float64 {
	return targetDeg - a.CurrentAngle()
}

// SetPivotSpeed drives the pivot. Errors are logged; the next tick
// writes again.
func (a *Arm) SetPivotSpeed(speed float64) {
	if err := a.pivot.SetSpeed(speed); err != nil {
		debug.Error(fmt.Errorf("pivot motor: %w", err))
	}
	if sim, ok := a.sensor.(*encoder.Sim); ok {
		sim.Drive(a.pivot.Speed())
	}
}

// SetIntakeSpeed drives both rollers.
func (a *Arm) SetIntakeSpeed(speed float64) {
	if err := a.intake.SetSpeed(speed); err != nil {
		debug.Error(fmt.Errorf("intake motors: %w", err))
	}
}

// Pivot returns the pivot motor as an actuator port.
func (a *Arm) Pivot() SpeedFunc { return a.SetPivotSpeed }

// Intake returns the intake rollers as an actuator port.
func (a *Arm) Intake() SpeedFunc { return a.SetIntakeSpeed }

// IsLoaded reports whether the proximity sensor sees a game piece.
func (a *Arm) IsLoaded() bool {
	if a.io == nil || a.proximityPin <= 0 {
		return false
	}
	level, err := a.io.ReadPin(a.proximityPin)
	if err != nil {
		debug.Error(fmt.Errorf("proximity sensor: %w", err))
		level = gpio.Low
	}
	loaded := level == gpio.High

	a.mu.Lock()
	a.lastLoaded = loaded
	a.mu.Unlock()
	return loaded
}

// Stop commands neutral on every motor.
func (a *Arm) Stop() error {
	err := errors.Join(a.pivot.Stop(), a.intake.SetSpeed(0))
	if sim, ok := a.sensor.(*encoder.Sim); ok {
		sim.Drive(0)
	}
	return err
}

// Snapshot returns the last sensor readings and commanded speeds. It
// does not touch the hardware, so it is safe to call while a command
// owns the arm.
func (a *Arm) Snapshot() Snapshot {
	a.mu.Lock()
	snap := Snapshot{Loaded: a.lastLoaded}
	if !math.IsNaN(a.lastAngle) {
		angle := a.lastAngle
		snap.AngleDeg = &angle
	}
	a.mu.Unlock()

	snap.PivotSpeed = a.pivot.Speed()
	snap.IntakeSpeed = a.intake.Speed()
	return snap
}
