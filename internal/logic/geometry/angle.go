package geometry

import (
	"math"

	"github.com/cjeanneret/IntakeArm/internal/config"
)

// AngleCalculator converts raw encoder counts to arm angles.
type AngleCalculator struct {
	degreesPerCount float64
	offsetDeg       float64
	inverted        bool
}

// NewAngleCalculator creates an angle calculator from configuration.
func NewAngleCalculator(cfg *config.Config) *AngleCalculator {
	// One encoder revolution is 1/gear of an arm revolution.
	countsPerArmRev := float64(cfg.Arm.EncoderCountsPerRev) * cfg.Arm.EncoderGearRatio

	return &AngleCalculator{
		degreesPerCount: 360.0 / countsPerArmRev,
		offsetDeg:       cfg.Arm.EncoderOffsetDeg,
		inverted:        cfg.Arm.EncoderInverted,
	}
}

// DegreesFromRaw converts a raw encoder reading to an arm angle in
// degrees, wrapped to (-180, 180].
func (a *AngleCalculator) DegreesFromRaw(raw uint16) float64 {
	deg := float64(raw) * a.degreesPerCount
	if a.inverted {
		deg = -deg
	}
	return WrapDegrees(deg + a.offsetDeg)
}

// RawFromDegrees is the inverse of DegreesFromRaw for angles inside one
// encoder revolution. Used to seed simulated encoders.
func (a *AngleCalculator) RawFromDegrees(deg float64) float64 {
	deg -= a.offsetDeg
	if a.inverted {
		deg = -deg
	}
	return deg / a.degreesPerCount
}

// DegreesPerCount returns the arm rotation represented by one encoder count.
func (a *AngleCalculator) DegreesPerCount() float64 {
	return a.degreesPerCount
}

// WrapDegrees maps any angle to (-180, 180].
func WrapDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg <= -180 {
		deg += 360
	} else if deg > 180 {
		deg -= 360
	}
	return deg
}
