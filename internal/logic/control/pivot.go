package control

import "math"

// CloseOutput selects what the close regime sends to the actuator.
type CloseOutput int

const (
	// OutputDirect drives BaseSpeed * sign(error) in the close regime too.
	// The PID terms are still computed and recorded in PIDState.
	OutputDirect CloseOutput = iota
	// OutputPID drives the clamped PID signal.
	OutputPID
)

// Gains are the PID coefficients.
type Gains struct {
	Kp, Ki, Kd float64
}

// PIDState is the per-activation controller memory. It is owned by one
// command and reset only when that command initializes.
//
// Integral and Derivative both accumulate across close-regime ticks and
// are never reset on regime changes.
type PIDState struct {
	PreviousError float64 `json:"previous_error"`
	Proportional  float64 `json:"p"`
	Integral      float64 `json:"i"`
	Derivative    float64 `json:"d"`
	Signal        float64 `json:"signal"`  // Proportional + Integral + Derivative
	Clamped       float64 `json:"clamped"` // Signal pushed away from zero by the output offset, then clamped to [-1, 1]
}

// Reset clears the accumulators and seeds the previous error.
func (s *PIDState) Reset(initialError float64) {
	*s = PIDState{PreviousError: initialError}
}

// PivotController computes the pivot speed for one tick.
type PivotController struct {
	Gains        Gains
	BaseSpeed    float64 // far-regime magnitude, 0-1
	CloseOutput  CloseOutput
	OutputOffset float64 // minimum |output| added to a non-zero PID signal
}

// Step advances the controller by one tick and returns the pivot speed.
// It always updates pid.PreviousError; in the close regime it also
// updates the PID terms.
func (c PivotController) Step(target, current float64, pid *PIDState, regime Regime) float64 {
	errDeg := target - current
	diff := errDeg - pid.PreviousError
	pid.PreviousError = errDeg

	direct := c.BaseSpeed * Sign(errDeg)

	if regime != Close {
		return direct
	}

	pid.Proportional = c.Gains.Kp * errDeg
	pid.Integral += c.Gains.Ki * errDeg
	pid.Derivative += c.Gains.Kd * diff
	pid.Signal = pid.Proportional + pid.Integral + pid.Derivative
	pid.Clamped = Clamp(pid.Signal+Sign(pid.Signal)*c.OutputOffset, -1, 1)

	if c.CloseOutput == OutputPID {
		return pid.Clamped
	}
	return direct
}

// Sign returns -1, 0 or +1. Zero and NaN both map to 0.
func Sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

// Clamp limits x to [lo, hi]. NaN is treated as 0.
func Clamp(x, lo, hi float64) float64 {
	if math.IsNaN(x) {
		return Clamp(0, lo, hi)
	}
	return math.Max(lo, math.Min(hi, x))
}
