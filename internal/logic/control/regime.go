// Package control holds the pure pivot-to-angle control law: the far/close
// regime classifier and the dual-regime pivot controller. Nothing here
// touches hardware; every function is driven by values passed in.
package control

import (
	"fmt"
	"math"
)

// Regime selects the control law applied on a tick.
type Regime int

const (
	// Far drives at a constant speed toward the target.
	Far Regime = iota
	// Close runs the PID law.
	Close
)

func (r Regime) String() string {
	switch r {
	case Far:
		return "FAR"
	case Close:
		return "CLOSE"
	default:
		return fmt.Sprintf("Regime(%d)", int(r))
	}
}

func (r Regime) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Classifier decides the regime from the angular error.
//
// EntryThresholdDeg is used once, when a command starts, against the
// initial error. SteadyThresholdDeg is used on every tick after that.
// An error whose magnitude equals a threshold counts as close. There is no
// debounce: an error hovering at the steady threshold switches regime on
// every tick it crosses.
type Classifier struct {
	EntryThresholdDeg  float64
	SteadyThresholdDeg float64
}

// Entry returns the regime a command starts in.
func (c Classifier) Entry(errDeg float64) Regime {
	return byThreshold(errDeg, c.EntryThresholdDeg)
}

// Classify returns the regime for the next tick. The current regime does
// not influence the result; it is taken so callers can log transitions.
func (c Classifier) Classify(errDeg float64, current Regime) Regime {
	return byThreshold(errDeg, c.SteadyThresholdDeg)
}

func byThreshold(errDeg, threshold float64) Regime {
	if math.Abs(errDeg) > threshold {
		return Far
	}
	return Close
}
