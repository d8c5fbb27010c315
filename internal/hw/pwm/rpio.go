package pwm

import (
	"fmt"
	"time"

	"github.com/cjeanneret/IntakeArm/internal/debug"
	"github.com/stianeikeland/go-rpio/v4"
)

// rpioCycleLen is the PWM range: one count per microsecond of a 20 ms frame.
const rpioCycleLen = 20000

// RPiPWM drives the Raspberry Pi hardware PWM peripheral through go-rpio.
// Channels are BCM pin numbers and must be PWM capable (12, 13, 18, 19).
type RPiPWM struct {
	freqHz float64
	pins   map[int]rpio.Pin
}

// NewRPiPWM maps GPIO memory and prepares the PWM clock for freqHz frames.
func NewRPiPWM(freqHz float64) (*RPiPWM, error) {
	debug.Info("Initializing hardware PWM driver (go-rpio)")

	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("failed to open GPIO for PWM: %w (are you running on a Raspberry Pi?)", err)
	}
	return &RPiPWM{
		freqHz: freqHz,
		pins:   make(map[int]rpio.Pin),
	}, nil
}

func (r *RPiPWM) SetPulse(channel int, width time.Duration) error {
	switch channel {
	case 12, 13, 18, 19:
	default:
		return fmt.Errorf("pin %d has no hardware PWM", channel)
	}

	p, ok := r.pins[channel]
	if !ok {
		p = rpio.Pin(channel)
		p.Pwm()
		p.Freq(int(r.freqHz * rpioCycleLen))
		r.pins[channel] = p
	}

	duty := Ticks(width, r.freqHz, rpioCycleLen)
	debug.PWM("rpio", channel, width.Microseconds())
	p.DutyCycle(uint32(duty), rpioCycleLen)
	return nil
}

// Close stops every pulse. The GPIO mapping itself is left to rpio.Close
// in the gpio driver, which may share it.
func (r *RPiPWM) Close() error {
	debug.Trace("PWM Close (rpio)")
	for _, p := range r.pins {
		p.DutyCycle(0, rpioCycleLen)
		p.Input()
	}
	return nil
}
