package pwm

import (
	"fmt"
	"time"

	"github.com/cjeanneret/IntakeArm/internal/debug"
	"gobot.io/x/gobot/drivers/i2c"
	"gobot.io/x/gobot/platforms/raspi"
)

// GobotPCA9685 drives the same board through gobot's i2c driver on a
// Raspberry Pi adaptor.
type GobotPCA9685 struct {
	adaptor *raspi.Adaptor
	drv     *i2c.PCA9685Driver
	freqHz  float64
	used    map[int]struct{}
}

// NewGobotPCA9685 connects to the board at addr and configures freqHz frames.
func NewGobotPCA9685(addr uint16, freqHz float64) (*GobotPCA9685, error) {
	debug.Info("Initializing PCA9685 PWM driver (gobot) at 0x%02x", addr)

	r := raspi.NewAdaptor()
	if err := r.Connect(); err != nil {
		return nil, fmt.Errorf("connect raspi adaptor: %w", err)
	}
	drv := i2c.NewPCA9685Driver(r, i2c.WithAddress(int(addr)))
	if err := drv.Start(); err != nil {
		_ = r.Finalize()
		return nil, fmt.Errorf("start pca9685: %w", err)
	}
	if err := drv.SetPWMFreq(float32(freqHz)); err != nil {
		_ = drv.Halt()
		_ = r.Finalize()
		return nil, fmt.Errorf("set pca9685 frequency: %w", err)
	}
	return &GobotPCA9685{
		adaptor: r,
		drv:     drv,
		freqHz:  freqHz,
		used:    make(map[int]struct{}),
	}, nil
}

func (g *GobotPCA9685) SetPulse(channel int, width time.Duration) error {
	ticks := Ticks(width, g.freqHz, pca9685Resolution)
	debug.PWM("gobot", channel, width.Microseconds())
	g.used[channel] = struct{}{}
	return g.drv.SetPWM(channel, 0, uint16(ticks))
}

func (g *GobotPCA9685) Close() error {
	debug.Trace("PWM Close (gobot)")
	for ch := range g.used {
		_ = g.drv.SetPWM(ch, 0, 0)
	}
	if err := g.drv.Halt(); err != nil {
		return err
	}
	return g.adaptor.Finalize()
}
