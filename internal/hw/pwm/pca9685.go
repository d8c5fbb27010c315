package pwm

import (
	"fmt"
	"time"

	"github.com/cjeanneret/IntakeArm/internal/debug"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/pca9685"
	"periph.io/x/host/v3"
)

// PeriphPCA9685 drives a PCA9685 16-channel PWM board with periph.io.
type PeriphPCA9685 struct {
	bus    i2c.BusCloser
	dev    *pca9685.Dev
	freqHz float64
	used   map[int]struct{}
}

// NewPeriphPCA9685 opens busName ("" for the first bus) and configures the
// board at addr for freqHz frames.
func NewPeriphPCA9685(busName string, addr uint16, freqHz float64) (*PeriphPCA9685, error) {
	debug.Info("Initializing PCA9685 PWM driver (periph) at 0x%02x", addr)

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", busName, err)
	}
	dev, err := pca9685.NewI2C(bus, addr)
	if err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("open pca9685: %w", err)
	}
	if err := dev.SetPwmFreq(physic.Frequency(freqHz * float64(physic.Hertz))); err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("set pca9685 frequency: %w", err)
	}
	return &PeriphPCA9685{
		bus:    bus,
		dev:    dev,
		freqHz: freqHz,
		used:   make(map[int]struct{}),
	}, nil
}

func (p *PeriphPCA9685) SetPulse(channel int, width time.Duration) error {
	ticks := Ticks(width, p.freqHz, pca9685Resolution)
	debug.PWM("pca9685", channel, width.Microseconds())
	p.used[channel] = struct{}{}
	return p.dev.SetPwm(channel, 0, gpio.Duty(ticks))
}

func (p *PeriphPCA9685) Close() error {
	debug.Trace("PWM Close (pca9685)")
	for ch := range p.used {
		_ = p.dev.SetPwm(ch, 0, 0)
	}
	return p.bus.Close()
}
