package gpio

import (
	"fmt"

	"github.com/cjeanneret/IntakeArm/internal/debug"
	"github.com/warthog618/go-gpiocdev"
)

// CdevDriver drives GPIO lines through the Linux GPIO character device
// (/dev/gpiochipN). Unlike go-rpio it does not need /dev/gpiomem and works
// on any board with a gpiochip.
type CdevDriver struct {
	chip  *gpiocdev.Chip
	lines map[int]*gpiocdev.Line
	modes map[int]PinMode
}

// NewCdevDriver opens the named chip, e.g. "gpiochip0".
func NewCdevDriver(chip string) (*CdevDriver, error) {
	debug.Info("Initializing GPIO character device driver on %s", chip)

	c, err := gpiocdev.NewChip(chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chip, err)
	}
	return &CdevDriver{
		chip:  c,
		lines: make(map[int]*gpiocdev.Line),
		modes: make(map[int]PinMode),
	}, nil
}

func (d *CdevDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)

	if l, ok := d.lines[pin]; ok {
		if err := l.Close(); err != nil {
			return fmt.Errorf("release line %d: %w", pin, err)
		}
		delete(d.lines, pin)
	}

	var (
		l   *gpiocdev.Line
		err error
	)
	switch mode {
	case Input:
		l, err = d.chip.RequestLine(pin, gpiocdev.AsInput)
	case InputPullUp:
		l, err = d.chip.RequestLine(pin, gpiocdev.AsInput, gpiocdev.WithPullUp)
	case Output:
		l, err = d.chip.RequestLine(pin, gpiocdev.AsOutput(0))
	default:
		return fmt.Errorf("unknown pin mode: %d", mode)
	}
	if err != nil {
		return fmt.Errorf("request line %d: %w", pin, err)
	}
	d.lines[pin] = l
	d.modes[pin] = mode
	return nil
}

func (d *CdevDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)

	if d.modes[pin] != Output || d.lines[pin] == nil {
		if err := d.SetupPin(pin, Output); err != nil {
			return err
		}
	}
	v := 0
	if level == High {
		v = 1
	}
	return d.lines[pin].SetValue(v)
}

func (d *CdevDriver) ReadPin(pin int) (Level, error) {
	if d.lines[pin] == nil {
		if err := d.SetupPin(pin, Input); err != nil {
			return Low, err
		}
	}
	v, err := d.lines[pin].Value()
	if err != nil {
		return Low, fmt.Errorf("read line %d: %w", pin, err)
	}
	debug.GPIO("ReadPin", pin, v)
	return Level(v != 0), nil
}

func (d *CdevDriver) Close() error {
	debug.Trace("GPIO Close (cdev driver)")

	for pin, l := range d.lines {
		if d.modes[pin] == Output {
			_ = l.SetValue(0)
			_ = l.Reconfigure(gpiocdev.AsInput)
		}
		_ = l.Close()
	}
	return d.chip.Close()
}
