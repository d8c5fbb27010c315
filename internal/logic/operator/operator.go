// Package operator turns operator inputs into command signals.
package operator

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cjeanneret/IntakeArm/internal/debug"
	"github.com/cjeanneret/IntakeArm/internal/hw/gpio"
)

// Button is the intake button. The intake runs while it is held, so a
// cancel is requested as soon as it reads released.
type Button struct {
	drv       gpio.Driver
	pin       int
	activeLow bool
}

// NewButton configures pin as an input. With activeLow the internal
// pull-up is enabled and a pressed button reads LOW.
func NewButton(drv gpio.Driver, pin int, activeLow bool) (*Button, error) {
	mode := gpio.Input
	if activeLow {
		mode = gpio.InputPullUp
	}
	if err := drv.SetupPin(pin, mode); err != nil {
		return nil, fmt.Errorf("setup intake button pin %d: %w", pin, err)
	}
	return &Button{drv: drv, pin: pin, activeLow: activeLow}, nil
}

// Pressed reads the button.
func (b *Button) Pressed() (bool, error) {
	level, err := b.drv.ReadPin(b.pin)
	if err != nil {
		return false, err
	}
	if b.activeLow {
		return level == gpio.Low, nil
	}
	return level == gpio.High, nil
}

// IsRequested reports a release. A read failure counts as a release.
func (b *Button) IsRequested() bool {
	pressed, err := b.Pressed()
	if err != nil {
		debug.Error(fmt.Errorf("read intake button: %w", err))
		return true
	}
	return !pressed
}

// Latch is a software cancel input, set from another goroutine (HTTP
// handler, signal handler) and polled by the command.
type Latch struct {
	released atomic.Bool
}

// Release requests a cancel.
func (l *Latch) Release() {
	l.released.Store(true)
}

// Reset clears the request before a new activation.
func (l *Latch) Reset() {
	l.released.Store(false)
}

func (l *Latch) IsRequested() bool {
	return l.released.Load()
}

// Signal is anything that can request a cancel.
type Signal interface {
	IsRequested() bool
}

// Any requests a cancel when at least one of its signals does. Nil
// entries are skipped.
type Any []Signal

func (a Any) IsRequested() bool {
	for _, s := range a {
		if s != nil && s.IsRequested() {
			return true
		}
	}
	return false
}

// SystemClock is a monotonic millisecond clock starting at zero.
type SystemClock struct {
	start time.Time
}

func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

func (c *SystemClock) NowMillis() int64 {
	return time.Since(c.start).Milliseconds()
}
