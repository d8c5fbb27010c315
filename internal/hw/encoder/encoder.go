package encoder

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/cjeanneret/IntakeArm/internal/debug"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// Sensor is an absolute rotary encoder reporting raw counts.
type Sensor interface {
	Raw() (uint16, error)
	Close() error
}

// as5600RawAngle is the RAW ANGLE register pair (0x0C high nibble, 0x0D low byte).
const as5600RawAngle = 0x0C

// AS5600 is a 12-bit magnetic absolute encoder on I2C.
type AS5600 struct {
	bus i2c.BusCloser
	dev *i2c.Dev
}

// NewAS5600 opens busName ("" for the first bus) and addresses the sensor at addr.
func NewAS5600(busName string, addr uint16) (*AS5600, error) {
	debug.Info("Initializing AS5600 encoder at 0x%02x", addr)

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", busName, err)
	}
	return &AS5600{
		bus: bus,
		dev: &i2c.Dev{Bus: bus, Addr: addr},
	}, nil
}

// Raw returns the unscaled angle, 0-4095.
func (a *AS5600) Raw() (uint16, error) {
	buf := make([]byte, 2)
	if err := a.dev.Tx([]byte{as5600RawAngle}, buf); err != nil {
		return 0, fmt.Errorf("read as5600: %w", err)
	}
	raw := uint16(buf[0]&0x0F)<<8 | uint16(buf[1])
	debug.Trace("AS5600 raw=%d", raw)
	return raw, nil
}

func (a *AS5600) Close() error {
	return a.bus.Close()
}

// Sim is a simulated encoder on a motor-driven joint. The joint turns at
// DegPerSec * speed, where speed is the last value passed to Drive.
// It is used in mock mode so the control loop has a plant to act on.
type Sim struct {
	DegPerSec    float64
	CountsPerRev int

	mu    sync.Mutex
	angle float64 // degrees, [0, 360)
	speed float64
	last  time.Time
	now   func() time.Time
}

// NewSim creates a simulated joint starting at startDeg.
func NewSim(startDeg, degPerSec float64, countsPerRev int) *Sim {
	return &Sim{
		DegPerSec:    degPerSec,
		CountsPerRev: countsPerRev,
		angle:        wrap360(startDeg),
		now:          time.Now,
	}
}

// Drive sets the motor speed acting on the joint from now on.
func (s *Sim) Drive(speed float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()
	s.speed = speed
}

// Angle returns the simulated joint angle in degrees.
func (s *Sim) Angle() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()
	return s.angle
}

func (s *Sim) Raw() (uint16, error) {
	a := s.Angle()
	return uint16(math.Round(a/360*float64(s.CountsPerRev))) % uint16(s.CountsPerRev), nil
}

func (s *Sim) Close() error { return nil }

func (s *Sim) advance() {
	t := s.now()
	if !s.last.IsZero() {
		s.angle = wrap360(s.angle + s.speed*s.DegPerSec*t.Sub(s.last).Seconds())
	}
	s.last = t
}

func wrap360(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}
