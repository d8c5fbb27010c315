package motion

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/cjeanneret/IntakeArm/internal/config"
	"github.com/cjeanneret/IntakeArm/internal/hw/encoder"
	"github.com/cjeanneret/IntakeArm/internal/hw/gpio"
	"github.com/cjeanneret/IntakeArm/internal/hw/motor"
	"github.com/cjeanneret/IntakeArm/internal/hw/pwm"
	"github.com/cjeanneret/IntakeArm/internal/logic/geometry"
)

// scriptedEncoder returns raw or err and counts reads.
type scriptedEncoder struct {
	raw   uint16
	err   error
	reads int
}

func (e *scriptedEncoder) Raw() (uint16, error) {
	e.reads++
	return e.raw, e.err
}
func (e *scriptedEncoder) Close() error         { return nil }

const (
	pivotCh  = 0
	lowerCh  = 1
	higherCh = 2
	proxPin  = 17
)

func newTestArm(t *testing.T, sensor encoder.Sensor) (*Arm, *pwm.MockDriver, *gpio.MockDriver) {
	t.Helper()
	out := &pwm.MockDriver{}
	io := &gpio.MockDriver{}

	cfg := &config.Config{Arm: config.ArmConfig{EncoderCountsPerRev: 4096, EncoderGearRatio: 1}}
	arm, err := NewArm(
		motor.NewMotor(out, motor.Config{Name: "pivot", Channel: pivotCh}),
		motor.Group{
			motor.NewMotor(out, motor.Config{Name: "intake lower", Channel: lowerCh}),
			motor.NewMotor(out, motor.Config{Name: "intake higher", Channel: higherCh, Inverted: true}),
		},
		sensor,
		geometry.NewAngleCalculator(cfg),
		io,
		proxPin,
	)
	if err != nil {
		t.Fatalf("NewArm: %v", err)
	}
	return arm, out, io
}

func TestArm_Name(t *testing.T) {
	arm, _, _ := newTestArm(t, &scriptedEncoder{})
	if arm.Name() != "arm" {
		t.Errorf("Name() = %q", arm.Name())
	}
}

func TestArm_CurrentAngle(t *testing.T) {
	enc := &scriptedEncoder{raw: 1024}
	arm, _, _ := newTestArm(t, enc)

	if got := arm.CurrentAngle(); got != 90 {
		t.Errorf("CurrentAngle() = %v, want 90", got)
	}
	if got := arm.AngleError(100); got != 10 {
		t.Errorf("AngleError(100) = %v, want 10", got)
	}

	enc.raw = 3072 // 270° wraps to -90°
	if got := arm.CurrentAngle(); got != -90 {
		t.Errorf("CurrentAngle() = %v, want -90", got)
	}
}

func TestArm_CurrentAngleReadError(t *testing.T) {
	enc := &scriptedEncoder{err: errors.New("nack")}
	arm, _, _ := newTestArm(t, enc)

	if got := arm.CurrentAngle(); !math.IsNaN(got) {
		t.Errorf("no good read yet: CurrentAngle() = %v, want NaN", got)
	}

	enc.err = nil
	enc.raw = 512
	arm.CurrentAngle()

	enc.err = errors.New("nack")
	if got := arm.CurrentAngle(); got != 45 {
		t.Errorf("after a failed read CurrentAngle() = %v, want last good 45", got)
	}
}

func TestArm_SpeedPorts(t *testing.T) {
	arm, out, _ := newTestArm(t, &scriptedEncoder{})

	arm.Pivot().SetSpeed(0.5)
	arm.Intake().SetSpeed(1)

	if got := out.Pulse(pivotCh); got != 1750*time.Microsecond {
		t.Errorf("pivot pulse = %v, want 1.75ms", got)
	}
	if got := out.Pulse(lowerCh); got != 2000*time.Microsecond {
		t.Errorf("lower roller pulse = %v, want 2ms", got)
	}
	if got := out.Pulse(higherCh); got != 1000*time.Microsecond {
		t.Errorf("inverted higher roller pulse = %v, want 1ms", got)
	}

	snap := arm.Snapshot()
	if snap.PivotSpeed != 0.5 || snap.IntakeSpeed != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestArm_ZeroIsIdempotent(t *testing.T) {
	arm, out, _ := newTestArm(t, &scriptedEncoder{})
	arm.SetPivotSpeed(0.3)

	arm.SetPivotSpeed(0)
	arm.SetPivotSpeed(0)

	if got := out.Pulse(pivotCh); got != motor.DefaultNeutral {
		t.Errorf("pivot pulse = %v, want neutral", got)
	}
	if arm.Snapshot().PivotSpeed != 0 {
		t.Error("pivot speed should be 0")
	}
}

func TestArm_Stop(t *testing.T) {
	arm, out, _ := newTestArm(t, &scriptedEncoder{})
	arm.SetPivotSpeed(-1)
	arm.SetIntakeSpeed(0.8)

	if err := arm.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	for _, ch := range []int{pivotCh, lowerCh, higherCh} {
		if got := out.Pulse(ch); got != motor.DefaultNeutral {
			t.Errorf("channel %d pulse = %v, want neutral", ch, got)
		}
	}
}

func TestArm_IsLoaded(t *testing.T) {
	arm, _, io := newTestArm(t, &scriptedEncoder{})

	if arm.IsLoaded() {
		t.Error("empty intake reported loaded")
	}
	io.SetInput(proxPin, gpio.High)
	if !arm.IsLoaded() {
		t.Error("loaded intake not reported")
	}
	if !arm.Snapshot().Loaded {
		t.Error("snapshot should report loaded")
	}
}

func TestArm_SnapshotUsesCachedReadings(t *testing.T) {
	enc := &scriptedEncoder{raw: 1024}
	arm, _, io := newTestArm(t, enc)

	snap := arm.Snapshot()
	if snap.AngleDeg != nil {
		t.Errorf("angle before any read = %v, want nil", *snap.AngleDeg)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"pivot_speed":0,"intake_speed":0,"loaded":false}` {
		t.Errorf("snapshot JSON = %s", data)
	}

	arm.CurrentAngle()
	io.SetInput(proxPin, gpio.High)
	arm.IsLoaded()
	reads := enc.reads

	enc.raw = 2048
	io.SetInput(proxPin, gpio.Low)
	snap = arm.Snapshot()

	if enc.reads != reads {
		t.Errorf("Snapshot read the encoder %d times", enc.reads-reads)
	}
	if snap.AngleDeg == nil || *snap.AngleDeg != 90 {
		t.Errorf("snapshot angle = %v, want cached 90", snap.AngleDeg)
	}
	if !snap.Loaded {
		t.Error("snapshot should report the cached loaded reading")
	}
}

func TestArm_NoProximitySensor(t *testing.T) {
	out := &pwm.MockDriver{}
	cfg := &config.Config{Arm: config.ArmConfig{EncoderCountsPerRev: 4096, EncoderGearRatio: 1}}
	arm, err := NewArm(motor.NewMotor(out, motor.Config{}), nil, &scriptedEncoder{}, geometry.NewAngleCalculator(cfg), nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if arm.IsLoaded() {
		t.Error("arm without a proximity sensor reported loaded")
	}
	arm.SetIntakeSpeed(1) // empty group
}

func TestArm_DrivesSimulatedEncoder(t *testing.T) {
	sim := encoder.NewSim(0, 90, 4096)
	arm, _, _ := newTestArm(t, sim)

	arm.SetPivotSpeed(1)
	time.Sleep(50 * time.Millisecond)
	arm.SetPivotSpeed(0)

	got := arm.CurrentAngle()
	if got <= 0 || got > 45 {
		t.Errorf("simulated joint at %v° after ~50ms at 90°/s", got)
	}

	still := arm.CurrentAngle()
	time.Sleep(10 * time.Millisecond)
	if arm.CurrentAngle() != still {
		t.Error("joint moved after the pivot stopped")
	}
}
