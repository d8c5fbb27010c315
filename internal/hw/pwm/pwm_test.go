package pwm

import (
	"testing"
	"time"

	"github.com/cjeanneret/IntakeArm/internal/config"
)

func TestTicks(t *testing.T) {
	cases := []struct {
		name       string
		width      time.Duration
		freqHz     float64
		resolution int
		want       int
	}{
		{"neutral_pca9685", 1500 * time.Microsecond, 50, 4096, 307},
		{"full_reverse_pca9685", 1000 * time.Microsecond, 50, 4096, 205},
		{"full_forward_pca9685", 2000 * time.Microsecond, 50, 4096, 410},
		{"neutral_rpio", 1500 * time.Microsecond, 50, 20000, 1500},
		{"zero_width", 0, 50, 4096, 0},
		{"negative_width", -time.Millisecond, 50, 4096, 0},
		{"zero_freq", time.Millisecond, 0, 4096, 0},
		{"full_frame_clamped", 20 * time.Millisecond, 50, 4096, 4095},
		{"over_frame_clamped", time.Second, 50, 4096, 4095},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Ticks(tc.width, tc.freqHz, tc.resolution); got != tc.want {
				t.Errorf("Ticks(%v, %v, %d) = %d, want %d", tc.width, tc.freqHz, tc.resolution, got, tc.want)
			}
		})
	}
}

func TestNewDriver_Mock(t *testing.T) {
	drv, err := NewDriver(config.HardwareConfig{PWMBackend: "mock"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := drv.(*MockDriver); !ok {
		t.Errorf("NewDriver = %T, want *MockDriver", drv)
	}
}

func TestNewDriver_Unknown(t *testing.T) {
	if _, err := NewDriver(config.HardwareConfig{PWMBackend: "servo"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestMockDriver_RecordsPulses(t *testing.T) {
	var m MockDriver
	if got := m.Pulse(3); got != 0 {
		t.Errorf("unwritten channel pulse = %v, want 0", got)
	}

	m.SetPulse(3, 1500*time.Microsecond)
	m.SetPulse(4, 1000*time.Microsecond)
	m.SetPulse(3, 2000*time.Microsecond)

	if got := m.Pulse(3); got != 2000*time.Microsecond {
		t.Errorf("Pulse(3) = %v, want 2ms", got)
	}
	if got := m.Pulse(4); got != 1000*time.Microsecond {
		t.Errorf("Pulse(4) = %v, want 1ms", got)
	}
	if m.Writes() != 3 {
		t.Errorf("Writes() = %d, want 3", m.Writes())
	}
	if err := m.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
