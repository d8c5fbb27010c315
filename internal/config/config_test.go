package config

import (
	"bytes"
	"fmt"
	"go/format"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// ---------- ValidateConfigPath ----------

func TestValidateConfigPath_Valid(t *testing.T) {
	// Create a real configs/ directory so filepath.Abs resolves correctly.
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "default.yaml")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := ValidateConfigPath(path); err != nil {
		t.Errorf("expected valid path, got error: %v", err)
	}
}

func TestValidateConfigPath_Rejected(t *testing.T) {
	cases := []struct {
		name string
		path string
	}{
		{"empty", ""},
		{"traversal", "../../etc/passwd"},
		{"traversal inside configs", "configs/../../../etc/shadow.yaml"},
		{"json", "configs/default.json"},
		{"yml", "configs/default.yml"},
		{"no extension", "configs/default"},
		{"other dir", "other/default.yaml"},
		{"bare file", "default.yaml"},
		{"tmp", "/tmp/default.yaml"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := ValidateConfigPath(tc.path); err == nil {
				t.Errorf("expected error for %q, got nil", tc.path)
			}
		})
	}
}

func TestValidateConfigPath_SpecialChars(t *testing.T) {
	cfgDir := filepath.Join(t.TempDir(), "configs")
	for _, name := range []string{"con fig.yaml", "café.yaml", "intake-arm_v2.yaml"} {
		if err := ValidateConfigPath(filepath.Join(cfgDir, name)); err != nil {
			t.Errorf("unexpected error for %q: %v", name, err)
		}
	}
}

// ---------- Load ----------

// writeConfig creates a temporary configs/ dir with the given YAML content and returns the path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "test.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validYAML = `
hardware:
  gpio_backend: "cdev"
  gpio_chip: "gpiochip4"
  pwm_backend: "pca9685"
  i2c_bus: "1"
  pca9685_addr: 0x41
arm:
  pivot:
    channel: 0
  intake_lower:
    channel: 1
  intake_higher:
    channel: 2
    inverted: true
  encoder_gear_ratio: 2.5
  proximity_pin: 17
  intake_button_pin: 27
  button_active_low: true
pivot:
  kp: 0.02
  ki: 0.001
  kd: 0.05
  entry_threshold_deg: 12.0
  steady_threshold_deg: 8.0
  tolerance_deg: 1.5
  close_output: "pid"
  output_offset: 0.15
intake:
  target_angle_deg: 95.0
  pivot_speed: 0.5
  intake_speed: -0.8
  timeout_ms: 3000
defaults:
  tick_period_ms: 10
  debug_level: 2
  web_port: 9090
`

func TestLoad_ValidFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Hardware.GPIOBackend != "cdev" || cfg.Hardware.GPIOChip != "gpiochip4" {
		t.Errorf("gpio = %q/%q", cfg.Hardware.GPIOBackend, cfg.Hardware.GPIOChip)
	}
	if cfg.Hardware.PCA9685Addr != 0x41 {
		t.Errorf("pca9685_addr = %#x, want 0x41", cfg.Hardware.PCA9685Addr)
	}
	if !cfg.Arm.IntakeHigher.Inverted || cfg.Arm.IntakeHigher.Channel != 2 {
		t.Errorf("intake_higher = %+v", cfg.Arm.IntakeHigher)
	}
	if cfg.Arm.EncoderGearRatio != 2.5 {
		t.Errorf("encoder_gear_ratio = %v, want 2.5", cfg.Arm.EncoderGearRatio)
	}
	if cfg.Pivot.EntryThresholdDeg != 12 || cfg.Pivot.SteadyThresholdDeg != 8 {
		t.Errorf("thresholds = %v/%v", cfg.Pivot.EntryThresholdDeg, cfg.Pivot.SteadyThresholdDeg)
	}
	if !cfg.UsesPID() {
		t.Error("close_output pid should select the PID signal")
	}
	if cfg.Intake.IntakeSpeed != -0.8 {
		t.Errorf("intake_speed = %v, want -0.8", cfg.Intake.IntakeSpeed)
	}
	if cfg.Timeout() != 3*time.Second {
		t.Errorf("Timeout() = %v, want 3s", cfg.Timeout())
	}
	if cfg.TickPeriod() != 10*time.Millisecond {
		t.Errorf("TickPeriod() = %v, want 10ms", cfg.TickPeriod())
	}
	if cfg.Defaults.WebPort != 9090 {
		t.Errorf("web_port = %d, want 9090", cfg.Defaults.WebPort)
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load(writeConfig(t, "intake:\n  pivot_speed: 0.4\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"gpio_backend", cfg.Hardware.GPIOBackend, "mock"},
		{"gpio_chip", cfg.Hardware.GPIOChip, "gpiochip0"},
		{"pwm_backend", cfg.Hardware.PWMBackend, "mock"},
		{"pca9685_addr", cfg.Hardware.PCA9685Addr, uint16(0x40)},
		{"pwm_freq_hz", cfg.Hardware.PWMFreqHz, 50.0},
		{"encoder_addr", cfg.Arm.EncoderAddr, uint16(0x36)},
		{"encoder_counts_per_rev", cfg.Arm.EncoderCountsPerRev, 4096},
		{"encoder_gear_ratio", cfg.Arm.EncoderGearRatio, 1.0},
		{"entry_threshold_deg", cfg.Pivot.EntryThresholdDeg, 10.0},
		{"steady_threshold_deg", cfg.Pivot.SteadyThresholdDeg, 10.0},
		{"tolerance_deg", cfg.Pivot.ToleranceDeg, 2.0},
		{"close_output", cfg.Pivot.CloseOutput, CloseOutputDirect},
		{"output_offset", cfg.Pivot.OutputOffset, 0.2},
		{"timeout_ms", cfg.Intake.TimeoutMs, 5000},
		{"tick_period_ms", cfg.Defaults.TickPeriodMs, 20},
		{"web_port", cfg.Defaults.WebPort, 8080},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s default = %v, want %v", c.name, c.got, c.want)
		}
	}
	if cfg.UsesPID() {
		t.Error("default close output should be direct")
	}
}

func TestLoad_SteadyThresholdFollowsEntry(t *testing.T) {
	cfg, err := Load(writeConfig(t, "pivot:\n  entry_threshold_deg: 15\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Pivot.SteadyThresholdDeg != 15 {
		t.Errorf("steady_threshold_deg = %v, want 15", cfg.Pivot.SteadyThresholdDeg)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"gpio backend", "hardware:\n  gpio_backend: \"sysfs\"\n"},
		{"pwm backend", "hardware:\n  pwm_backend: \"servo\"\n"},
		{"close output", "pivot:\n  close_output: \"bangbang\"\n"},
		{"offset above 1", "pivot:\n  output_offset: 1.5\n"},
		{"negative offset", "pivot:\n  output_offset: -0.1\n"},
		{"tolerance above threshold", "pivot:\n  tolerance_deg: 12\n  steady_threshold_deg: 5\n"},
		{"pivot speed above 1", "intake:\n  pivot_speed: 1.2\n"},
		{"negative pivot speed", "intake:\n  pivot_speed: -0.3\n"},
		{"intake speed below -1", "intake:\n  intake_speed: -1.1\n"},
		{"target above 180", "intake:\n  target_angle_deg: 181\n"},
		{"target below -180", "intake:\n  target_angle_deg: -200\n"},
		{"negative gear ratio", "arm:\n  encoder_gear_ratio: -2\n"},
		{"NaN gain", "pivot:\n  kp: .nan\n"},
		{"infinite gain", "pivot:\n  kd: .inf\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.yaml)); err == nil {
				t.Errorf("expected error for:\n%s", tc.yaml)
			}
		})
	}
}

func TestLoad_BoundaryValues(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"tolerance equals threshold", "pivot:\n  tolerance_deg: 10\n"},
		{"full pivot speed", "intake:\n  pivot_speed: 1\n"},
		{"full reverse intake", "intake:\n  intake_speed: -1\n"},
		{"target at 180", "intake:\n  target_angle_deg: 180\n"},
		{"offset at 1", "pivot:\n  output_offset: 1\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.yaml)); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoad_FileTooLarge(t *testing.T) {
	data := strings.Repeat("#", MaxConfigFileBytes+1)
	if _, err := Load(writeConfig(t, data)); err == nil {
		t.Error("expected error for oversized config file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "{{{{invalid yaml!!!!")); err == nil {
		t.Error("expected error for invalid YAML, got nil")
	}
}

func TestLoad_EmptyFileUsesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Intake.TimeoutMs != 5000 {
		t.Errorf("timeout_ms = %d, want 5000", cfg.Intake.TimeoutMs)
	}
}

func TestLoad_UnknownFields(t *testing.T) {
	yaml := `
intake:
  pivot_speed: 0.4
unknown_section:
  foo: bar
`
	if _, err := Load(writeConfig(t, yaml)); err != nil {
		t.Errorf("unknown fields should be ignored, got error: %v", err)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(filepath.Join(cfgDir, "nonexistent.yaml")); err == nil {
		t.Error("expected error for nonexistent file, got nil")
	}
}

// The shipped configuration must load.
func TestLoad_RepositoryDefault(t *testing.T) {
	path := filepath.Join("..", "..", "configs", "default.yaml")
	abs, err := filepath.Abs(path)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(abs)
	if err != nil {
		t.Fatalf("configs/default.yaml: %v", err)
	}
	if cfg.Intake.PivotSpeed <= 0 {
		t.Error("default pivot_speed should be positive")
	}
	if math.Abs(cfg.Intake.TargetAngleDeg) > 180 {
		t.Errorf("default target = %v", cfg.Intake.TargetAngleDeg)
	}
}

func TestValidate_Direct(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	cfg.Intake.TargetAngleDeg = math.Inf(1)
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "intake.target_angle_deg") {
		t.Errorf("expected target_angle_deg error, got %v", err)
	}
}

func TestSourceIsFormatted(t *testing.T) {
	src, err := os.ReadFile("config.go")
	if err != nil {
		t.Fatal(err)
	}
	formatted, err := format.Source(src)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(src, formatted) {
		t.Error("config.go is not gofmt-formatted")
	}
}

func ExampleConfig_TickPeriod() {
	cfg := &Config{}
	cfg.applyDefaults()
	fmt.Println(cfg.TickPeriod())
	// Output: 20ms
}
