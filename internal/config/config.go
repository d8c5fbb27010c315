package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxConfigFileBytes bounds the size of a configuration file.
const MaxConfigFileBytes = 1 << 20

// Close-regime output modes.
const (
	CloseOutputDirect = "direct" // drive with pivot_speed * sign(error), like the far regime
	CloseOutputPID    = "pid"    // drive with the clamped PID signal
)

// HardwareConfig selects the driver backends.
type HardwareConfig struct {
	GPIOBackend string  `yaml:"gpio_backend"` // "mock", "rpio" or "cdev"
	GPIOChip    string  `yaml:"gpio_chip"`    // character device for cdev backend, e.g. "gpiochip0"
	PWMBackend  string  `yaml:"pwm_backend"`  // "mock", "rpio", "pca9685" or "gobot"
	I2CBus      string  `yaml:"i2c_bus"`      // periph bus name, "" = first available
	PCA9685Addr uint16  `yaml:"pca9685_addr"` // I2C address of the PWM board (default 0x40)
	PWMFreqHz   float64 `yaml:"pwm_freq_hz"`  // RC PWM frame rate (default 50)
	MockEncoder bool    `yaml:"mock_encoder"` // use a simulated encoder instead of the AS5600
}

// MotorConfig describes one RC-PWM motor controller output.
type MotorConfig struct {
	Channel  int  `yaml:"channel"`  // PWM channel (PCA9685 output or BCM pin for rpio)
	Inverted bool `yaml:"inverted"` // reverse the direction of positive speed
}

// ArmConfig describes the arm hardware wiring.
type ArmConfig struct {
	Pivot        MotorConfig `yaml:"pivot"`
	IntakeLower  MotorConfig `yaml:"intake_lower"`
	IntakeHigher MotorConfig `yaml:"intake_higher"`

	EncoderAddr         uint16  `yaml:"encoder_addr"`           // AS5600 I2C address (default 0x36)
	EncoderCountsPerRev int     `yaml:"encoder_counts_per_rev"` // raw counts per encoder revolution (default 4096)
	EncoderGearRatio    float64 `yaml:"encoder_gear_ratio"`     // encoder revolutions per arm revolution (default 1)
	EncoderOffsetDeg    float64 `yaml:"encoder_offset_deg"`     // arm angle reading at raw count 0
	EncoderInverted     bool    `yaml:"encoder_inverted"`

	ProximityPin    int  `yaml:"proximity_pin"`     // BCM pin of the "loaded" sensor. 0 = not used.
	IntakeButtonPin int  `yaml:"intake_button_pin"` // BCM pin of the operator intake button. 0 = not used.
	ButtonActiveLow bool `yaml:"button_active_low"` // pressed reads LOW (pull-up wiring)
}

// PivotConfig holds the pivot-to-angle control constants.
type PivotConfig struct {
	Kp                 float64 `yaml:"kp"`
	Ki                 float64 `yaml:"ki"`
	Kd                 float64 `yaml:"kd"`
	EntryThresholdDeg  float64 `yaml:"entry_threshold_deg"`  // far/close decision at initialize (default 10)
	SteadyThresholdDeg float64 `yaml:"steady_threshold_deg"` // far/close decision on every tick
	ToleranceDeg       float64 `yaml:"tolerance_deg"`        // pivot-complete band
	CloseOutput        string  `yaml:"close_output"`         // "direct" (default) or "pid"
	OutputOffset       float64 `yaml:"output_offset"`        // added to |pid signal| before clamping (default 0.2)
}

// IntakeConfig holds the intake command parameters.
type IntakeConfig struct {
	TargetAngleDeg float64 `yaml:"target_angle_deg"`
	PivotSpeed     float64 `yaml:"pivot_speed"`  // base far-regime speed, 0-1
	IntakeSpeed    float64 `yaml:"intake_speed"` // roller speed while intaking, -1 to 1
	TimeoutMs      int     `yaml:"timeout_ms"`
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	TickPeriodMs int `yaml:"tick_period_ms"` // control loop period (default 20)
	DebugLevel   int `yaml:"debug_level"`    // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	WebPort      int `yaml:"web_port"`       // default port for the serve command
}

// Config aggregates all application configuration.
type Config struct {
	Hardware HardwareConfig `yaml:"hardware"`
	Arm      ArmConfig      `yaml:"arm"`
	Pivot    PivotConfig    `yaml:"pivot"`
	Intake   IntakeConfig   `yaml:"intake"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// ValidateConfigPath checks that path points to a .yaml file directly
// inside a "configs" directory and contains no traversal.
func ValidateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("config path %q must not contain '..'", path)
		}
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config path %q must have .yaml extension", path)
	}
	abs, err := filepath.Abs(clean)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config path %q must be inside a configs/ directory", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	if err := ValidateConfigPath(path); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file is %d bytes, limit is %d", info.Size(), MaxConfigFileBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Hardware.GPIOBackend == "" {
		c.Hardware.GPIOBackend = "mock"
	}
	if c.Hardware.GPIOChip == "" {
		c.Hardware.GPIOChip = "gpiochip0"
	}
	if c.Hardware.PWMBackend == "" {
		c.Hardware.PWMBackend = "mock"
	}
	if c.Hardware.PCA9685Addr == 0 {
		c.Hardware.PCA9685Addr = 0x40
	}
	if c.Hardware.PWMFreqHz <= 0 {
		c.Hardware.PWMFreqHz = 50
	}

	if c.Arm.EncoderAddr == 0 {
		c.Arm.EncoderAddr = 0x36
	}
	if c.Arm.EncoderCountsPerRev <= 0 {
		c.Arm.EncoderCountsPerRev = 4096 // AS5600 is 12-bit
	}
	if c.Arm.EncoderGearRatio == 0 {
		c.Arm.EncoderGearRatio = 1
	}

	if c.Pivot.EntryThresholdDeg <= 0 {
		c.Pivot.EntryThresholdDeg = 10
	}
	if c.Pivot.SteadyThresholdDeg <= 0 {
		c.Pivot.SteadyThresholdDeg = c.Pivot.EntryThresholdDeg
	}
	if c.Pivot.ToleranceDeg <= 0 {
		c.Pivot.ToleranceDeg = 2
	}
	if c.Pivot.CloseOutput == "" {
		c.Pivot.CloseOutput = CloseOutputDirect
	}
	if c.Pivot.OutputOffset == 0 {
		c.Pivot.OutputOffset = 0.2
	}

	if c.Intake.TimeoutMs <= 0 {
		c.Intake.TimeoutMs = 5000
	}

	if c.Defaults.TickPeriodMs <= 0 {
		c.Defaults.TickPeriodMs = 20 // 50 Hz, the usual robot control period
	}
	if c.Defaults.WebPort <= 0 {
		c.Defaults.WebPort = 8080
	}
}

// Validate checks value ranges. Load calls it after applying defaults.
func (c *Config) Validate() error {
	switch c.Hardware.GPIOBackend {
	case "mock", "rpio", "cdev":
	default:
		return fmt.Errorf("hardware.gpio_backend must be mock, rpio or cdev, got %q", c.Hardware.GPIOBackend)
	}
	switch c.Hardware.PWMBackend {
	case "mock", "rpio", "pca9685", "gobot":
	default:
		return fmt.Errorf("hardware.pwm_backend must be mock, rpio, pca9685 or gobot, got %q", c.Hardware.PWMBackend)
	}

	for name, v := range map[string]float64{
		"pivot.kp":                   c.Pivot.Kp,
		"pivot.ki":                   c.Pivot.Ki,
		"pivot.kd":                   c.Pivot.Kd,
		"pivot.entry_threshold_deg":  c.Pivot.EntryThresholdDeg,
		"pivot.steady_threshold_deg": c.Pivot.SteadyThresholdDeg,
		"pivot.tolerance_deg":        c.Pivot.ToleranceDeg,
		"pivot.output_offset":        c.Pivot.OutputOffset,
		"intake.target_angle_deg":    c.Intake.TargetAngleDeg,
		"intake.pivot_speed":         c.Intake.PivotSpeed,
		"intake.intake_speed":        c.Intake.IntakeSpeed,
		"arm.encoder_gear_ratio":     c.Arm.EncoderGearRatio,
		"arm.encoder_offset_deg":     c.Arm.EncoderOffsetDeg,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s must be a finite number", name)
		}
	}

	if c.Pivot.CloseOutput != CloseOutputDirect && c.Pivot.CloseOutput != CloseOutputPID {
		return fmt.Errorf("pivot.close_output must be %q or %q, got %q", CloseOutputDirect, CloseOutputPID, c.Pivot.CloseOutput)
	}
	if c.Pivot.OutputOffset < 0 || c.Pivot.OutputOffset > 1 {
		return fmt.Errorf("pivot.output_offset must be between 0 and 1, got %.2f", c.Pivot.OutputOffset)
	}
	if c.Pivot.ToleranceDeg > c.Pivot.SteadyThresholdDeg {
		return fmt.Errorf("pivot.tolerance_deg (%.2f) must not exceed steady_threshold_deg (%.2f)", c.Pivot.ToleranceDeg, c.Pivot.SteadyThresholdDeg)
	}
	if c.Intake.PivotSpeed < 0 || c.Intake.PivotSpeed > 1 {
		return fmt.Errorf("intake.pivot_speed must be between 0 and 1, got %.2f", c.Intake.PivotSpeed)
	}
	if c.Intake.IntakeSpeed < -1 || c.Intake.IntakeSpeed > 1 {
		return fmt.Errorf("intake.intake_speed must be between -1 and 1, got %.2f", c.Intake.IntakeSpeed)
	}
	if c.Intake.TargetAngleDeg < -180 || c.Intake.TargetAngleDeg > 180 {
		return fmt.Errorf("intake.target_angle_deg must be between -180 and 180, got %.2f", c.Intake.TargetAngleDeg)
	}
	if c.Arm.EncoderGearRatio <= 0 {
		return fmt.Errorf("arm.encoder_gear_ratio must be > 0, got %.2f", c.Arm.EncoderGearRatio)
	}
	return nil
}

// Timeout returns the intake command timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Intake.TimeoutMs) * time.Millisecond
}

// TickPeriod returns the control loop period.
func (c *Config) TickPeriod() time.Duration {
	return time.Duration(c.Defaults.TickPeriodMs) * time.Millisecond
}

// UsesPID reports whether the close regime drives the actuator with the PID signal.
func (c *Config) UsesPID() bool {
	return c.Pivot.CloseOutput == CloseOutputPID
}
