package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cjeanneret/IntakeArm/internal/config"
	"github.com/cjeanneret/IntakeArm/internal/debug"
	"github.com/cjeanneret/IntakeArm/internal/hw/encoder"
	"github.com/cjeanneret/IntakeArm/internal/hw/gpio"
	"github.com/cjeanneret/IntakeArm/internal/hw/motor"
	"github.com/cjeanneret/IntakeArm/internal/hw/pwm"
	"github.com/cjeanneret/IntakeArm/internal/logic/command"
	"github.com/cjeanneret/IntakeArm/internal/logic/geometry"
	"github.com/cjeanneret/IntakeArm/internal/logic/motion"
	"github.com/cjeanneret/IntakeArm/internal/logic/operator"
	"github.com/cjeanneret/IntakeArm/internal/logic/scheduler"
	"github.com/cjeanneret/IntakeArm/internal/web"
)

// simDegPerSec is the full-speed rate of the simulated pivot.
const simDegPerSec = 180

// app owns the hardware and the scheduler for one process.
type app struct {
	cfg *config.Config

	gpio   gpio.Driver
	pwm    pwm.Driver
	enc    encoder.Sensor
	arm    *motion.Arm
	button *operator.Button // nil when no button is wired
	latch  *operator.Latch
	clock  *operator.SystemClock
	sched  *scheduler.Scheduler

	mu   sync.Mutex
	last *command.IntakeArm
}

func loadConfig(o *options) (*config.Config, error) {
	cfg, err := config.Load(o.cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	if o.debugLevel >= 0 {
		cfg.Defaults.DebugLevel = o.debugLevel
	}

	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", o.cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)
	return cfg, nil
}

// newApp opens every driver named by cfg. On error, whatever was opened
// is closed again.
func newApp(cfg *config.Config) (a *app, err error) {
	a = &app{
		cfg:   cfg,
		latch: &operator.Latch{},
		clock: operator.NewSystemClock(),
		sched: scheduler.New(),
	}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()

	debug.Step(1, "Initializing GPIO driver")
	debug.Value("GPIO backend", cfg.Hardware.GPIOBackend)
	gpioDriver, err := gpio.NewDriver(cfg.Hardware.GPIOBackend, cfg.Hardware.GPIOChip)
	if err != nil {
		return a, fmt.Errorf("init GPIO: %w", err)
	}
	a.gpio = gpioDriver

	debug.Step(2, "Initializing PWM driver")
	debug.Value("PWM backend", cfg.Hardware.PWMBackend)
	pwmDriver, err := pwm.NewDriver(cfg.Hardware)
	if err != nil {
		return a, fmt.Errorf("init PWM: %w", err)
	}
	a.pwm = pwmDriver

	debug.Step(3, "Initializing encoder")
	angles := geometry.NewAngleCalculator(cfg)
	if cfg.Hardware.MockEncoder {
		start := angles.RawFromDegrees(0) * 360 / float64(cfg.Arm.EncoderCountsPerRev)
		a.enc = encoder.NewSim(start, simDegPerSec, cfg.Arm.EncoderCountsPerRev)
		debug.Info("Using SIMULATED encoder (%d°/s at full speed)", simDegPerSec)
	} else {
		as5600, err := encoder.NewAS5600(cfg.Hardware.I2CBus, cfg.Arm.EncoderAddr)
		if err != nil {
			return a, fmt.Errorf("init encoder: %w", err)
		}
		a.enc = as5600
	}
	debug.Value("Degrees per count", angles.DegreesPerCount())

	debug.Step(4, "Initializing motors")
	pivot := motor.NewMotor(a.pwm, motorConfig("pivot", cfg.Arm.Pivot))
	intake := motor.Group{
		motor.NewMotor(a.pwm, motorConfig("intake lower", cfg.Arm.IntakeLower)),
		motor.NewMotor(a.pwm, motorConfig("intake higher", cfg.Arm.IntakeHigher)),
	}
	debug.PrintStruct("Arm config", cfg.Arm)

	arm, err := motion.NewArm(pivot, intake, a.enc, angles, a.gpio, cfg.Arm.ProximityPin)
	if err != nil {
		return a, err
	}
	a.arm = arm
	debug.Value("Arm angle", fmt.Sprintf("%.2f°", arm.CurrentAngle()))

	if cfg.Arm.IntakeButtonPin > 0 {
		debug.Step(5, "Initializing intake button")
		button, err := operator.NewButton(a.gpio, cfg.Arm.IntakeButtonPin, cfg.Arm.ButtonActiveLow)
		if err != nil {
			return a, err
		}
		a.button = button
	}
	return a, nil
}

func motorConfig(name string, m config.MotorConfig) motor.Config {
	return motor.Config{Name: name, Channel: m.Channel, Inverted: m.Inverted}
}

// cancelSignal is the latch, plus the button when one is wired.
func (a *app) cancelSignal() command.CancelSignal {
	if a.button == nil {
		return a.latch
	}
	return operator.Any{a.latch, a.button}
}

// runIntake runs one activation and blocks until it ends. A cancelled ctx
// interrupts the command, which stops the motors; that is not an error.
func (a *app) runIntake(ctx context.Context, overrides web.Overrides) error {
	cfg := applyOverridesToCopy(a.cfg, overrides)
	a.latch.Reset()

	cmd := command.NewIntakeArm(command.ParamsFromConfig(cfg), command.Hardware{
		Sensor:   a.arm,
		Pivot:    a.arm.Pivot(),
		Intake:   a.arm.Intake(),
		Cancel:   a.cancelSignal(),
		Clock:    a.clock,
		Loaded:   a.arm,
		Requires: []scheduler.Subsystem{a.arm},
	})
	a.mu.Lock()
	a.last = cmd
	a.mu.Unlock()

	a.sched.Schedule(cmd)
	err := a.sched.RunUntilIdle(ctx, cfg.TickPeriod())
	if debug.IsEnabled(debug.LevelInfo) {
		st := cmd.Status()
		debug.Summary(fmt.Sprintf("IntakeArm %s after %d ticks", st.Reason, st.Ticks))
	}
	if errors.Is(err, context.Canceled) {
		debug.Info("Stopped by signal")
		return nil
	}
	return err
}

// lastStatus returns the status of the last command, or nil.
func (a *app) lastStatus() *command.Status {
	a.mu.Lock()
	cmd := a.last
	a.mu.Unlock()
	if cmd == nil {
		return nil
	}
	st := cmd.Status()
	return &st
}

// statusView is what GET /status and the status stream carry.
type statusView struct {
	Running bool            `json:"running"`
	Command *command.Status `json:"command,omitempty"`
	Arm     motion.Snapshot `json:"arm"`
}

func (a *app) status() statusView {
	return statusView{
		Running: !a.sched.Idle(),
		Command: a.lastStatus(),
		Arm:     a.arm.Snapshot(),
	}
}

// Close stops the motors and releases every driver.
func (a *app) Close() error {
	var errs []error
	if a.arm != nil {
		errs = append(errs, a.arm.Stop())
	}
	if a.enc != nil {
		errs = append(errs, a.enc.Close())
	}
	if a.pwm != nil {
		errs = append(errs, a.pwm.Close())
	}
	if a.gpio != nil {
		errs = append(errs, a.gpio.Close())
	}
	err := errors.Join(errs...)
	if err != nil {
		debug.Error(fmt.Errorf("closing hardware: %w", err))
	}
	return err
}

// applyOverridesToCopy returns a copy of baseCfg with the set overrides applied.
func applyOverridesToCopy(baseCfg *config.Config, overrides web.Overrides) *config.Config {
	cfg := *baseCfg
	if overrides.TargetAngleDeg != nil {
		cfg.Intake.TargetAngleDeg = *overrides.TargetAngleDeg
	}
	if overrides.TimeoutMs != nil {
		cfg.Intake.TimeoutMs = *overrides.TimeoutMs
	}
	return &cfg
}

func formDefaults(cfg *config.Config) web.FormConfig {
	return web.FormConfig{
		TargetAngleDeg: cfg.Intake.TargetAngleDeg,
		PivotSpeed:     cfg.Intake.PivotSpeed,
		IntakeSpeed:    cfg.Intake.IntakeSpeed,
		TimeoutMs:      cfg.Intake.TimeoutMs,
		CloseOutput:    cfg.Pivot.CloseOutput,
	}
}
