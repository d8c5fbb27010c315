package command

import (
	"fmt"
	"math"
	"sync"

	"github.com/cjeanneret/IntakeArm/internal/config"
	"github.com/cjeanneret/IntakeArm/internal/debug"
	"github.com/cjeanneret/IntakeArm/internal/logic/control"
	"github.com/cjeanneret/IntakeArm/internal/logic/scheduler"
)

// State is the phase of an IntakeArm activation.
type State int

const (
	// Pivoting rotates the arm toward the target angle.
	Pivoting State = iota
	// Intaking runs the intake rollers. There is no way back to Pivoting.
	Intaking
)

func (s State) String() string {
	switch s {
	case Pivoting:
		return "PIVOTING"
	case Intaking:
		return "INTAKING"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// TerminationReason records why an activation ended.
type TerminationReason int

const (
	ReasonNone TerminationReason = iota
	ReasonTimeout
	ReasonOperatorRelease
	ReasonInterrupted
)

func (r TerminationReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonTimeout:
		return "timeout"
	case ReasonOperatorRelease:
		return "operator release"
	case ReasonInterrupted:
		return "interrupted"
	default:
		return fmt.Sprintf("TerminationReason(%d)", int(r))
	}
}

func (r TerminationReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Params are the constants of one IntakeArm command.
type Params struct {
	TargetAngleDeg float64
	IntakeSpeed    float64
	TimeoutMs      int64
	ToleranceDeg   float64
	Classifier     control.Classifier
	Controller     control.PivotController
}

// ParamsFromConfig builds command parameters from the loaded configuration.
func ParamsFromConfig(cfg *config.Config) Params {
	out := control.OutputDirect
	if cfg.UsesPID() {
		out = control.OutputPID
	}
	return Params{
		TargetAngleDeg: cfg.Intake.TargetAngleDeg,
		IntakeSpeed:    cfg.Intake.IntakeSpeed,
		TimeoutMs:      int64(cfg.Intake.TimeoutMs),
		ToleranceDeg:   cfg.Pivot.ToleranceDeg,
		Classifier: control.Classifier{
			EntryThresholdDeg:  cfg.Pivot.EntryThresholdDeg,
			SteadyThresholdDeg: cfg.Pivot.SteadyThresholdDeg,
		},
		Controller: control.PivotController{
			Gains:        control.Gains{Kp: cfg.Pivot.Kp, Ki: cfg.Pivot.Ki, Kd: cfg.Pivot.Kd},
			BaseSpeed:    cfg.Intake.PivotSpeed,
			CloseOutput:  out,
			OutputOffset: cfg.Pivot.OutputOffset,
		},
	}
}

// Hardware are the collaborators an IntakeArm drives. Loaded may be nil.
type Hardware struct {
	Sensor   AngleSensor
	Pivot    ActuatorPort
	Intake   ActuatorPort
	Cancel   CancelSignal
	Clock    Clock
	Loaded   LoadSensor
	Requires []scheduler.Subsystem
}

// Status is a snapshot of an IntakeArm for display.
type Status struct {
	Name      string            `json:"name"`
	State     State             `json:"state"`
	Regime    control.Regime    `json:"regime"`
	Reason    TerminationReason `json:"reason"`
	TargetDeg float64           `json:"target_deg"`
	ErrorDeg  float64           `json:"error_deg"` // 0 until the first finite angle
	ElapsedMs int64             `json:"elapsed_ms"`
	Seeded    bool              `json:"seeded"`
	Ticks     int               `json:"ticks"`
	PID       control.PIDState  `json:"pid"`
}

// IntakeArm pivots the arm to a target angle, then runs the intake until
// the operator releases the intake input or the timeout expires.
//
// Termination is checked every tick in a fixed order: timeout first, then
// the pivot-complete transition, then the cancel signal. Every exit path
// goes through End, which stops both the pivot and the intake.
type IntakeArm struct {
	logging
	p  Params
	hw Hardware

	mu          sync.Mutex
	state       State
	regime      control.Regime
	pid         control.PIDState
	errDeg      float64 // NaN until seeded
	seeded      bool
	reason      TerminationReason
	ticks       int
	transitions int
}

// NewIntakeArm creates the command. It does nothing until scheduled.
func NewIntakeArm(p Params, hw Hardware) *IntakeArm {
	return &IntakeArm{
		logging: logging{name: "IntakeArm", clock: hw.Clock},
		p:       p,
		hw:      hw,
	}
}

func (c *IntakeArm) Name() string { return c.name }

func (c *IntakeArm) Requirements() []scheduler.Subsystem { return c.hw.Requires }

// Initialize starts a fresh activation.
func (c *IntakeArm) Initialize() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logCommandStart(fmt.Sprintf(
		"target angle: %.1f°, pivot speed: %.2f, intake speed: %.2f, timeout: %d ms, close output: %s",
		c.p.TargetAngleDeg, c.p.Controller.BaseSpeed, c.p.IntakeSpeed, c.p.TimeoutMs, closeOutputName(c.p.Controller.CloseOutput)))

	c.state = Pivoting
	c.reason = ReasonNone
	c.ticks = 0
	c.transitions = 0

	c.seeded = false
	c.errDeg = math.NaN()
	c.pid.Reset(0)
	c.regime = control.Far
	c.seed(c.hw.Sensor.CurrentAngle())
}

// seed starts the controller from the first finite angle of an
// activation: it sets the previous error and picks the entry regime.
// Until then the pivot is held at zero.
func (c *IntakeArm) seed(current float64) {
	if c.seeded || !finite(current) {
		return
	}
	c.seeded = true
	c.errDeg = c.p.TargetAngleDeg - current
	c.pid.Reset(c.errDeg)
	c.regime = c.p.Classifier.Entry(c.errDeg)
	debug.Live("IntakeArm: initial error %+.2f°, entry regime %s", c.errDeg, c.regime)
}

// Execute runs one control tick.
func (c *IntakeArm) Execute() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ticks++
	switch c.state {
	case Pivoting:
		current := c.hw.Sensor.CurrentAngle()
		c.seed(current)
		if !c.seeded || !finite(current) {
			c.hw.Pivot.SetSpeed(0)
			return
		}
		c.errDeg = c.p.TargetAngleDeg - current
		out := c.p.Controller.Step(c.p.TargetAngleDeg, current, &c.pid, c.regime)
		c.hw.Pivot.SetSpeed(out)
		debug.Tick(c.errDeg, c.regime, out)

		next := c.p.Classifier.Classify(c.errDeg, c.regime)
		if next != c.regime {
			debug.Transition("IntakeArm regime", c.regime, next)
		}
		c.regime = next

	case Intaking:
		c.hw.Intake.SetSpeed(c.p.IntakeSpeed)
	}
}

// IsFinished evaluates the termination predicate. It also performs the
// PIVOTING -> INTAKING transition, which does not end the command.
func (c *IntakeArm) IsFinished() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := c.hw.Clock.NowMillis() - c.startMs
	if elapsed >= c.p.TimeoutMs {
		c.finish(ReasonTimeout, fmt.Sprintf("timeout of %d ms reached (elapsed %d ms)", c.p.TimeoutMs, elapsed))
		return true
	}

	if c.state == Pivoting && c.seeded && math.Abs(c.errDeg) <= c.p.ToleranceDeg {
		debug.Transition("IntakeArm state", c.state, Intaking)
		c.state = Intaking
		c.transitions++
		c.hw.Pivot.SetSpeed(0)
	}

	if c.hw.Cancel.IsRequested() {
		c.finish(ReasonOperatorRelease, "let go of intake input")
		return true
	}

	return false
}

// End stops both actuators, whatever the exit path.
func (c *IntakeArm) End(interrupted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hw.Intake.SetSpeed(0)
	c.hw.Pivot.SetSpeed(0)

	if interrupted {
		c.finish(ReasonInterrupted, "interrupted")
	}

	extra := fmt.Sprintf("state %s, error %+.2f°", c.state, c.reportedError())
	if c.hw.Loaded != nil {
		extra += fmt.Sprintf(", loaded %t", c.hw.Loaded.IsLoaded())
	}
	c.logCommandEnd(interrupted, extra)
}

// finish sets the termination reason once per activation.
func (c *IntakeArm) finish(reason TerminationReason, text string) {
	if c.reason != ReasonNone {
		return
	}
	c.reason = reason
	c.setFinishReason(text)
}

// State returns the current phase.
func (c *IntakeArm) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Regime returns the regime the next pivoting tick will use.
func (c *IntakeArm) Regime() control.Regime {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.regime
}

// Reason returns why the last activation ended, or ReasonNone while running.
func (c *IntakeArm) Reason() TerminationReason {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// PID returns a copy of the controller memory.
func (c *IntakeArm) PID() control.PIDState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pid
}

// LastError returns the most recent angular error in degrees, or NaN if
// no finite angle has been read in this activation.
func (c *IntakeArm) LastError() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errDeg
}

func (c *IntakeArm) reportedError() float64 {
	if !c.seeded {
		return 0
	}
	return c.errDeg
}

// Transitions returns how many PIVOTING -> INTAKING transitions happened
// in the current activation (0 or 1).
func (c *IntakeArm) Transitions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transitions
}

// Status returns a snapshot for display.
func (c *IntakeArm) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Name:      c.name,
		State:     c.state,
		Regime:    c.regime,
		Reason:    c.reason,
		TargetDeg: c.p.TargetAngleDeg,
		ErrorDeg:  c.reportedError(),
		ElapsedMs: c.hw.Clock.NowMillis() - c.startMs,
		Seeded:    c.seeded,
		Ticks:     c.ticks,
		PID:       c.pid,
	}
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

func closeOutputName(o control.CloseOutput) string {
	if o == control.OutputPID {
		return config.CloseOutputPID
	}
	return config.CloseOutputDirect
}
