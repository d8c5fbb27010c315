// Package command implements the arm commands run by the scheduler.
//
// Commands never touch hardware directly; they are handed small
// capability interfaces (sensor, actuator ports, cancel signal, clock)
// so the control logic can be driven tick by tick in tests.
package command

// AngleSensor reports the current arm angle in degrees.
type AngleSensor interface {
	CurrentAngle() float64
}

// ActuatorPort accepts a normalized speed in [-1, 1]. Writes are
// idempotent and take effect before the next tick.
type ActuatorPort interface {
	SetSpeed(speed float64)
}

// CancelSignal is polled once per tick; true ends the command.
type CancelSignal interface {
	IsRequested() bool
}

// Clock is a monotonic millisecond time source.
type Clock interface {
	NowMillis() int64
}

// LoadSensor reports whether a game piece is held by the intake.
type LoadSensor interface {
	IsLoaded() bool
}
