// Package scheduler runs commands on a fixed control period and arbitrates
// which command owns each subsystem.
//
// Lifecycle of a command: Initialize once when scheduled, then Execute and
// IsFinished on every tick, then End exactly once. End(false) follows
// IsFinished returning true; End(true) follows an interruption (another
// command claimed a subsystem, Cancel, or the loop stopped).
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/cjeanneret/IntakeArm/internal/debug"
)

// Subsystem is a set of actuators that at most one command may drive.
type Subsystem interface {
	Name() string
}

// Command is a unit of robot behaviour run by the Scheduler.
type Command interface {
	Name() string
	Requirements() []Subsystem
	Initialize()
	Execute()
	IsFinished() bool
	End(interrupted bool)
}

// Scheduler owns the active commands. All methods are safe for concurrent
// use; command methods are only ever called with the scheduler lock held,
// so a command never runs concurrently with itself or with another owner
// of its subsystems.
type Scheduler struct {
	mu     sync.Mutex
	active []Command
	owners map[Subsystem]Command
}

func New() *Scheduler {
	return &Scheduler{
		owners: make(map[Subsystem]Command),
	}
}

// Schedule starts c, interrupting any active command that requires one of
// c's subsystems. Scheduling an already active command does nothing.
func (s *Scheduler) Schedule(c Command) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(c) >= 0 {
		return
	}
	for _, req := range c.Requirements() {
		if owner, ok := s.owners[req]; ok {
			debug.Live("Scheduler: %s interrupts %s (requires %s)", c.Name(), owner.Name(), req.Name())
			s.end(owner, true)
		}
	}

	debug.Live("Scheduler: starting %s", c.Name())
	c.Initialize()
	for _, req := range c.Requirements() {
		s.owners[req] = c
	}
	s.active = append(s.active, c)
}

// Tick runs one control period for every active command.
func (s *Scheduler) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range append([]Command(nil), s.active...) {
		c.Execute()
		if c.IsFinished() {
			s.end(c, false)
		}
	}
}

// Cancel interrupts c if it is active.
func (s *Scheduler) Cancel(c Command) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(c) >= 0 {
		s.end(c, true)
	}
}

// CancelAll interrupts every active command.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range append([]Command(nil), s.active...) {
		s.end(c, true)
	}
}

// IsScheduled reports whether c is active.
func (s *Scheduler) IsScheduled(c Command) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOf(c) >= 0
}

// Owner returns the command currently driving sub, if any.
func (s *Scheduler) Owner(sub Subsystem) (Command, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.owners[sub]
	return c, ok
}

// Idle reports whether no command is active.
func (s *Scheduler) Idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active) == 0
}

// Run ticks every period until ctx is cancelled. Active commands are then
// interrupted and ctx.Err() is returned.
func (s *Scheduler) Run(ctx context.Context, period time.Duration) error {
	return s.loop(ctx, period, false)
}

// RunUntilIdle ticks every period until no command is active, returning
// nil, or until ctx is cancelled, interrupting active commands and
// returning ctx.Err().
func (s *Scheduler) RunUntilIdle(ctx context.Context, period time.Duration) error {
	return s.loop(ctx, period, true)
}

func (s *Scheduler) loop(ctx context.Context, period time.Duration, stopWhenIdle bool) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		if stopWhenIdle && s.Idle() {
			return nil
		}
		select {
		case <-ctx.Done():
			s.CancelAll()
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			s.Tick()
			if took := time.Since(start); took > period {
				debug.Info("Scheduler: tick took %v, longer than the %v period", took, period)
			}
		}
	}
}

// end must be called with s.mu held.
func (s *Scheduler) end(c Command, interrupted bool) {
	c.End(interrupted)
	for req, owner := range s.owners {
		if owner == c {
			delete(s.owners, req)
		}
	}
	if i := s.indexOf(c); i >= 0 {
		s.active = append(s.active[:i], s.active[i+1:]...)
	}
}

func (s *Scheduler) indexOf(c Command) int {
	for i, a := range s.active {
		if a == c {
			return i
		}
	}
	return -1
}
