package actuation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-panel/internal/hardware"
)

// ErrActuation wraps failures to start or terminate a display transition.
var ErrActuation = errors.New("actuation: display transition failed")

// Logger defines the logging interface for the supervisor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Supervisor serialises display power transitions.
//
// The off transition is a long-running external process. At most one is
// tracked at a time; any new On or Off first kills the tracked process
// tree, whether or not a previous termination attempt failed.
type Supervisor struct {
	driver hardware.DisplayDriver
	logger Logger

	mu      sync.Mutex
	pending hardware.Process

	// stuck holds earlier off transitions whose termination failed.
	// Every preemption retries them.
	stuck []hardware.Process
}

// NewSupervisor creates a supervisor for the given display driver.
func NewSupervisor(driver hardware.DisplayDriver) *Supervisor {
	return &Supervisor{
		driver: driver,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the supervisor.
func (s *Supervisor) SetLogger(logger Logger) {
	s.logger = logger
}

// On terminates any running off transition and turns the display on,
// returning once the on command has completed.
func (s *Supervisor) On(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.preemptLocked()

	if err := s.driver.RunOn(ctx); err != nil {
		return fmt.Errorf("%w: display on: %w", ErrActuation, err)
	}
	s.logger.Debug("display on command completed")
	return nil
}

// Off terminates any running off transition, then starts a new one and
// tracks it. It does not wait for the transition to finish.
func (s *Supervisor) Off(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.preemptLocked()

	proc, err := s.driver.StartOff(ctx)
	if err != nil {
		return fmt.Errorf("%w: display off: %w", ErrActuation, err)
	}
	s.pending = proc
	s.logger.Debug("display off transition started")
	return nil
}

// Pending reports whether an off transition is still running, including
// one that could not be terminated.
func (s *Supervisor) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil && s.pending.IsRunning() {
		return true
	}
	for _, proc := range s.stuck {
		if proc.IsRunning() {
			return true
		}
	}
	return false
}

// Shutdown kills every tracked off transition. The supervisor remains usable.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preemptLocked()
}

// preemptLocked kills the tracked process tree and any earlier ones that
// survived a failed kill. A failed kill is logged and never blocks the
// caller; the handle moves to the stuck list so the next command or
// Shutdown tries again, even after Off has started a newer transition.
func (s *Supervisor) preemptLocked() {
	procs := s.stuck
	if s.pending != nil {
		procs = append(procs, s.pending)
	}
	s.pending = nil
	s.stuck = nil

	for _, proc := range procs {
		if !proc.IsRunning() {
			continue
		}
		if err := proc.TerminateTree(); err != nil {
			s.stuck = append(s.stuck, proc)
			s.logger.Error("terminating display off transition failed",
				"error", fmt.Errorf("%w: %w", ErrActuation, err),
				"stuck", len(s.stuck),
			)
			continue
		}
		s.logger.Info("superseded running display off transition")
	}
}
