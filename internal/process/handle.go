package process

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

const (
	// terminateTimeout bounds how long TerminateTree waits for the group
	// leader to be reaped after SIGKILL.
	terminateTimeout = 5 * time.Second

	// waitDelay bounds how long Wait keeps copying output after the leader
	// exits, in case a detached grandchild still holds the pipes open.
	waitDelay = 2 * time.Second
)

// Spec describes a subprocess to launch.
type Spec struct {
	// Name is a human-readable identifier for logging.
	Name string

	// Binary is the executable, resolved through PATH when not absolute.
	Binary string

	// Args are command-line arguments to pass to the binary.
	Args []string

	// Env are additional environment variables (key=value format),
	// appended to the parent environment.
	Env []string

	// WorkDir is the working directory for the process.
	// If empty, inherits from parent process.
	WorkDir string
}

// Logger defines the logging interface for subprocess control.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Handle owns a started subprocess and the process group it leads.
//
// Every descendant the process spawns inherits its group, so TerminateTree
// reaches the whole subtree and not just the leader.
type Handle struct {
	spec   Spec
	logger Logger
	cmd    *exec.Cmd
	pid    int

	startedAt time.Time
	done      chan struct{}

	mu  sync.RWMutex
	err error
}

// Start launches spec in a new process group and returns immediately.
// The process keeps running independently of any caller context until it
// exits or TerminateTree is called.
func Start(spec Spec, logger Logger) (*Handle, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	cmd := buildCommand(spec, logger)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrStartFailed, spec.Name, err)
	}

	h := &Handle{
		spec:      spec,
		logger:    logger,
		cmd:       cmd,
		pid:       cmd.Process.Pid,
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}

	logger.Debug("process started",
		"name", spec.Name,
		"pid", h.pid,
	)

	go h.wait()

	return h, nil
}

// buildCommand prepares an exec.Cmd that leads its own process group and
// forwards its output to the debug log.
func buildCommand(spec Spec, logger Logger) *exec.Cmd {
	cmd := exec.Command(spec.Binary, spec.Args...) //nolint:gosec // Binary comes from operator config

	// Create a new process group so the whole subtree can be signalled
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	if spec.WorkDir != "" {
		cmd.Dir = spec.WorkDir
	}

	cmd.Stdout = &outputWriter{name: spec.Name, stream: "stdout", logger: logger}
	cmd.Stderr = &outputWriter{name: spec.Name, stream: "stderr", logger: logger}
	cmd.WaitDelay = waitDelay

	return cmd
}

// wait reaps the leader and records its exit status.
func (h *Handle) wait() {
	err := h.cmd.Wait()

	h.mu.Lock()
	h.err = err
	h.mu.Unlock()

	if err != nil {
		h.logger.Debug("process exited with error",
			"name", h.spec.Name,
			"pid", h.pid,
			"error", err,
		)
	} else {
		h.logger.Debug("process exited",
			"name", h.spec.Name,
			"pid", h.pid,
			"runtime", time.Since(h.startedAt),
		)
	}

	close(h.done)
}

// PID returns the process ID of the group leader.
func (h *Handle) PID() int {
	return h.pid
}

// Name returns the spec name the process was started with.
func (h *Handle) Name() string {
	return h.spec.Name
}

// Done is closed once the group leader has exited and been reaped.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// IsRunning reports whether the group leader has not yet exited.
func (h *Handle) IsRunning() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Err returns the exit error of the leader, or nil while it is running or
// after a clean exit.
func (h *Handle) Err() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}

// TerminateTree forcefully kills the process group and waits for the leader
// to be reaped. The process is not given a chance to shut down cleanly.
//
// Calling TerminateTree on an exited process is a no-op.
func (h *Handle) TerminateTree() error {
	if !h.IsRunning() {
		return nil
	}

	h.logger.Debug("terminating process group",
		"name", h.spec.Name,
		"pgid", h.pid,
	)

	// Negative PID signals the process group created via Setpgid
	if err := unix.Kill(-h.pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("%w: %s: %w", ErrTerminateFailed, h.spec.Name, err)
	}

	select {
	case <-h.done:
		return nil
	case <-time.After(terminateTimeout):
		return fmt.Errorf("%w: %s: not reaped after %v", ErrTerminateFailed, h.spec.Name, terminateTimeout)
	}
}

// outputWriter forwards subprocess output to the debug log.
type outputWriter struct {
	name   string
	stream string
	logger Logger
}

func (w *outputWriter) Write(p []byte) (int, error) {
	w.logger.Debug("process output",
		"name", w.name,
		"stream", w.stream,
		"output", string(p),
	)
	return len(p), nil
}
