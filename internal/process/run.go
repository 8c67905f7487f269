package process

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// maxErrorOutput caps how much combined output is attached to a Run error.
const maxErrorOutput = 512

// Run executes spec synchronously and returns once it exits.
//
// A non-zero exit status is returned as an ErrExitStatus error carrying the
// trimmed combined output. Cancelling ctx kills the whole process group.
func Run(ctx context.Context, spec Spec, logger Logger) error {
	if logger == nil {
		logger = noopLogger{}
	}

	cmd := exec.CommandContext(ctx, spec.Binary, spec.Args...) //nolint:gosec // Binary comes from operator config
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}
	cmd.WaitDelay = waitDelay

	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	if spec.WorkDir != "" {
		cmd.Dir = spec.WorkDir
	}

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	logger.Debug("running process", "name", spec.Name, "binary", spec.Binary, "args", spec.Args)

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("running %s: %w", spec.Name, ctx.Err())
		}
		if _, ok := err.(*exec.ExitError); ok {
			return fmt.Errorf("%w: %s: %w: %s", ErrExitStatus, spec.Name, err, trimOutput(output.String()))
		}
		return fmt.Errorf("%w: %s: %w", ErrStartFailed, spec.Name, err)
	}

	if output.Len() > 0 {
		logger.Debug("process output", "name", spec.Name, "output", trimOutput(output.String()))
	}

	return nil
}

func trimOutput(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxErrorOutput {
		return s[:maxErrorOutput] + "..."
	}
	return s
}
