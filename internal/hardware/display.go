package hardware

import (
	"context"
	"fmt"
	"sort"

	"github.com/nerrad567/gray-logic-panel/internal/process"
)

// CommandDisplay switches the panel with external commands, typically
// wlopm against a Wayland output.
type CommandDisplay struct {
	onCommand  []string
	offCommand []string
	env        []string
	logger     process.Logger
}

// NewCommandDisplay builds a driver from argv slices and extra environment.
// Both commands must be non-empty.
func NewCommandDisplay(onCommand, offCommand []string, env map[string]string, logger process.Logger) (*CommandDisplay, error) {
	if len(onCommand) == 0 || len(offCommand) == 0 {
		return nil, fmt.Errorf("display commands must not be empty")
	}

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+env[k])
	}

	return &CommandDisplay{
		onCommand:  onCommand,
		offCommand: offCommand,
		env:        pairs,
		logger:     logger,
	}, nil
}

// RunOn implements DisplayDriver.
func (d *CommandDisplay) RunOn(ctx context.Context) error {
	return process.Run(ctx, process.Spec{
		Name:   "display-on",
		Binary: d.onCommand[0],
		Args:   d.onCommand[1:],
		Env:    d.env,
	}, d.logger)
}

// StartOff implements DisplayDriver. The returned process is detached
// from ctx; only TerminateTree stops it early.
func (d *CommandDisplay) StartOff(_ context.Context) (Process, error) {
	h, err := process.Start(process.Spec{
		Name:   "display-off",
		Binary: d.offCommand[0],
		Args:   d.offCommand[1:],
		Env:    d.env,
	}, d.logger)
	if err != nil {
		return nil, err
	}
	return h, nil
}
