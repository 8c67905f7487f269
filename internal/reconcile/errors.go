package reconcile

import "errors"

var (
	// ErrInvalidOptions is returned by New when a required option is missing.
	ErrInvalidOptions = errors.New("reconcile: invalid options")

	// ErrQueueFull is returned when an input arrives faster than the loop
	// drains it. The input is dropped.
	ErrQueueFull = errors.New("reconcile: input queue full")

	// ErrUnknownTopic is returned for messages on topics the loop does not handle.
	ErrUnknownTopic = errors.New("reconcile: unknown topic")
)
