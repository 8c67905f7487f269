package process

import "errors"

var (
	// ErrStartFailed is returned when a subprocess cannot be launched.
	ErrStartFailed = errors.New("process: start failed")

	// ErrTerminateFailed is returned when a process group cannot be killed
	// or its leader is not reaped in time.
	ErrTerminateFailed = errors.New("process: terminate failed")

	// ErrExitStatus is returned by Run when the command exits non-zero.
	ErrExitStatus = errors.New("process: non-zero exit status")
)
