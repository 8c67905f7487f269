package hardware

import "errors"

var (
	// ErrRead is returned when a hardware register cannot be read.
	ErrRead = errors.New("hardware: read failed")

	// ErrWrite is returned when a hardware register cannot be written.
	ErrWrite = errors.New("hardware: write failed")

	// ErrMalformed is returned when a register holds an unparseable value.
	ErrMalformed = errors.New("hardware: malformed register value")

	// ErrMotionStarted is returned when Start is called twice on a motion sensor.
	ErrMotionStarted = errors.New("hardware: motion sensor already started")

	// ErrClosed is returned when using a closed motion sensor.
	ErrClosed = errors.New("hardware: sensor closed")
)
