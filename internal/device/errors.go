package device

import (
	"errors"
	"fmt"
)

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrValidation) {
//	    // command rejected, nothing was written
//	}
var (
	// ErrValidation is returned when a command payload or update is rejected
	// before any hardware write.
	ErrValidation = errors.New("device: validation failed")

	// ErrHardwareIO is returned when a hardware read or write fails.
	ErrHardwareIO = errors.New("device: hardware i/o failed")

	// ErrPowerTransition is returned when the display power switch fails.
	ErrPowerTransition = errors.New("device: display power transition failed")
)

// ValidationError describes a rejected field value.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("device: invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// Unwrap allows errors.Is(err, ErrValidation).
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func newValidationError(field, value, reason string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}
