package converter

import (
	"errors"
	"fmt"
)

// ErrEmptyCommand is returned when a runner is given no program to execute.
var ErrEmptyCommand = errors.New("empty command")

// ProcessError represents a failed converter process: either it could not be
// started, or it exited with a non-zero status.
type ProcessError struct {
	Message  string
	ExitCode int
	Cause    error
}

func (e *ProcessError) Error() string {
	if e.ExitCode != 0 {
		return fmt.Sprintf("process error: %s (exit code %d)", e.Message, e.ExitCode)
	}
	if e.Cause != nil {
		return fmt.Sprintf("process error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("process error: %s", e.Message)
}

func (e *ProcessError) Unwrap() error {
	return e.Cause
}

// IsExitFailure reports whether err is a converter that ran and exited
// non-zero, as opposed to one that could not be started at all.
func IsExitFailure(err error) bool {
	var procErr *ProcessError
	return errors.As(err, &procErr) && procErr.ExitCode > 0
}
