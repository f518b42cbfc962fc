package bridge

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a backend failure.
type Kind int

const (
	// KindDecode means stdout could not be interpreted and the exit code was not success.
	KindDecode Kind = iota + 1
	// KindProcess means the backend exited with a non-success code.
	KindProcess
	// KindSystem means the backend could not be started at all.
	KindSystem
)

func (k Kind) String() string {
	switch k {
	case KindDecode:
		return "decode"
	case KindProcess:
		return "process"
	case KindSystem:
		return "system"
	default:
		return "unknown"
	}
}

// BackendError is the single opaque failure surfaced to callers for decode,
// process and system failures. Message keeps the backend's own text verbatim.
type BackendError struct {
	Kind     Kind
	Command  string
	Message  string
	Stdout   string // raw stdout, kept for diagnosis
	Stderr   string
	ExitCode int
	Err      error
}

func (e *BackendError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s error: %s", e.Command, e.Kind, e.Message)
}

func (e *BackendError) Unwrap() error { return e.Err }

// AsBackendError extracts a *BackendError from an error chain.
func AsBackendError(err error) (*BackendError, bool) {
	var be *BackendError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// ValidationError reports a required argument that was empty after trimming.
// It is raised before any process is started.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return e.Field + " must not be empty"
}

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Require trims value and returns a *ValidationError naming field when nothing is left.
func Require(field, value string) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", &ValidationError{Field: field}
	}
	return v, nil
}
