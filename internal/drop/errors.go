package drop

import (
	"errors"
	"fmt"
)

// ErrNoRegistration indicates the registration handle is unknown or already closed
var ErrNoRegistration = errors.New("no such pending registration")

// ActionError labels a failure of a resolver-driven action, e.g. "start Proj".
type ActionError struct {
	Action string
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Action, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// NameConflictError is returned by Confirm when the backend rejects a name as
// taken. The registration stays open so the caller can retry.
type NameConflictError struct {
	Name      string
	Suggested string
	Err       error
}

func (e *NameConflictError) Error() string {
	return fmt.Sprintf("project name %q is already taken (try %q): %v", e.Name, e.Suggested, e.Err)
}

func (e *NameConflictError) Unwrap() error { return e.Err }
