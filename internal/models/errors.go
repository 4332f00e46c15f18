package models

import "fmt"

// ValidationError reports malformed local input. It is raised before any
// network call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// AuthRejectedError reports a remote credential rejection. The cached
// credential must be cleared when this is returned.
type AuthRejectedError struct {
	Message string
}

func (e *AuthRejectedError) Error() string {
	if e.Message == "" {
		return "authentication rejected"
	}
	return "authentication rejected: " + e.Message
}

// PreconditionError reports an operation invoked in a state that forbids
// it, e.g. joining a room while disconnected.
type PreconditionError struct {
	Op     string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// RemoteError carries a failure message from the backend for an operation
// that does not affect connection state.
type RemoteError struct {
	Op      string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Op, e.Message)
}
