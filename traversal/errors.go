package traversal

import (
	"errors"
	"fmt"
)

var (
	// ErrRowSourceLost is returned when not even the first row can be read.
	ErrRowSourceLost = errors.New("row source lost")
	ErrSession       = errors.New("session lost")
	ErrDispatch      = errors.New("dispatch failed")
	ErrInvalidFilter = errors.New("invalid resume filter")
)

// SessionError reports that the authenticated session could not be kept.
// It stops the traversal.
type SessionError struct {
	Op  string
	Err error
}

func (e *SessionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("session lost during %s", e.Op)
	}
	return fmt.Sprintf("session lost during %s: %v", e.Op, e.Err)
}

func (e *SessionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSession}
	}
	return []error{ErrSession, e.Err}
}

// DispatchError reports a failed dispatch of one location. The traversal
// records it and moves on.
type DispatchError struct {
	Code   string
	Reason string
	Err    error
}

func (e *DispatchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("dispatch of %s failed: %s", e.Code, e.Reason)
	}
	return fmt.Sprintf("dispatch of %s failed: %s: %v", e.Code, e.Reason, e.Err)
}

func (e *DispatchError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDispatch}
	}
	return []error{ErrDispatch, e.Err}
}

// reasonOf extracts a short operator-facing reason from a dispatch error.
func reasonOf(err error) string {
	var de *DispatchError
	if errors.As(err, &de) && de.Reason != "" {
		return de.Reason
	}
	return err.Error()
}
