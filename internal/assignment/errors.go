package assignment

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrAssignmentRetired  = errors.New("assignment is retired")
)

// ValidationError covers malformed or out-of-range input. It is never
// retried; the message is safe to surface.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// DeadlinePassedError carries the missed deadline for UI messaging.
type DeadlinePassedError struct {
	Due time.Time
}

func (e *DeadlinePassedError) Error() string {
	return fmt.Sprintf("deadline passed at %s", e.Due.UTC().Format(time.RFC3339))
}

// ConcurrentModificationError means another writer won; the caller
// should re-fetch and retry.
type ConcurrentModificationError struct {
	SubmissionID string
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("submission %s was modified concurrently", e.SubmissionID)
}

// TransitionError reports an illegal lifecycle move.
type TransitionError struct {
	From, To Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal transition %s -> %s", e.From, e.To)
}
