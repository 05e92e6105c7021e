package review

import (
	"errors"
	"fmt"
)

var (
	ErrReviewNotFound = errors.New("review not found")
	ErrNoActiveRound  = errors.New("no active review round for assignment")
)

// UnauthorizedReviewError means the reviewer was never allocated the
// submission (or is its author).
type UnauthorizedReviewError struct {
	ReviewerID   string
	SubmissionID string
}

func (e *UnauthorizedReviewError) Error() string {
	return fmt.Sprintf("reviewer %s is not allocated to submission %s", e.ReviewerID, e.SubmissionID)
}

// DuplicateReviewError means a live (non-superseded) review by this
// reviewer already exists; the caller should amend instead.
type DuplicateReviewError struct {
	ReviewerID   string
	SubmissionID string
}

func (e *DuplicateReviewError) Error() string {
	return fmt.Sprintf("reviewer %s already reviewed submission %s", e.ReviewerID, e.SubmissionID)
}
