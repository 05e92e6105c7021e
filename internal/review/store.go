package review

import "context"

type Store interface {
	// SaveRound persists an allocation run and makes it the assignment's
	// active round, deactivating any previous one.
	SaveRound(ctx context.Context, r Round) (Round, error)
	ActiveRound(ctx context.Context, assignmentID string) (Round, error)
	// RoundsForReviewer returns the active rounds that allocated at
	// least one submission to the reviewer.
	RoundsForReviewer(ctx context.Context, reviewerID string) ([]Round, error)

	// InsertReview stores a new review. At most one live review per
	// (submission, reviewer) pair may exist; a second insert fails with
	// DuplicateReviewError.
	InsertReview(ctx context.Context, rv Review) (Review, error)
	GetReview(ctx context.Context, id string) (Review, error)
	// SupersedeReview atomically inserts the replacement and marks the
	// old review as superseded by it. The old review is kept.
	SupersedeReview(ctx context.Context, oldID string, replacement Review) (Review, error)
	// LiveReviews returns the non-superseded reviews for a submission.
	LiveReviews(ctx context.Context, submissionID string) ([]Review, error)
	ReviewsByReviewer(ctx context.Context, reviewerID string) ([]Review, error)
}
