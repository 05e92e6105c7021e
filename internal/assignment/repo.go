package assignment

import "context"

type ListOpts struct {
	ClubID         string
	IncludeRetired bool
	Limit          int
	Offset         int
}

type SubmissionListOpts struct {
	AssignmentID string
	AuthorID     string
	Status       Status
	Limit        int
	Offset       int
}

// SubmitInput drives the draft -> submitted transition (creating the
// submission on the fly when no draft exists).
type SubmitInput struct {
	AssignmentID string
	AuthorID     string
	Content      string
	FileRef      string

	// OwnerOverride accepts the submission past the deadline; only the
	// assignment owner may set it (enforced at the boundary).
	OwnerOverride bool
}

// GradeInput drives submitted|returned|graded -> graded. ExpectedVersion
// is the version the caller read; a mismatch means a concurrent writer
// won and the caller must retry.
type GradeInput struct {
	SubmissionID    string
	Points          float64
	Feedback        string
	GradedBy        string
	Override        bool
	ExpectedVersion int64
}

type Store interface {
	PutAssignment(ctx context.Context, a Assignment) error
	GetAssignment(ctx context.Context, id string) (Assignment, error)
	ListAssignments(ctx context.Context, opts ListOpts) ([]Assignment, error)
	RetireAssignment(ctx context.Context, id string) error

	// SaveDraft creates or updates the author's draft. Editing is only
	// allowed while the submission is in draft.
	SaveDraft(ctx context.Context, assignmentID, authorID, content, fileRef string) (Submission, error)
	Submit(ctx context.Context, in SubmitInput) (Submission, error)

	GetSubmission(ctx context.Context, id string) (Submission, error)
	SubmissionByAuthor(ctx context.Context, assignmentID, authorID string) (Submission, error)
	ListSubmissions(ctx context.Context, opts SubmissionListOpts) ([]Submission, error)

	// ApplyGrade performs submitted->graded (or a regrade re-entering
	// graded) and appends to the grading history.
	ApplyGrade(ctx context.Context, in GradeInput) (Submission, error)
	// Release performs graded->returned.
	Release(ctx context.Context, submissionID string) (Submission, error)
	GradeHistory(ctx context.Context, submissionID string) ([]GradeRecord, error)
}
