package review

import "time"

// Review is one reviewer's rubric assessment of one submission. Amending
// never rewrites a review in place: the old row is kept and marked
// superseded so the grading trail stays intact.
type Review struct {
	ID           string             `json:"id"`
	SubmissionID string             `json:"submission_id"`
	ReviewerID   string             `json:"reviewer_id"`
	Scores       map[string]float64 `json:"scores"`
	Comment      string             `json:"comment,omitempty"`
	SupersededBy string             `json:"superseded_by,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}

// Pair is one reviewer-to-submission allocation.
type Pair struct {
	ReviewerID   string `json:"reviewer_id"`
	SubmissionID string `json:"submission_id"`
}

// Round records one allocation run for an assignment. Re-running
// allocation deactivates the previous round; reviews already submitted
// against it remain valid.
type Round struct {
	ID           string    `json:"id"`
	AssignmentID string    `json:"assignment_id"`
	Seed         int64     `json:"seed"`
	Shortfall    int       `json:"shortfall"`
	Active       bool      `json:"active"`
	Pairs        []Pair    `json:"pairs"`
	CreatedAt    time.Time `json:"created_at"`
}

// QueueItem is one pending review from a reviewer's perspective.
type QueueItem struct {
	SubmissionID string `json:"submission_id"`
	AssignmentID string `json:"assignment_id"`
	Done         bool   `json:"done"`
}
