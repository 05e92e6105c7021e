package assignment

import "time"

type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusGraded    Status = "graded"
	StatusReturned  Status = "returned"
)

type Assignment struct {
	ID          string     `json:"id"`
	ClubID      string     `json:"club_id"`
	LessonID    string     `json:"lesson_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	MaxPoints   float64    `json:"max_points"`
	RubricJSON  string     `json:"rubric,omitempty"` // empty means the default rubric
	CreatedBy   string     `json:"created_by"`
	Retired     bool       `json:"retired,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type Submission struct {
	ID           string     `json:"id"`
	AssignmentID string     `json:"assignment_id"`
	AuthorID     string     `json:"author_id"`
	Content      string     `json:"content,omitempty"`
	FileRef      string     `json:"file_ref,omitempty"`
	Status       Status     `json:"status"`
	PointsEarned *float64   `json:"points_earned,omitempty"`
	Feedback     string     `json:"feedback,omitempty"`
	SubmittedAt  *time.Time `json:"submitted_at,omitempty"`
	GradedAt     *time.Time `json:"graded_at,omitempty"`
	GradedBy     string     `json:"graded_by,omitempty"`

	// Version increments on every state change; writers pass the version
	// they read to detect concurrent modification.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GradeRecord is one entry in a submission's grading history. Regrades
// and overrides append; nothing is overwritten.
type GradeRecord struct {
	SubmissionID string    `json:"submission_id"`
	Points       float64   `json:"points"`
	Feedback     string    `json:"feedback,omitempty"`
	GradedBy     string    `json:"graded_by"`
	Override     bool      `json:"override,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
