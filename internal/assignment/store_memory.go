package assignment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryStore struct {
	mu          sync.RWMutex
	assignments map[string]Assignment
	submissions map[string]Submission
	grades      map[string][]GradeRecord // submissionID -> history
}

// NewInMemoryStore backs the store with process memory. Used in tests
// and single-node offline mode.
func NewInMemoryStore() Store {
	return &memoryStore{
		assignments: map[string]Assignment{},
		submissions: map[string]Submission{},
		grades:      map[string][]GradeRecord{},
	}
}

func (m *memoryStore) PutAssignment(_ context.Context, a Assignment) error {
	if a.Title == "" || a.Description == "" {
		return validationf("title and description are required")
	}
	if a.MaxPoints <= 0 {
		return validationf("max points must be positive")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	m.assignments[a.ID] = a
	return nil
}

func (m *memoryStore) GetAssignment(_ context.Context, id string) (Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assignments[id]
	if !ok {
		return Assignment{}, ErrAssignmentNotFound
	}
	return a, nil
}

func (m *memoryStore) ListAssignments(_ context.Context, opts ListOpts) ([]Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Assignment
	for _, a := range m.assignments {
		if opts.ClubID != "" && a.ClubID != opts.ClubID {
			continue
		}
		if a.Retired && !opts.IncludeRetired {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, opts.Limit, opts.Offset), nil
}

func (m *memoryStore) RetireAssignment(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[id]
	if !ok {
		return ErrAssignmentNotFound
	}
	a.Retired = true
	a.UpdatedAt = time.Now().UTC()
	m.assignments[id] = a
	return nil
}

func (m *memoryStore) SaveDraft(_ context.Context, assignmentID, authorID, content, fileRef string) (Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[assignmentID]
	if !ok {
		return Submission{}, ErrAssignmentNotFound
	}
	if a.Retired {
		return Submission{}, ErrAssignmentRetired
	}
	now := time.Now().UTC()
	if s, ok := m.findByAuthor(assignmentID, authorID); ok {
		if s.Status != StatusDraft {
			return Submission{}, &TransitionError{From: s.Status, To: StatusDraft}
		}
		s.Content = content
		s.FileRef = fileRef
		s.Version++
		s.UpdatedAt = now
		m.submissions[s.ID] = s
		return s, nil
	}
	s := Submission{
		ID:           uuid.NewString(),
		AssignmentID: assignmentID,
		AuthorID:     authorID,
		Content:      content,
		FileRef:      fileRef,
		Status:       StatusDraft,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.submissions[s.ID] = s
	return s, nil
}

func (m *memoryStore) Submit(_ context.Context, in SubmitInput) (Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[in.AssignmentID]
	if !ok {
		return Submission{}, ErrAssignmentNotFound
	}
	now := time.Now().UTC()
	if err := checkSubmit(a, in.Content, in.FileRef, in.OwnerOverride, now); err != nil {
		return Submission{}, err
	}

	if s, ok := m.findByAuthor(in.AssignmentID, in.AuthorID); ok {
		if !canTransition(s.Status, StatusSubmitted) {
			return Submission{}, &TransitionError{From: s.Status, To: StatusSubmitted}
		}
		s.Content = in.Content
		s.FileRef = in.FileRef
		s.Status = StatusSubmitted
		s.SubmittedAt = &now
		s.Version++
		s.UpdatedAt = now
		m.submissions[s.ID] = s
		return s, nil
	}
	s := Submission{
		ID:           uuid.NewString(),
		AssignmentID: in.AssignmentID,
		AuthorID:     in.AuthorID,
		Content:      in.Content,
		FileRef:      in.FileRef,
		Status:       StatusSubmitted,
		SubmittedAt:  &now,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.submissions[s.ID] = s
	return s, nil
}

func (m *memoryStore) GetSubmission(_ context.Context, id string) (Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.submissions[id]
	if !ok {
		return Submission{}, ErrSubmissionNotFound
	}
	return s, nil
}

func (m *memoryStore) SubmissionByAuthor(_ context.Context, assignmentID, authorID string) (Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.findByAuthor(assignmentID, authorID)
	if !ok {
		return Submission{}, ErrSubmissionNotFound
	}
	return s, nil
}

func (m *memoryStore) ListSubmissions(_ context.Context, opts SubmissionListOpts) ([]Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Submission
	for _, s := range m.submissions {
		if opts.AssignmentID != "" && s.AssignmentID != opts.AssignmentID {
			continue
		}
		if opts.AuthorID != "" && s.AuthorID != opts.AuthorID {
			continue
		}
		if opts.Status != "" && s.Status != opts.Status {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginateSubs(out, opts.Limit, opts.Offset), nil
}

func (m *memoryStore) ApplyGrade(_ context.Context, in GradeInput) (Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.submissions[in.SubmissionID]
	if !ok {
		return Submission{}, ErrSubmissionNotFound
	}
	if in.ExpectedVersion != 0 && s.Version != in.ExpectedVersion {
		return Submission{}, &ConcurrentModificationError{SubmissionID: s.ID}
	}
	if !canTransition(s.Status, StatusGraded) {
		return Submission{}, &TransitionError{From: s.Status, To: StatusGraded}
	}
	a, ok := m.assignments[s.AssignmentID]
	if !ok {
		return Submission{}, ErrAssignmentNotFound
	}
	if err := checkGrade(a, in.Points); err != nil {
		return Submission{}, err
	}

	now := time.Now().UTC()
	points := in.Points
	s.Status = StatusGraded
	s.PointsEarned = &points
	s.Feedback = in.Feedback
	s.GradedAt = &now
	s.GradedBy = in.GradedBy
	s.Version++
	s.UpdatedAt = now
	m.submissions[s.ID] = s
	m.grades[s.ID] = append(m.grades[s.ID], GradeRecord{
		SubmissionID: s.ID,
		Points:       in.Points,
		Feedback:     in.Feedback,
		GradedBy:     in.GradedBy,
		Override:     in.Override,
		CreatedAt:    now,
	})
	return s, nil
}

func (m *memoryStore) Release(_ context.Context, submissionID string) (Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.submissions[submissionID]
	if !ok {
		return Submission{}, ErrSubmissionNotFound
	}
	if !canTransition(s.Status, StatusReturned) {
		return Submission{}, &TransitionError{From: s.Status, To: StatusReturned}
	}
	s.Status = StatusReturned
	s.Version++
	s.UpdatedAt = time.Now().UTC()
	m.submissions[s.ID] = s
	return s, nil
}

func (m *memoryStore) GradeHistory(_ context.Context, submissionID string) ([]GradeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.submissions[submissionID]; !ok {
		return nil, ErrSubmissionNotFound
	}
	return append([]GradeRecord(nil), m.grades[submissionID]...), nil
}

func (m *memoryStore) findByAuthor(assignmentID, authorID string) (Submission, bool) {
	for _, s := range m.submissions {
		if s.AssignmentID == assignmentID && s.AuthorID == authorID {
			return s, true
		}
	}
	return Submission{}, false
}

func paginate(in []Assignment, limit, offset int) []Assignment {
	if offset > 0 {
		if offset >= len(in) {
			return nil
		}
		in = in[offset:]
	}
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}

func paginateSubs(in []Submission, limit, offset int) []Submission {
	if offset > 0 {
		if offset >= len(in) {
			return nil
		}
		in = in[offset:]
	}
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}
