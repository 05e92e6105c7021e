package review

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryStore struct {
	mu      sync.RWMutex
	rounds  map[string]Round  // roundID -> round
	reviews map[string]Review // reviewID -> review
}

// NewInMemoryStore backs the store with process memory. Used in tests
// and single-node offline mode.
func NewInMemoryStore() Store {
	return &memoryStore{
		rounds:  map[string]Round{},
		reviews: map[string]Review{},
	}
}

func (m *memoryStore) SaveRound(_ context.Context, r Round) (Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	r.Active = true
	for id, old := range m.rounds {
		if old.AssignmentID == r.AssignmentID && old.Active {
			old.Active = false
			m.rounds[id] = old
		}
	}
	m.rounds[r.ID] = r
	return r, nil
}

func (m *memoryStore) ActiveRound(_ context.Context, assignmentID string) (Round, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rounds {
		if r.AssignmentID == assignmentID && r.Active {
			return r, nil
		}
	}
	return Round{}, ErrNoActiveRound
}

func (m *memoryStore) RoundsForReviewer(_ context.Context, reviewerID string) ([]Round, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Round
	for _, r := range m.rounds {
		if !r.Active {
			continue
		}
		for _, p := range r.Pairs {
			if p.ReviewerID == reviewerID {
				out = append(out, r)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryStore) InsertReview(_ context.Context, rv Review) (Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(rv)
}

func (m *memoryStore) insertLocked(rv Review) (Review, error) {
	for _, existing := range m.reviews {
		if existing.SubmissionID == rv.SubmissionID && existing.ReviewerID == rv.ReviewerID && existing.SupersededBy == "" {
			return Review{}, &DuplicateReviewError{ReviewerID: rv.ReviewerID, SubmissionID: rv.SubmissionID}
		}
	}
	if rv.ID == "" {
		rv.ID = uuid.NewString()
	}
	if rv.CreatedAt.IsZero() {
		rv.CreatedAt = time.Now().UTC()
	}
	m.reviews[rv.ID] = rv
	return rv, nil
}

func (m *memoryStore) GetReview(_ context.Context, id string) (Review, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rv, ok := m.reviews[id]
	if !ok {
		return Review{}, ErrReviewNotFound
	}
	return rv, nil
}

func (m *memoryStore) SupersedeReview(_ context.Context, oldID string, replacement Review) (Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.reviews[oldID]
	if !ok {
		return Review{}, ErrReviewNotFound
	}
	if old.SupersededBy != "" {
		return Review{}, ErrReviewNotFound
	}
	// Mark first so the uniqueness scan in insertLocked sees the old
	// review as dead.
	old.SupersededBy = "pending"
	m.reviews[oldID] = old
	rv, err := m.insertLocked(replacement)
	if err != nil {
		old.SupersededBy = ""
		m.reviews[oldID] = old
		return Review{}, err
	}
	old.SupersededBy = rv.ID
	m.reviews[oldID] = old
	return rv, nil
}

func (m *memoryStore) LiveReviews(_ context.Context, submissionID string) ([]Review, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Review
	for _, rv := range m.reviews {
		if rv.SubmissionID == submissionID && rv.SupersededBy == "" {
			out = append(out, rv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReviewerID < out[j].ReviewerID })
	return out, nil
}

func (m *memoryStore) ReviewsByReviewer(_ context.Context, reviewerID string) ([]Review, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Review
	for _, rv := range m.reviews {
		if rv.ReviewerID == reviewerID && rv.SupersededBy == "" {
			out = append(out, rv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
