// Package audit records grading-relevant actions as an append-only
// event log. The log is the source of truth for "who changed this
// grade and when"; submission rows only hold the latest state.
package audit

import (
	"context"
	"database/sql"
	"sync"
	"time"
)

const (
	TypeSubmissionReceived = "SubmissionReceived"
	TypeRoundAllocated     = "RoundAllocated"
	TypeReviewSubmitted    = "ReviewSubmitted"
	TypeReviewAmended      = "ReviewAmended"
	TypeGradeFinalized     = "GradeFinalized"
	TypeGradeOverridden    = "GradeOverridden"
	TypeGradeReleased      = "GradeReleased"
)

type Event struct {
	Offset    int64
	Type      string
	Key       string // natural key: submission or review id
	Actor     string
	DataJSON  string
	CreatedAt int64
}

type Recorder interface {
	Append(ctx context.Context, e Event) error
	// Since returns events after the given offset, oldest first.
	Since(ctx context.Context, offset int64, limit int) ([]Event, error)
}

type EventRepo struct{ db *sql.DB }

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

func (r *EventRepo) Append(ctx context.Context, e Event) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO event_log (typ, key, actor, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		e.Type, e.Key, e.Actor, e.DataJSON, time.Now().Unix())
	return err
}

func (r *EventRepo) Since(ctx context.Context, offset int64, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT "offset", typ, key, actor, data, created_at FROM event_log
		 WHERE "offset" > $1 ORDER BY "offset" LIMIT $2`, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Offset, &e.Type, &e.Key, &e.Actor, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MemoryLog keeps events in memory for offline mode and tests.
type MemoryLog struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryLog() *MemoryLog { return &MemoryLog{} }

func (l *MemoryLog) Append(_ context.Context, e Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.Offset = int64(len(l.events) + 1)
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().Unix()
	}
	l.events = append(l.events, e)
	return nil
}

func (l *MemoryLog) Since(_ context.Context, offset int64, limit int) ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	var out []Event
	for _, e := range l.events {
		if e.Offset > offset {
			out = append(out, e)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}
