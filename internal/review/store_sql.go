package review

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

func (s *SQLStore) boolVal(b bool) any {
	if s.driver == "sqlite" {
		if b {
			return 1
		}
		return 0
	}
	return b
}

func (s *SQLStore) SaveRound(ctx context.Context, r Round) (Round, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	r.Active = true

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Round{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `UPDATE review_rounds SET active=$1 WHERE assignment_id=$2 AND active=$3`,
		s.boolVal(false), r.AssignmentID, s.boolVal(true)); err != nil {
		return Round{}, err
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO review_rounds (id,assignment_id,seed,shortfall,active,created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		r.ID, r.AssignmentID, r.Seed, r.Shortfall, s.boolVal(true), r.CreatedAt.Unix()); err != nil {
		return Round{}, err
	}
	for _, p := range r.Pairs {
		if _, err = tx.ExecContext(ctx, `INSERT INTO review_assignments (round_id,reviewer_id,submission_id)
			VALUES ($1,$2,$3)`, r.ID, p.ReviewerID, p.SubmissionID); err != nil {
			return Round{}, err
		}
	}
	if err = tx.Commit(); err != nil {
		return Round{}, err
	}
	return r, nil
}

func (s *SQLStore) ActiveRound(ctx context.Context, assignmentID string) (Round, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,assignment_id,seed,shortfall,active,created_at
		FROM review_rounds WHERE assignment_id=$1 AND active=$2`, assignmentID, s.boolVal(true))
	r, err := scanRound(row)
	if err != nil {
		return Round{}, err
	}
	r.Pairs, err = s.pairsForRound(ctx, r.ID)
	if err != nil {
		return Round{}, err
	}
	return r, nil
}

func (s *SQLStore) RoundsForReviewer(ctx context.Context, reviewerID string) ([]Round, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT r.id,r.assignment_id,r.seed,r.shortfall,r.active,r.created_at
		FROM review_rounds r
		JOIN review_assignments ra ON ra.round_id = r.id
		WHERE ra.reviewer_id=$1 AND r.active=$2
		ORDER BY r.created_at`, reviewerID, s.boolVal(true))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Round
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Pairs, err = s.pairsForRound(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *SQLStore) pairsForRound(ctx context.Context, roundID string) ([]Pair, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT reviewer_id,submission_id FROM review_assignments
		WHERE round_id=$1 ORDER BY reviewer_id, submission_id`, roundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Pair
	for rows.Next() {
		var p Pair
		if err := rows.Scan(&p.ReviewerID, &p.SubmissionID); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLStore) InsertReview(ctx context.Context, rv Review) (Review, error) {
	rv, err := s.insertReview(ctx, s.db, rv)
	return rv, err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLStore) insertReview(ctx context.Context, ex execer, rv Review) (Review, error) {
	if rv.ID == "" {
		rv.ID = uuid.NewString()
	}
	if rv.CreatedAt.IsZero() {
		rv.CreatedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(rv.Scores)
	if err != nil {
		return Review{}, err
	}
	_, err = ex.ExecContext(ctx, `INSERT INTO reviews (id,submission_id,reviewer_id,scores_json,comment,superseded_by,created_at)
		VALUES ($1,$2,$3,$4,$5,NULL,$6)`,
		rv.ID, rv.SubmissionID, rv.ReviewerID, string(raw), rv.Comment, rv.CreatedAt.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return Review{}, &DuplicateReviewError{ReviewerID: rv.ReviewerID, SubmissionID: rv.SubmissionID}
		}
		return Review{}, err
	}
	return rv, nil
}

func (s *SQLStore) GetReview(ctx context.Context, id string) (Review, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,submission_id,reviewer_id,scores_json,comment,superseded_by,created_at
		FROM reviews WHERE id=$1`, id)
	return scanReview(row)
}

func (s *SQLStore) SupersedeReview(ctx context.Context, oldID string, replacement Review) (Review, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Review{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if replacement.ID == "" {
		replacement.ID = uuid.NewString()
	}
	// Retire the old review first so the live-pair unique index admits
	// the replacement.
	var res sql.Result
	res, err = tx.ExecContext(ctx, `UPDATE reviews SET superseded_by=$1 WHERE id=$2 AND superseded_by IS NULL`,
		replacement.ID, oldID)
	if err != nil {
		return Review{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrReviewNotFound
		return Review{}, err
	}
	replacement, err = s.insertReview(ctx, tx, replacement)
	if err != nil {
		return Review{}, err
	}
	if err = tx.Commit(); err != nil {
		return Review{}, err
	}
	return replacement, nil
}

func (s *SQLStore) LiveReviews(ctx context.Context, submissionID string) ([]Review, error) {
	return s.listReviews(ctx, `SELECT id,submission_id,reviewer_id,scores_json,comment,superseded_by,created_at
		FROM reviews WHERE submission_id=$1 AND superseded_by IS NULL ORDER BY reviewer_id`, submissionID)
}

func (s *SQLStore) ReviewsByReviewer(ctx context.Context, reviewerID string) ([]Review, error) {
	return s.listReviews(ctx, `SELECT id,submission_id,reviewer_id,scores_json,comment,superseded_by,created_at
		FROM reviews WHERE reviewer_id=$1 AND superseded_by IS NULL ORDER BY created_at`, reviewerID)
}

func (s *SQLStore) listReviews(ctx context.Context, q string, args ...any) ([]Review, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Review
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRound(row rowScanner) (Round, error) {
	var r Round
	var created int64
	err := row.Scan(&r.ID, &r.AssignmentID, &r.Seed, &r.Shortfall, &r.Active, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Round{}, ErrNoActiveRound
		}
		return Round{}, err
	}
	r.CreatedAt = time.Unix(created, 0).UTC()
	return r, nil
}

func scanReview(row rowScanner) (Review, error) {
	var rv Review
	var raw string
	var superseded sql.NullString
	var created int64
	err := row.Scan(&rv.ID, &rv.SubmissionID, &rv.ReviewerID, &raw, &rv.Comment, &superseded, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Review{}, ErrReviewNotFound
		}
		return Review{}, err
	}
	if err := json.Unmarshal([]byte(raw), &rv.Scores); err != nil {
		return Review{}, err
	}
	rv.SupersededBy = superseded.String
	rv.CreatedAt = time.Unix(created, 0).UTC()
	return rv, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
