package assignment

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
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

func (s *SQLStore) PutAssignment(ctx context.Context, a Assignment) error {
	if a.Title == "" || a.Description == "" {
		return validationf("title and description are required")
	}
	if a.MaxPoints <= 0 {
		return validationf("max points must be positive")
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().Unix()
	var due sql.NullInt64
	if a.DueAt != nil {
		due = sql.NullInt64{Int64: a.DueAt.Unix(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO assignments
		(id,club_id,lesson_id,title,description,due_at,max_points,rubric_json,created_by,retired,created_at,updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,FALSE,$10,$10)
		ON CONFLICT (id) DO UPDATE SET
		  title=EXCLUDED.title, description=EXCLUDED.description, due_at=EXCLUDED.due_at,
		  max_points=EXCLUDED.max_points, rubric_json=EXCLUDED.rubric_json, updated_at=EXCLUDED.updated_at`,
		a.ID, a.ClubID, a.LessonID, a.Title, a.Description, due, a.MaxPoints, a.RubricJSON, a.CreatedBy, now)
	return err
}

func (s *SQLStore) GetAssignment(ctx context.Context, id string) (Assignment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,club_id,lesson_id,title,description,due_at,max_points,rubric_json,created_by,retired,created_at,updated_at
		FROM assignments WHERE id=$1`, id)
	return scanAssignment(row)
}

func (s *SQLStore) ListAssignments(ctx context.Context, opts ListOpts) ([]Assignment, error) {
	q := `SELECT id,club_id,lesson_id,title,description,due_at,max_points,rubric_json,created_by,retired,created_at,updated_at
		FROM assignments`
	var conds []string
	var args []any
	if opts.ClubID != "" {
		args = append(args, opts.ClubID)
		conds = append(conds, "club_id=$1")
	}
	if !opts.IncludeRetired {
		if s.driver == "sqlite" {
			conds = append(conds, "retired=0")
		} else {
			conds = append(conds, "retired=FALSE")
		}
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY created_at DESC"
	if opts.Limit > 0 {
		q += limitOffset(len(args)+1, &args, opts.Limit, opts.Offset)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) RetireAssignment(ctx context.Context, id string) error {
	retired := any(true)
	if s.driver == "sqlite" {
		retired = 1
	}
	res, err := s.db.ExecContext(ctx, `UPDATE assignments SET retired=$1, updated_at=$2 WHERE id=$3`,
		retired, time.Now().Unix(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAssignmentNotFound
	}
	return nil
}

func (s *SQLStore) SaveDraft(ctx context.Context, assignmentID, authorID, content, fileRef string) (Submission, error) {
	a, err := s.GetAssignment(ctx, assignmentID)
	if err != nil {
		return Submission{}, err
	}
	if a.Retired {
		return Submission{}, ErrAssignmentRetired
	}
	now := time.Now().Unix()

	existing, err := s.SubmissionByAuthor(ctx, assignmentID, authorID)
	switch {
	case err == nil:
		if existing.Status != StatusDraft {
			return Submission{}, &TransitionError{From: existing.Status, To: StatusDraft}
		}
		res, err := s.db.ExecContext(ctx, `UPDATE submissions
			SET content=$1, file_ref=$2, version=version+1, updated_at=$3
			WHERE id=$4 AND version=$5`,
			content, fileRef, now, existing.ID, existing.Version)
		if err != nil {
			return Submission{}, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return Submission{}, &ConcurrentModificationError{SubmissionID: existing.ID}
		}
		return s.GetSubmission(ctx, existing.ID)
	case errors.Is(err, ErrSubmissionNotFound):
		id := uuid.NewString()
		_, err := s.db.ExecContext(ctx, `INSERT INTO submissions
			(id,assignment_id,author_id,content,file_ref,status,version,created_at,updated_at)
			VALUES ($1,$2,$3,$4,$5,'draft',1,$6,$6)`,
			id, assignmentID, authorID, content, fileRef, now)
		if err != nil {
			return Submission{}, err
		}
		return s.GetSubmission(ctx, id)
	default:
		return Submission{}, err
	}
}

func (s *SQLStore) Submit(ctx context.Context, in SubmitInput) (Submission, error) {
	a, err := s.GetAssignment(ctx, in.AssignmentID)
	if err != nil {
		return Submission{}, err
	}
	if err := checkSubmit(a, in.Content, in.FileRef, in.OwnerOverride, time.Now().UTC()); err != nil {
		return Submission{}, err
	}
	now := time.Now().Unix()

	existing, err := s.SubmissionByAuthor(ctx, in.AssignmentID, in.AuthorID)
	switch {
	case err == nil:
		if !canTransition(existing.Status, StatusSubmitted) {
			return Submission{}, &TransitionError{From: existing.Status, To: StatusSubmitted}
		}
		res, err := s.db.ExecContext(ctx, `UPDATE submissions
			SET content=$1, file_ref=$2, status='submitted', submitted_at=$3, version=version+1, updated_at=$3
			WHERE id=$4 AND version=$5`,
			in.Content, in.FileRef, now, existing.ID, existing.Version)
		if err != nil {
			return Submission{}, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return Submission{}, &ConcurrentModificationError{SubmissionID: existing.ID}
		}
		return s.GetSubmission(ctx, existing.ID)
	case errors.Is(err, ErrSubmissionNotFound):
		id := uuid.NewString()
		_, err := s.db.ExecContext(ctx, `INSERT INTO submissions
			(id,assignment_id,author_id,content,file_ref,status,submitted_at,version,created_at,updated_at)
			VALUES ($1,$2,$3,$4,$5,'submitted',$6,1,$6,$6)`,
			id, in.AssignmentID, in.AuthorID, in.Content, in.FileRef, now)
		if err != nil {
			if isUniqueViolation(err) {
				return Submission{}, &ConcurrentModificationError{SubmissionID: id}
			}
			return Submission{}, err
		}
		return s.GetSubmission(ctx, id)
	default:
		return Submission{}, err
	}
}

func (s *SQLStore) GetSubmission(ctx context.Context, id string) (Submission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,assignment_id,author_id,content,file_ref,status,points_earned,feedback,submitted_at,graded_at,graded_by,version,created_at,updated_at
		FROM submissions WHERE id=$1`, id)
	return scanSubmission(row)
}

func (s *SQLStore) SubmissionByAuthor(ctx context.Context, assignmentID, authorID string) (Submission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,assignment_id,author_id,content,file_ref,status,points_earned,feedback,submitted_at,graded_at,graded_by,version,created_at,updated_at
		FROM submissions WHERE assignment_id=$1 AND author_id=$2`, assignmentID, authorID)
	return scanSubmission(row)
}

func (s *SQLStore) ListSubmissions(ctx context.Context, opts SubmissionListOpts) ([]Submission, error) {
	q := `SELECT id,assignment_id,author_id,content,file_ref,status,points_earned,feedback,submitted_at,graded_at,graded_by,version,created_at,updated_at
		FROM submissions`
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, cond+placeholder(len(args)))
	}
	if opts.AssignmentID != "" {
		add("assignment_id=", opts.AssignmentID)
	}
	if opts.AuthorID != "" {
		add("author_id=", opts.AuthorID)
	}
	if opts.Status != "" {
		add("status=", string(opts.Status))
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY created_at DESC"
	if opts.Limit > 0 {
		q += limitOffset(len(args)+1, &args, opts.Limit, opts.Offset)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// ApplyGrade writes the new grade and the history record in one
// transaction; a version mismatch rolls everything back.
func (s *SQLStore) ApplyGrade(ctx context.Context, in GradeInput) (Submission, error) {
	sub, err := s.GetSubmission(ctx, in.SubmissionID)
	if err != nil {
		return Submission{}, err
	}
	if in.ExpectedVersion != 0 && sub.Version != in.ExpectedVersion {
		return Submission{}, &ConcurrentModificationError{SubmissionID: sub.ID}
	}
	if !canTransition(sub.Status, StatusGraded) {
		return Submission{}, &TransitionError{From: sub.Status, To: StatusGraded}
	}
	a, err := s.GetAssignment(ctx, sub.AssignmentID)
	if err != nil {
		return Submission{}, err
	}
	if err := checkGrade(a, in.Points); err != nil {
		return Submission{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Submission{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().Unix()
	res, err := tx.ExecContext(ctx, `UPDATE submissions
		SET status='graded', points_earned=$1, feedback=$2, graded_at=$3, graded_by=$4, version=version+1, updated_at=$3
		WHERE id=$5 AND version=$6`,
		in.Points, in.Feedback, now, in.GradedBy, sub.ID, sub.Version)
	if err != nil {
		return Submission{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = &ConcurrentModificationError{SubmissionID: sub.ID}
		return Submission{}, err
	}
	override := any(in.Override)
	if s.driver == "sqlite" {
		override = boolToInt(in.Override)
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO submission_grades
		(submission_id,points,feedback,graded_by,override,created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		sub.ID, in.Points, in.Feedback, in.GradedBy, override, now); err != nil {
		return Submission{}, err
	}
	if err = tx.Commit(); err != nil {
		return Submission{}, err
	}
	return s.GetSubmission(ctx, sub.ID)
}

func (s *SQLStore) Release(ctx context.Context, submissionID string) (Submission, error) {
	sub, err := s.GetSubmission(ctx, submissionID)
	if err != nil {
		return Submission{}, err
	}
	if !canTransition(sub.Status, StatusReturned) {
		return Submission{}, &TransitionError{From: sub.Status, To: StatusReturned}
	}
	res, err := s.db.ExecContext(ctx, `UPDATE submissions
		SET status='returned', version=version+1, updated_at=$1
		WHERE id=$2 AND version=$3`,
		time.Now().Unix(), sub.ID, sub.Version)
	if err != nil {
		return Submission{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Submission{}, &ConcurrentModificationError{SubmissionID: sub.ID}
	}
	return s.GetSubmission(ctx, sub.ID)
}

func (s *SQLStore) GradeHistory(ctx context.Context, submissionID string) ([]GradeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT submission_id,points,feedback,graded_by,override,created_at
		FROM submission_grades WHERE submission_id=$1 ORDER BY id`, submissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []GradeRecord
	for rows.Next() {
		var g GradeRecord
		var created int64
		if err := rows.Scan(&g.SubmissionID, &g.Points, &g.Feedback, &g.GradedBy, &g.Override, &created); err != nil {
			return nil, err
		}
		g.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, g)
	}
	return out, rows.Err()
}

// --- scanning helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssignment(row rowScanner) (Assignment, error) {
	var a Assignment
	var due sql.NullInt64
	var created, updated int64
	err := row.Scan(&a.ID, &a.ClubID, &a.LessonID, &a.Title, &a.Description, &due,
		&a.MaxPoints, &a.RubricJSON, &a.CreatedBy, &a.Retired, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Assignment{}, ErrAssignmentNotFound
		}
		return Assignment{}, err
	}
	if due.Valid {
		t := time.Unix(due.Int64, 0).UTC()
		a.DueAt = &t
	}
	a.CreatedAt = time.Unix(created, 0).UTC()
	a.UpdatedAt = time.Unix(updated, 0).UTC()
	return a, nil
}

func scanSubmission(row rowScanner) (Submission, error) {
	var sub Submission
	var points sql.NullFloat64
	var submitted, graded sql.NullInt64
	var created, updated int64
	err := row.Scan(&sub.ID, &sub.AssignmentID, &sub.AuthorID, &sub.Content, &sub.FileRef,
		&sub.Status, &points, &sub.Feedback, &submitted, &graded, &sub.GradedBy,
		&sub.Version, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Submission{}, ErrSubmissionNotFound
		}
		return Submission{}, err
	}
	if points.Valid {
		v := points.Float64
		sub.PointsEarned = &v
	}
	if submitted.Valid {
		t := time.Unix(submitted.Int64, 0).UTC()
		sub.SubmittedAt = &t
	}
	if graded.Valid {
		t := time.Unix(graded.Int64, 0).UTC()
		sub.GradedAt = &t
	}
	sub.CreatedAt = time.Unix(created, 0).UTC()
	sub.UpdatedAt = time.Unix(updated, 0).UTC()
	return sub, nil
}

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func limitOffset(next int, args *[]any, limit, offset int) string {
	*args = append(*args, limit)
	q := " LIMIT " + placeholder(next)
	if offset > 0 {
		*args = append(*args, offset)
		q += " OFFSET " + placeholder(next+1)
	}
	return q
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
