package club

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

type SQLDirectory struct{ db *sql.DB }

func NewSQLDirectory(db *sql.DB) *SQLDirectory { return &SQLDirectory{db: db} }

func (s *SQLDirectory) PutClub(ctx context.Context, c Club) (Club, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO clubs (id,name,created_by,created_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name`,
		c.ID, c.Name, c.CreatedBy, c.CreatedAt.Unix())
	return c, err
}

func (s *SQLDirectory) GetClub(ctx context.Context, id string) (Club, error) {
	var c Club
	var created int64
	err := s.db.QueryRowContext(ctx, `SELECT id,name,created_by,created_at FROM clubs WHERE id=$1`, id).
		Scan(&c.ID, &c.Name, &c.CreatedBy, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Club{}, ErrClubNotFound
		}
		return Club{}, err
	}
	c.CreatedAt = time.Unix(created, 0).UTC()
	return c, nil
}

func (s *SQLDirectory) ListClubs(ctx context.Context) ([]Club, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,name,created_by,created_at FROM clubs ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Club
	for rows.Next() {
		var c Club
		var created int64
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedBy, &created); err != nil {
			return nil, err
		}
		c.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLDirectory) AddMember(ctx context.Context, m Member) error {
	if _, err := s.GetClub(ctx, m.ClubID); err != nil {
		return err
	}
	if m.Role == "" {
		m.Role = RoleMember
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO members (club_id,user_id,role,joined_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (club_id,user_id) DO UPDATE SET role=EXCLUDED.role`,
		m.ClubID, m.UserID, m.Role, m.JoinedAt.Unix())
	return err
}

func (s *SQLDirectory) RemoveMember(ctx context.Context, clubID, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM members WHERE club_id=$1 AND user_id=$2`, clubID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrMemberNotFound
	}
	return nil
}

func (s *SQLDirectory) GetMember(ctx context.Context, clubID, userID string) (Member, error) {
	var m Member
	var joined int64
	err := s.db.QueryRowContext(ctx, `SELECT club_id,user_id,role,joined_at FROM members
		WHERE club_id=$1 AND user_id=$2`, clubID, userID).
		Scan(&m.ClubID, &m.UserID, &m.Role, &joined)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Member{}, ErrMemberNotFound
		}
		return Member{}, err
	}
	m.JoinedAt = time.Unix(joined, 0).UTC()
	return m, nil
}

func (s *SQLDirectory) ListMembers(ctx context.Context, clubID string) ([]Member, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT club_id,user_id,role,joined_at FROM members
		WHERE club_id=$1 ORDER BY user_id`, clubID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Member
	for rows.Next() {
		var m Member
		var joined int64
		if err := rows.Scan(&m.ClubID, &m.UserID, &m.Role, &joined); err != nil {
			return nil, err
		}
		m.JoinedAt = time.Unix(joined, 0).UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}
