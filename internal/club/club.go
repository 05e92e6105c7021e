// Package club holds the club directory: clubs and their memberships.
// Membership roles gate assignment management inside a club.
package club

import (
	"context"
	"errors"
	"time"
)

// Membership roles within one club. A platform admin bypasses these.
const (
	RoleMember    = "member"
	RoleOrganizer = "organizer"
	RoleAdmin     = "admin"
)

var (
	ErrClubNotFound   = errors.New("club not found")
	ErrMemberNotFound = errors.New("member not found")
)

type Club struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

type Member struct {
	ClubID   string    `json:"club_id"`
	UserID   string    `json:"user_id"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

type Directory interface {
	PutClub(ctx context.Context, c Club) (Club, error)
	GetClub(ctx context.Context, id string) (Club, error)
	ListClubs(ctx context.Context) ([]Club, error)

	// AddMember upserts the membership; adding an existing member
	// updates the role.
	AddMember(ctx context.Context, m Member) error
	RemoveMember(ctx context.Context, clubID, userID string) error
	GetMember(ctx context.Context, clubID, userID string) (Member, error)
	ListMembers(ctx context.Context, clubID string) ([]Member, error)
}

// CanManage reports whether the membership role may create and grade
// assignments in the club.
func CanManage(role string) bool {
	return role == RoleOrganizer || role == RoleAdmin
}
