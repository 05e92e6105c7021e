package club

import (
	"context"
	"errors"
	"testing"
)

func TestMembership(t *testing.T) {
	ctx := context.Background()
	dir := NewInMemoryDirectory()

	c, err := dir.PutClub(ctx, Club{Name: "Debate", CreatedBy: "olga"})
	if err != nil {
		t.Fatalf("PutClub: %v", err)
	}
	if c.ID == "" {
		t.Fatal("club id not assigned")
	}

	if err := dir.AddMember(ctx, Member{ClubID: "missing", UserID: "olga"}); !errors.Is(err, ErrClubNotFound) {
		t.Fatalf("add to missing club: err = %v", err)
	}

	if err := dir.AddMember(ctx, Member{ClubID: c.ID, UserID: "olga", Role: RoleOrganizer}); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if err := dir.AddMember(ctx, Member{ClubID: c.ID, UserID: "marek"}); err != nil {
		t.Fatalf("AddMember default role: %v", err)
	}

	m, err := dir.GetMember(ctx, c.ID, "marek")
	if err != nil || m.Role != RoleMember {
		t.Fatalf("GetMember = %+v, %v", m, err)
	}

	// Re-adding updates the role, keeps the join date.
	joined := m.JoinedAt
	if err := dir.AddMember(ctx, Member{ClubID: c.ID, UserID: "marek", Role: RoleOrganizer}); err != nil {
		t.Fatalf("promote: %v", err)
	}
	m, _ = dir.GetMember(ctx, c.ID, "marek")
	if m.Role != RoleOrganizer || !m.JoinedAt.Equal(joined) {
		t.Fatalf("after promote = %+v", m)
	}

	list, err := dir.ListMembers(ctx, c.ID)
	if err != nil || len(list) != 2 {
		t.Fatalf("ListMembers = %v, %v", list, err)
	}

	if err := dir.RemoveMember(ctx, c.ID, "marek"); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
	if _, err := dir.GetMember(ctx, c.ID, "marek"); !errors.Is(err, ErrMemberNotFound) {
		t.Fatalf("after remove: err = %v", err)
	}
}

func TestCanManage(t *testing.T) {
	if CanManage(RoleMember) {
		t.Fatal("member can manage")
	}
	if !CanManage(RoleOrganizer) || !CanManage(RoleAdmin) {
		t.Fatal("organizer/admin cannot manage")
	}
}
