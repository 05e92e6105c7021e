package club

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryDirectory struct {
	mu      sync.RWMutex
	clubs   map[string]Club
	members map[string]map[string]Member // clubID -> userID -> member
}

func NewInMemoryDirectory() Directory {
	return &memoryDirectory{
		clubs:   map[string]Club{},
		members: map[string]map[string]Member{},
	}
}

func (m *memoryDirectory) PutClub(_ context.Context, c Club) (Club, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	m.clubs[c.ID] = c
	return c, nil
}

func (m *memoryDirectory) GetClub(_ context.Context, id string) (Club, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clubs[id]
	if !ok {
		return Club{}, ErrClubNotFound
	}
	return c, nil
}

func (m *memoryDirectory) ListClubs(_ context.Context) ([]Club, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Club, 0, len(m.clubs))
	for _, c := range m.clubs {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryDirectory) AddMember(_ context.Context, mem Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clubs[mem.ClubID]; !ok {
		return ErrClubNotFound
	}
	if mem.Role == "" {
		mem.Role = RoleMember
	}
	if mem.JoinedAt.IsZero() {
		mem.JoinedAt = time.Now().UTC()
	}
	if m.members[mem.ClubID] == nil {
		m.members[mem.ClubID] = map[string]Member{}
	}
	if old, ok := m.members[mem.ClubID][mem.UserID]; ok {
		mem.JoinedAt = old.JoinedAt
	}
	m.members[mem.ClubID][mem.UserID] = mem
	return nil
}

func (m *memoryDirectory) RemoveMember(_ context.Context, clubID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.members[clubID][userID]; !ok {
		return ErrMemberNotFound
	}
	delete(m.members[clubID], userID)
	return nil
}

func (m *memoryDirectory) GetMember(_ context.Context, clubID, userID string) (Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mem, ok := m.members[clubID][userID]
	if !ok {
		return Member{}, ErrMemberNotFound
	}
	return mem, nil
}

func (m *memoryDirectory) ListMembers(_ context.Context, clubID string) ([]Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Member
	for _, mem := range m.members[clubID] {
		out = append(out, mem)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}
