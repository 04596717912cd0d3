// internal/lobby/memstore.go
package lobby

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/dungeonbuilder/backend/internal/models"
)

// MemoryStore is a mutex-guarded in-memory Store. It honors the same
// version semantics as the Postgres adapter and backs the unit tests; it
// is also handy for single-process development runs.
type MemoryStore struct {
	mu      sync.Mutex
	lobbies map[uuid.UUID]*models.Lobby
	invites map[uuid.UUID]*models.Invite
}

// NewMemoryStore initializes and returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		lobbies: make(map[uuid.UUID]*models.Lobby),
		invites: make(map[uuid.UUID]*models.Invite),
	}
}

func (s *MemoryStore) GetLobby(ctx context.Context, id uuid.UUID) (*models.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lobbies[id]
	if !ok {
		return nil, ErrNotFound
	}
	return l.Clone(), nil
}

func (s *MemoryStore) CreateLobby(ctx context.Context, l *models.Lobby) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.Version == 0 {
		l.Version = 1
	}
	s.lobbies[l.ID] = l.Clone()
	return nil
}

func (s *MemoryStore) SaveLobby(ctx context.Context, l *models.Lobby, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLobbyLocked(l, expectedVersion)
}

func (s *MemoryStore) saveLobbyLocked(l *models.Lobby, expectedVersion int64) error {
	cur, ok := s.lobbies[l.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != expectedVersion {
		return ErrVersionConflict
	}
	next := l.Clone()
	next.Version = expectedVersion + 1
	s.lobbies[l.ID] = next
	l.Version = next.Version
	return nil
}

func (s *MemoryStore) ListLobbies(ctx context.Context, f LobbyFilter) ([]models.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Lobby
	for _, l := range s.lobbies {
		if f.Status != "" && l.Status != f.Status {
			continue
		}
		if f.PublicOnly && !l.IsPublic {
			continue
		}
		if f.CreatorID != uuid.Nil && l.CreatorID != f.CreatorID {
			continue
		}
		if !f.UpdatedBefore.IsZero() && !l.UpdatedAt.Before(f.UpdatedBefore) {
			continue
		}
		out = append(out, *l.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemoryStore) GetInvite(ctx context.Context, id uuid.UUID) (*models.Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invites[id]
	if !ok {
		return nil, ErrNotFound
	}
	return inv.Clone(), nil
}

func (s *MemoryStore) CreateInvite(ctx context.Context, inv *models.Invite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.invites {
		if existing.LobbyID == inv.LobbyID && existing.InviteeID == inv.InviteeID &&
			existing.Status == models.InvitePending {
			return ErrDuplicatePendingInvite
		}
	}
	if inv.Version == 0 {
		inv.Version = 1
	}
	s.invites[inv.ID] = inv.Clone()
	return nil
}

func (s *MemoryStore) SaveInvite(ctx context.Context, inv *models.Invite, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveInviteLocked(inv, expectedVersion)
}

func (s *MemoryStore) saveInviteLocked(inv *models.Invite, expectedVersion int64) error {
	cur, ok := s.invites[inv.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != expectedVersion {
		return ErrVersionConflict
	}
	next := inv.Clone()
	next.Version = expectedVersion + 1
	s.invites[inv.ID] = next
	inv.Version = next.Version
	return nil
}

// SaveLobbyAndInvite applies both conditional writes under one lock so a
// reader never observes the invite accepted without the membership change.
func (s *MemoryStore) SaveLobbyAndInvite(ctx context.Context, l *models.Lobby, lobbyVersion int64, inv *models.Invite, inviteVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	curInv, ok := s.invites[inv.ID]
	if !ok {
		return ErrNotFound
	}
	if curInv.Version != inviteVersion {
		return ErrVersionConflict
	}
	if err := s.saveLobbyLocked(l, lobbyVersion); err != nil {
		return err
	}
	return s.saveInviteLocked(inv, inviteVersion)
}

func (s *MemoryStore) FindPendingInvite(ctx context.Context, lobbyID, inviteeID uuid.UUID) (*models.Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range s.invites {
		if inv.LobbyID == lobbyID && inv.InviteeID == inviteeID && inv.Status == models.InvitePending {
			return inv.Clone(), nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) ListInvitesForUser(ctx context.Context, inviteeID uuid.UUID) ([]models.Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Invite
	for _, inv := range s.invites {
		if inv.InviteeID == inviteeID && inv.Status == models.InvitePending {
			out = append(out, *inv.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
