// internal/lobby/manager.go
//
// Manager is the lobby state machine orchestrator. Every mutating
// operation follows the same shape: load the current snapshot, run the
// pure policy check, apply the mutation, and persist with a conditional
// write. On a version conflict the whole evaluation is re-run against a
// fresh snapshot, a bounded number of times. Capacity under concurrent
// joins is enforced purely by that optimistic-write race: two racing
// joins may both see a free slot, but only one conditional write lands;
// the loser re-evaluates and then fails cleanly.
package lobby

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dungeonbuilder/backend/internal/auth"
	"github.com/dungeonbuilder/backend/internal/models"
)

const (
	// DefaultMaxSaveAttempts bounds the reload-and-retry loop on version
	// conflicts before surfacing KindConcurrentModification.
	DefaultMaxSaveAttempts = 3
	// DefaultMinMembersToStart is the minimum member count for start.
	DefaultMinMembersToStart = 2
	// MinCapacity is the smallest lobby capacity accepted at creation.
	MinCapacity = 2
)

// Manager coordinates lobby lifecycle transitions against a Store.
// Handlers run as independent stateless invocations; all cross-request
// coordination happens through the store's version token.
type Manager struct {
	Store  Store
	Users  UserDirectory
	Notify NotificationSink // optional, fire-and-forget
	Log    *logrus.Logger   // optional
	Clock  Clock

	MinMembersToStart int
	MaxSaveAttempts   int
}

// NewManager returns a Manager with default policy knobs. Notify and Log
// may be assigned by the caller before use.
func NewManager(store Store, users UserDirectory) *Manager {
	return &Manager{
		Store:             store,
		Users:             users,
		Clock:             systemClock{},
		MinMembersToStart: DefaultMinMembersToStart,
		MaxSaveAttempts:   DefaultMaxSaveAttempts,
	}
}

func (m *Manager) logger() *logrus.Logger {
	if m.Log != nil {
		return m.Log
	}
	return logrus.StandardLogger()
}

func (m *Manager) now() time.Time { return m.Clock.Now() }

// CreateParams carries the caller-supplied fields for Create.
type CreateParams struct {
	CreatorID uuid.UUID
	Name      string
	DungeonID uuid.UUID
	Capacity  int
	IsPublic  bool
	Password  string
}

// Create builds a new waiting lobby with the creator as sole member.
// Supplying a password makes the lobby private regardless of IsPublic:
// a password hash is only ever present on private lobbies.
func (m *Manager) Create(ctx context.Context, p CreateParams) (*models.Lobby, error) {
	if p.Capacity < MinCapacity {
		return nil, newError(KindInvalidCapacity, "capacity %d is below the minimum of %d", p.Capacity, MinCapacity)
	}

	now := m.now()
	l := &models.Lobby{
		ID:        uuid.New(),
		Name:      p.Name,
		CreatorID: p.CreatorID,
		DungeonID: p.DungeonID,
		Status:    models.LobbyWaiting,
		IsPublic:  p.IsPublic,
		Capacity:  p.Capacity,
		Members:   []uuid.UUID{p.CreatorID},
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
	if p.Password != "" {
		hash, err := auth.CreateHash(p.Password, auth.Params)
		if err != nil {
			return nil, storeError("hash lobby password", err)
		}
		l.PasswordHash = hash
		l.IsPublic = false
	}

	if err := m.Store.CreateLobby(ctx, l); err != nil {
		return nil, storeError("create lobby", err)
	}
	m.notifyChanged(ctx, l)
	return l, nil
}

// Get returns the current lobby snapshot.
func (m *Manager) Get(ctx context.Context, lobbyID uuid.UUID) (*models.Lobby, error) {
	return m.loadLobby(ctx, lobbyID)
}

// ListPublic returns up to limit public lobbies still waiting for players.
func (m *Manager) ListPublic(ctx context.Context, limit int) ([]models.Lobby, error) {
	ls, err := m.Store.ListLobbies(ctx, LobbyFilter{
		Status:     models.LobbyWaiting,
		PublicOnly: true,
		Limit:      limit,
	})
	if err != nil {
		return nil, storeError("list lobbies", err)
	}
	return ls, nil
}

// ListByCreator returns lobbies created by creatorID, newest first.
func (m *Manager) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]models.Lobby, error) {
	ls, err := m.Store.ListLobbies(ctx, LobbyFilter{CreatorID: creatorID})
	if err != nil {
		return nil, storeError("list lobbies", err)
	}
	return ls, nil
}

// Join adds userID to the lobby, subject to the membership policy.
func (m *Manager) Join(ctx context.Context, lobbyID, userID uuid.UUID, password string) (*models.Lobby, error) {
	return m.update(ctx, lobbyID, func(l *models.Lobby) error {
		if err := CanJoin(l, userID, password); err != nil {
			return err
		}
		l.Members = append(l.Members, userID)
		return nil
	})
}

// Leave removes userID from the lobby. The last member leaving cancels
// the lobby, so members are never empty in a non-terminal status.
func (m *Manager) Leave(ctx context.Context, lobbyID, userID uuid.UUID) (*models.Lobby, error) {
	return m.update(ctx, lobbyID, func(l *models.Lobby) error {
		if err := CanLeave(l, userID); err != nil {
			return err
		}
		l.RemoveMember(userID)
		if len(l.Members) == 0 {
			l.Status = models.LobbyCancelled
		}
		return nil
	})
}

// Start transitions waiting -> in_progress.
func (m *Manager) Start(ctx context.Context, lobbyID, callerID uuid.UUID) (*models.Lobby, error) {
	return m.update(ctx, lobbyID, func(l *models.Lobby) error {
		if err := CanStart(l, callerID, m.MinMembersToStart); err != nil {
			return err
		}
		l.Status = models.LobbyInProgress
		return nil
	})
}

// Complete transitions in_progress -> completed.
func (m *Manager) Complete(ctx context.Context, lobbyID, callerID uuid.UUID) (*models.Lobby, error) {
	return m.update(ctx, lobbyID, func(l *models.Lobby) error {
		if err := CanComplete(l, callerID); err != nil {
			return err
		}
		l.Status = models.LobbyCompleted
		return nil
	})
}

// Cancel transitions waiting/in_progress -> cancelled.
func (m *Manager) Cancel(ctx context.Context, lobbyID, callerID uuid.UUID) (*models.Lobby, error) {
	return m.update(ctx, lobbyID, func(l *models.Lobby) error {
		if err := CanCancel(l, callerID); err != nil {
			return err
		}
		l.Status = models.LobbyCancelled
		return nil
	})
}

// CancelAbandoned cancels waiting lobbies untouched since cutoff, acting
// as the system caller. Scheduling belongs to the caller (see sweep).
func (m *Manager) CancelAbandoned(ctx context.Context, cutoff time.Time) (int, error) {
	stale, err := m.Store.ListLobbies(ctx, LobbyFilter{
		Status:        models.LobbyWaiting,
		UpdatedBefore: cutoff,
	})
	if err != nil {
		return 0, storeError("list abandoned lobbies", err)
	}

	cancelled := 0
	for i := range stale {
		if _, err := m.Cancel(ctx, stale[i].ID, SystemCallerID); err != nil {
			// A lobby that progressed since the listing is not an error.
			m.logger().WithFields(logrus.Fields{
				"lobby_id": stale[i].ID,
				"error":    err,
			}).Debug("sweep: skipping lobby")
			continue
		}
		cancelled++
	}
	return cancelled, nil
}

// Invite creates a pending invite from a member to another user.
func (m *Manager) Invite(ctx context.Context, lobbyID, inviterID, inviteeID uuid.UUID) (*models.Invite, error) {
	l, err := m.loadLobby(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	if err := CanInvite(l, inviterID, inviteeID); err != nil {
		return nil, err
	}

	exists, err := m.Users.Exists(ctx, inviteeID)
	if err != nil {
		return nil, storeError("look up invitee", err)
	}
	if !exists {
		return nil, newError(KindNotFound, "user %s does not exist", inviteeID)
	}

	if pending, err := m.Store.FindPendingInvite(ctx, lobbyID, inviteeID); err != nil {
		return nil, storeError("look up pending invite", err)
	} else if pending != nil {
		return nil, newError(KindAlreadyInvited, "user %s already has a pending invite to lobby %s", inviteeID, lobbyID)
	}

	now := m.now()
	inv := &models.Invite{
		ID:        uuid.New(),
		LobbyID:   lobbyID,
		InviterID: inviterID,
		InviteeID: inviteeID,
		Status:    models.InvitePending,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(InviteTTL),
		Version:   1,
	}
	if err := m.Store.CreateInvite(ctx, inv); err != nil {
		if errors.Is(err, ErrDuplicatePendingInvite) {
			return nil, newError(KindAlreadyInvited, "user %s already has a pending invite to lobby %s", inviteeID, lobbyID)
		}
		return nil, storeError("create invite", err)
	}
	return inv, nil
}

// InvitesFor returns the pending, unexpired invites addressed to userID.
func (m *Manager) InvitesFor(ctx context.Context, userID uuid.UUID) ([]models.Invite, error) {
	invs, err := m.Store.ListInvitesForUser(ctx, userID)
	if err != nil {
		return nil, storeError("list invites", err)
	}
	now := m.now()
	live := invs[:0]
	for _, inv := range invs {
		if now.After(inv.ExpiresAt) {
			continue
		}
		live = append(live, inv)
	}
	return live, nil
}

// AcceptInvite resolves the invite by joining its lobby. The membership
// change and the invite status flip are persisted as one atomic pair
// write: a crash can never leave an accepted invite without the
// corresponding membership. If the lobby filled up in the interim the
// invite stays pending; if the lobby left the waiting state the invite
// is marked expired.
func (m *Manager) AcceptInvite(ctx context.Context, inviteID, userID uuid.UUID) (*models.Lobby, error) {
	for attempt := 0; attempt < m.MaxSaveAttempts; attempt++ {
		inv, err := m.loadInvite(ctx, inviteID)
		if err != nil {
			return nil, err
		}
		if err := checkResolvable(inv, userID, m.now()); err != nil {
			if inv.Status == models.InvitePending && m.now().After(inv.ExpiresAt) {
				m.expireInvite(ctx, inv)
			}
			return nil, err
		}

		l, err := m.Store.GetLobby(ctx, inv.LobbyID)
		if errors.Is(err, ErrNotFound) {
			m.expireInvite(ctx, inv)
			return nil, newError(KindInvalidState, "lobby %s for invite %s no longer exists", inv.LobbyID, inv.ID)
		}
		if err != nil {
			return nil, storeError("load lobby", err)
		}
		if l.Status != models.LobbyWaiting {
			m.expireInvite(ctx, inv)
			return nil, newError(KindInvalidState, "lobby %s is not joinable in status %s", l.ID, l.Status)
		}

		// Re-validate against the current snapshot; membership may have
		// changed since the invite was created. A full lobby leaves the
		// invite pending rather than silently resolving it.
		if err := CanJoinInvited(l, userID); err != nil {
			return nil, err
		}

		lobbyVersion := l.Version
		inviteVersion := inv.Version
		l.Members = append(l.Members, userID)
		l.UpdatedAt = m.now()
		inv.Status = models.InviteAccepted
		inv.UpdatedAt = l.UpdatedAt

		err = m.Store.SaveLobbyAndInvite(ctx, l, lobbyVersion, inv, inviteVersion)
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		if errors.Is(err, ErrNotFound) {
			return nil, newError(KindNotFound, "lobby %s not found", l.ID)
		}
		if err != nil {
			return nil, storeError("save invite acceptance", err)
		}
		m.notifyChanged(ctx, l)
		return l, nil
	}
	return nil, newError(KindConcurrentModification, "invite %s could not be accepted after %d attempts", inviteID, m.MaxSaveAttempts)
}

// DeclineInvite resolves the invite without touching the lobby.
func (m *Manager) DeclineInvite(ctx context.Context, inviteID, userID uuid.UUID) (*models.Invite, error) {
	for attempt := 0; attempt < m.MaxSaveAttempts; attempt++ {
		inv, err := m.loadInvite(ctx, inviteID)
		if err != nil {
			return nil, err
		}
		if err := checkResolvable(inv, userID, m.now()); err != nil {
			if inv.Status == models.InvitePending && m.now().After(inv.ExpiresAt) {
				m.expireInvite(ctx, inv)
			}
			return nil, err
		}

		version := inv.Version
		inv.Status = models.InviteDeclined
		inv.UpdatedAt = m.now()

		err = m.Store.SaveInvite(ctx, inv, version)
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		if errors.Is(err, ErrNotFound) {
			return nil, newError(KindNotFound, "invite %s not found", inviteID)
		}
		if err != nil {
			return nil, storeError("save invite", err)
		}
		return inv, nil
	}
	return nil, newError(KindConcurrentModification, "invite %s could not be declined after %d attempts", inviteID, m.MaxSaveAttempts)
}

// update runs the load -> policy -> mutate -> conditional-save loop.
// Policy rejections are terminal; only version conflicts are retried,
// and the policy is re-evaluated against the reloaded snapshot each time.
func (m *Manager) update(ctx context.Context, lobbyID uuid.UUID, apply func(*models.Lobby) error) (*models.Lobby, error) {
	for attempt := 0; attempt < m.MaxSaveAttempts; attempt++ {
		l, err := m.loadLobby(ctx, lobbyID)
		if err != nil {
			return nil, err
		}
		if err := apply(l); err != nil {
			return nil, err
		}
		version := l.Version
		l.UpdatedAt = m.now()

		err = m.Store.SaveLobby(ctx, l, version)
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		if errors.Is(err, ErrNotFound) {
			return nil, newError(KindNotFound, "lobby %s not found", lobbyID)
		}
		if err != nil {
			return nil, storeError("save lobby", err)
		}
		m.notifyChanged(ctx, l)
		return l, nil
	}
	return nil, newError(KindConcurrentModification, "lobby %s could not be updated after %d attempts", lobbyID, m.MaxSaveAttempts)
}

func (m *Manager) loadLobby(ctx context.Context, id uuid.UUID) (*models.Lobby, error) {
	l, err := m.Store.GetLobby(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, newError(KindNotFound, "lobby %s not found", id)
	}
	if err != nil {
		return nil, storeError("load lobby", err)
	}
	return l, nil
}

func (m *Manager) loadInvite(ctx context.Context, id uuid.UUID) (*models.Invite, error) {
	inv, err := m.Store.GetInvite(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, newError(KindNotFound, "invite %s not found", id)
	}
	if err != nil {
		return nil, storeError("load invite", err)
	}
	return inv, nil
}

// expireInvite persists the expired status best-effort. Losing this write
// is harmless: the invite remains unresolvable either way.
func (m *Manager) expireInvite(ctx context.Context, inv *models.Invite) {
	version := inv.Version
	inv.Status = models.InviteExpired
	inv.UpdatedAt = m.now()
	if err := m.Store.SaveInvite(ctx, inv, version); err != nil {
		m.logger().WithFields(logrus.Fields{
			"invite_id": inv.ID,
			"error":     err,
		}).Warn("failed to persist invite expiry")
	}
}

func (m *Manager) notifyChanged(ctx context.Context, l *models.Lobby) {
	if m.Notify == nil {
		return
	}
	m.Notify.LobbyChanged(ctx, l)
}
