// internal/lobby/store.go
package lobby

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dungeonbuilder/backend/internal/models"
)

// Sentinel errors returned by Store implementations. The manager maps
// these onto the Kind taxonomy; callers outside the package should not
// see them directly.
var (
	ErrNotFound               = errors.New("record not found")
	ErrVersionConflict        = errors.New("version conflict")
	ErrDuplicatePendingInvite = errors.New("pending invite already exists")
)

// LobbyFilter narrows a lobby listing. Zero values mean "don't filter".
type LobbyFilter struct {
	Status        models.LobbyStatus
	PublicOnly    bool
	CreatorID     uuid.UUID
	UpdatedBefore time.Time
	Limit         int
}

// Store is the persistence contract for lobby and invite records. Every
// mutation goes through a conditional save carrying the version that was
// read; a mismatch yields ErrVersionConflict and the caller must reload
// and re-run its policy evaluation.
type Store interface {
	GetLobby(ctx context.Context, id uuid.UUID) (*models.Lobby, error)
	CreateLobby(ctx context.Context, l *models.Lobby) error
	// SaveLobby writes l iff the stored version equals expectedVersion,
	// then increments the version (reflected on l).
	SaveLobby(ctx context.Context, l *models.Lobby, expectedVersion int64) error
	ListLobbies(ctx context.Context, f LobbyFilter) ([]models.Lobby, error)

	GetInvite(ctx context.Context, id uuid.UUID) (*models.Invite, error)
	// CreateInvite inserts a pending invite; if a pending invite for the
	// same (lobby, invitee) pair exists it returns ErrDuplicatePendingInvite.
	CreateInvite(ctx context.Context, inv *models.Invite) error
	SaveInvite(ctx context.Context, inv *models.Invite, expectedVersion int64) error
	// SaveLobbyAndInvite applies both conditional writes atomically:
	// either both records are updated or neither is.
	SaveLobbyAndInvite(ctx context.Context, l *models.Lobby, lobbyVersion int64, inv *models.Invite, inviteVersion int64) error
	// FindPendingInvite returns the pending invite for (lobbyID, inviteeID),
	// or nil if there is none.
	FindPendingInvite(ctx context.Context, lobbyID, inviteeID uuid.UUID) (*models.Invite, error)
	ListInvitesForUser(ctx context.Context, inviteeID uuid.UUID) ([]models.Invite, error)
}

// UserDirectory is the slice of the user subsystem the lobby core needs.
type UserDirectory interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// NotificationSink is informed after every successful lobby mutation so a
// presentation layer can push updates. Implementations must not block for
// long and must swallow their own failures: a sink error never fails the
// lobby operation.
type NotificationSink interface {
	LobbyChanged(ctx context.Context, l *models.Lobby)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
