// internal/models/invite.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// InviteStatus is the resolution state of a lobby invite.
type InviteStatus string

const (
	InvitePending  InviteStatus = "pending"
	InviteAccepted InviteStatus = "accepted"
	InviteDeclined InviteStatus = "declined"
	InviteExpired  InviteStatus = "expired"
)

// Invite is a one-time directed offer of membership in a specific lobby.
// An invite resolves exactly once; validity against the lobby's current
// state is checked at resolution time, not only at creation.
type Invite struct {
	ID        uuid.UUID    `json:"id"`
	LobbyID   uuid.UUID    `json:"lobby_id"`
	InviterID uuid.UUID    `json:"inviter_id"`
	InviteeID uuid.UUID    `json:"invitee_id"`
	Status    InviteStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	ExpiresAt time.Time    `json:"expires_at"`
	Version   int64        `json:"version"`
}

// Clone returns a copy safe to hand out from an in-memory store.
func (inv *Invite) Clone() *Invite {
	c := *inv
	return &c
}
