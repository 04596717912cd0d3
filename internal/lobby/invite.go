// internal/lobby/invite.go
package lobby

import (
	"time"

	"github.com/google/uuid"

	"github.com/dungeonbuilder/backend/internal/models"
)

// InviteTTL is how long an invite stays resolvable. Expiry is enforced at
// resolution time; there is no eager sweep of stale invites.
const InviteTTL = 24 * time.Hour

// CanInvite checks whether inviterID may invite inviteeID to the lobby.
// The single-pending-invite rule is enforced by the store, not here: two
// concurrent invites race on the store's uniqueness guarantee.
func CanInvite(l *models.Lobby, inviterID, inviteeID uuid.UUID) error {
	if !l.HasMember(inviterID) {
		return newError(KindNotAuthorized, "user %s is not a member of lobby %s", inviterID, l.ID)
	}
	if l.Status != models.LobbyWaiting {
		return newError(KindInvalidState, "cannot invite to lobby %s in status %s", l.ID, l.Status)
	}
	if l.HasMember(inviteeID) {
		return newError(KindAlreadyMember, "user %s is already a member of lobby %s", inviteeID, l.ID)
	}
	return nil
}

// checkResolvable verifies that userID may resolve the invite right now.
// A past-expiry invite is reported as not pending; the caller is expected
// to persist the expired status.
func checkResolvable(inv *models.Invite, userID uuid.UUID, now time.Time) error {
	if inv.InviteeID != userID {
		return newError(KindNotAuthorized, "invite %s is not addressed to user %s", inv.ID, userID)
	}
	if inv.Status != models.InvitePending {
		return newError(KindInviteNotPending, "invite %s is already %s", inv.ID, inv.Status)
	}
	if now.After(inv.ExpiresAt) {
		return newError(KindInviteNotPending, "invite %s expired at %s", inv.ID, inv.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}
