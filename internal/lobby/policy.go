// internal/lobby/policy.go
//
// Membership policy: pure legality checks over an explicit lobby
// snapshot. No I/O, no ambient state; the orchestrator re-runs these
// against a freshly loaded snapshot after every version conflict.
package lobby

import (
	"github.com/google/uuid"

	"github.com/dungeonbuilder/backend/internal/auth"
	"github.com/dungeonbuilder/backend/internal/models"
)

// SystemCallerID is the caller identity used by maintenance jobs such as
// the abandoned-lobby sweep. It is authorized to cancel any non-terminal
// lobby.
var SystemCallerID = uuid.Nil

// CanJoin checks whether userID may join the lobby with the supplied
// plaintext password.
func CanJoin(l *models.Lobby, userID uuid.UUID, password string) error {
	if l.HasMember(userID) {
		return newError(KindAlreadyMember, "user %s is already a member of lobby %s", userID, l.ID)
	}
	if l.Full() {
		return newError(KindLobbyFull, "lobby %s is full (%d/%d)", l.ID, len(l.Members), l.Capacity)
	}
	if l.PasswordHash != "" {
		match, err := auth.ComparePasswordAndHash(password, l.PasswordHash)
		if err != nil || !match {
			return newError(KindInvalidPassword, "invalid password for lobby %s", l.ID)
		}
	}
	if l.Status != models.LobbyWaiting {
		return newError(KindInvalidState, "lobby %s is not joinable in status %s", l.ID, l.Status)
	}
	return nil
}

// CanJoinInvited is CanJoin without the password gate: an accepted invite
// stands in for the password.
func CanJoinInvited(l *models.Lobby, userID uuid.UUID) error {
	if l.HasMember(userID) {
		return newError(KindAlreadyMember, "user %s is already a member of lobby %s", userID, l.ID)
	}
	if l.Full() {
		return newError(KindLobbyFull, "lobby %s is full (%d/%d)", l.ID, len(l.Members), l.Capacity)
	}
	if l.Status != models.LobbyWaiting {
		return newError(KindInvalidState, "lobby %s is not joinable in status %s", l.ID, l.Status)
	}
	return nil
}

// CanLeave checks whether userID may leave. The creator may only leave as
// the sole remaining member; otherwise they must cancel the lobby.
func CanLeave(l *models.Lobby, userID uuid.UUID) error {
	if !l.HasMember(userID) {
		return newError(KindNotMember, "user %s is not a member of lobby %s", userID, l.ID)
	}
	if l.Status != models.LobbyWaiting {
		return newError(KindInvalidState, "cannot leave lobby %s in status %s", l.ID, l.Status)
	}
	if userID == l.CreatorID && len(l.Members) > 1 {
		return newError(KindNotAuthorized, "creator cannot leave lobby %s while other members remain", l.ID)
	}
	return nil
}

// CanStart checks whether callerID may start the session.
func CanStart(l *models.Lobby, callerID uuid.UUID, minMembers int) error {
	if callerID != l.CreatorID {
		return newError(KindNotAuthorized, "only the creator may start lobby %s", l.ID)
	}
	if l.Status != models.LobbyWaiting {
		return newError(KindInvalidState, "lobby %s cannot start from status %s", l.ID, l.Status)
	}
	if len(l.Members) < minMembers {
		return newError(KindInvalidState, "lobby %s needs at least %d members to start, has %d", l.ID, minMembers, len(l.Members))
	}
	return nil
}

// CanComplete checks whether callerID may mark the session complete.
func CanComplete(l *models.Lobby, callerID uuid.UUID) error {
	if callerID != l.CreatorID {
		return newError(KindNotAuthorized, "only the creator may complete lobby %s", l.ID)
	}
	if l.Status != models.LobbyInProgress {
		return newError(KindInvalidState, "lobby %s cannot complete from status %s", l.ID, l.Status)
	}
	return nil
}

// CanCancel checks whether callerID may cancel. The creator (or the
// system identity) may cancel from waiting or in_progress; any member may
// cancel while the lobby is still waiting.
func CanCancel(l *models.Lobby, callerID uuid.UUID) error {
	if l.Status.Terminal() {
		return newError(KindInvalidState, "lobby %s is already %s", l.ID, l.Status)
	}
	if callerID == l.CreatorID || callerID == SystemCallerID {
		return nil
	}
	if l.Status == models.LobbyWaiting && l.HasMember(callerID) {
		return nil
	}
	return newError(KindNotAuthorized, "user %s may not cancel lobby %s", callerID, l.ID)
}
