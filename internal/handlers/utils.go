package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dungeonbuilder/backend/internal/auth"
	"github.com/dungeonbuilder/backend/internal/lobby"
)

// extractCookieToken extracts a named cookie value from the "Cookie"
// header, or returns empty if not found.
func extractCookieToken(cookieHeader, cookieName string) string {
	parts := strings.Split(cookieHeader, cookieName+"=")
	if len(parts) < 2 {
		return ""
	}
	token := parts[1]
	if idx := strings.Index(token, ";"); idx != -1 {
		token = token[:idx]
	}
	return token
}

// authedUser authenticates the request's auth_token cookie and returns
// the caller's user ID.
func authedUser(r *http.Request) (uuid.UUID, error) {
	cookieHeader := r.Header.Get("Cookie")
	if !strings.Contains(cookieHeader, "auth_token=") {
		return uuid.Nil, fmt.Errorf("missing auth_token")
	}
	userIDStr, err := auth.AuthenticateJWT(extractCookieToken(cookieHeader, "auth_token"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid token: %w", err)
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid user id in token: %w", err)
	}
	// The nil UUID is reserved for internal maintenance jobs and never
	// identifies an account.
	if userID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("invalid user id in token")
	}
	return userID, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeLobbyError maps the closed lobby error taxonomy onto transport
// status codes. Anything outside the taxonomy is a 500.
func writeLobbyError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch lobby.ErrKind(err) {
	case lobby.KindNotFound:
		status = http.StatusNotFound
	case lobby.KindNotAuthorized, lobby.KindInvalidPassword:
		status = http.StatusForbidden
	case lobby.KindLobbyFull, lobby.KindAlreadyMember, lobby.KindAlreadyInvited,
		lobby.KindInviteNotPending, lobby.KindConcurrentModification:
		status = http.StatusConflict
	case lobby.KindInvalidState, lobby.KindNotMember, lobby.KindInvalidCapacity:
		status = http.StatusBadRequest
	case lobby.KindStoreUnavailable:
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
