// internal/handlers/lobby.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/dungeonbuilder/backend/internal/lobby"
	"github.com/dungeonbuilder/backend/internal/models"
)

// DungeonExistsFunc checks that a dungeon reference points at real
// content. The lobby core treats the reference as opaque; the check
// lives here at the edge. A nil func skips the check.
type DungeonExistsFunc func(ctx context.Context, id uuid.UUID) (bool, error)

type createLobbyRequest struct {
	Name      string `json:"name"`
	DungeonID string `json:"dungeon_id"`
	Capacity  int    `json:"capacity"`
	IsPublic  bool   `json:"is_public"`
	Password  string `json:"password,omitempty"`
}

// CreateLobbyHandler creates a new waiting lobby owned by the caller.
func CreateLobbyHandler(m *lobby.Manager, dungeonExists DungeonExistsFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authedUser(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		var req createLobbyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad lobby request payload", http.StatusBadRequest)
			return
		}
		dungeonID, err := uuid.Parse(req.DungeonID)
		if err != nil {
			http.Error(w, "invalid dungeon_id", http.StatusBadRequest)
			return
		}

		if dungeonExists != nil {
			ok, err := dungeonExists(r.Context(), dungeonID)
			if err != nil {
				http.Error(w, "failed to look up dungeon", http.StatusServiceUnavailable)
				return
			}
			if !ok {
				http.Error(w, "dungeon not found", http.StatusNotFound)
				return
			}
		}

		l, err := m.Create(r.Context(), lobby.CreateParams{
			CreatorID: userID,
			Name:      req.Name,
			DungeonID: dungeonID,
			Capacity:  req.Capacity,
			IsPublic:  req.IsPublic,
			Password:  req.Password,
		})
		if err != nil {
			writeLobbyError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, l)
	}
}

// ListLobbiesHandler lists public waiting lobbies, or the lobbies of one
// creator when ?creator_id is given.
func ListLobbiesHandler(m *lobby.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := authedUser(r); err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		limit := 20
		if s := r.URL.Query().Get("limit"); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n > 0 {
				limit = n
			}
		}

		if creatorStr := r.URL.Query().Get("creator_id"); creatorStr != "" {
			creatorID, err := uuid.Parse(creatorStr)
			if err != nil {
				http.Error(w, "invalid creator_id", http.StatusBadRequest)
				return
			}
			ls, err := m.ListByCreator(r.Context(), creatorID)
			if err != nil {
				writeLobbyError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, ls)
			return
		}

		ls, err := m.ListPublic(r.Context(), limit)
		if err != nil {
			writeLobbyError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ls)
	}
}

// GetLobbyHandler returns a single lobby by ?id.
func GetLobbyHandler(m *lobby.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := authedUser(r); err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		id, err := uuid.Parse(r.URL.Query().Get("id"))
		if err != nil {
			http.Error(w, "invalid lobby id", http.StatusBadRequest)
			return
		}
		l, err := m.Get(r.Context(), id)
		if err != nil {
			writeLobbyError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, l)
	}
}

type lobbyActionRequest struct {
	LobbyID  string `json:"lobby_id"`
	Password string `json:"password,omitempty"`
}

func decodeLobbyAction(r *http.Request) (uuid.UUID, string, error) {
	var req lobbyActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return uuid.Nil, "", err
	}
	id, err := uuid.Parse(req.LobbyID)
	if err != nil {
		return uuid.Nil, "", err
	}
	return id, req.Password, nil
}

// JoinLobbyHandler adds the caller to a lobby.
func JoinLobbyHandler(m *lobby.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authedUser(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		lobbyID, password, err := decodeLobbyAction(r)
		if err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		l, err := m.Join(r.Context(), lobbyID, userID, password)
		if err != nil {
			writeLobbyError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, l)
	}
}

// LeaveLobbyHandler removes the caller from a lobby.
func LeaveLobbyHandler(m *lobby.Manager) http.HandlerFunc {
	return lobbyTransitionHandler(m.Leave)
}

// StartLobbyHandler moves a lobby into in_progress.
func StartLobbyHandler(m *lobby.Manager) http.HandlerFunc {
	return lobbyTransitionHandler(m.Start)
}

// CompleteLobbyHandler moves a running lobby to completed.
func CompleteLobbyHandler(m *lobby.Manager) http.HandlerFunc {
	return lobbyTransitionHandler(m.Complete)
}

// CancelLobbyHandler cancels a lobby.
func CancelLobbyHandler(m *lobby.Manager) http.HandlerFunc {
	return lobbyTransitionHandler(m.Cancel)
}

func lobbyTransitionHandler(op func(context.Context, uuid.UUID, uuid.UUID) (*models.Lobby, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authedUser(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		lobbyID, _, err := decodeLobbyAction(r)
		if err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		l, err := op(r.Context(), lobbyID, userID)
		if err != nil {
			writeLobbyError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, l)
	}
}

type inviteRequest struct {
	LobbyID   string `json:"lobby_id"`
	InviteeID string `json:"invitee_id"`
}

// InviteHandler creates an invite from the caller to another user.
func InviteHandler(m *lobby.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authedUser(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		var req inviteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		lobbyID, err := uuid.Parse(req.LobbyID)
		if err != nil {
			http.Error(w, "invalid lobby_id", http.StatusBadRequest)
			return
		}
		inviteeID, err := uuid.Parse(req.InviteeID)
		if err != nil {
			http.Error(w, "invalid invitee_id", http.StatusBadRequest)
			return
		}
		inv, err := m.Invite(r.Context(), lobbyID, userID, inviteeID)
		if err != nil {
			writeLobbyError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, inv)
	}
}

// ListInvitesHandler lists the caller's pending invites.
func ListInvitesHandler(m *lobby.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authedUser(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		invs, err := m.InvitesFor(r.Context(), userID)
		if err != nil {
			writeLobbyError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, invs)
	}
}

type inviteActionRequest struct {
	InviteID string `json:"invite_id"`
}

// AcceptInviteHandler resolves an invite by joining its lobby.
func AcceptInviteHandler(m *lobby.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authedUser(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		var req inviteActionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		inviteID, err := uuid.Parse(req.InviteID)
		if err != nil {
			http.Error(w, "invalid invite_id", http.StatusBadRequest)
			return
		}
		l, err := m.AcceptInvite(r.Context(), inviteID, userID)
		if err != nil {
			writeLobbyError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, l)
	}
}

// DeclineInviteHandler resolves an invite without joining.
func DeclineInviteHandler(m *lobby.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authedUser(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		var req inviteActionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		inviteID, err := uuid.Parse(req.InviteID)
		if err != nil {
			http.Error(w, "invalid invite_id", http.StatusBadRequest)
			return
		}
		inv, err := m.DeclineInvite(r.Context(), inviteID, userID)
		if err != nil {
			writeLobbyError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, inv)
	}
}
