// internal/models/lobby.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// LobbyStatus is the lifecycle state of a lobby.
// Transitions: waiting -> in_progress -> completed, and
// waiting/in_progress -> cancelled. completed and cancelled are terminal.
type LobbyStatus string

const (
	LobbyWaiting    LobbyStatus = "waiting"
	LobbyInProgress LobbyStatus = "in_progress"
	LobbyCompleted  LobbyStatus = "completed"
	LobbyCancelled  LobbyStatus = "cancelled"
)

// Terminal reports whether no further transitions may leave this status.
func (s LobbyStatus) Terminal() bool {
	return s == LobbyCompleted || s == LobbyCancelled
}

// Lobby is a persisted multiplayer session record with bounded membership.
// Version is the optimistic-concurrency token: it increments on every
// successful write, and a conditional save must present the version that
// was read.
type Lobby struct {
	ID           uuid.UUID   `json:"id"`
	Name         string      `json:"name"`
	CreatorID    uuid.UUID   `json:"creator_id"`
	DungeonID    uuid.UUID   `json:"dungeon_id"`
	Status       LobbyStatus `json:"status"`
	IsPublic     bool        `json:"is_public"`
	PasswordHash string      `json:"-"`
	Capacity     int         `json:"capacity"`
	Members      []uuid.UUID `json:"members"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	Version      int64       `json:"version"`
}

// HasMember reports whether userID is currently a member.
func (l *Lobby) HasMember(userID uuid.UUID) bool {
	for _, id := range l.Members {
		if id == userID {
			return true
		}
	}
	return false
}

// Full reports whether the lobby has reached capacity.
func (l *Lobby) Full() bool {
	return len(l.Members) >= l.Capacity
}

// RemoveMember deletes userID from the member set, preserving order.
func (l *Lobby) RemoveMember(userID uuid.UUID) {
	for i, id := range l.Members {
		if id == userID {
			l.Members = append(l.Members[:i], l.Members[i+1:]...)
			return
		}
	}
}

// Clone returns a deep copy, so an in-memory store can hand out
// snapshots without sharing the members slice.
func (l *Lobby) Clone() *Lobby {
	c := *l
	c.Members = make([]uuid.UUID, len(l.Members))
	copy(c.Members, l.Members)
	return &c
}
