package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Dungeon is a piece of shareable user-generated content. The lobby core
// treats its ID as an opaque reference; only the handler layer checks
// existence when a lobby is created against it.
type Dungeon struct {
	ID          uuid.UUID       `json:"id"`
	CreatorID   uuid.UUID       `json:"creator_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Difficulty  int             `json:"difficulty"`
	Layout      json.RawMessage `json:"layout"`
	IsPublic    bool            `json:"is_public"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
