// internal/handlers/dungeon.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dungeonbuilder/backend/internal/database"
	"github.com/dungeonbuilder/backend/internal/models"
)

type createDungeonRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Difficulty  int             `json:"difficulty"`
	Layout      json.RawMessage `json:"layout"`
	IsPublic    bool            `json:"is_public"`
}

// CreateDungeonHandler stores a new dungeon owned by the caller.
func CreateDungeonHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := authedUser(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	var req createDungeonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	if req.Layout == nil {
		req.Layout = json.RawMessage("{}")
	}
	if req.Difficulty < 1 {
		req.Difficulty = 1
	}

	now := time.Now().UTC()
	d := models.Dungeon{
		ID:          uuid.New(),
		CreatorID:   userID,
		Name:        req.Name,
		Description: req.Description,
		Difficulty:  req.Difficulty,
		Layout:      req.Layout,
		IsPublic:    req.IsPublic,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := database.InsertDungeon(r.Context(), &d); err != nil {
		http.Error(w, "failed to create dungeon", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// GetDungeonHandler returns a single dungeon by ?id.
func GetDungeonHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := authedUser(r); err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(r.URL.Query().Get("id"))
	if err != nil {
		http.Error(w, "invalid dungeon id", http.StatusBadRequest)
		return
	}
	d, err := database.GetDungeon(r.Context(), id)
	if errors.Is(err, pgx.ErrNoRows) {
		http.Error(w, "dungeon not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "failed to load dungeon", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// ListDungeonsHandler lists public dungeons.
func ListDungeonsHandler(w http.ResponseWriter, r *http.Request) {
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
	ds, err := database.ListPublicDungeons(r.Context(), limit)
	if err != nil {
		http.Error(w, "failed to list dungeons", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}
