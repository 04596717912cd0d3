package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dungeonbuilder/backend/internal/models"
)

// InsertDungeon creates a new dungeon row.
func InsertDungeon(ctx context.Context, d *models.Dungeon) error {
	q := `
	INSERT INTO dungeons (id, creator_id, name, description, difficulty, layout, is_public, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q,
			d.ID, d.CreatorID, d.Name, d.Description, d.Difficulty,
			d.Layout, d.IsPublic, d.CreatedAt, d.UpdatedAt,
		)
		return err
	})
}

// GetDungeon fetches a dungeon by ID.
func GetDungeon(ctx context.Context, id uuid.UUID) (*models.Dungeon, error) {
	var d models.Dungeon
	q := `
	SELECT id, creator_id, name, description, difficulty, layout, is_public, created_at, updated_at
	FROM dungeons
	WHERE id=$1
	`
	err := DB.QueryRow(ctx, q, id).Scan(
		&d.ID, &d.CreatorID, &d.Name, &d.Description, &d.Difficulty,
		&d.Layout, &d.IsPublic, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ListPublicDungeons returns up to limit public dungeons, newest first.
func ListPublicDungeons(ctx context.Context, limit int) ([]models.Dungeon, error) {
	q := `
	SELECT id, creator_id, name, description, difficulty, layout, is_public, created_at, updated_at
	FROM dungeons
	WHERE is_public
	ORDER BY created_at DESC
	LIMIT $1
	`
	rows, err := DB.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dungeons []models.Dungeon
	for rows.Next() {
		var d models.Dungeon
		err := rows.Scan(
			&d.ID, &d.CreatorID, &d.Name, &d.Description, &d.Difficulty,
			&d.Layout, &d.IsPublic, &d.CreatedAt, &d.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		dungeons = append(dungeons, d)
	}
	return dungeons, rows.Err()
}

// DungeonExists reports whether a dungeon row exists.
func DungeonExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var tmp int
	err := DB.QueryRow(ctx, `SELECT 1 FROM dungeons WHERE id=$1`, id).Scan(&tmp)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
