package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dungeonbuilder/backend/internal/auth"
	"github.com/dungeonbuilder/backend/internal/models"
)

func CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate user id: %w", err)
		}
		user.ID = id
	}
	if user.DisplayName == "" {
		user.DisplayName = user.Username
	}

	hash, err := auth.CreateHash(user.Password, auth.Params)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = hash

	q := `INSERT INTO users (id, username, email, password, display_name)
	      VALUES ($1, $2, $3, $4, $5)`

	err = pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, q,
			user.ID, user.Username, user.Email, user.Password, user.DisplayName,
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	q := `
	SELECT id, username, email, password, display_name, created_at, last_login
	FROM users
	WHERE id=$1
	`
	err := DB.QueryRow(ctx, q, id).Scan(
		&u.ID, &u.Username, &u.Email, &u.Password, &u.DisplayName,
		&u.CreatedAt, &u.LastLogin,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	q := `
	SELECT id, username, email, password, display_name, created_at, last_login
	FROM users
	WHERE username=$1
	`
	err := DB.QueryRow(ctx, q, username).Scan(
		&u.ID, &u.Username, &u.Email, &u.Password, &u.DisplayName,
		&u.CreatedAt, &u.LastLogin,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// AuthenticateUser verifies the credentials and returns a signed JWT.
func AuthenticateUser(ctx context.Context, username, password string) (string, error) {
	user, err := GetUserByUsername(ctx, username)
	if err != nil {
		return "", fmt.Errorf("user not found or db error: %w", err)
	}

	match, err := auth.ComparePasswordAndHash(password, user.Password)
	if err != nil || !match {
		return "", fmt.Errorf("invalid credentials")
	}

	token, err := auth.CreateJWT(user.ID.String())
	if err != nil {
		return "", fmt.Errorf("failed to create jwt: %w", err)
	}

	touchErr := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `UPDATE users SET last_login=NOW() WHERE id=$1`, user.ID)
		return err
	})
	if touchErr != nil {
		// Login still succeeds; the timestamp is best effort.
		fmt.Printf("failed to update last_login for %s: %v\n", user.ID, touchErr)
	}

	return token, nil
}

// Directory implements the lobby core's UserDirectory over the users table.
type Directory struct{}

func (Directory) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var tmp int
	err := DB.QueryRow(ctx, `SELECT 1 FROM users WHERE id=$1`, id).Scan(&tmp)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
