package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dungeonbuilder/backend/internal/lobby"
	"github.com/dungeonbuilder/backend/internal/models"
)

const pgUniqueViolation = "23505"

// Store implements lobby.Store on Postgres using the package pool.
// Conditional writes guard on the version column; the version bump
// happens inside the UPDATE so a concurrent writer can never sneak
// between the check and the write.
type Store struct{}

func NewStore() *Store { return &Store{} }

const lobbyColumns = `
	id, name, creator_id, dungeon_id, status, is_public,
	password_hash, capacity, members, created_at, updated_at, version
`

func scanLobby(row pgx.Row) (*models.Lobby, error) {
	var l models.Lobby
	err := row.Scan(
		&l.ID, &l.Name, &l.CreatorID, &l.DungeonID, &l.Status, &l.IsPublic,
		&l.PasswordHash, &l.Capacity, &l.Members, &l.CreatedAt, &l.UpdatedAt, &l.Version,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, lobby.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *Store) GetLobby(ctx context.Context, id uuid.UUID) (*models.Lobby, error) {
	q := `SELECT ` + lobbyColumns + ` FROM lobbies WHERE id=$1`
	return scanLobby(DB.QueryRow(ctx, q, id))
}

func (s *Store) CreateLobby(ctx context.Context, l *models.Lobby) error {
	q := `
	INSERT INTO lobbies (` + lobbyColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q,
			l.ID, l.Name, l.CreatorID, l.DungeonID, l.Status, l.IsPublic,
			l.PasswordHash, l.Capacity, l.Members, l.CreatedAt, l.UpdatedAt, l.Version,
		)
		return err
	})
}

func (s *Store) SaveLobby(ctx context.Context, l *models.Lobby, expectedVersion int64) error {
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return saveLobbyTx(ctx, tx, l, expectedVersion)
	})
}

func saveLobbyTx(ctx context.Context, tx pgx.Tx, l *models.Lobby, expectedVersion int64) error {
	q := `
	UPDATE lobbies
	SET status=$2, is_public=$3, password_hash=$4, members=$5,
	    updated_at=$6, version=version+1
	WHERE id=$1 AND version=$7
	`
	ct, err := tx.Exec(ctx, q,
		l.ID, l.Status, l.IsPublic, l.PasswordHash, l.Members,
		l.UpdatedAt, expectedVersion,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		var tmp int
		err := tx.QueryRow(ctx, `SELECT 1 FROM lobbies WHERE id=$1`, l.ID).Scan(&tmp)
		if errors.Is(err, pgx.ErrNoRows) {
			return lobby.ErrNotFound
		}
		if err != nil {
			return err
		}
		return lobby.ErrVersionConflict
	}
	l.Version = expectedVersion + 1
	return nil
}

func (s *Store) ListLobbies(ctx context.Context, f lobby.LobbyFilter) ([]models.Lobby, error) {
	q := `SELECT ` + lobbyColumns + ` FROM lobbies WHERE true`
	var args []interface{}
	if f.Status != "" {
		args = append(args, f.Status)
		q += fmt.Sprintf(" AND status=$%d", len(args))
	}
	if f.PublicOnly {
		q += " AND is_public"
	}
	if f.CreatorID != uuid.Nil {
		args = append(args, f.CreatorID)
		q += fmt.Sprintf(" AND creator_id=$%d", len(args))
	}
	if !f.UpdatedBefore.IsZero() {
		args = append(args, f.UpdatedBefore)
		q += fmt.Sprintf(" AND updated_at < $%d", len(args))
	}
	q += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lobbies []models.Lobby
	for rows.Next() {
		l, err := scanLobby(rows)
		if err != nil {
			return nil, err
		}
		lobbies = append(lobbies, *l)
	}
	return lobbies, rows.Err()
}

const inviteColumns = `
	id, lobby_id, inviter_id, invitee_id, status,
	created_at, updated_at, expires_at, version
`

func scanInvite(row pgx.Row) (*models.Invite, error) {
	var inv models.Invite
	err := row.Scan(
		&inv.ID, &inv.LobbyID, &inv.InviterID, &inv.InviteeID, &inv.Status,
		&inv.CreatedAt, &inv.UpdatedAt, &inv.ExpiresAt, &inv.Version,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, lobby.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *Store) GetInvite(ctx context.Context, id uuid.UUID) (*models.Invite, error) {
	q := `SELECT ` + inviteColumns + ` FROM lobby_invites WHERE id=$1`
	return scanInvite(DB.QueryRow(ctx, q, id))
}

func (s *Store) CreateInvite(ctx context.Context, inv *models.Invite) error {
	q := `
	INSERT INTO lobby_invites (` + inviteColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q,
			inv.ID, inv.LobbyID, inv.InviterID, inv.InviteeID, inv.Status,
			inv.CreatedAt, inv.UpdatedAt, inv.ExpiresAt, inv.Version,
		)
		return err
	})
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		// The partial unique index on (lobby_id, invitee_id) WHERE
		// status='pending' lost the race to another inviter.
		return lobby.ErrDuplicatePendingInvite
	}
	return err
}

func (s *Store) SaveInvite(ctx context.Context, inv *models.Invite, expectedVersion int64) error {
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return saveInviteTx(ctx, tx, inv, expectedVersion)
	})
}

func saveInviteTx(ctx context.Context, tx pgx.Tx, inv *models.Invite, expectedVersion int64) error {
	q := `
	UPDATE lobby_invites
	SET status=$2, updated_at=$3, version=version+1
	WHERE id=$1 AND version=$4
	`
	ct, err := tx.Exec(ctx, q, inv.ID, inv.Status, inv.UpdatedAt, expectedVersion)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		var tmp int
		err := tx.QueryRow(ctx, `SELECT 1 FROM lobby_invites WHERE id=$1`, inv.ID).Scan(&tmp)
		if errors.Is(err, pgx.ErrNoRows) {
			return lobby.ErrNotFound
		}
		if err != nil {
			return err
		}
		return lobby.ErrVersionConflict
	}
	inv.Version = expectedVersion + 1
	return nil
}

// SaveLobbyAndInvite runs both conditional writes in one transaction so
// invite acceptance and the membership change land together or not at all.
func (s *Store) SaveLobbyAndInvite(ctx context.Context, l *models.Lobby, lobbyVersion int64, inv *models.Invite, inviteVersion int64) error {
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if err := saveLobbyTx(ctx, tx, l, lobbyVersion); err != nil {
			return err
		}
		return saveInviteTx(ctx, tx, inv, inviteVersion)
	})
}

func (s *Store) FindPendingInvite(ctx context.Context, lobbyID, inviteeID uuid.UUID) (*models.Invite, error) {
	q := `
	SELECT ` + inviteColumns + `
	FROM lobby_invites
	WHERE lobby_id=$1 AND invitee_id=$2 AND status='pending'
	LIMIT 1
	`
	inv, err := scanInvite(DB.QueryRow(ctx, q, lobbyID, inviteeID))
	if errors.Is(err, lobby.ErrNotFound) {
		return nil, nil
	}
	return inv, err
}

func (s *Store) ListInvitesForUser(ctx context.Context, inviteeID uuid.UUID) ([]models.Invite, error) {
	q := `
	SELECT ` + inviteColumns + `
	FROM lobby_invites
	WHERE invitee_id=$1 AND status='pending'
	ORDER BY created_at DESC
	`
	rows, err := DB.Query(ctx, q, inviteeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invites []models.Invite
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		invites = append(invites, *inv)
	}
	return invites, rows.Err()
}
