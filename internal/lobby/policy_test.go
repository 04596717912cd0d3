// internal/lobby/policy_test.go
package lobby

import (
	"testing"

	"github.com/google/uuid"

	"github.com/dungeonbuilder/backend/internal/auth"
	"github.com/dungeonbuilder/backend/internal/models"
)

func waitingLobby(creator uuid.UUID, capacity int) *models.Lobby {
	return &models.Lobby{
		ID:        uuid.New(),
		CreatorID: creator,
		Status:    models.LobbyWaiting,
		Capacity:  capacity,
		Members:   []uuid.UUID{creator},
	}
}

func TestCanJoin(t *testing.T) {
	creator := uuid.New()
	joiner := uuid.New()

	t.Run("ok", func(t *testing.T) {
		l := waitingLobby(creator, 4)
		if err := CanJoin(l, joiner, ""); err != nil {
			t.Fatalf("expected join to be allowed, got %v", err)
		}
	})

	t.Run("already member", func(t *testing.T) {
		l := waitingLobby(creator, 4)
		err := CanJoin(l, creator, "")
		if ErrKind(err) != KindAlreadyMember {
			t.Fatalf("expected already_member, got %v", err)
		}
	})

	t.Run("full", func(t *testing.T) {
		l := waitingLobby(creator, 2)
		l.Members = append(l.Members, uuid.New())
		err := CanJoin(l, joiner, "")
		if ErrKind(err) != KindLobbyFull {
			t.Fatalf("expected lobby_full, got %v", err)
		}
	})

	t.Run("not waiting", func(t *testing.T) {
		l := waitingLobby(creator, 4)
		l.Status = models.LobbyInProgress
		err := CanJoin(l, joiner, "")
		if ErrKind(err) != KindInvalidState {
			t.Fatalf("expected invalid_state, got %v", err)
		}
	})

	t.Run("password", func(t *testing.T) {
		hash, err := auth.CreateHash("sesame", auth.Params)
		if err != nil {
			t.Fatalf("hash: %v", err)
		}
		l := waitingLobby(creator, 4)
		l.PasswordHash = hash
		l.IsPublic = false

		if err := CanJoin(l, joiner, "sesame"); err != nil {
			t.Fatalf("correct password rejected: %v", err)
		}
		if kind := ErrKind(CanJoin(l, joiner, "wrong")); kind != KindInvalidPassword {
			t.Fatalf("expected invalid_password, got %v", kind)
		}
		if kind := ErrKind(CanJoin(l, joiner, "")); kind != KindInvalidPassword {
			t.Fatalf("expected invalid_password for empty password, got %v", kind)
		}
	})

	t.Run("invited skips password", func(t *testing.T) {
		hash, err := auth.CreateHash("sesame", auth.Params)
		if err != nil {
			t.Fatalf("hash: %v", err)
		}
		l := waitingLobby(creator, 4)
		l.PasswordHash = hash
		if err := CanJoinInvited(l, joiner); err != nil {
			t.Fatalf("invited join should bypass password, got %v", err)
		}
	})
}

func TestCanLeave(t *testing.T) {
	creator := uuid.New()
	member := uuid.New()

	t.Run("member leaves", func(t *testing.T) {
		l := waitingLobby(creator, 4)
		l.Members = append(l.Members, member)
		if err := CanLeave(l, member); err != nil {
			t.Fatalf("expected leave to be allowed, got %v", err)
		}
	})

	t.Run("not a member", func(t *testing.T) {
		l := waitingLobby(creator, 4)
		if kind := ErrKind(CanLeave(l, member)); kind != KindNotMember {
			t.Fatalf("expected not_member, got %v", kind)
		}
	})

	t.Run("creator blocked while others remain", func(t *testing.T) {
		l := waitingLobby(creator, 4)
		l.Members = append(l.Members, member)
		if kind := ErrKind(CanLeave(l, creator)); kind != KindNotAuthorized {
			t.Fatalf("expected not_authorized, got %v", kind)
		}
	})

	t.Run("sole creator may leave", func(t *testing.T) {
		l := waitingLobby(creator, 4)
		if err := CanLeave(l, creator); err != nil {
			t.Fatalf("sole creator should be able to leave, got %v", err)
		}
	})

	t.Run("in progress", func(t *testing.T) {
		l := waitingLobby(creator, 4)
		l.Members = append(l.Members, member)
		l.Status = models.LobbyInProgress
		if kind := ErrKind(CanLeave(l, member)); kind != KindInvalidState {
			t.Fatalf("expected invalid_state, got %v", kind)
		}
	})
}

func TestCanStart(t *testing.T) {
	creator := uuid.New()
	member := uuid.New()

	l := waitingLobby(creator, 4)
	l.Members = append(l.Members, member)

	if err := CanStart(l, creator, 2); err != nil {
		t.Fatalf("expected start to be allowed, got %v", err)
	}
	if kind := ErrKind(CanStart(l, member, 2)); kind != KindNotAuthorized {
		t.Fatalf("non-creator start: expected not_authorized, got %v", kind)
	}

	solo := waitingLobby(creator, 4)
	if kind := ErrKind(CanStart(solo, creator, 2)); kind != KindInvalidState {
		t.Fatalf("understaffed start: expected invalid_state, got %v", kind)
	}

	l.Status = models.LobbyInProgress
	if kind := ErrKind(CanStart(l, creator, 2)); kind != KindInvalidState {
		t.Fatalf("double start: expected invalid_state, got %v", kind)
	}
}

func TestCanComplete(t *testing.T) {
	creator := uuid.New()
	member := uuid.New()

	l := waitingLobby(creator, 4)
	l.Members = append(l.Members, member)
	l.Status = models.LobbyInProgress

	if err := CanComplete(l, creator); err != nil {
		t.Fatalf("expected complete to be allowed, got %v", err)
	}
	if kind := ErrKind(CanComplete(l, member)); kind != KindNotAuthorized {
		t.Fatalf("expected not_authorized, got %v", kind)
	}

	l.Status = models.LobbyWaiting
	if kind := ErrKind(CanComplete(l, creator)); kind != KindInvalidState {
		t.Fatalf("completing a waiting lobby: expected invalid_state, got %v", kind)
	}
}

func TestCanCancel(t *testing.T) {
	creator := uuid.New()
	member := uuid.New()
	outsider := uuid.New()

	l := waitingLobby(creator, 4)
	l.Members = append(l.Members, member)

	if err := CanCancel(l, creator); err != nil {
		t.Fatalf("creator cancel: %v", err)
	}
	if err := CanCancel(l, member); err != nil {
		t.Fatalf("member cancel while waiting: %v", err)
	}
	if err := CanCancel(l, SystemCallerID); err != nil {
		t.Fatalf("system cancel: %v", err)
	}
	if kind := ErrKind(CanCancel(l, outsider)); kind != KindNotAuthorized {
		t.Fatalf("outsider cancel: expected not_authorized, got %v", kind)
	}

	l.Status = models.LobbyInProgress
	if err := CanCancel(l, creator); err != nil {
		t.Fatalf("creator cancel in progress: %v", err)
	}
	if kind := ErrKind(CanCancel(l, member)); kind != KindNotAuthorized {
		t.Fatalf("member cancel in progress: expected not_authorized, got %v", kind)
	}

	l.Status = models.LobbyCompleted
	if kind := ErrKind(CanCancel(l, creator)); kind != KindInvalidState {
		t.Fatalf("cancel of terminal lobby: expected invalid_state, got %v", kind)
	}
}
