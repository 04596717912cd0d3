// internal/lobby/manager_test.go
package lobby

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dungeonbuilder/backend/internal/models"
)

// fakeDirectory treats every user as existing unless listed in missing.
type fakeDirectory struct {
	missing map[uuid.UUID]bool
}

func (d fakeDirectory) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	return !d.missing[id], nil
}

// fakeClock hands out a controllable time.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// captureSink records every lobby change it is handed.
type captureSink struct {
	mu     sync.Mutex
	events []models.Lobby
}

func (s *captureSink) LobbyChanged(ctx context.Context, l *models.Lobby) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *l.Clone())
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func newTestManager(t *testing.T) (*Manager, *MemoryStore, *fakeClock, *captureSink) {
	t.Helper()
	store := NewMemoryStore()
	clock := &fakeClock{now: time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)}
	sink := &captureSink{}
	m := NewManager(store, fakeDirectory{})
	m.Clock = clock
	m.Notify = sink
	return m, store, clock, sink
}

func createWaiting(t *testing.T, m *Manager, creator uuid.UUID, capacity int) *models.Lobby {
	t.Helper()
	l, err := m.Create(context.Background(), CreateParams{
		CreatorID: creator,
		Name:      "delve",
		DungeonID: uuid.New(),
		Capacity:  capacity,
		IsPublic:  true,
	})
	require.NoError(t, err)
	return l
}

func TestCreateValidation(t *testing.T) {
	m, _, _, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Create(ctx, CreateParams{CreatorID: uuid.New(), Capacity: 1})
	require.Equal(t, KindInvalidCapacity, ErrKind(err))

	l := createWaiting(t, m, uuid.New(), 4)
	require.Equal(t, models.LobbyWaiting, l.Status)
	require.Len(t, l.Members, 1)
	require.Equal(t, int64(1), l.Version)
	require.True(t, l.IsPublic)
	require.Empty(t, l.PasswordHash)
}

func TestCreateWithPasswordIsPrivate(t *testing.T) {
	m, _, _, _ := newTestManager(t)

	l, err := m.Create(context.Background(), CreateParams{
		CreatorID: uuid.New(),
		Capacity:  4,
		IsPublic:  true,
		Password:  "sesame",
	})
	require.NoError(t, err)
	require.False(t, l.IsPublic)
	require.NotEmpty(t, l.PasswordHash)

	// The hash gates joins; the plaintext never persists.
	_, err = m.Join(context.Background(), l.ID, uuid.New(), "wrong")
	require.Equal(t, KindInvalidPassword, ErrKind(err))
	_, err = m.Join(context.Background(), l.ID, uuid.New(), "sesame")
	require.NoError(t, err)
}

func TestJoinLeaveLifecycle(t *testing.T) {
	m, _, _, sink := newTestManager(t)
	ctx := context.Background()

	creator := uuid.New()
	member := uuid.New()
	l := createWaiting(t, m, creator, 3)

	l, err := m.Join(ctx, l.ID, member, "")
	require.NoError(t, err)
	require.True(t, l.HasMember(member))
	require.Equal(t, int64(2), l.Version)

	_, err = m.Join(ctx, l.ID, member, "")
	require.Equal(t, KindAlreadyMember, ErrKind(err))

	// The creator cannot walk away while others remain.
	_, err = m.Leave(ctx, l.ID, creator)
	require.Equal(t, KindNotAuthorized, ErrKind(err))

	l, err = m.Leave(ctx, l.ID, member)
	require.NoError(t, err)
	require.False(t, l.HasMember(member))
	require.Equal(t, models.LobbyWaiting, l.Status)

	// The last member out cancels the lobby.
	l, err = m.Leave(ctx, l.ID, creator)
	require.NoError(t, err)
	require.Equal(t, models.LobbyCancelled, l.Status)
	require.Empty(t, l.Members)

	require.Equal(t, 4, sink.count())
}

func TestLobbyUnchangedOnRejectedTransition(t *testing.T) {
	m, store, _, _ := newTestManager(t)
	ctx := context.Background()

	creator := uuid.New()
	l := createWaiting(t, m, creator, 4)

	_, err := m.Start(ctx, l.ID, creator)
	require.Equal(t, KindInvalidState, ErrKind(err))

	cur, err := store.GetLobby(ctx, l.ID)
	require.NoError(t, err)
	require.Equal(t, l.Version, cur.Version)
	require.Equal(t, models.LobbyWaiting, cur.Status)
}

func TestStartCompleteCancel(t *testing.T) {
	m, _, _, _ := newTestManager(t)
	ctx := context.Background()

	creator := uuid.New()
	member := uuid.New()
	l := createWaiting(t, m, creator, 4)
	_, err := m.Join(ctx, l.ID, member, "")
	require.NoError(t, err)

	_, err = m.Start(ctx, l.ID, member)
	require.Equal(t, KindNotAuthorized, ErrKind(err))

	l, err = m.Start(ctx, l.ID, creator)
	require.NoError(t, err)
	require.Equal(t, models.LobbyInProgress, l.Status)

	// Joining a running lobby is rejected.
	_, err = m.Join(ctx, l.ID, uuid.New(), "")
	require.Equal(t, KindInvalidState, ErrKind(err))

	l, err = m.Complete(ctx, l.ID, creator)
	require.NoError(t, err)
	require.Equal(t, models.LobbyCompleted, l.Status)

	_, err = m.Cancel(ctx, l.ID, creator)
	require.Equal(t, KindInvalidState, ErrKind(err))
}

func TestCancelAuthorization(t *testing.T) {
	m, _, _, _ := newTestManager(t)
	ctx := context.Background()

	creator := uuid.New()
	member := uuid.New()
	l := createWaiting(t, m, creator, 4)
	_, err := m.Join(ctx, l.ID, member, "")
	require.NoError(t, err)

	_, err = m.Cancel(ctx, l.ID, uuid.New())
	require.Equal(t, KindNotAuthorized, ErrKind(err))

	l, err = m.Cancel(ctx, l.ID, member)
	require.NoError(t, err)
	require.Equal(t, models.LobbyCancelled, l.Status)
}

func TestConcurrentJoinsRespectCapacity(t *testing.T) {
	m, store, _, _ := newTestManager(t)
	ctx := context.Background()

	creator := uuid.New()
	l := createWaiting(t, m, creator, 3)

	const contenders = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	joined := 0
	full := 0

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Join(ctx, l.ID, uuid.New(), "")
			mu.Lock()
			defer mu.Unlock()
			switch ErrKind(err) {
			case 0:
				joined++
			case KindLobbyFull, KindConcurrentModification:
				full++
			default:
				t.Errorf("unexpected join error: %v", err)
			}
		}()
	}
	wg.Wait()

	cur, err := store.GetLobby(ctx, l.ID)
	require.NoError(t, err)
	require.LessOrEqual(t, len(cur.Members), cur.Capacity)
	require.Equal(t, joined, len(cur.Members)-1)
	require.Equal(t, contenders, joined+full)
}

func TestInviteLifecycle(t *testing.T) {
	m, _, _, _ := newTestManager(t)
	ctx := context.Background()

	creator := uuid.New()
	invitee := uuid.New()
	l := createWaiting(t, m, creator, 4)

	inv, err := m.Invite(ctx, l.ID, creator, invitee)
	require.NoError(t, err)
	require.Equal(t, models.InvitePending, inv.Status)
	require.Equal(t, inv.CreatedAt.Add(InviteTTL), inv.ExpiresAt)

	// Only one live invite per (lobby, invitee).
	_, err = m.Invite(ctx, l.ID, creator, invitee)
	require.Equal(t, KindAlreadyInvited, ErrKind(err))

	// Non-members cannot invite.
	_, err = m.Invite(ctx, l.ID, uuid.New(), uuid.New())
	require.Equal(t, KindNotAuthorized, ErrKind(err))

	pending, err := m.InvitesFor(ctx, invitee)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	// Only the addressee may resolve it.
	_, err = m.AcceptInvite(ctx, inv.ID, uuid.New())
	require.Equal(t, KindNotAuthorized, ErrKind(err))

	got, err := m.AcceptInvite(ctx, inv.ID, invitee)
	require.NoError(t, err)
	require.True(t, got.HasMember(invitee))

	// Accepted invites are spent.
	_, err = m.AcceptInvite(ctx, inv.ID, invitee)
	require.Equal(t, KindInviteNotPending, ErrKind(err))
}

func TestInviteUnknownUser(t *testing.T) {
	m, _, _, _ := newTestManager(t)
	ghost := uuid.New()
	m.Users = fakeDirectory{missing: map[uuid.UUID]bool{ghost: true}}

	creator := uuid.New()
	l := createWaiting(t, m, creator, 4)

	_, err := m.Invite(context.Background(), l.ID, creator, ghost)
	require.Equal(t, KindNotFound, ErrKind(err))
}

func TestDeclineInvite(t *testing.T) {
	m, store, _, _ := newTestManager(t)
	ctx := context.Background()

	creator := uuid.New()
	invitee := uuid.New()
	l := createWaiting(t, m, creator, 4)

	inv, err := m.Invite(ctx, l.ID, creator, invitee)
	require.NoError(t, err)

	got, err := m.DeclineInvite(ctx, inv.ID, invitee)
	require.NoError(t, err)
	require.Equal(t, models.InviteDeclined, got.Status)

	// Declining never touches the lobby.
	cur, err := store.GetLobby(ctx, l.ID)
	require.NoError(t, err)
	require.False(t, cur.HasMember(invitee))
	require.Equal(t, l.Version, cur.Version)

	// A declined invite frees the slot for a fresh one.
	_, err = m.Invite(ctx, l.ID, creator, invitee)
	require.NoError(t, err)
}

func TestAcceptInviteWhenFullStaysPending(t *testing.T) {
	m, store, _, _ := newTestManager(t)
	ctx := context.Background()

	creator := uuid.New()
	invitee := uuid.New()
	l := createWaiting(t, m, creator, 2)

	inv, err := m.Invite(ctx, l.ID, creator, invitee)
	require.NoError(t, err)

	_, err = m.Join(ctx, l.ID, uuid.New(), "")
	require.NoError(t, err)

	_, err = m.AcceptInvite(ctx, inv.ID, invitee)
	require.Equal(t, KindLobbyFull, ErrKind(err))

	// The invite survives; it becomes acceptable again if a seat frees up.
	cur, err := store.GetInvite(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, models.InvitePending, cur.Status)
}

func TestAcceptInviteAfterCancelExpiresIt(t *testing.T) {
	m, store, _, _ := newTestManager(t)
	ctx := context.Background()

	creator := uuid.New()
	invitee := uuid.New()
	l := createWaiting(t, m, creator, 4)

	inv, err := m.Invite(ctx, l.ID, creator, invitee)
	require.NoError(t, err)

	_, err = m.Cancel(ctx, l.ID, creator)
	require.NoError(t, err)

	_, err = m.AcceptInvite(ctx, inv.ID, invitee)
	require.Equal(t, KindInvalidState, ErrKind(err))

	cur, err := store.GetInvite(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, models.InviteExpired, cur.Status)
}

func TestInviteExpiryAtResolution(t *testing.T) {
	m, store, clock, _ := newTestManager(t)
	ctx := context.Background()

	creator := uuid.New()
	invitee := uuid.New()
	l := createWaiting(t, m, creator, 4)

	inv, err := m.Invite(ctx, l.ID, creator, invitee)
	require.NoError(t, err)

	clock.Advance(InviteTTL + time.Minute)

	pending, err := m.InvitesFor(ctx, invitee)
	require.NoError(t, err)
	require.Empty(t, pending)

	_, err = m.AcceptInvite(ctx, inv.ID, invitee)
	require.Equal(t, KindInviteNotPending, ErrKind(err))

	cur, err := store.GetInvite(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, models.InviteExpired, cur.Status)
}

func TestCancelAbandoned(t *testing.T) {
	m, store, clock, _ := newTestManager(t)
	ctx := context.Background()

	stale := createWaiting(t, m, uuid.New(), 4)
	clock.Advance(2 * time.Hour)
	fresh := createWaiting(t, m, uuid.New(), 4)
	running := createWaiting(t, m, uuid.New(), 4)
	_, err := m.Join(ctx, running.ID, uuid.New(), "")
	require.NoError(t, err)
	_, err = m.Start(ctx, running.ID, running.CreatorID)
	require.NoError(t, err)

	n, err := m.CancelAbandoned(ctx, clock.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, err := store.GetLobby(ctx, stale.ID)
	require.NoError(t, err)
	require.Equal(t, models.LobbyCancelled, got.Status)

	got, err = store.GetLobby(ctx, fresh.ID)
	require.NoError(t, err)
	require.Equal(t, models.LobbyWaiting, got.Status)
}

func TestUpdateRetriesOnConflict(t *testing.T) {
	m, store, _, _ := newTestManager(t)
	ctx := context.Background()

	creator := uuid.New()
	l := createWaiting(t, m, creator, 4)

	// conflictStore forces version conflicts on the first saves, then
	// delegates, so the retry loop has to reload and win.
	cs := &conflictStore{Store: store, failures: 2}
	m.Store = cs

	got, err := m.Join(ctx, l.ID, uuid.New(), "")
	require.NoError(t, err)
	require.Len(t, got.Members, 2)

	cs.failures = m.MaxSaveAttempts
	_, err = m.Join(ctx, l.ID, uuid.New(), "")
	require.Equal(t, KindConcurrentModification, ErrKind(err))
}

type conflictStore struct {
	Store
	failures int
}

func (s *conflictStore) SaveLobby(ctx context.Context, l *models.Lobby, expectedVersion int64) error {
	if s.failures > 0 {
		s.failures--
		return ErrVersionConflict
	}
	return s.Store.SaveLobby(ctx, l, expectedVersion)
}
