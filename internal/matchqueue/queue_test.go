package matchqueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DoyleJ11/lane-duel-backend/internal/engine"
	"github.com/DoyleJ11/lane-duel-backend/internal/hub"
	"github.com/DoyleJ11/lane-duel-backend/internal/room"
)

type fakeNotifier struct {
	mu      sync.Mutex
	matched map[string]Match
	expired []string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{matched: make(map[string]Match)}
}

func (n *fakeNotifier) Matched(playerID string, m Match) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.matched[playerID] = m
}

func (n *fakeNotifier) Expired(playerID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.expired = append(n.expired, playerID)
}

func (n *fakeNotifier) matchFor(playerID string) (Match, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	m, ok := n.matched[playerID]
	return m, ok
}

func (n *fakeNotifier) expiredIDs() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.expired...)
}

type failingRooms struct{}

func (failingRooms) Create(context.Context, engine.Player, engine.Player) (*room.Room, error) {
	return nil, errors.New("no capacity")
}

func newTestQueue(t *testing.T, rooms Rooms, cfg Config) (*Queue, *fakeNotifier) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	n := newFakeNotifier()
	cfg.Logger = zap.NewNop()
	return New(ctx, rooms, n, cfg), n
}

func newTestHub(t *testing.T) *hub.Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return hub.NewHub(ctx, hub.Config{Rules: engine.DefaultRules(), Logger: zap.NewNop()})
}

func TestQueue_PairsOldestWithNewcomer(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)
	q, n := newTestQueue(t, h, Config{})

	res, err := q.Enqueue(ctx, "alice", "Alice")
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, res.Status)

	res, err = q.Enqueue(ctx, "bob", "Bob")
	require.NoError(t, err)
	require.Equal(t, StatusMatched, res.Status)
	assert.Equal(t, "Alice", res.Match.OpponentName)
	assert.False(t, res.Match.IsHost)

	hostMatch, ok := n.matchFor("alice")
	require.True(t, ok, "waiting player is notified")
	assert.True(t, hostMatch.IsHost)
	assert.Equal(t, "Bob", hostMatch.OpponentName)
	assert.Equal(t, res.Match.RoomID, hostMatch.RoomID)

	r, err := h.Get(ctx, res.Match.RoomID)
	require.NoError(t, err)
	v, err := r.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", v.State.Seats[engine.Seat0].ID)
	assert.True(t, v.State.Seats[engine.Seat0].IsHost)
	assert.Equal(t, "bob", v.State.Seats[engine.Seat1].ID)
	assert.Equal(t, "alice", v.State.Shared.CurrentPlayerID, "host takes the first turn")
	assert.True(t, v.State.Shared.IsGameActive)

	size, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, size)
}

func TestQueue_ReEnqueueIsIdempotent(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, newTestHub(t), Config{})

	for i := 0; i < 3; i++ {
		res, err := q.Enqueue(ctx, "alice", "Alice")
		require.NoError(t, err)
		assert.Equal(t, StatusWaiting, res.Status)
	}
	size, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, size)
}

func TestQueue_FIFOAcrossPairs(t *testing.T) {
	ctx := context.Background()
	q, n := newTestQueue(t, newTestHub(t), Config{})

	_, err := q.Enqueue(ctx, "p1", "One")
	require.NoError(t, err)
	res, err := q.Enqueue(ctx, "p2", "Two")
	require.NoError(t, err)
	assert.Equal(t, "p1", res.Match.OpponentID)

	_, err = q.Enqueue(ctx, "p3", "Three")
	require.NoError(t, err)
	res, err = q.Enqueue(ctx, "p4", "Four")
	require.NoError(t, err)
	assert.Equal(t, "p3", res.Match.OpponentID)

	_, ok := n.matchFor("p3")
	assert.True(t, ok)
}

func TestQueue_Cancel(t *testing.T) {
	ctx := context.Background()
	q, n := newTestQueue(t, newTestHub(t), Config{})

	_, err := q.Enqueue(ctx, "alice", "Alice")
	require.NoError(t, err)

	removed, err := q.Cancel(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = q.Cancel(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, removed, "cancelling twice is fine")

	res, err := q.Enqueue(ctx, "bob", "Bob")
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, res.Status)
	_, ok := n.matchFor("alice")
	assert.False(t, ok)
}

func TestQueue_CreateFailureKeepsWaitingPlayer(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, failingRooms{}, Config{})

	_, err := q.Enqueue(ctx, "alice", "Alice")
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, "bob", "Bob")
	require.Error(t, err)

	size, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, size)
}

func TestQueue_SweepExpiresStaleEntries(t *testing.T) {
	ctx := context.Background()
	q, n := newTestQueue(t, newTestHub(t), Config{
		TTL:           50 * time.Millisecond,
		SweepInterval: 10 * time.Millisecond,
	})

	_, err := q.Enqueue(ctx, "alice", "Alice")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(n.expiredIDs()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"alice"}, n.expiredIDs())

	size, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, size)
}

func TestQueue_ClosedRejects(t *testing.T) {
	q, _ := newTestQueue(t, newTestHub(t), Config{})
	q.Close()

	require.Eventually(t, func() bool {
		_, err := q.Len(context.Background())
		return errors.Is(err, ErrClosed)
	}, time.Second, 5*time.Millisecond)
}
