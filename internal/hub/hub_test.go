package hub

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DoyleJ11/lane-duel-backend/internal/engine"
	"github.com/DoyleJ11/lane-duel-backend/internal/room"
)

var alice = engine.Player{ID: "alice", DisplayName: "Alice"}
var bob = engine.Player{ID: "bob", DisplayName: "Bob"}

func newTestHub(t *testing.T, rules engine.Rules) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewHub(ctx, Config{Rules: rules, Logger: zap.NewNop()})
}

func TestHub_Create_Get_SamePointer(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t, engine.DefaultRules())

	r1, err := h.Create(ctx, alice, bob)
	require.NoError(t, err)

	r2, err := h.Get(ctx, r1.ID())
	require.NoError(t, err)
	assert.Same(t, r1, r2)

	assert.Regexp(t, regexp.MustCompile(`^r[0-9a-z]+-[0-9a-f]{8}$`), r1.ID())
}

func TestHub_Create_InitialRoomState(t *testing.T) {
	ctx := context.Background()
	rules := engine.DefaultRules()
	rules.BaseHP = 250
	h := newTestHub(t, rules)

	r, err := h.Create(ctx, alice, bob)
	require.NoError(t, err)
	v, err := r.State(ctx)
	require.NoError(t, err)

	assert.Equal(t, r.ID(), v.State.RoomID)
	assert.Equal(t, 1, v.State.Shared.TurnCount)
	assert.Empty(t, v.State.Shared.CurrentPlayerID)
	assert.True(t, v.State.Seats[engine.Seat0].IsHost)
	assert.False(t, v.State.Seats[engine.Seat1].IsHost)
	assert.Equal(t, 250.0, v.State.Battlefield.Bases[engine.Seat1].HP)
	for _, lane := range v.State.Battlefield.Lanes {
		assert.Equal(t, [engine.NumSeats]*engine.Card{}, lane.Slots)
	}
}

func TestHub_Get_Unknown(t *testing.T) {
	h := newTestHub(t, engine.DefaultRules())
	_, err := h.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, engine.ErrRoomNotFound)
}

func TestHub_ByPlayer(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t, engine.DefaultRules())

	r, err := h.Create(ctx, alice, bob)
	require.NoError(t, err)

	got, err := h.ByPlayer(ctx, "bob")
	require.NoError(t, err)
	assert.Same(t, r, got)

	_, err = h.ByPlayer(ctx, "carol")
	assert.ErrorIs(t, err, engine.ErrNotInRoom)
}

func TestHub_Delete_ClosesRoom(t *testing.T) {
	ctx := context.Background()
	rules := engine.DefaultRules()
	rules.TurnTimeLimit = 200 * time.Millisecond
	h := newTestHub(t, rules)

	r, err := h.Create(ctx, alice, bob)
	require.NoError(t, err)
	out := make(chan room.Snapshot, 8)
	require.NoError(t, r.Attach(ctx, "alice", out))
	require.NoError(t, r.StartTurn(ctx, "alice"))

	require.NoError(t, h.Delete(ctx, r.ID()))

	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("deleted room still running")
	}
	_, err = h.Get(ctx, r.ID())
	assert.ErrorIs(t, err, engine.ErrRoomNotFound)
	_, err = h.ByPlayer(ctx, "alice")
	assert.ErrorIs(t, err, engine.ErrNotInRoom)
	assert.ErrorIs(t, h.Delete(ctx, r.ID()), engine.ErrRoomNotFound)

	// drain what was sent before the delete; the timer never forces an end
	for snap := range out {
		assert.Equal(t, 1, snap.Shared.TurnCount)
	}
}

func TestHub_LeavesUpdateIndexAndEmptyRoomIsRemoved(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t, engine.DefaultRules())

	r, err := h.Create(ctx, alice, bob)
	require.NoError(t, err)

	require.NoError(t, r.Leave(ctx, "alice"))
	require.Eventually(t, func() bool {
		_, err := h.ByPlayer(ctx, "alice")
		return err != nil
	}, time.Second, 5*time.Millisecond)

	got, err := h.ByPlayer(ctx, "bob")
	require.NoError(t, err)
	assert.Same(t, r, got)

	require.NoError(t, r.Leave(ctx, "bob"))
	require.Eventually(t, func() bool {
		n, err := h.Len(ctx)
		return err == nil && n == 0
	}, time.Second, 5*time.Millisecond)

	_, err = h.Get(ctx, r.ID())
	assert.ErrorIs(t, err, engine.ErrRoomNotFound)
}

func TestHub_Rejoin_RestoresIndex(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t, engine.DefaultRules())

	r, err := h.Create(ctx, alice, bob)
	require.NoError(t, err)
	require.NoError(t, r.Leave(ctx, "alice"))
	require.Eventually(t, func() bool {
		_, err := h.ByPlayer(ctx, "alice")
		return err != nil
	}, time.Second, 5*time.Millisecond)

	got, err := h.Rejoin(ctx, r.ID(), alice)
	require.NoError(t, err)
	assert.Same(t, r, got)

	byPlayer, err := h.ByPlayer(ctx, "alice")
	require.NoError(t, err)
	assert.Same(t, r, byPlayer)

	snap, err := r.Status(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, snap.Players, 2)

	// Already seated: no-op.
	_, err = h.Rejoin(ctx, r.ID(), alice)
	require.NoError(t, err)
}

func TestHub_Rejoin_Errors(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t, engine.DefaultRules())

	r, err := h.Create(ctx, alice, bob)
	require.NoError(t, err)
	other, err := h.Create(ctx, engine.Player{ID: "carol"}, engine.Player{ID: "dave"})
	require.NoError(t, err)

	_, err = h.Rejoin(ctx, "missing", alice)
	assert.ErrorIs(t, err, engine.ErrRoomNotFound)

	_, err = h.Rejoin(ctx, r.ID(), engine.Player{ID: "eve"})
	assert.ErrorIs(t, err, engine.ErrRoomFull)

	require.NoError(t, other.Leave(ctx, "dave"))
	_, err = h.Rejoin(ctx, other.ID(), alice)
	assert.ErrorIs(t, err, ErrInOtherRoom)
}

func TestHub_Shutdown_ClosesRooms(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t, engine.DefaultRules())

	r, err := h.Create(ctx, alice, bob)
	require.NoError(t, err)

	h.Shutdown()

	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("room survived hub shutdown")
	}
	_, err = h.Get(ctx, r.ID())
	assert.ErrorIs(t, err, ErrClosed)
}
