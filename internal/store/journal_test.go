package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DoyleJ11/lane-duel-backend/internal/engine"
)

type memJournal struct {
	mu      sync.Mutex
	records []TurnRecord
	block   chan struct{}
	err     error
	closed  bool
}

func (m *memJournal) RecordTurn(_ context.Context, rec TurnRecord) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return m.err
}

func (m *memJournal) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func TestNewTurnRecord_EncodesReport(t *testing.T) {
	at := time.Unix(1700000000, 0)
	report := &engine.BattleReport{Turn: 3, Lanes: []engine.LaneResult{{Lane: 2}}}

	rec, err := NewTurnRecord("room-1", 3, engine.Seat1, "bob", true, report, at)
	require.NoError(t, err)

	assert.Equal(t, "room-1", rec.RoomID)
	assert.Equal(t, 1, rec.Seat)
	assert.True(t, rec.Forced)
	var decoded engine.BattleReport
	require.NoError(t, json.Unmarshal([]byte(rec.Battle), &decoded))
	assert.Equal(t, *report, decoded)

	rec, err = NewTurnRecord("room-1", 1, engine.Seat0, "alice", false, nil, at)
	require.NoError(t, err)
	assert.Equal(t, "null", rec.Battle)
}

func TestAsync_DrainsOnClose(t *testing.T) {
	mem := &memJournal{}
	a := NewAsync(mem, 8, zap.NewNop())

	for i := 1; i <= 3; i++ {
		require.NoError(t, a.RecordTurn(context.Background(), TurnRecord{RoomID: "r", TurnCount: i}))
	}
	require.NoError(t, a.Close())

	assert.Len(t, mem.records, 3)
	assert.True(t, mem.closed)
	assert.ErrorIs(t, a.RecordTurn(context.Background(), TurnRecord{}), ErrJournalClosed)
	assert.NoError(t, a.Close(), "second close is a no-op")
}

func TestAsync_DropsWhenFull(t *testing.T) {
	mem := &memJournal{block: make(chan struct{})}
	a := NewAsync(mem, 1, zap.NewNop())

	// first record is picked up by the writer and blocks, second fills the buffer
	require.NoError(t, a.RecordTurn(context.Background(), TurnRecord{TurnCount: 1}))
	require.Eventually(t, func() bool { return len(a.ch) == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, a.RecordTurn(context.Background(), TurnRecord{TurnCount: 2}))

	err := a.RecordTurn(context.Background(), TurnRecord{TurnCount: 3})
	assert.True(t, errors.Is(err, ErrJournalFull))

	close(mem.block)
	require.NoError(t, a.Close())
	assert.Len(t, mem.records, 2)
}

func TestNop(t *testing.T) {
	var j Journal = Nop{}
	assert.NoError(t, j.RecordTurn(context.Background(), TurnRecord{}))
	assert.NoError(t, j.Close())

	_, err := Nop{}.Turns(context.Background(), "r1")
	assert.ErrorIs(t, err, ErrJournalDisabled)
}
