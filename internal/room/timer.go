package room

import (
	"sync"
	"time"

	"github.com/DoyleJ11/lane-duel-backend/internal/engine"
)

// turnTimer keeps at most one pending handle per seat. Each start bumps the
// seat's generation; a fire is honoured only if its generation is still live.
type turnTimer struct {
	mu      sync.Mutex
	handles [engine.NumSeats]*time.Timer
	gens    [engine.NumSeats]uint64
	fire    func(seat engine.Seat, gen uint64)
}

func newTurnTimer(fire func(engine.Seat, uint64)) *turnTimer {
	return &turnTimer{fire: fire}
}

func (t *turnTimer) start(seat engine.Seat, d time.Duration) {
	if !seat.Valid() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked(seat)
	gen := t.gens[seat]
	t.handles[seat] = time.AfterFunc(d, func() { t.fire(seat, gen) })
}

func (t *turnTimer) cancel(seat engine.Seat) {
	if !seat.Valid() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked(seat)
}

func (t *turnTimer) stopLocked(seat engine.Seat) {
	if h := t.handles[seat]; h != nil {
		h.Stop()
		t.handles[seat] = nil
	}
	t.gens[seat]++
}

// consume reports whether a fire is still live and, if so, retires the handle.
func (t *turnTimer) consume(seat engine.Seat, gen uint64) bool {
	if !seat.Valid() {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.handles[seat] == nil || t.gens[seat] != gen {
		return false
	}
	t.handles[seat] = nil
	return true
}

func (t *turnTimer) active(seat engine.Seat) bool {
	if !seat.Valid() {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.handles[seat] != nil
}

func (t *turnTimer) stopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.handles {
		t.stopLocked(engine.Seat(i))
	}
}

// remainingMs is what is left of the current turn, never negative. It is zero
// when no turn is running.
func remainingMs(shared engine.SharedGameState, now time.Time) int64 {
	if !shared.IsGameActive || shared.CurrentPlayerID == "" || shared.TurnStartedAt.IsZero() {
		return 0
	}
	left := shared.TurnTimeLimitMs - now.Sub(shared.TurnStartedAt).Milliseconds()
	if left < 0 {
		return 0
	}
	return left
}
