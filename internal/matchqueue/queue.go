// Package matchqueue pairs waiting players first come, first served.
package matchqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/lane-duel-backend/internal/engine"
	"github.com/DoyleJ11/lane-duel-backend/internal/room"
)

const (
	DefaultTTL           = 10 * time.Minute
	DefaultSweepInterval = 30 * time.Second
)

var ErrClosed = errors.New("match queue closed")

type Status string

const (
	StatusWaiting Status = "waiting"
	StatusMatched Status = "matched"
)

type Entry struct {
	PlayerID    string
	DisplayName string
	JoinedAt    time.Time
}

// Match is what each side learns about its new room.
type Match struct {
	RoomID       string
	OpponentID   string
	OpponentName string
	IsHost       bool
}

type EnqueueResult struct {
	Status Status
	Match  Match
}

// Rooms opens the room for a new pair.
type Rooms interface {
	Create(ctx context.Context, seat0, seat1 engine.Player) (*room.Room, error)
}

// Notifier reaches players who are not the caller of the current operation.
// Calls come from the queue goroutine and must not block.
type Notifier interface {
	Matched(playerID string, m Match)
	Expired(playerID string)
}

type Config struct {
	TTL           time.Duration
	SweepInterval time.Duration
	Logger        *zap.Logger
	Now           func() time.Time
}

type Msg interface{ isQueueMsg() }

type Enqueue struct {
	PlayerID    string
	DisplayName string
	Reply       chan enqueueReply
}

type Cancel struct {
	PlayerID string
	Reply    chan bool
}

type Len struct {
	Reply chan int
}

type enqueueReply struct {
	res EnqueueResult
	err error
}

func (Enqueue) isQueueMsg() {}
func (Cancel) isQueueMsg()  {}
func (Len) isQueueMsg()     {}

type Queue struct {
	inbox   chan Msg
	waiting []Entry
	rooms   Rooms
	notify  Notifier
	cfg     Config
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(parent context.Context, rooms Rooms, notify Notifier, cfg Config) *Queue {
	ctx, cancel := context.WithCancel(parent)
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	q := &Queue{
		inbox:  make(chan Msg, 64),
		rooms:  rooms,
		notify: notify,
		cfg:    cfg,
		log:    cfg.Logger.With(zap.String("component", "matchqueue")),
		ctx:    ctx,
		cancel: cancel,
	}
	go q.loop()
	return q
}

func (q *Queue) Close() { q.cancel() }

func (q *Queue) loop() {
	ticker := time.NewTicker(q.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return

		case <-ticker.C:
			q.sweep()

		case m := <-q.inbox:
			switch msg := m.(type) {
			case Enqueue:
				res, err := q.enqueue(msg.PlayerID, msg.DisplayName)
				msg.Reply <- enqueueReply{res: res, err: err}

			case Cancel:
				msg.Reply <- q.remove(msg.PlayerID)

			case Len:
				msg.Reply <- len(q.waiting)
			}
		}
	}
}

func (q *Queue) enqueue(playerID, name string) (EnqueueResult, error) {
	if q.position(playerID) >= 0 {
		return EnqueueResult{Status: StatusWaiting}, nil
	}
	if len(q.waiting) == 0 {
		q.waiting = append(q.waiting, Entry{PlayerID: playerID, DisplayName: name, JoinedAt: q.cfg.Now()})
		q.log.Debug("player waiting", zap.String("player_id", playerID))
		return EnqueueResult{Status: StatusWaiting}, nil
	}

	host := q.waiting[0]
	q.waiting = q.waiting[1:]

	seat0 := engine.Player{ID: host.PlayerID, DisplayName: host.DisplayName}
	seat1 := engine.Player{ID: playerID, DisplayName: name}

	r, err := q.rooms.Create(q.ctx, seat0, seat1)
	if err != nil {
		// put the waiting player back at the head
		q.waiting = append([]Entry{host}, q.waiting...)
		return EnqueueResult{}, fmt.Errorf("create room: %w", err)
	}
	if err := r.StartTurn(q.ctx, host.PlayerID); err != nil {
		q.log.Warn("start first turn", zap.String("room_id", r.ID()), zap.Error(err))
	}

	q.log.Info("players matched",
		zap.String("room_id", r.ID()),
		zap.String("host", host.PlayerID),
		zap.String("guest", playerID),
	)
	q.notify.Matched(host.PlayerID, Match{
		RoomID:       r.ID(),
		OpponentID:   playerID,
		OpponentName: name,
		IsHost:       true,
	})
	return EnqueueResult{
		Status: StatusMatched,
		Match: Match{
			RoomID:       r.ID(),
			OpponentID:   host.PlayerID,
			OpponentName: host.DisplayName,
			IsHost:       false,
		},
	}, nil
}

func (q *Queue) position(playerID string) int {
	for i, e := range q.waiting {
		if e.PlayerID == playerID {
			return i
		}
	}
	return -1
}

func (q *Queue) remove(playerID string) bool {
	i := q.position(playerID)
	if i < 0 {
		return false
	}
	q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
	return true
}

func (q *Queue) sweep() {
	cutoff := q.cfg.Now().Add(-q.cfg.TTL)
	kept := q.waiting[:0]
	var expired []string
	for _, e := range q.waiting {
		if e.JoinedAt.Before(cutoff) {
			expired = append(expired, e.PlayerID)
			continue
		}
		kept = append(kept, e)
	}
	q.waiting = kept

	for _, id := range expired {
		q.log.Info("queue entry expired", zap.String("player_id", id))
		q.notify.Expired(id)
	}
}

func call[T any](ctx context.Context, q *Queue, build func(reply chan T) Msg) (T, error) {
	var zero T
	reply := make(chan T, 1)
	select {
	case q.inbox <- build(reply):
	case <-q.ctx.Done():
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	select {
	case v := <-reply:
		return v, nil
	case <-q.ctx.Done():
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Enqueue pairs the caller with the oldest waiting player, or queues them.
// The oldest player becomes the host and takes the first turn.
func (q *Queue) Enqueue(ctx context.Context, playerID, displayName string) (EnqueueResult, error) {
	r, err := call(ctx, q, func(reply chan enqueueReply) Msg {
		return Enqueue{PlayerID: playerID, DisplayName: displayName, Reply: reply}
	})
	if err != nil {
		return EnqueueResult{}, err
	}
	return r.res, r.err
}

// Cancel drops a waiting player. It reports whether an entry was removed.
func (q *Queue) Cancel(ctx context.Context, playerID string) (bool, error) {
	return call(ctx, q, func(reply chan bool) Msg {
		return Cancel{PlayerID: playerID, Reply: reply}
	})
}

func (q *Queue) Len(ctx context.Context) (int, error) {
	return call(ctx, q, func(reply chan int) Msg {
		return Len{Reply: reply}
	})
}
