package ws

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/lane-duel-backend/internal/engine"
	"github.com/DoyleJ11/lane-duel-backend/internal/matchqueue"
	"github.com/DoyleJ11/lane-duel-backend/internal/room"
	"github.com/DoyleJ11/lane-duel-backend/internal/types"
)

// Rooms is the registry view the transport needs.
type Rooms interface {
	Get(ctx context.Context, roomID string) (*room.Room, error)
	ByPlayer(ctx context.Context, playerID string) (*room.Room, error)
	Rejoin(ctx context.Context, roomID string, p engine.Player) (*room.Room, error)
}

type session struct {
	playerID string
	name     string
	out      chan types.ServerMessage
	done     chan struct{}
	once     sync.Once
	log      *zap.Logger
}

func newSession(playerID, name string, log *zap.Logger) *session {
	return &session{
		playerID: playerID,
		name:     name,
		out:      make(chan types.ServerMessage, 32),
		done:     make(chan struct{}),
		log:      log,
	}
}

// send queues msg for the writer. A full outbox drops the message.
func (s *session) send(msg types.ServerMessage) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.out <- msg:
		return true
	default:
		s.log.Warn("outbox full, dropping message", zap.String("type", msg.Type))
		return false
	}
}

func (s *session) close() { s.once.Do(func() { close(s.done) }) }

// attach subscribes the session to r's snapshots until the room or the
// session goes away.
func (s *session) attach(ctx context.Context, r *room.Room) error {
	snaps := make(chan room.Snapshot, 8)
	if err := r.Attach(ctx, s.playerID, snaps); err != nil {
		return err
	}
	// The room closes snaps on detach, drop or shutdown.
	go func() {
		for snap := range snaps {
			s.send(types.ServerMessage{Type: types.ServerStateSnapshot, Version: snap.Version, RoomID: snap.RoomID, Snapshot: &snap})
		}
	}()
	return nil
}

// Sessions tracks one live connection per player and delivers queue
// notifications to it.
type Sessions struct {
	mu       sync.Mutex
	byPlayer map[string]*session
	rooms    Rooms
	log      *zap.Logger
}

func NewSessions(rooms Rooms, log *zap.Logger) *Sessions {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sessions{
		byPlayer: make(map[string]*session),
		rooms:    rooms,
		log:      log,
	}
}

// open registers a new connection for playerID, replacing any previous one.
func (ss *Sessions) open(playerID, name string) *session {
	s := newSession(playerID, name, ss.log.With(zap.String("player_id", playerID)))
	ss.mu.Lock()
	prev := ss.byPlayer[playerID]
	ss.byPlayer[playerID] = s
	ss.mu.Unlock()
	if prev != nil {
		prev.close()
	}
	return s
}

// release forgets s and reports whether it was still the player's live session.
func (ss *Sessions) release(s *session) bool {
	s.close()
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.byPlayer[s.playerID] != s {
		return false
	}
	delete(ss.byPlayer, s.playerID)
	return true
}

func (ss *Sessions) lookup(playerID string) *session {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.byPlayer[playerID]
}

func (ss *Sessions) Len() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return len(ss.byPlayer)
}

func (ss *Sessions) Matched(playerID string, m matchqueue.Match) {
	s := ss.lookup(playerID)
	if s == nil {
		ss.log.Warn("matched player has no session", zap.String("player_id", playerID), zap.String("room_id", m.RoomID))
		return
	}
	s.send(matchedMessage(m))

	// Attaching talks to the room actor; keep it off the queue goroutine.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		r, err := ss.rooms.Get(ctx, m.RoomID)
		if err == nil {
			err = s.attach(ctx, r)
		}
		if err != nil {
			s.log.Warn("attach to matched room", zap.String("room_id", m.RoomID), zap.Error(err))
		}
	}()
}

func (ss *Sessions) Expired(playerID string) {
	if s := ss.lookup(playerID); s != nil {
		s.send(types.ServerMessage{Type: types.ServerQueueExpired})
	}
}

func matchedMessage(m matchqueue.Match) types.ServerMessage {
	return types.ServerMessage{
		Type:         types.ServerMatched,
		RoomID:       m.RoomID,
		OpponentID:   m.OpponentID,
		OpponentName: m.OpponentName,
		IsHost:       m.IsHost,
	}
}
