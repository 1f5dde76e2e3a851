package hub

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/lane-duel-backend/internal/engine"
	"github.com/DoyleJ11/lane-duel-backend/internal/room"
	"github.com/DoyleJ11/lane-duel-backend/internal/store"
)

var (
	ErrClosed      = errors.New("hub closed")
	ErrInOtherRoom = errors.New("player is seated in another room")
)

type HubMsg interface{ isHubMsg() }

type CreateRoom struct {
	Seat0 engine.Player
	Seat1 engine.Player
	Reply chan *room.Room
}

type GetRoom struct {
	RoomID string
	Reply  chan *room.Room
}

type RoomFor struct {
	PlayerID string
	Reply    chan *room.Room
}

type DeleteRoom struct {
	RoomID string
	Reply  chan bool
}

type CountRooms struct {
	Reply chan int
}

type ShutdownHub struct{}

// Reports from rooms.
type playerLeft struct{ roomID, playerID string }
type roomEmptied struct{ roomID string }

// indexPlayer points playerID at roomID if the room is still registered.
type indexPlayer struct {
	roomID, playerID string
	reply            chan bool
}

func (CreateRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (RoomFor) isHubMsg()     {}
func (DeleteRoom) isHubMsg()  {}
func (CountRooms) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}
func (playerLeft) isHubMsg()  {}
func (roomEmptied) isHubMsg() {}
func (indexPlayer) isHubMsg() {}

type Config struct {
	Rules   engine.Rules
	Logger  *zap.Logger
	Journal store.Journal
	Now     func() time.Time
}

type Hub struct {
	inbox   chan HubMsg
	rooms   map[string]*room.Room
	players map[string]string // playerID -> roomID
	cfg     Config
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

var newRoomID = func(now time.Time) string {
	return "r" + strconv.FormatInt(now.UnixMilli(), 36) + "-" + uuid.NewString()[:8]
}

func NewHub(parent context.Context, cfg Config) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Rules.TurnTimeLimit <= 0 {
		cfg.Rules.TurnTimeLimit = engine.DefaultTurnTimeLimit
	}
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		rooms:   make(map[string]*room.Room),
		players: make(map[string]string),
		cfg:     cfg,
		log:     cfg.Logger,
		ctx:     ctx,
		cancel:  cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.closeAll()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				msg.Reply <- h.create(msg.Seat0, msg.Seat1)

			case GetRoom:
				msg.Reply <- h.rooms[msg.RoomID] // May be nil

			case RoomFor:
				msg.Reply <- h.rooms[h.players[msg.PlayerID]]

			case DeleteRoom:
				msg.Reply <- h.remove(msg.RoomID)

			case CountRooms:
				msg.Reply <- len(h.rooms)

			case playerLeft:
				if h.players[msg.playerID] == msg.roomID {
					delete(h.players, msg.playerID)
				}

			case indexPlayer:
				_, ok := h.rooms[msg.roomID]
				if ok {
					h.players[msg.playerID] = msg.roomID
				}
				msg.reply <- ok

			case roomEmptied:
				if h.remove(msg.roomID) {
					h.log.Info("room removed after last player left", zap.String("room_id", msg.roomID))
				}

			case ShutdownHub:
				h.closeAll()
				h.cancel()
				return
			}
		}
	}
}

func (h *Hub) create(seat0, seat1 engine.Player) *room.Room {
	now := h.cfg.Now()
	id := newRoomID(now)
	for h.rooms[id] != nil {
		id = newRoomID(now)
	}

	initial := engine.NewState(id, seat0, seat1, h.cfg.Rules, now)
	r := room.New(h.ctx, initial, room.Config{
		Logger:  h.log,
		Journal: h.cfg.Journal,
		Now:     h.cfg.Now,
		OnLeave: func(roomID, playerID string) { h.post(playerLeft{roomID: roomID, playerID: playerID}) },
		OnEmpty: func(roomID string) { h.post(roomEmptied{roomID: roomID}) },
	})
	h.rooms[id] = r
	for _, p := range []engine.Player{seat0, seat1} {
		if prev, ok := h.players[p.ID]; ok {
			h.log.Warn("player moved to a new room", zap.String("player_id", p.ID), zap.String("previous_room", prev))
		}
		h.players[p.ID] = id
	}
	h.log.Info("room created",
		zap.String("room_id", id),
		zap.String("seat0", seat0.ID),
		zap.String("seat1", seat1.ID),
	)
	return r
}

// remove closes the room before dropping it, so neither seat's timer can fire afterwards.
func (h *Hub) remove(roomID string) bool {
	r, ok := h.rooms[roomID]
	if !ok {
		return false
	}
	r.Close()
	delete(h.rooms, roomID)
	for pid, rid := range h.players {
		if rid == roomID {
			delete(h.players, pid)
		}
	}
	return true
}

func (h *Hub) closeAll() {
	for id := range h.rooms {
		h.remove(id)
	}
}

func (h *Hub) post(m HubMsg) {
	select {
	case h.inbox <- m:
	case <-h.ctx.Done():
	}
}

func ask[T any](ctx context.Context, h *Hub, build func(reply chan T) HubMsg) (T, error) {
	var zero T
	reply := make(chan T, 1)
	select {
	case h.inbox <- build(reply):
	case <-h.ctx.Done():
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	select {
	case v := <-reply:
		return v, nil
	case <-h.ctx.Done():
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Create opens a room with seat0 as host. Nobody's turn has started yet.
func (h *Hub) Create(ctx context.Context, seat0, seat1 engine.Player) (*room.Room, error) {
	return ask(ctx, h, func(reply chan *room.Room) HubMsg {
		return CreateRoom{Seat0: seat0, Seat1: seat1, Reply: reply}
	})
}

func (h *Hub) Get(ctx context.Context, roomID string) (*room.Room, error) {
	r, err := ask(ctx, h, func(reply chan *room.Room) HubMsg {
		return GetRoom{RoomID: roomID, Reply: reply}
	})
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, engine.ErrRoomNotFound
	}
	return r, nil
}

// ByPlayer returns the room a player is seated in.
func (h *Hub) ByPlayer(ctx context.Context, playerID string) (*room.Room, error) {
	r, err := ask(ctx, h, func(reply chan *room.Room) HubMsg {
		return RoomFor{PlayerID: playerID, Reply: reply}
	})
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, engine.ErrNotInRoom
	}
	return r, nil
}

// Rejoin seats p again in a room they left and restores the player index.
func (h *Hub) Rejoin(ctx context.Context, roomID string, p engine.Player) (*room.Room, error) {
	r, err := h.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if cur, err := h.ByPlayer(ctx, p.ID); err == nil && cur != r {
		return nil, ErrInOtherRoom
	}
	if err := r.Join(ctx, p); err != nil {
		return nil, err
	}
	// The room reports a leave before it answers a later join, so this
	// update lands after any playerLeft for the same seat.
	ok, err := ask(ctx, h, func(reply chan bool) HubMsg {
		return indexPlayer{roomID: roomID, playerID: p.ID, reply: reply}
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, engine.ErrRoomNotFound
	}
	return r, nil
}

func (h *Hub) Delete(ctx context.Context, roomID string) error {
	ok, err := ask(ctx, h, func(reply chan bool) HubMsg {
		return DeleteRoom{RoomID: roomID, Reply: reply}
	})
	if err != nil {
		return err
	}
	if !ok {
		return engine.ErrRoomNotFound
	}
	h.log.Info("room deleted", zap.String("room_id", roomID))
	return nil
}

func (h *Hub) Len(ctx context.Context) (int, error) {
	return ask(ctx, h, func(reply chan int) HubMsg {
		return CountRooms{Reply: reply}
	})
}

// Shutdown closes every room and stops the hub.
func (h *Hub) Shutdown() {
	select {
	case h.inbox <- ShutdownHub{}:
	case <-h.ctx.Done():
		return
	}
	<-h.ctx.Done()
}
