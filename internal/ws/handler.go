package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/DoyleJ11/lane-duel-backend/internal/engine"
	"github.com/DoyleJ11/lane-duel-backend/internal/matchqueue"
	"github.com/DoyleJ11/lane-duel-backend/internal/types"
)

type Queue interface {
	Enqueue(ctx context.Context, playerID, displayName string) (matchqueue.EnqueueResult, error)
	Cancel(ctx context.Context, playerID string) (bool, error)
}

type Deps struct {
	Rooms    Rooms
	Queue    Queue
	Sessions *Sessions
	Logger   *zap.Logger

	// OriginPatterns loosens the same-origin check, e.g. "localhost:*" in dev.
	OriginPatterns []string
}

const (
	requestTimeout = 5 * time.Second
	writeTimeout   = 3 * time.Second
)

func Handler(d Deps) http.HandlerFunc {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		playerID := r.URL.Query().Get("player")
		if playerID == "" {
			playerID = uuid.NewString()
		}
		name := r.URL.Query().Get("name")
		if name == "" {
			name = playerID
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: d.OriginPatterns,
		})
		if err != nil {
			d.Logger.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		log := d.Logger.With(zap.String("player_id", playerID))
		sess := d.Sessions.open(playerID, name)
		c := &client{deps: d, sess: sess, log: log}
		defer c.disconnect()

		connCtx, cancel := context.WithCancel(r.Context())
		defer cancel()
		go c.writeLoop(connCtx, conn)
		c.resume(connCtx)

		log.Info("client connected")
		for {
			_, data, err := conn.Read(connCtx)
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("read failed", zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				sess.send(errorMessage("bad_json", err))
				continue
			}
			c.dispatch(connCtx, cm)
		}
	}
}

type client struct {
	deps Deps
	sess *session
	log  *zap.Logger
}

func (c *client) writeLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.sess.done:
			// A newer connection took over this player.
			conn.Close(websocket.StatusPolicyViolation, "session replaced")
			return
		case msg := <-c.sess.out:
			payload, err := json.Marshal(msg)
			if err != nil {
				c.log.Error("encode message", zap.String("type", msg.Type), zap.Error(err))
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = conn.Write(wctx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				c.log.Debug("write failed", zap.Error(err))
				return
			}
		}
	}
}

func (c *client) dispatch(ctx context.Context, m types.ClientMessage) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var (
		reply types.ServerMessage
		err   error
	)
	switch m.Type {
	case types.ClientEnqueue:
		reply, err = c.enqueue(ctx, m)
	case types.ClientCancelQueue:
		var removed bool
		removed, err = c.deps.Queue.Cancel(ctx, c.sess.playerID)
		reply = types.ServerMessage{Type: types.ServerQueueCancelled, Removed: removed}
	case types.ClientPlaceCard:
		reply, err = c.placeCard(ctx, m)
	case types.ClientEndTurn:
		reply, err = c.endTurn(ctx)
	case types.ClientStatus:
		reply, err = c.status(ctx)
	case types.ClientSyncState:
		reply, err = c.syncState(ctx, m)
	case types.ClientLeave:
		reply, err = c.leave(ctx)
	case types.ClientRejoin:
		reply, err = c.rejoin(ctx, m)
	default:
		c.sess.send(types.ServerMessage{Type: types.ServerError, Code: "unknown_type", Error: "unknown message type " + m.Type})
		return
	}

	if err != nil {
		c.sess.send(errorMessage(errorCode(err), err))
		return
	}
	if reply.Type != "" {
		c.sess.send(reply)
	}
}

func (c *client) enqueue(ctx context.Context, m types.ClientMessage) (types.ServerMessage, error) {
	if m.Name != "" {
		c.sess.name = m.Name
	}
	res, err := c.deps.Queue.Enqueue(ctx, c.sess.playerID, c.sess.name)
	if err != nil {
		return types.ServerMessage{}, err
	}
	if res.Status == matchqueue.StatusWaiting {
		return types.ServerMessage{Type: types.ServerWaiting}, nil
	}

	r, err := c.deps.Rooms.Get(ctx, res.Match.RoomID)
	if err != nil {
		return types.ServerMessage{}, err
	}
	// Matched goes out before the attach snapshot.
	c.sess.send(matchedMessage(res.Match))
	if err := c.sess.attach(ctx, r); err != nil {
		return types.ServerMessage{}, err
	}
	return types.ServerMessage{}, nil
}

// resume points a reconnecting player's room updates at this connection.
func (c *client) resume(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	r, err := c.deps.Rooms.ByPlayer(ctx, c.sess.playerID)
	if err != nil {
		return
	}
	if err := c.sess.attach(ctx, r); err != nil {
		c.log.Warn("resume room updates", zap.String("room_id", r.ID()), zap.Error(err))
		return
	}
	c.log.Info("resumed room", zap.String("room_id", r.ID()))
}

// rejoin takes back a seat the player left, e.g. after a dropped connection.
func (c *client) rejoin(ctx context.Context, m types.ClientMessage) (types.ServerMessage, error) {
	if m.RoomID == "" {
		return types.ServerMessage{}, engine.ErrRoomNotFound
	}
	r, err := c.deps.Rooms.Rejoin(ctx, m.RoomID, engine.Player{ID: c.sess.playerID, DisplayName: c.sess.name})
	if err != nil {
		return types.ServerMessage{}, err
	}
	// Rejoined goes out before the attach snapshot.
	c.sess.send(types.ServerMessage{Type: types.ServerRejoined, RoomID: r.ID()})
	if err := c.sess.attach(ctx, r); err != nil {
		return types.ServerMessage{}, err
	}
	return types.ServerMessage{}, nil
}

func (c *client) placeCard(ctx context.Context, m types.ClientMessage) (types.ServerMessage, error) {
	if m.Card == nil {
		return types.ServerMessage{}, engine.ErrMissingCard
	}
	r, err := c.deps.Rooms.ByPlayer(ctx, c.sess.playerID)
	if err != nil {
		return types.ServerMessage{}, err
	}
	res, err := r.PlaceCard(ctx, c.sess.playerID, *m.Card, m.Lane, m.Slot)
	if err != nil {
		return types.ServerMessage{}, err
	}
	return types.ServerMessage{
		Type:        types.ServerPlaceResult,
		RoomID:      r.ID(),
		Card:        &res.Card,
		Lane:        &res.Lane,
		Battlefield: &res.Battlefield,
	}, nil
}

func (c *client) endTurn(ctx context.Context) (types.ServerMessage, error) {
	r, err := c.deps.Rooms.ByPlayer(ctx, c.sess.playerID)
	if err != nil {
		return types.ServerMessage{}, err
	}
	res, err := r.EndTurn(ctx, c.sess.playerID)
	if err != nil {
		return types.ServerMessage{}, err
	}
	return types.ServerMessage{
		Type:        types.ServerEndTurnResult,
		RoomID:      r.ID(),
		Advanced:    res.Advanced,
		TurnCount:   res.TurnCount,
		Shared:      &res.Shared,
		Battlefield: &res.Battlefield,
		Battle:      res.Battle,
	}, nil
}

func (c *client) status(ctx context.Context) (types.ServerMessage, error) {
	r, err := c.deps.Rooms.ByPlayer(ctx, c.sess.playerID)
	if errors.Is(err, engine.ErrNotInRoom) || errors.Is(err, engine.ErrRoomNotFound) {
		return types.ServerMessage{Type: types.ServerStatus, Exists: false}, nil
	}
	if err != nil {
		return types.ServerMessage{}, err
	}
	snap, err := r.Status(ctx, c.sess.playerID)
	if errors.Is(err, engine.ErrRoomNotFound) {
		return types.ServerMessage{Type: types.ServerStatus, Exists: false}, nil
	}
	if err != nil {
		return types.ServerMessage{}, err
	}
	return types.ServerMessage{Type: types.ServerStatus, RoomID: r.ID(), Exists: true, Snapshot: &snap}, nil
}

func (c *client) syncState(ctx context.Context, m types.ClientMessage) (types.ServerMessage, error) {
	r, err := c.deps.Rooms.ByPlayer(ctx, c.sess.playerID)
	if err != nil {
		return types.ServerMessage{}, err
	}
	var ps engine.PerPlayerState
	if m.PlayerState != nil {
		ps = *m.PlayerState
	}
	res, err := r.SyncState(ctx, c.sess.playerID, ps)
	if err != nil {
		return types.ServerMessage{}, err
	}
	return types.ServerMessage{
		Type:        types.ServerStateSynced,
		RoomID:      r.ID(),
		Shared:      &res.Shared,
		PlayerState: &res.PlayerState,
	}, nil
}

func (c *client) leave(ctx context.Context) (types.ServerMessage, error) {
	r, err := c.deps.Rooms.ByPlayer(ctx, c.sess.playerID)
	if err != nil {
		return types.ServerMessage{}, err
	}
	if err := r.Leave(ctx, c.sess.playerID); err != nil {
		return types.ServerMessage{}, err
	}
	return types.ServerMessage{Type: types.ServerLeft, RoomID: r.ID()}, nil
}

// disconnect treats a dropped connection as CancelQueue followed by Leave,
// unless a newer connection already owns the player.
func (c *client) disconnect() {
	if !c.deps.Sessions.release(c.sess) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if _, err := c.deps.Queue.Cancel(ctx, c.sess.playerID); err != nil {
		c.log.Debug("cancel queue on disconnect", zap.Error(err))
	}
	r, err := c.deps.Rooms.ByPlayer(ctx, c.sess.playerID)
	if err != nil {
		c.log.Info("client disconnected")
		return
	}
	if err := r.Leave(ctx, c.sess.playerID); err != nil && !errors.Is(err, engine.ErrRoomNotFound) {
		c.log.Warn("leave on disconnect", zap.String("room_id", r.ID()), zap.Error(err))
	}
	c.log.Info("client disconnected", zap.String("room_id", r.ID()))
}
