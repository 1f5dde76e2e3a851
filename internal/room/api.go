package room

import (
	"context"

	"github.com/DoyleJ11/lane-duel-backend/internal/engine"
	"github.com/DoyleJ11/lane-duel-backend/internal/perspective"
)

// send delivers m unless the room or the caller gives up first.
func (r *Room) send(ctx context.Context, m Msg) error {
	select {
	case r.inbox <- m:
		return nil
	case <-r.ctx.Done():
		return engine.ErrRoomNotFound
	case <-ctx.Done():
		return ctx.Err()
	}
}

func request[T any](ctx context.Context, r *Room, build func(reply chan T) Msg) (T, error) {
	var zero T
	reply := make(chan T, 1)
	if err := r.send(ctx, build(reply)); err != nil {
		return zero, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-r.ctx.Done():
		// The final step of a room replies before the actor exits.
		select {
		case v := <-reply:
			return v, nil
		default:
			return zero, engine.ErrRoomNotFound
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// requestErr is request for messages that reply with a bare error.
func requestErr(ctx context.Context, r *Room, build func(reply chan error) Msg) error {
	err, sendErr := request(ctx, r, build)
	if sendErr != nil {
		return sendErr
	}
	return err
}

func (r *Room) Attach(ctx context.Context, playerID string, outbox chan Snapshot) error {
	return requestErr(ctx, r, func(reply chan error) Msg {
		return Attach{PlayerID: playerID, Outbox: outbox, Reply: reply}
	})
}

func (r *Room) Join(ctx context.Context, p engine.Player) error {
	return requestErr(ctx, r, func(reply chan error) Msg {
		return Join{Player: p, Reply: reply}
	})
}

func (r *Room) StartTurn(ctx context.Context, playerID string) error {
	return requestErr(ctx, r, func(reply chan error) Msg {
		return StartTurn{PlayerID: playerID, Reply: reply}
	})
}

// PlaceCard puts card in lane on the caller's side. slot is viewer-relative and
// defaults to near.
func (r *Room) PlaceCard(ctx context.Context, playerID string, card engine.Card, lane int, slot perspective.Slot) (PlaceResult, error) {
	res, err := request(ctx, r, func(reply chan PlaceResult) Msg {
		return PlaceCard{PlayerID: playerID, Card: card, Lane: lane, Slot: slot, Reply: reply}
	})
	if err != nil {
		return PlaceResult{}, err
	}
	return res, res.Err
}

func (r *Room) EndTurn(ctx context.Context, playerID string) (EndTurnResult, error) {
	res, err := request(ctx, r, func(reply chan EndTurnResult) Msg {
		return EndTurn{PlayerID: playerID, Reply: reply}
	})
	if err != nil {
		return EndTurnResult{}, err
	}
	return res, res.Err
}

func (r *Room) SyncState(ctx context.Context, playerID string, ps engine.PerPlayerState) (SyncResult, error) {
	res, err := request(ctx, r, func(reply chan SyncResult) Msg {
		return SyncState{PlayerID: playerID, State: ps, Reply: reply}
	})
	if err != nil {
		return SyncResult{}, err
	}
	return res, res.Err
}

func (r *Room) Status(ctx context.Context, playerID string) (Snapshot, error) {
	res, err := request(ctx, r, func(reply chan StatusResult) Msg {
		return Status{PlayerID: playerID, Reply: reply}
	})
	if err != nil {
		return Snapshot{}, err
	}
	return res.Snapshot, res.Err
}

func (r *Room) Leave(ctx context.Context, playerID string) error {
	return requestErr(ctx, r, func(reply chan error) Msg {
		return Leave{PlayerID: playerID, Reply: reply}
	})
}

func (r *Room) State(ctx context.Context) (View, error) {
	return request(ctx, r, func(reply chan View) Msg {
		return GetState{Reply: reply}
	})
}
