package ws

import (
	"context"
	"errors"

	"github.com/DoyleJ11/lane-duel-backend/internal/engine"
	"github.com/DoyleJ11/lane-duel-backend/internal/hub"
	"github.com/DoyleJ11/lane-duel-backend/internal/matchqueue"
	"github.com/DoyleJ11/lane-duel-backend/internal/types"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{engine.ErrRoomNotFound, "room_not_found"},
	{engine.ErrNotInRoom, "not_in_room"},
	{engine.ErrNotCurrentTurn, "not_current_turn"},
	{engine.ErrInvalidLane, "invalid_lane"},
	{engine.ErrGameNotStarted, "game_not_started"},
	{engine.ErrForeignSlot, "foreign_slot"},
	{engine.ErrMissingCard, "missing_card"},
	{engine.ErrRoomFull, "room_full"},
	{hub.ErrInOtherRoom, "in_other_room"},
	{matchqueue.ErrClosed, "unavailable"},
	{hub.ErrClosed, "unavailable"},
	{context.DeadlineExceeded, "timeout"},
}

// errorCode maps an error kind to the stable code clients switch on.
func errorCode(err error) string {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return "internal"
}

func errorMessage(code string, err error) types.ServerMessage {
	return types.ServerMessage{Type: types.ServerError, Code: code, Error: err.Error()}
}
