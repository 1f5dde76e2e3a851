package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/DoyleJ11/lane-duel-backend/internal/engine"
	"github.com/DoyleJ11/lane-duel-backend/internal/room"
	"github.com/DoyleJ11/lane-duel-backend/internal/store"
)

type Rooms interface {
	Get(ctx context.Context, roomID string) (*room.Room, error)
	Delete(ctx context.Context, roomID string) error
}

type Turns interface {
	Turns(ctx context.Context, roomID string) ([]store.TurnRecord, error)
}

type turnResponse struct {
	TurnCount int             `json:"turn_count"`
	Seat      int             `json:"seat"`
	PlayerID  string          `json:"player_id"`
	Forced    bool            `json:"forced"`
	Battle    json.RawMessage `json:"battle"`
	At        time.Time       `json:"at"`
}

type turnsResponse struct {
	RoomID string         `json:"room_id"`
	Turns  []turnResponse `json:"turns"`
}

type statusResponse struct {
	Exists          bool                    `json:"exists"`
	RoomID          string                  `json:"room_id,omitempty"`
	Shared          *engine.SharedGameState `json:"shared,omitempty"`
	Snapshot        *room.Snapshot          `json:"snapshot,omitempty"`
	CurrentPlayerID string                  `json:"current_player_id,omitempty"`
	TurnRemainingMs int64                   `json:"turn_remaining_ms"`
}

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// RoomStatus answers whether a room exists and, for a seated player, how it
// looks from their side.
func RoomStatus(rooms Rooms) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomID")
		player := r.URL.Query().Get("player")
		if player == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Code: "bad_request", Error: "missing player"})
			return
		}

		rm, err := rooms.Get(r.Context(), roomID)
		if errors.Is(err, engine.ErrRoomNotFound) {
			writeJSON(w, http.StatusNotFound, statusResponse{Exists: false})
			return
		}
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Code: "unavailable", Error: err.Error()})
			return
		}

		snap, err := rm.Status(r.Context(), player)
		switch {
		case errors.Is(err, engine.ErrRoomNotFound):
			writeJSON(w, http.StatusNotFound, statusResponse{Exists: false})
		case errors.Is(err, engine.ErrNotInRoom):
			writeJSON(w, http.StatusForbidden, errorResponse{Code: "not_in_room", Error: err.Error()})
		case err != nil:
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Code: "unavailable", Error: err.Error()})
		default:
			writeJSON(w, http.StatusOK, statusResponse{
				Exists:          true,
				RoomID:          rm.ID(),
				Shared:          &snap.Shared,
				Snapshot:        &snap,
				CurrentPlayerID: snap.CurrentPlayerID,
				TurnRemainingMs: snap.TurnRemainingMs,
			})
		}
	}
}

// DeleteRoom is the operator escape hatch for a room stuck in a bad state.
func DeleteRoom(rooms Rooms) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := rooms.Delete(r.Context(), chi.URLParam(r, "roomID"))
		switch {
		case errors.Is(err, engine.ErrRoomNotFound):
			writeJSON(w, http.StatusNotFound, errorResponse{Code: "room_not_found", Error: err.Error()})
		case err != nil:
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Code: "unavailable", Error: err.Error()})
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}
}

// RoomTurns replays a room's journal. Finished rooms stay readable.
func RoomTurns(turns Turns) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomID")
		recs, err := turns.Turns(r.Context(), roomID)
		switch {
		case errors.Is(err, store.ErrJournalDisabled):
			writeJSON(w, http.StatusNotImplemented, errorResponse{Code: "journal_disabled", Error: err.Error()})
			return
		case err != nil:
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Code: "unavailable", Error: err.Error()})
			return
		}

		resp := turnsResponse{RoomID: roomID, Turns: make([]turnResponse, 0, len(recs))}
		for _, rec := range recs {
			battle := json.RawMessage(rec.Battle)
			if len(battle) == 0 {
				battle = json.RawMessage("null")
			}
			resp.Turns = append(resp.Turns, turnResponse{
				TurnCount: rec.TurnCount,
				Seat:      rec.Seat,
				PlayerID:  rec.PlayerID,
				Forced:    rec.Forced,
				Battle:    battle,
				At:        rec.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
