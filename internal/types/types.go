package types

import (
	"github.com/DoyleJ11/lane-duel-backend/internal/engine"
	"github.com/DoyleJ11/lane-duel-backend/internal/perspective"
	"github.com/DoyleJ11/lane-duel-backend/internal/room"
)

// Client -> server message types.
const (
	ClientEnqueue     = "Enqueue"
	ClientCancelQueue = "CancelQueue"
	ClientPlaceCard   = "PlaceCard"
	ClientEndTurn     = "EndTurn"
	ClientStatus      = "Status"
	ClientSyncState   = "SyncState"
	ClientLeave       = "Leave"
	ClientRejoin      = "Rejoin"
)

// Server -> client message types.
const (
	ServerWaiting        = "Waiting"
	ServerMatched        = "Matched"
	ServerQueueExpired   = "QueueExpired"
	ServerQueueCancelled = "QueueCancelled"
	ServerStateSnapshot  = "StateSnapshot"
	ServerPlaceResult    = "PlaceResult"
	ServerEndTurnResult  = "EndTurnResult"
	ServerStatus         = "Status"
	ServerStateSynced    = "StateSynced"
	ServerLeft           = "Left"
	ServerRejoined       = "Rejoined"
	ServerError          = "Error"
)

type ClientMessage struct {
	Type        string                 `json:"type"`
	Name        string                 `json:"name,omitempty"`
	RoomID      string                 `json:"room_id,omitempty"`
	Card        *engine.Card           `json:"card,omitempty"`
	Lane        int                    `json:"lane,omitempty"`
	Slot        perspective.Slot       `json:"slot,omitempty"`
	PlayerState *engine.PerPlayerState `json:"player_state,omitempty"`
}

type ServerMessage struct {
	Type         string                  `json:"type"`
	Version      int                     `json:"version,omitempty"`
	RoomID       string                  `json:"room_id,omitempty"`
	OpponentID   string                  `json:"opponent_id,omitempty"`
	OpponentName string                  `json:"opponent_name,omitempty"`
	IsHost       bool                    `json:"is_host,omitempty"`
	Exists       bool                    `json:"exists,omitempty"`
	Snapshot     *room.Snapshot          `json:"snapshot,omitempty"`
	Advanced     bool                    `json:"advanced,omitempty"`
	TurnCount    int                     `json:"turn_count,omitempty"`
	Shared       *engine.SharedGameState `json:"shared,omitempty"`
	Battlefield  *perspective.View       `json:"battlefield,omitempty"`
	Battle       *engine.BattleReport    `json:"battle,omitempty"`
	Card         *engine.Card            `json:"card,omitempty"`
	Lane         *int                    `json:"lane,omitempty"`
	PlayerState  *engine.PerPlayerState  `json:"player_state,omitempty"`
	Removed      bool                    `json:"removed,omitempty"`
	Code         string                  `json:"code,omitempty"`
	Error        string                  `json:"error,omitempty"`
}
