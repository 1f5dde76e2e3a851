package engine

import (
	"time"

	"github.com/google/uuid"
)

func DefaultRules() Rules {
	return Rules{
		TurnPolicy:    TurnSequential,
		SlotPolicy:    SlotNull,
		LanePolicy:    LaneReject,
		TurnTimeLimit: DefaultTurnTimeLimit,
		BaseHP:        DefaultBaseHP,
	}
}

// NewState seats two players with seat0 as host. The current player stays
// unset until someone starts seat0's turn.
func NewState(roomID string, seat0, seat1 Player, rules Rules, now time.Time) State {
	if rules.BaseHP <= 0 {
		rules.BaseHP = DefaultBaseHP
	}
	seat0.IsHost = true
	seat1.IsHost = false

	s := State{
		RoomID:      roomID,
		Seats:       [NumSeats]*Player{&seat0, &seat1},
		Battlefield: NewBattlefield(rules.BaseHP),
		Rules:       rules,
		Shared: SharedGameState{
			TurnCount:       1,
			TurnTimeLimitMs: rules.TurnTimeLimit.Milliseconds(),
		},
		LastAdvance: Advance{Seat: SeatNone},
		CreatedAt:   now,
		LastUpdated: now,
	}
	for i := range s.PlayerState {
		s.PlayerState[i] = PerPlayerState{Hand: []Card{}}
	}
	return s
}

// NormalizeTurnCount repairs a corrupt or missing turn counter.
func NormalizeTurnCount(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func ContainsEvent(events []Event, eventType EventType) bool {
	_, ok := FindEvent(events, eventType)
	return ok
}

func FindEvent(events []Event, eventType EventType) (Event, bool) {
	for _, event := range events {
		if event.Type == eventType {
			return event, true
		}
	}
	return Event{}, false
}

var newCardID = func() string {
	return uuid.NewString()
}
