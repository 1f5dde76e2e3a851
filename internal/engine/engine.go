package engine

import (
	"errors"
	"slices"
	"time"
)

var ErrRoomNotFound = errors.New("room not found")
var ErrNotInRoom = errors.New("player not in room")
var ErrNotCurrentTurn = errors.New("not current turn")
var ErrInvalidLane = errors.New("invalid lane")
var ErrForeignSlot = errors.New("slot belongs to another seat")
var ErrGameNotStarted = errors.New("game not started")
var ErrRoomFull = errors.New("room full")
var ErrMissingCard = errors.New("missing card")
var ErrUnsupportedCommand = errors.New("unsupported command")

type CommandType string

const (
	CmdStartTurn       CommandType = "StartTurn"
	CmdPlaceCard       CommandType = "PlaceCard"
	CmdEndTurn         CommandType = "EndTurn"
	CmdForceEndTurn    CommandType = "ForceEndTurn"
	CmdSyncPlayerState CommandType = "SyncPlayerState"
	CmdJoin            CommandType = "Join"
	CmdLeave           CommandType = "Leave"
)

/*
	CmdStartTurn       -> EvtTurnStarted
	CmdPlaceCard       -> EvtCardPlaced
	CmdEndTurn         -> EvtTurnAlreadyEnded | EvtEndTurnSignalled | advance
	CmdForceEndTurn    -> advance
	CmdLeave           -> EvtPlayerLeft -> EvtTimerCancelled -> (EvtHostChanged) -> (advance | EvtRoomEmptied)

	advance = EvtTimerCancelled -> (EvtBattleResolved) -> (EvtBaseDepleted) -> EvtTurnAdvanced -> EvtTurnStarted
*/

type Command struct {
	Type        CommandType
	PlayerID    string
	Player      *Player
	Card        *Card
	Lane        int
	Target      *Seat // seat the placement lands on; nil means the actor's own
	PlayerState *PerPlayerState
	Now         time.Time
}

type EventType string

const (
	EvtTurnStarted       EventType = "TurnStarted"
	EvtTimerCancelled    EventType = "TimerCancelled"
	EvtCardPlaced        EventType = "CardPlaced"
	EvtEndTurnSignalled  EventType = "EndTurnSignalled"
	EvtTurnAlreadyEnded  EventType = "TurnAlreadyEnded"
	EvtBattleResolved    EventType = "BattleResolved"
	EvtBaseDepleted      EventType = "BaseDepleted"
	EvtTurnAdvanced      EventType = "TurnAdvanced"
	EvtPlayerStateSynced EventType = "PlayerStateSynced"
	EvtPlayerJoined      EventType = "PlayerJoined"
	EvtPlayerLeft        EventType = "PlayerLeft"
	EvtHostChanged       EventType = "HostChanged"
	EvtRoomEmptied       EventType = "RoomEmptied"
)

type Event struct {
	Type      EventType
	Seat      Seat
	PlayerID  string
	Lane      int
	TurnCount int
	Card      *Card
	Battle    *BattleReport
}

func Apply(s State, cmd Command) ([]Event, State, error) {
	switch cmd.Type {
	case CmdStartTurn:
		seat := s.SeatOf(cmd.PlayerID)
		if seat == SeatNone {
			return nil, s, ErrNotInRoom
		}
		newState := s.Clone()
		startTurn(&newState, seat, cmd.Now)
		return []Event{turnStarted(newState, seat)}, newState, nil

	case CmdPlaceCard:
		return placeCard(s, cmd)

	case CmdEndTurn:
		return endTurn(s, cmd, false)

	case CmdForceEndTurn:
		return endTurn(s, cmd, true)

	case CmdSyncPlayerState:
		seat := s.SeatOf(cmd.PlayerID)
		if seat == SeatNone {
			return nil, s, ErrNotInRoom
		}
		if cmd.PlayerState == nil {
			return nil, s, nil
		}
		newState := s.Clone()
		mergePlayerState(&newState.PlayerState[seat], *cmd.PlayerState)
		newState.LastUpdated = cmd.Now
		return []Event{{Type: EvtPlayerStateSynced, Seat: seat, PlayerID: cmd.PlayerID}}, newState, nil

	case CmdJoin:
		return join(s, cmd)

	case CmdLeave:
		return leave(s, cmd)

	default:
		return nil, s, ErrUnsupportedCommand
	}
}

func startTurn(s *State, seat Seat, now time.Time) {
	s.Shared.TurnCount = NormalizeTurnCount(s.Shared.TurnCount)
	s.Shared.CurrentPlayerID = s.Seats[seat].ID
	s.Shared.TurnStartedAt = now
	s.Shared.TurnTimeLimitMs = s.Rules.TurnTimeLimit.Milliseconds()
	s.Shared.IsGameActive = true
	s.Ended = [NumSeats]bool{}
	s.LastUpdated = now
}

func turnStarted(s State, seat Seat) Event {
	return Event{Type: EvtTurnStarted, Seat: seat, PlayerID: s.Seats[seat].ID, TurnCount: s.Shared.TurnCount}
}

func placeCard(s State, cmd Command) ([]Event, State, error) {
	seat := s.SeatOf(cmd.PlayerID)
	if seat == SeatNone {
		return nil, s, ErrNotInRoom
	}
	if cmd.Target != nil && *cmd.Target != seat {
		return nil, s, ErrForeignSlot
	}
	if cmd.Card == nil {
		return nil, s, ErrMissingCard
	}

	lane := cmd.Lane
	if lane < 0 || lane >= NumLanes {
		if s.Rules.LanePolicy != LaneClamp {
			return nil, s, ErrInvalidLane
		}
		lane = 0
	}

	card := cmd.Card.clone()
	card.OwnerSeat = seat
	card.LastDamageTurn = NormalizeTurnCount(s.Shared.TurnCount)
	if card.ID == "" {
		card.ID = newCardID()
	}
	if card.Type == "" {
		card.Type = DefaultCardType
	}
	card.Attack = finite(card.Attack)
	card.HP = clampHP(finite(card.HP))
	card.MaxHP = finite(card.MaxHP)
	if card.MaxHP <= 0 {
		card.MaxHP = card.HP
	}
	card.IsSkull = false
	card.Destroyed = false

	newState := s.Clone()
	// Last write wins: an occupied slot is overwritten.
	newState.Battlefield.Lanes[lane].Slots[seat] = card
	newState.PlayerState[seat].Hand = slices.DeleteFunc(newState.PlayerState[seat].Hand, func(c Card) bool {
		return c.ID == card.ID
	})
	newState.LastUpdated = cmd.Now

	return []Event{{Type: EvtCardPlaced, Seat: seat, PlayerID: cmd.PlayerID, Lane: lane, Card: card.clone()}}, newState, nil
}

func endTurn(s State, cmd Command, forced bool) ([]Event, State, error) {
	seat := s.SeatOf(cmd.PlayerID)
	if seat == SeatNone {
		return nil, s, ErrNotInRoom
	}
	current := s.CurrentSeat()
	if !s.Shared.IsGameActive || current == SeatNone {
		return nil, s, ErrGameNotStarted
	}

	newState := s.Clone()

	switch s.Rules.TurnPolicy {
	case TurnAllMustEnd:
		if forced {
			for i, p := range newState.Seats {
				newState.Ended[i] = p != nil
			}
			break
		}
		if s.Ended[seat] {
			return []Event{{Type: EvtTurnAlreadyEnded, Seat: seat, PlayerID: cmd.PlayerID, TurnCount: s.Shared.TurnCount}}, s, nil
		}
		newState.Ended[seat] = true
		if !allPresentEnded(newState) {
			newState.LastUpdated = cmd.Now
			return []Event{{Type: EvtEndTurnSignalled, Seat: seat, PlayerID: cmd.PlayerID, TurnCount: s.Shared.TurnCount}}, newState, nil
		}

	default:
		if forced {
			// The timer always targets the current seat.
			seat = current
			break
		}
		if seat != current {
			if s.LastAdvance.Seat == seat && s.LastAdvance.Turn == s.Shared.TurnCount {
				return []Event{{Type: EvtTurnAlreadyEnded, Seat: seat, PlayerID: cmd.PlayerID, TurnCount: s.Shared.TurnCount}}, s, nil
			}
			return nil, s, ErrNotCurrentTurn
		}
		newState.Ended[seat] = true
	}

	events := advance(&newState, current, seat, cmd.Now)
	return events, newState, nil
}

// advance resolves the battlefield and hands the turn to the seat after expiring.
func advance(s *State, expiring, by Seat, now time.Time) []Event {
	resolving := NormalizeTurnCount(s.Shared.TurnCount)
	events := []Event{{Type: EvtTimerCancelled, Seat: expiring}}

	report := ResolveBattle(&s.Battlefield, s.Rules, resolving)
	if !report.Empty() {
		events = append(events, Event{Type: EvtBattleResolved, TurnCount: resolving, Battle: &report})
	}
	for _, b := range report.Bases {
		if b.Depleted {
			events = append(events, Event{Type: EvtBaseDepleted, Seat: b.Seat, TurnCount: resolving})
		}
	}

	next := nextSeat(*s, expiring)
	s.Shared.TurnCount = resolving + 1
	s.LastAdvance = Advance{Seat: by, Turn: s.Shared.TurnCount}
	startTurn(s, next, now)

	return append(events,
		Event{Type: EvtTurnAdvanced, Seat: next, PlayerID: s.Seats[next].ID, TurnCount: s.Shared.TurnCount},
		turnStarted(*s, next),
	)
}

func join(s State, cmd Command) ([]Event, State, error) {
	if cmd.Player == nil || cmd.Player.ID == "" {
		return nil, s, ErrNotInRoom
	}
	if seat := s.SeatOf(cmd.Player.ID); seat != SeatNone {
		return nil, s, nil
	}

	newState := s.Clone()
	for i, p := range newState.Seats {
		if p != nil {
			continue
		}
		player := *cmd.Player
		player.IsHost = newState.Host() == nil
		newState.Seats[i] = &player
		newState.LastUpdated = cmd.Now
		return []Event{{Type: EvtPlayerJoined, Seat: Seat(i), PlayerID: player.ID}}, newState, nil
	}
	return nil, s, ErrRoomFull
}

func leave(s State, cmd Command) ([]Event, State, error) {
	seat := s.SeatOf(cmd.PlayerID)
	if seat == SeatNone {
		return nil, s, ErrNotInRoom
	}

	newState := s.Clone()
	wasHost := newState.Seats[seat].IsHost
	wasCurrent := newState.CurrentSeat() == seat
	newState.Seats[seat] = nil
	newState.Ended[seat] = false
	newState.PlayerState[seat] = PerPlayerState{}
	newState.LastUpdated = cmd.Now

	events := []Event{
		{Type: EvtPlayerLeft, Seat: seat, PlayerID: cmd.PlayerID},
		{Type: EvtTimerCancelled, Seat: seat},
	}

	if newState.Present() == 0 {
		newState.Shared.IsGameActive = false
		newState.Shared.CurrentPlayerID = ""
		return append(events, Event{Type: EvtRoomEmptied}), newState, nil
	}

	if wasHost {
		h := firstPresent(newState)
		newState.Seats[h].IsHost = true
		events = append(events, Event{Type: EvtHostChanged, Seat: h, PlayerID: newState.Seats[h].ID})
	}

	if !newState.Shared.IsGameActive {
		return events, newState, nil
	}

	switch newState.Rules.TurnPolicy {
	case TurnAllMustEnd:
		if allPresentEnded(newState) {
			events = append(events, advance(&newState, seat, seat, cmd.Now)...)
		} else if wasCurrent {
			next := nextSeat(newState, seat)
			startTurn(&newState, next, cmd.Now)
			events = append(events, turnStarted(newState, next))
		}
	default:
		if wasCurrent {
			events = append(events, advance(&newState, seat, seat, cmd.Now)...)
		}
	}
	return events, newState, nil
}

// mergePlayerState copies client-owned fields. A nil hand keeps the current one.
func mergePlayerState(dst *PerPlayerState, src PerPlayerState) {
	if src.Hand != nil {
		hand := make([]Card, len(src.Hand))
		for i := range src.Hand {
			hand[i] = *src.Hand[i].clone()
		}
		dst.Hand = hand
	}
	dst.Coins = src.Coins
	dst.Energy = src.Energy
	dst.SelectedCardID = src.SelectedCardID
	dst.SelectedLane = src.SelectedLane
	if src.Extra != nil {
		dst.Extra = slices.Clone(src.Extra)
	}
}
