package engine

import (
	"encoding/json"
	"slices"
	"time"
)

const (
	NumSeats = 2
	NumLanes = 5

	// DefaultBaseHP is high enough that base depletion is not expected in normal play.
	DefaultBaseHP = 1_000_000_000

	DefaultTurnTimeLimit = 30 * time.Second
	DefaultCardType      = "unit"
	SkullCardType        = "skull"
)

type Seat int

const (
	SeatNone Seat = -1
	Seat0    Seat = 0
	Seat1    Seat = 1
)

func (s Seat) Valid() bool { return s >= 0 && s < NumSeats }

type TurnPolicy string

const (
	TurnSequential TurnPolicy = "sequential"
	TurnAllMustEnd TurnPolicy = "all_must_end"
)

type SlotPolicy string

const (
	SlotNull  SlotPolicy = "null"
	SlotSkull SlotPolicy = "skull"
)

type LanePolicy string

const (
	LaneReject LanePolicy = "reject"
	LaneClamp  LanePolicy = "clamp"
)

// Rules are fixed when a room is created.
type Rules struct {
	TurnPolicy    TurnPolicy    `json:"turn_policy"`
	SlotPolicy    SlotPolicy    `json:"slot_policy"`
	LanePolicy    LanePolicy    `json:"lane_policy"`
	TurnTimeLimit time.Duration `json:"turn_time_limit"`
	BaseHP        float64       `json:"base_hp"`
	BaseStrike    bool          `json:"base_strike"`
}

type Player struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	IsHost      bool   `json:"is_host"`
}

type Affinities struct {
	StrongAgainst []string `json:"strong_against,omitempty"`
	WeakAgainst   []string `json:"weak_against,omitempty"`
}

type Card struct {
	ID             string      `json:"id"`
	Type           string      `json:"type"`
	Name           string      `json:"name,omitempty"`
	OwnerSeat      Seat        `json:"owner_seat"`
	Attack         float64     `json:"attack"`
	HP             float64     `json:"hp"`
	MaxHP          float64     `json:"max_hp"`
	Category       string      `json:"category,omitempty"`
	Affinities     *Affinities `json:"affinities,omitempty"`
	IsSkull        bool        `json:"is_skull"`
	Destroyed      bool        `json:"destroyed"`
	LastDamageTurn int         `json:"last_damage_turn"`
}

func (c *Card) alive() bool {
	return c != nil && !c.Destroyed && !c.IsSkull
}

func (c *Card) clone() *Card {
	if c == nil {
		return nil
	}
	cp := *c
	if c.Affinities != nil {
		cp.Affinities = &Affinities{
			StrongAgainst: slices.Clone(c.Affinities.StrongAgainst),
			WeakAgainst:   slices.Clone(c.Affinities.WeakAgainst),
		}
	}
	return &cp
}

// Lane holds at most one card per seat, indexed by seat.
type Lane struct {
	Slots [NumSeats]*Card `json:"slots"`
}

type Base struct {
	HP    float64 `json:"hp"`
	MaxHP float64 `json:"max_hp"`
}

type Battlefield struct {
	Lanes [NumLanes]Lane `json:"lanes"`
	Bases [NumSeats]Base `json:"bases"`
}

func NewBattlefield(baseHP float64) Battlefield {
	var bf Battlefield
	for i := range bf.Bases {
		bf.Bases[i] = Base{HP: baseHP, MaxHP: baseHP}
	}
	return bf
}

func (bf Battlefield) Clone() Battlefield {
	out := bf
	for i := range bf.Lanes {
		for s := range bf.Lanes[i].Slots {
			out.Lanes[i].Slots[s] = bf.Lanes[i].Slots[s].clone()
		}
	}
	return out
}

// SharedGameState is owned by the server. Clients never write it.
type SharedGameState struct {
	TurnCount       int             `json:"turn_count"`
	CurrentPlayerID string          `json:"current_player_id"`
	TurnStartedAt   time.Time       `json:"turn_started_at"`
	TurnTimeLimitMs int64           `json:"turn_time_limit_ms"`
	IsGameActive    bool            `json:"is_game_active"`
	Config          json.RawMessage `json:"config,omitempty"`
}

// PerPlayerState belongs to one seat and is merged from client updates.
type PerPlayerState struct {
	Hand           []Card          `json:"hand"`
	Coins          int             `json:"coins"`
	Energy         int             `json:"energy"`
	SelectedCardID string          `json:"selected_card_id,omitempty"`
	SelectedLane   int             `json:"selected_lane"`
	Extra          json.RawMessage `json:"extra,omitempty"`
}

func (p PerPlayerState) clone() PerPlayerState {
	out := p
	out.Hand = make([]Card, len(p.Hand))
	for i := range p.Hand {
		out.Hand[i] = *p.Hand[i].clone()
	}
	out.Extra = slices.Clone(p.Extra)
	return out
}

// Advance remembers which seat caused the last turn change.
type Advance struct {
	Seat Seat `json:"seat"`
	Turn int  `json:"turn"`
}

type State struct {
	RoomID      string                   `json:"room_id"`
	Seats       [NumSeats]*Player        `json:"seats"`
	Shared      SharedGameState          `json:"shared"`
	Battlefield Battlefield              `json:"battlefield"`
	PlayerState [NumSeats]PerPlayerState `json:"-"`
	Rules       Rules                    `json:"rules"`
	Ended       [NumSeats]bool           `json:"ended"`
	LastAdvance Advance                  `json:"last_advance"`
	CreatedAt   time.Time                `json:"created_at"`
	LastUpdated time.Time                `json:"last_updated"`
}

func (s State) Clone() State {
	out := s
	for i, p := range s.Seats {
		if p != nil {
			cp := *p
			out.Seats[i] = &cp
		}
	}
	out.Shared.Config = slices.Clone(s.Shared.Config)
	out.Battlefield = s.Battlefield.Clone()
	for i := range s.PlayerState {
		out.PlayerState[i] = s.PlayerState[i].clone()
	}
	return out
}

func (s State) SeatOf(playerID string) Seat {
	if playerID == "" {
		return SeatNone
	}
	for i, p := range s.Seats {
		if p != nil && p.ID == playerID {
			return Seat(i)
		}
	}
	return SeatNone
}

func (s State) CurrentSeat() Seat { return s.SeatOf(s.Shared.CurrentPlayerID) }

func (s State) Present() int {
	n := 0
	for _, p := range s.Seats {
		if p != nil {
			n++
		}
	}
	return n
}

func (s State) Host() *Player {
	for _, p := range s.Seats {
		if p != nil && p.IsHost {
			return p
		}
	}
	return nil
}
