package engine

import (
	"math"
	"slices"
)

const (
	strongMultiplier = 1.5
	weakMultiplier   = 0.7
)

type LaneResult struct {
	Lane      int               `json:"lane"`
	Before    [NumSeats]float64 `json:"before"`
	After     [NumSeats]float64 `json:"after"`
	Damage    [NumSeats]float64 `json:"damage"` // received by each seat's card
	Destroyed [NumSeats]bool    `json:"destroyed"`
}

type BaseResult struct {
	Seat     Seat    `json:"seat"`
	Before   float64 `json:"before"`
	After    float64 `json:"after"`
	Damage   float64 `json:"damage"`
	Depleted bool    `json:"depleted"`
}

type BattleReport struct {
	Turn  int          `json:"turn"`
	Lanes []LaneResult `json:"lanes,omitempty"`
	Bases []BaseResult `json:"bases,omitempty"`
}

func (r BattleReport) Empty() bool { return len(r.Lanes) == 0 && len(r.Bases) == 0 }

// AffinityMultiplier scales an attacker's damage against a defender category.
func AffinityMultiplier(attacker *Affinities, defenderCategory string) float64 {
	m := 1.0
	if attacker == nil || defenderCategory == "" {
		return m
	}
	if slices.Contains(attacker.StrongAgainst, defenderCategory) {
		m *= strongMultiplier
	}
	if slices.Contains(attacker.WeakAgainst, defenderCategory) {
		m *= weakMultiplier
	}
	return m
}

// ResolveBattle fights every lane where both seats hold a live card. Damage is
// computed from the pre-damage snapshot of the lane so both sides hit at once.
// Only bf is mutated.
func ResolveBattle(bf *Battlefield, rules Rules, turn int) BattleReport {
	report := BattleReport{Turn: turn}
	var baseDamage [NumSeats]float64

	for i := range bf.Lanes {
		lane := &bf.Lanes[i]
		a, b := lane.Slots[Seat0], lane.Slots[Seat1]

		switch {
		case a.alive() && b.alive():
			report.Lanes = append(report.Lanes, clash(lane, i, rules.SlotPolicy, turn))
		case rules.BaseStrike && a.alive() && !b.alive():
			baseDamage[Seat1] += strikeDamage(a)
		case rules.BaseStrike && b.alive() && !a.alive():
			baseDamage[Seat0] += strikeDamage(b)
		}
	}

	for s := range bf.Bases {
		if baseDamage[s] <= 0 {
			continue
		}
		base := &bf.Bases[s]
		before := clampHP(finite(base.HP))
		after := clampHP(before - baseDamage[s])
		base.HP = after
		report.Bases = append(report.Bases, BaseResult{
			Seat:     Seat(s),
			Before:   before,
			After:    after,
			Damage:   baseDamage[s],
			Depleted: after == 0,
		})
	}
	return report
}

func clash(lane *Lane, index int, policy SlotPolicy, turn int) LaneResult {
	cards := lane.Slots
	res := LaneResult{Lane: index}

	var atk [NumSeats]float64
	for s, c := range cards {
		atk[s] = finite(c.Attack)
		res.Before[s] = clampHP(finite(c.HP))
	}

	for s := range cards {
		o := NumSeats - 1 - s
		dmg := math.Floor(atk[o] * AffinityMultiplier(cards[o].Affinities, cards[s].Category))
		if dmg < 0 {
			dmg = 0
		}
		res.Damage[s] = dmg
		res.After[s] = clampHP(res.Before[s] - dmg)
	}

	for s, c := range cards {
		c.HP = res.After[s]
		if res.Damage[s] > 0 {
			c.LastDamageTurn = turn
		}
		if c.HP <= 0 {
			res.Destroyed[s] = true
			lane.Slots[s] = bury(c, policy, turn)
		}
	}
	return res
}

func strikeDamage(c *Card) float64 {
	d := math.Floor(finite(c.Attack))
	if d < 0 {
		return 0
	}
	return d
}

// bury replaces a destroyed card according to the room's slot policy.
func bury(c *Card, policy SlotPolicy, turn int) *Card {
	if policy != SlotSkull {
		return nil
	}
	return &Card{
		ID:             c.ID,
		Type:           SkullCardType,
		Name:           c.Name,
		OwnerSeat:      c.OwnerSeat,
		MaxHP:          c.MaxHP,
		IsSkull:        true,
		Destroyed:      true,
		LastDamageTurn: turn,
	}
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func clampHP(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
