// Package perspective turns the seat-indexed battlefield into a viewer-relative
// one: the viewer's cards are always "near", the opponent's always "far".
package perspective

import "github.com/DoyleJ11/lane-duel-backend/internal/engine"

type Slot string

const (
	Near Slot = "near"
	Far  Slot = "far"
)

type LaneView struct {
	Lane int          `json:"lane"`
	Near *engine.Card `json:"near"`
	Far  *engine.Card `json:"far"`
}

type View struct {
	Viewer   engine.Seat               `json:"viewer"`
	Lanes    [engine.NumLanes]LaneView `json:"lanes"`
	NearBase engine.Base               `json:"near_base"`
	FarBase  engine.Base               `json:"far_base"`
}

// SlotFor reports where a seat's cards render for viewer.
func SlotFor(viewer, seat engine.Seat) Slot {
	if seat == viewer {
		return Near
	}
	return Far
}

// SeatFor is the inverse of SlotFor.
func SeatFor(viewer engine.Seat, slot Slot) engine.Seat {
	if slot == Near {
		return viewer
	}
	return opposite(viewer)
}

func opposite(s engine.Seat) engine.Seat {
	return engine.Seat((int(s) + 1) % engine.NumSeats)
}

// Project copies bf into viewer-relative form. The input is not shared with
// the returned view.
func Project(bf engine.Battlefield, viewer engine.Seat) View {
	bf = bf.Clone()
	near, far := SeatFor(viewer, Near), SeatFor(viewer, Far)

	v := View{
		Viewer:   viewer,
		NearBase: bf.Bases[near],
		FarBase:  bf.Bases[far],
	}
	for i, lane := range bf.Lanes {
		v.Lanes[i] = LaneView{
			Lane: i,
			Near: lane.Slots[near],
			Far:  lane.Slots[far],
		}
	}
	return v
}

// Unproject rebuilds the canonical battlefield from a viewer's view.
func Unproject(v View) engine.Battlefield {
	var bf engine.Battlefield
	near, far := SeatFor(v.Viewer, Near), SeatFor(v.Viewer, Far)
	bf.Bases[near] = v.NearBase
	bf.Bases[far] = v.FarBase
	for i, lane := range v.Lanes {
		bf.Lanes[i].Slots[near] = lane.Near
		bf.Lanes[i].Slots[far] = lane.Far
	}
	return bf.Clone()
}
