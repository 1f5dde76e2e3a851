package perspective

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/lane-duel-backend/internal/engine"
)

var seats = []engine.Seat{engine.Seat0, engine.Seat1}

func sampleBattlefield() engine.Battlefield {
	bf := engine.NewBattlefield(500)
	bf.Bases[engine.Seat1].HP = 420
	bf.Lanes[0].Slots[engine.Seat0] = &engine.Card{ID: "a0", OwnerSeat: engine.Seat0, HP: 3}
	bf.Lanes[2].Slots[engine.Seat1] = &engine.Card{ID: "b2", OwnerSeat: engine.Seat1, HP: 7}
	bf.Lanes[4].Slots = [engine.NumSeats]*engine.Card{
		{ID: "a4", OwnerSeat: engine.Seat0},
		{ID: "b4", OwnerSeat: engine.Seat1},
	}
	return bf
}

func TestSlotSeatRoundTrip(t *testing.T) {
	for _, viewer := range seats {
		for _, seat := range seats {
			assert.Equal(t, seat, SeatFor(viewer, SlotFor(viewer, seat)), "viewer=%d seat=%d", viewer, seat)
		}
		for _, slot := range []Slot{Near, Far} {
			assert.Equal(t, slot, SlotFor(viewer, SeatFor(viewer, slot)))
		}
		assert.Equal(t, viewer, SeatFor(viewer, Near), "a near placement lands on the viewer's own seat")
	}
}

func TestProject_OwnCardsAreNear(t *testing.T) {
	bf := sampleBattlefield()

	for _, viewer := range seats {
		v := Project(bf, viewer)
		require.Len(t, v.Lanes, engine.NumLanes)
		for _, lane := range v.Lanes {
			if lane.Near != nil {
				assert.Equal(t, viewer, lane.Near.OwnerSeat)
			}
			if lane.Far != nil {
				assert.NotEqual(t, viewer, lane.Far.OwnerSeat)
			}
		}
	}

	v := Project(bf, engine.Seat1)
	assert.Equal(t, "b2", v.Lanes[2].Near.ID)
	assert.Nil(t, v.Lanes[2].Far)
	assert.Equal(t, 420.0, v.NearBase.HP)
	assert.Equal(t, 500.0, v.FarBase.HP)
}

func TestProject_UnprojectRoundTrip(t *testing.T) {
	bf := sampleBattlefield()
	for _, viewer := range seats {
		assert.Equal(t, bf, Unproject(Project(bf, viewer)))
	}
}

func TestProject_DoesNotAliasInput(t *testing.T) {
	bf := sampleBattlefield()
	v := Project(bf, engine.Seat0)

	v.Lanes[0].Near.HP = 999
	assert.Equal(t, 3.0, bf.Lanes[0].Slots[engine.Seat0].HP)
}
