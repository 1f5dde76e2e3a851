package engine

// nextSeat walks the seats after from and returns the first occupied one.
// A lone remaining player keeps the turn.
func nextSeat(s State, from Seat) Seat {
	for k := 1; k <= NumSeats; k++ {
		c := Seat((int(from) + k) % NumSeats)
		if s.Seats[c] != nil {
			return c
		}
	}
	return SeatNone
}

func allPresentEnded(s State) bool {
	for i, p := range s.Seats {
		if p != nil && !s.Ended[i] {
			return false
		}
	}
	return true
}

func firstPresent(s State) Seat {
	for i, p := range s.Seats {
		if p != nil {
			return Seat(i)
		}
	}
	return SeatNone
}
