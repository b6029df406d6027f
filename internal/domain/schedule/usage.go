package schedule

import "github.com/google/uuid"

// Occupancy is one live booking reduced to what capacity checks need.
// DentistID is nil until a dentist has been assigned.
type Occupancy struct {
	BookingID uuid.UUID
	DentistID *uuid.UUID
	Slot      Window
}

// Usage is the per-block occupancy for one date. It is rebuilt from the
// booking set for every decision and passed around by value.
type Usage struct {
	PerDentist map[uuid.UUID]map[Clock]struct{}
	Global     map[Clock]int
}

// BuildUsage expands every occupancy into the blocks it spans. Unassigned
// bookings count toward global capacity only.
func BuildUsage(occupancies []Occupancy) *Usage {
	u := &Usage{
		PerDentist: make(map[uuid.UUID]map[Clock]struct{}),
		Global:     make(map[Clock]int),
	}
	for _, o := range occupancies {
		for b := o.Slot.Start; b < o.Slot.End; b = b.Add(1) {
			u.Global[b]++
			if o.DentistID == nil {
				continue
			}
			blocks, ok := u.PerDentist[*o.DentistID]
			if !ok {
				blocks = make(map[Clock]struct{})
				u.PerDentist[*o.DentistID] = blocks
			}
			blocks[b] = struct{}{}
		}
	}
	return u
}

// Without drops one booking from the set, so a reassignment is not checked
// against its own blocks.
func Without(occupancies []Occupancy, bookingID uuid.UUID) []Occupancy {
	out := make([]Occupancy, 0, len(occupancies))
	for _, o := range occupancies {
		if o.BookingID != bookingID {
			out = append(out, o)
		}
	}
	return out
}

func (u *Usage) Count(b Clock) int {
	return u.Global[b]
}

func (u *Usage) DentistBusy(id uuid.UUID, b Clock) bool {
	_, busy := u.PerDentist[id][b]
	return busy
}

// DentistFree reports whether the dentist has nothing booked in any block of run.
func (u *Usage) DentistFree(id uuid.UUID, run []Clock) bool {
	for _, b := range run {
		if u.DentistBusy(id, b) {
			return false
		}
	}
	return true
}

// CapacityHolds reports whether one more booking fits in every block of run.
func (u *Usage) CapacityHolds(run []Clock, capacity int) bool {
	for _, b := range run {
		if u.Global[b] >= capacity {
			return false
		}
	}
	return true
}
