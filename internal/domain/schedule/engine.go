package schedule

import "github.com/google/uuid"

type SlotQuery struct {
	Blocks             int
	HonorPreferred     bool
	PreferredDentistID *uuid.UUID
}

type SlotResult struct {
	Starts []Clock
	// HonoredPreferred is true only when the search was narrowed to the
	// preferred dentist, i.e. honoring was requested and they work that day.
	HonoredPreferred bool
}

// AvailableStarts computes the bookable start times for a service of q.Blocks
// blocks. Results are in grid order; the function is pure over its inputs.
func AvailableStarts(day *ClinicDay, usage *Usage, q SlotQuery) SlotResult {
	res := SlotResult{Starts: []Clock{}}
	if !day.IsOpen || q.Blocks <= 0 || len(day.Grid()) == 0 {
		return res
	}

	var preferred *Dentist
	if q.HonorPreferred && q.PreferredDentistID != nil {
		preferred, _ = day.Dentist(*q.PreferredDentistID)
	}

	if preferred != nil {
		res.HonoredPreferred = true
		hours := day.EffectiveHours(preferred)
		for _, s := range day.Grid() {
			run, ok := day.contiguousRun(s, q.Blocks)
			if !ok || !covers(hours, run) {
				continue
			}
			if usage.DentistFree(preferred.ID, run) && usage.CapacityHolds(run, day.Capacity) {
				res.Starts = append(res.Starts, s)
			}
		}
		return res
	}

	for _, s := range day.Grid() {
		run, ok := day.contiguousRun(s, q.Blocks)
		if !ok || !usage.CapacityHolds(run, day.Capacity) {
			continue
		}
		for _, d := range day.Dentists {
			if covers(day.EffectiveHours(d), run) && usage.DentistFree(d.ID, run) {
				res.Starts = append(res.Starts, s)
				break
			}
		}
	}
	return res
}
