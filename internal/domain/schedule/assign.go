package schedule

import "github.com/google/uuid"

type AssignRequest struct {
	Start              Clock
	Blocks             int
	HonorPreferred     bool
	PreferredDentistID *uuid.UUID
}

// AssignDentist picks the dentist for a booking of req.Blocks starting at
// req.Start. The preferred dentist wins when honoring is requested and they are
// free; otherwise the first free dentist in ascending ID order is chosen.
//
// The decision is only valid against the usage it was computed from: callers
// must persist it inside the same critical section that produced usage.
func AssignDentist(day *ClinicDay, usage *Usage, req AssignRequest) (uuid.UUID, error) {
	if !day.IsOpen {
		return uuid.Nil, ErrClinicClosed
	}
	run, ok := day.contiguousRun(req.Start, req.Blocks)
	if !ok {
		return uuid.Nil, ErrInvalidStartTime
	}
	if !usage.CapacityHolds(run, day.Capacity) {
		return uuid.Nil, &SlotFullError{Start: req.Start}
	}

	if req.HonorPreferred && req.PreferredDentistID != nil {
		if d, working := day.Dentist(*req.PreferredDentistID); working {
			if covers(day.EffectiveHours(d), run) && usage.DentistFree(d.ID, run) {
				return d.ID, nil
			}
		}
	}

	covered := false
	for _, d := range day.Dentists {
		if !covers(day.EffectiveHours(d), run) {
			continue
		}
		covered = true
		if usage.DentistFree(d.ID, run) {
			return d.ID, nil
		}
	}
	if !covered {
		return uuid.Nil, ErrNoDentistAvailable
	}
	return uuid.Nil, &SlotFullError{Start: req.Start}
}

// CheckDentist validates that a specific dentist can take the run. It backs
// manual reassignment, where staff choose the dentist.
func CheckDentist(day *ClinicDay, usage *Usage, dentistID uuid.UUID, start Clock, blocks int) error {
	if !day.IsOpen {
		return ErrClinicClosed
	}
	run, ok := day.contiguousRun(start, blocks)
	if !ok {
		return ErrInvalidStartTime
	}
	d, working := day.Dentist(dentistID)
	if !working || !covers(day.EffectiveHours(d), run) {
		return ErrNoDentistAvailable
	}
	if !usage.CapacityHolds(run, day.Capacity) || !usage.DentistFree(dentistID, run) {
		return &SlotFullError{Start: start}
	}
	return nil
}
