package memory

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/dcms/dentflow/internal/domain/appointment"
	"github.com/dcms/dentflow/internal/domain/schedule"
	"github.com/google/uuid"
)

type appointmentRepo struct {
	s *Store
}

func clone(a *appointment.Appointment) *appointment.Appointment {
	cp := *a
	return &cp
}

func (r *appointmentRepo) Create(_ context.Context, a *appointment.Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.Date = schedule.DateOf(a.Date)
	r.s.stamp(&a.CreatedAt, &a.UpdatedAt)
	r.s.appointments[a.ID] = clone(a)
	return nil
}

func (r *appointmentRepo) GetByID(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.appointments[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	return clone(a), nil
}

func (r *appointmentRepo) update(a *appointment.Appointment, guard func(stored *appointment.Appointment) error, apply func(stored *appointment.Appointment)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.appointments[a.ID]
	if !ok {
		return appointment.ErrAppointmentNotFound
	}
	if guard != nil {
		if err := guard(stored); err != nil {
			return err
		}
	}
	apply(stored)
	r.s.stamp(nil, &stored.UpdatedAt)
	a.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *appointmentRepo) UpdateStatus(_ context.Context, a *appointment.Appointment, from appointment.Status) error {
	guard := func(stored *appointment.Appointment) error {
		if stored.Status != from {
			return appointment.ErrInvalidStatusTransition
		}
		return nil
	}
	return r.update(a, guard, func(stored *appointment.Appointment) {
		stored.Status = a.Status
		stored.PaymentStatus = a.PaymentStatus
		stored.ApprovedAt = a.ApprovedAt
		stored.CompletedAt = a.CompletedAt
		stored.CancelledAt = a.CancelledAt
		stored.CancelledBy = a.CancelledBy
		stored.CancellationReason = a.CancellationReason
	})
}

func (r *appointmentRepo) UpdateDentist(_ context.Context, a *appointment.Appointment) error {
	return r.update(a, nil, func(stored *appointment.Appointment) {
		stored.DentistScheduleID = a.DentistScheduleID
	})
}

func (r *appointmentRepo) ListActiveByDate(_ context.Context, date time.Time) ([]*appointment.Appointment, error) {
	d := schedule.DateOf(date)
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*appointment.Appointment
	for _, a := range r.s.appointments {
		if a.Date.Equal(d) && a.Status.OccupiesCapacity() {
			out = append(out, clone(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TimeSlot < out[j].TimeSlot })
	return out, nil
}

func (r *appointmentRepo) LatestAssignedDentist(_ context.Context, patientID uuid.UUID) (*uuid.UUID, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var latest *appointment.Appointment
	for _, a := range r.s.appointments {
		if a.PatientID != patientID || a.DentistScheduleID == nil {
			continue
		}
		if a.Status == appointment.StatusCancelled || a.Status == appointment.StatusRejected {
			continue
		}
		if latest == nil || a.Date.After(latest.Date) ||
			(a.Date.Equal(latest.Date) && a.CreatedAt.After(latest.CreatedAt)) {
			latest = a
		}
	}
	if latest == nil {
		return nil, nil
	}
	id := *latest.DentistScheduleID
	return &id, nil
}

func (r *appointmentRepo) HasCompletedService(_ context.Context, patientID, serviceID uuid.UUID, since time.Time) (bool, error) {
	from := schedule.DateOf(since)
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, a := range r.s.appointments {
		if a.PatientID == patientID && a.ServiceID == serviceID &&
			a.Status == appointment.StatusCompleted && !a.Date.Before(from) {
			return true, nil
		}
	}
	return false, nil
}

func (r *appointmentRepo) List(_ context.Context, q *appointment.ListAppointmentsQuery) (*appointment.PagedAppointments, error) {
	r.s.mu.RLock()
	var matched []*appointment.Appointment
	for _, a := range r.s.appointments {
		if q.PatientID != nil && a.PatientID != *q.PatientID {
			continue
		}
		if q.DentistID != nil && (a.DentistScheduleID == nil || *a.DentistScheduleID != *q.DentistID) {
			continue
		}
		if q.Status != nil && a.Status != *q.Status {
			continue
		}
		if q.DateFrom != nil && a.Date.Before(schedule.DateOf(*q.DateFrom)) {
			continue
		}
		if q.DateTo != nil && a.Date.After(schedule.DateOf(*q.DateTo)) {
			continue
		}
		matched = append(matched, clone(a))
	}
	r.s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Date.Equal(matched[j].Date) {
			return matched[i].Date.After(matched[j].Date)
		}
		return matched[i].TimeSlot < matched[j].TimeSlot
	})

	total := len(matched)
	start := (q.Page - 1) * q.PageSize
	if start > total {
		start = total
	}
	end := min(start+q.PageSize, total)

	return &appointment.PagedAppointments{
		Appointments: matched[start:end],
		TotalCount:   int64(total),
		Page:         q.Page,
		PageSize:     q.PageSize,
		TotalPages:   int(math.Ceil(float64(total) / float64(q.PageSize))),
	}, nil
}

// WithDateLock serializes writers per date. Writes made through the tx
// repository are buffered and applied only when fn succeeds.
func (r *appointmentRepo) WithDateLock(ctx context.Context, date time.Time, fn func(tx appointment.Repository) error) error {
	lock := r.s.dateLock(date)

	timer := time.NewTimer(r.s.lockTimeout)
	defer timer.Stop()
	select {
	case lock <- struct{}{}:
	case <-timer.C:
		return appointment.ErrBookingRaceLost
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-lock }()

	tx := &txRepo{appointmentRepo: r}
	if err := fn(tx); err != nil {
		return err
	}
	for _, w := range tx.writes {
		if err := w(ctx); err != nil {
			return err
		}
	}
	return nil
}

type txRepo struct {
	*appointmentRepo
	writes []func(context.Context) error
}

func (t *txRepo) Create(_ context.Context, a *appointment.Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	t.writes = append(t.writes, func(ctx context.Context) error { return t.appointmentRepo.Create(ctx, a) })
	return nil
}

func (t *txRepo) UpdateStatus(_ context.Context, a *appointment.Appointment, from appointment.Status) error {
	t.writes = append(t.writes, func(ctx context.Context) error { return t.appointmentRepo.UpdateStatus(ctx, a, from) })
	return nil
}

func (t *txRepo) UpdateDentist(_ context.Context, a *appointment.Appointment) error {
	t.writes = append(t.writes, func(ctx context.Context) error { return t.appointmentRepo.UpdateDentist(ctx, a) })
	return nil
}

func (t *txRepo) WithDateLock(ctx context.Context, _ time.Time, fn func(tx appointment.Repository) error) error {
	return fn(t)
}
