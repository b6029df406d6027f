package memory

import (
	"context"
	"sort"
	"time"

	"github.com/dcms/dentflow/internal/domain/schedule"
	"github.com/google/uuid"
)

type scheduleRepo struct {
	s *Store
}

func (r *scheduleRepo) WeeklySchedule(_ context.Context, weekday time.Weekday) (*schedule.WeeklySchedule, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ws, ok := r.s.weekly[weekday]
	if !ok {
		return nil, nil
	}
	cp := *ws
	return &cp, nil
}

func (r *scheduleRepo) ListWeeklySchedules(_ context.Context) ([]*schedule.WeeklySchedule, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*schedule.WeeklySchedule, 0, len(r.s.weekly))
	for _, ws := range r.s.weekly {
		cp := *ws
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Weekday < out[j].Weekday })
	return out, nil
}

func (r *scheduleRepo) UpsertWeeklySchedule(_ context.Context, ws *schedule.WeeklySchedule) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.stamp(nil, &ws.UpdatedAt)
	cp := *ws
	r.s.weekly[time.Weekday(ws.Weekday)] = &cp
	return nil
}

func (r *scheduleRepo) Override(_ context.Context, date time.Time) (*schedule.CalendarOverride, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ov, ok := r.s.overrides[schedule.DateOf(date).Format(schedule.DateLayout)]
	if !ok {
		return nil, nil
	}
	cp := *ov
	return &cp, nil
}

func (r *scheduleRepo) UpsertOverride(_ context.Context, ov *schedule.CalendarOverride) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ov.Date = schedule.DateOf(ov.Date)
	r.s.stamp(nil, &ov.UpdatedAt)
	cp := *ov
	r.s.overrides[ov.Date.Format(schedule.DateLayout)] = &cp
	return nil
}

func (r *scheduleRepo) ListDentists(_ context.Context) ([]*schedule.Dentist, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*schedule.Dentist, 0, len(r.s.dentists))
	for _, d := range r.s.dentists {
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *scheduleRepo) GetDentist(_ context.Context, id uuid.UUID) (*schedule.Dentist, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	d, ok := r.s.dentists[id]
	if !ok {
		return nil, schedule.ErrDentistNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *scheduleRepo) CreateDentist(_ context.Context, d *schedule.Dentist) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.dentists {
		if existing.Code == d.Code {
			return schedule.ErrDentistCodeTaken
		}
	}
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	r.s.stamp(&d.CreatedAt, &d.UpdatedAt)
	cp := *d
	r.s.dentists[d.ID] = &cp
	return nil
}

func (r *scheduleRepo) UpdateDentist(_ context.Context, d *schedule.Dentist) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.dentists[d.ID]; !ok {
		return schedule.ErrDentistNotFound
	}
	r.s.stamp(nil, &d.UpdatedAt)
	cp := *d
	r.s.dentists[d.ID] = &cp
	return nil
}
