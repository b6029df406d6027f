package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// WeeklySchedule returns the template for weekday, or nil when none is configured.
	WeeklySchedule(ctx context.Context, weekday time.Weekday) (*WeeklySchedule, error)
	ListWeeklySchedules(ctx context.Context) ([]*WeeklySchedule, error)
	UpsertWeeklySchedule(ctx context.Context, ws *WeeklySchedule) error

	// Override returns the calendar exception for date, or nil when none exists.
	Override(ctx context.Context, date time.Time) (*CalendarOverride, error)
	UpsertOverride(ctx context.Context, ov *CalendarOverride) error

	ListDentists(ctx context.Context) ([]*Dentist, error)
	// GetDentist returns ErrDentistNotFound when missing.
	GetDentist(ctx context.Context, id uuid.UUID) (*Dentist, error)
	// CreateDentist returns ErrDentistCodeTaken on a duplicate code.
	CreateDentist(ctx context.Context, d *Dentist) error
	UpdateDentist(ctx context.Context, d *Dentist) error
}
