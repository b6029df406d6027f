package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	List(ctx context.Context, q *ListAppointmentsQuery) (*PagedAppointments, error)

	// UpdateStatus persists the status and its bookkeeping fields, provided
	// the stored status is still from. Otherwise it returns
	// ErrInvalidStatusTransition and writes nothing.
	UpdateStatus(ctx context.Context, a *Appointment, from Status) error
	UpdateDentist(ctx context.Context, a *Appointment) error

	// ListActiveByDate returns the bookings on date whose status holds capacity.
	ListActiveByDate(ctx context.Context, date time.Time) ([]*Appointment, error)

	// LatestAssignedDentist returns the dentist of the patient's most recent
	// non-cancelled, non-rejected booking that has one, or nil.
	LatestAssignedDentist(ctx context.Context, patientID uuid.UUID) (*uuid.UUID, error)

	// HasCompletedService reports a completed booking of serviceID on or after since.
	HasCompletedService(ctx context.Context, patientID, serviceID uuid.UUID, since time.Time) (bool, error)

	// WithDateLock runs fn while holding the exclusive write lock for the
	// booking set of date. The repository passed to fn shares that lock;
	// fn's writes are committed only if it returns nil.
	WithDateLock(ctx context.Context, date time.Time, fn func(tx Repository) error) error
}
