package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dcms/dentflow/internal/domain/appointment"
	"github.com/dcms/dentflow/internal/domain/schedule"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// bookingLockNamespace is the first key of the two-key advisory lock, so
// booking locks never collide with other advisory lock users.
const bookingLockNamespace int32 = 0x44464c57

var liveStatuses = []appointment.Status{
	appointment.StatusPending,
	appointment.StatusApproved,
	appointment.StatusCompleted,
}

type AppointmentRepository struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

func NewAppointmentRepository(db *gorm.DB, lockTimeout time.Duration) *AppointmentRepository {
	return &AppointmentRepository{db: db, lockTimeout: lockTimeout}
}

func (r *AppointmentRepository) Create(ctx context.Context, a *appointment.Appointment) error {
	a.Date = schedule.DateOf(a.Date)
	if err := r.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("inserting appointment: %w", err)
	}
	return nil
}

func (r *AppointmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	var a appointment.Appointment
	err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, appointment.ErrAppointmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading appointment: %w", err)
	}
	return &a, nil
}

func (r *AppointmentRepository) update(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	res := r.db.WithContext(ctx).
		Model(&appointment.Appointment{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("updating appointment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return appointment.ErrAppointmentNotFound
	}
	return nil
}

// UpdateStatus is a compare-and-set on the stored status, so a transition
// computed from a stale read never overwrites a newer one.
func (r *AppointmentRepository) UpdateStatus(ctx context.Context, a *appointment.Appointment, from appointment.Status) error {
	res := r.db.WithContext(ctx).
		Model(&appointment.Appointment{}).
		Where("id = ? AND status = ?", a.ID, from).
		Updates(map[string]any{
			"status":              a.Status,
			"payment_status":      a.PaymentStatus,
			"approved_at":         a.ApprovedAt,
			"completed_at":        a.CompletedAt,
			"cancelled_at":        a.CancelledAt,
			"cancelled_by":        a.CancelledBy,
			"cancellation_reason": a.CancellationReason,
		})
	if res.Error != nil {
		return fmt.Errorf("updating appointment status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, a.ID); err != nil {
			return err
		}
		return appointment.ErrInvalidStatusTransition
	}
	return nil
}

func (r *AppointmentRepository) UpdateDentist(ctx context.Context, a *appointment.Appointment) error {
	return r.update(ctx, a.ID, map[string]any{"dentist_schedule_id": a.DentistScheduleID})
}

func (r *AppointmentRepository) ListActiveByDate(ctx context.Context, date time.Time) ([]*appointment.Appointment, error) {
	var out []*appointment.Appointment
	err := r.db.WithContext(ctx).
		Where("date = ? AND status IN ?", schedule.DateOf(date), liveStatuses).
		Order("time_slot").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("listing bookings for %s: %w", date.Format(schedule.DateLayout), err)
	}
	return out, nil
}

func (r *AppointmentRepository) LatestAssignedDentist(ctx context.Context, patientID uuid.UUID) (*uuid.UUID, error) {
	var rows []appointment.Appointment
	err := r.db.WithContext(ctx).
		Select("dentist_schedule_id").
		Where("patient_id = ? AND dentist_schedule_id IS NOT NULL AND status NOT IN ?",
			patientID, []appointment.Status{appointment.StatusCancelled, appointment.StatusRejected}).
		Order("date DESC, created_at DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("looking up preferred dentist: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].DentistScheduleID, nil
}

func (r *AppointmentRepository) HasCompletedService(ctx context.Context, patientID, serviceID uuid.UUID, since time.Time) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&appointment.Appointment{}).
		Where("patient_id = ? AND service_id = ? AND status = ? AND date >= ?",
			patientID, serviceID, appointment.StatusCompleted, schedule.DateOf(since)).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("checking completed service: %w", err)
	}
	return n > 0, nil
}

func (r *AppointmentRepository) List(ctx context.Context, q *appointment.ListAppointmentsQuery) (*appointment.PagedAppointments, error) {
	query := r.db.WithContext(ctx).Model(&appointment.Appointment{})
	if q.PatientID != nil {
		query = query.Where("patient_id = ?", *q.PatientID)
	}
	if q.DentistID != nil {
		query = query.Where("dentist_schedule_id = ?", *q.DentistID)
	}
	if q.Status != nil {
		query = query.Where("status = ?", *q.Status)
	}
	if q.DateFrom != nil {
		query = query.Where("date >= ?", schedule.DateOf(*q.DateFrom))
	}
	if q.DateTo != nil {
		query = query.Where("date <= ?", schedule.DateOf(*q.DateTo))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("counting appointments: %w", err)
	}

	var rows []*appointment.Appointment
	err := query.
		Order("date DESC, time_slot ASC").
		Offset((q.Page - 1) * q.PageSize).
		Limit(q.PageSize).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing appointments: %w", err)
	}

	return &appointment.PagedAppointments{
		Appointments: rows,
		TotalCount:   total,
		Page:         q.Page,
		PageSize:     q.PageSize,
		TotalPages:   int(math.Ceil(float64(total) / float64(q.PageSize))),
	}, nil
}

// WithDateLock runs fn in a transaction holding a transaction-scoped advisory
// lock on the date. Waiting longer than lockTimeout aborts with
// ErrBookingRaceLost; the lock is released on commit or rollback.
func (r *AppointmentRepository) WithDateLock(ctx context.Context, date time.Time, fn func(tx appointment.Repository) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())).Error; err != nil {
			return fmt.Errorf("setting lock timeout: %w", err)
		}
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?, ?)", bookingLockNamespace, dateLockKey(date)).Error; err != nil {
			return fmt.Errorf("acquiring booking lock: %w", err)
		}
		return fn(&AppointmentRepository{db: tx, lockTimeout: r.lockTimeout})
	})
	return classifyLockError(err)
}

// dateLockKey encodes a calendar date as yyyymmdd.
func dateLockKey(date time.Time) int32 {
	y, m, d := date.Date()
	return int32(y*10000 + int(m)*100 + d)
}
