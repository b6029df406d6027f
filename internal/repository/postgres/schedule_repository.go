package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dcms/dentflow/internal/domain/schedule"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ScheduleRepository struct {
	db *gorm.DB
}

func NewScheduleRepository(db *gorm.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

func (r *ScheduleRepository) WeeklySchedule(ctx context.Context, weekday time.Weekday) (*schedule.WeeklySchedule, error) {
	var ws schedule.WeeklySchedule
	err := r.db.WithContext(ctx).First(&ws, "weekday = ?", int(weekday)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading weekly schedule: %w", err)
	}
	return &ws, nil
}

func (r *ScheduleRepository) ListWeeklySchedules(ctx context.Context) ([]*schedule.WeeklySchedule, error) {
	var out []*schedule.WeeklySchedule
	if err := r.db.WithContext(ctx).Order("weekday").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing weekly schedules: %w", err)
	}
	return out, nil
}

func (r *ScheduleRepository) UpsertWeeklySchedule(ctx context.Context, ws *schedule.WeeklySchedule) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "weekday"}},
			DoUpdates: clause.AssignmentColumns([]string{"is_open", "open_time", "close_time", "capacity", "updated_at"}),
		}).
		Create(ws).Error
	if err != nil {
		return fmt.Errorf("upserting weekly schedule: %w", err)
	}
	return nil
}

func (r *ScheduleRepository) Override(ctx context.Context, date time.Time) (*schedule.CalendarOverride, error) {
	var ov schedule.CalendarOverride
	err := r.db.WithContext(ctx).First(&ov, "date = ?", schedule.DateOf(date)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading calendar override: %w", err)
	}
	return &ov, nil
}

func (r *ScheduleRepository) UpsertOverride(ctx context.Context, ov *schedule.CalendarOverride) error {
	ov.Date = schedule.DateOf(ov.Date)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"is_open", "open_time", "close_time", "capacity", "dentist_ids", "note", "updated_at",
			}),
		}).
		Create(ov).Error
	if err != nil {
		return fmt.Errorf("upserting calendar override: %w", err)
	}
	return nil
}

func (r *ScheduleRepository) ListDentists(ctx context.Context) ([]*schedule.Dentist, error) {
	var out []*schedule.Dentist
	if err := r.db.WithContext(ctx).Order("code").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing dentists: %w", err)
	}
	return out, nil
}

func (r *ScheduleRepository) GetDentist(ctx context.Context, id uuid.UUID) (*schedule.Dentist, error) {
	var d schedule.Dentist
	err := r.db.WithContext(ctx).First(&d, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, schedule.ErrDentistNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading dentist: %w", err)
	}
	return &d, nil
}

func (r *ScheduleRepository) CreateDentist(ctx context.Context, d *schedule.Dentist) error {
	err := r.db.WithContext(ctx).Create(d).Error
	if isUniqueViolation(err) {
		return schedule.ErrDentistCodeTaken
	}
	if err != nil {
		return fmt.Errorf("inserting dentist: %w", err)
	}
	return nil
}

func (r *ScheduleRepository) UpdateDentist(ctx context.Context, d *schedule.Dentist) error {
	res := r.db.WithContext(ctx).
		Model(d).
		Select("name", "status", "weekly_hours", "updated_at").
		Updates(d)
	if res.Error != nil {
		return fmt.Errorf("updating dentist: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return schedule.ErrDentistNotFound
	}
	return nil
}
