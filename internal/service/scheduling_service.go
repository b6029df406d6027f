package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dcms/dentflow/internal/domain"
	"github.com/dcms/dentflow/internal/domain/appointment"
	"github.com/dcms/dentflow/internal/domain/catalog"
	"github.com/dcms/dentflow/internal/domain/schedule"
	"github.com/dcms/dentflow/pkg/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// BookingPolicy holds the clinic-wide date rules.
type BookingPolicy struct {
	Location       *time.Location
	MaxAdvanceDays int
}

// SchedulingService resolves clinic days and answers availability queries.
// It also owns the admin operations on templates, overrides and dentists.
type SchedulingService struct {
	schedules    schedule.Repository
	appointments appointment.Repository
	catalog      catalog.Repository
	auditSvc     *AuditService
	metrics      *metrics.Collector
	log          *zap.Logger
	tracer       trace.Tracer
	policy       BookingPolicy
	now          func() time.Time
}

func NewSchedulingService(
	schedules schedule.Repository,
	appointments appointment.Repository,
	catalogRepo catalog.Repository,
	auditSvc *AuditService,
	m *metrics.Collector,
	policy BookingPolicy,
	log *zap.Logger,
) *SchedulingService {
	return &SchedulingService{
		schedules:    schedules,
		appointments: appointments,
		catalog:      catalogRepo,
		auditSvc:     auditSvc,
		metrics:      m,
		log:          log,
		tracer:       otel.Tracer("github.com/dcms/dentflow/internal/service"),
		policy:       policy,
		now:          time.Now,
	}
}

// today is the clinic-local calendar date.
func (s *SchedulingService) today() time.Time {
	return schedule.DateOf(s.now().In(s.policy.Location))
}

// checkDate applies the booking date rules for role. Staff may act on the
// current day; patients must book at least one day ahead.
func (s *SchedulingService) checkDate(date time.Time, role domain.Role) error {
	today := s.today()
	d := schedule.DateOf(date)
	switch {
	case d.Before(today):
		return fmt.Errorf("%w: %s is in the past", schedule.ErrInvalidDate, d.Format(schedule.DateLayout))
	case d.Equal(today) && !role.IsStaff():
		return fmt.Errorf("%w: same-day appointments must be booked by clinic staff", schedule.ErrInvalidDate)
	case d.After(today.AddDate(0, 0, s.policy.MaxAdvanceDays)):
		return fmt.Errorf("%w: bookings open at most %d days ahead", schedule.ErrInvalidDate, s.policy.MaxAdvanceDays)
	}
	return nil
}

// startPassed reports whether start on date is not after the current
// clinic-local time.
func (s *SchedulingService) startPassed(date time.Time, start schedule.Clock) bool {
	return !start.On(date, s.policy.Location).After(s.now())
}

// ResolveDay loads the template, override and roster for date and combines
// them. It never caches.
func (s *SchedulingService) ResolveDay(ctx context.Context, date time.Time) (*schedule.ClinicDay, error) {
	tmpl, err := s.schedules.WeeklySchedule(ctx, date.Weekday())
	if err != nil {
		return nil, fmt.Errorf("loading weekly template: %w", err)
	}
	ov, err := s.schedules.Override(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("loading calendar override: %w", err)
	}
	roster, err := s.schedules.ListDentists(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading dentists: %w", err)
	}
	return schedule.ResolveDay(date, tmpl, ov, roster), nil
}

// usage rebuilds the per-block occupancy for date from repo. Pass the
// transaction-bound repository when called inside the booking lock.
func usage(ctx context.Context, repo appointment.Repository, date time.Time, exclude *uuid.UUID) (*schedule.Usage, error) {
	live, err := repo.ListActiveByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("loading bookings: %w", err)
	}
	occ := appointment.Occupancies(live)
	if exclude != nil {
		occ = schedule.Without(occ, *exclude)
	}
	return schedule.BuildUsage(occ), nil
}

type SlotsQuery struct {
	Date           time.Time
	ServiceID      uuid.UUID
	HonorPreferred bool
	PatientID      *uuid.UUID
}

type DentistSummary struct {
	ID   uuid.UUID `json:"id"`
	Code string    `json:"code"`
	Name string    `json:"name"`
}

type SlotsMetadata struct {
	PreferredDentistID      *uuid.UUID      `json:"preferred_dentist_id"`
	PreferredDentistActive  bool            `json:"preferred_dentist_active"`
	EffectiveHonorPreferred bool            `json:"effective_honor_preferred_dentist"`
	PreferredDentist        *DentistSummary `json:"preferred_dentist"`
}

type SlotsResult struct {
	Slots    []schedule.Clock `json:"slots"`
	Metadata SlotsMetadata    `json:"metadata"`
}

// AvailableSlots answers which start times can be booked for a service on a
// date. Reads take no lock; a stale answer is caught at booking time.
func (s *SchedulingService) AvailableSlots(ctx context.Context, q SlotsQuery, actor Actor) (*SlotsResult, error) {
	ctx, span := s.tracer.Start(ctx, "SchedulingService.AvailableSlots")
	defer span.End()
	span.SetAttributes(
		attribute.String("date", q.Date.Format(schedule.DateLayout)),
		attribute.String("service_id", q.ServiceID.String()),
	)
	started := time.Now()

	if actor.Role == domain.RolePatient {
		q.PatientID = actor.PatientID
	}
	if err := s.checkDate(q.Date, actor.Role); err != nil {
		return nil, err
	}

	svc, err := s.catalog.GetService(ctx, q.ServiceID)
	if err != nil {
		return nil, err
	}
	if !svc.IsActive {
		return nil, catalog.ErrServiceInactive
	}

	res := &SlotsResult{Slots: []schedule.Clock{}}
	if q.PatientID != nil {
		res.Metadata.PreferredDentistID, err = s.appointments.LatestAssignedDentist(ctx, *q.PatientID)
		if err != nil {
			return nil, err
		}
	}

	day, err := s.ResolveDay(ctx, q.Date)
	if err != nil {
		return nil, err
	}
	if pref := res.Metadata.PreferredDentistID; pref != nil {
		_, res.Metadata.PreferredDentistActive = day.Dentist(*pref)
		d, err := s.schedules.GetDentist(ctx, *pref)
		switch {
		case err == nil:
			res.Metadata.PreferredDentist = &DentistSummary{ID: d.ID, Code: d.Code, Name: d.Name}
		case !errors.Is(err, schedule.ErrDentistNotFound):
			return nil, err
		}
	}

	u, err := usage(ctx, s.appointments, q.Date, nil)
	if err != nil {
		return nil, err
	}

	out := schedule.AvailableStarts(day, u, schedule.SlotQuery{
		Blocks:             svc.Blocks(),
		HonorPreferred:     q.HonorPreferred,
		PreferredDentistID: res.Metadata.PreferredDentistID,
	})
	res.Metadata.EffectiveHonorPreferred = out.HonoredPreferred

	today := schedule.DateOf(q.Date).Equal(s.today())
	for _, start := range out.Starts {
		if today && s.startPassed(q.Date, start) {
			continue
		}
		res.Slots = append(res.Slots, start)
	}

	s.metrics.SlotQueriesTotal.WithLabelValues(strconv.FormatBool(out.HonoredPreferred)).Inc()
	s.metrics.SlotQueryDuration.Observe(time.Since(started).Seconds())
	span.SetAttributes(attribute.Int("slots", len(res.Slots)))

	return res, nil
}

type BlockUsage struct {
	Start  schedule.Clock `json:"start"`
	Booked int            `json:"booked"`
}

// DaySnapshot is the resolved clinic day as shown to staff.
type DaySnapshot struct {
	Date             string          `json:"date"`
	IsOpen           bool            `json:"is_open"`
	OpenTime         *schedule.Clock `json:"open_time"`
	CloseTime        *schedule.Clock `json:"close_time"`
	Capacity         int             `json:"effective_capacity"`
	ActiveDentistIDs []uuid.UUID     `json:"active_dentist_ids"`
	Blocks           []BlockUsage    `json:"blocks"`
}

func (s *SchedulingService) DaySnapshot(ctx context.Context, date time.Time) (*DaySnapshot, error) {
	day, err := s.ResolveDay(ctx, date)
	if err != nil {
		return nil, err
	}
	snap := &DaySnapshot{
		Date:             day.Date.Format(schedule.DateLayout),
		IsOpen:           day.IsOpen,
		Capacity:         day.Capacity,
		ActiveDentistIDs: day.ActiveDentistIDs(),
		Blocks:           []BlockUsage{},
	}
	if !day.IsOpen {
		return snap, nil
	}
	snap.OpenTime, snap.CloseTime = &day.Hours.Start, &day.Hours.End

	u, err := usage(ctx, s.appointments, date, nil)
	if err != nil {
		return nil, err
	}
	for _, b := range day.Grid() {
		snap.Blocks = append(snap.Blocks, BlockUsage{Start: b, Booked: u.Count(b)})
	}
	return snap, nil
}

func (s *SchedulingService) ListWeeklySchedules(ctx context.Context) ([]*schedule.WeeklySchedule, error) {
	return s.schedules.ListWeeklySchedules(ctx)
}

func (s *SchedulingService) UpsertWeeklySchedule(ctx context.Context, cmd *schedule.UpsertWeeklyCommand, actor Actor) (*schedule.WeeklySchedule, error) {
	var errs []string
	if cmd.Weekday < time.Sunday || cmd.Weekday > time.Saturday {
		errs = append(errs, schedule.ErrInvalidWeekday.Error())
	}
	if cmd.Capacity < 0 {
		errs = append(errs, schedule.ErrInvalidCapacity.Error())
	}
	if cmd.IsOpen {
		errs = append(errs, validateHours(cmd.OpenTime, cmd.CloseTime, true)...)
	}
	if len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}

	ws := &schedule.WeeklySchedule{
		Weekday:   int(cmd.Weekday),
		IsOpen:    cmd.IsOpen,
		OpenTime:  cmd.OpenTime,
		CloseTime: cmd.CloseTime,
		Capacity:  cmd.Capacity,
	}
	if err := s.schedules.UpsertWeeklySchedule(ctx, ws); err != nil {
		return nil, err
	}

	s.auditSvc.LogAsync(ctx, actor.audit(domain.ActionUpdate, "clinic_weekly_schedule", strconv.Itoa(ws.Weekday), ""))
	s.log.Info("weekly template updated",
		zap.String("weekday", cmd.Weekday.String()),
		zap.Bool("is_open", ws.IsOpen),
		zap.Int("capacity", ws.Capacity),
	)
	return ws, nil
}

func (s *SchedulingService) UpsertOverride(ctx context.Context, cmd *schedule.UpsertOverrideCommand, actor Actor) (*schedule.CalendarOverride, error) {
	var errs []string
	if cmd.Capacity != nil && *cmd.Capacity < 0 {
		errs = append(errs, schedule.ErrInvalidCapacity.Error())
	}
	errs = append(errs, validateHours(cmd.OpenTime, cmd.CloseTime, false)...)
	for _, id := range cmd.DentistIDs {
		if _, err := s.schedules.GetDentist(ctx, id); err != nil {
			if errors.Is(err, schedule.ErrDentistNotFound) {
				errs = append(errs, "dentist_ids: unknown dentist "+id.String())
				continue
			}
			return nil, err
		}
	}
	if len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}

	ov := &schedule.CalendarOverride{
		Date:       schedule.DateOf(cmd.Date),
		IsOpen:     cmd.IsOpen,
		OpenTime:   cmd.OpenTime,
		CloseTime:  cmd.CloseTime,
		Capacity:   cmd.Capacity,
		DentistIDs: cmd.DentistIDs,
		Note:       strings.TrimSpace(cmd.Note),
	}
	if err := s.schedules.UpsertOverride(ctx, ov); err != nil {
		return nil, err
	}

	date := ov.Date.Format(schedule.DateLayout)
	s.auditSvc.LogAsync(ctx, actor.audit(domain.ActionUpdate, "clinic_calendar_override", date, ""))
	s.log.Info("calendar override saved", zap.String("date", date))
	return ov, nil
}

// validateHours checks an open/close pair. When required is false both may be
// omitted; setting only one of them is still allowed for overrides.
func validateHours(open, closing *schedule.Clock, required bool) []string {
	if open == nil || closing == nil {
		if required {
			return []string{"open_time and close_time are required when open"}
		}
		return nil
	}
	if *open >= *closing {
		return []string{"open_time must be before close_time"}
	}
	return nil
}

func (s *SchedulingService) ListDentists(ctx context.Context) ([]*schedule.Dentist, error) {
	return s.schedules.ListDentists(ctx)
}

func (s *SchedulingService) CreateDentist(ctx context.Context, cmd *schedule.CreateDentistCommand, actor Actor) (*schedule.Dentist, error) {
	var errs []string
	if strings.TrimSpace(cmd.Code) == "" {
		errs = append(errs, "code is required")
	}
	if strings.TrimSpace(cmd.Name) == "" {
		errs = append(errs, "name is required")
	}
	if cmd.Status == "" {
		cmd.Status = schedule.DentistActive
	}
	if !cmd.Status.IsValid() {
		errs = append(errs, "status must be active or inactive")
	}
	if err := cmd.Week.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}

	d := &schedule.Dentist{
		Code:   strings.TrimSpace(cmd.Code),
		Name:   strings.TrimSpace(cmd.Name),
		Status: cmd.Status,
		Week:   cmd.Week,
	}
	if err := s.schedules.CreateDentist(ctx, d); err != nil {
		return nil, err
	}

	s.auditSvc.LogAsync(ctx, actor.audit(domain.ActionCreate, "dentist_schedule", d.ID.String(), ""))
	s.log.Info("dentist schedule created", zap.String("dentist_id", d.ID.String()), zap.String("code", d.Code))
	return d, nil
}

func (s *SchedulingService) UpdateDentist(ctx context.Context, id uuid.UUID, cmd *schedule.UpdateDentistCommand, actor Actor) (*schedule.Dentist, error) {
	d, err := s.schedules.GetDentist(ctx, id)
	if err != nil {
		return nil, err
	}

	var errs []string
	if cmd.Name != nil {
		if strings.TrimSpace(*cmd.Name) == "" {
			errs = append(errs, "name cannot be empty")
		}
		d.Name = strings.TrimSpace(*cmd.Name)
	}
	if cmd.Status != nil {
		if !cmd.Status.IsValid() {
			errs = append(errs, "status must be active or inactive")
		}
		d.Status = *cmd.Status
	}
	if cmd.Week != nil {
		if err := cmd.Week.Validate(); err != nil {
			errs = append(errs, err.Error())
		}
		d.Week = *cmd.Week
	}
	if len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}

	if err := s.schedules.UpdateDentist(ctx, d); err != nil {
		return nil, err
	}

	s.auditSvc.LogAsync(ctx, actor.audit(domain.ActionUpdate, "dentist_schedule", d.ID.String(), ""))
	return d, nil
}
