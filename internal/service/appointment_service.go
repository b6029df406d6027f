package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dcms/dentflow/internal/domain"
	"github.com/dcms/dentflow/internal/domain/appointment"
	"github.com/dcms/dentflow/internal/domain/catalog"
	"github.com/dcms/dentflow/internal/domain/patient"
	"github.com/dcms/dentflow/internal/domain/schedule"
	"github.com/dcms/dentflow/internal/events"
	"github.com/dcms/dentflow/pkg/idempotency"
	"github.com/dcms/dentflow/pkg/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// BookingMutator writes a booking whose slot and dentist are final. It is
// only called inside the per-date critical section, after the feasibility
// re-check passed, with the repository bound to that section.
type BookingMutator interface {
	Persist(ctx context.Context, tx appointment.Repository, a *appointment.Appointment) (uuid.UUID, error)
}

// RepositoryMutator persists bookings through the appointment repository.
type RepositoryMutator struct{}

func (RepositoryMutator) Persist(ctx context.Context, tx appointment.Repository, a *appointment.Appointment) (uuid.UUID, error) {
	if err := tx.Create(ctx, a); err != nil {
		return uuid.Nil, err
	}
	return a.ID, nil
}

type AppointmentDeps struct {
	Appointments appointment.Repository
	Patients     patient.Repository
	Scheduling   *SchedulingService
	Catalog      *CatalogService
	Mutator      BookingMutator
	Idempotency  idempotency.Store
	Events       events.Publisher
	Audit        *AuditService
	Metrics      *metrics.Collector
	Log          *zap.Logger

	IdempotencyTTL time.Duration
}

type AppointmentService struct {
	repo        appointment.Repository
	patientRepo patient.Repository
	scheduling  *SchedulingService
	catalog     *CatalogService
	mutator     BookingMutator
	idem        idempotency.Store
	idemTTL     time.Duration
	publisher   events.Publisher
	auditSvc    *AuditService
	metrics     *metrics.Collector
	log         *zap.Logger
}

func NewAppointmentService(d AppointmentDeps) *AppointmentService {
	if d.Mutator == nil {
		d.Mutator = RepositoryMutator{}
	}
	if d.Events == nil {
		d.Events = events.NopPublisher{}
	}
	if d.IdempotencyTTL <= 0 {
		d.IdempotencyTTL = 24 * time.Hour
	}
	return &AppointmentService{
		repo:        d.Appointments,
		patientRepo: d.Patients,
		scheduling:  d.Scheduling,
		catalog:     d.Catalog,
		mutator:     d.Mutator,
		idem:        d.Idempotency,
		idemTTL:     d.IdempotencyTTL,
		publisher:   d.Events,
		auditSvc:    d.Audit,
		metrics:     d.Metrics,
		log:         d.Log,
	}
}

// Book validates the request, assigns a dentist and persists the booking.
// The assignment is recomputed under the per-date lock so two concurrent
// requests can never both take the last seat of a block. replayed is true
// when the idempotency key matched an earlier request.
func (s *AppointmentService) Book(ctx context.Context, cmd *appointment.BookCommand, actor Actor) (a *appointment.Appointment, replayed bool, err error) {
	ctx, span := s.scheduling.tracer.Start(ctx, "AppointmentService.Book")
	defer span.End()

	if err := s.authorizeBooking(cmd, actor); err != nil {
		return nil, false, err
	}
	if err := validateBook(cmd); err != nil {
		s.metrics.BookingsTotal.WithLabelValues("invalid").Inc()
		return nil, false, err
	}
	span.SetAttributes(
		attribute.String("date", cmd.Date.Format(schedule.DateLayout)),
		attribute.String("start_time", cmd.StartTime.String()),
	)

	if key := strings.TrimSpace(cmd.IdempotencyKey); key != "" && s.idem != nil {
		scoped := actor.UserID.String() + ":" + key
		result, claimed, claimErr := s.idem.Claim(ctx, scoped, s.idemTTL)
		if claimErr != nil {
			return nil, false, claimErr
		}
		if !claimed {
			return s.replay(ctx, result)
		}
		// Reads the named err so a failed booking frees the key for a retry.
		defer func() {
			if err != nil || a == nil {
				if rerr := s.idem.Release(context.WithoutCancel(ctx), scoped); rerr != nil {
					s.log.Warn("releasing idempotency key", zap.Error(rerr))
				}
				return
			}
			if cerr := s.idem.Complete(context.WithoutCancel(ctx), scoped, a.ID.String(), s.idemTTL); cerr != nil {
				s.log.Warn("completing idempotency key", zap.Error(cerr))
			}
		}()
	}

	a, err = s.book(ctx, cmd, actor)
	s.metrics.BookingsTotal.WithLabelValues(bookingOutcome(err)).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}

	s.publish(ctx, events.TypeBooked, a)
	s.auditSvc.LogAsync(ctx, actor.audit(domain.ActionCreate, "appointment", a.ID.String(),
		fmt.Sprintf(`{"date":%q,"time_slot":%q,"dentist_schedule_id":%q}`,
			a.Date.Format(schedule.DateLayout), a.TimeSlot, a.DentistScheduleID.String())))
	s.log.Info("appointment booked",
		zap.String("appointment_id", a.ID.String()),
		zap.String("patient_id", a.PatientID.String()),
		zap.String("dentist_schedule_id", a.DentistScheduleID.String()),
		zap.String("date", a.Date.Format(schedule.DateLayout)),
		zap.String("time_slot", a.TimeSlot),
	)
	return a, false, nil
}

func (s *AppointmentService) book(ctx context.Context, cmd *appointment.BookCommand, actor Actor) (*appointment.Appointment, error) {
	date := schedule.DateOf(cmd.Date)
	if err := s.scheduling.checkDate(date, actor.Role); err != nil {
		return nil, err
	}
	if date.Equal(s.scheduling.today()) && s.scheduling.startPassed(date, cmd.StartTime) {
		return nil, fmt.Errorf("%w: %s has already passed", schedule.ErrInvalidStartTime, cmd.StartTime)
	}

	p, err := s.patientRepo.GetByID(ctx, cmd.PatientID)
	if err != nil {
		return nil, fmt.Errorf("verifying patient: %w", err)
	}
	if !p.IsActive() {
		return nil, patient.ErrPatientInactive
	}

	svc, err := s.catalog.GetService(ctx, cmd.ServiceID)
	if err != nil {
		return nil, err
	}
	if !svc.IsActive {
		return nil, catalog.ErrServiceInactive
	}
	if svc.IsFollowUp() {
		eligible, err := s.catalog.followUpEligible(ctx, svc, &cmd.PatientID, date)
		if err != nil {
			return nil, fmt.Errorf("checking follow-up eligibility: %w", err)
		}
		if !eligible {
			return nil, catalog.ErrFollowUpIneligible
		}
	}
	price, err := s.catalog.PriceOn(ctx, svc, date)
	if err != nil {
		return nil, err
	}

	var preferred *uuid.UUID
	if cmd.HonorPreferredDentist {
		if preferred, err = s.repo.LatestAssignedDentist(ctx, cmd.PatientID); err != nil {
			return nil, fmt.Errorf("loading preferred dentist: %w", err)
		}
	}

	blocks := svc.Blocks()
	a := &appointment.Appointment{
		PatientID:             cmd.PatientID,
		ServiceID:             svc.ID,
		Date:                  date,
		TimeSlot:              schedule.Window{Start: cmd.StartTime, End: cmd.StartTime.Add(blocks)}.String(),
		Status:                appointment.StatusPending,
		HonorPreferredDentist: cmd.HonorPreferredDentist,
		PaymentMethod:         cmd.PaymentMethod,
		PaymentStatus:         appointment.PaymentUnpaid,
		Price:                 price,
		Notes:                 strings.TrimSpace(cmd.Notes),
		CreatedBy:             actor.UserID,
	}

	waitStart := time.Now()
	err = s.repo.WithDateLock(ctx, date, func(tx appointment.Repository) error {
		s.metrics.BookingLockDuration.Observe(time.Since(waitStart).Seconds())

		day, err := s.scheduling.ResolveDay(ctx, date)
		if err != nil {
			return err
		}
		u, err := usage(ctx, tx, date, nil)
		if err != nil {
			return err
		}
		dentistID, err := schedule.AssignDentist(day, u, schedule.AssignRequest{
			Start:              cmd.StartTime,
			Blocks:             blocks,
			HonorPreferred:     cmd.HonorPreferredDentist,
			PreferredDentistID: preferred,
		})
		if err != nil {
			return err
		}
		a.DentistScheduleID = &dentistID

		_, err = s.mutator.Persist(ctx, tx, a)
		return err
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *AppointmentService) replay(ctx context.Context, result string) (*appointment.Appointment, bool, error) {
	id, err := uuid.Parse(result)
	if err != nil {
		return nil, false, fmt.Errorf("stored idempotency result %q: %w", result, err)
	}
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	s.metrics.IdempotentReplays.Inc()
	return a, true, nil
}

// authorizeBooking fills the patient for patient-role callers and rejects
// roles that cannot book.
func (s *AppointmentService) authorizeBooking(cmd *appointment.BookCommand, actor Actor) error {
	switch {
	case actor.Role.IsStaff():
		return nil
	case actor.Role == domain.RolePatient && actor.PatientID != nil:
		if cmd.PatientID != uuid.Nil && cmd.PatientID != *actor.PatientID {
			return ErrForbidden
		}
		cmd.PatientID = *actor.PatientID
		return nil
	}
	return ErrForbidden
}

func validateBook(cmd *appointment.BookCommand) error {
	var errs []string
	if cmd.PatientID == uuid.Nil {
		errs = append(errs, "patient_id is required")
	}
	if cmd.ServiceID == uuid.Nil {
		errs = append(errs, "service_id is required")
	}
	if cmd.Date.IsZero() {
		errs = append(errs, "date is required")
	}
	if !cmd.PaymentMethod.IsValid() {
		errs = append(errs, appointment.ErrInvalidPaymentMethod.Error())
	}
	if len(cmd.Notes) > 2000 {
		errs = append(errs, "notes must not exceed 2000 characters")
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func bookingOutcome(err error) string {
	var ve *ValidationError
	switch {
	case err == nil:
		return "booked"
	case errors.Is(err, appointment.ErrBookingRaceLost):
		return "race_lost"
	case errors.Is(err, schedule.ErrSlotFull):
		return "slot_full"
	case errors.Is(err, schedule.ErrNoDentistAvailable):
		return "no_dentist"
	case errors.Is(err, schedule.ErrClinicClosed):
		return "closed"
	case errors.Is(err, schedule.ErrInvalidDate),
		errors.Is(err, schedule.ErrInvalidStartTime),
		errors.Is(err, catalog.ErrFollowUpIneligible),
		errors.As(err, &ve):
		return "invalid"
	}
	return "error"
}

func (s *AppointmentService) GetAppointment(ctx context.Context, id uuid.UUID, actor Actor) (*appointment.Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(a, actor) {
		// Do not leak existence to other patients.
		return nil, appointment.ErrAppointmentNotFound
	}
	return a, nil
}

func canView(a *appointment.Appointment, actor Actor) bool {
	switch actor.Role {
	case domain.RoleAdmin, domain.RoleStaff:
		return true
	case domain.RolePatient:
		return actor.ownsPatient(a.PatientID)
	case domain.RoleDentist:
		return actor.DentistID != nil && a.DentistScheduleID != nil && *a.DentistScheduleID == *actor.DentistID
	}
	return false
}

func (s *AppointmentService) ListAppointments(ctx context.Context, q *appointment.ListAppointmentsQuery, actor Actor) (*appointment.PagedAppointments, error) {
	switch actor.Role {
	case domain.RolePatient:
		if actor.PatientID == nil {
			return nil, ErrForbidden
		}
		q.PatientID = actor.PatientID
	case domain.RoleDentist:
		if actor.DentistID == nil {
			return nil, ErrForbidden
		}
		q.DentistID = actor.DentistID
	}
	if q.Status != nil && !q.Status.IsValid() {
		return nil, appointment.ErrInvalidStatus
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = 20
	}
	if q.PageSize > 100 {
		q.PageSize = 100
	}
	return s.repo.List(ctx, q)
}

// ChangeStatus moves a booking through its lifecycle. Staff may apply any
// valid transition; a patient may only cancel their own booking. The booking
// is re-read and written under its date lock, so the transition is always
// checked against the latest status and cannot revive a released seat.
func (s *AppointmentService) ChangeStatus(ctx context.Context, id uuid.UUID, cmd *appointment.ChangeStatusCommand, actor Actor) (*appointment.Appointment, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeStatusChange(current, cmd.Status, actor); err != nil {
		return nil, err
	}

	reason := strings.TrimSpace(cmd.Reason)
	if (cmd.Status == appointment.StatusCancelled || cmd.Status == appointment.StatusRejected) && reason == "" {
		return nil, &ValidationError{Fields: []string{"reason is required when cancelling or rejecting"}}
	}

	var (
		a    *appointment.Appointment
		prev appointment.Status
	)
	err = s.repo.WithDateLock(ctx, current.Date, func(tx appointment.Repository) error {
		fresh, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}
		prev = fresh.Status
		if err := fresh.Transition(cmd.Status, reason, actor.UserID, time.Now()); err != nil {
			return err
		}
		if err := tx.UpdateStatus(ctx, fresh, prev); err != nil {
			return err
		}
		a = fresh
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("changing appointment status: %w", err)
	}

	s.metrics.StatusChangesTotal.WithLabelValues(string(a.Status)).Inc()
	s.publish(ctx, events.TypeStatusChanged, a)
	s.auditSvc.LogAsync(ctx, actor.audit(domain.ActionUpdate, "appointment", a.ID.String(),
		fmt.Sprintf(`{"status":{"from":%q,"to":%q}}`, prev, a.Status)))
	s.log.Info("appointment status changed",
		zap.String("appointment_id", a.ID.String()),
		zap.String("from", string(prev)),
		zap.String("to", string(a.Status)),
	)
	return a, nil
}

func authorizeStatusChange(a *appointment.Appointment, next appointment.Status, actor Actor) error {
	switch {
	case actor.Role.IsStaff():
		return nil
	case actor.Role == domain.RolePatient && actor.ownsPatient(a.PatientID):
		if next != appointment.StatusCancelled {
			return ErrForbidden
		}
		return nil
	}
	return ErrForbidden
}

// Reassign moves a booking to another dentist. The target is re-checked
// under the same per-date lock as booking, ignoring the booking's own blocks.
func (s *AppointmentService) Reassign(ctx context.Context, id uuid.UUID, cmd *appointment.ReassignCommand, actor Actor) (*appointment.Appointment, error) {
	ctx, span := s.scheduling.tracer.Start(ctx, "AppointmentService.Reassign")
	defer span.End()

	if !actor.Role.IsStaff() {
		return nil, ErrForbidden
	}
	if cmd.DentistID == uuid.Nil {
		return nil, &ValidationError{Fields: []string{"dentist_id is required"}}
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var (
		updated *appointment.Appointment
		prev    *uuid.UUID
	)
	err = s.repo.WithDateLock(ctx, current.Date, func(tx appointment.Repository) error {
		a, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !a.Reassignable(s.scheduling.now(), s.scheduling.policy.Location) {
			return appointment.ErrNotReassignable
		}
		slot, err := a.Slot()
		if err != nil {
			return err
		}

		day, err := s.scheduling.ResolveDay(ctx, a.Date)
		if err != nil {
			return err
		}
		u, err := usage(ctx, tx, a.Date, &a.ID)
		if err != nil {
			return err
		}
		blocks := int(slot.End-slot.Start) / schedule.BlockMinutes
		if err := schedule.CheckDentist(day, u, cmd.DentistID, slot.Start, blocks); err != nil {
			return err
		}

		prev = a.DentistScheduleID
		target := cmd.DentistID
		a.DentistScheduleID = &target
		if err := tx.UpdateDentist(ctx, a); err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		s.metrics.ReassignmentsTotal.WithLabelValues("rejected").Inc()
		span.RecordError(err)
		return nil, err
	}

	s.metrics.ReassignmentsTotal.WithLabelValues("reassigned").Inc()
	s.publish(ctx, events.TypeDentistReassigned, updated)
	from := ""
	if prev != nil {
		from = prev.String()
	}
	s.auditSvc.LogAsync(ctx, actor.audit(domain.ActionReassign, "appointment", updated.ID.String(),
		fmt.Sprintf(`{"dentist_schedule_id":{"from":%q,"to":%q}}`, from, cmd.DentistID)))
	s.log.Info("appointment dentist reassigned",
		zap.String("appointment_id", updated.ID.String()),
		zap.String("from", from),
		zap.String("to", cmd.DentistID.String()),
	)
	return updated, nil
}

func (s *AppointmentService) publish(ctx context.Context, t events.Type, a *appointment.Appointment) {
	s.publisher.Publish(ctx, events.Event{
		Type:          t,
		AppointmentID: a.ID,
		PatientID:     a.PatientID,
		DentistID:     a.DentistScheduleID,
		Date:          a.Date.Format(schedule.DateLayout),
		TimeSlot:      a.TimeSlot,
		Status:        string(a.Status),
		OccurredAt:    time.Now().UTC(),
	})
}
