package appointment

import (
	"time"

	"github.com/dcms/dentflow/internal/domain/schedule"
	"github.com/google/uuid"
)

// State transitions possibilities:
//
//	pending → approved → completed
//	pending → rejected
//	pending → cancelled
//	approved → cancelled
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// OccupiesCapacity reports whether a booking in this status holds its blocks.
// Pending bookings count so that nothing is overbooked while awaiting approval.
func (s Status) OccupiesCapacity() bool {
	switch s {
	case StatusPending, StatusApproved, StatusCompleted:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentCash      PaymentMethod = "cash"
	PaymentCard      PaymentMethod = "card"
	PaymentInsurance PaymentMethod = "insurance"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentInsurance:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

type Appointment struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	PatientID uuid.UUID `gorm:"column:patient_id;type:uuid;not null;index"`
	ServiceID uuid.UUID `gorm:"column:service_id;type:uuid;not null;index"`

	Date     time.Time `gorm:"column:date;type:date;not null;index"`
	TimeSlot string    `gorm:"column:time_slot;type:varchar(11);not null"`
	Status   Status    `gorm:"column:status;type:varchar(20);not null;default:'pending';index"`

	// Nil until a dentist has been assigned.
	DentistScheduleID     *uuid.UUID `gorm:"column:dentist_schedule_id;type:uuid;index"`
	HonorPreferredDentist bool       `gorm:"column:honor_preferred_dentist;not null;default:false"`

	PaymentMethod PaymentMethod `gorm:"column:payment_method;type:varchar(20);not null"`
	PaymentStatus PaymentStatus `gorm:"column:payment_status;type:varchar(20);not null;default:'unpaid'"`
	Price         float64       `gorm:"column:price;type:numeric(10,2);not null;default:0"`
	Notes         string        `gorm:"column:notes;type:text"`

	// Cancellation / rejection tracking
	CancelledAt        *time.Time `gorm:"column:cancelled_at"`
	CancellationReason string     `gorm:"column:cancellation_reason;type:text"`
	CancelledBy        *uuid.UUID `gorm:"column:cancelled_by;type:uuid"`

	ApprovedAt  *time.Time `gorm:"column:approved_at"`
	CompletedAt *time.Time `gorm:"column:completed_at"`

	CreatedBy uuid.UUID `gorm:"column:created_by;type:uuid;not null"`
}

func (Appointment) TableName() string {
	return "scheduling.appointments"
}

// Slot parses the stored "HH:MM-HH:MM" time slot.
func (a *Appointment) Slot() (schedule.Window, error) {
	return schedule.ParseTimeSlot(a.TimeSlot)
}

// StartsAt is the visit start in the clinic's location.
func (a *Appointment) StartsAt(loc *time.Location) (time.Time, error) {
	w, err := a.Slot()
	if err != nil {
		return time.Time{}, err
	}
	return w.Start.On(a.Date, loc), nil
}

func (a *Appointment) CanTransitionTo(next Status) bool {
	allowed := map[Status][]Status{
		StatusPending:   {StatusApproved, StatusRejected, StatusCancelled},
		StatusApproved:  {StatusCompleted, StatusCancelled},
		StatusRejected:  {},
		StatusCancelled: {},
		StatusCompleted: {},
	}

	for _, s := range allowed[a.Status] {
		if s == next {
			return true
		}
	}
	return false
}

// Transition applies a status change and stamps the matching bookkeeping fields.
func (a *Appointment) Transition(next Status, reason string, actor uuid.UUID, now time.Time) error {
	if !next.IsValid() {
		return ErrInvalidStatus
	}
	if !a.CanTransitionTo(next) {
		return ErrInvalidStatusTransition
	}
	switch next {
	case StatusApproved:
		a.ApprovedAt = &now
	case StatusCompleted:
		a.CompletedAt = &now
	case StatusCancelled, StatusRejected:
		a.CancelledAt = &now
		a.CancellationReason = reason
		a.CancelledBy = &actor
		if a.PaymentStatus == PaymentPaid {
			a.PaymentStatus = PaymentRefunded
		}
	}
	a.Status = next
	return nil
}

// Reassignable reports whether the dentist may still be changed at now.
func (a *Appointment) Reassignable(now time.Time, loc *time.Location) bool {
	if a.Status != StatusPending && a.Status != StatusApproved {
		return false
	}
	start, err := a.StartsAt(loc)
	if err != nil {
		return false
	}
	return now.Before(start)
}

// Occupancies reduces bookings to usage input, skipping those that no longer
// hold capacity. Rows with an unparsable slot are skipped.
func Occupancies(list []*Appointment) []schedule.Occupancy {
	out := make([]schedule.Occupancy, 0, len(list))
	for _, a := range list {
		if !a.Status.OccupiesCapacity() {
			continue
		}
		w, err := a.Slot()
		if err != nil {
			continue
		}
		out = append(out, schedule.Occupancy{BookingID: a.ID, DentistID: a.DentistScheduleID, Slot: w})
	}
	return out
}

type BookCommand struct {
	PatientID             uuid.UUID
	ServiceID             uuid.UUID
	Date                  time.Time
	StartTime             schedule.Clock
	HonorPreferredDentist bool
	PaymentMethod         PaymentMethod
	Notes                 string
	IdempotencyKey        string
}

type ChangeStatusCommand struct {
	Status Status
	Reason string
}

type ReassignCommand struct {
	DentistID uuid.UUID
}

type ListAppointmentsQuery struct {
	PatientID *uuid.UUID
	DentistID *uuid.UUID
	Status    *Status
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
}

type PagedAppointments struct {
	Appointments []*Appointment
	TotalCount   int64
	Page         int
	PageSize     int
	TotalPages   int
}
