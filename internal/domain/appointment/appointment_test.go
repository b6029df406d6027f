package appointment

import (
	"errors"
	"testing"
	"time"

	"github.com/dcms/dentflow/internal/domain/schedule"
	"github.com/google/uuid"
)

func TestTransition(t *testing.T) {
	actor := uuid.New()
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		from    Status
		to      Status
		wantErr error
	}{
		{StatusPending, StatusApproved, nil},
		{StatusPending, StatusRejected, nil},
		{StatusPending, StatusCancelled, nil},
		{StatusApproved, StatusCompleted, nil},
		{StatusApproved, StatusCancelled, nil},
		{StatusPending, StatusCompleted, ErrInvalidStatusTransition},
		{StatusCancelled, StatusApproved, ErrInvalidStatusTransition},
		{StatusCompleted, StatusCancelled, ErrInvalidStatusTransition},
		{StatusPending, Status("no_show"), ErrInvalidStatus},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			a := &Appointment{Status: tt.from}
			err := a.Transition(tt.to, "reason", actor, now)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Transition() error = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				if a.Status != tt.from {
					t.Errorf("status changed on failure: %s", a.Status)
				}
				return
			}
			if a.Status != tt.to {
				t.Errorf("status = %s, want %s", a.Status, tt.to)
			}
		})
	}
}

func TestTransition_CancelRecordsActorAndRefund(t *testing.T) {
	actor := uuid.New()
	now := time.Now()
	a := &Appointment{Status: StatusApproved, PaymentStatus: PaymentPaid}
	if err := a.Transition(StatusCancelled, "patient request", actor, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.CancelledBy == nil || *a.CancelledBy != actor || a.CancellationReason != "patient request" {
		t.Errorf("cancellation not recorded: %+v", a)
	}
	if a.PaymentStatus != PaymentRefunded {
		t.Errorf("payment status = %s, want refunded", a.PaymentStatus)
	}
}

func TestOccupancies_SkipsReleasedBookings(t *testing.T) {
	dentist := uuid.New()
	list := []*Appointment{
		{ID: uuid.New(), Status: StatusPending, TimeSlot: "09:00-09:30"},
		{ID: uuid.New(), Status: StatusApproved, TimeSlot: "09:30-10:30", DentistScheduleID: &dentist},
		{ID: uuid.New(), Status: StatusCompleted, TimeSlot: "08:00-08:30", DentistScheduleID: &dentist},
		{ID: uuid.New(), Status: StatusCancelled, TimeSlot: "09:00-09:30", DentistScheduleID: &dentist},
		{ID: uuid.New(), Status: StatusRejected, TimeSlot: "09:00-09:30"},
		{ID: uuid.New(), Status: StatusApproved, TimeSlot: "garbage"},
	}

	occ := Occupancies(list)
	if len(occ) != 3 {
		t.Fatalf("got %d occupancies, want 3", len(occ))
	}

	usage := schedule.BuildUsage(occ)
	if got := usage.Count(schedule.MustClock("09:00")); got != 1 {
		t.Errorf("global count at 09:00 = %d, want 1", got)
	}
	if !usage.DentistBusy(dentist, schedule.MustClock("10:00")) {
		t.Error("approved booking must occupy its dentist through 10:00")
	}
	if usage.DentistBusy(dentist, schedule.MustClock("09:00")) {
		t.Error("cancelled booking must not occupy the dentist")
	}
}

func TestReassignable(t *testing.T) {
	date := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	a := &Appointment{Status: StatusApproved, Date: date, TimeSlot: "10:00-10:30"}

	before := time.Date(2026, 10, 19, 9, 59, 0, 0, time.UTC)
	after := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	if !a.Reassignable(before, time.UTC) {
		t.Error("expected reassignable before the visit starts")
	}
	if a.Reassignable(after, time.UTC) {
		t.Error("expected not reassignable once the visit started")
	}

	a.Status = StatusCancelled
	if a.Reassignable(before, time.UTC) {
		t.Error("cancelled booking must not be reassignable")
	}
}
