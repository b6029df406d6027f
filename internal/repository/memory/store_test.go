package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dcms/dentflow/internal/domain/appointment"
	"github.com/dcms/dentflow/internal/domain/schedule"
	"github.com/google/uuid"
)

var monday = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

func TestWithDateLock_DiscardsWritesOnError(t *testing.T) {
	ctx := context.Background()
	repo := NewStore(time.Second).Appointments()

	boom := errors.New("slot check failed")
	err := repo.WithDateLock(ctx, monday, func(tx appointment.Repository) error {
		if err := tx.Create(ctx, &appointment.Appointment{Date: monday, TimeSlot: "09:00-09:30", Status: appointment.StatusPending}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	live, _ := repo.ListActiveByDate(ctx, monday)
	if len(live) != 0 {
		t.Errorf("write leaked from a failed critical section: %d rows", len(live))
	}

	err = repo.WithDateLock(ctx, monday, func(tx appointment.Repository) error {
		return tx.Create(ctx, &appointment.Appointment{Date: monday, TimeSlot: "09:00-09:30", Status: appointment.StatusPending})
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	live, _ = repo.ListActiveByDate(ctx, monday)
	if len(live) != 1 {
		t.Errorf("expected committed booking, got %d", len(live))
	}
}

func TestWithDateLock_TimesOutWhileHeld(t *testing.T) {
	ctx := context.Background()
	repo := NewStore(20 * time.Millisecond).Appointments()

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = repo.WithDateLock(ctx, monday, func(appointment.Repository) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	err := repo.WithDateLock(ctx, monday, func(appointment.Repository) error { return nil })
	if !errors.Is(err, appointment.ErrBookingRaceLost) || !errors.Is(err, schedule.ErrSlotFull) {
		t.Errorf("err = %v, want ErrBookingRaceLost", err)
	}

	// Other dates are not blocked.
	if err := repo.WithDateLock(ctx, monday.AddDate(0, 0, 1), func(appointment.Repository) error { return nil }); err != nil {
		t.Errorf("different date blocked: %v", err)
	}
	close(release)
}

func TestLatestAssignedDentist(t *testing.T) {
	ctx := context.Background()
	store := NewStore(time.Second)
	repo := store.Appointments()
	patientID := uuid.New()
	older, newer, cancelled := uuid.New(), uuid.New(), uuid.New()

	rows := []*appointment.Appointment{
		{PatientID: patientID, Date: monday.AddDate(0, 0, -10), TimeSlot: "09:00-09:30", Status: appointment.StatusCompleted, DentistScheduleID: &older},
		{PatientID: patientID, Date: monday.AddDate(0, 0, -3), TimeSlot: "09:00-09:30", Status: appointment.StatusApproved, DentistScheduleID: &newer},
		{PatientID: patientID, Date: monday, TimeSlot: "09:00-09:30", Status: appointment.StatusCancelled, DentistScheduleID: &cancelled},
		{PatientID: patientID, Date: monday, TimeSlot: "10:00-10:30", Status: appointment.StatusPending},
	}
	for _, a := range rows {
		if err := repo.Create(ctx, a); err != nil {
			t.Fatal(err)
		}
	}

	got, err := repo.LatestAssignedDentist(ctx, patientID)
	if err != nil || got == nil || *got != newer {
		t.Errorf("LatestAssignedDentist = %v, %v; want %s", got, err, newer)
	}

	none, _ := repo.LatestAssignedDentist(ctx, uuid.New())
	if none != nil {
		t.Errorf("expected nil for unknown patient, got %s", none)
	}
}

func TestList_PagesAndFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewStore(time.Second).Appointments()
	patientID := uuid.New()
	for i := 0; i < 5; i++ {
		_ = repo.Create(ctx, &appointment.Appointment{PatientID: patientID, Date: monday.AddDate(0, 0, i), TimeSlot: "09:00-09:30", Status: appointment.StatusPending})
	}
	_ = repo.Create(ctx, &appointment.Appointment{PatientID: uuid.New(), Date: monday, TimeSlot: "09:00-09:30", Status: appointment.StatusPending})

	page, err := repo.List(ctx, &appointment.ListAppointmentsQuery{PatientID: &patientID, Page: 2, PageSize: 2})
	if err != nil {
		t.Fatal(err)
	}
	if page.TotalCount != 5 || page.TotalPages != 3 || len(page.Appointments) != 2 {
		t.Errorf("unexpected page: total=%d pages=%d len=%d", page.TotalCount, page.TotalPages, len(page.Appointments))
	}
	// Newest first: page 2 holds days +2 and +1.
	if !page.Appointments[0].Date.Equal(monday.AddDate(0, 0, 2)) {
		t.Errorf("first row date = %s", page.Appointments[0].Date)
	}
}

func TestUpdateStatus_RejectsStaleTransition(t *testing.T) {
	ctx := context.Background()
	repo := NewStore(time.Second).Appointments()

	a := &appointment.Appointment{Date: monday, TimeSlot: "09:00-09:30", Status: appointment.StatusPending}
	if err := repo.Create(ctx, a); err != nil {
		t.Fatal(err)
	}

	rejected, _ := repo.GetByID(ctx, a.ID)
	if err := rejected.Transition(appointment.StatusRejected, "duplicate", uuid.New(), time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpdateStatus(ctx, rejected, appointment.StatusPending); err != nil {
		t.Fatalf("first update: %v", err)
	}

	// Computed from a read taken before the reject landed.
	stale := &appointment.Appointment{ID: a.ID, Status: appointment.StatusPending}
	if err := stale.Transition(appointment.StatusApproved, "", uuid.New(), time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpdateStatus(ctx, stale, appointment.StatusPending); !errors.Is(err, appointment.ErrInvalidStatusTransition) {
		t.Fatalf("stale update err = %v, want ErrInvalidStatusTransition", err)
	}

	got, _ := repo.GetByID(ctx, a.ID)
	if got.Status != appointment.StatusRejected || got.CancelledAt == nil {
		t.Errorf("stored = %s, cancelled_at set %v", got.Status, got.CancelledAt != nil)
	}
	if err := repo.UpdateStatus(ctx, &appointment.Appointment{ID: uuid.New()}, appointment.StatusPending); !errors.Is(err, appointment.ErrAppointmentNotFound) {
		t.Errorf("missing row err = %v", err)
	}
}
