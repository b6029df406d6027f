package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dcms/dentflow/internal/domain/appointment"
	"github.com/dcms/dentflow/internal/domain/schedule"
	"github.com/dcms/dentflow/pkg/idempotency"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func bookCmd(serviceID uuid.UUID, date time.Time, start string) *appointment.BookCommand {
	return &appointment.BookCommand{
		ServiceID:     serviceID,
		Date:          date,
		StartTime:     schedule.MustClock(start),
		PaymentMethod: appointment.PaymentCash,
	}
}

func TestBook_AssignsDentistsInOrderUntilFull(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	want := []uuid.UUID{dentistA, dentistB}
	for i, id := range want {
		a, replayed, err := f.appts.Book(ctx, bookCmd(f.cleaning, monday, "09:00"), f.patient(t))
		if err != nil {
			t.Fatalf("booking %d: %v", i, err)
		}
		if replayed {
			t.Errorf("booking %d reported as replay", i)
		}
		if a.DentistScheduleID == nil || *a.DentistScheduleID != id {
			t.Errorf("booking %d dentist = %v, want %s", i, a.DentistScheduleID, id)
		}
		if a.TimeSlot != "09:00-09:30" || a.Status != appointment.StatusPending {
			t.Errorf("booking %d = %s %s", i, a.TimeSlot, a.Status)
		}
	}

	_, _, err := f.appts.Book(ctx, bookCmd(f.cleaning, monday, "09:00"), f.patient(t))
	var full *schedule.SlotFullError
	if !errors.As(err, &full) || full.Start != schedule.MustClock("09:00") {
		t.Fatalf("third booking err = %v, want slot full at 09:00", err)
	}
	if got := testutil.ToFloat64(f.appts.metrics.BookingsTotal.WithLabelValues("slot_full")); got != 1 {
		t.Errorf("slot_full outcome = %v, want 1", got)
	}
}

func TestBook_ConcurrentRequestsNeverOverbook(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	const n = 8
	actors := make([]Actor, n)
	for i := range actors {
		actors[i] = f.patient(t)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ok   int
		errs []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(actor Actor) {
			defer wg.Done()
			_, _, err := f.appts.Book(ctx, bookCmd(f.crown, monday, "10:00"), actor)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
				return
			}
			errs = append(errs, err)
		}(actors[i])
	}
	wg.Wait()

	if ok != 1 {
		t.Fatalf("%d bookings succeeded for a single seat, want 1", ok)
	}
	for _, err := range errs {
		if !errors.Is(err, schedule.ErrSlotFull) {
			t.Errorf("losing request err = %v, want ErrSlotFull", err)
		}
	}

	live, err := f.store.Appointments().ListActiveByDate(ctx, monday)
	if err != nil {
		t.Fatal(err)
	}
	if len(live) != 1 {
		t.Errorf("%d live bookings on the date, want 1", len(live))
	}
}

func TestBook_HonorsPreferredDentist(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	pat := f.patient(t)

	// An earlier visit with B makes B the preferred dentist.
	prev := &appointment.Appointment{
		PatientID: *pat.PatientID, ServiceID: f.cleaning,
		Date: monday.AddDate(0, 0, -14), TimeSlot: "09:00-09:30",
		Status: appointment.StatusCompleted, DentistScheduleID: &dentistB,
	}
	if err := f.store.Appointments().Create(ctx, prev); err != nil {
		t.Fatal(err)
	}

	cmd := bookCmd(f.cleaning, monday, "11:00")
	cmd.HonorPreferredDentist = true
	a, _, err := f.appts.Book(ctx, cmd, pat)
	if err != nil {
		t.Fatal(err)
	}
	if *a.DentistScheduleID != dentistB {
		t.Errorf("dentist = %s, want preferred %s", a.DentistScheduleID, dentistB)
	}

	a, _, err = f.appts.Book(ctx, bookCmd(f.cleaning, monday, "14:00"), pat)
	if err != nil {
		t.Fatal(err)
	}
	if *a.DentistScheduleID != dentistA {
		t.Errorf("without honoring the first free dentist must be chosen, got %s", a.DentistScheduleID)
	}
}

func TestBook_StartAndDateRules(t *testing.T) {
	tests := []struct {
		name    string
		now     time.Time
		date    time.Time
		start   string
		service func(f *fixture) uuid.UUID
		staff   bool
		wantErr error
	}{
		{"past date", sunday.Add(8 * time.Hour), sunday.AddDate(0, 0, -6), "09:00", cleaning, true, schedule.ErrInvalidDate},
		{"patient same day", monday.Add(8 * time.Hour), monday, "15:00", cleaning, false, schedule.ErrInvalidDate},
		{"staff same day start passed", monday.Add(10 * time.Hour), monday, "09:30", cleaning, true, schedule.ErrInvalidStartTime},
		{"beyond booking horizon", sunday.Add(8 * time.Hour), monday.AddDate(0, 0, 63), "09:00", cleaning, true, schedule.ErrInvalidDate},
		{"off grid", sunday.Add(8 * time.Hour), monday, "09:15", cleaning, false, schedule.ErrInvalidStartTime},
		{"lunch block", sunday.Add(8 * time.Hour), monday, "12:00", cleaning, false, schedule.ErrInvalidStartTime},
		{"run straddles lunch", sunday.Add(8 * time.Hour), monday, "11:30", crown, false, schedule.ErrInvalidStartTime},
		{"run past closing", sunday.Add(8 * time.Hour), monday, "16:30", crown, false, schedule.ErrInvalidStartTime},
		{"clinic closed", sunday.Add(8 * time.Hour), monday.AddDate(0, 0, 6), "09:00", cleaning, false, schedule.ErrClinicClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 2)
			f.setNow(tt.now)
			actor := f.patient(t)
			cmd := bookCmd(tt.service(f), tt.date, tt.start)
			if tt.staff {
				cmd.PatientID = *actor.PatientID
				actor = f.staff
			}
			_, _, err := f.appts.Book(context.Background(), cmd, actor)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func cleaning(f *fixture) uuid.UUID { return f.cleaning }
func crown(f *fixture) uuid.UUID    { return f.crown }

func TestBook_StaffSameDayFutureStart(t *testing.T) {
	f := newFixture(t, 2)
	f.setNow(monday.Add(10 * time.Hour))
	pat := f.patient(t)

	cmd := bookCmd(f.cleaning, monday, "10:30")
	cmd.PatientID = *pat.PatientID
	if _, _, err := f.appts.Book(context.Background(), cmd, f.staff); err != nil {
		t.Fatalf("staff same-day booking: %v", err)
	}
}

func TestBook_Validation(t *testing.T) {
	f := newFixture(t, 2)
	cmd := bookCmd(uuid.Nil, monday, "09:00")
	cmd.PaymentMethod = "bitcoin"

	_, _, err := f.appts.Book(context.Background(), cmd, f.patient(t))
	var ve *ValidationError
	if !errors.As(err, &ve) || len(ve.Fields) != 2 {
		t.Fatalf("err = %v, want two field errors", err)
	}

	// Dentists cannot book.
	_, _, err = f.appts.Book(context.Background(), bookCmd(f.cleaning, monday, "09:00"), Actor{UserID: uuid.New(), Role: "dentist"})
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("dentist booking err = %v, want ErrForbidden", err)
	}
}

func TestBook_IdempotencyKeyReplaysOriginal(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	pat := f.patient(t)

	cmd := bookCmd(f.cleaning, monday, "09:00")
	cmd.IdempotencyKey = "k-1"
	first, _, err := f.appts.Book(ctx, cmd, pat)
	if err != nil {
		t.Fatal(err)
	}

	again := bookCmd(f.cleaning, monday, "09:00")
	again.IdempotencyKey = "k-1"
	second, replayed, err := f.appts.Book(ctx, again, pat)
	if err != nil {
		t.Fatal(err)
	}
	if !replayed || second.ID != first.ID {
		t.Errorf("replay = %v id = %s, want replay of %s", replayed, second.ID, first.ID)
	}

	live, _ := f.store.Appointments().ListActiveByDate(ctx, monday)
	if len(live) != 1 {
		t.Errorf("%d bookings stored, want 1", len(live))
	}
	if got := testutil.ToFloat64(f.appts.metrics.IdempotentReplays); got != 1 {
		t.Errorf("replays = %v, want 1", got)
	}
}

func TestBook_FailedRequestReleasesKey(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	store := idempotency.NewMemoryStore()
	f.appts.idem = store

	// Fill the only seat so the keyed request fails.
	if _, _, err := f.appts.Book(ctx, bookCmd(f.cleaning, monday, "09:00"), f.patient(t)); err != nil {
		t.Fatal(err)
	}

	pat := f.patient(t)
	cmd := bookCmd(f.cleaning, monday, "09:00")
	cmd.IdempotencyKey = "retry-me"
	if _, _, err := f.appts.Book(ctx, cmd, pat); !errors.Is(err, schedule.ErrSlotFull) {
		t.Fatalf("err = %v, want ErrSlotFull", err)
	}

	retry := bookCmd(f.cleaning, monday, "09:30")
	retry.IdempotencyKey = "retry-me"
	a, replayed, err := f.appts.Book(ctx, retry, pat)
	if err != nil || replayed {
		t.Fatalf("retry after failure: replayed=%v err=%v", replayed, err)
	}
	if a.TimeSlot != "09:30-10:00" {
		t.Errorf("time slot = %s", a.TimeSlot)
	}
}

func TestChangeStatus_PatientMayOnlyCancelOwn(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	pat := f.patient(t)

	a, _, err := f.appts.Book(ctx, bookCmd(f.cleaning, monday, "09:00"), pat)
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.appts.ChangeStatus(ctx, a.ID, &appointment.ChangeStatusCommand{Status: appointment.StatusApproved}, pat)
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("patient approve err = %v, want ErrForbidden", err)
	}

	_, err = f.appts.ChangeStatus(ctx, a.ID, &appointment.ChangeStatusCommand{Status: appointment.StatusCancelled, Reason: "x"}, f.patient(t))
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("other patient cancel err = %v, want ErrForbidden", err)
	}

	_, err = f.appts.ChangeStatus(ctx, a.ID, &appointment.ChangeStatusCommand{Status: appointment.StatusCancelled}, pat)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("cancel without reason err = %v, want ValidationError", err)
	}

	got, err := f.appts.ChangeStatus(ctx, a.ID, &appointment.ChangeStatusCommand{Status: appointment.StatusCancelled, Reason: "travelling"}, pat)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != appointment.StatusCancelled || got.CancelledBy == nil || *got.CancelledBy != pat.UserID {
		t.Errorf("cancellation not recorded: %+v", got)
	}

	// The released seat is bookable again.
	live, _ := f.store.Appointments().ListActiveByDate(ctx, monday)
	if len(live) != 0 {
		t.Errorf("cancelled booking still holds capacity")
	}
}

func TestChangeStatus_StaffLifecycle(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	a, _, err := f.appts.Book(ctx, bookCmd(f.cleaning, monday, "09:00"), f.patient(t))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.appts.ChangeStatus(ctx, a.ID, &appointment.ChangeStatusCommand{Status: appointment.StatusApproved}, f.staff); err != nil {
		t.Fatal(err)
	}
	if _, err := f.appts.ChangeStatus(ctx, a.ID, &appointment.ChangeStatusCommand{Status: appointment.StatusRejected, Reason: "late"}, f.staff); !errors.Is(err, appointment.ErrInvalidStatusTransition) {
		t.Errorf("approved -> rejected err = %v", err)
	}
	got, err := f.appts.ChangeStatus(ctx, a.ID, &appointment.ChangeStatusCommand{Status: appointment.StatusCompleted}, f.staff)
	if err != nil {
		t.Fatal(err)
	}
	if got.CompletedAt == nil {
		t.Error("completed_at not stamped")
	}
	if v := testutil.ToFloat64(f.appts.metrics.StatusChangesTotal.WithLabelValues("completed")); v != 1 {
		t.Errorf("completed changes = %v", v)
	}
}

func TestReassign(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	first, _, err := f.appts.Book(ctx, bookCmd(f.crown, monday, "09:00"), f.patient(t))
	if err != nil {
		t.Fatal(err)
	}
	if *first.DentistScheduleID != dentistA {
		t.Fatalf("setup: first booking went to %s", first.DentistScheduleID)
	}

	got, err := f.appts.Reassign(ctx, first.ID, &appointment.ReassignCommand{DentistID: dentistB}, f.staff)
	if err != nil {
		t.Fatal(err)
	}
	if *got.DentistScheduleID != dentistB {
		t.Errorf("dentist = %s, want %s", got.DentistScheduleID, dentistB)
	}

	// A now takes a booking overlapping the second block; moving back must fail.
	other, _, err := f.appts.Book(ctx, bookCmd(f.cleaning, monday, "09:30"), f.patient(t))
	if err != nil {
		t.Fatal(err)
	}
	if *other.DentistScheduleID != dentistA {
		t.Fatalf("setup: overlapping booking went to %s", other.DentistScheduleID)
	}
	if _, err := f.appts.Reassign(ctx, first.ID, &appointment.ReassignCommand{DentistID: dentistA}, f.staff); !errors.Is(err, schedule.ErrSlotFull) {
		t.Errorf("reassign onto busy dentist err = %v, want ErrSlotFull", err)
	}

	// Reassigning to the dentist already holding it is a no-op that passes.
	if _, err := f.appts.Reassign(ctx, first.ID, &appointment.ReassignCommand{DentistID: dentistB}, f.staff); err != nil {
		t.Errorf("reassign to current dentist: %v", err)
	}

	if _, err := f.appts.Reassign(ctx, first.ID, &appointment.ReassignCommand{DentistID: uuid.New()}, f.staff); !errors.Is(err, schedule.ErrNoDentistAvailable) {
		t.Errorf("unknown dentist err = %v, want ErrNoDentistAvailable", err)
	}

	f.setNow(monday.Add(9 * time.Hour))
	if _, err := f.appts.Reassign(ctx, first.ID, &appointment.ReassignCommand{DentistID: dentistA}, f.staff); !errors.Is(err, appointment.ErrNotReassignable) {
		t.Errorf("reassign after start err = %v, want ErrNotReassignable", err)
	}
}

func TestListAppointments_PatientSeesOwnOnly(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	alice, bob := f.patient(t), f.patient(t)

	for _, who := range []Actor{alice, alice, bob} {
		start := "09:00"
		if who.PatientID == alice.PatientID {
			start = "10:00"
		}
		if _, _, err := f.appts.Book(ctx, bookCmd(f.cleaning, monday, start), who); err != nil {
			t.Fatal(err)
		}
	}

	page, err := f.appts.ListAppointments(ctx, &appointment.ListAppointmentsQuery{PatientID: bob.PatientID}, alice)
	if err != nil {
		t.Fatal(err)
	}
	if page.TotalCount != 2 || page.PageSize != 20 {
		t.Errorf("alice sees %d bookings (page size %d), want 2", page.TotalCount, page.PageSize)
	}
	for _, a := range page.Appointments {
		if a.PatientID != *alice.PatientID {
			t.Errorf("leaked booking of patient %s", a.PatientID)
		}
	}

	all, err := f.appts.ListAppointments(ctx, &appointment.ListAppointmentsQuery{PageSize: 500}, f.staff)
	if err != nil {
		t.Fatal(err)
	}
	if all.TotalCount != 3 || all.PageSize != 100 {
		t.Errorf("staff list = %d (page size %d)", all.TotalCount, all.PageSize)
	}

	if _, err := f.appts.GetAppointment(ctx, page.Appointments[0].ID, bob); !errors.Is(err, appointment.ErrAppointmentNotFound) {
		t.Errorf("cross-patient get err = %v, want not found", err)
	}
}

// interleavingRepo runs between once, right after the first GetByID outside
// the date lock returns, to stand in for a concurrent request.
type interleavingRepo struct {
	appointment.Repository
	fired   atomic.Bool
	between func()
}

func (r *interleavingRepo) GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	a, err := r.Repository.GetByID(ctx, id)
	if err == nil && r.fired.CompareAndSwap(false, true) {
		r.between()
	}
	return a, err
}

func TestChangeStatus_StaleApproveCannotReviveRejectedBooking(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	first, _, err := f.appts.Book(ctx, bookCmd(f.cleaning, monday, "09:00"), f.patient(t))
	if err != nil {
		t.Fatal(err)
	}

	var rebookErr, rejectErr error
	repo := &interleavingRepo{Repository: f.store.Appointments()}
	repo.between = func() {
		_, rejectErr = f.appts.ChangeStatus(ctx, first.ID, &appointment.ChangeStatusCommand{Status: appointment.StatusRejected, Reason: "duplicate"}, f.staff)
		_, _, rebookErr = f.appts.Book(ctx, bookCmd(f.cleaning, monday, "09:00"), f.patient(t))
	}
	f.appts.repo = repo

	_, err = f.appts.ChangeStatus(ctx, first.ID, &appointment.ChangeStatusCommand{Status: appointment.StatusApproved}, f.staff)
	if rejectErr != nil || rebookErr != nil {
		t.Fatalf("interleaved reject = %v, rebook = %v", rejectErr, rebookErr)
	}
	if !errors.Is(err, appointment.ErrInvalidStatusTransition) {
		t.Fatalf("stale approve err = %v, want ErrInvalidStatusTransition", err)
	}

	got, err := f.store.Appointments().GetByID(ctx, first.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != appointment.StatusRejected || got.CancelledAt == nil {
		t.Errorf("first booking = %s (cancelled_at set %v), want rejected", got.Status, got.CancelledAt != nil)
	}
	live, _ := f.store.Appointments().ListActiveByDate(ctx, monday)
	if len(live) != 1 {
		t.Errorf("%d live bookings at 09:00, capacity is 1", len(live))
	}
}

func TestChangeStatus_ConcurrentTransitionsApplyOnce(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	a, _, err := f.appts.Book(ctx, bookCmd(f.cleaning, monday, "09:00"), f.patient(t))
	if err != nil {
		t.Fatal(err)
	}

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []appointment.Status
	)
	for i := 0; i < workers; i++ {
		cmd := &appointment.ChangeStatusCommand{Status: appointment.StatusApproved}
		if i%2 == 1 {
			cmd = &appointment.ChangeStatusCommand{Status: appointment.StatusRejected, Reason: "clash"}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.appts.ChangeStatus(ctx, a.ID, cmd, f.staff)
			if err == nil {
				mu.Lock()
				winners = append(winners, cmd.Status)
				mu.Unlock()
				return
			}
			if !errors.Is(err, appointment.ErrInvalidStatusTransition) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(winners) != 1 {
		t.Fatalf("%d transitions applied, want exactly 1", len(winners))
	}
	got, _ := f.store.Appointments().GetByID(ctx, a.ID)
	if got.Status != winners[0] {
		t.Errorf("stored status = %s, winner = %s", got.Status, winners[0])
	}

	// Whatever won, the block never holds more than its capacity.
	_, _, err = f.appts.Book(ctx, bookCmd(f.cleaning, monday, "09:00"), f.patient(t))
	live, _ := f.store.Appointments().ListActiveByDate(ctx, monday)
	if len(live) != 1 {
		t.Errorf("%d live bookings at 09:00 (rebook err %v), capacity is 1", len(live), err)
	}
}
