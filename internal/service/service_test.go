package service

import (
	"context"
	"testing"
	"time"

	"github.com/dcms/dentflow/internal/domain"
	"github.com/dcms/dentflow/internal/domain/catalog"
	"github.com/dcms/dentflow/internal/domain/patient"
	"github.com/dcms/dentflow/internal/domain/schedule"
	"github.com/dcms/dentflow/internal/repository/memory"
	"github.com/dcms/dentflow/pkg/idempotency"
	"github.com/dcms/dentflow/pkg/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var (
	// Sunday; the clinic is closed on Sundays in the fixture.
	sunday = time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	monday = sunday.AddDate(0, 0, 1)

	dentistA = uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	dentistB = uuid.MustParse("00000000-0000-0000-0000-00000000000b")
)

type fixture struct {
	store   *memory.Store
	sched   *SchedulingService
	catalog *CatalogService
	appts   *AppointmentService
	audit   *AuditService
	reg     *prometheus.Registry

	cleaning uuid.UUID // 30 minutes
	crown    uuid.UUID // 60 minutes
	staff    Actor
}

func clk(s string) *schedule.Clock {
	c := schedule.MustClock(s)
	return &c
}

func everyDay() schedule.WeeklyHours {
	var w schedule.WeeklyHours
	for i := range w {
		w[i].Working = true
	}
	return w
}

// newFixture seeds a clinic open Monday 08:00-17:00 with the given capacity
// and dentists A and B working every day. The clock reads Sunday 08:00.
func newFixture(t *testing.T, capacity int) *fixture {
	t.Helper()
	ctx := context.Background()
	log := zap.NewNop()
	reg := prometheus.NewRegistry()
	m := metrics.NewCollector("dentflow-test", reg)

	store := memory.NewStore(2 * time.Second)
	auditSvc := NewAuditService(store.Audit(), m, log)
	t.Cleanup(auditSvc.Shutdown)

	f := &fixture{store: store, audit: auditSvc, reg: reg}
	f.staff = Actor{UserID: uuid.New(), Role: domain.RoleStaff}

	if err := store.Schedule().UpsertWeeklySchedule(ctx, &schedule.WeeklySchedule{
		Weekday: int(time.Monday), IsOpen: true,
		OpenTime: clk("08:00"), CloseTime: clk("17:00"), Capacity: capacity,
	}); err != nil {
		t.Fatal(err)
	}
	for i, id := range []uuid.UUID{dentistA, dentistB} {
		d := &schedule.Dentist{ID: id, Code: string(rune('A' + i)), Name: "Dr " + string(rune('A'+i)), Status: schedule.DentistActive, Week: everyDay()}
		if err := store.Schedule().CreateDentist(ctx, d); err != nil {
			t.Fatal(err)
		}
	}

	cleaning := &catalog.Service{Code: "CLEAN", Name: "Cleaning", EstimatedMinutes: 30, Price: 50, IsActive: true}
	crown := &catalog.Service{Code: "CROWN", Name: "Crown", EstimatedMinutes: 60, Price: 400, IsActive: true}
	for _, svc := range []*catalog.Service{cleaning, crown} {
		if err := store.Catalog().CreateService(ctx, svc); err != nil {
			t.Fatal(err)
		}
	}
	f.cleaning, f.crown = cleaning.ID, crown.ID

	policy := BookingPolicy{Location: time.UTC, MaxAdvanceDays: 60}
	f.sched = NewSchedulingService(store.Schedule(), store.Appointments(), store.Catalog(), auditSvc, m, policy, log)
	f.setNow(sunday.Add(8 * time.Hour))
	f.catalog = NewCatalogService(store.Catalog(), store.Appointments(), f.sched, auditSvc, log)
	f.appts = NewAppointmentService(AppointmentDeps{
		Appointments: store.Appointments(),
		Patients:     store.Patients(),
		Scheduling:   f.sched,
		Catalog:      f.catalog,
		Idempotency:  idempotency.NewMemoryStore(),
		Audit:        auditSvc,
		Metrics:      m,
		Log:          log,
	})
	return f
}

func (f *fixture) setNow(now time.Time) {
	f.sched.now = func() time.Time { return now }
}

func (f *fixture) patient(t *testing.T) Actor {
	t.Helper()
	p := &patient.Patient{FirstName: "Pat", LastName: uuid.NewString()[:8], Status: patient.StatusActive, CreatedBy: f.staff.UserID}
	if err := f.store.Patients().Create(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	id := p.ID
	return Actor{UserID: uuid.New(), Role: domain.RolePatient, PatientID: &id}
}
