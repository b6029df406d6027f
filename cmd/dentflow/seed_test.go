package main

import (
	"context"
	"testing"
	"time"

	"github.com/dcms/dentflow/internal/repository/memory"
)

func TestSeedDemo(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(time.Second)
	repos := &repositories{
		appointments: store.Appointments(),
		schedules:    store.Schedule(),
		catalog:      store.Catalog(),
		patients:     store.Patients(),
		audit:        store.Audit(),
	}
	if err := seedDemo(ctx, repos); err != nil {
		t.Fatalf("seedDemo: %v", err)
	}

	sunday, err := store.Schedule().WeeklySchedule(ctx, time.Sunday)
	if err != nil {
		t.Fatal(err)
	}
	if sunday.IsOpen {
		t.Error("sunday should be closed")
	}
	dentists, err := store.Schedule().ListDentists(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(dentists) != len(demoDentistIDs) {
		t.Errorf("got %d dentists, want %d", len(dentists), len(demoDentistIDs))
	}
	if _, err := store.Patients().GetByID(ctx, demoPatientID); err != nil {
		t.Errorf("demo patient missing: %v", err)
	}
}
