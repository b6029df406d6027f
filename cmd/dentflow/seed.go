package main

import (
	"context"
	"time"

	"github.com/dcms/dentflow/internal/domain/catalog"
	"github.com/dcms/dentflow/internal/domain/patient"
	"github.com/dcms/dentflow/internal/domain/schedule"
	"github.com/google/uuid"
)

// Fixed IDs so tokens minted with `dentflow token` keep working across restarts.
var (
	demoPatientID  = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	demoDentistIDs = []uuid.UUID{
		uuid.MustParse("00000000-0000-0000-0000-0000000000d1"),
		uuid.MustParse("00000000-0000-0000-0000-0000000000d2"),
	}
)

func clock(s string) *schedule.Clock {
	c := schedule.MustClock(s)
	return &c
}

// seedDemo loads a two-dentist clinic open Monday to Saturday.
func seedDemo(ctx context.Context, repos *repositories) error {
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		ws := &schedule.WeeklySchedule{Weekday: int(wd)}
		switch wd {
		case time.Sunday:
		case time.Saturday:
			ws.IsOpen, ws.OpenTime, ws.CloseTime, ws.Capacity = true, clock("08:00"), clock("13:00"), 1
		default:
			ws.IsOpen, ws.OpenTime, ws.CloseTime, ws.Capacity = true, clock("08:00"), clock("17:00"), 2
		}
		if err := repos.schedules.UpsertWeeklySchedule(ctx, ws); err != nil {
			return err
		}
	}

	var week schedule.WeeklyHours
	for wd := time.Monday; wd <= time.Saturday; wd++ {
		week[wd].Working = true
	}
	afternoons := week
	for wd := time.Monday; wd <= time.Friday; wd++ {
		afternoons[wd].Start, afternoons[wd].End = clock("12:00"), clock("17:00")
	}
	dentists := []*schedule.Dentist{
		{ID: demoDentistIDs[0], Code: "DR-ADAMS", Name: "Dr. Adams", Status: schedule.DentistActive, Week: week},
		{ID: demoDentistIDs[1], Code: "DR-BAKER", Name: "Dr. Baker", Status: schedule.DentistActive, Week: afternoons},
	}
	for _, d := range dentists {
		if err := repos.schedules.CreateDentist(ctx, d); err != nil {
			return err
		}
	}

	cleaning := &catalog.Service{Code: "CLEAN", Name: "Cleaning", EstimatedMinutes: 30, Price: 60, IsActive: true}
	filling := &catalog.Service{Code: "FILL", Name: "Filling", EstimatedMinutes: 60, Price: 150, IsActive: true}
	for _, svc := range []*catalog.Service{cleaning, filling} {
		if err := repos.catalog.CreateService(ctx, svc); err != nil {
			return err
		}
	}
	checkup := &catalog.Service{
		Code: "FILL-CHECK", Name: "Filling check-up", EstimatedMinutes: 30, Price: 40, IsActive: true,
		FollowUpOf: &filling.ID, FollowUpWindowDays: 30,
	}
	if err := repos.catalog.CreateService(ctx, checkup); err != nil {
		return err
	}

	return repos.patients.Create(ctx, &patient.Patient{
		ID:        demoPatientID,
		FirstName: "Demo",
		LastName:  "Patient",
		Phone:     "+10000000000",
		Status:    patient.StatusActive,
		CreatedBy: uuid.Nil,
	})
}
