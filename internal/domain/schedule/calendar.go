package schedule

import (
	"bytes"
	"slices"
	"time"

	"github.com/google/uuid"
)

// WeeklySchedule is the clinic template for one weekday.
type WeeklySchedule struct {
	Weekday   int       `gorm:"column:weekday;primaryKey;autoIncrement:false"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	IsOpen    bool   `gorm:"column:is_open;not null;default:false"`
	OpenTime  *Clock `gorm:"column:open_time;type:varchar(5)"`
	CloseTime *Clock `gorm:"column:close_time;type:varchar(5)"`
	Capacity  int    `gorm:"column:capacity;not null;default:0"`
}

func (WeeklySchedule) TableName() string {
	return "scheduling.clinic_weekly_schedules"
}

// CalendarOverride replaces the weekly template for one date. Nil fields
// inherit from the template; a nil DentistIDs list applies no filter.
type CalendarOverride struct {
	Date      time.Time `gorm:"column:date;type:date;primaryKey"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	IsOpen     *bool       `gorm:"column:is_open"`
	OpenTime   *Clock      `gorm:"column:open_time;type:varchar(5)"`
	CloseTime  *Clock      `gorm:"column:close_time;type:varchar(5)"`
	Capacity   *int        `gorm:"column:capacity"`
	DentistIDs []uuid.UUID `gorm:"column:dentist_ids;type:jsonb;serializer:json"`
	Note       string      `gorm:"column:note;type:text"`
}

func (CalendarOverride) TableName() string {
	return "scheduling.clinic_calendar_overrides"
}

// ClinicDay is the resolved snapshot for one date. It is computed per query and
// never persisted.
type ClinicDay struct {
	Date     time.Time
	IsOpen   bool
	Hours    Window
	Capacity int
	// Dentists working that date, ascending by ID.
	Dentists []*Dentist

	grid   []Clock
	onGrid map[Clock]struct{}
}

// ResolveDay combines the weekly template, an optional override and the dentist
// roster into the snapshot for date. A nil template means the weekday is closed.
func ResolveDay(date time.Time, tmpl *WeeklySchedule, ov *CalendarOverride, roster []*Dentist) *ClinicDay {
	day := &ClinicDay{Date: DateOf(date)}

	var open, closing *Clock
	if tmpl != nil {
		day.IsOpen = tmpl.IsOpen
		open, closing = tmpl.OpenTime, tmpl.CloseTime
		day.Capacity = tmpl.Capacity
	}
	if ov != nil {
		if ov.IsOpen != nil {
			day.IsOpen = *ov.IsOpen
		}
		if ov.OpenTime != nil {
			open = ov.OpenTime
		}
		if ov.CloseTime != nil {
			closing = ov.CloseTime
		}
		if ov.Capacity != nil {
			day.Capacity = *ov.Capacity
		}
	}
	if day.Capacity < 0 {
		day.Capacity = 0
	}
	if open == nil || closing == nil || *open >= *closing {
		day.IsOpen = false
	}
	if !day.IsOpen {
		day.grid = []Clock{}
		day.onGrid = map[Clock]struct{}{}
		return day
	}
	day.Hours = Window{Start: *open, End: *closing}

	var allowed map[uuid.UUID]struct{}
	if ov != nil && ov.DentistIDs != nil {
		allowed = make(map[uuid.UUID]struct{}, len(ov.DentistIDs))
		for _, id := range ov.DentistIDs {
			allowed[id] = struct{}{}
		}
	}
	for _, d := range roster {
		if !d.IsWorking(day.Date) {
			continue
		}
		if allowed != nil {
			if _, ok := allowed[d.ID]; !ok {
				continue
			}
		}
		day.Dentists = append(day.Dentists, d)
	}
	slices.SortFunc(day.Dentists, func(a, b *Dentist) int {
		return bytes.Compare(a.ID[:], b.ID[:])
	})

	day.grid = BuildBlocks(day.Hours.Start, day.Hours.End)
	day.onGrid = make(map[Clock]struct{}, len(day.grid))
	for _, b := range day.grid {
		day.onGrid[b] = struct{}{}
	}
	return day
}

// Grid returns the ordered bookable block starts for the day.
func (d *ClinicDay) Grid() []Clock {
	return d.grid
}

func (d *ClinicDay) OnGrid(b Clock) bool {
	_, ok := d.onGrid[b]
	return ok
}

func (d *ClinicDay) ActiveDentistIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(d.Dentists))
	for i, dt := range d.Dentists {
		ids[i] = dt.ID
	}
	return ids
}

// Dentist returns the dentist if they are working this day.
func (d *ClinicDay) Dentist(id uuid.UUID) (*Dentist, bool) {
	for _, dt := range d.Dentists {
		if dt.ID == id {
			return dt, true
		}
	}
	return nil, false
}

func (d *ClinicDay) EffectiveHours(dt *Dentist) Window {
	return dt.EffectiveHours(d.Date, d.Hours)
}

// contiguousRun returns the run of n blocks from start, or false when any block
// is off the grid. Runs straddling lunch or closing are rejected, never truncated.
func (d *ClinicDay) contiguousRun(start Clock, n int) ([]Clock, bool) {
	if !d.IsOpen || n <= 0 {
		return nil, false
	}
	run := Run(start, n)
	for _, b := range run {
		if !d.OnGrid(b) {
			return nil, false
		}
	}
	return run, true
}

// covers reports whether every block of run lies within w.
func covers(w Window, run []Clock) bool {
	for _, b := range run {
		if !w.Contains(b) {
			return false
		}
	}
	return true
}

type UpsertWeeklyCommand struct {
	Weekday   time.Weekday
	IsOpen    bool
	OpenTime  *Clock
	CloseTime *Clock
	Capacity  int
}

type UpsertOverrideCommand struct {
	Date       time.Time
	IsOpen     *bool
	OpenTime   *Clock
	CloseTime  *Clock
	Capacity   *int
	DentistIDs []uuid.UUID
	Note       string
}
