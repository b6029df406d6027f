package schedule

import (
	"time"

	"github.com/google/uuid"
)

type DentistStatus string

const (
	DentistActive   DentistStatus = "active"
	DentistInactive DentistStatus = "inactive"
)

func (s DentistStatus) IsValid() bool {
	return s == DentistActive || s == DentistInactive
}

// WorkDay is one weekday of a dentist's template. Start and End must be set
// together; a partial pair means "no custom hours".
type WorkDay struct {
	Working bool   `json:"working"`
	Start   *Clock `json:"start,omitempty"`
	End     *Clock `json:"end,omitempty"`
}

// WeeklyHours is indexed by time.Weekday (Sunday = 0).
type WeeklyHours [7]WorkDay

func (w WeeklyHours) Day(d time.Weekday) WorkDay {
	return w[d]
}

// Validate checks every fully configured custom window. Containment within
// clinic hours is not checked.
func (w WeeklyHours) Validate() error {
	for _, day := range w {
		if day.Start == nil || day.End == nil {
			continue
		}
		win := Window{Start: *day.Start, End: *day.End}
		if !win.Valid() || int(win.Start)%BlockMinutes != 0 || int(win.End)%BlockMinutes != 0 {
			return ErrInvalidHours
		}
	}
	return nil
}

type Dentist struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	Code   string        `gorm:"column:code;type:varchar(30);uniqueIndex;not null"`
	Name   string        `gorm:"column:name;type:varchar(150);not null"`
	Status DentistStatus `gorm:"column:status;type:varchar(20);not null;default:'active';index"`

	Week WeeklyHours `gorm:"column:weekly_hours;type:jsonb;serializer:json;not null"`
}

func (Dentist) TableName() string {
	return "scheduling.dentist_schedules"
}

// IsWorking is true when the weekday flag is set and the dentist is active.
func (d *Dentist) IsWorking(date time.Time) bool {
	return d.Status == DentistActive && d.Week.Day(date.Weekday()).Working
}

// HoursFor returns the dentist's custom window for date, or false when the
// dentist works full clinic hours that day.
func (d *Dentist) HoursFor(date time.Time) (Window, bool) {
	day := d.Week.Day(date.Weekday())
	if day.Start == nil || day.End == nil {
		return Window{}, false
	}
	return Window{Start: *day.Start, End: *day.End}, true
}

// EffectiveHours resolves the window that applies on date given clinic hours.
func (d *Dentist) EffectiveHours(date time.Time, clinic Window) Window {
	if w, ok := d.HoursFor(date); ok {
		return w
	}
	return clinic
}

type CreateDentistCommand struct {
	Code   string
	Name   string
	Status DentistStatus
	Week   WeeklyHours
}

type UpdateDentistCommand struct {
	Name   *string
	Status *DentistStatus
	Week   *WeeklyHours
}
