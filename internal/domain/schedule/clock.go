package schedule

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

const (
	// BlockMinutes is the atomic unit of scheduling.
	BlockMinutes = 30
	BlockLength  = BlockMinutes * time.Minute

	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// Lunch is a process-wide constant: blocks starting in [12:00, 13:00) are never bookable.
const (
	LunchStart Clock = 12 * 60
	LunchEnd   Clock = 13 * 60
)

// Clock is a time of day in minutes since midnight, rendered as "HH:MM".
type Clock int

func NewClock(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	// Postgres time columns come back as HH:MM:SS.
	if len(s) == len("15:04:05") {
		s = s[:5]
	}
	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return NewClock(t.Hour(), t.Minute()), nil
}

func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// Add returns the clock n blocks later.
func (c Clock) Add(blocks int) Clock {
	return c + Clock(blocks*BlockMinutes)
}

// On places the clock on the given calendar date in loc.
func (c Clock) On(date time.Time, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, c.Hour(), c.Minute(), 0, 0, loc)
}

func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Clock) UnmarshalText(text []byte) error {
	parsed, err := ParseClock(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c Clock) Value() (driver.Value, error) {
	return c.String(), nil
}

func (c *Clock) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return c.UnmarshalText([]byte(v))
	case []byte:
		return c.UnmarshalText(v)
	case time.Time:
		*c = NewClock(v.Hour(), v.Minute())
		return nil
	default:
		return fmt.Errorf("%w: cannot scan %T", ErrInvalidClock, src)
	}
}

// Window is a half-open [Start, End) range of the day.
type Window struct {
	Start Clock `json:"start"`
	End   Clock `json:"end"`
}

func (w Window) Valid() bool {
	return w.Start < w.End
}

// Contains reports whether a full block starting at b fits inside the window.
func (w Window) Contains(b Clock) bool {
	return b >= w.Start && b.Add(1) <= w.End
}

func (w Window) String() string {
	return w.Start.String() + "-" + w.End.String()
}

// ParseTimeSlot parses the "HH:MM-HH:MM" booking notation.
func ParseTimeSlot(s string) (Window, error) {
	start, end, ok := strings.Cut(s, "-")
	if !ok {
		return Window{}, fmt.Errorf("%w: time slot %q", ErrInvalidClock, s)
	}
	w := Window{}
	var err error
	if w.Start, err = ParseClock(start); err != nil {
		return Window{}, err
	}
	if w.End, err = ParseClock(end); err != nil {
		return Window{}, err
	}
	if !w.Valid() {
		return Window{}, fmt.Errorf("%w: time slot %q ends before it starts", ErrInvalidClock, s)
	}
	return w, nil
}

// DurationBlocks converts a service's estimated minutes to a block count, rounding up.
func DurationBlocks(estimatedMinutes int) int {
	if estimatedMinutes <= 0 {
		return 1
	}
	return (estimatedMinutes + BlockMinutes - 1) / BlockMinutes
}

// ParseDate parses a YYYY-MM-DD calendar date, normalised to midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// DateOf strips the time-of-day and location, keeping the calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
