package schedule

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidClock       = errors.New("invalid time of day")
	ErrClinicClosed       = errors.New("clinic is closed on this date")
	ErrInvalidStartTime   = errors.New("invalid start time (not on grid or outside hours)")
	ErrSlotFull           = errors.New("time slot is already full")
	ErrNoDentistAvailable = errors.New("no dentists are available at this time")

	ErrDentistNotFound  = errors.New("dentist schedule not found")
	ErrDentistCodeTaken = errors.New("dentist code is already in use")
	ErrInvalidHours     = errors.New("working hours must start before they end and align to 30-minute blocks")
	ErrInvalidWeekday   = errors.New("weekday must be between 0 (sunday) and 6 (saturday)")
	ErrInvalidCapacity  = errors.New("capacity cannot be negative")
)

// SlotFullError names the start that could not be booked. It matches ErrSlotFull.
type SlotFullError struct {
	Start Clock
}

func (e *SlotFullError) Error() string {
	return fmt.Sprintf("time slot starting at %s is already full", e.Start)
}

func (e *SlotFullError) Is(target error) bool {
	return target == ErrSlotFull
}
