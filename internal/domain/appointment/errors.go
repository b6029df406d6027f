package appointment

import (
	"errors"
	"fmt"

	"github.com/dcms/dentflow/internal/domain/schedule"
)

var (
	ErrAppointmentNotFound     = errors.New("appointment not found")
	ErrInvalidStatus           = errors.New("invalid appointment status")
	ErrInvalidStatusTransition = errors.New("invalid appointment status transition")
	ErrNotReassignable         = errors.New("appointment dentist can no longer be changed")
	ErrInvalidPaymentMethod    = errors.New("invalid payment method")

	// ErrBookingRaceLost is returned when the write-time critical section could
	// not be entered or was serialized out. Clients treat it as a full slot.
	ErrBookingRaceLost = fmt.Errorf("booking lost a concurrent race: %w", schedule.ErrSlotFull)
)
