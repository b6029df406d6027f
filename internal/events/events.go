// Package events publishes booking lifecycle notifications for downstream
// collaborators (reminders, billing). Delivery is best effort.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeBooked            Type = "appointment.booked"
	TypeStatusChanged     Type = "appointment.status_changed"
	TypeDentistReassigned Type = "appointment.dentist_reassigned"
)

type Event struct {
	Type          Type       `json:"type"`
	AppointmentID uuid.UUID  `json:"appointment_id"`
	PatientID     uuid.UUID  `json:"patient_id"`
	DentistID     *uuid.UUID `json:"dentist_id,omitempty"`
	Date          string     `json:"date"`
	TimeSlot      string     `json:"time_slot"`
	Status        string     `json:"status"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

type Publisher interface {
	// Publish enqueues e without blocking on the broker.
	Publish(ctx context.Context, e Event)
	Close() error
}

// NopPublisher discards events. Used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}

func (NopPublisher) Close() error { return nil }
