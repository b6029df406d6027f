package service

import (
	"errors"
	"net"
	"strings"

	"github.com/dcms/dentflow/internal/domain"
	"github.com/google/uuid"
)

var ErrForbidden = errors.New("forbidden: insufficient permissions")

type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID    uuid.UUID
	Role      domain.Role
	PatientID *uuid.UUID
	DentistID *uuid.UUID
	IP        string
	RequestID string
}

// ownsPatient reports whether a patient-role actor is acting on their own record.
func (a Actor) ownsPatient(patientID uuid.UUID) bool {
	return a.PatientID != nil && *a.PatientID == patientID
}

type AuditEntry struct {
	UserID       uuid.UUID
	UserRole     domain.Role
	Action       domain.AuditAction
	ResourceType string
	ResourceID   string
	IPAddress    string
	RequestID    string
	Changes      string
}

func (a Actor) audit(action domain.AuditAction, resource, id, changes string) AuditEntry {
	ip := a.IP
	if parsed := net.ParseIP(ip); parsed == nil {
		ip = ""
	}
	return AuditEntry{
		UserID:       a.UserID,
		UserRole:     a.Role,
		Action:       action,
		ResourceType: resource,
		ResourceID:   id,
		IPAddress:    ip,
		RequestID:    a.RequestID,
		Changes:      changes,
	}
}
