package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dcms/dentflow/internal/domain"
	"github.com/dcms/dentflow/internal/domain/patient"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PatientService struct {
	repo     patient.Repository
	auditSvc *AuditService
	log      *zap.Logger
}

func NewPatientService(repo patient.Repository, auditSvc *AuditService, log *zap.Logger) *PatientService {
	return &PatientService{
		repo:     repo,
		auditSvc: auditSvc,
		log:      log,
	}
}

func (s *PatientService) RegisterPatient(ctx context.Context, cmd *patient.CreatePatientCommand, actor Actor) (*patient.Patient, error) {
	if err := validateCreatePatient(cmd); err != nil {
		return nil, err
	}

	p := &patient.Patient{
		FirstName:   strings.TrimSpace(cmd.FirstName),
		LastName:    strings.TrimSpace(cmd.LastName),
		DateOfBirth: cmd.DateOfBirth,
		Phone:       strings.TrimSpace(cmd.Phone),
		Email:       strings.ToLower(strings.TrimSpace(cmd.Email)),
		Notes:       cmd.Notes,
		Status:      patient.StatusActive,
		CreatedBy:   actor.UserID,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		if errors.Is(err, patient.ErrPatientAlreadyExists) {
			return nil, err
		}
		s.log.Error("failed to create patient", zap.Error(err))
		return nil, fmt.Errorf("creating patient: %w", err)
	}

	s.auditSvc.LogAsync(ctx, actor.audit(domain.ActionCreate, "patient", p.ID.String(), ""))

	s.log.Info("patient registered",
		zap.String("patient_id", p.ID.String()),
		zap.String("created_by", actor.UserID.String()),
	)

	return p, nil
}

func (s *PatientService) GetPatient(ctx context.Context, id uuid.UUID, actor Actor) (*patient.Patient, error) {
	// RBAC: patients can only read their own record
	if actor.Role == domain.RolePatient && !actor.ownsPatient(id) {
		return nil, ErrForbidden
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.auditSvc.LogAsync(ctx, actor.audit(domain.ActionRead, "patient", id.String(), ""))
	return p, nil
}

func validateCreatePatient(cmd *patient.CreatePatientCommand) error {
	var errs []string

	if strings.TrimSpace(cmd.FirstName) == "" {
		errs = append(errs, "first_name is required")
	}
	if strings.TrimSpace(cmd.LastName) == "" {
		errs = append(errs, "last_name is required")
	}
	if strings.TrimSpace(cmd.Phone) == "" {
		errs = append(errs, "phone is required")
	}
	if cmd.DateOfBirth != nil && cmd.DateOfBirth.After(time.Now()) {
		errs = append(errs, patient.ErrInvalidDateOfBirth.Error())
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
