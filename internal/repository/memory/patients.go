package memory

import (
	"context"

	"github.com/dcms/dentflow/internal/domain/patient"
	"github.com/google/uuid"
)

type patientRepo struct {
	s *Store
}

func (r *patientRepo) Create(_ context.Context, p *patient.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p.Phone != "" {
		for _, existing := range r.s.patients {
			if existing.Phone == p.Phone {
				return patient.ErrPatientAlreadyExists
			}
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	r.s.stamp(&p.CreatedAt, &p.UpdatedAt)
	cp := *p
	r.s.patients[p.ID] = &cp
	return nil
}

func (r *patientRepo) GetByID(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.patients[id]
	if !ok {
		return nil, patient.ErrPatientNotFound
	}
	cp := *p
	return &cp, nil
}
