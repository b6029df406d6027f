package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Create returns ErrPatientAlreadyExists on a duplicate phone number.
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
}
