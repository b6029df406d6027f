package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	ListServices(ctx context.Context, activeOnly bool) ([]*Service, error)
	// GetService returns ErrServiceNotFound when missing.
	GetService(ctx context.Context, id uuid.UUID) (*Service, error)
	// CreateService returns ErrServiceCodeTaken on a duplicate code.
	CreateService(ctx context.Context, s *Service) error

	// PromosOn returns every promo whose range includes date.
	PromosOn(ctx context.Context, date time.Time) ([]*Promo, error)
	CreatePromo(ctx context.Context, p *Promo) error
}
