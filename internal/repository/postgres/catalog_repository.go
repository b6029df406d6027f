package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dcms/dentflow/internal/domain/catalog"
	"github.com/dcms/dentflow/internal/domain/schedule"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CatalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) ListServices(ctx context.Context, activeOnly bool) ([]*catalog.Service, error) {
	q := r.db.WithContext(ctx).Order("code")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var out []*catalog.Service
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing services: %w", err)
	}
	return out, nil
}

func (r *CatalogRepository) GetService(ctx context.Context, id uuid.UUID) (*catalog.Service, error) {
	var s catalog.Service
	err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, catalog.ErrServiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading service: %w", err)
	}
	return &s, nil
}

func (r *CatalogRepository) CreateService(ctx context.Context, s *catalog.Service) error {
	err := r.db.WithContext(ctx).Create(s).Error
	if isUniqueViolation(err) {
		return catalog.ErrServiceCodeTaken
	}
	if err != nil {
		return fmt.Errorf("inserting service: %w", err)
	}
	return nil
}

func (r *CatalogRepository) PromosOn(ctx context.Context, date time.Time) ([]*catalog.Promo, error) {
	d := schedule.DateOf(date)
	var out []*catalog.Promo
	err := r.db.WithContext(ctx).
		Where("starts_on <= ? AND ends_on >= ?", d, d).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("listing promos: %w", err)
	}
	return out, nil
}

func (r *CatalogRepository) CreatePromo(ctx context.Context, p *catalog.Promo) error {
	if _, err := r.GetService(ctx, p.ServiceID); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("inserting promo: %w", err)
	}
	return nil
}
