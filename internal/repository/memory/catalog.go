package memory

import (
	"context"
	"sort"
	"time"

	"github.com/dcms/dentflow/internal/domain/catalog"
	"github.com/google/uuid"
)

type catalogRepo struct {
	s *Store
}

func (r *catalogRepo) ListServices(_ context.Context, activeOnly bool) ([]*catalog.Service, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*catalog.Service, 0, len(r.s.services))
	for _, svc := range r.s.services {
		if activeOnly && !svc.IsActive {
			continue
		}
		cp := *svc
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *catalogRepo) GetService(_ context.Context, id uuid.UUID) (*catalog.Service, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	svc, ok := r.s.services[id]
	if !ok {
		return nil, catalog.ErrServiceNotFound
	}
	cp := *svc
	return &cp, nil
}

func (r *catalogRepo) CreateService(_ context.Context, svc *catalog.Service) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.services {
		if existing.Code == svc.Code {
			return catalog.ErrServiceCodeTaken
		}
	}
	if svc.ID == uuid.Nil {
		svc.ID = uuid.New()
	}
	r.s.stamp(&svc.CreatedAt, &svc.UpdatedAt)
	cp := *svc
	r.s.services[svc.ID] = &cp
	return nil
}

func (r *catalogRepo) PromosOn(_ context.Context, date time.Time) ([]*catalog.Promo, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*catalog.Promo
	for _, p := range r.s.promos {
		if p.Covers(date) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *catalogRepo) CreatePromo(_ context.Context, p *catalog.Promo) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.services[p.ServiceID]; !ok {
		return catalog.ErrServiceNotFound
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	r.s.stamp(&p.CreatedAt, nil)
	cp := *p
	r.s.promos = append(r.s.promos, &cp)
	return nil
}
