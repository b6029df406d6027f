package memory

import (
	"context"

	"github.com/dcms/dentflow/internal/domain"
	"github.com/google/uuid"
)

type AuditRepo struct {
	s *Store
}

func (r *AuditRepo) Create(_ context.Context, entry *domain.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	r.s.stamp(&entry.OccurredAt, nil)
	cp := *entry
	r.s.audit = append(r.s.audit, &cp)
	return nil
}

// Entries returns a snapshot of every stored audit entry.
func (r *AuditRepo) Entries() []domain.AuditLog {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.AuditLog, len(r.s.audit))
	for i, e := range r.s.audit {
		out[i] = *e
	}
	return out
}
