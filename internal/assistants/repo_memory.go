package assistants

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo is an in-memory Repository useful for tests.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]*Assistant // external id
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]*Assistant)}
}

func (r *MemoryRepo) Upsert(ctx context.Context, a *Assistant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := r.byID[a.ExternalID]; ok {
		a.ID = existing.ID
		a.CreatedAt = existing.CreatedAt
	} else {
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	cp := *a
	r.byID[a.ExternalID] = &cp
	return nil
}

func (r *MemoryRepo) GetByExternalID(ctx context.Context, externalID string) (*Assistant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[externalID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *MemoryRepo) ListByTenant(ctx context.Context, tenantID string) ([]Assistant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Assistant
	for _, a := range r.byID {
		if a.TenantID == tenantID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *MemoryRepo) Deactivate(ctx context.Context, tenantID, externalID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[externalID]
	if !ok || a.TenantID != tenantID {
		return ErrNotFound
	}
	a.Active = false
	a.UpdatedAt = time.Now().UTC()
	return nil
}
