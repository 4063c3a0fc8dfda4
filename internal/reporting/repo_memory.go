package reporting

import (
	"context"
	"errors"
	"sync"
	"time"

	"receptionist-platform/internal/calls"
	"receptionist-platform/internal/invocations"
)

// MemoryRepo is a simple in-memory reporting repository for tests and early development.
// It enforces tenant isolation on reads.

type MemoryRepo struct {
	mu sync.Mutex

	Sessions    []calls.CallSession
	Invocations []invocations.Record
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) ListSessions(ctx context.Context, tenantID string, from, to time.Time) ([]calls.CallSession, error) {
	if tenantID == "" {
		return nil, errors.New("tenant_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]calls.CallSession, 0)
	for _, c := range r.Sessions {
		if c.TenantID != tenantID {
			continue
		}
		if !c.CreatedAt.IsZero() {
			if c.CreatedAt.Before(from) || !c.CreatedAt.Before(to) {
				continue
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *MemoryRepo) ListInvocations(ctx context.Context, tenantID string, from, to time.Time) ([]invocations.Record, error) {
	if tenantID == "" {
		return nil, errors.New("tenant_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]invocations.Record, 0)
	for _, rec := range r.Invocations {
		if rec.TenantID != tenantID {
			continue
		}
		if !rec.CreatedAt.IsZero() {
			if rec.CreatedAt.Before(from) || !rec.CreatedAt.Before(to) {
				continue
			}
		}
		out = append(out, rec)
	}
	return out, nil
}
