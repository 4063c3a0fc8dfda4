package calls

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository useful for tests.
// It is not intended for production use.
type MemoryRepo struct {
	mu       sync.Mutex
	sessions map[string]CallSession // key: tenantID + "/" + externalID
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{sessions: make(map[string]CallSession)}
}

func (r *MemoryRepo) CreateIfAbsent(ctx context.Context, s CallSession) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := s.TenantID + "/" + s.ExternalID
	if _, ok := r.sessions[key]; ok {
		return false, nil
	}
	r.sessions[key] = s
	return true, nil
}

func (r *MemoryRepo) GetByExternalID(ctx context.Context, tenantID, externalID string) (CallSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[tenantID+"/"+externalID]; ok {
		return s, nil
	}
	return CallSession{}, ErrNotFound
}

func (r *MemoryRepo) Update(ctx context.Context, s CallSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, cur := range r.sessions {
		if cur.ID == s.ID {
			r.sessions[key] = s
			return nil
		}
	}
	return ErrNotFound
}

func (r *MemoryRepo) UpdateRawPayload(ctx context.Context, id, raw string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, cur := range r.sessions {
		if cur.ID == id {
			cur.RawPayload = raw
			cur.UpdatedAt = now
			r.sessions[key] = cur
			return nil
		}
	}
	return ErrNotFound
}

func (r *MemoryRepo) ListByTenant(ctx context.Context, tenantID string, from, to time.Time) ([]CallSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []CallSession
	for _, s := range r.sessions {
		if s.TenantID != tenantID {
			continue
		}
		if s.StartedAt.Before(from) || !s.StartedAt.Before(to) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// Count reports the number of stored sessions (test helper).
func (r *MemoryRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
