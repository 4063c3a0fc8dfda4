package bookings

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository useful for tests.
type MemoryRepo struct {
	mu   sync.Mutex
	rows []BookingRecord

	// FailInsert simulates a persistence failure.
	FailInsert error
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Insert(ctx context.Context, b BookingRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailInsert != nil {
		return r.FailInsert
	}
	r.rows = append(r.rows, b)
	return nil
}

func (r *MemoryRepo) BackfillCallID(ctx context.Context, tenantID, externalCallID, callID string, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	linked := 0
	for i, b := range r.rows {
		if b.TenantID == tenantID && b.ExternalCallID == externalCallID && b.CallID == nil {
			id := callID
			r.rows[i].CallID = &id
			r.rows[i].UpdatedAt = now
			linked++
		}
	}
	return linked, nil
}

func (r *MemoryRepo) ListByTenant(ctx context.Context, tenantID string, from, to time.Time) ([]BookingRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []BookingRecord
	for _, b := range r.rows {
		if b.TenantID != tenantID {
			continue
		}
		if b.CreatedAt.Before(from) || !b.CreatedAt.Before(to) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// Rows returns a copy of the stored records (test helper).
func (r *MemoryRepo) Rows() []BookingRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]BookingRecord, len(r.rows))
	copy(out, r.rows)
	return out
}
