package invocations

import (
	"context"
	"sync"
)

// MemoryRepo is a simple in-memory append-only repository useful for tests.
type MemoryRepo struct {
	mu   sync.Mutex
	rows []Record

	// FailAppend simulates a persistence failure.
	FailAppend error
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(ctx context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailAppend != nil {
		return r.FailAppend
	}
	r.rows = append(r.rows, rec)
	return nil
}

func (r *MemoryRepo) ListByCall(ctx context.Context, tenantID, externalCallID string) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Record
	for _, rec := range r.rows {
		if rec.TenantID == tenantID && rec.ExternalCallID == externalCallID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Rows returns a copy of all records (test helper).
func (r *MemoryRepo) Rows() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.rows))
	copy(out, r.rows)
	return out
}
