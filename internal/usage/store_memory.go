package usage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store useful for tests.
type MemoryStore struct {
	mu      sync.Mutex
	periods []UsagePeriod
	events  map[string]bool // tenantID + "/" + callID
	plans   map[string]Plan
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[string]bool), plans: make(map[string]Plan)}
}

// SetPlan registers a tenant plan (test helper).
func (s *MemoryStore) SetPlan(p Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[p.TenantID] = p
}

// SeedPeriod installs a pre-existing period (test helper).
func (s *MemoryStore) SeedPeriod(p UsagePeriod) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	s.periods = append(s.periods, p)
}

func (s *MemoryStore) ApplyUsage(ctx context.Context, req ApplyUsageRequest) (UsagePeriod, bool, error) {
	if req.TenantID == "" || req.AddCalls < 0 || req.AddMinutes < 0 {
		return UsagePeriod{}, false, ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.CallID != "" {
		key := req.TenantID + "/" + req.CallID
		if s.events[key] {
			if i := s.findCurrent(req.TenantID, req.Now); i >= 0 {
				return s.periods[i], false, nil
			}
			return UsagePeriod{}, false, ErrNotFound
		}
		s.events[key] = true
	}

	i := s.findCurrent(req.TenantID, req.Now)
	if i < 0 {
		s.periods = append(s.periods, UsagePeriod{
			ID:          uuid.NewString(),
			TenantID:    req.TenantID,
			PeriodStart: req.PeriodStart,
			PeriodEnd:   req.PeriodEnd,
			CreatedAt:   req.Now,
			UpdatedAt:   req.Now,
		})
		i = len(s.periods) - 1
	}
	s.periods[i].CallCount += req.AddCalls
	s.periods[i].MinutesUsed += req.AddMinutes
	s.periods[i].UpdatedAt = req.Now
	return s.periods[i], true, nil
}

func (s *MemoryStore) CapAndBlock(ctx context.Context, tenantID string, periodStart time.Time, callLimit, minuteLimit int, now time.Time) (UsagePeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.periods {
		p := &s.periods[i]
		if p.TenantID == tenantID && p.PeriodStart.Equal(periodStart) {
			if p.CallCount > callLimit {
				p.CallCount = callLimit
			}
			if p.MinutesUsed > minuteLimit {
				p.MinutesUsed = minuteLimit
			}
			p.Blocked = true
			p.UpdatedAt = now
			return *p, nil
		}
	}
	return UsagePeriod{}, ErrNotFound
}

func (s *MemoryStore) SetOverage(ctx context.Context, tenantID string, periodStart time.Time, overageMinutes int, overageAmountMinor int64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.periods {
		p := &s.periods[i]
		if p.TenantID == tenantID && p.PeriodStart.Equal(periodStart) {
			p.OverageMinutes = overageMinutes
			p.OverageAmountMinor = overageAmountMinor
			p.UpdatedAt = now
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) CurrentPeriod(ctx context.Context, tenantID string, now time.Time) (UsagePeriod, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.findCurrent(tenantID, now); i >= 0 {
		return s.periods[i], true, nil
	}
	// Most recent period, so expired trials remain visible.
	best := -1
	for i, p := range s.periods {
		if p.TenantID != tenantID {
			continue
		}
		if best < 0 || p.PeriodStart.After(s.periods[best].PeriodStart) {
			best = i
		}
	}
	if best < 0 {
		return UsagePeriod{}, false, nil
	}
	return s.periods[best], true, nil
}

func (s *MemoryStore) GetPlan(ctx context.Context, tenantID string) (Plan, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[tenantID]
	return p, ok, nil
}

func (s *MemoryStore) findCurrent(tenantID string, now time.Time) int {
	for i, p := range s.periods {
		if p.TenantID == tenantID && !p.PeriodStart.After(now) && p.PeriodEnd.After(now) {
			return i
		}
	}
	return -1
}
