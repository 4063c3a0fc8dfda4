package usage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("usage period not found")
)

// Store is the persistence contract for usage metering.
//
// ApplyUsage must be atomic against concurrent completions for the same
// tenant/period: implementations increment with a single storage-level
// operation, never a read-modify-write pair. It must also de-duplicate
// by call id so a call's usage is only ever counted once.
//
// CapAndBlock is an idempotent clamp: counters are reduced to at most
// the given limits and the period marked blocked. Because it clamps
// rather than assigns, racing with a concurrent increment still ends at
// exactly the limit.
type Store interface {
	ApplyUsage(ctx context.Context, req ApplyUsageRequest) (period UsagePeriod, applied bool, err error)
	CapAndBlock(ctx context.Context, tenantID string, periodStart time.Time, callLimit, minuteLimit int, now time.Time) (UsagePeriod, error)
	SetOverage(ctx context.Context, tenantID string, periodStart time.Time, overageMinutes int, overageAmountMinor int64, now time.Time) error
	CurrentPeriod(ctx context.Context, tenantID string, now time.Time) (UsagePeriod, bool, error)
	GetPlan(ctx context.Context, tenantID string) (Plan, bool, error)
}

// ApplyUsageRequest describes one completed call's usage increment.
type ApplyUsageRequest struct {
	TenantID string

	// CallID de-duplicates replayed recordings; empty skips dedup.
	CallID string

	AddCalls   int
	AddMinutes int

	// PeriodStart/PeriodEnd define the period to lazily create when the
	// tenant has no period covering Now.
	PeriodStart time.Time
	PeriodEnd   time.Time

	Now time.Time
}
