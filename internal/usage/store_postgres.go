package usage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"receptionist-platform/pkg/utils"

	"github.com/google/uuid"
)

// PostgresStore implements Store on the usage_periods, usage_call_events,
// and tenant_plans tables.
//
// Assumed constraints:
// - UNIQUE (tenant_id, period_start) on usage_periods
// - UNIQUE (tenant_id, call_id) on usage_call_events
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

func (s *PostgresStore) ApplyUsage(ctx context.Context, req ApplyUsageRequest) (UsagePeriod, bool, error) {
	if req.TenantID == "" || req.AddCalls < 0 || req.AddMinutes < 0 {
		return UsagePeriod{}, false, ErrInvalidArgument
	}

	var out UsagePeriod
	applied := false

	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		if req.CallID != "" {
			inserted, err := insertCallEvent(ctx, tx, req.TenantID, req.CallID, req.Now)
			if err != nil {
				return err
			}
			if !inserted {
				// Already counted; return the current period untouched.
				p, ok, err := currentPeriodTx(ctx, tx, req.TenantID, req.Now)
				if err != nil {
					return err
				}
				if !ok {
					return ErrNotFound
				}
				out = p
				return nil
			}
		}

		// Increment in place. The SET x = x + $d form is a single atomic
		// operation at the storage layer, not a read-modify-write pair.
		p, ok, err := incrementPeriod(ctx, tx, req.TenantID, req.AddCalls, req.AddMinutes, req.Now)
		if err != nil {
			return err
		}
		if !ok {
			// Lazily create the period, then increment. The unique index
			// arbitrates a concurrent first-usage race.
			if err := insertPeriod(ctx, tx, req); err != nil {
				return err
			}
			p, ok, err = incrementPeriod(ctx, tx, req.TenantID, req.AddCalls, req.AddMinutes, req.Now)
			if err != nil {
				return err
			}
			if !ok {
				return ErrNotFound
			}
		}
		out = p
		applied = true
		return nil
	})
	return out, applied, err
}

func (s *PostgresStore) CapAndBlock(ctx context.Context, tenantID string, periodStart time.Time, callLimit, minuteLimit int, now time.Time) (UsagePeriod, error) {
	// LEAST clamps instead of assigning, so a racing increment still
	// converges on exactly the configured limits.
	const q = `
UPDATE usage_periods
SET call_count = LEAST(call_count, $3),
    minutes_used = LEAST(minutes_used, $4),
    blocked = TRUE,
    updated_at = $5
WHERE tenant_id = $1 AND period_start = $2
RETURNING id, tenant_id, period_start, period_end, minutes_used, call_count,
          overage_minutes, overage_amount_minor, blocked, created_at, updated_at
`
	var p UsagePeriod
	err := s.db.QueryRowContext(ctx, q, tenantID, periodStart, callLimit, minuteLimit, now).Scan(
		&p.ID, &p.TenantID, &p.PeriodStart, &p.PeriodEnd, &p.MinutesUsed, &p.CallCount,
		&p.OverageMinutes, &p.OverageAmountMinor, &p.Blocked, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return UsagePeriod{}, ErrNotFound
	}
	return p, err
}

func (s *PostgresStore) SetOverage(ctx context.Context, tenantID string, periodStart time.Time, overageMinutes int, overageAmountMinor int64, now time.Time) error {
	const q = `
UPDATE usage_periods
SET overage_minutes = $3, overage_amount_minor = $4, updated_at = $5
WHERE tenant_id = $1 AND period_start = $2
`
	_, err := s.db.ExecContext(ctx, q, tenantID, periodStart, overageMinutes, overageAmountMinor, now)
	return err
}

func (s *PostgresStore) CurrentPeriod(ctx context.Context, tenantID string, now time.Time) (UsagePeriod, bool, error) {
	const q = `
SELECT id, tenant_id, period_start, period_end, minutes_used, call_count,
       overage_minutes, overage_amount_minor, blocked, created_at, updated_at
FROM usage_periods
WHERE tenant_id = $1 AND period_start <= $2 AND period_end > $2
ORDER BY period_start DESC
LIMIT 1
`
	var p UsagePeriod
	err := s.db.QueryRowContext(ctx, q, tenantID, now).Scan(
		&p.ID, &p.TenantID, &p.PeriodStart, &p.PeriodEnd, &p.MinutesUsed, &p.CallCount,
		&p.OverageMinutes, &p.OverageAmountMinor, &p.Blocked, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		// Fall back to the most recent period so an expired trial is
		// still visible to CanMakeCall.
		return s.latestPeriod(ctx, tenantID)
	}
	if err != nil {
		return UsagePeriod{}, false, err
	}
	return p, true, nil
}

func (s *PostgresStore) latestPeriod(ctx context.Context, tenantID string) (UsagePeriod, bool, error) {
	const q = `
SELECT id, tenant_id, period_start, period_end, minutes_used, call_count,
       overage_minutes, overage_amount_minor, blocked, created_at, updated_at
FROM usage_periods
WHERE tenant_id = $1
ORDER BY period_start DESC
LIMIT 1
`
	var p UsagePeriod
	err := s.db.QueryRowContext(ctx, q, tenantID).Scan(
		&p.ID, &p.TenantID, &p.PeriodStart, &p.PeriodEnd, &p.MinutesUsed, &p.CallCount,
		&p.OverageMinutes, &p.OverageAmountMinor, &p.Blocked, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return UsagePeriod{}, false, nil
	}
	if err != nil {
		return UsagePeriod{}, false, err
	}
	return p, true, nil
}

func (s *PostgresStore) GetPlan(ctx context.Context, tenantID string) (Plan, bool, error) {
	const q = `
SELECT tenant_id, type, minute_limit, overage_rate_minor
FROM tenant_plans
WHERE tenant_id = $1
`
	var p Plan
	err := s.db.QueryRowContext(ctx, q, tenantID).Scan(&p.TenantID, &p.Type, &p.MinuteLimit, &p.OverageRateMinor)
	if errors.Is(err, sql.ErrNoRows) {
		return Plan{}, false, nil
	}
	if err != nil {
		return Plan{}, false, err
	}
	return p, true, nil
}

func insertCallEvent(ctx context.Context, tx *sql.Tx, tenantID, callID string, now time.Time) (bool, error) {
	const q = `
INSERT INTO usage_call_events (tenant_id, call_id, created_at)
VALUES ($1, $2, $3)
ON CONFLICT (tenant_id, call_id) DO NOTHING
`
	res, err := tx.ExecContext(ctx, q, tenantID, callID, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func incrementPeriod(ctx context.Context, tx *sql.Tx, tenantID string, addCalls, addMinutes int, now time.Time) (UsagePeriod, bool, error) {
	const q = `
UPDATE usage_periods
SET call_count = call_count + $2,
    minutes_used = minutes_used + $3,
    updated_at = $4
WHERE tenant_id = $1 AND period_start <= $4 AND period_end > $4
RETURNING id, tenant_id, period_start, period_end, minutes_used, call_count,
          overage_minutes, overage_amount_minor, blocked, created_at, updated_at
`
	var p UsagePeriod
	err := tx.QueryRowContext(ctx, q, tenantID, addCalls, addMinutes, now).Scan(
		&p.ID, &p.TenantID, &p.PeriodStart, &p.PeriodEnd, &p.MinutesUsed, &p.CallCount,
		&p.OverageMinutes, &p.OverageAmountMinor, &p.Blocked, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return UsagePeriod{}, false, nil
	}
	if err != nil {
		return UsagePeriod{}, false, err
	}
	return p, true, nil
}

func insertPeriod(ctx context.Context, tx *sql.Tx, req ApplyUsageRequest) error {
	const q = `
INSERT INTO usage_periods (
  id, tenant_id, period_start, period_end, minutes_used, call_count,
  overage_minutes, overage_amount_minor, blocked, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,0,0,0,0,FALSE,$5,$5
)
ON CONFLICT (tenant_id, period_start) DO NOTHING
`
	_, err := tx.ExecContext(ctx, q, uuid.NewString(), req.TenantID, req.PeriodStart, req.PeriodEnd, req.Now)
	return err
}

func currentPeriodTx(ctx context.Context, tx *sql.Tx, tenantID string, now time.Time) (UsagePeriod, bool, error) {
	const q = `
SELECT id, tenant_id, period_start, period_end, minutes_used, call_count,
       overage_minutes, overage_amount_minor, blocked, created_at, updated_at
FROM usage_periods
WHERE tenant_id = $1 AND period_start <= $2 AND period_end > $2
ORDER BY period_start DESC
LIMIT 1
`
	var p UsagePeriod
	err := tx.QueryRowContext(ctx, q, tenantID, now).Scan(
		&p.ID, &p.TenantID, &p.PeriodStart, &p.PeriodEnd, &p.MinutesUsed, &p.CallCount,
		&p.OverageMinutes, &p.OverageAmountMinor, &p.Blocked, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return UsagePeriod{}, false, nil
	}
	if err != nil {
		return UsagePeriod{}, false, err
	}
	return p, true, nil
}
