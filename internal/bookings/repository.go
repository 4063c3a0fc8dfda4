package bookings

import (
	"context"
	"database/sql"
	"time"
)

// PostgresRepo persists bookings in the bookings table.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Insert(ctx context.Context, b BookingRecord) error {
	const q = `
INSERT INTO bookings (
  id, tenant_id, confirmation_code, window_text, scheduled_start,
  customer_name, customer_phone, address, service_summary, priority,
  source, external_call_id, call_id, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15
)
`
	_, err := r.db.ExecContext(ctx, q,
		b.ID,
		b.TenantID,
		b.ConfirmationCode,
		b.WindowText,
		b.ScheduledStart,
		b.CustomerName,
		b.CustomerPhone,
		b.Address,
		b.ServiceSummary,
		b.Priority,
		b.Source,
		b.ExternalCallID,
		b.CallID,
		b.CreatedAt,
		b.UpdatedAt,
	)
	return err
}

func (r *PostgresRepo) BackfillCallID(ctx context.Context, tenantID, externalCallID, callID string, now time.Time) (int, error) {
	// Only unlinked rows are touched, which makes replays idempotent.
	const q = `
UPDATE bookings
SET call_id = $3, updated_at = $4
WHERE tenant_id = $1 AND external_call_id = $2 AND call_id IS NULL
`
	res, err := r.db.ExecContext(ctx, q, tenantID, externalCallID, callID, now)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *PostgresRepo) ListByTenant(ctx context.Context, tenantID string, from, to time.Time) ([]BookingRecord, error) {
	const q = `
SELECT id, tenant_id, confirmation_code, window_text, scheduled_start,
       customer_name, customer_phone, address, service_summary, priority,
       source, external_call_id, call_id, created_at, updated_at
FROM bookings
WHERE tenant_id = $1 AND created_at >= $2 AND created_at < $3
ORDER BY created_at DESC
`
	rows, err := r.db.QueryContext(ctx, q, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BookingRecord
	for rows.Next() {
		var b BookingRecord
		var callID sql.NullString
		if err := rows.Scan(
			&b.ID,
			&b.TenantID,
			&b.ConfirmationCode,
			&b.WindowText,
			&b.ScheduledStart,
			&b.CustomerName,
			&b.CustomerPhone,
			&b.Address,
			&b.ServiceSummary,
			&b.Priority,
			&b.Source,
			&b.ExternalCallID,
			&callID,
			&b.CreatedAt,
			&b.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if callID.Valid {
			v := callID.String
			b.CallID = &v
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
