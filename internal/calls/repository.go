package calls

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Repository is the persistence contract for call sessions.
//
// CreateIfAbsent must be idempotent: concurrent creates for the same
// (tenant_id, external_id) yield exactly one row.
type Repository interface {
	CreateIfAbsent(ctx context.Context, s CallSession) (created bool, err error)
	GetByExternalID(ctx context.Context, tenantID, externalID string) (CallSession, error)
	Update(ctx context.Context, s CallSession) error
	UpdateRawPayload(ctx context.Context, id, raw string, now time.Time) error
	ListByTenant(ctx context.Context, tenantID string, from, to time.Time) ([]CallSession, error)
}

var ErrNotFound = errors.New("call session not found")

// PostgresRepo persists call sessions in the call_sessions table.
//
// Assumed schema constraint: UNIQUE (tenant_id, external_id).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) CreateIfAbsent(ctx context.Context, s CallSession) (bool, error) {
	// ON CONFLICT DO NOTHING makes the create race-safe: the unique index
	// on (tenant_id, external_id) arbitrates concurrent inserts.
	const q = `
INSERT INTO call_sessions (
  id, tenant_id, external_id, started_at, ended_at, duration_seconds,
  outcome, cost_minor, transcript_url, raw_payload, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
)
ON CONFLICT (tenant_id, external_id) DO NOTHING
`
	res, err := r.db.ExecContext(ctx, q,
		s.ID,
		s.TenantID,
		s.ExternalID,
		s.StartedAt,
		s.EndedAt,
		s.DurationSeconds,
		s.Outcome,
		s.CostMinor,
		s.TranscriptURL,
		s.RawPayload,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *PostgresRepo) GetByExternalID(ctx context.Context, tenantID, externalID string) (CallSession, error) {
	// Scoped to the tenant: external ids are only unique per tenant.
	const q = `
SELECT id, tenant_id, external_id, started_at, ended_at, duration_seconds,
       outcome, cost_minor, transcript_url, raw_payload, created_at, updated_at
FROM call_sessions
WHERE tenant_id = $1 AND external_id = $2
`
	return r.scanOne(r.db.QueryRowContext(ctx, q, tenantID, externalID))
}

func (r *PostgresRepo) Update(ctx context.Context, s CallSession) error {
	const q = `
UPDATE call_sessions
SET ended_at = $2,
    duration_seconds = $3,
    outcome = $4,
    cost_minor = $5,
    transcript_url = $6,
    raw_payload = $7,
    updated_at = $8
WHERE id = $1
`
	res, err := r.db.ExecContext(ctx, q,
		s.ID,
		s.EndedAt,
		s.DurationSeconds,
		s.Outcome,
		s.CostMinor,
		s.TranscriptURL,
		s.RawPayload,
		s.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) UpdateRawPayload(ctx context.Context, id, raw string, now time.Time) error {
	const q = `
UPDATE call_sessions
SET raw_payload = $2, updated_at = $3
WHERE id = $1
`
	_, err := r.db.ExecContext(ctx, q, id, raw, now)
	return err
}

func (r *PostgresRepo) ListByTenant(ctx context.Context, tenantID string, from, to time.Time) ([]CallSession, error) {
	const q = `
SELECT id, tenant_id, external_id, started_at, ended_at, duration_seconds,
       outcome, cost_minor, transcript_url, raw_payload, created_at, updated_at
FROM call_sessions
WHERE tenant_id = $1 AND started_at >= $2 AND started_at < $3
ORDER BY started_at DESC
`
	rows, err := r.db.QueryContext(ctx, q, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CallSession
	for rows.Next() {
		s, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresRepo) scanOne(row *sql.Row) (CallSession, error) {
	s, err := r.scanRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CallSession{}, ErrNotFound
		}
		return CallSession{}, err
	}
	return s, nil
}

func (r *PostgresRepo) scanRow(row rowScanner) (CallSession, error) {
	var s CallSession
	var endedAt sql.NullTime
	var transcript, raw sql.NullString
	err := row.Scan(
		&s.ID,
		&s.TenantID,
		&s.ExternalID,
		&s.StartedAt,
		&endedAt,
		&s.DurationSeconds,
		&s.Outcome,
		&s.CostMinor,
		&transcript,
		&raw,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return CallSession{}, err
	}
	if endedAt.Valid {
		t := endedAt.Time
		s.EndedAt = &t
	}
	s.TranscriptURL = transcript.String
	s.RawPayload = raw.String
	return s, nil
}
