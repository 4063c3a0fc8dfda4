package reporting

import (
	"context"
	"database/sql"
	"time"

	"receptionist-platform/internal/calls"
	"receptionist-platform/internal/invocations"
)

// PostgresRepo reads call sessions and invocation records for
// aggregation. Read-only; writes belong to the owning packages.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) ListSessions(ctx context.Context, tenantID string, from, to time.Time) ([]calls.CallSession, error) {
	const q = `
		SELECT id, tenant_id, external_id, duration_seconds, outcome, cost_minor, transcript_url, created_at
		FROM call_sessions
		WHERE tenant_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, q, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []calls.CallSession
	for rows.Next() {
		var s calls.CallSession
		var transcript sql.NullString
		if err := rows.Scan(&s.ID, &s.TenantID, &s.ExternalID, &s.DurationSeconds, &s.Outcome, &s.CostMinor, &transcript, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.TranscriptURL = transcript.String
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ListInvocations(ctx context.Context, tenantID string, from, to time.Time) ([]invocations.Record, error) {
	const q = `
		SELECT id, tenant_id, external_call_id, tool_name, success, created_at
		FROM tool_invocations
		WHERE tenant_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, q, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []invocations.Record
	for rows.Next() {
		var rec invocations.Record
		if err := rows.Scan(&rec.ID, &rec.TenantID, &rec.ExternalCallID, &rec.ToolName, &rec.Success, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
