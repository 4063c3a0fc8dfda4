package invocations

import (
	"context"
	"database/sql"
)

// PostgresRepo persists invocation records in the tool_invocations table.
//
// Storage recommendation: INSERT-only policy, optional trigger preventing
// UPDATE/DELETE, partition by time for retention.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, rec Record) error {
	const q = `
INSERT INTO tool_invocations (
  id, tenant_id, external_call_id, tool_name, request_args, response, success, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8
)
`
	_, err := r.db.ExecContext(ctx, q,
		rec.ID,
		rec.TenantID,
		rec.ExternalCallID,
		rec.ToolName,
		rec.RequestArgs,
		rec.Response,
		rec.Success,
		rec.CreatedAt,
	)
	return err
}

func (r *PostgresRepo) ListByCall(ctx context.Context, tenantID, externalCallID string) ([]Record, error) {
	const q = `
SELECT id, tenant_id, external_call_id, tool_name, request_args, response, success, created_at
FROM tool_invocations
WHERE tenant_id = $1 AND external_call_id = $2
ORDER BY created_at ASC
`
	rows, err := r.db.QueryContext(ctx, q, tenantID, externalCallID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(
			&rec.ID,
			&rec.TenantID,
			&rec.ExternalCallID,
			&rec.ToolName,
			&rec.RequestArgs,
			&rec.Response,
			&rec.Success,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
