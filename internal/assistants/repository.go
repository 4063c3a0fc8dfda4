package assistants

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("assistant not found")

type Repository interface {
	Upsert(ctx context.Context, a *Assistant) error
	GetByExternalID(ctx context.Context, externalID string) (*Assistant, error)
	ListByTenant(ctx context.Context, tenantID string) ([]Assistant, error)
	Deactivate(ctx context.Context, tenantID, externalID string) error
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Upsert(ctx context.Context, a *Assistant) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	const q = `
		INSERT INTO assistants (id, tenant_id, external_id, display_name, phone_number, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (external_id) DO UPDATE
		SET tenant_id = EXCLUDED.tenant_id,
		    display_name = EXCLUDED.display_name,
		    phone_number = EXCLUDED.phone_number,
		    active = EXCLUDED.active,
		    updated_at = EXCLUDED.updated_at
		RETURNING id, created_at`
	return r.db.QueryRowContext(ctx, q,
		a.ID, a.TenantID, a.ExternalID, a.DisplayName, a.PhoneNumber, a.Active, a.CreatedAt, a.UpdatedAt,
	).Scan(&a.ID, &a.CreatedAt)
}

func (r *PostgresRepo) GetByExternalID(ctx context.Context, externalID string) (*Assistant, error) {
	const q = `
		SELECT id, tenant_id, external_id, display_name, phone_number, active, created_at, updated_at
		FROM assistants
		WHERE external_id = $1`
	var a Assistant
	err := r.db.QueryRowContext(ctx, q, externalID).Scan(
		&a.ID, &a.TenantID, &a.ExternalID, &a.DisplayName, &a.PhoneNumber, &a.Active, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *PostgresRepo) ListByTenant(ctx context.Context, tenantID string) ([]Assistant, error) {
	const q = `
		SELECT id, tenant_id, external_id, display_name, phone_number, active, created_at, updated_at
		FROM assistants
		WHERE tenant_id = $1
		ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, q, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Assistant
	for rows.Next() {
		var a Assistant
		if err := rows.Scan(&a.ID, &a.TenantID, &a.ExternalID, &a.DisplayName, &a.PhoneNumber, &a.Active, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) Deactivate(ctx context.Context, tenantID, externalID string) error {
	const q = `
		UPDATE assistants
		SET active = FALSE, updated_at = $3
		WHERE tenant_id = $1 AND external_id = $2`
	res, err := r.db.ExecContext(ctx, q, tenantID, externalID, time.Now().UTC())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
