package invocations

import (
	"context"
	"errors"
	"time"

	"receptionist-platform/pkg/logger"

	"github.com/google/uuid"
)

// Repository is the persistence contract for invocation records.
//
// It MUST be append-only. Implementations must not expose Update or Delete.
type Repository interface {
	Append(ctx context.Context, r Record) error
	ListByCall(ctx context.Context, tenantID, externalCallID string) ([]Record, error)
}

var ErrInvalidRecord = errors.New("invalid invocation record")

// Service logs tool invocations.
//
// Callers should treat logging as best-effort: Log swallows repository
// errors after writing them to the request log, because a failed audit
// write must never surface in a caller-facing tool response.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// Log appends a record. Returns only validation errors; persistence
// failures are logged and dropped.
func (s *Service) Log(ctx context.Context, r Record) error {
	if r.TenantID == "" || r.ToolName == "" {
		return ErrInvalidRecord
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.clock().UTC()
	}
	if err := s.repo.Append(ctx, r); err != nil {
		logger.From(ctx).Error("invocation log append failed",
			"tool", r.ToolName, "tenant_id", r.TenantID, "err", err)
	}
	return nil
}

// ListByCall returns the invocations logged for one call.
func (s *Service) ListByCall(ctx context.Context, tenantID, externalCallID string) ([]Record, error) {
	if tenantID == "" || externalCallID == "" {
		return nil, ErrInvalidRecord
	}
	return s.repo.ListByCall(ctx, tenantID, externalCallID)
}
