package calls

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"receptionist-platform/pkg/logger"

	"github.com/google/uuid"
)

// BookingLinker backfills the internal call id on bookings created
// mid-call, before the owning call row was resolvable. The operation
// must be idempotent: replayed reports re-link the same rows.
type BookingLinker interface {
	BackfillCallID(ctx context.Context, tenantID, externalCallID, callID string) error
}

// UsageRecorder is notified when a call ends so the tenant's
// billing-period counters can be advanced. Failures are logged, never
// propagated: usage accounting must not break event handling.
type UsageRecorder interface {
	RecordCallUsage(ctx context.Context, tenantID string, durationSeconds int, callID string) error
}

// Service manages the call session lifecycle.
//
// All handlers are idempotent under duplicate delivery and tolerate
// out-of-order events: duration is always recomputed from the stored
// StartedAt, and a terminal session never has timing or outcome rewritten.
type Service struct {
	repo     Repository
	bookings BookingLinker // optional
	usage    UsageRecorder // optional
	clock    func() time.Time
}

func NewService(repo Repository, bookings BookingLinker, usage UsageRecorder) *Service {
	return &Service{repo: repo, bookings: bookings, usage: usage, clock: time.Now}
}

// WithClock overrides the service clock (tests).
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

var ErrInvalidEvent = errors.New("invalid lifecycle event")

// OnAssistantRequest creates the session on the first event for an
// external call id. Duplicate deliveries are a no-op.
func (s *Service) OnAssistantRequest(ctx context.Context, ev LifecycleEvent) (CallSession, error) {
	if ev.ExternalID == "" || ev.TenantID == "" {
		return CallSession{}, ErrInvalidEvent
	}

	if existing, err := s.repo.GetByExternalID(ctx, ev.TenantID, ev.ExternalID); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return CallSession{}, err
	}

	now := s.clock().UTC()
	startedAt := now
	if ev.StartedAt != nil {
		startedAt = ev.StartedAt.UTC()
	}

	sess := CallSession{
		ID:         uuid.NewString(),
		TenantID:   ev.TenantID,
		ExternalID: ev.ExternalID,
		StartedAt:  startedAt,
		Outcome:    OutcomeUnknown,
		RawPayload: ev.Raw,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	created, err := s.repo.CreateIfAbsent(ctx, sess)
	if err != nil {
		return CallSession{}, err
	}
	if !created {
		// Lost a create race; the winner's row is authoritative.
		return s.repo.GetByExternalID(ctx, ev.TenantID, ev.ExternalID)
	}
	return sess, nil
}

// OnStatusUpdate applies a status event to an existing session. A status
// update for an unknown call id is a late/out-of-order event, not an
// error: it is logged and dropped.
func (s *Service) OnStatusUpdate(ctx context.Context, ev LifecycleEvent) error {
	if ev.ExternalID == "" || ev.TenantID == "" {
		return ErrInvalidEvent
	}

	sess, err := s.repo.GetByExternalID(ctx, ev.TenantID, ev.ExternalID)
	if errors.Is(err, ErrNotFound) {
		logger.From(ctx).Warn("status update for unknown call", "external_id", ev.ExternalID, "status", ev.Status)
		return nil
	}
	if err != nil {
		return err
	}

	now := s.clock().UTC()

	if ev.Status != StatusEnded {
		// Non-terminal statuses only refresh the audit payload.
		if ev.Raw != "" {
			return s.repo.UpdateRawPayload(ctx, sess.ID, ev.Raw, now)
		}
		return nil
	}

	if sess.Ended() {
		// Terminal already; duplicate delivery only touches audit fields.
		if ev.Raw != "" {
			return s.repo.UpdateRawPayload(ctx, sess.ID, ev.Raw, now)
		}
		return nil
	}

	endedAt := now
	if ev.EndedAt != nil {
		endedAt = ev.EndedAt.UTC()
	}
	sess.EndedAt = &endedAt
	sess.DurationSeconds = durationSeconds(sess.StartedAt, endedAt)
	if ev.Raw != "" {
		sess.RawPayload = ev.Raw
	}
	sess.UpdatedAt = now

	if err := s.repo.Update(ctx, sess); err != nil {
		return err
	}
	s.recordUsage(ctx, sess)
	return nil
}

// OnEndOfCallReport finalizes a session: derives the outcome from the
// reported tool calls, sets timing/cost/transcript, and links bookings
// made during the call.
func (s *Service) OnEndOfCallReport(ctx context.Context, ev LifecycleEvent) error {
	if ev.ExternalID == "" || ev.TenantID == "" {
		return ErrInvalidEvent
	}
	log := logger.From(ctx)

	sess, err := s.repo.GetByExternalID(ctx, ev.TenantID, ev.ExternalID)
	if errors.Is(err, ErrNotFound) {
		log.Warn("end-of-call report for unknown call", "external_id", ev.ExternalID)
		return nil
	}
	if err != nil {
		return err
	}

	now := s.clock().UTC()
	alreadyEnded := sess.Ended()

	if !alreadyEnded {
		endedAt := now
		if ev.EndedAt != nil {
			endedAt = ev.EndedAt.UTC()
		}
		sess.EndedAt = &endedAt
	}
	// Recomputed from the stored StartedAt; replays yield the same value.
	sess.DurationSeconds = durationSeconds(sess.StartedAt, *sess.EndedAt)

	if sess.Outcome == OutcomeUnknown || sess.Outcome == "" {
		sess.Outcome = DeriveOutcome(ev.ToolCalls)
	}
	if ev.Cost > 0 {
		sess.CostMinor = int64(math.Round(ev.Cost * 100))
	}
	if ev.RecordingURL != "" {
		sess.TranscriptURL = ev.RecordingURL
	}
	if ev.Raw != "" {
		sess.RawPayload = ev.Raw
	}
	sess.UpdatedAt = now

	if err := s.repo.Update(ctx, sess); err != nil {
		return err
	}

	if s.bookings != nil {
		if err := s.bookings.BackfillCallID(ctx, sess.TenantID, sess.ExternalID, sess.ID); err != nil {
			// Linking is best-effort; the unlinked state is documented and valid.
			log.Error("booking call-id backfill failed", "call_id", sess.ID, "err", err)
		}
	}
	if !alreadyEnded {
		s.recordUsage(ctx, sess)
	}
	return nil
}

// GetByExternalID returns one tenant's session for a platform call id.
func (s *Service) GetByExternalID(ctx context.Context, tenantID, externalID string) (CallSession, error) {
	if tenantID == "" || externalID == "" {
		return CallSession{}, ErrInvalidEvent
	}
	return s.repo.GetByExternalID(ctx, tenantID, externalID)
}

// ListByTenant returns a tenant's sessions in [from, to).
func (s *Service) ListByTenant(ctx context.Context, tenantID string, from, to time.Time) ([]CallSession, error) {
	if tenantID == "" {
		return nil, ErrInvalidEvent
	}
	return s.repo.ListByTenant(ctx, tenantID, from, to)
}

func (s *Service) recordUsage(ctx context.Context, sess CallSession) {
	if s.usage == nil {
		return
	}
	if err := s.usage.RecordCallUsage(ctx, sess.TenantID, sess.DurationSeconds, sess.ID); err != nil {
		logger.From(ctx).Error("usage recording failed",
			slog.String("tenant_id", sess.TenantID),
			slog.String("call_id", sess.ID),
			slog.Any("err", err))
	}
}

func durationSeconds(start, end time.Time) int {
	d := int(end.Sub(start) / time.Second)
	if d < 0 {
		return 0
	}
	return d
}
