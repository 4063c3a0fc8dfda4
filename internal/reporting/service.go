package reporting

import (
	"context"
	"errors"
	"time"

	"receptionist-platform/internal/calls"
	"receptionist-platform/internal/invocations"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting.
//
// Implementations must enforce tenant filtering; these queries read
// immutable-after-terminal rows (ended call sessions, append-only
// invocation records).

type Repository interface {
	ListSessions(ctx context.Context, tenantID string, from, to time.Time) ([]calls.CallSession, error)
	ListInvocations(ctx context.Context, tenantID string, from, to time.Time) ([]invocations.Record, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) CallsSummary(ctx context.Context, req CallsSummaryRequest) (CallsSummary, error) {
	if req.TenantID == "" {
		return CallsSummary{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return CallsSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return CallsSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListSessions(ctx, req.TenantID, req.Range.From, req.Range.To)
	if err != nil {
		return CallsSummary{}, err
	}

	out := CallsSummary{TenantID: req.TenantID, ByOutcome: make(map[calls.Outcome]int)}
	for _, c := range rows {
		out.TotalCalls++
		out.TotalDurationSeconds += c.DurationSeconds
		out.TotalCostMinor += c.CostMinor
		if c.TranscriptURL != "" {
			out.RecordedCalls++
		}
		out.ByOutcome[c.Outcome]++
	}
	if out.TotalCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.TotalCalls
		out.BookedRate = float64(out.ByOutcome[calls.OutcomeBooked]) / float64(out.TotalCalls)
	}
	return out, nil
}

func (s *Service) ToolSummary(ctx context.Context, req ToolSummaryRequest) (ToolSummary, error) {
	if req.TenantID == "" {
		return ToolSummary{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return ToolSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return ToolSummary{}, errors.New("reporting: repository not configured")
	}

	recs, err := s.repo.ListInvocations(ctx, req.TenantID, req.Range.From, req.Range.To)
	if err != nil {
		return ToolSummary{}, err
	}

	out := ToolSummary{TenantID: req.TenantID, ByTool: make(map[string]ToolStats)}
	for _, r := range recs {
		st := out.ByTool[r.ToolName]
		st.Invocations++
		if r.Success {
			st.Successes++
		}
		out.ByTool[r.ToolName] = st
	}
	return out, nil
}
