package reporting

import (
	"time"

	"receptionist-platform/internal/calls"
)

// Common filtering inputs.

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CallsSummaryRequest requests aggregated call metrics.
// Tenant isolation: TenantID is required.

type CallsSummaryRequest struct {
	TenantID string    `json:"tenant_id"`
	Range    TimeRange `json:"range"`
}

type CallsSummary struct {
	TenantID string `json:"tenant_id"`

	TotalCalls int                   `json:"total_calls"`
	ByOutcome  map[calls.Outcome]int `json:"by_outcome"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`

	TotalCostMinor int64 `json:"total_cost_minor"`
	RecordedCalls  int   `json:"recorded_calls"`

	// BookedRate is booked calls over total, in [0, 1].
	BookedRate float64 `json:"booked_rate"`
}

// ToolSummaryRequest requests aggregated tool-invocation metrics.

type ToolSummaryRequest struct {
	TenantID string    `json:"tenant_id"`
	Range    TimeRange `json:"range"`
}

type ToolStats struct {
	Invocations int `json:"invocations"`
	Successes   int `json:"successes"`
}

type ToolSummary struct {
	TenantID string               `json:"tenant_id"`
	ByTool   map[string]ToolStats `json:"by_tool"`
}
