package calls

import "time"

// CallSession represents one inbound phone call handled by the voice platform.
//
// Multi-tenant invariant: TenantID is required on every row, and
// (tenant_id, external_id) is unique: a session is created exactly once
// no matter how many duplicate or out-of-order lifecycle events arrive.
//
// Terminal invariant: once EndedAt is set the session is terminal. Later
// events may still overwrite audit fields (RawPayload) but never rewrite
// timing or contradict an already-derived outcome.
type CallSession struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`

	// ExternalID is the voice platform's call identifier.
	ExternalID string `json:"external_id" db:"external_id"`

	StartedAt time.Time  `json:"started_at" db:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" db:"ended_at"`

	// DurationSeconds is always derived as EndedAt - StartedAt from the
	// stored StartedAt. It is never incremented, so replayed events
	// recompute the same value.
	DurationSeconds int `json:"duration_seconds" db:"duration_seconds"`

	Outcome Outcome `json:"outcome" db:"outcome"`

	// CostMinor is the platform-reported call cost in minor currency units.
	CostMinor int64 `json:"cost_minor" db:"cost_minor"`

	// TranscriptURL points at the platform's recording/transcript artifact.
	TranscriptURL string `json:"transcript_url,omitempty" db:"transcript_url"`

	// RawPayload holds the last received event payload for audit/debug.
	RawPayload string `json:"raw_payload,omitempty" db:"raw_payload"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Ended reports whether the session is terminal.
func (s CallSession) Ended() bool { return s.EndedAt != nil }

// Outcome is the final classification assigned to a completed session.
type Outcome string

const (
	OutcomeUnknown   Outcome = "unknown"
	OutcomeBooked    Outcome = "booked"
	OutcomeHandoff   Outcome = "handoff"
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeAbandoned Outcome = "abandoned"
	OutcomeNoAnswer  Outcome = "no_answer"
	OutcomeBusy      Outcome = "busy"
)

// ToolCallSummary is the per-tool result the platform reports in an
// end-of-call report. Outcome derivation consumes these.
type ToolCallSummary struct {
	ToolName string `json:"toolName"`
	Success  bool   `json:"success"`
}

// LifecycleEvent is the adapter-agnostic view of a webhook lifecycle event.
// The webhook package converts the platform envelope into this.
type LifecycleEvent struct {
	TenantID   string
	ExternalID string

	Status string

	StartedAt *time.Time
	EndedAt   *time.Time

	// Cost is the platform-reported cost in major units (e.g., dollars).
	Cost float64

	RecordingURL string

	ToolCalls []ToolCallSummary

	// Raw is the full event payload, stored for audit.
	Raw string

	// OccurredAt is the receipt time, used when the event carries no timestamps.
	OccurredAt time.Time
}

// StatusEnded is the platform status value that terminates a session.
const StatusEnded = "ended"

// DeriveOutcome classifies a finished call from its tool-call results.
// Precedence: a successful booking beats a successful handoff beats any
// tool activity at all.
func DeriveOutcome(toolCalls []ToolCallSummary) Outcome {
	for _, tc := range toolCalls {
		if tc.ToolName == "create_booking" && tc.Success {
			return OutcomeBooked
		}
	}
	for _, tc := range toolCalls {
		if tc.ToolName == "handoff_sms" && tc.Success {
			return OutcomeHandoff
		}
	}
	if len(toolCalls) > 0 {
		return OutcomeCompleted
	}
	return OutcomeUnknown
}
