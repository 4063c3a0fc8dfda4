package invocations

import "time"

// Record is an immutable, append-only log of one tool invocation
// observed during a call.
//
// Invariants:
// - Records are never updated or deleted.
// - Appending is best-effort: callers must not fail a caller-facing flow
//   because the invocation log could not be written.
// - ExternalCallID may be empty: a tool call can be logged before the
//   owning call row exists or is resolvable.
type Record struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`

	// ExternalCallID is the voice platform's call id, if known at tool time.
	ExternalCallID string `json:"external_call_id,omitempty" db:"external_call_id"`

	ToolName string `json:"tool_name" db:"tool_name"`

	// RequestArgs and Response are JSON strings kept for audit/debug.
	RequestArgs string `json:"request_args,omitempty" db:"request_args"`
	Response    string `json:"response,omitempty" db:"response"`

	Success bool `json:"success" db:"success"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
