package bookings

import "time"

// BookingRecord is an appointment captured mid-call by the booking tool.
//
// Two-phase link: the internal CallID is nullable at creation because the
// owning call row may not exist yet when the tool fires. The end-of-call
// handler backfills it by matching ExternalCallID. "Unlinked" is a valid,
// documented state, not an error.
type BookingRecord struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`

	// ConfirmationCode is an 8-char alphanumeric code read back to the
	// caller. Not guaranteed globally unique; collision checking is out
	// of scope.
	ConfirmationCode string `json:"confirmation_code" db:"confirmation_code"`

	// WindowText is the caller's preferred time as captured ("tomorrow 9-11").
	WindowText string `json:"window_text" db:"window_text"`
	// ScheduledStart is the parsed start timestamp resolved from WindowText.
	ScheduledStart time.Time `json:"scheduled_start" db:"scheduled_start"`

	CustomerName  string `json:"customer_name" db:"customer_name"`
	CustomerPhone string `json:"customer_phone" db:"customer_phone"`
	Address       string `json:"address" db:"address"`

	ServiceSummary string   `json:"service_summary,omitempty" db:"service_summary"`
	Priority       Priority `json:"priority" db:"priority"`

	// Source records where the booking came from (always the voice AI here).
	Source string `json:"source" db:"source"`

	// ExternalCallID is the voice platform's call id known at tool time.
	ExternalCallID string `json:"external_call_id,omitempty" db:"external_call_id"`
	// CallID is the internal call session id, nil until backfilled.
	CallID *string `json:"call_id,omitempty" db:"call_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Priority string

const (
	PriorityUrgent   Priority = "urgent"
	PriorityHigh     Priority = "high"
	PriorityStandard Priority = "standard"
	PriorityLow      Priority = "low"
)

// NormalizePriority maps free-text priority to a known value,
// defaulting to standard.
func NormalizePriority(v string) Priority {
	switch Priority(v) {
	case PriorityUrgent, PriorityHigh, PriorityStandard, PriorityLow:
		return Priority(v)
	default:
		return PriorityStandard
	}
}

const SourceVoiceAI = "voice_ai"
