package usage

import "time"

// UsagePeriod tracks one tenant's metered usage for one billing period.
//
// Invariant: for a blocked hard-limit trial the stored counters are
// capped at the configured limits, never above them, even when the
// triggering call's actual usage overshot.
type UsagePeriod struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`

	PeriodStart time.Time `json:"period_start" db:"period_start"`
	PeriodEnd   time.Time `json:"period_end" db:"period_end"`

	MinutesUsed int `json:"minutes_used" db:"minutes_used"`
	CallCount   int `json:"call_count" db:"call_count"`

	OverageMinutes     int   `json:"overage_minutes" db:"overage_minutes"`
	OverageAmountMinor int64 `json:"overage_amount_minor" db:"overage_amount_minor"`

	Blocked bool `json:"blocked" db:"blocked"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Behavior controls what happens when a trial limit is reached.
type Behavior string

const (
	// BehaviorHard blocks further usage and caps stored counters at the limit.
	BehaviorHard Behavior = "hard"
	// BehaviorSoft records usage uncapped and never blocks.
	BehaviorSoft Behavior = "soft"
)

// Variant is one trial cohort: its percentage allocation and limits.
type Variant struct {
	Name        string   `json:"name"`
	Percent     int      `json:"percent"`
	CallLimit   int      `json:"call_limit"`
	MinuteLimit int      `json:"minute_limit"`
	TrialDays   int      `json:"trial_days"`
	Behavior    Behavior `json:"behavior"`
}

// DefaultVariants is the static cohort table. Order matters: cohort
// assignment walks cumulative percentages in this order, so reordering
// or resizing entries reassigns tenants.
var DefaultVariants = []Variant{
	{Name: "control", Percent: 25, CallLimit: 10, MinuteLimit: 25, TrialDays: 14, Behavior: BehaviorHard},
	{Name: "generous", Percent: 25, CallLimit: 20, MinuteLimit: 60, TrialDays: 14, Behavior: BehaviorHard},
	{Name: "soft_cap", Percent: 25, CallLimit: 10, MinuteLimit: 25, TrialDays: 14, Behavior: BehaviorSoft},
	{Name: "extended_trial", Percent: 25, CallLimit: 10, MinuteLimit: 25, TrialDays: 30, Behavior: BehaviorHard},
}

// PlanType distinguishes trial tenants from paying ones.
type PlanType string

const (
	PlanTypeTrial PlanType = "trial"
	PlanTypePaid  PlanType = "paid"
)

// Plan is a tenant's billing plan. Tenants with no stored plan are trials.
type Plan struct {
	TenantID string   `json:"tenant_id" db:"tenant_id"`
	Type     PlanType `json:"type" db:"type"`

	// MinuteLimit is the paid plan's included minutes per period.
	MinuteLimit int `json:"minute_limit" db:"minute_limit"`
	// OverageRateMinor is the per-minute price beyond included minutes.
	OverageRateMinor int64 `json:"overage_rate_minor" db:"overage_rate_minor"`
}

// LimitType identifies which dimension(s) tripped the gate.
type LimitType string

const (
	LimitTypeCalls   LimitType = "calls"
	LimitTypeMinutes LimitType = "minutes"
	LimitTypeBoth    LimitType = "calls+minutes"
)

// Result is the outcome of recording one completed call.
type Result struct {
	TenantID string      `json:"tenant_id"`
	Variant  Variant     `json:"variant"`
	Period   UsagePeriod `json:"period"`

	// LimitExceeded is true when a hard limit tripped; counters in
	// Period are capped and the tenant is blocked.
	LimitExceeded bool      `json:"limit_exceeded"`
	LimitType     LimitType `json:"limit_type,omitempty"`

	// TrialExpired is set when the trial window has lapsed; the call's
	// usage is not recorded into a fresh period.
	TrialExpired bool `json:"trial_expired,omitempty"`

	// ThresholdReached flags 70% usage on either dimension; Warning 90%.
	ThresholdReached bool `json:"threshold_reached"`
	Warning          bool `json:"warning"`

	RemainingCalls   int `json:"remaining_calls"`
	RemainingMinutes int `json:"remaining_minutes"`
}

// Decision is the non-mutating allow/deny answer for the next call.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`

	RemainingCalls   int `json:"remaining_calls"`
	RemainingMinutes int `json:"remaining_minutes"`
	RemainingDays    int `json:"remaining_days"`
}

// Snapshot is the dashboard view of current usage.
type Snapshot struct {
	TenantID string   `json:"tenant_id"`
	PlanType PlanType `json:"plan_type"`

	Period UsagePeriod `json:"period"`

	// Trial-only dual limits.
	CallLimit   int    `json:"call_limit,omitempty"`
	MinuteLimit int    `json:"minute_limit,omitempty"`
	Variant     string `json:"variant,omitempty"`

	// Paid-only overage view.
	IncludedMinutes    int   `json:"included_minutes,omitempty"`
	OverageMinutes     int   `json:"overage_minutes,omitempty"`
	OverageAmountMinor int64 `json:"overage_amount_minor,omitempty"`
}
