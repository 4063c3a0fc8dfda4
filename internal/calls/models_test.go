package calls

import "testing"

func TestDeriveOutcome_Precedence(t *testing.T) {
	tests := []struct {
		name  string
		calls []ToolCallSummary
		want  Outcome
	}{
		{
			name: "booking beats handoff",
			calls: []ToolCallSummary{
				{ToolName: "handoff_sms", Success: true},
				{ToolName: "create_booking", Success: true},
			},
			want: OutcomeBooked,
		},
		{
			name: "handoff when no successful booking",
			calls: []ToolCallSummary{
				{ToolName: "create_booking", Success: false},
				{ToolName: "handoff_sms", Success: true},
			},
			want: OutcomeHandoff,
		},
		{
			name: "any tool activity means completed",
			calls: []ToolCallSummary{
				{ToolName: "quote_estimate", Success: true},
			},
			want: OutcomeCompleted,
		},
		{
			name: "failed tools still count as activity",
			calls: []ToolCallSummary{
				{ToolName: "create_booking", Success: false},
			},
			want: OutcomeCompleted,
		},
		{
			name:  "no tool calls",
			calls: nil,
			want:  OutcomeUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveOutcome(tt.calls); got != tt.want {
				t.Fatalf("DeriveOutcome() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOutcomeValuesAreNonEmpty(t *testing.T) {
	outcomes := []Outcome{
		OutcomeUnknown,
		OutcomeBooked,
		OutcomeHandoff,
		OutcomeCompleted,
		OutcomeFailed,
		OutcomeAbandoned,
		OutcomeNoAnswer,
		OutcomeBusy,
	}
	for _, o := range outcomes {
		if o == "" {
			t.Fatalf("expected non-empty outcome")
		}
	}
}
