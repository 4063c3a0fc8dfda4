package quotes

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"emergency repair", "emergency"},
		{"EMERGENCY leak", "emergency"},
		{"water heater install", "installation"},
		{"installation quote", "installation"},
		{"faucet repair", "repair"},
		{"annual maintenance", "maintenance"},
		{"something odd", "general service"},
		{"", "general service"},
	}
	for _, tt := range tests {
		if got := Classify(tt.in); got.Label != tt.want {
			t.Fatalf("Classify(%q) = %q, want %q", tt.in, got.Label, tt.want)
		}
	}
}

func TestEmergencyBandRange(t *testing.T) {
	b := Classify("emergency repair")
	if got := b.Range(); got != "$150-$250" {
		t.Fatalf("range = %q, want $150-$250", got)
	}
}

func TestSpeakableAvoidsHyphenRange(t *testing.T) {
	s := Classify("repair").Speakable()
	if s == "" {
		t.Fatal("empty speakable quote")
	}
	for i := 0; i+1 < len(s); i++ {
		if s[i] == '-' && s[i+1] == '$' {
			t.Fatalf("speakable contains a hyphenated range: %q", s)
		}
	}
}

func TestDollars(t *testing.T) {
	tests := []struct {
		minor int64
		want  string
	}{
		{15000, "$150"},
		{12550, "$125.50"},
		{99, "$0.99"},
	}
	for _, tt := range tests {
		if got := dollars(tt.minor); got != tt.want {
			t.Fatalf("dollars(%d) = %q, want %q", tt.minor, got, tt.want)
		}
	}
}
