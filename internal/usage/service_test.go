package usage

import (
	"context"
	"sync"
	"testing"
	"time"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestService(store Store, variants []Variant) *Service {
	return NewService(store, variants).WithClock(func() time.Time { return now })
}

// hardVariant forces every tenant into one known cohort.
func hardVariant(behavior Behavior) []Variant {
	return []Variant{{Name: "control", Percent: 100, CallLimit: 10, MinuteLimit: 25, TrialDays: 14, Behavior: behavior}}
}

func seedTrialPeriod(store *MemoryStore, tenant string, calls, minutes int) {
	store.SeedPeriod(UsagePeriod{
		TenantID:    tenant,
		PeriodStart: now.AddDate(0, 0, -3),
		PeriodEnd:   now.AddDate(0, 0, 11),
		CallCount:   calls,
		MinutesUsed: minutes,
	})
}

func TestCohort_Deterministic(t *testing.T) {
	svc := newTestService(NewMemoryStore(), nil)
	first := svc.Cohort("tenant-42")
	for i := 0; i < 100; i++ {
		if got := svc.Cohort("tenant-42"); got.Name != first.Name {
			t.Fatalf("cohort changed between calls: %q then %q", first.Name, got.Name)
		}
	}
}

func TestCohort_CumulativeBuckets(t *testing.T) {
	variants := []Variant{
		{Name: "a", Percent: 50},
		{Name: "b", Percent: 30},
		{Name: "c", Percent: 20},
	}
	// Every bucket must land in exactly the variant owning its range.
	for _, tenant := range []string{"x", "y", "z", "tenant-1", "tenant-2", "abc123"} {
		bucket := CohortBucket(tenant)
		got := AssignCohort(tenant, variants)
		var want string
		switch {
		case bucket < 50:
			want = "a"
		case bucket < 80:
			want = "b"
		default:
			want = "c"
		}
		if got.Name != want {
			t.Fatalf("tenant %q bucket %d assigned %q, want %q", tenant, bucket, got.Name, want)
		}
	}
}

func TestRecordCallUsage_IncrementsAndRounds(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(store, hardVariant(BehaviorHard))

	res, err := svc.RecordCallUsage(context.Background(), "t1", 61, "call-1")
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if res.Period.CallCount != 1 {
		t.Fatalf("call count = %d, want 1", res.Period.CallCount)
	}
	if res.Period.MinutesUsed != 2 {
		t.Fatalf("minutes = %d, want 2 (61s rounds up)", res.Period.MinutesUsed)
	}
	if res.LimitExceeded {
		t.Fatalf("limit should not be exceeded")
	}
}

func TestRecordCallUsage_DedupesByCallID(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(store, hardVariant(BehaviorHard))
	ctx := context.Background()

	if _, err := svc.RecordCallUsage(ctx, "t1", 120, "call-1"); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	res, err := svc.RecordCallUsage(ctx, "t1", 120, "call-1")
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if res.Period.CallCount != 1 || res.Period.MinutesUsed != 2 {
		t.Fatalf("replay double-counted: calls=%d minutes=%d", res.Period.CallCount, res.Period.MinutesUsed)
	}
}

func TestRecordCallUsage_HardLimitCapsAtLimit(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(store, hardVariant(BehaviorHard))

	// 9 calls / 24 minutes against 10 calls / 25 minutes; a 2-minute
	// call would push raw totals to 10 / 26.
	seedTrialPeriod(store, "t1", 9, 24)

	res, err := svc.RecordCallUsage(context.Background(), "t1", 120, "call-10")
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if !res.LimitExceeded {
		t.Fatalf("expected limit exceeded")
	}
	if res.LimitType != LimitTypeBoth {
		t.Fatalf("limit type = %q, want both dimensions", res.LimitType)
	}
	if res.Period.CallCount != 10 {
		t.Fatalf("calls capped at %d, want 10", res.Period.CallCount)
	}
	if res.Period.MinutesUsed != 25 {
		t.Fatalf("minutes = %d, want capped at 25 not 26", res.Period.MinutesUsed)
	}
	if !res.Period.Blocked {
		t.Fatalf("expected period blocked")
	}
}

func TestRecordCallUsage_OvershootNeverStored(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(store, hardVariant(BehaviorHard))

	// 24 minutes used; a 16-minute call would raw-total 40 against 25.
	seedTrialPeriod(store, "t1", 3, 24)

	res, err := svc.RecordCallUsage(context.Background(), "t1", 16*60, "call-x")
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if res.Period.MinutesUsed != 25 {
		t.Fatalf("minutes = %d, want exactly 25", res.Period.MinutesUsed)
	}
}

func TestRecordCallUsage_SoftLimitUncapped(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(store, hardVariant(BehaviorSoft))

	seedTrialPeriod(store, "t1", 9, 24)

	res, err := svc.RecordCallUsage(context.Background(), "t1", 16*60, "call-x")
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if res.LimitExceeded {
		t.Fatalf("soft behavior must not report a hard breach")
	}
	if res.Period.MinutesUsed != 40 {
		t.Fatalf("minutes = %d, want uncapped 40", res.Period.MinutesUsed)
	}
	if res.Period.Blocked {
		t.Fatalf("soft behavior must not block")
	}
}

func TestRecordCallUsage_ThresholdFlags(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(store, hardVariant(BehaviorHard))

	seedTrialPeriod(store, "t1", 6, 15)

	// 7 of 10 calls crosses 70%.
	res, err := svc.RecordCallUsage(context.Background(), "t1", 60, "call-7")
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if !res.ThresholdReached {
		t.Fatalf("expected 70%% threshold flag")
	}
	if res.Warning {
		t.Fatalf("90%% warning should not fire at 70%%")
	}
}

func TestCanMakeCall_FreshTenantAllowed(t *testing.T) {
	svc := newTestService(NewMemoryStore(), hardVariant(BehaviorHard))

	d, err := svc.CanMakeCall(context.Background(), "t1")
	if err != nil {
		t.Fatalf("decision failed: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("fresh tenant should be allowed")
	}
	if d.RemainingCalls != 10 || d.RemainingMinutes != 25 || d.RemainingDays != 14 {
		t.Fatalf("remaining = %+v", d)
	}
}

func TestCanMakeCall_ExpiredTrialDeniesRegardlessOfCounters(t *testing.T) {
	store := NewMemoryStore()
	store.SeedPeriod(UsagePeriod{
		TenantID:    "t1",
		PeriodStart: now.AddDate(0, 0, -20),
		PeriodEnd:   now.AddDate(0, 0, -6),
		CallCount:   1,
		MinutesUsed: 2,
	})
	svc := newTestService(store, hardVariant(BehaviorHard))

	d, err := svc.CanMakeCall(context.Background(), "t1")
	if err != nil {
		t.Fatalf("decision failed: %v", err)
	}
	if d.Allowed {
		t.Fatalf("expired trial must deny")
	}
	if d.Reason != "trial_expired" {
		t.Fatalf("reason = %q", d.Reason)
	}
}

func TestCanMakeCall_DualLimitEitherDimensionTrips(t *testing.T) {
	for _, tt := range []struct {
		name           string
		calls, minutes int
	}{
		{"calls alone", 10, 5},
		{"minutes alone", 2, 25},
	} {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()
			seedTrialPeriod(store, "t1", tt.calls, tt.minutes)
			svc := newTestService(store, hardVariant(BehaviorHard))

			d, err := svc.CanMakeCall(context.Background(), "t1")
			if err != nil {
				t.Fatalf("decision failed: %v", err)
			}
			if d.Allowed {
				t.Fatalf("expected deny with calls=%d minutes=%d", tt.calls, tt.minutes)
			}
		})
	}
}

func TestCanMakeCall_SoftCohortNeverDenies(t *testing.T) {
	store := NewMemoryStore()
	seedTrialPeriod(store, "t1", 10, 30)
	svc := newTestService(store, hardVariant(BehaviorSoft))

	d, err := svc.CanMakeCall(context.Background(), "t1")
	if err != nil {
		t.Fatalf("decision failed: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("soft cohort must not deny on limits")
	}
}

func TestRecordCallUsage_PaidPlanOverage(t *testing.T) {
	store := NewMemoryStore()
	store.SetPlan(Plan{TenantID: "t1", Type: PlanTypePaid, MinuteLimit: 100, OverageRateMinor: 15})
	svc := newTestService(store, nil)
	ctx := context.Background()

	start, end := monthWindow(now)
	store.SeedPeriod(UsagePeriod{TenantID: "t1", PeriodStart: start, PeriodEnd: end, MinutesUsed: 99})

	res, err := svc.RecordCallUsage(ctx, "t1", 5*60, "call-1")
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if res.LimitExceeded {
		t.Fatalf("paid plans never hard-block")
	}
	if res.Period.MinutesUsed != 104 {
		t.Fatalf("minutes = %d, want 104 (uncapped)", res.Period.MinutesUsed)
	}
	if res.Period.OverageMinutes != 4 {
		t.Fatalf("overage minutes = %d, want 4", res.Period.OverageMinutes)
	}
	if res.Period.OverageAmountMinor != 60 {
		t.Fatalf("overage amount = %d, want 60", res.Period.OverageAmountMinor)
	}
}

func TestRecordCallUsage_ConcurrentSameTenant(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(store, hardVariant(BehaviorSoft))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, _ = svc.RecordCallUsage(context.Background(), "t1", 60, "call-"+string(rune('a'+n)))
		}(i)
	}
	wg.Wait()

	p, ok, err := store.CurrentPeriod(context.Background(), "t1", now)
	if err != nil || !ok {
		t.Fatalf("period lookup failed: ok=%v err=%v", ok, err)
	}
	if p.CallCount != 10 || p.MinutesUsed != 10 {
		t.Fatalf("lost updates: calls=%d minutes=%d", p.CallCount, p.MinutesUsed)
	}
}

type memMarker struct {
	mu      sync.Mutex
	seen    map[string]bool
	lastTTL time.Duration
}

func (m *memMarker) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen == nil {
		m.seen = map[string]bool{}
	}
	m.lastTTL = ttl
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

func TestAlertMarker_FiresOncePerThreshold(t *testing.T) {
	store := NewMemoryStore()
	marker := &memMarker{}
	svc := newTestService(store, hardVariant(BehaviorSoft)).WithMarker(marker)
	ctx := context.Background()

	seedTrialPeriod(store, "t1", 7, 15)
	if _, err := svc.RecordCallUsage(ctx, "t1", 60, "c1"); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if _, err := svc.RecordCallUsage(ctx, "t1", 60, "c2"); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	// One marker for the 70% threshold (and later one for 90%), never
	// one per call.
	marker.mu.Lock()
	defer marker.mu.Unlock()
	if len(marker.seen) == 0 {
		t.Fatalf("expected a threshold marker")
	}
	for k := range marker.seen {
		if k == "" {
			t.Fatalf("empty marker key")
		}
	}
}

func TestAlertMarker_TTLFromInjectedClock(t *testing.T) {
	store := NewMemoryStore()
	marker := &memMarker{}
	svc := newTestService(store, hardVariant(BehaviorSoft)).WithMarker(marker)

	// Period ends 11 days after the fixed clock, so the marker must
	// expire with the period regardless of wall time.
	seedTrialPeriod(store, "t1", 7, 15)
	if _, err := svc.RecordCallUsage(context.Background(), "t1", 60, "c1"); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	marker.mu.Lock()
	defer marker.mu.Unlock()
	if want := 11 * 24 * time.Hour; marker.lastTTL != want {
		t.Fatalf("marker ttl = %v, want %v", marker.lastTTL, want)
	}
}

func TestCeilMinutes(t *testing.T) {
	tests := []struct{ sec, want int }{
		{0, 0}, {1, 1}, {59, 1}, {60, 1}, {61, 2}, {120, 2}, {121, 3},
	}
	for _, tt := range tests {
		if got := ceilMinutes(tt.sec); got != tt.want {
			t.Fatalf("ceilMinutes(%d) = %d, want %d", tt.sec, got, tt.want)
		}
	}
}
