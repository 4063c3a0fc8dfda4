package usage

import (
	"context"
	"time"

	"receptionist-platform/pkg/logger"
)

// Marker de-duplicates one-shot side effects across instances. Backed by
// Redis in production (see RedisMarker); tests use an in-memory map.
type Marker interface {
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Service is the usage meter and trial gate.
//
// Concurrency: the service holds no state between requests; atomicity
// lives in the Store (single-statement increments, clamping caps), so
// multiple instances can meter the same tenant without coordination.
type Service struct {
	store    Store
	variants []Variant
	marks    Marker // optional
	clock    func() time.Time
}

func NewService(store Store, variants []Variant) *Service {
	if len(variants) == 0 {
		variants = DefaultVariants
	}
	return &Service{store: store, variants: variants, clock: time.Now}
}

func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

func (s *Service) WithMarker(m Marker) *Service {
	s.marks = m
	return s
}

// Cohort returns the tenant's trial variant. Pure: repeated calls with
// the same tenant id and variant table always agree.
func (s *Service) Cohort(tenantID string) Variant {
	return AssignCohort(tenantID, s.variants)
}

// RecordCallUsage advances the tenant's counters for one completed call:
// +1 call, +ceil(durationSeconds/60) minutes. Replays with the same call
// id are counted once.
func (s *Service) RecordCallUsage(ctx context.Context, tenantID string, durationSeconds int, callID string) (Result, error) {
	if tenantID == "" || durationSeconds < 0 {
		return Result{}, ErrInvalidArgument
	}
	now := s.clock().UTC()
	minutes := ceilMinutes(durationSeconds)

	plan, hasPlan, err := s.store.GetPlan(ctx, tenantID)
	if err != nil {
		return Result{}, err
	}
	if hasPlan && plan.Type == PlanTypePaid {
		return s.recordPaid(ctx, tenantID, plan, minutes, callID, now)
	}
	return s.recordTrial(ctx, tenantID, minutes, callID, now)
}

func (s *Service) recordTrial(ctx context.Context, tenantID string, minutes int, callID string, now time.Time) (Result, error) {
	v := s.Cohort(tenantID)

	// An expired trial never opens a new period; the gate should have
	// refused the call, so only report the terminal state.
	if p, ok, err := s.store.CurrentPeriod(ctx, tenantID, now); err != nil {
		return Result{}, err
	} else if ok && !p.PeriodEnd.After(now) {
		res := s.buildResult(tenantID, v, p)
		res.TrialExpired = true
		return res, nil
	}

	p, applied, err := s.store.ApplyUsage(ctx, ApplyUsageRequest{
		TenantID:    tenantID,
		CallID:      callID,
		AddCalls:    1,
		AddMinutes:  minutes,
		PeriodStart: now,
		PeriodEnd:   now.AddDate(0, 0, v.TrialDays),
		Now:         now,
	})
	if err != nil {
		return Result{}, err
	}

	exceeded, limitType := checkLimits(p, v)
	if exceeded && v.Behavior == BehaviorHard && applied {
		capped, err := s.store.CapAndBlock(ctx, tenantID, p.PeriodStart, v.CallLimit, v.MinuteLimit, now)
		if err != nil {
			return Result{}, err
		}
		p = capped
	}

	res := s.buildResult(tenantID, v, p)
	if exceeded && v.Behavior == BehaviorHard {
		res.LimitExceeded = true
		res.LimitType = limitType
	}
	s.alertThresholds(ctx, tenantID, res)
	return res, nil
}

func (s *Service) recordPaid(ctx context.Context, tenantID string, plan Plan, minutes int, callID string, now time.Time) (Result, error) {
	start, end := monthWindow(now)
	p, _, err := s.store.ApplyUsage(ctx, ApplyUsageRequest{
		TenantID:    tenantID,
		CallID:      callID,
		AddCalls:    1,
		AddMinutes:  minutes,
		PeriodStart: start,
		PeriodEnd:   end,
		Now:         now,
	})
	if err != nil {
		return Result{}, err
	}

	if over := p.MinutesUsed - plan.MinuteLimit; over > 0 {
		amount := int64(over) * plan.OverageRateMinor
		if err := s.store.SetOverage(ctx, tenantID, p.PeriodStart, over, amount, now); err != nil {
			return Result{}, err
		}
		p.OverageMinutes = over
		p.OverageAmountMinor = amount
	}

	remaining := plan.MinuteLimit - p.MinutesUsed
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		TenantID:         tenantID,
		Period:           p,
		RemainingMinutes: remaining,
		ThresholdReached: plan.MinuteLimit > 0 && fraction(p.MinutesUsed, plan.MinuteLimit) >= 0.7,
		Warning:          plan.MinuteLimit > 0 && fraction(p.MinutesUsed, plan.MinuteLimit) >= 0.9,
	}, nil
}

// CanMakeCall answers allow/deny for the tenant's next call without
// mutating state. An expired trial denies independent of counters.
func (s *Service) CanMakeCall(ctx context.Context, tenantID string) (Decision, error) {
	if tenantID == "" {
		return Decision{}, ErrInvalidArgument
	}
	now := s.clock().UTC()

	plan, hasPlan, err := s.store.GetPlan(ctx, tenantID)
	if err != nil {
		return Decision{}, err
	}

	p, ok, err := s.store.CurrentPeriod(ctx, tenantID, now)
	if err != nil {
		return Decision{}, err
	}

	if hasPlan && plan.Type == PlanTypePaid {
		remaining := plan.MinuteLimit
		days := 0
		if ok {
			remaining = plan.MinuteLimit - p.MinutesUsed
			if remaining < 0 {
				remaining = 0
			}
			days = daysUntil(now, p.PeriodEnd)
		}
		// Paid plans never block; excess minutes bill as overage.
		return Decision{Allowed: true, RemainingMinutes: remaining, RemainingDays: days}, nil
	}

	v := s.Cohort(tenantID)
	if !ok {
		// No usage yet: the trial clock starts on first use.
		return Decision{
			Allowed:          true,
			RemainingCalls:   v.CallLimit,
			RemainingMinutes: v.MinuteLimit,
			RemainingDays:    v.TrialDays,
		}, nil
	}

	if !p.PeriodEnd.After(now) {
		return Decision{Allowed: false, Reason: "trial_expired"}, nil
	}
	if p.Blocked {
		return Decision{Allowed: false, Reason: "limit_exceeded", RemainingDays: daysUntil(now, p.PeriodEnd)}, nil
	}

	exceeded, _ := checkLimits(p, v)
	if exceeded && v.Behavior == BehaviorHard {
		return Decision{Allowed: false, Reason: "limit_exceeded", RemainingDays: daysUntil(now, p.PeriodEnd)}, nil
	}

	return Decision{
		Allowed:          true,
		RemainingCalls:   remainingOf(v.CallLimit, p.CallCount),
		RemainingMinutes: remainingOf(v.MinuteLimit, p.MinutesUsed),
		RemainingDays:    daysUntil(now, p.PeriodEnd),
	}, nil
}

// Snapshot is the dashboard view: trial dual limits or paid overage.
func (s *Service) Snapshot(ctx context.Context, tenantID string) (Snapshot, error) {
	if tenantID == "" {
		return Snapshot{}, ErrInvalidArgument
	}
	now := s.clock().UTC()

	plan, hasPlan, err := s.store.GetPlan(ctx, tenantID)
	if err != nil {
		return Snapshot{}, err
	}
	p, _, err := s.store.CurrentPeriod(ctx, tenantID, now)
	if err != nil {
		return Snapshot{}, err
	}

	if hasPlan && plan.Type == PlanTypePaid {
		return Snapshot{
			TenantID:           tenantID,
			PlanType:           PlanTypePaid,
			Period:             p,
			IncludedMinutes:    plan.MinuteLimit,
			OverageMinutes:     p.OverageMinutes,
			OverageAmountMinor: p.OverageAmountMinor,
		}, nil
	}

	v := s.Cohort(tenantID)
	return Snapshot{
		TenantID:    tenantID,
		PlanType:    PlanTypeTrial,
		Period:      p,
		CallLimit:   v.CallLimit,
		MinuteLimit: v.MinuteLimit,
		Variant:     v.Name,
	}, nil
}

func (s *Service) buildResult(tenantID string, v Variant, p UsagePeriod) Result {
	frac := maxFraction(p, v)
	return Result{
		TenantID:         tenantID,
		Variant:          v,
		Period:           p,
		ThresholdReached: frac >= 0.7,
		Warning:          frac >= 0.9,
		RemainingCalls:   remainingOf(v.CallLimit, p.CallCount),
		RemainingMinutes: remainingOf(v.MinuteLimit, p.MinutesUsed),
	}
}

// alertThresholds fires each threshold crossing once per period.
func (s *Service) alertThresholds(ctx context.Context, tenantID string, res Result) {
	if s.marks == nil {
		return
	}
	log := logger.From(ctx)
	ttl := res.Period.PeriodEnd.Sub(s.clock())
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	for _, a := range []struct {
		hit  bool
		name string
	}{
		{res.ThresholdReached, "70"},
		{res.Warning, "90"},
	} {
		if !a.hit {
			continue
		}
		key := "usage:alert:" + tenantID + ":" + res.Period.PeriodStart.UTC().Format(time.RFC3339) + ":" + a.name
		first, err := s.marks.MarkOnce(ctx, key, ttl)
		if err != nil {
			log.Warn("usage alert marker failed", "tenant_id", tenantID, "err", err)
			continue
		}
		if first {
			log.Info("usage threshold crossed",
				"tenant_id", tenantID,
				"threshold_pct", a.name,
				"calls_used", res.Period.CallCount,
				"minutes_used", res.Period.MinutesUsed)
		}
	}
}

func checkLimits(p UsagePeriod, v Variant) (bool, LimitType) {
	// Dual limit: either dimension alone trips the gate.
	calls := p.CallCount >= v.CallLimit
	minutes := p.MinutesUsed >= v.MinuteLimit
	switch {
	case calls && minutes:
		return true, LimitTypeBoth
	case calls:
		return true, LimitTypeCalls
	case minutes:
		return true, LimitTypeMinutes
	default:
		return false, ""
	}
}

func ceilMinutes(sec int) int {
	if sec <= 0 {
		return 0
	}
	m := sec / 60
	if sec%60 != 0 {
		m++
	}
	return m
}

func remainingOf(limit, used int) int {
	r := limit - used
	if r < 0 {
		return 0
	}
	return r
}

func fraction(used, limit int) float64 {
	if limit <= 0 {
		return 0
	}
	return float64(used) / float64(limit)
}

func maxFraction(p UsagePeriod, v Variant) float64 {
	fc := fraction(p.CallCount, v.CallLimit)
	fm := fraction(p.MinutesUsed, v.MinuteLimit)
	if fc > fm {
		return fc
	}
	return fm
}

func daysUntil(now, end time.Time) int {
	if !end.After(now) {
		return 0
	}
	d := end.Sub(now)
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) != 0 {
		days++
	}
	return days
}

func monthWindow(now time.Time) (time.Time, time.Time) {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}
