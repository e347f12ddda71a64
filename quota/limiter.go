// Package quota implements multi-window rate limiting with monetary
// budget accounting for remote analysis requests. The limiter only
// informs callers; it does not itself block requests, the orchestrator
// is responsible for honoring a denied check before spending quota.
package quota

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/penlight/vitalsum/logging"
	"github.com/penlight/vitalsum/models"
)

// TierBudget is the limiting tier reported when the monetary budget,
// rather than a rate window, blocks a request.
const TierBudget = "budget"

// Caps holds the per-window request caps for one category. A zero cap
// means the window is unlimited.
type Caps struct {
	Hourly  int64 `json:"hourly"`
	Daily   int64 `json:"daily"`
	Weekly  int64 `json:"weekly"`
	Monthly int64 `json:"monthly"`
}

func (c Caps) forKind(kind WindowKind) int64 {
	switch kind {
	case WindowHourly:
		return c.Hourly
	case WindowDaily:
		return c.Daily
	case WindowWeekly:
		return c.Weekly
	case WindowMonthly:
		return c.Monthly
	}
	return 0
}

// Config configures the limiter.
type Config struct {
	Categories     map[models.RequestCategory]Caps `json:"categories"`
	MonthlyBudget  float64                         `json:"monthly_budget"`
	RecordCapacity int                             `json:"record_capacity"`
}

// DefaultConfig returns conservative device-side defaults.
func DefaultConfig() Config {
	return Config{
		Categories: map[models.RequestCategory]Caps{
			models.CategoryQuick:         {Hourly: 10, Daily: 40, Weekly: 150, Monthly: 400},
			models.CategoryDaily:         {Hourly: 4, Daily: 12, Weekly: 50, Monthly: 150},
			models.CategoryComprehensive: {Hourly: 2, Daily: 6, Weekly: 20, Monthly: 60},
		},
		MonthlyBudget:  5.0,
		RecordCapacity: 512,
	}
}

// LimitCheck is the outcome of an availability query. When Allowed is
// false, LimitingTier names the first violated tier in
// finest-to-coarsest order, and ResetAt is when that tier clears.
type LimitCheck struct {
	Allowed      bool      `json:"allowed"`
	LimitingTier string    `json:"limiting_tier,omitempty"`
	Current      float64   `json:"current"`
	Limit        float64   `json:"limit"`
	ResetAt      time.Time `json:"reset_at"`
}

// Prediction answers "could a request of this category run at a given
// time" without mutating any state.
type Prediction struct {
	CanRequest      bool      `json:"can_request"`
	NextAvailableAt time.Time `json:"next_available_at,omitempty"`
	LimitingFactor  string    `json:"limiting_factor,omitempty"`
}

// WindowStatus reports one window's usage for diagnostics.
type WindowStatus struct {
	Kind    WindowKind `json:"kind"`
	Count   int64      `json:"count"`
	Limit   int64      `json:"limit"`
	ResetAt time.Time  `json:"reset_at"`
}

// BudgetStatus reports the current budget period. Remaining is always
// recomputed as max(0, Total-Used), never stored, so it cannot drift.
type BudgetStatus struct {
	Total       float64   `json:"total"`
	Used        float64   `json:"used"`
	Remaining   float64   `json:"remaining"`
	PeriodStart time.Time `json:"period_start"`
	ResetAt     time.Time `json:"reset_at"`
}

// Status is a point-in-time snapshot for one category.
type Status struct {
	Category models.RequestCategory `json:"category"`
	Windows  []WindowStatus         `json:"windows"`
	Budget   BudgetStatus           `json:"budget"`
}

// Limiter tracks per-category request counts across four wall-clock
// windows plus a monthly monetary budget. Counters live behind the
// CounterStore port; windows roll over lazily because elapsed windows
// are simply never looked up again. The mutex makes Record atomic with
// respect to the query methods: a reader never observes some of a
// request's window increments without the others.
type Limiter struct {
	mu      sync.RWMutex
	cfg     Config
	store   CounterStore
	records *RecordLog
	now     func() time.Time
}

// NewLimiter creates a limiter over the given counter store.
func NewLimiter(cfg Config, store CounterStore) *Limiter {
	if cfg.Categories == nil {
		cfg.Categories = DefaultConfig().Categories
	}
	return &Limiter{
		cfg:     cfg,
		store:   store,
		records: NewRecordLog(cfg.RecordCapacity),
		now:     time.Now,
	}
}

// CheckAvailability evaluates hourly, daily, weekly, and monthly
// counters in order, then the monetary budget, and reports the first
// tier that would be violated. It is a query and never fails; store
// errors are logged and treated as zero counts.
func (l *Limiter) CheckAvailability(category models.RequestCategory) LimitCheck {
	l.mu.RLock()
	defer l.mu.RUnlock()

	now := l.now()
	caps := l.cfg.Categories[category]

	for _, kind := range windowOrder {
		limit := caps.forKind(kind)
		if limit <= 0 {
			continue
		}
		count := l.windowCount(category, kind, now)
		if count >= limit {
			return LimitCheck{
				Allowed:      false,
				LimitingTier: string(kind),
				Current:      float64(count),
				Limit:        float64(limit),
				ResetAt:      NextReset(kind, now),
			}
		}
	}

	if l.cfg.MonthlyBudget > 0 {
		used := l.budgetUsed(now)
		if used+category.EstimatedCost() > l.cfg.MonthlyBudget {
			return LimitCheck{
				Allowed:      false,
				LimitingTier: TierBudget,
				Current:      used,
				Limit:        l.cfg.MonthlyBudget,
				ResetAt:      NextReset(WindowMonthly, now),
			}
		}
	}

	return LimitCheck{Allowed: true, ResetAt: NextReset(WindowHourly, now)}
}

// Record logs one completed request: it atomically increments all four
// window counters for the category, adds cost to the current budget
// period, and appends an analytics record. Call it at most once per
// completed request, not per attempt.
func (l *Limiter) Record(category models.RequestCategory, cost float64, latency time.Duration, outcome models.RequestOutcome) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	for _, kind := range windowOrder {
		key := counterKey(category, kind, WindowStart(kind, now))
		if _, err := l.store.Increment(key, 1); err != nil {
			return err
		}
	}
	if cost > 0 {
		if _, err := l.store.AddSpend(budgetKey(WindowStart(WindowMonthly, now)), cost); err != nil {
			return err
		}
	}

	l.records.Append(models.RequestRecord{
		ID:        uuid.NewString(),
		Category:  category,
		Timestamp: now,
		Cost:      cost,
		Latency:   latency,
		Outcome:   outcome,
	})
	return nil
}

// Predict reports whether a request of this category could run at the
// given time, using only current counters and the windows' reset
// boundaries. It does not mutate state. Windows that will have rolled
// over by then count as empty.
func (l *Limiter) Predict(category models.RequestCategory, at time.Time) Prediction {
	l.mu.RLock()
	defer l.mu.RUnlock()

	now := l.now()
	caps := l.cfg.Categories[category]

	var nextAvailable time.Time
	limiting := ""

	for _, kind := range windowOrder {
		limit := caps.forKind(kind)
		if limit <= 0 {
			continue
		}
		if !WindowStart(kind, at).Equal(WindowStart(kind, now)) {
			continue // window containing `at` has not started yet, empty
		}
		if l.windowCount(category, kind, now) >= limit {
			reset := NextReset(kind, now)
			if reset.After(nextAvailable) {
				nextAvailable = reset
				limiting = string(kind)
			}
		}
	}

	if l.cfg.MonthlyBudget > 0 && WindowStart(WindowMonthly, at).Equal(WindowStart(WindowMonthly, now)) {
		if l.budgetUsed(now)+category.EstimatedCost() > l.cfg.MonthlyBudget {
			reset := NextReset(WindowMonthly, now)
			if reset.After(nextAvailable) {
				nextAvailable = reset
				limiting = TierBudget
			}
		}
	}

	if limiting == "" {
		return Prediction{CanRequest: true}
	}
	return Prediction{CanRequest: false, NextAvailableAt: nextAvailable, LimitingFactor: limiting}
}

// Status returns a snapshot of every window and the budget for the
// category.
func (l *Limiter) Status(category models.RequestCategory) Status {
	l.mu.RLock()
	defer l.mu.RUnlock()

	now := l.now()
	caps := l.cfg.Categories[category]

	windows := make([]WindowStatus, 0, len(windowOrder))
	for _, kind := range windowOrder {
		windows = append(windows, WindowStatus{
			Kind:    kind,
			Count:   l.windowCount(category, kind, now),
			Limit:   caps.forKind(kind),
			ResetAt: NextReset(kind, now),
		})
	}

	used := l.budgetUsed(now)
	return Status{
		Category: category,
		Windows:  windows,
		Budget: BudgetStatus{
			Total:       l.cfg.MonthlyBudget,
			Used:        used,
			Remaining:   math.Max(0, l.cfg.MonthlyBudget-used),
			PeriodStart: WindowStart(WindowMonthly, now),
			ResetAt:     NextReset(WindowMonthly, now),
		},
	}
}

// UpdateConfig swaps in new caps and budget. Counters are untouched,
// so tightening a cap takes effect against usage already recorded.
func (l *Limiter) UpdateConfig(cfg Config) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if cfg.Categories == nil {
		cfg.Categories = DefaultConfig().Categories
	}
	cfg.RecordCapacity = l.cfg.RecordCapacity
	l.cfg = cfg
}

// Records exposes the analytics log.
func (l *Limiter) Records() *RecordLog {
	return l.records
}

// Reset zeroes all counters, budget usage, and records. Administrative
// and test use only.
func (l *Limiter) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records.Clear()
	return l.store.Reset()
}

func (l *Limiter) windowCount(category models.RequestCategory, kind WindowKind, now time.Time) int64 {
	count, err := l.store.GetCount(counterKey(category, kind, WindowStart(kind, now)))
	if err != nil {
		logging.LogWarnf("quota counter read failed, assuming zero: %v", err)
		return 0
	}
	return count
}

func (l *Limiter) budgetUsed(now time.Time) float64 {
	used, err := l.store.GetSpend(budgetKey(WindowStart(WindowMonthly, now)))
	if err != nil {
		logging.LogWarnf("budget read failed, assuming zero: %v", err)
		return 0
	}
	return used
}
