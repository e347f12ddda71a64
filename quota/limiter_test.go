package quota

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penlight/vitalsum/models"
)

func testLimiter(caps Caps, budget float64) (*Limiter, *time.Time) {
	now := time.Date(2026, 3, 11, 14, 30, 0, 0, time.UTC)
	l := NewLimiter(Config{
		Categories:    map[models.RequestCategory]Caps{models.CategoryComprehensive: caps},
		MonthlyBudget: budget,
	}, NewMemoryStore())
	l.now = func() time.Time { return now }
	return l, &now
}

func TestCheckAvailabilityAllTiersPass(t *testing.T) {
	l, _ := testLimiter(Caps{Hourly: 2, Daily: 6, Weekly: 20, Monthly: 60}, 5.0)

	check := l.CheckAvailability(models.CategoryComprehensive)
	assert.True(t, check.Allowed)
	assert.Empty(t, check.LimitingTier)
}

func TestHourlyLimitScenario(t *testing.T) {
	// hourly limit 2: the 3rd check within the hour is denied with
	// limitingTier=hourly; after rollover it is allowed again.
	l, now := testLimiter(Caps{Hourly: 2, Daily: 100, Weekly: 100, Monthly: 100}, 100)

	for i := 0; i < 2; i++ {
		check := l.CheckAvailability(models.CategoryComprehensive)
		require.True(t, check.Allowed)
		require.NoError(t, l.Record(models.CategoryComprehensive, 0.02, time.Second, models.OutcomeSuccess))
	}

	check := l.CheckAvailability(models.CategoryComprehensive)
	assert.False(t, check.Allowed)
	assert.Equal(t, "hourly", check.LimitingTier)
	assert.Equal(t, float64(2), check.Current)
	assert.Equal(t, float64(2), check.Limit)
	assert.Equal(t, time.Date(2026, 3, 11, 15, 0, 0, 0, time.UTC), check.ResetAt)

	// Hour rollover: no explicit reset required.
	*now = now.Add(time.Hour)
	check = l.CheckAvailability(models.CategoryComprehensive)
	assert.True(t, check.Allowed)
}

func TestRecordMonotonicity(t *testing.T) {
	l, _ := testLimiter(Caps{Hourly: 10, Daily: 10, Weekly: 10, Monthly: 10}, 100)

	require.NoError(t, l.Record(models.CategoryComprehensive, 0.02, time.Second, models.OutcomeSuccess))
	status := l.Status(models.CategoryComprehensive)
	for _, w := range status.Windows {
		assert.Equal(t, int64(1), w.Count, "window %s reflects the record immediately", w.Kind)
	}
}

func TestDailyTierReportedBeforeMonthly(t *testing.T) {
	// Both daily and monthly are exhausted; the finer-grained tier is
	// surfaced because it is cheaper to recover from.
	l, _ := testLimiter(Caps{Hourly: 100, Daily: 1, Weekly: 100, Monthly: 1}, 100)

	require.NoError(t, l.Record(models.CategoryComprehensive, 0.02, time.Second, models.OutcomeSuccess))

	check := l.CheckAvailability(models.CategoryComprehensive)
	assert.False(t, check.Allowed)
	assert.Equal(t, "daily", check.LimitingTier)
}

func TestBudgetDenial(t *testing.T) {
	l, _ := testLimiter(Caps{Hourly: 100, Daily: 100, Weekly: 100, Monthly: 100}, 0.05)

	// Spend up to within one estimated cost of the cap.
	require.NoError(t, l.Record(models.CategoryComprehensive, 0.04, time.Second, models.OutcomeSuccess))

	check := l.CheckAvailability(models.CategoryComprehensive)
	assert.False(t, check.Allowed)
	assert.Equal(t, TierBudget, check.LimitingTier)
	assert.Equal(t, 0.05, check.Limit)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), check.ResetAt)
}

func TestBudgetRemainingNeverNegative(t *testing.T) {
	l, _ := testLimiter(Caps{Hourly: 100, Daily: 100, Weekly: 100, Monthly: 100}, 0.05)

	for i := 0; i < 10; i++ {
		require.NoError(t, l.Record(models.CategoryComprehensive, 0.02, time.Second, models.OutcomeSuccess))
	}

	status := l.Status(models.CategoryComprehensive)
	assert.GreaterOrEqual(t, status.Budget.Remaining, float64(0))
	assert.InDelta(t, 0.2, status.Budget.Used, 1e-9, "usedBudget keeps accumulating")
}

func TestBudgetRollsOverAtMonthStart(t *testing.T) {
	l, now := testLimiter(Caps{}, 0.05)

	require.NoError(t, l.Record(models.CategoryComprehensive, 0.05, time.Second, models.OutcomeSuccess))
	assert.False(t, l.CheckAvailability(models.CategoryComprehensive).Allowed)

	*now = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, l.CheckAvailability(models.CategoryComprehensive).Allowed)
	assert.Equal(t, float64(0), l.Status(models.CategoryComprehensive).Budget.Used)
}

func TestFailedRequestRecordsZeroCost(t *testing.T) {
	l, _ := testLimiter(Caps{Hourly: 10}, 1.0)

	require.NoError(t, l.Record(models.CategoryComprehensive, 0, 2*time.Second, models.OutcomeFailure))

	status := l.Status(models.CategoryComprehensive)
	assert.Equal(t, float64(0), status.Budget.Used)
	assert.Equal(t, int64(1), status.Windows[0].Count, "failed attempts still count as requests")

	recs := l.Records().Recent(1)
	require.Len(t, recs, 1)
	assert.Equal(t, models.OutcomeFailure, recs[0].Outcome)
	assert.NotEmpty(t, recs[0].ID)
}

func TestPredictWithinCurrentWindow(t *testing.T) {
	l, _ := testLimiter(Caps{Hourly: 1, Daily: 100, Weekly: 100, Monthly: 100}, 100)

	require.NoError(t, l.Record(models.CategoryComprehensive, 0.02, time.Second, models.OutcomeSuccess))

	// Ten minutes from now is still inside the exhausted hour.
	p := l.Predict(models.CategoryComprehensive, time.Date(2026, 3, 11, 14, 40, 0, 0, time.UTC))
	assert.False(t, p.CanRequest)
	assert.Equal(t, "hourly", p.LimitingFactor)
	assert.Equal(t, time.Date(2026, 3, 11, 15, 0, 0, 0, time.UTC), p.NextAvailableAt)

	// Ninety minutes from now the hourly window has rolled over.
	p = l.Predict(models.CategoryComprehensive, time.Date(2026, 3, 11, 16, 0, 0, 0, time.UTC))
	assert.True(t, p.CanRequest)
}

func TestPredictReportsCoarsestBindingTier(t *testing.T) {
	l, _ := testLimiter(Caps{Hourly: 1, Daily: 1, Weekly: 100, Monthly: 100}, 100)

	require.NoError(t, l.Record(models.CategoryComprehensive, 0.02, time.Second, models.OutcomeSuccess))

	p := l.Predict(models.CategoryComprehensive, time.Date(2026, 3, 11, 14, 45, 0, 0, time.UTC))
	assert.False(t, p.CanRequest)
	assert.Equal(t, "daily", p.LimitingFactor, "latest reset wins: daily clears after hourly")
	assert.Equal(t, time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC), p.NextAvailableAt)
}

func TestPredictDoesNotMutate(t *testing.T) {
	l, _ := testLimiter(Caps{Hourly: 2}, 1.0)

	before := l.Status(models.CategoryComprehensive)
	for i := 0; i < 5; i++ {
		l.Predict(models.CategoryComprehensive, l.now())
	}
	after := l.Status(models.CategoryComprehensive)
	assert.Equal(t, before, after)
}

func TestReset(t *testing.T) {
	l, _ := testLimiter(Caps{Hourly: 1}, 0.05)

	require.NoError(t, l.Record(models.CategoryComprehensive, 0.05, time.Second, models.OutcomeSuccess))
	assert.False(t, l.CheckAvailability(models.CategoryComprehensive).Allowed)

	require.NoError(t, l.Reset())
	assert.True(t, l.CheckAvailability(models.CategoryComprehensive).Allowed)
	assert.Equal(t, 0, l.Records().Len())
}

func TestUnknownCategoryIsUnlimited(t *testing.T) {
	l, _ := testLimiter(Caps{Hourly: 1}, 0)

	check := l.CheckAvailability(models.CategoryQuick)
	assert.True(t, check.Allowed, "no caps configured and no budget means no tier can be violated")
}

func TestUpdateConfigAppliesNewCaps(t *testing.T) {
	l, _ := testLimiter(Caps{Hourly: 5, Daily: 100, Weekly: 100, Monthly: 100}, 100)

	for i := 0; i < 2; i++ {
		require.NoError(t, l.Record(models.CategoryComprehensive, 0.02, time.Second, models.OutcomeSuccess))
	}
	require.True(t, l.CheckAvailability(models.CategoryComprehensive).Allowed)

	// Tightening the hourly cap counts existing usage against it.
	l.UpdateConfig(Config{
		Categories: map[models.RequestCategory]Caps{
			models.CategoryComprehensive: {Hourly: 2, Daily: 100, Weekly: 100, Monthly: 100},
		},
		MonthlyBudget: 100,
	})
	check := l.CheckAvailability(models.CategoryComprehensive)
	assert.False(t, check.Allowed)
	assert.Equal(t, "hourly", check.LimitingTier)

	// Loosening it clears the denial without touching counters.
	l.UpdateConfig(Config{
		Categories: map[models.RequestCategory]Caps{
			models.CategoryComprehensive: {Hourly: 5, Daily: 100, Weekly: 100, Monthly: 100},
		},
		MonthlyBudget: 100,
	})
	assert.True(t, l.CheckAvailability(models.CategoryComprehensive).Allowed)

	status := l.Status(models.CategoryComprehensive)
	assert.EqualValues(t, 2, status.Windows[0].Count)
}

func TestRecordIsAtomicAcrossWindows(t *testing.T) {
	fixed := time.Date(2026, 3, 11, 14, 30, 0, 0, time.UTC)
	l := NewLimiter(Config{
		Categories: map[models.RequestCategory]Caps{
			models.CategoryDaily: {Hourly: 0, Daily: 0, Weekly: 0, Monthly: 0},
		},
		MonthlyBudget: 1000,
	}, NewMemoryStore())
	l.now = func() time.Time { return fixed }

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			_ = l.Record(models.CategoryDaily, 0.001, time.Millisecond, models.OutcomeSuccess)
		}
	}()

	// A reader must never see some of a record's window increments
	// without the others.
	for sampling := true; sampling; {
		select {
		case <-done:
			sampling = false
		default:
		}
		status := l.Status(models.CategoryDaily)
		hourly := status.Windows[0].Count
		for _, win := range status.Windows[1:] {
			require.Equal(t, hourly, win.Count, "windows diverged mid-record")
		}
		require.InDelta(t, float64(hourly)*0.001, status.Budget.Used, 1e-9)
	}

	final := l.Status(models.CategoryDaily)
	assert.EqualValues(t, 500, final.Windows[0].Count)
}
