package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penlight/vitalsum/cache"
	apperrors "github.com/penlight/vitalsum/errors"
	"github.com/penlight/vitalsum/models"
	"github.com/penlight/vitalsum/provider"
	"github.com/penlight/vitalsum/quota"
	"github.com/penlight/vitalsum/scorer"
)

type recorder struct {
	mu      sync.Mutex
	results []models.AnalysisResult
}

func (r *recorder) observe(res models.AnalysisResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *recorder) all() []models.AnalysisResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.AnalysisResult, len(r.results))
	copy(out, r.results)
	return out
}

func (r *recorder) bySource(src models.ResultSource) []models.AnalysisResult {
	var out []models.AnalysisResult
	for _, res := range r.all() {
		if res.Source == src {
			out = append(out, res)
		}
	}
	return out
}

type harness struct {
	orch     *Orchestrator
	mock     *provider.Mock
	cache    *cache.ResultCache
	limiter  *quota.Limiter
	recorder *recorder
}

func newHarness(t *testing.T, quotaCfg quota.Config) *harness {
	t.Helper()
	mock := &provider.Mock{}
	resultCache := cache.New(cache.Config{MaxEntries: 16})
	limiter := quota.NewLimiter(quotaCfg, quota.NewMemoryStore())
	o := New(Deps{
		Scorer:   scorer.NewStatic(),
		Provider: mock,
		Cache:    resultCache,
		Limiter:  limiter,
	}, Config{EnhancementTimeout: 5 * time.Second})
	rec := &recorder{}
	o.RegisterObserver(rec.observe)
	return &harness{orch: o, mock: mock, cache: resultCache, limiter: limiter, recorder: rec}
}

func sampleRequest(category models.RequestCategory) models.AnalysisRequest {
	return models.AnalysisRequest{
		Snapshot: models.SensorSnapshot{
			SleepMinutes:         460,
			DeepSleepMinutes:     100,
			Steps:                9200,
			ActiveMinutes:        55,
			RestingHeartRate:     52,
			HeartRateVariability: 68,
		},
		Profile:  models.UserProfile{Age: 34},
		Category: category,
	}
}

func TestRunPublishesLocalThenFresh(t *testing.T) {
	h := newHarness(t, quota.DefaultConfig())

	result, err := h.orch.Run(context.Background(), sampleRequest(models.CategoryDaily))
	require.NoError(t, err)
	assert.Equal(t, models.SourceLocal, result.Source)
	assert.Nil(t, result.Remote)
	assert.Greater(t, result.Local.CompositeScore, 0.0)

	h.orch.Wait()

	published := h.recorder.all()
	require.Len(t, published, 2)
	assert.Equal(t, models.SourceLocal, published[0].Source)
	assert.Equal(t, models.SourceFreshRemote, published[1].Source)
	require.NotNil(t, published[1].Remote)
	assert.Equal(t, "mock-1", published[1].Remote.Model)
	assert.Equal(t, published[0].Local, published[1].Local)
}

func TestRepeatRunServedFromCache(t *testing.T) {
	h := newHarness(t, quota.DefaultConfig())
	req := sampleRequest(models.CategoryDaily)

	_, err := h.orch.Run(context.Background(), req)
	require.NoError(t, err)
	h.orch.Wait()

	_, err = h.orch.Run(context.Background(), req)
	require.NoError(t, err)
	h.orch.Wait()

	assert.EqualValues(t, 1, h.mock.Calls())

	cached := h.recorder.bySource(models.SourceCached)
	require.Len(t, cached, 1)
	fresh := h.recorder.bySource(models.SourceFreshRemote)
	require.Len(t, fresh, 1)
	assert.Equal(t, fresh[0].Remote, cached[0].Remote)
}

func TestQuotaDeniedSkipsNetwork(t *testing.T) {
	cfg := quota.DefaultConfig()
	cfg.Categories[models.CategoryDaily] = quota.Caps{Hourly: 1, Daily: 100, Weekly: 100, Monthly: 100}
	h := newHarness(t, cfg)

	require.NoError(t, h.limiter.Record(models.CategoryDaily, 0.01, time.Millisecond, models.OutcomeSuccess))

	_, err := h.orch.Run(context.Background(), sampleRequest(models.CategoryDaily))
	require.NoError(t, err)
	h.orch.Wait()

	assert.EqualValues(t, 0, h.mock.Calls())

	degraded := h.recorder.bySource(models.SourceDegraded)
	require.Len(t, degraded, 1)
	assert.Equal(t, string(quota.WindowHourly), degraded[0].LimitingFactor)
	assert.Nil(t, degraded[0].Remote)
}

func TestProviderFailureSynthesizesFallback(t *testing.T) {
	h := newHarness(t, quota.DefaultConfig())
	h.mock.AnalyzeFunc = func(ctx context.Context, req provider.AnalysisRequest) (*provider.Result, error) {
		return nil, apperrors.NewServerError(503, "overloaded")
	}

	_, err := h.orch.Run(context.Background(), sampleRequest(models.CategoryQuick))
	require.NoError(t, err)
	h.orch.Wait()

	degraded := h.recorder.bySource(models.SourceDegraded)
	require.Len(t, degraded, 1)
	require.NotNil(t, degraded[0].Remote)
	assert.Equal(t, fallbackModel, degraded[0].Remote.Model)
	assert.Equal(t, string(apperrors.TypeServer), degraded[0].LimitingFactor)

	// The failed attempt counts toward windows but spends nothing.
	status := h.limiter.Status(models.CategoryQuick)
	assert.Zero(t, status.Budget.Used)
	records := h.limiter.Records().Recent(10)
	require.Len(t, records, 1)
	assert.Equal(t, models.OutcomeFailure, records[0].Outcome)
}

func TestFallbackIsDeterministic(t *testing.T) {
	local := models.LocalAnalysis{
		SleepScore:     40,
		ActivityScore:  75,
		RecoveryScore:  60,
		CompositeScore: 56,
		Band:           "Fair",
	}
	a := synthesizeEnrichment(local)
	b := synthesizeEnrichment(local)
	assert.Equal(t, a, b)
	// Weakest component drives the suggestions.
	assert.Contains(t, a.ActionSuggestions[0], "bedtime")
}

func TestConcurrentRunsShareOneProviderCall(t *testing.T) {
	h := newHarness(t, quota.DefaultConfig())
	h.mock.Block = make(chan struct{})
	req := sampleRequest(models.CategoryDaily)

	_, err := h.orch.Run(context.Background(), req)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.mock.Calls() == 1 }, time.Second, 5*time.Millisecond)

	_, err = h.orch.Run(context.Background(), req)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	close(h.mock.Block)
	h.orch.Wait()

	assert.EqualValues(t, 1, h.mock.Calls())

	// Shared call records quota once.
	status := h.limiter.Status(models.CategoryDaily)
	for _, win := range status.Windows {
		if win.Kind == quota.WindowHourly {
			assert.EqualValues(t, 1, win.Count)
		}
	}
}

func TestNewerRunSupersedesOlderPublish(t *testing.T) {
	h := newHarness(t, quota.DefaultConfig())
	h.mock.Block = make(chan struct{})
	h.mock.AnalyzeFunc = func(ctx context.Context, req provider.AnalysisRequest) (*provider.Result, error) {
		return &provider.Result{
			AI:   models.AIResult{Headline: req.Category, Model: "mock-1"},
			Cost: 0.005,
		}, nil
	}

	first := sampleRequest(models.CategoryQuick)
	second := sampleRequest(models.CategoryDaily)

	_, err := h.orch.Run(context.Background(), first)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.mock.Calls() == 1 }, time.Second, 5*time.Millisecond)

	_, err = h.orch.Run(context.Background(), second)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.mock.Calls() == 2 }, time.Second, 5*time.Millisecond)

	close(h.mock.Block)
	h.orch.Wait()

	// Only the newest run's terminal result is observable.
	fresh := h.recorder.bySource(models.SourceFreshRemote)
	require.Len(t, fresh, 1)
	assert.Equal(t, string(models.CategoryDaily), fresh[0].Remote.Headline)

	// The superseded run's side effects still landed.
	assert.Equal(t, 2, h.cache.Len())
}

func TestScorerErrorIsFatal(t *testing.T) {
	h := newHarness(t, quota.DefaultConfig())

	req := sampleRequest(models.CategoryQuick)
	req.Snapshot = models.SensorSnapshot{}

	_, err := h.orch.Run(context.Background(), req)
	require.Error(t, err)
	var ae *apperrors.AnalysisError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperrors.TypeScorer, ae.Type)

	h.orch.Wait()
	assert.Empty(t, h.recorder.all())
	assert.EqualValues(t, 0, h.mock.Calls())
}

func TestObserverPanicDoesNotStopFanout(t *testing.T) {
	h := newHarness(t, quota.DefaultConfig())
	h.orch.RegisterObserver(func(models.AnalysisResult) {
		panic("observer bug")
	})
	extra := &recorder{}
	h.orch.RegisterObserver(extra.observe)

	_, err := h.orch.Run(context.Background(), sampleRequest(models.CategoryQuick))
	require.NoError(t, err)
	h.orch.Wait()

	assert.Len(t, extra.all(), 2)
}

func TestCallerCancellationDoesNotAbortEnhancement(t *testing.T) {
	h := newHarness(t, quota.DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	_, err := h.orch.Run(ctx, sampleRequest(models.CategoryDaily))
	require.NoError(t, err)
	cancel()
	h.orch.Wait()

	fresh := h.recorder.bySource(models.SourceFreshRemote)
	assert.Len(t, fresh, 1)
}
