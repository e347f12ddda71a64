// Package orchestrator drives the two-stage analysis pipeline: an
// immediate local scoring stage, then an asynchronous enhancement
// stage that consults the result cache, the quota limiter, and the
// remote AI provider in that order.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/penlight/vitalsum/cache"
	"github.com/penlight/vitalsum/environment"
	apperrors "github.com/penlight/vitalsum/errors"
	"github.com/penlight/vitalsum/logging"
	"github.com/penlight/vitalsum/models"
	"github.com/penlight/vitalsum/provider"
	"github.com/penlight/vitalsum/quota"
	"github.com/penlight/vitalsum/scorer"
)

// Observer receives every published analysis result, each tagged with
// its source.
type Observer func(models.AnalysisResult)

// Config tunes the orchestrator.
type Config struct {
	// EnhancementTimeout is the wall-clock ceiling for the whole
	// enhancement stage, retries included.
	EnhancementTimeout time.Duration
	// KeyPrefix namespaces derived cache keys.
	KeyPrefix string
}

// Deps are the orchestrator's collaborators. Environment may be nil.
type Deps struct {
	Scorer      scorer.Scorer
	Provider    provider.Caller
	Cache       *cache.ResultCache
	Limiter     *quota.Limiter
	Environment environment.Source
}

// Orchestrator coordinates analysis runs. The local stage never blocks
// on network or cache I/O; enhancement stages of concurrent runs
// proceed independently, except that runs mapping to the same cache
// key share a single in-flight provider call.
type Orchestrator struct {
	deps    Deps
	keys    *cache.KeyGenerator
	timeout time.Duration

	mu         sync.RWMutex
	observers  []Observer
	generation uint64

	flight singleflight.Group
	wg     sync.WaitGroup
	now    func() time.Time
}

// New creates an orchestrator.
func New(deps Deps, cfg Config) *Orchestrator {
	if cfg.EnhancementTimeout <= 0 {
		cfg.EnhancementTimeout = 30 * time.Second
	}
	return &Orchestrator{
		deps:    deps,
		keys:    cache.NewKeyGenerator(cfg.KeyPrefix),
		timeout: cfg.EnhancementTimeout,
		now:     time.Now,
	}
}

// RegisterObserver registers a callback for published results.
func (o *Orchestrator) RegisterObserver(fn Observer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observers = append(o.observers, fn)
}

// Run executes an analysis. The local result is published and returned
// synchronously; the enhancement stage continues in the background and
// publishes exactly one terminal result (Cached, FreshRemote, or
// DegradedFallback) unless a newer run supersedes this one. A scorer
// failure is the only error Run returns: in that case nothing is
// published and no analysis is available.
func (o *Orchestrator) Run(ctx context.Context, req models.AnalysisRequest) (models.AnalysisResult, error) {
	local, err := o.deps.Scorer.ComputeStaticAnalysis(req.Snapshot, req.Profile)
	if err != nil {
		var ae *apperrors.AnalysisError
		if errors.As(err, &ae) {
			return models.AnalysisResult{}, err
		}
		return models.AnalysisResult{}, apperrors.NewScorerError(err)
	}

	o.mu.Lock()
	o.generation++
	gen := o.generation
	o.mu.Unlock()

	result := models.AnalysisResult{
		Local:       local,
		Source:      models.SourceLocal,
		GeneratedAt: o.now(),
	}
	o.publish(gen, result)

	// The enhancement stage outlives the caller's context; superseding
	// a run only discards its publish, not its side effects.
	bg := context.WithoutCancel(ctx)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		enhCtx, cancel := context.WithTimeout(bg, o.timeout)
		defer cancel()
		o.enhance(enhCtx, gen, req, local)
	}()

	return result, nil
}

// Wait blocks until all in-flight enhancement stages complete.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) enhance(ctx context.Context, gen uint64, req models.AnalysisRequest, local models.LocalAnalysis) {
	key := o.keys.Generate(req)

	// The local part is always freshly computed; only the remote
	// enrichment is reused from cache.
	if cached, ok := o.deps.Cache.Get(key); ok && cached.Remote != nil {
		o.publish(gen, models.AnalysisResult{
			Local:       local,
			Remote:      cached.Remote,
			Source:      models.SourceCached,
			GeneratedAt: o.now(),
		})
		return
	}

	check := o.deps.Limiter.CheckAvailability(req.Category)
	if !check.Allowed {
		logging.LogInfof("enhancement skipped: category=%s tier=%s resets=%s",
			req.Category, check.LimitingTier, check.ResetAt.Format(time.RFC3339))
		o.publish(gen, models.AnalysisResult{
			Local:          local,
			Source:         models.SourceDegraded,
			LimitingFactor: check.LimitingTier,
			GeneratedAt:    o.now(),
		})
		return
	}

	v, err, _ := o.flight.Do(key, func() (interface{}, error) {
		return o.callProvider(ctx, req, local, key)
	})
	if err != nil {
		reason := "network"
		var ae *apperrors.AnalysisError
		if errors.As(err, &ae) {
			reason = string(ae.Type)
		}
		logging.LogWarnf("enhancement failed, falling back: key=%s err=%v", key, err)
		o.publish(gen, models.AnalysisResult{
			Local:          local,
			Remote:         synthesizeEnrichment(local),
			Source:         models.SourceDegraded,
			LimitingFactor: reason,
			GeneratedAt:    o.now(),
		})
		return
	}

	o.publish(gen, models.AnalysisResult{
		Local:       local,
		Remote:      v.(*models.AIResult),
		Source:      models.SourceFreshRemote,
		GeneratedAt: o.now(),
	})
}

// callProvider performs the shared remote call for a cache key. Quota
// is recorded here, inside the single flight, so a shared call records
// exactly once regardless of how many runs attached to it.
func (o *Orchestrator) callProvider(ctx context.Context, req models.AnalysisRequest, local models.LocalAnalysis, key string) (*models.AIResult, error) {
	envSnap := req.Environment
	if envSnap == nil && o.deps.Environment != nil {
		if s, ok := o.deps.Environment.Current(ctx); ok {
			envSnap = s
		}
	}

	start := o.now()
	result, err := o.deps.Provider.Analyze(ctx, buildProviderRequest(req, local, envSnap))
	latency := o.now().Sub(start)

	if err != nil {
		// The failed attempt spent no budget but still counts as a request.
		if recErr := o.deps.Limiter.Record(req.Category, 0, latency, models.OutcomeFailure); recErr != nil {
			logging.LogWarnf("quota record failed: %v", recErr)
		}
		return nil, err
	}

	if recErr := o.deps.Limiter.Record(req.Category, result.Cost, latency, models.OutcomeSuccess); recErr != nil {
		logging.LogWarnf("quota record failed: %v", recErr)
	}

	o.deps.Cache.Put(key, models.AnalysisResult{
		Local:       local,
		Remote:      &result.AI,
		Source:      models.SourceFreshRemote,
		GeneratedAt: o.now(),
	}, req.Category.DefaultTTL())

	return &result.AI, nil
}

// publish delivers a result to all observers unless a newer run has
// superseded gen, in which case it is a no-op.
func (o *Orchestrator) publish(gen uint64, result models.AnalysisResult) {
	o.mu.RLock()
	if gen != o.generation {
		o.mu.RUnlock()
		logging.LogDebugf("dropping stale publish: gen=%d current=%d source=%s", gen, o.generation, result.Source)
		return
	}
	observers := make([]Observer, len(o.observers))
	copy(observers, o.observers)
	o.mu.RUnlock()

	for _, fn := range observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logging.LogErrorf("observer panic: %v", r)
				}
			}()
			fn(result)
		}()
	}
}

func buildProviderRequest(req models.AnalysisRequest, local models.LocalAnalysis, env *models.EnvironmentSnapshot) provider.AnalysisRequest {
	out := provider.AnalysisRequest{
		Biological: provider.BiologicalContext{
			SleepMinutes:         req.Snapshot.SleepMinutes,
			DeepSleepMinutes:     req.Snapshot.DeepSleepMinutes,
			Steps:                req.Snapshot.Steps,
			ActiveMinutes:        req.Snapshot.ActiveMinutes,
			RestingHeartRate:     req.Snapshot.RestingHeartRate,
			HeartRateVariability: req.Snapshot.HeartRateVariability,
			SleepScore:           local.SleepScore,
			ActivityScore:        local.ActivityScore,
			RecoveryScore:        local.RecoveryScore,
		},
		User: provider.UserContext{
			Age:      req.Profile.Age,
			GoalTags: req.Profile.GoalTags,
		},
		Category: string(req.Category),
	}
	if env != nil {
		out.Environmental = &provider.EnvironmentalContext{
			TemperatureC: env.TemperatureC,
			Humidity:     env.Humidity,
			Condition:    env.Condition,
		}
	}
	return out
}
