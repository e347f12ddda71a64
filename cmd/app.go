package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/penlight/vitalsum/cache"
	"github.com/penlight/vitalsum/config"
	apperrors "github.com/penlight/vitalsum/errors"
	"github.com/penlight/vitalsum/environment"
	"github.com/penlight/vitalsum/logging"
	"github.com/penlight/vitalsum/models"
	"github.com/penlight/vitalsum/netclient"
	"github.com/penlight/vitalsum/orchestrator"
	"github.com/penlight/vitalsum/provider"
	"github.com/penlight/vitalsum/quota"
	"github.com/penlight/vitalsum/scorer"
)

// app holds the wired application components.
type app struct {
	cfg     *config.Config
	store   quota.CounterStore
	limiter *quota.Limiter
	cache   *cache.ResultCache
	orch    *orchestrator.Orchestrator
}

// newApp builds the component graph from configuration.
func newApp(cfg *config.Config) (*app, error) {
	var store quota.CounterStore
	if cfg.Persistence.Enabled {
		s, err := quota.NewBadgerStore(quota.BadgerConfig{
			Path:       os.ExpandEnv(cfg.Persistence.Path),
			GCInterval: cfg.Persistence.GCInterval,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open quota store: %w", err)
		}
		store = s
	} else {
		store = quota.NewMemoryStore()
	}

	limiter := quota.NewLimiter(quotaConfig(cfg), store)

	resultCache := cache.New(cache.Config{
		MaxEntries: cfg.Cache.MaxEntries,
		DefaultTTL: cfg.Cache.DefaultTTL,
		Policy:     cache.EvictionPolicy(cfg.Cache.Policy),
	})

	httpClient := netclient.New(netclient.Config{
		Timeout:     cfg.Client.Timeout,
		MaxAttempts: cfg.Client.MaxAttempts,
		BaseBackoff: cfg.Client.BaseBackoff,
		Rate:        cfg.Client.RatePerSecond,
		Burst:       cfg.Client.Burst,
	})

	var caller provider.Caller
	if cfg.Provider.Offline {
		caller = offlineProvider{}
	} else {
		caller = provider.NewClient(cfg.Provider.BaseURL, cfg.Provider.APIKey, httpClient)
	}

	var envSource environment.Source
	if cfg.Environment.Enabled && cfg.Environment.URL != "" {
		envSource = environment.NewHTTPSource(cfg.Environment.URL, httpClient, cfg.Environment.Timeout)
	}

	orch := orchestrator.New(orchestrator.Deps{
		Scorer:      scorer.NewStatic(),
		Provider:    caller,
		Cache:       resultCache,
		Limiter:     limiter,
		Environment: envSource,
	}, orchestrator.Config{
		KeyPrefix: cfg.Cache.KeyPrefix,
	})

	return &app{
		cfg:     cfg,
		store:   store,
		limiter: limiter,
		cache:   resultCache,
		orch:    orch,
	}, nil
}

// close waits for in-flight work and releases the store.
func (a *app) close() error {
	a.orch.Wait()
	return a.store.Close()
}

// applyConfig re-tunes the live components after a config reload.
// The counter store, provider, and HTTP client are fixed for the
// process lifetime; caps, budget, and cache tuning take effect
// immediately.
func (a *app) applyConfig(cfg *config.Config) {
	a.limiter.UpdateConfig(quotaConfig(cfg))
	a.cache.UpdateConfig(cache.Config{
		MaxEntries: cfg.Cache.MaxEntries,
		DefaultTTL: cfg.Cache.DefaultTTL,
		Policy:     cache.EvictionPolicy(cfg.Cache.Policy),
	})
	logging.LogInfof("applied updated quota and cache configuration")
}

func quotaConfig(cfg *config.Config) quota.Config {
	out := quota.Config{
		MonthlyBudget:  cfg.Quota.MonthlyBudget,
		RecordCapacity: cfg.Quota.RecordCapacity,
	}
	if len(cfg.Quota.Categories) > 0 {
		out.Categories = make(map[models.RequestCategory]quota.Caps, len(cfg.Quota.Categories))
		for name, caps := range cfg.Quota.Categories {
			out.Categories[models.RequestCategory(name)] = quota.Caps{
				Hourly:  caps.Hourly,
				Daily:   caps.Daily,
				Weekly:  caps.Weekly,
				Monthly: caps.Monthly,
			}
		}
	}
	return out
}

// offlineProvider fails every call so the pipeline falls back to the
// locally synthesized enhancement.
type offlineProvider struct{}

func (offlineProvider) Analyze(ctx context.Context, req provider.AnalysisRequest) (*provider.Result, error) {
	return nil, apperrors.NewTransportError(fmt.Errorf("offline mode"))
}
