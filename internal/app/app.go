// Package app wires configuration into the cache, the providers and the
// builder and explorer that use them. The HTTP server and the CLI share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"go.uber.org/zap"

	"freightgraph/internal/auth"
	"freightgraph/internal/cache"
	"freightgraph/internal/config"
	"freightgraph/internal/explorer"
	"freightgraph/internal/graph"
	"freightgraph/internal/providers"
	"freightgraph/internal/webhooks"
)

type App struct {
	cfg atomic.Pointer[config.Config]
	Log *zap.Logger

	Cache     *cache.ScheduleCache
	Hubs      providers.LocationResolver
	Sea       *providers.CachedSea
	Air       *providers.CachedAir
	Emissions providers.EmissionsEstimator
	Delay     providers.DelayEstimator
	// Admin verifies bearer tokens on admin endpoints; nil when disabled.
	Admin *auth.Verifier
	// Webhooks is nil when no webhook URL is configured.
	Webhooks *webhooks.Publisher

	closers []io.Closer
}

// New builds an App. Unconfigured schedule services fall back to the fixture
// file, or to empty schedules when there is none.
func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	a := &App{Log: log}
	a.cfg.Store(cfg)

	store, err := cache.Open(cfg.Cache, log)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	a.Cache = cache.NewScheduleCache(store, log)
	a.closers = append(a.closers, a.Cache)

	if cfg.Providers.Hubs.DatabaseURL != "" {
		ph, err := providers.NewPostgresHubs(cfg.Providers.Hubs.DatabaseURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open hub database: %w", err)
		}
		a.Hubs = ph
		a.closers = append(a.closers, ph)
	} else {
		sh, err := providers.LoadStaticHubs(cfg.Providers.Hubs.Catalog)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Hubs = sh
	}

	fixtures := &providers.StaticSchedules{}
	if cfg.Providers.Fixtures != "" {
		if fixtures, err = providers.LoadStaticSchedules(cfg.Providers.Fixtures); err != nil {
			a.Close()
			return nil, err
		}
	}

	a.Sea = &providers.CachedSea{Cache: a.Cache, Schedule: fixtures, Ports: fixtures}
	if cfg.Providers.Sea.BaseURL != "" {
		c, err := providers.NewClient("sea", cfg.Providers.Sea, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		sc := providers.NewSeaClient(c)
		a.Sea.Schedule, a.Sea.Ports = sc, sc
	}

	a.Air = &providers.CachedAir{Cache: a.Cache, Schedule: fixtures}
	if cfg.Providers.Air.BaseURL != "" {
		c, err := providers.NewClient("air", cfg.Providers.Air, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Air.Schedule = providers.NewAirClient(c)
	}

	a.Emissions = providers.NoEmissions{}
	if cfg.Providers.Emissions.BaseURL != "" {
		c, err := providers.NewClient("emissions", cfg.Providers.Emissions, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Emissions = providers.NewEmissionsClient(c)
	}

	local := providers.NewStochasticDelay(cfg.Builder.Seed)
	a.Delay = local
	if cfg.Providers.Delay.BaseURL != "" {
		c, err := providers.NewClient("delay", cfg.Providers.Delay, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Delay = providers.FallbackDelay{Primary: providers.NewDelayClient(c), Fallback: local, Log: log}
	}

	if a.Admin, err = auth.NewVerifier(cfg.Server.Auth); err != nil {
		a.Close()
		return nil, err
	}

	if wh := cfg.Webhooks; len(wh.URLs) > 0 {
		a.Webhooks = webhooks.NewPublisher(wh.URLs, wh.QueueSize, log.Named("webhooks"))
		w := webhooks.NewWorker(wh.Secret, wh.MaxAttempts, log.Named("webhooks"))
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			w.Run(ctx, a.Webhooks.Queue())
		}()
		a.closers = append(a.closers, closerFunc(func() error {
			cancel()
			<-done
			return nil
		}))
	}
	return a, nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// Config returns the configuration currently in effect.
func (a *App) Config() *config.Config { return a.cfg.Load() }

// Reload swaps in new budgets and builder settings. Backends and provider
// endpoints keep the values they were opened with.
func (a *App) Reload(cfg *config.Config) {
	a.cfg.Store(cfg)
	a.Log.Info("configuration reloaded",
		zap.Int("maxHops", cfg.Explorer.MaxHops),
		zap.Duration("wallClock", cfg.Explorer.WallClock),
		zap.Duration("buildDeadline", cfg.Builder.Deadline),
	)
}

func (a *App) Builder() *graph.Builder {
	return graph.NewBuilder(graph.Deps{
		Hubs:      a.Hubs,
		Sea:       a.Sea,
		Air:       a.Air,
		Emissions: a.Emissions,
		Delay:     a.Delay,
	}, a.Log.Named("builder"), BuilderOptions(a.Config().Builder))
}

func (a *App) Explorer() *explorer.Explorer {
	return explorer.New(a.Sea, a.Log.Named("explorer"), ExplorerOptions(a.Config().Explorer))
}

// Ready checks the cache backend.
func (a *App) Ready(ctx context.Context) error {
	_, err := a.Cache.Stats(ctx)
	return err
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func BuilderOptions(c config.BuilderConfig) graph.Options {
	return graph.Options{
		Deadline:         c.Deadline,
		HubsPerSide:      c.HubsPerSide,
		LayoverAirports:  c.LayoverAirports,
		LayoverBatchSize: c.LayoverBatchSize,
		RoadSpeedKph:     c.RoadSpeedKph,
		TransferBuffer:   c.TransferBuffer,
		CargoTons:        c.CargoTons,
		Seed:             c.Seed,
		HubDelayHours:    c.HubDelayHours,
		Disruptions:      c.Disruptions,
		Weather:          c.Weather,
	}
}

func ExplorerOptions(c config.ExplorerConfig) explorer.Options {
	return explorer.Options{
		MaxHops:           c.MaxHops,
		WallClock:         c.WallClock,
		MaxPorts:          c.MaxPorts,
		MaxCompleteRoutes: c.MaxCompleteRoutes,
		Window:            c.Window,
		MaxTreeNodes:      c.MaxTreeNodes,
	}
}
