// Package app wires the configured components into the report service.
// cmd/server and cmd/reportctl share it so both act on the same store.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/analytics"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/collector"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/config"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/consolidate"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/pkg/distlock"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/pkg/logger"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/pkg/retry"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/scheduler"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/sheets"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/storage"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/urlconfig"
)

// App holds the wired components.
type App struct {
	Config    *config.Config
	Store     *consolidate.Repository
	URLs      *urlconfig.Manager
	Runner    *collector.Runner
	Scheduler *scheduler.Scheduler

	redis *redis.Client
}

// New builds every component from cfg. Missing Google credentials are not
// fatal: the store and URL config still work, and each run fails its
// preflight with the credentials error.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	logger.SetService("ga4-reports")

	a := &App{Config: cfg}

	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing REDIS_URL: %w", err)
		}
		a.redis = redis.NewClient(opts)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, using in-process locks", "error", err)
			a.redis.Close()
			a.redis = nil
		}
	}
	locks := distlock.NewProvider(a.redis)

	blob, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	loc := cfg.GA4.Location()
	a.Store = consolidate.NewRepository(blob, cfg.Paths.StorePath(),
		consolidate.WithLocks(locks, cfg.Redis.LockTTL()),
		consolidate.WithLocation(loc),
	)

	// The URL config and the sheet cache are always local files.
	local := storage.NewLocal("")
	a.URLs = urlconfig.NewManager(local, cfg.Paths.URLConfig)

	var httpClient *http.Client
	creds, credErr := cfg.GA4.Credentials()
	if credErr == nil {
		httpClient, credErr = analytics.NewHTTPClient(ctx, creds, cfg.GA4.Timeout(),
			analytics.ReadOnlyScope, sheets.ReadOnlyScope)
	}
	if credErr != nil {
		logger.Warn("Google credentials unavailable, report runs will fail", "error", credErr)
		httpClient = &http.Client{Timeout: cfg.GA4.Timeout()}
	}

	client := analytics.NewClient(cfg.GA4.BaseURL, cfg.GA4.PropertyID, httpClient)
	opts := []collector.Option{
		collector.WithPreflight(func() error {
			if err := cfg.GA4.Validate(); err != nil {
				return err
			}
			return credErr
		}),
		collector.WithPause(cfg.GA4.RequestPause()),
		collector.WithLocation(loc),
	}
	if cfg.Sheets.SheetID != "" && credErr == nil {
		src := sheets.NewSource(cfg.Sheets.BaseURL, cfg.Sheets.SheetID, cfg.Sheets.Range,
			httpClient, local, cfg.Sheets.CachePath)
		opts = append(opts, collector.WithRemoteSource(src))
	}
	a.Runner = collector.NewRunner(analytics.NewFetcher(client, loc), a.URLs, a.Store, cfg.Paths.DataDir, opts...)

	a.Scheduler, err = scheduler.New(a.Runner, scheduler.Options{
		Hours:       cfg.Scheduler.Hours,
		Location:    loc,
		LogDir:      cfg.Paths.LogDir,
		MaxLogFiles: cfg.Scheduler.MaxLogFiles,
		Retry:       RetryPolicy(cfg.Scheduler.Retry),
		Locks:       locks,
		LockTTL:     cfg.Redis.LockTTL(),
	})
	if err != nil {
		return nil, fmt.Errorf("initializing scheduler: %w", err)
	}
	return a, nil
}

// RetryPolicy maps the run retry settings to a policy.
func RetryPolicy(c config.RetryConfig) retry.Policy {
	if c.MaxAttempts <= 0 {
		return retry.None{}
	}
	return &retry.Exponential{
		MaxRetries: c.MaxAttempts,
		BaseDelay:  time.Duration(c.BaseDelaySeconds) * time.Second,
		MaxDelay:   time.Duration(c.MaxDelaySeconds) * time.Second,
	}
}

// Close releases the Redis connection, if any.
func (a *App) Close() error {
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}
