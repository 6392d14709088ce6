// Package collector is the fetch-and-write step: it resolves the URL list,
// queries GA4 for each URL, writes the run's CSV and merges it into the store.
package collector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/metrics"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/pkg/logger"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/pkg/retry"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/report"
)

// ErrPreflight wraps configuration problems detected before a run starts.
// Retrying such a run cannot succeed.
var ErrPreflight = errors.New("run preflight failed")

// Fetcher queries one URL for one day.
type Fetcher interface {
	QueryDate(now time.Time) string
	FetchURL(ctx context.Context, url, day string) report.MetricsRecord
}

// RemoteSource is an optional URL source; nil means "not available".
type RemoteSource interface {
	URLs(ctx context.Context) []string
}

// URLList is the local URL config.
type URLList interface {
	URLs(ctx context.Context) ([]string, error)
}

// Consolidator merges a freshly written CSV into the store.
type Consolidator interface {
	ConsolidateIncremental(ctx context.Context, path string) (*report.Store, error)
}

// Summary counts the outcome of a run's URLs.
type Summary struct {
	TotalURLs    int `json:"totalUrls"`
	Successful   int `json:"successful"`
	WithWarnings int `json:"withWarnings"`
	WithInsights int `json:"withInsights"`
	Errors       int `json:"errors"`
}

// RunResult describes a finished run.
type RunResult struct {
	ID       string
	CSVPath  string
	Summary  Summary
	Duration time.Duration
}

// Runner executes runs. It holds no state between runs.
type Runner struct {
	fetcher Fetcher
	urls    URLList
	store   Consolidator
	dataDir string

	remote RemoteSource
	check  func() error
	pause  time.Duration
	loc    *time.Location
	now    func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithRemoteSource consults src before the local URL list.
func WithRemoteSource(src RemoteSource) Option {
	return func(r *Runner) { r.remote = src }
}

// WithPreflight runs check before every run; an error aborts the run.
func WithPreflight(check func() error) Option {
	return func(r *Runner) { r.check = check }
}

// WithPause sets the delay between consecutive URL queries.
func WithPause(d time.Duration) Option {
	return func(r *Runner) { r.pause = d }
}

// WithLocation sets the zone used to name run files.
func WithLocation(loc *time.Location) Option {
	return func(r *Runner) { r.loc = loc }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner creates a runner writing CSVs into dataDir.
func NewRunner(fetcher Fetcher, urls URLList, store Consolidator, dataDir string, opts ...Option) *Runner {
	r := &Runner{
		fetcher: fetcher,
		urls:    urls,
		store:   store,
		dataDir: dataDir,
		pause:   200 * time.Millisecond,
		loc:     time.UTC,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run performs one fetch-and-consolidate cycle.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	if r.check != nil {
		if err := r.check(); err != nil {
			return nil, fmt.Errorf("%w: GA4 configuration: %w", ErrPreflight, err)
		}
	}

	start := r.now()
	urls, err := r.resolveURLs(ctx)
	if err != nil {
		return nil, err
	}

	day := r.fetcher.QueryDate(start)
	logger.Info("report run started", "urls", len(urls), "query_date", day)

	summary := Summary{TotalURLs: len(urls)}
	records := make([]report.MetricsRecord, 0, len(urls))
	for i, url := range urls {
		if i > 0 && r.pause > 0 {
			if err := retry.Sleep(ctx, r.pause); err != nil {
				return nil, err
			}
		}
		rec := r.fetcher.FetchURL(ctx, url, day)
		records = append(records, rec)
		tally(&summary, rec)
	}

	name := report.ReportFilename(start, r.loc)
	path := filepath.Join(r.dataDir, name)
	if err := writeReport(path, records); err != nil {
		return nil, err
	}
	logger.Info("report written", "file", path, "total", summary.TotalURLs, "successful", summary.Successful,
		"with_warnings", summary.WithWarnings, "with_insights", summary.WithInsights, "errors", summary.Errors)

	if _, err := r.store.ConsolidateIncremental(ctx, path); err != nil {
		return nil, fmt.Errorf("consolidating %s: %w", name, err)
	}

	return &RunResult{
		ID:       report.ParseFilename(name, r.loc, start).ID,
		CSVPath:  path,
		Summary:  summary,
		Duration: r.now().Sub(start),
	}, nil
}

// resolveURLs prefers the remote source and falls back to the local list.
func (r *Runner) resolveURLs(ctx context.Context) ([]string, error) {
	if r.remote != nil {
		if urls := r.remote.URLs(ctx); len(urls) > 0 {
			return urls, nil
		}
	}
	urls, err := r.urls.URLs(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading url list: %w", err)
	}
	if len(urls) == 0 {
		logger.Warn("url list is empty, writing an empty report")
	}
	return urls, nil
}

func tally(s *Summary, rec report.MetricsRecord) {
	switch {
	case rec.DataFound:
		s.Successful++
		metrics.URLsFetchedTotal.WithLabelValues("data").Inc()
	case len(rec.Warnings) > 0:
		s.Errors++
		metrics.URLsFetchedTotal.WithLabelValues("error").Inc()
	default:
		s.Errors++
		metrics.URLsFetchedTotal.WithLabelValues("empty").Inc()
	}
	if len(rec.Warnings) > 0 {
		s.WithWarnings++
	}
	if len(rec.Insights) > 0 {
		s.WithInsights++
	}
}

// writeReport writes to a hidden temp file and renames it so directory
// watchers never see a partial CSV.
func writeReport(path string, records []report.MetricsRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tmp")
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}
	if err := report.WriteCSV(f, records); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing report file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing report file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming report file: %w", err)
	}
	return nil
}
