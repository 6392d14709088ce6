// Package consolidate merges run CSVs into the cumulative report store.
package consolidate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/metrics"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/pkg/distlock"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/pkg/logger"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/report"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/storage"
)

// ErrStoreNotFound is returned by Load when nothing has been consolidated yet.
var ErrStoreNotFound = errors.New("consolidated store not found")

const lockKey = "consolidated-store"

// Repository owns the consolidated store document.
type Repository struct {
	blob    storage.Blob
	key     string
	locks   distlock.Provider
	lockTTL time.Duration
	loc     *time.Location
	now     func() time.Time
}

// Option configures a Repository.
type Option func(*Repository)

// WithLocks serializes read-modify-write cycles through p.
func WithLocks(p distlock.Provider, ttl time.Duration) Option {
	return func(r *Repository) {
		r.locks = p
		r.lockTTL = ttl
	}
}

// WithLocation sets the timezone in which report filenames are read.
func WithLocation(loc *time.Location) Option {
	return func(r *Repository) { r.loc = loc }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// NewRepository creates a repository storing the document under key.
func NewRepository(blob storage.Blob, key string, opts ...Option) *Repository {
	r := &Repository{
		blob:    blob,
		key:     key,
		locks:   distlock.NewLocalProvider(),
		lockTTL: 15 * time.Minute,
		loc:     time.UTC,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Key is the storage key of the store document.
func (r *Repository) Key() string { return r.key }

// Load reads the store; ErrStoreNotFound when it was never written.
func (r *Repository) Load(ctx context.Context) (*report.Store, error) {
	var store report.Store
	err := storage.GetJSON(ctx, r.blob, r.key, &store)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrStoreNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading consolidated store: %w", err)
	}
	store.Normalize()
	return &store, nil
}

// LoadOrInit reads the store, falling back to an empty one. Failures other
// than absence are logged and also yield an empty store.
func (r *Repository) LoadOrInit(ctx context.Context) *report.Store {
	store, err := r.Load(ctx)
	if err == nil {
		return store
	}
	if !errors.Is(err, ErrStoreNotFound) {
		logger.Error("consolidated store unreadable, starting empty", "key", r.key, "error", err)
	}
	return report.NewStore(r.now())
}

// Stat reports size and modification time of the persisted store.
func (r *Repository) Stat(ctx context.Context) (storage.Info, error) {
	info, err := r.blob.Stat(ctx, r.key)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.Info{}, ErrStoreNotFound
	}
	return info, err
}

// Persist overwrites the stored document with store.
func (r *Repository) Persist(ctx context.Context, store *report.Store) error {
	if err := storage.PutJSON(ctx, r.blob, r.key, store); err != nil {
		return fmt.Errorf("persisting consolidated store: %w", err)
	}
	if info, err := r.blob.Stat(ctx, r.key); err == nil {
		logger.Info("consolidated store saved", "key", r.key, "size_kb", fmt.Sprintf("%.2f", float64(info.Size)/1024))
	}
	return nil
}

// ConsolidateAll rebuilds the store from every report_*.csv in dir, in
// filename order, and persists it. Unreadable files are logged and skipped.
func (r *Repository) ConsolidateAll(ctx context.Context, dir string) (*report.Store, error) {
	start := time.Now()
	files, err := ListReportFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		logger.Warn("no report CSV files to consolidate", "dir", dir)
	}

	store := report.NewStore(r.now())
	for _, path := range files {
		exec, sf, err := r.readExecution(path)
		if err != nil {
			logger.Error("skipping report file", "file", path, "error", err)
			metrics.ConsolidatedFiles.WithLabelValues("skipped").Inc()
			continue
		}
		store = MergeExecution(store, exec, sf, r.now())
		metrics.ConsolidatedFiles.WithLabelValues("merged").Inc()
	}

	err = r.withLock(ctx, func(ctx context.Context) error {
		return r.Persist(ctx, store)
	})
	if err != nil {
		return nil, err
	}
	metrics.ConsolidationDuration.WithLabelValues("full").Observe(time.Since(start).Seconds())
	logger.Info("full consolidation finished",
		"executions", store.Metadata.TotalExecutions,
		"urls", len(store.Metadata.DistinctURLs),
		"files", len(files))
	return store, nil
}

// ConsolidateIncremental merges the single CSV at path into the persisted store.
func (r *Repository) ConsolidateIncremental(ctx context.Context, path string) (*report.Store, error) {
	start := time.Now()
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("report CSV not found: %s: %w", path, err)
	}
	exec, sf, err := r.readExecution(path)
	if err != nil {
		metrics.ConsolidatedFiles.WithLabelValues("failed").Inc()
		return nil, err
	}

	var store *report.Store
	err = r.withLock(ctx, func(ctx context.Context) error {
		current := r.LoadOrInit(ctx)
		if _, exists := current.Executions[exec.ID]; exists {
			logger.Info("execution already consolidated, replacing", "execution", exec.ID)
		}
		store = MergeExecution(current, exec, sf, r.now())
		return r.Persist(ctx, store)
	})
	if err != nil {
		metrics.ConsolidatedFiles.WithLabelValues("failed").Inc()
		return nil, err
	}

	metrics.ConsolidatedFiles.WithLabelValues("merged").Inc()
	metrics.ConsolidationDuration.WithLabelValues("incremental").Observe(time.Since(start).Seconds())
	logger.Info("execution consolidated",
		"execution", exec.ID,
		"urls", len(exec.URLs),
		"executions", store.Metadata.TotalExecutions,
		"distinct_urls", len(store.Metadata.DistinctURLs))
	return store, nil
}

func (r *Repository) readExecution(path string) (*report.Execution, report.SourceFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, report.SourceFile{}, err
	}
	defer f.Close()

	now := r.now()
	records, err := report.ReadCSV(f, now)
	if err != nil {
		return nil, report.SourceFile{}, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	info := report.ParseFilename(path, r.loc, now)
	return report.Aggregate(info, records), report.SourceFileFor(info, len(records)), nil
}

func (r *Repository) withLock(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.locks == nil {
		return fn(ctx)
	}
	return distlock.Run(ctx, r.locks.NewLock(lockKey, r.lockTTL), fn)
}

// ListReportFiles returns the report_*.csv paths in dir sorted by name,
// which is chronological for well-formed names.
func ListReportFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && report.IsReportFile(e.Name()) {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	for i, name := range files {
		files[i] = filepath.Join(dir, name)
	}
	return files, nil
}
