// Package scheduler runs the report step at fixed local hours, on demand, and
// records each run in a log file.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/collector"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/metrics"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/pkg/distlock"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/pkg/logger"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/pkg/retry"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/report"
)

// Run triggers.
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
	TriggerStartup  = "startup"
)

const runLockKey = "ga4-report-run"

// ErrRunInProgress is returned by RunNow while another run holds the run lock.
var ErrRunInProgress = errors.New("a report run is already in progress")

// Runner performs one report run.
type Runner interface {
	Run(ctx context.Context) (*collector.RunResult, error)
}

// Outcome is the record of one finished run.
type Outcome struct {
	RunID       string             `json:"runId"`
	ExecutionID string             `json:"executionId,omitempty"`
	Trigger     string             `json:"trigger"`
	Success     bool               `json:"success"`
	Error       string             `json:"error,omitempty"`
	Attempts    []string           `json:"attempts,omitempty"`
	Duration    time.Duration      `json:"-"`
	LogFile     string             `json:"logFile"`
	StartedAt   string             `json:"startedAt"`
	FinishedAt  string             `json:"finishedAt"`
	Summary     *collector.Summary `json:"summary,omitempty"`
}

// DurationSeconds is the run duration with two decimals.
func (o *Outcome) DurationSeconds() string {
	return strconv.FormatFloat(o.Duration.Seconds(), 'f', 2, 64)
}

// Status is the scheduler state exposed by the API.
type Status struct {
	Active        bool
	Schedule      string
	Description   string
	Timezone      string
	NextExecution time.Time
	LastOutcome   *Outcome
}

// Options configure a Scheduler.
type Options struct {
	Hours       []int
	Location    *time.Location
	LogDir      string
	MaxLogFiles int
	// Retry decides whether a failed run is repeated. Nil means no retry.
	Retry   retry.Policy
	Locks   distlock.Provider
	LockTTL time.Duration
}

// Scheduler fires the runner at the configured hours.
type Scheduler struct {
	runner  Runner
	hours   []int
	loc     *time.Location
	policy  retry.Policy
	locks   distlock.Provider
	lockTTL time.Duration
	logs    *runLog

	now   func() time.Time
	after func(time.Duration) <-chan time.Time

	mu     sync.RWMutex
	active bool
	last   *Outcome
}

// New creates a scheduler. Call Start to begin the timed loop.
func New(runner Runner, opts Options) (*Scheduler, error) {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Retry == nil {
		opts.Retry = retry.None{}
	}
	if opts.Locks == nil {
		opts.Locks = distlock.NewLocalProvider()
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 15 * time.Minute
	}
	if opts.LogDir == "" {
		opts.LogDir = "./logs"
	}
	logs, err := newRunLog(opts.LogDir, opts.MaxLogFiles)
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		runner:  runner,
		hours:   normalizeHours(opts.Hours),
		loc:     opts.Location,
		policy:  opts.Retry,
		locks:   opts.Locks,
		lockTTL: opts.LockTTL,
		logs:    logs,
		now:     time.Now,
		after:   time.After,
	}, nil
}

// Start blocks, running the report at every fire time until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.setActive(true)
	defer s.setActive(false)

	logger.Info("scheduler started", "schedule", Expression(s.hours), "timezone", s.loc.String())
	for ctx.Err() == nil {
		next := NextFireTime(s.now(), s.hours, s.loc)
		logger.Info("next report run scheduled", "at", next.Format(time.RFC3339))

		select {
		case <-ctx.Done():
			continue
		case <-s.after(next.Sub(s.now())):
		}

		if _, err := s.RunNow(ctx, TriggerSchedule); err != nil {
			logger.Error("scheduled report run failed", "error", err)
		}
	}
	logger.Info("scheduler stopped")
}

// RunNow executes one run synchronously. A failed run is reported through the
// outcome; the error is reserved for runs that could not be attempted
// (preflight failure, run already in progress).
func (s *Scheduler) RunNow(ctx context.Context, trigger string) (*Outcome, error) {
	var (
		outcome *Outcome
		runErr  error
	)
	err := distlock.TryRun(ctx, s.locks.NewLock(runLockKey, s.lockTTL), func(ctx context.Context) error {
		outcome, runErr = s.execute(ctx, trigger)
		return nil
	})
	if errors.Is(err, distlock.ErrLocked) {
		metrics.RunsTotal.WithLabelValues(trigger, "skipped").Inc()
		logger.Warn("report run skipped, another run is in progress", "trigger", trigger)
		return nil, ErrRunInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("acquiring run lock: %w", err)
	}
	return outcome, runErr
}

func (s *Scheduler) execute(ctx context.Context, trigger string) (*Outcome, error) {
	start := s.now()
	o := &Outcome{
		RunID:     uuid.New().String(),
		Trigger:   trigger,
		StartedAt: report.FormatTimestamp(start),
	}
	logger.Info("report run started", "run_id", o.RunID, "trigger", trigger)

	var result *collector.RunResult
	err := retry.Do(ctx, s.policy, func(ctx context.Context) error {
		res, err := s.runner.Run(ctx)
		if err != nil {
			o.Attempts = append(o.Attempts, err.Error())
			logger.Warn("report attempt failed", "run_id", o.RunID, "attempt", len(o.Attempts), "error", err)
			if errors.Is(err, collector.ErrPreflight) {
				return retry.Permanent(err)
			}
			return err
		}
		result = res
		return nil
	})

	end := s.now()
	o.Duration = end.Sub(start)
	o.FinishedAt = report.FormatTimestamp(end)
	o.Success = err == nil
	var output []string
	if err != nil {
		o.Error = err.Error()
	} else {
		o.ExecutionID = result.ID
		o.Summary = &result.Summary
		output = summaryLines(result)
	}

	logFile, logErr := s.logs.write(logPrefix+start.In(s.loc).Format("2006-01-02_15-04")+".log", o, output)
	if logErr != nil {
		logger.Error("writing run log failed", "run_id", o.RunID, "error", logErr)
	}
	o.LogFile = logFile

	status := "success"
	if !o.Success {
		status = "failure"
	}
	metrics.RunsTotal.WithLabelValues(trigger, status).Inc()
	metrics.RunDurationSeconds.WithLabelValues(trigger).Observe(o.Duration.Seconds())
	metrics.LastRunTimestamp.Set(float64(end.Unix()))

	s.mu.Lock()
	s.last = o
	s.mu.Unlock()

	if o.Success {
		logger.Info("report run finished", "run_id", o.RunID, "execution", o.ExecutionID,
			"duration_s", o.DurationSeconds(), "log_file", logFile)
		return o, nil
	}
	logger.Error("report run failed", "run_id", o.RunID, "duration_s", o.DurationSeconds(), "error", err)
	if errors.Is(err, collector.ErrPreflight) {
		return o, err
	}
	return o, nil
}

// Status reports the scheduler state at the current instant.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		Active:        s.active,
		Schedule:      Expression(s.hours),
		Description:   Describe(s.hours),
		Timezone:      s.loc.String(),
		NextExecution: NextFireTime(s.now(), s.hours, s.loc),
		LastOutcome:   s.last,
	}
}

func (s *Scheduler) setActive(v bool) {
	s.mu.Lock()
	s.active = v
	s.mu.Unlock()
}

func summaryLines(r *collector.RunResult) []string {
	return []string{
		"Ejecución: " + r.ID,
		"Reporte generado: " + r.CSVPath,
		fmt.Sprintf("URLs consultadas: %d", r.Summary.TotalURLs),
		fmt.Sprintf("Exitosas: %d", r.Summary.Successful),
		fmt.Sprintf("Con advertencias: %d", r.Summary.WithWarnings),
		fmt.Sprintf("Con insights: %d", r.Summary.WithInsights),
		fmt.Sprintf("Errores: %d", r.Summary.Errors),
	}
}
