package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/punkouter26/podropsquare-server/internal/clock"
	"github.com/punkouter26/podropsquare-server/internal/logger"
)

// retentionRunTimeout bounds a single scheduled purge.
const retentionRunTimeout = 10 * time.Minute

// WindowSweeper drops expired rate-limit windows.
type WindowSweeper interface {
	Sweep(now time.Time) int
}

// BucketEvicter drops idle per-client limiters.
type BucketEvicter interface {
	Evict(idle time.Duration) int
}

// Janitor runs periodic housekeeping on a cron schedule: retention purges and
// pruning of in-memory limiter state.
type Janitor struct {
	cron      *cron.Cron
	retention *RetentionService
	windows   WindowSweeper
	buckets   BucketEvicter
	idle      time.Duration
	clock     clock.Clock
	logger    *logger.Logger
}

// NewJanitor creates a janitor. buckets may be nil.
func NewJanitor(retention *RetentionService, windows WindowSweeper, buckets BucketEvicter, clk clock.Clock, log *logger.Logger) *Janitor {
	if log == nil {
		log = logger.Discard()
	}
	log = log.WithComponent("janitor")
	cl := cronLogger{log}
	return &Janitor{
		cron:      cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)), cron.WithLogger(cl)),
		retention: retention,
		windows:   windows,
		buckets:   buckets,
		idle:      10 * time.Minute,
		clock:     clk,
		logger:    log,
	}
}

// ScheduleRetention purges entries older than maxAge on spec, a standard
// five-field cron expression or descriptor such as "@daily".
func (j *Janitor) ScheduleRetention(spec string, maxAge time.Duration) error {
	_, err := j.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), retentionRunTimeout)
		defer cancel()
		// Errors are logged by the retention service.
		_, _ = j.retention.PurgeOlderThan(ctx, maxAge)
	})
	if err != nil {
		return err
	}
	j.logger.Info("retention scheduled", "schedule", spec, "max_age", maxAge)
	return nil
}

// ScheduleSweep prunes limiter state on spec.
func (j *Janitor) ScheduleSweep(spec string) error {
	_, err := j.cron.AddFunc(spec, j.Sweep)
	return err
}

// Sweep prunes expired rate-limit windows and idle client buckets now.
func (j *Janitor) Sweep() {
	windows := j.windows.Sweep(j.clock.Now())
	buckets := 0
	if j.buckets != nil {
		buckets = j.buckets.Evict(j.idle)
	}
	if windows > 0 || buckets > 0 {
		j.logger.Debug("limiter state pruned", "windows", windows, "buckets", buckets)
	}
}

// Start runs the scheduler in its own goroutine.
func (j *Janitor) Start() {
	j.cron.Start()
	j.logger.Info("janitor started", "jobs", len(j.cron.Entries()))
}

// Stop halts the scheduler and waits for running jobs until ctx is done.
func (j *Janitor) Stop(ctx context.Context) error {
	select {
	case <-j.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts the server logger to cron.Logger.
type cronLogger struct {
	l *logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
