package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type RefresherConfig struct {
	Interval time.Duration // e.g. 30*time.Second
	Timeout  time.Duration
	// Refresh re-fetches the dashboard sources.
	Refresh func(ctx context.Context) error
	// Active gates each run; runs are skipped while it returns false
	// (typically while logged out).
	Active func(ctx context.Context) bool
	Logger zerolog.Logger
}

// Refresher periodically refreshes the dashboard. Overlapping runs are
// skipped rather than queued.
type Refresher struct {
	cfg  RefresherConfig
	log  zerolog.Logger
	runs atomic.Int64

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
	last    time.Time
	lastErr error
}

func NewRefresher(cfg RefresherConfig) *Refresher {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Refresher{cfg: cfg, log: cfg.Logger}
}

func (r *Refresher) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		r.log.Debug().Msg("refresher already running")
		return nil
	}

	logger := cronLogger{log: r.log}
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	spec := fmt.Sprintf("@every %s", r.cfg.Interval)
	if _, err := c.AddFunc(spec, r.scheduledRun); err != nil {
		return fmt.Errorf("register refresh job: %w", err)
	}
	c.Start()

	r.cron = c
	r.running = true
	r.log.Info().Dur("interval", r.cfg.Interval).Msg("refresher started")
	return nil
}

// Stop halts the schedule and waits for an in-flight run to finish.
func (r *Refresher) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	c := r.cron
	r.cron = nil
	r.running = false
	r.mu.Unlock()

	<-c.Stop().Done()
	r.log.Info().Msg("refresher stopped")
}

func (r *Refresher) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Refresher) scheduledRun() {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.Timeout)
	defer cancel()
	if r.cfg.Active != nil && !r.cfg.Active(ctx) {
		return
	}
	if err := r.RefreshNow(ctx); err != nil {
		r.log.Warn().Err(err).Msg("scheduled refresh failed")
	}
}

// RefreshNow runs a refresh outside the schedule.
func (r *Refresher) RefreshNow(ctx context.Context) error {
	if r.cfg.Refresh == nil {
		return nil
	}
	err := r.cfg.Refresh(ctx)
	r.runs.Add(1)

	r.mu.Lock()
	r.last = time.Now()
	r.lastErr = err
	r.mu.Unlock()
	return err
}

// LastRun reports when the last refresh finished and its error.
func (r *Refresher) LastRun() (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.lastErr
}

// Runs is the number of completed refreshes.
func (r *Refresher) Runs() int64 {
	return r.runs.Load()
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
