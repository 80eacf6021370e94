// Package scheduler triggers scrape runs on a cron schedule and on demand.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aluiziolira/go-scrape-recipes/models"
	"github.com/aluiziolira/go-scrape-recipes/scraper"
)

// Runner performs one scrape run.
type Runner interface {
	Run(ctx context.Context) (*models.RunStatus, error)
	Running() bool
}

// Scheduler owns the cron loop and every run it starts.
type Scheduler struct {
	cron       *cron.Cron
	runner     Runner
	spec       string
	runOnStart bool

	mu      sync.Mutex
	entryID cron.EntryID
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds a scheduler for the standard five-field cron spec. An empty
// spec disables periodic runs.
func New(spec string, runOnStart bool, runner Runner) *Scheduler {
	logger := cronLogger{}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		runner:     runner,
		spec:       spec,
		runOnStart: runOnStart,
	}
}

// Start registers the periodic job and starts the cron loop. Runs started by
// the scheduler are canceled when ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx != nil {
		return fmt.Errorf("scheduler already started")
	}

	if s.spec != "" {
		id, err := s.cron.AddFunc(s.spec, s.runScheduled)
		if err != nil {
			return fmt.Errorf("schedule %q: %w", s.spec, err)
		}
		s.entryID = id
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()
	slog.Info("scheduler started",
		slog.String("schedule", s.spec),
		slog.Bool("run_on_start", s.runOnStart),
	)

	if s.runOnStart {
		s.launchLocked("startup")
	}
	return nil
}

// Trigger starts a run in the background. It returns
// scraper.ErrRunInProgress when a run is already active.
func (s *Scheduler) Trigger() error {
	if s.runner.Running() {
		return scraper.ErrRunInProgress
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil {
		return fmt.Errorf("scheduler not started")
	}
	s.launchLocked("manual")
	return nil
}

// Next returns the next scheduled run time, or the zero time when no
// periodic schedule is active.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	id := s.entryID
	s.mu.Unlock()
	if id == 0 {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

// Stop halts the cron loop, cancels the active run and waits for it to
// return or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	cronCtx := s.cron.Stop()
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		<-cronCtx.Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for active run: %w", ctx.Err())
	}
}

func (s *Scheduler) runScheduled() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	s.execute(ctx, "schedule")
}

func (s *Scheduler) launchLocked(trigger string) {
	ctx := s.ctx
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(ctx, trigger)
	}()
}

func (s *Scheduler) execute(ctx context.Context, trigger string) {
	slog.Info("scrape triggered", slog.String("trigger", trigger))
	status, err := s.runner.Run(ctx)
	switch {
	case errors.Is(err, scraper.ErrRunInProgress):
		slog.Info("scrape skipped, previous run still active", slog.String("trigger", trigger))
	case err != nil:
		slog.Error("scrape run ended with error",
			slog.String("trigger", trigger),
			slog.Any("error", err),
		)
	case status != nil:
		slog.Info("scrape run completed",
			slog.String("trigger", trigger),
			slog.Int("recipes", status.TotalRecipes),
			slog.Int("details", status.TotalDetails),
		)
	}
}

type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append([]any{slog.Any("error", err)}, keysAndValues...)...)
}
