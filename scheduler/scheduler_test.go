package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-recipes/models"
	"github.com/aluiziolira/go-scrape-recipes/scraper"
)

type fakeRunner struct {
	calls   atomic.Int32
	running atomic.Bool
	started chan struct{}
	block   chan struct{}
	once    sync.Once
}

func newFakeRunner(block bool) *fakeRunner {
	r := &fakeRunner{started: make(chan struct{})}
	if block {
		r.block = make(chan struct{})
	}
	return r
}

func (r *fakeRunner) Run(ctx context.Context) (*models.RunStatus, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, scraper.ErrRunInProgress
	}
	defer r.running.Store(false)

	r.calls.Add(1)
	r.once.Do(func() { close(r.started) })
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &models.RunStatus{Outcome: models.OutcomeCompleted}, nil
}

func (r *fakeRunner) Running() bool {
	return r.running.Load()
}

func waitStarted(t *testing.T, r *fakeRunner) {
	t.Helper()
	select {
	case <-r.started:
	case <-time.After(5 * time.Second):
		t.Fatalf("run was not started")
	}
}

func TestSchedulerRunOnStart(t *testing.T) {
	runner := newFakeRunner(false)
	s := New("0 * * * *", true, runner)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitStarted(t, runner)

	if next := s.Next(); next.IsZero() || next.Minute() != 0 {
		t.Fatalf("next = %v, want top of an hour", next)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if got := runner.calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
}

func TestSchedulerTriggerWhileRunning(t *testing.T) {
	runner := newFakeRunner(true)
	s := New("", false, runner)

	if err := s.Trigger(); err == nil {
		t.Fatalf("trigger before start should fail")
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !s.Next().IsZero() {
		t.Fatalf("empty schedule should have no next run")
	}

	if err := s.Trigger(); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	waitStarted(t, runner)

	if err := s.Trigger(); !errors.Is(err, scraper.ErrRunInProgress) {
		t.Fatalf("second trigger err = %v, want ErrRunInProgress", err)
	}

	close(runner.block)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if got := runner.calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
}

func TestSchedulerStopCancelsActiveRun(t *testing.T) {
	runner := newFakeRunner(true)
	s := New("", true, runner)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitStarted(t, runner)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if runner.Running() {
		t.Fatalf("run should have returned after stop")
	}
}

func TestSchedulerInvalidSpec(t *testing.T) {
	s := New("not a cron spec", false, newFakeRunner(false))
	if err := s.Start(context.Background()); err == nil {
		t.Fatalf("expected error for invalid spec")
	}
}

func TestSchedulerStartTwice(t *testing.T) {
	s := New("", false, newFakeRunner(false))
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop(context.Background())

	if err := s.Start(context.Background()); err == nil {
		t.Fatalf("expected error on second start")
	}
}
