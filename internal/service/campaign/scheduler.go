package campaign

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ignite/mailroom/internal/domain"
	"github.com/ignite/mailroom/internal/pkg/logger"
)

// DefaultSchedulerInterval is how often the ticker loop sweeps for due campaigns.
const DefaultSchedulerInterval = 60 * time.Second

// dueDispatcher is the part of Dispatcher the scheduler needs.
type dueDispatcher interface {
	DispatchDue(ctx context.Context, id string) (*domain.DispatchResult, error)
}

// Scheduler finds scheduled campaigns whose time has arrived and dispatches
// them. ProcessDue is safe to call repeatedly; a campaign stops being
// selected once its status leaves scheduled.
type Scheduler struct {
	repo       Repository
	dispatcher dueDispatcher
	interval   time.Duration
	now        func() time.Time

	processed int64
	failed    int64

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewScheduler creates a scheduler. A non-positive interval uses DefaultSchedulerInterval.
func NewScheduler(repo Repository, d dueDispatcher, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultSchedulerInterval
	}
	return &Scheduler{repo: repo, dispatcher: d, interval: interval, now: time.Now}
}

// ProcessDue dispatches every due campaign, earliest first. A campaign whose
// dispatch fails is counted and logged; it never stops the sweep. Campaigns
// that an overlapping sweep already claimed are skipped.
func (s *Scheduler) ProcessDue(ctx context.Context) (*domain.SweepResult, error) {
	ids, err := s.repo.ListDue(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("list due campaigns: %w", err)
	}

	res := &domain.SweepResult{}
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		_, err := s.dispatcher.DispatchDue(ctx, id)
		if errors.Is(err, ErrNotDue) || errors.Is(err, ErrAlreadyDispatching) {
			logger.Debug("due campaign taken by another sweep", "campaign_id", id)
			continue
		}
		if err != nil {
			res.FailedCount++
			logger.Error("scheduled dispatch failed", "campaign_id", id, "error", err)
			continue
		}
		res.ProcessedCount++
	}

	atomic.AddInt64(&s.processed, int64(res.ProcessedCount))
	atomic.AddInt64(&s.failed, int64(res.FailedCount))
	if len(ids) > 0 {
		logger.Info("due campaign sweep finished", "due", len(ids),
			"processed", res.ProcessedCount, "failed", res.FailedCount)
	}
	return res, nil
}

// Start begins the sweep loop. It sweeps once immediately, then on every tick.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	ctx, s.cancel = context.WithCancel(ctx)

	logger.Info("campaign scheduler starting", "interval", s.interval.String())
	s.wg.Add(1)
	go s.loop(ctx)
	return nil
}

// Stop cancels the loop and waits for an in-progress sweep to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	logger.Info("campaign scheduler stopped",
		"processed", atomic.LoadInt64(&s.processed), "failed", atomic.LoadInt64(&s.failed))
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	if _, err := s.ProcessDue(ctx); err != nil && ctx.Err() == nil {
		logger.Error("due campaign sweep failed", "error", err)
	}
}
