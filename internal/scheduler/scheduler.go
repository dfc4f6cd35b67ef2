package scheduler

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jated111-leb/body-scribe-15-sub000/internal"
	"github.com/jated111-leb/body-scribe-15-sub000/internal/engine"
	"github.com/jated111-leb/body-scribe-15-sub000/internal/storage"
)

// activityLookback selects which users a periodic sweep recalculates.
const activityLookback = 24 * time.Hour

// Scheduler periodically re-runs the calculation suite for every user active
// in the last 24 hours. Users are independent, so sweeps fan out with a
// bounded errgroup; one user's failure never blocks the rest.
type Scheduler struct {
	engine       *engine.Engine
	events       storage.EventRepository
	logger       internal.Logger
	interval     time.Duration
	parallelism  int
	shutdownChan chan struct{}
}

func New(eng *engine.Engine, events storage.EventRepository, logger internal.Logger, interval time.Duration) *Scheduler {
	return &Scheduler{
		engine:       eng,
		events:       events,
		logger:       logger,
		interval:     interval,
		parallelism:  4,
		shutdownChan: make(chan struct{}),
	}
}

// Run blocks until Stop is called. Start it in its own goroutine.
func (s *Scheduler) Run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background())
		case <-s.shutdownChan:
			return
		}
	}
}

func (s *Scheduler) Stop() {
	close(s.shutdownChan)
}

// Sweep runs one batch pass over the recently-active users.
func (s *Scheduler) Sweep(ctx context.Context) {
	users, err := s.events.ActiveUsers(ctx, time.Now().Add(-activityLookback))
	if err != nil {
		s.logger.Errorf("scheduler: failed to list active users: %v", err)
		return
	}
	if len(users) == 0 {
		return
	}
	s.logger.Infof("scheduler: sweeping %d active users", len(users))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for _, userID := range users {
		g.Go(func() error {
			s.sweepUser(gctx, userID)
			// Always nil: per-user failures are logged, not propagated,
			// so one user can't cancel the group.
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Scheduler) sweepUser(ctx context.Context, userID string) {
	if _, err := s.engine.RunAchievementCalculation(ctx, userID); err != nil {
		s.logger.Errorf("scheduler: achievement calculation failed for user %s: %v", userID, err)
	}
	if _, err := s.engine.RunLifestyleCalculation(ctx, userID); err != nil {
		s.logger.Errorf("scheduler: lifestyle calculation failed for user %s: %v", userID, err)
	}
	if _, err := s.engine.RunPatternInference(ctx, userID); err != nil {
		s.logger.Errorf("scheduler: pattern inference failed for user %s: %v", userID, err)
	}
}
