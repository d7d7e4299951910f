package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/anirudhp26/quickpoll/internal/domain"
	"github.com/anirudhp26/quickpoll/internal/metrics"
)

// Sweeper deactivates polls whose TTL has elapsed. Expiry reuses the same
// one-way latch as explicit deletion, and DeactivateAll only reports polls
// that actually transitioned, so each expiry announces exactly one
// poll_deleted event even with overlapping sweeps.
type Sweeper struct {
	polls     domain.PollRepository
	publisher domain.Publisher
	clock     clockwork.Clock
	interval  time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewSweeper(polls domain.PollRepository, publisher domain.Publisher, clock clockwork.Clock, interval time.Duration) *Sweeper {
	return &Sweeper{
		polls:     polls,
		publisher: publisher,
		clock:     clock,
		interval:  interval,
		stopCh:    make(chan struct{}),
	}
}

// Run blocks, ticking until ctx is cancelled or Stop is called.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.Chan():
			s.tick(ctx)
		}
	}
}

// Stop asks the loop to exit after the current tick. Idempotent.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *Sweeper) tick(ctx context.Context) {
	start := s.clock.Now()
	defer func() {
		metrics.SchedulerTickDuration.WithLabelValues("sweeper").Observe(s.clock.Since(start).Seconds())
		if r := recover(); r != nil {
			metrics.SchedulerTickErrors.WithLabelValues("sweeper").Inc()
			slog.Error("sweeper tick panicked", "panic", r)
		}
	}()

	candidates, err := s.polls.ListExpirable(ctx)
	if err != nil {
		metrics.SchedulerTickErrors.WithLabelValues("sweeper").Inc()
		slog.Error("sweeper: failed to list expirable polls", "error", err)
		return
	}

	now := s.clock.Now()
	var expired []int64
	for _, poll := range candidates {
		if poll.Expired(now) {
			expired = append(expired, poll.ID)
		}
	}
	if len(expired) == 0 {
		return
	}

	transitioned, err := s.polls.DeactivateAll(ctx, expired)
	if err != nil {
		metrics.SchedulerTickErrors.WithLabelValues("sweeper").Inc()
		slog.Error("sweeper: failed to deactivate polls", "error", err)
		return
	}

	for _, id := range transitioned {
		s.publisher.PublishGlobal(domain.Envelope{
			Type:   domain.EventPollDeleted,
			PollID: id,
			Data:   map[string]int64{"id": id},
		})
	}
	if len(transitioned) > 0 {
		metrics.PollsExpiredTotal.Add(float64(len(transitioned)))
		slog.Info("sweeper: expired polls deactivated", "count", len(transitioned))
	}
}
