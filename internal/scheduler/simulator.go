package scheduler

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/anirudhp26/quickpoll/internal/domain"
	"github.com/anirudhp26/quickpoll/internal/metrics"
	"github.com/anirudhp26/quickpoll/internal/tally"
)

const (
	// maxSimulatedPolls caps how many boosted polls a tick touches.
	maxSimulatedPolls = 5
	// minWritesPerPoll / maxWritesPerPoll bound the synthetic votes and,
	// independently, the synthetic likes a poll receives per tick, before
	// capping by pool size.
	minWritesPerPoll = 10
	maxWritesPerPoll = 20
)

// Simulator injects synthetic votes and likes into the newest boosted polls
// so they never look stale. Every write is attributed to a member of the
// pre-provisioned identity pool and goes through the same ledger as user
// traffic, so simulated counts survive restarts and recomputes.
type Simulator struct {
	engine    *tally.Engine
	polls     domain.PollRepository
	ledger    domain.LedgerRepository
	publisher domain.Publisher
	clock     clockwork.Clock
	interval  time.Duration
	poolIDs   []int64
	rng       *rand.Rand

	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewSimulator(engine *tally.Engine, polls domain.PollRepository, ledger domain.LedgerRepository, publisher domain.Publisher, clock clockwork.Clock, interval time.Duration, poolIDs []int64) *Simulator {
	return &Simulator{
		engine:    engine,
		polls:     polls,
		ledger:    ledger,
		publisher: publisher,
		clock:     clock,
		interval:  interval,
		poolIDs:   poolIDs,
		rng:       rand.New(rand.NewSource(clock.Now().UnixNano())),
		stopCh:    make(chan struct{}),
	}
}

// Run blocks, ticking until ctx is cancelled or Stop is called.
func (s *Simulator) Run(ctx context.Context) {
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
func (s *Simulator) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *Simulator) tick(ctx context.Context) {
	start := s.clock.Now()
	defer func() {
		metrics.SchedulerTickDuration.WithLabelValues("simulator").Observe(s.clock.Since(start).Seconds())
		if r := recover(); r != nil {
			metrics.SchedulerTickErrors.WithLabelValues("simulator").Inc()
			slog.Error("simulator tick panicked", "panic", r)
		}
	}()

	polls, err := s.polls.ListBoostedActive(ctx, maxSimulatedPolls)
	if err != nil {
		metrics.SchedulerTickErrors.WithLabelValues("simulator").Inc()
		slog.Error("simulator: failed to list boosted polls", "error", err)
		return
	}

	now := s.clock.Now()
	for _, poll := range polls {
		if poll.Expired(now) {
			// the sweeper owns expiry; just don't write to it
			continue
		}
		if err := s.simulatePoll(ctx, &poll); err != nil {
			metrics.SchedulerTickErrors.WithLabelValues("simulator").Inc()
			slog.Error("simulator: poll tick failed", "poll_id", poll.ID, "error", err)
		}
	}
}

func (s *Simulator) simulatePoll(ctx context.Context, poll *domain.Poll) error {
	options, err := s.polls.Options(ctx, poll.ID)
	if err != nil {
		return err
	}
	if len(options) == 0 {
		return nil
	}

	votesToAdd := s.writeCount()
	likesToAdd := s.writeCount()
	writers := s.sampleIdentities(max(votesToAdd, likesToAdd))
	if len(writers) == 0 {
		return nil
	}
	votesToAdd = min(votesToAdd, len(writers))
	likesToAdd = min(likesToAdd, len(writers))

	existingVotes, err := s.ledger.VotesByIdentity(ctx, poll.ID, writers)
	if err != nil {
		return err
	}
	existingLikes, err := s.ledger.LikesByIdentity(ctx, poll.ID, writers)
	if err != nil {
		return err
	}

	// Snapshot before the batch so the delta can be folded in afterwards
	// without a second recompute.
	snapshot, err := s.engine.Snapshot(ctx, poll.ID)
	if err != nil {
		return err
	}

	votes, likes := s.buildOps(writers, votesToAdd, likesToAdd, options, existingVotes, existingLikes)

	delta, err := s.engine.BulkApply(ctx, poll.ID, votes, likes)
	if err != nil {
		return err
	}
	metrics.SyntheticWritesTotal.WithLabelValues("vote").Add(float64(len(votes)))
	metrics.SyntheticWritesTotal.WithLabelValues("like").Add(float64(len(likes)))

	if delta.Empty() {
		return nil
	}

	snapshot.ApplyDelta(delta)
	s.publisher.PublishGlobal(domain.Envelope{
		Type:   domain.EventPollUpdate,
		PollID: poll.ID,
		Data:   snapshot,
	})
	return nil
}

// buildOps assigns writes by position in the shuffled sample: the first
// votesToAdd identities vote at a random option (an identity with an
// existing vote moves it instead, which keeps option counts churning
// without inflating totals), and the first likesToAdd identities like the
// poll unless they already did. An identity early in the sample may both
// vote and like within one tick.
func (s *Simulator) buildOps(writers []int64, votesToAdd, likesToAdd int, options []domain.Option, existingVotes map[int64]int64, existingLikes map[int64]struct{}) ([]domain.VoteOp, []domain.LikeOp) {
	var votes []domain.VoteOp
	var likes []domain.LikeOp

	for i, identityID := range writers {
		if i < votesToAdd {
			optionID := options[s.rng.Intn(len(options))].ID
			op := domain.VoteOp{IdentityID: identityID, OptionID: optionID}
			if prev, voted := existingVotes[identityID]; voted {
				op.PrevOptionID = &prev
			}
			votes = append(votes, op)
		}
		if i < likesToAdd {
			if _, liked := existingLikes[identityID]; !liked {
				likes = append(likes, domain.LikeOp{IdentityID: identityID})
			}
		}
	}
	return votes, likes
}

func (s *Simulator) writeCount() int {
	return minWritesPerPoll + s.rng.Intn(maxWritesPerPoll-minWritesPerPoll+1)
}

// sampleIdentities draws n distinct pool members, capped by pool size.
func (s *Simulator) sampleIdentities(n int) []int64 {
	if n > len(s.poolIDs) {
		n = len(s.poolIDs)
	}
	sample := make([]int64, len(s.poolIDs))
	copy(sample, s.poolIDs)
	s.rng.Shuffle(len(sample), func(i, j int) {
		sample[i], sample[j] = sample[j], sample[i]
	})
	return sample[:n]
}
