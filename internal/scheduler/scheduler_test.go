package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anirudhp26/quickpoll/internal/domain"
	"github.com/anirudhp26/quickpoll/internal/memstore"
	"github.com/anirudhp26/quickpoll/internal/tally"
)

type capturePublisher struct {
	mu     sync.Mutex
	global []domain.Envelope
	topic  map[int64][]domain.Envelope
}

func newCapturePublisher() *capturePublisher {
	return &capturePublisher{topic: make(map[int64][]domain.Envelope)}
}

func (p *capturePublisher) PublishGlobal(envelope domain.Envelope) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.global = append(p.global, envelope)
}

func (p *capturePublisher) PublishTopic(pollID int64, envelope domain.Envelope) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic[pollID] = append(p.topic[pollID], envelope)
}

func (p *capturePublisher) globalOfType(eventType string) []domain.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	var matched []domain.Envelope
	for _, e := range p.global {
		if e.Type == eventType {
			matched = append(matched, e)
		}
	}
	return matched
}

type schedulerFixture struct {
	clock     *clockwork.FakeClock
	store     *memstore.Store
	engine    *tally.Engine
	publisher *capturePublisher
	poolIDs   []int64
	owner     *domain.Identity
}

func newSchedulerFixture(t *testing.T) *schedulerFixture {
	t.Helper()
	clock := clockwork.NewFakeClock()
	store := memstore.NewStore(clock)
	publisher := newCapturePublisher()
	engine := tally.NewEngine(store.Polls(), store.Ledger(), store.Identities(), publisher)

	poolIDs, err := EnsurePool(context.Background(), store.Identities(), 50)
	require.NoError(t, err)
	require.Len(t, poolIDs, 50)

	owner, err := store.Identities().Create(context.Background(), "owner-key", "visitor_owner")
	require.NoError(t, err)

	return &schedulerFixture{
		clock:     clock,
		store:     store,
		engine:    engine,
		publisher: publisher,
		poolIDs:   poolIDs,
		owner:     owner,
	}
}

func (f *schedulerFixture) createPoll(t *testing.T, booster bool, expiresIn *int64) *domain.Poll {
	t.Helper()
	poll, _, err := f.store.Polls().Create(context.Background(), &domain.Poll{
		Title:     "simulated",
		OwnerID:   f.owner.ID,
		Booster:   booster,
		ExpiresIn: expiresIn,
	}, []string{"yes", "no", "maybe"})
	require.NoError(t, err)
	return poll
}

func (f *schedulerFixture) newSimulator() *Simulator {
	return NewSimulator(f.engine, f.store.Polls(), f.store.Ledger(), f.publisher, f.clock, 15*time.Second, f.poolIDs)
}

func (f *schedulerFixture) newSweeper() *Sweeper {
	return NewSweeper(f.store.Polls(), f.publisher, f.clock, 30*time.Second)
}

func TestEnsurePoolIsIdempotent(t *testing.T) {
	store := memstore.NewStore(clockwork.NewFakeClock())

	first, err := EnsurePool(context.Background(), store.Identities(), 50)
	require.NoError(t, err)
	second, err := EnsurePool(context.Background(), store.Identities(), 50)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSimulatorTickWritesWithinBounds(t *testing.T) {
	f := newSchedulerFixture(t)
	poll := f.createPoll(t, true, nil)

	sim := f.newSimulator()
	sim.tick(context.Background())

	totals, perOption, err := f.store.Ledger().Aggregates(context.Background(), poll.ID)
	require.NoError(t, err)

	// votes and likes are drawn independently; with a fresh pool every
	// assigned vote inserts and every assigned like sticks, so each count
	// must land inside the bounds on its own
	assert.GreaterOrEqual(t, totals.Votes, minWritesPerPoll)
	assert.LessOrEqual(t, totals.Votes, maxWritesPerPoll)
	assert.GreaterOrEqual(t, totals.Likes, minWritesPerPoll)
	assert.LessOrEqual(t, totals.Likes, maxWritesPerPoll)

	optionSum := 0
	for _, count := range perOption {
		optionSum += count
	}
	assert.Equal(t, totals.Votes, optionSum)
}

func TestSimulatorBroadcastMatchesRecompute(t *testing.T) {
	f := newSchedulerFixture(t)
	poll := f.createPoll(t, true, nil)

	sim := f.newSimulator()
	sim.tick(context.Background())

	updates := f.publisher.globalOfType(domain.EventPollUpdate)
	require.Len(t, updates, 1)
	published, ok := updates[0].Data.(*domain.PollSnapshot)
	require.True(t, ok)

	recomputed, err := f.engine.Snapshot(context.Background(), poll.ID)
	require.NoError(t, err)

	assert.Equal(t, recomputed.TotalVotes, published.TotalVotes)
	assert.Equal(t, recomputed.TotalLikes, published.TotalLikes)
	require.Len(t, published.Options, len(recomputed.Options))
	for i := range recomputed.Options {
		assert.Equal(t, recomputed.Options[i].VoteCount, published.Options[i].VoteCount)
		assert.Equal(t, recomputed.Options[i].Percentage, published.Options[i].Percentage)
	}
}

func TestSimulatorSkipsUnboostedAndExpiredPolls(t *testing.T) {
	f := newSchedulerFixture(t)
	plain := f.createPoll(t, false, nil)
	ttl := int64(60)
	expired := f.createPoll(t, true, &ttl)
	f.clock.Advance(2 * time.Minute)

	sim := f.newSimulator()
	sim.tick(context.Background())

	for _, poll := range []*domain.Poll{plain, expired} {
		totals, _, err := f.store.Ledger().Aggregates(context.Background(), poll.ID)
		require.NoError(t, err)
		assert.Zero(t, totals.Votes, "poll %d", poll.ID)
		assert.Zero(t, totals.Likes, "poll %d", poll.ID)
	}
	assert.Empty(t, f.publisher.globalOfType(domain.EventPollUpdate))
}

func TestSimulatorCapsSimulatedPolls(t *testing.T) {
	f := newSchedulerFixture(t)
	for n := 0; n < 8; n++ {
		f.createPoll(t, true, nil)
	}

	sim := f.newSimulator()
	sim.tick(context.Background())

	updates := f.publisher.globalOfType(domain.EventPollUpdate)
	assert.Len(t, updates, maxSimulatedPolls)
}

func TestSimulatorRunStops(t *testing.T) {
	f := newSchedulerFixture(t)
	f.createPoll(t, true, nil)
	sim := f.newSimulator()

	done := make(chan struct{})
	go func() {
		sim.Run(context.Background())
		close(done)
	}()

	sim.Stop()
	sim.Stop() // idempotent

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("simulator did not stop")
	}
}

func TestSweeperExpiresPollsExactlyOnce(t *testing.T) {
	f := newSchedulerFixture(t)
	ttl := int64(60)
	mortal := f.createPoll(t, false, &ttl)
	eternal := f.createPoll(t, false, nil)

	sweeper := f.newSweeper()

	// before the TTL elapses nothing happens
	f.clock.Advance(30 * time.Second)
	sweeper.tick(context.Background())
	assert.Empty(t, f.publisher.globalOfType(domain.EventPollDeleted))

	f.clock.Advance(31 * time.Second)
	sweeper.tick(context.Background())

	deleted := f.publisher.globalOfType(domain.EventPollDeleted)
	require.Len(t, deleted, 1)
	assert.Equal(t, mortal.ID, deleted[0].PollID)

	swept, err := f.store.Polls().GetByID(context.Background(), mortal.ID)
	require.NoError(t, err)
	assert.False(t, swept.Active)

	untouched, err := f.store.Polls().GetByID(context.Background(), eternal.ID)
	require.NoError(t, err)
	assert.True(t, untouched.Active)

	// a second sweep never re-announces
	sweeper.tick(context.Background())
	assert.Len(t, f.publisher.globalOfType(domain.EventPollDeleted), 1)
}

func TestSweeperRunStops(t *testing.T) {
	f := newSchedulerFixture(t)
	sweeper := f.newSweeper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
