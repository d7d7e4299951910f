package tally

import (
	"context"
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anirudhp26/quickpoll/internal/domain"
	"github.com/anirudhp26/quickpoll/internal/memstore"
)

// capturePublisher records envelopes instead of delivering them.
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

func (p *capturePublisher) globalEvents() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.global))
	for _, e := range p.global {
		types = append(types, e.Type)
	}
	return types
}

func (p *capturePublisher) topicEvents(pollID int64) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.topic[pollID]))
	for _, e := range p.topic[pollID] {
		types = append(types, e.Type)
	}
	return types
}

type testFixture struct {
	engine    *Engine
	store     *memstore.Store
	publisher *capturePublisher
	owner     *domain.Identity
}

func newTestFixture(t *testing.T) *testFixture {
	t.Helper()
	store := memstore.NewStore(clockwork.NewFakeClock())
	publisher := newCapturePublisher()
	engine := NewEngine(store.Polls(), store.Ledger(), store.Identities(), publisher)

	owner, err := store.Identities().Create(context.Background(), "owner-key", "visitor_owner")
	require.NoError(t, err)

	return &testFixture{engine: engine, store: store, publisher: publisher, owner: owner}
}

func (f *testFixture) createPoll(t *testing.T, options ...string) *domain.PollSnapshot {
	t.Helper()
	if len(options) == 0 {
		options = []string{"yes", "no"}
	}
	snapshot, err := f.engine.CreatePoll(context.Background(), &domain.Poll{
		Title:   "favorite color",
		OwnerID: f.owner.ID,
	}, options)
	require.NoError(t, err)
	return snapshot
}

func (f *testFixture) newIdentity(t *testing.T, key string) *domain.Identity {
	t.Helper()
	ident, err := f.store.Identities().Create(context.Background(), key, "visitor_"+key)
	require.NoError(t, err)
	return ident
}

func TestCreatePollBroadcastsGlobally(t *testing.T) {
	f := newTestFixture(t)

	snapshot := f.createPoll(t, "red", "green", "blue")

	assert.True(t, snapshot.Active)
	assert.Len(t, snapshot.Options, 3)
	assert.Equal(t, 0, snapshot.TotalVotes)
	assert.Equal(t, "visitor_owner", snapshot.OwnerHandle)
	assert.Equal(t, []string{domain.EventPollCreated}, f.publisher.globalEvents())
}

func TestCastVoteUpdatesSnapshotAndBroadcasts(t *testing.T) {
	f := newTestFixture(t)
	poll := f.createPoll(t)
	voter := f.newIdentity(t, "voter-1")

	vote, snapshot, err := f.engine.CastVote(context.Background(), voter.ID, poll.ID, poll.Options[0].ID)
	require.NoError(t, err)

	assert.Equal(t, poll.Options[0].ID, vote.OptionID)
	assert.Equal(t, 1, snapshot.TotalVotes)
	assert.Equal(t, 1, snapshot.Options[0].VoteCount)
	assert.Equal(t, 100, snapshot.Options[0].Percentage)
	assert.Equal(t, 0, snapshot.Options[1].Percentage)

	// vote updates go to the global set only
	assert.Equal(t, []string{domain.EventPollCreated, domain.EventPollUpdate}, f.publisher.globalEvents())
	assert.Empty(t, f.publisher.topicEvents(poll.ID))
}

func TestCastVoteMovesExistingVote(t *testing.T) {
	f := newTestFixture(t)
	poll := f.createPoll(t)
	voter := f.newIdentity(t, "voter-1")
	ctx := context.Background()

	first, _, err := f.engine.CastVote(ctx, voter.ID, poll.ID, poll.Options[0].ID)
	require.NoError(t, err)

	second, snapshot, err := f.engine.CastVote(ctx, voter.ID, poll.ID, poll.Options[1].ID)
	require.NoError(t, err)

	// the row moved, it was not duplicated
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, snapshot.TotalVotes)
	assert.Equal(t, 0, snapshot.Options[0].VoteCount)
	assert.Equal(t, 1, snapshot.Options[1].VoteCount)
}

func TestCastVoteSameOptionIsIdempotent(t *testing.T) {
	f := newTestFixture(t)
	poll := f.createPoll(t)
	voter := f.newIdentity(t, "voter-1")
	ctx := context.Background()

	_, _, err := f.engine.CastVote(ctx, voter.ID, poll.ID, poll.Options[0].ID)
	require.NoError(t, err)
	_, snapshot, err := f.engine.CastVote(ctx, voter.ID, poll.ID, poll.Options[0].ID)
	require.NoError(t, err)

	assert.Equal(t, 1, snapshot.TotalVotes)
}

func TestCastVoteRejectsInactivePoll(t *testing.T) {
	f := newTestFixture(t)
	poll := f.createPoll(t)
	voter := f.newIdentity(t, "voter-1")
	ctx := context.Background()

	require.NoError(t, f.engine.DeletePoll(ctx, poll.ID, f.owner.ID))

	_, _, err := f.engine.CastVote(ctx, voter.ID, poll.ID, poll.Options[0].ID)
	assert.ErrorIs(t, err, domain.ErrPollInactive)
}

func TestCastVoteRejectsUnknownOption(t *testing.T) {
	f := newTestFixture(t)
	poll := f.createPoll(t)
	other := f.createPoll(t, "a", "b")
	voter := f.newIdentity(t, "voter-1")

	// option belongs to a different poll
	_, _, err := f.engine.CastVote(context.Background(), voter.ID, poll.ID, other.Options[0].ID)
	assert.ErrorIs(t, err, domain.ErrOptionNotFound)
}

func TestRemoveVoteNotifiesTopicOnly(t *testing.T) {
	f := newTestFixture(t)
	poll := f.createPoll(t)
	voter := f.newIdentity(t, "voter-1")
	ctx := context.Background()

	vote, _, err := f.engine.CastVote(ctx, voter.ID, poll.ID, poll.Options[0].ID)
	require.NoError(t, err)

	globalBefore := len(f.publisher.globalEvents())
	require.NoError(t, f.engine.RemoveVote(ctx, vote.ID, voter.ID))

	assert.Equal(t, []string{domain.EventVoteRemoved}, f.publisher.topicEvents(poll.ID))
	assert.Len(t, f.publisher.globalEvents(), globalBefore)

	snapshot, err := f.engine.Snapshot(ctx, poll.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, snapshot.TotalVotes)
}

func TestRemoveVoteEnforcesOwnership(t *testing.T) {
	f := newTestFixture(t)
	poll := f.createPoll(t)
	voter := f.newIdentity(t, "voter-1")
	intruder := f.newIdentity(t, "voter-2")
	ctx := context.Background()

	vote, _, err := f.engine.CastVote(ctx, voter.ID, poll.ID, poll.Options[0].ID)
	require.NoError(t, err)

	err = f.engine.RemoveVote(ctx, vote.ID, intruder.ID)
	assert.ErrorIs(t, err, domain.ErrVoteNotFound)

	snapshot, err := f.engine.Snapshot(ctx, poll.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, snapshot.TotalVotes)
}

func TestAddLikeBroadcastsTopicAndGlobal(t *testing.T) {
	f := newTestFixture(t)
	poll := f.createPoll(t)
	fan := f.newIdentity(t, "fan-1")

	snapshot, err := f.engine.AddLike(context.Background(), fan.ID, poll.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, snapshot.TotalLikes)
	assert.Equal(t, []string{domain.EventPollUpdate}, f.publisher.topicEvents(poll.ID))
	assert.Equal(t, []string{domain.EventPollCreated, domain.EventPollUpdate}, f.publisher.globalEvents())
}

func TestAddLikeTwiceIsConflict(t *testing.T) {
	f := newTestFixture(t)
	poll := f.createPoll(t)
	fan := f.newIdentity(t, "fan-1")
	ctx := context.Background()

	_, err := f.engine.AddLike(ctx, fan.ID, poll.ID)
	require.NoError(t, err)

	_, err = f.engine.AddLike(ctx, fan.ID, poll.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyLiked)

	snapshot, err := f.engine.Snapshot(ctx, poll.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, snapshot.TotalLikes)
}

func TestRemoveLikeWithoutLikeIsConflict(t *testing.T) {
	f := newTestFixture(t)
	poll := f.createPoll(t)
	fan := f.newIdentity(t, "fan-1")

	_, err := f.engine.RemoveLike(context.Background(), fan.ID, poll.ID)
	assert.ErrorIs(t, err, domain.ErrLikeNotFound)
}

func TestDeletePollOnlyByOwner(t *testing.T) {
	f := newTestFixture(t)
	poll := f.createPoll(t)
	intruder := f.newIdentity(t, "voter-1")
	ctx := context.Background()

	err := f.engine.DeletePoll(ctx, poll.ID, intruder.ID)
	assert.ErrorIs(t, err, domain.ErrPollNotFound)

	require.NoError(t, f.engine.DeletePoll(ctx, poll.ID, f.owner.ID))
	assert.Contains(t, f.publisher.globalEvents(), domain.EventPollDeleted)

	// second delete hits the latch
	err = f.engine.DeletePoll(ctx, poll.ID, f.owner.ID)
	assert.ErrorIs(t, err, domain.ErrPollInactive)
}

func TestSnapshotPercentagesScenario(t *testing.T) {
	f := newTestFixture(t)
	poll := f.createPoll(t, "red", "green", "blue")
	ctx := context.Background()

	// 3 voters: two for red, one for green
	for i, optionIdx := range []int{0, 0, 1} {
		voter := f.newIdentity(t, map[int]string{0: "v1", 1: "v2", 2: "v3"}[i])
		_, _, err := f.engine.CastVote(ctx, voter.ID, poll.ID, poll.Options[optionIdx].ID)
		require.NoError(t, err)
	}

	snapshot, err := f.engine.Snapshot(ctx, poll.ID)
	require.NoError(t, err)

	assert.Equal(t, 3, snapshot.TotalVotes)
	assert.Equal(t, 67, snapshot.Options[0].Percentage)
	assert.Equal(t, 33, snapshot.Options[1].Percentage)
	assert.Equal(t, 0, snapshot.Options[2].Percentage)
}

func TestBulkApplyDeltaMatchesFullRecompute(t *testing.T) {
	f := newTestFixture(t)
	poll := f.createPoll(t, "a", "b")
	ctx := context.Background()

	mover := f.newIdentity(t, "mover")
	_, _, err := f.engine.CastVote(ctx, mover.ID, poll.ID, poll.Options[0].ID)
	require.NoError(t, err)

	fresh := f.newIdentity(t, "fresh")
	before, err := f.engine.Snapshot(ctx, poll.ID)
	require.NoError(t, err)

	prev := poll.Options[0].ID
	delta, err := f.engine.BulkApply(ctx, poll.ID,
		[]domain.VoteOp{
			{IdentityID: fresh.ID, OptionID: poll.Options[1].ID},
			{IdentityID: mover.ID, OptionID: poll.Options[1].ID, PrevOptionID: &prev},
		},
		[]domain.LikeOp{{IdentityID: fresh.ID}},
	)
	require.NoError(t, err)
	require.False(t, delta.Empty())

	before.ApplyDelta(delta)
	after, err := f.engine.Snapshot(ctx, poll.ID)
	require.NoError(t, err)

	assert.Equal(t, after.TotalVotes, before.TotalVotes)
	assert.Equal(t, after.TotalLikes, before.TotalLikes)
	for i := range after.Options {
		assert.Equal(t, after.Options[i].VoteCount, before.Options[i].VoteCount)
		assert.Equal(t, after.Options[i].Percentage, before.Options[i].Percentage)
	}
}

func TestBulkApplyNoopOpsYieldEmptyDelta(t *testing.T) {
	f := newTestFixture(t)
	poll := f.createPoll(t)
	voter := f.newIdentity(t, "voter-1")
	ctx := context.Background()

	_, _, err := f.engine.CastVote(ctx, voter.ID, poll.ID, poll.Options[0].ID)
	require.NoError(t, err)

	// re-voting the same option nets out to nothing
	prev := poll.Options[0].ID
	delta, err := f.engine.BulkApply(ctx, poll.ID,
		[]domain.VoteOp{{IdentityID: voter.ID, OptionID: prev, PrevOptionID: &prev}}, nil)
	require.NoError(t, err)
	assert.True(t, delta.Empty())
}
