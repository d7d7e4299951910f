// Package tally is the write path of the poll ledger. It validates writes
// against poll state, commits them through the repositories, recomputes
// aggregate snapshots and routes the resulting notification envelopes.
package tally

import (
	"context"
	"errors"
	"fmt"

	"github.com/anirudhp26/quickpoll/internal/domain"
	"github.com/anirudhp26/quickpoll/internal/metrics"
)

// Engine coordinates ledger writes with snapshot recomputation and fan-out.
//
// Broadcast routing follows the event semantics: poll lifecycle and vote
// updates go to the global set, like updates go to the poll topic and the
// global set, vote removals only to the poll topic.
type Engine struct {
	polls      domain.PollRepository
	ledger     domain.LedgerRepository
	identities domain.IdentityRepository
	publisher  domain.Publisher
}

func NewEngine(polls domain.PollRepository, ledger domain.LedgerRepository, identities domain.IdentityRepository, publisher domain.Publisher) *Engine {
	return &Engine{
		polls:      polls,
		ledger:     ledger,
		identities: identities,
		publisher:  publisher,
	}
}

// CreatePoll persists a poll with its options and announces it globally.
func (e *Engine) CreatePoll(ctx context.Context, poll *domain.Poll, optionTexts []string) (*domain.PollSnapshot, error) {
	created, options, err := e.polls.Create(ctx, poll, optionTexts)
	if err != nil {
		return nil, err
	}

	snapshot := e.emptySnapshot(ctx, created, options)
	e.publisher.PublishGlobal(domain.Envelope{
		Type:   domain.EventPollCreated,
		PollID: created.ID,
		Data:   snapshot,
	})
	return snapshot, nil
}

// DeletePoll latches the poll inactive and announces the removal globally.
// Only the owner may delete; a non-owner gets ErrPollNotFound rather than a
// confirmation that the poll exists.
func (e *Engine) DeletePoll(ctx context.Context, pollID, identityID int64) error {
	poll, err := e.polls.GetByID(ctx, pollID)
	if err != nil {
		return err
	}
	if poll.OwnerID != identityID {
		return domain.ErrPollNotFound
	}
	if !poll.Active {
		return domain.ErrPollInactive
	}

	if err := e.polls.Deactivate(ctx, pollID); err != nil {
		return err
	}

	e.publisher.PublishGlobal(domain.Envelope{
		Type:   domain.EventPollDeleted,
		PollID: pollID,
		Data:   map[string]int64{"id": pollID},
	})
	return nil
}

// CastVote records the identity's vote for an option. A repeat vote on the
// same option is a no-op; a vote for a different option moves the existing
// vote. The updated snapshot is broadcast to the global set.
func (e *Engine) CastVote(ctx context.Context, identityID, pollID, optionID int64) (*domain.Vote, *domain.PollSnapshot, error) {
	if err := e.requireActivePoll(ctx, pollID); err != nil {
		return nil, nil, err
	}
	if _, err := e.polls.GetOption(ctx, optionID, pollID); err != nil {
		return nil, nil, err
	}

	outcome := "created"
	prior, err := e.ledger.GetVote(ctx, identityID, pollID)
	switch {
	case err == nil && prior.OptionID == optionID:
		outcome = "unchanged"
	case err == nil:
		outcome = "moved"
	case !errors.Is(err, domain.ErrVoteNotFound):
		return nil, nil, err
	}

	vote, err := e.ledger.UpsertVote(ctx, identityID, pollID, optionID)
	if err != nil {
		return nil, nil, err
	}
	metrics.VotesCastTotal.WithLabelValues(outcome).Inc()

	snapshot, err := e.Snapshot(ctx, pollID)
	if err != nil {
		return nil, nil, err
	}

	e.publisher.PublishGlobal(domain.Envelope{
		Type:   domain.EventPollUpdate,
		PollID: pollID,
		Data:   snapshot,
	})
	return vote, snapshot, nil
}

// RemoveVote deletes the identity's vote by id and notifies the poll topic.
func (e *Engine) RemoveVote(ctx context.Context, voteID, identityID int64) error {
	vote, err := e.ledger.DeleteVote(ctx, voteID, identityID)
	if err != nil {
		return err
	}

	snapshot, err := e.Snapshot(ctx, vote.PollID)
	if err != nil {
		return err
	}

	e.publisher.PublishTopic(vote.PollID, domain.Envelope{
		Type:   domain.EventVoteRemoved,
		PollID: vote.PollID,
		Data:   snapshot,
	})
	return nil
}

// AddLike records a like. Liking twice is a hard conflict, never a toggle.
// The updated snapshot goes to the poll topic and the global set.
func (e *Engine) AddLike(ctx context.Context, identityID, pollID int64) (*domain.PollSnapshot, error) {
	if err := e.requireActivePoll(ctx, pollID); err != nil {
		metrics.LikeOpsTotal.WithLabelValues("like", "rejected").Inc()
		return nil, err
	}

	if _, err := e.ledger.InsertLike(ctx, identityID, pollID); err != nil {
		if errors.Is(err, domain.ErrAlreadyLiked) {
			metrics.LikeOpsTotal.WithLabelValues("like", "conflict").Inc()
		}
		return nil, err
	}
	metrics.LikeOpsTotal.WithLabelValues("like", "ok").Inc()

	return e.broadcastLikeChange(ctx, pollID)
}

// RemoveLike removes the identity's like; missing likes are a conflict.
func (e *Engine) RemoveLike(ctx context.Context, identityID, pollID int64) (*domain.PollSnapshot, error) {
	if err := e.ledger.DeleteLike(ctx, identityID, pollID); err != nil {
		if errors.Is(err, domain.ErrLikeNotFound) {
			metrics.LikeOpsTotal.WithLabelValues("unlike", "conflict").Inc()
		}
		return nil, err
	}
	metrics.LikeOpsTotal.WithLabelValues("unlike", "ok").Inc()

	return e.broadcastLikeChange(ctx, pollID)
}

func (e *Engine) broadcastLikeChange(ctx context.Context, pollID int64) (*domain.PollSnapshot, error) {
	snapshot, err := e.Snapshot(ctx, pollID)
	if err != nil {
		return nil, err
	}

	envelope := domain.Envelope{
		Type:   domain.EventPollUpdate,
		PollID: pollID,
		Data:   snapshot,
	}
	e.publisher.PublishTopic(pollID, envelope)
	e.publisher.PublishGlobal(envelope)
	return snapshot, nil
}

// BulkApply commits a batch of synthetic ops against one poll and returns
// the net delta. Callers decide what to do with the delta; an empty one
// means nothing is worth broadcasting.
func (e *Engine) BulkApply(ctx context.Context, pollID int64, votes []domain.VoteOp, likes []domain.LikeOp) (*domain.AggregateDelta, error) {
	delta := &domain.AggregateDelta{OptionDeltas: make(map[int64]int)}
	for _, op := range votes {
		switch {
		case op.PrevOptionID == nil:
			delta.VotesAdded++
			delta.OptionDeltas[op.OptionID]++
		case *op.PrevOptionID != op.OptionID:
			delta.OptionDeltas[*op.PrevOptionID]--
			delta.OptionDeltas[op.OptionID]++
		}
	}
	delta.LikesAdded = len(likes)

	if err := e.ledger.ApplyBatch(ctx, pollID, votes, likes); err != nil {
		return nil, err
	}
	return delta, nil
}

// Snapshot recomputes the aggregate view of a poll from the ledger. Counts
// always come from the vote/like sets, never from carried-forward counters.
func (e *Engine) Snapshot(ctx context.Context, pollID int64) (*domain.PollSnapshot, error) {
	poll, err := e.polls.GetByID(ctx, pollID)
	if err != nil {
		return nil, err
	}
	options, err := e.polls.Options(ctx, pollID)
	if err != nil {
		return nil, err
	}

	totals, perOption, err := e.ledger.Aggregates(ctx, pollID)
	if err != nil {
		return nil, err
	}

	snapshot := e.buildSnapshot(ctx, poll, options)
	snapshot.TotalVotes = totals.Votes
	snapshot.TotalLikes = totals.Likes
	for i := range snapshot.Options {
		count := perOption[snapshot.Options[i].ID]
		snapshot.Options[i].VoteCount = count
		snapshot.Options[i].Percentage = domain.Percentage(count, totals.Votes)
	}
	return snapshot, nil
}

func (e *Engine) requireActivePoll(ctx context.Context, pollID int64) error {
	poll, err := e.polls.GetByID(ctx, pollID)
	if err != nil {
		return err
	}
	if !poll.Active {
		return fmt.Errorf("poll %d: %w", pollID, domain.ErrPollInactive)
	}
	return nil
}

func (e *Engine) emptySnapshot(ctx context.Context, poll *domain.Poll, options []domain.Option) *domain.PollSnapshot {
	snapshot := e.buildSnapshot(ctx, poll, options)
	for i := range snapshot.Options {
		snapshot.Options[i].Percentage = domain.Percentage(0, 0)
	}
	return snapshot
}

func (e *Engine) buildSnapshot(ctx context.Context, poll *domain.Poll, options []domain.Option) *domain.PollSnapshot {
	snapshot := &domain.PollSnapshot{
		ID:          poll.ID,
		Title:       poll.Title,
		Description: poll.Description,
		Options:     make([]domain.OptionSnapshot, 0, len(options)),
		OwnerID:     poll.OwnerID,
		CreatedAt:   poll.CreatedAt,
		Booster:     poll.Booster,
		ExpiresIn:   poll.ExpiresIn,
		Active:      poll.Active,
	}
	if owner, err := e.identities.GetByID(ctx, poll.OwnerID); err == nil {
		snapshot.OwnerHandle = owner.Handle
	}
	for _, opt := range options {
		snapshot.Options = append(snapshot.Options, domain.OptionSnapshot{
			ID:        opt.ID,
			Text:      opt.Text,
			CreatedAt: opt.CreatedAt,
			PollID:    opt.PollID,
		})
	}
	return snapshot
}
