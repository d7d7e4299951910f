package domain

import "context"

// IdentityRepository abstracts identity persistence. Key is unique; Create
// must fail with ErrIdentityExists when another writer won the race.
type IdentityRepository interface {
	GetByID(ctx context.Context, id int64) (*Identity, error)
	GetByKey(ctx context.Context, key string) (*Identity, error)
	Create(ctx context.Context, key, handle string) (*Identity, error)
	UpdateHandle(ctx context.Context, id int64, handle string) error

	// EnsurePool creates the missing members of the synthetic identity pool
	// and returns the ids of all members, existing or new. Idempotent.
	EnsurePool(ctx context.Context, members []SyntheticIdentity) ([]int64, error)
}

// PollListItem is a poll plus the aggregates a listing needs.
type PollListItem struct {
	Poll
	OwnerHandle string
	TotalVotes  int
	TotalLikes  int
}

// PollRepository abstracts poll and option persistence.
type PollRepository interface {
	Create(ctx context.Context, poll *Poll, optionTexts []string) (*Poll, []Option, error)
	GetByID(ctx context.Context, id int64) (*Poll, error)
	List(ctx context.Context, active bool, offset, limit int) ([]PollListItem, error)
	Options(ctx context.Context, pollID int64) ([]Option, error)
	GetOption(ctx context.Context, optionID, pollID int64) (*Option, error)

	// Deactivate latches Active to false. ErrPollNotFound if the poll is missing.
	Deactivate(ctx context.Context, id int64) error

	// ListBoostedActive returns up to limit active boosted polls, newest first.
	ListBoostedActive(ctx context.Context, limit int) ([]Poll, error)

	// ListExpirable returns active polls that declare a TTL.
	ListExpirable(ctx context.Context) ([]Poll, error)

	// DeactivateAll latches the given polls in one update and returns the ids
	// that actually transitioned, so a concurrent sweep never double-reports.
	DeactivateAll(ctx context.Context, ids []int64) ([]int64, error)
}

// PollTotals are the poll-level aggregate counts.
type PollTotals struct {
	Votes int
	Likes int
}

// VoteOp is one synthetic vote inside a batch. PrevOptionID is nil for a
// first vote; otherwise the op moves an existing vote.
type VoteOp struct {
	IdentityID   int64
	OptionID     int64
	PrevOptionID *int64
}

// LikeOp is one synthetic like inside a batch.
type LikeOp struct {
	IdentityID int64
}

// LedgerRepository abstracts the vote/like ledger. The store's unique
// constraints on (identity_id, poll_id) are the source of the at-most-one
// invariants; callers resolve conflicts, they never lock.
type LedgerRepository interface {
	GetVote(ctx context.Context, identityID, pollID int64) (*Vote, error)
	UpsertVote(ctx context.Context, identityID, pollID, optionID int64) (*Vote, error)

	// DeleteVote removes the vote only when it belongs to the identity;
	// ErrVoteNotFound otherwise, so callers cannot probe other ledgers.
	DeleteVote(ctx context.Context, voteID, identityID int64) (*Vote, error)

	InsertLike(ctx context.Context, identityID, pollID int64) (*Like, error)
	DeleteLike(ctx context.Context, identityID, pollID int64) error

	// Aggregates recomputes poll totals and per-option counts from the ledger.
	Aggregates(ctx context.Context, pollID int64) (PollTotals, map[int64]int, error)

	// VotesByIdentity and LikesByIdentity batch-read the existing ledger rows
	// for a set of identities on one poll.
	VotesByIdentity(ctx context.Context, pollID int64, identityIDs []int64) (map[int64]int64, error)
	LikesByIdentity(ctx context.Context, pollID int64, identityIDs []int64) (map[int64]struct{}, error)

	// ApplyBatch commits a batch of vote/like ops against one poll as a
	// single logical unit. Conflicting concurrent writes resolve to last
	// committed wins on the shared (identity, poll) key.
	ApplyBatch(ctx context.Context, pollID int64, votes []VoteOp, likes []LikeOp) error

	// CallerMarks returns which of the given polls the identity voted on
	// (and with which option) and which it liked.
	CallerMarks(ctx context.Context, identityID int64, pollIDs []int64) (map[int64]int64, map[int64]struct{}, error)
}

// Publisher fans notification envelopes out to live channels. Delivery is
// best-effort: dead channels are pruned by the registry, never surfaced here.
type Publisher interface {
	PublishGlobal(envelope Envelope)
	PublishTopic(pollID int64, envelope Envelope)
}
