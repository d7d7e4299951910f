package memstore

import (
	"context"

	"github.com/anirudhp26/quickpoll/internal/domain"
)

// LedgerStore implements domain.LedgerRepository on the shared Store.
type LedgerStore struct {
	store *Store
}

func (r *LedgerStore) GetVote(_ context.Context, identityID, pollID int64) (*domain.Vote, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.votesByPair[ledgerKey{identityID, pollID}]
	if !ok {
		return nil, domain.ErrVoteNotFound
	}
	copied := *s.votesByID[id]
	return &copied, nil
}

func (r *LedgerStore) UpsertVote(_ context.Context, identityID, pollID, optionID int64) (*domain.Vote, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	vote := s.upsertVoteLocked(identityID, pollID, optionID)
	copied := *vote
	return &copied, nil
}

// upsertVoteLocked mirrors the ON CONFLICT DO UPDATE path: an existing row
// keeps its id and created_at, only option_id changes.
func (s *Store) upsertVoteLocked(identityID, pollID, optionID int64) *domain.Vote {
	key := ledgerKey{identityID, pollID}
	if id, ok := s.votesByPair[key]; ok {
		vote := s.votesByID[id]
		vote.OptionID = optionID
		return vote
	}

	vote := &domain.Vote{
		ID:         s.nextID(),
		IdentityID: identityID,
		PollID:     pollID,
		OptionID:   optionID,
		CreatedAt:  s.now(),
	}
	s.votesByID[vote.ID] = vote
	s.votesByPair[key] = vote.ID
	return vote
}

func (r *LedgerStore) DeleteVote(_ context.Context, voteID, identityID int64) (*domain.Vote, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	vote, ok := s.votesByID[voteID]
	if !ok || vote.IdentityID != identityID {
		return nil, domain.ErrVoteNotFound
	}
	delete(s.votesByID, voteID)
	delete(s.votesByPair, ledgerKey{vote.IdentityID, vote.PollID})

	copied := *vote
	return &copied, nil
}

func (r *LedgerStore) InsertLike(_ context.Context, identityID, pollID int64) (*domain.Like, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ledgerKey{identityID, pollID}
	if _, ok := s.likesByPair[key]; ok {
		return nil, domain.ErrAlreadyLiked
	}

	like := &domain.Like{
		ID:         s.nextID(),
		IdentityID: identityID,
		PollID:     pollID,
		CreatedAt:  s.now(),
	}
	s.likesByID[like.ID] = like
	s.likesByPair[key] = like.ID

	copied := *like
	return &copied, nil
}

func (r *LedgerStore) DeleteLike(_ context.Context, identityID, pollID int64) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ledgerKey{identityID, pollID}
	id, ok := s.likesByPair[key]
	if !ok {
		return domain.ErrLikeNotFound
	}
	delete(s.likesByID, id)
	delete(s.likesByPair, key)
	return nil
}

func (r *LedgerStore) Aggregates(_ context.Context, pollID int64) (domain.PollTotals, map[int64]int, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := domain.PollTotals{
		Votes: s.countVotes(pollID),
		Likes: s.countLikes(pollID),
	}

	perOption := make(map[int64]int)
	for _, v := range s.votesByID {
		if v.PollID == pollID {
			perOption[v.OptionID]++
		}
	}
	return totals, perOption, nil
}

func (r *LedgerStore) VotesByIdentity(_ context.Context, pollID int64, identityIDs []int64) (map[int64]int64, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	votes := make(map[int64]int64)
	for _, identityID := range identityIDs {
		if id, ok := s.votesByPair[ledgerKey{identityID, pollID}]; ok {
			votes[identityID] = s.votesByID[id].OptionID
		}
	}
	return votes, nil
}

func (r *LedgerStore) LikesByIdentity(_ context.Context, pollID int64, identityIDs []int64) (map[int64]struct{}, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	likes := make(map[int64]struct{})
	for _, identityID := range identityIDs {
		if _, ok := s.likesByPair[ledgerKey{identityID, pollID}]; ok {
			likes[identityID] = struct{}{}
		}
	}
	return likes, nil
}

func (r *LedgerStore) ApplyBatch(_ context.Context, pollID int64, votes []domain.VoteOp, likes []domain.LikeOp) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, op := range votes {
		s.upsertVoteLocked(op.IdentityID, pollID, op.OptionID)
	}
	for _, op := range likes {
		key := ledgerKey{op.IdentityID, pollID}
		if _, ok := s.likesByPair[key]; ok {
			continue
		}
		like := &domain.Like{
			ID:         s.nextID(),
			IdentityID: op.IdentityID,
			PollID:     pollID,
			CreatedAt:  s.now(),
		}
		s.likesByID[like.ID] = like
		s.likesByPair[key] = like.ID
	}
	return nil
}

func (r *LedgerStore) CallerMarks(_ context.Context, identityID int64, pollIDs []int64) (map[int64]int64, map[int64]struct{}, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	votes := make(map[int64]int64)
	likes := make(map[int64]struct{})
	for _, pollID := range pollIDs {
		if id, ok := s.votesByPair[ledgerKey{identityID, pollID}]; ok {
			votes[pollID] = s.votesByID[id].OptionID
		}
		if _, ok := s.likesByPair[ledgerKey{identityID, pollID}]; ok {
			likes[pollID] = struct{}{}
		}
	}
	return votes, likes, nil
}
