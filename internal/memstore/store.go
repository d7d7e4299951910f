// Package memstore implements the domain repositories in process memory.
// It mirrors the PostgreSQL adapter's semantics, including the unique
// (identity, poll) ledger keys and the one-way active latch on polls, and
// backs the unit tests without a database.
package memstore

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/anirudhp26/quickpoll/internal/domain"
)

type ledgerKey struct {
	identityID int64
	pollID     int64
}

// Store holds all state behind one mutex. The repository facades returned
// by Identities, Polls and Ledger share it, so cross-entity reads (vote
// totals in poll listings, owner handles) stay consistent.
type Store struct {
	mu sync.RWMutex

	clock clockwork.Clock

	identitiesByID  map[int64]*domain.Identity
	identitiesByKey map[string]int64

	pollsByID   map[int64]*domain.Poll
	optionsByID map[int64]*domain.Option
	pollOptions map[int64][]int64

	votesByID   map[int64]*domain.Vote
	votesByPair map[ledgerKey]int64
	likesByID   map[int64]*domain.Like
	likesByPair map[ledgerKey]int64

	sequence int64
}

func NewStore(clock clockwork.Clock) *Store {
	return &Store{
		clock:           clock,
		identitiesByID:  make(map[int64]*domain.Identity),
		identitiesByKey: make(map[string]int64),
		pollsByID:       make(map[int64]*domain.Poll),
		optionsByID:     make(map[int64]*domain.Option),
		pollOptions:     make(map[int64][]int64),
		votesByID:       make(map[int64]*domain.Vote),
		votesByPair:     make(map[ledgerKey]int64),
		likesByID:       make(map[int64]*domain.Like),
		likesByPair:     make(map[ledgerKey]int64),
	}
}

// Identities returns the domain.IdentityRepository view of the store.
func (s *Store) Identities() *IdentityStore { return &IdentityStore{store: s} }

// Polls returns the domain.PollRepository view of the store.
func (s *Store) Polls() *PollStore { return &PollStore{store: s} }

// Ledger returns the domain.LedgerRepository view of the store.
func (s *Store) Ledger() *LedgerStore { return &LedgerStore{store: s} }

func (s *Store) nextID() int64 {
	s.sequence++
	return s.sequence
}

func (s *Store) now() time.Time {
	return s.clock.Now()
}

func (s *Store) countVotes(pollID int64) int {
	n := 0
	for _, v := range s.votesByID {
		if v.PollID == pollID {
			n++
		}
	}
	return n
}

func (s *Store) countLikes(pollID int64) int {
	n := 0
	for _, l := range s.likesByID {
		if l.PollID == pollID {
			n++
		}
	}
	return n
}
