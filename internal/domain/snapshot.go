package domain

import (
	"math"
	"time"
)

// OptionSnapshot is the per-option aggregate view inside a PollSnapshot.
type OptionSnapshot struct {
	ID         int64     `json:"id"`
	Text       string    `json:"text"`
	VoteCount  int       `json:"vote_count"`
	CreatedAt  time.Time `json:"created_at"`
	PollID     int64     `json:"poll_id"`
	Percentage int       `json:"percentage"`
}

// PollSnapshot is the ledger-derived aggregate view of a poll at a point in
// time. It is recomputed from the vote/like sets, never carried forward from
// cached counters, and is the payload of poll_state and poll_update events.
type PollSnapshot struct {
	ID          int64            `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	TotalVotes  int              `json:"total_votes"`
	TotalLikes  int              `json:"total_likes"`
	Options     []OptionSnapshot `json:"options"`
	OwnerID     int64            `json:"user_id"`
	OwnerHandle string           `json:"username"`
	CreatedAt   time.Time        `json:"created_at"`
	Booster     bool             `json:"booster"`
	ExpiresIn   *int64           `json:"expires_in"`
	Active      bool             `json:"is_active"`
}

// Percentage is the rounded share of total votes; 0 when the poll has none.
func Percentage(count, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(count) / float64(total) * 100))
}

// AggregateDelta is the net effect of one batch of writes against one poll.
// The simulator uses it to build a broadcast payload without re-querying the
// ledger per write; it is never a source of truth.
type AggregateDelta struct {
	VotesAdded   int
	LikesAdded   int
	OptionDeltas map[int64]int
}

// Empty reports whether the batch changed nothing worth broadcasting.
func (d *AggregateDelta) Empty() bool {
	if d == nil {
		return true
	}
	if d.VotesAdded != 0 || d.LikesAdded != 0 {
		return false
	}
	for _, dv := range d.OptionDeltas {
		if dv != 0 {
			return false
		}
	}
	return true
}

// ApplyDelta folds a batch delta into the snapshot and recomputes
// percentages. The result matches a full recompute as long as no concurrent
// writer touched the poll between snapshot and batch commit.
func (s *PollSnapshot) ApplyDelta(d *AggregateDelta) {
	if d == nil {
		return
	}
	s.TotalVotes += d.VotesAdded
	s.TotalLikes += d.LikesAdded
	for i := range s.Options {
		s.Options[i].VoteCount += d.OptionDeltas[s.Options[i].ID]
	}
	for i := range s.Options {
		s.Options[i].Percentage = Percentage(s.Options[i].VoteCount, s.TotalVotes)
	}
}
