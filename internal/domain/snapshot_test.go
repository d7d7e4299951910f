package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPercentage(t *testing.T) {
	assert.Equal(t, 0, Percentage(0, 0))
	assert.Equal(t, 0, Percentage(5, 0))
	assert.Equal(t, 100, Percentage(3, 3))
	assert.Equal(t, 50, Percentage(1, 2))
	// 1/3 rounds to 33, 2/3 rounds to 67
	assert.Equal(t, 33, Percentage(1, 3))
	assert.Equal(t, 67, Percentage(2, 3))
	// 1/8 rounds to 13, not truncates to 12
	assert.Equal(t, 13, Percentage(1, 8))
}

func TestAggregateDeltaEmpty(t *testing.T) {
	var nilDelta *AggregateDelta
	assert.True(t, nilDelta.Empty())
	assert.True(t, (&AggregateDelta{}).Empty())
	assert.True(t, (&AggregateDelta{OptionDeltas: map[int64]int{1: 0}}).Empty())
	assert.False(t, (&AggregateDelta{VotesAdded: 1}).Empty())
	assert.False(t, (&AggregateDelta{LikesAdded: 2}).Empty())
	assert.False(t, (&AggregateDelta{OptionDeltas: map[int64]int{1: -1, 2: 1}}).Empty())
}

func TestApplyDeltaRecomputesPercentages(t *testing.T) {
	snap := &PollSnapshot{
		TotalVotes: 4,
		TotalLikes: 1,
		Options: []OptionSnapshot{
			{ID: 1, VoteCount: 3, Percentage: 75},
			{ID: 2, VoteCount: 1, Percentage: 25},
		},
	}

	snap.ApplyDelta(&AggregateDelta{
		VotesAdded:   2,
		LikesAdded:   3,
		OptionDeltas: map[int64]int{1: 1, 2: 1},
	})

	assert.Equal(t, 6, snap.TotalVotes)
	assert.Equal(t, 4, snap.TotalLikes)
	assert.Equal(t, 4, snap.Options[0].VoteCount)
	assert.Equal(t, 2, snap.Options[1].VoteCount)
	assert.Equal(t, 67, snap.Options[0].Percentage)
	assert.Equal(t, 33, snap.Options[1].Percentage)
}

func TestApplyDeltaMovedVoteKeepsTotal(t *testing.T) {
	snap := &PollSnapshot{
		TotalVotes: 2,
		Options: []OptionSnapshot{
			{ID: 1, VoteCount: 2, Percentage: 100},
			{ID: 2, VoteCount: 0, Percentage: 0},
		},
	}

	snap.ApplyDelta(&AggregateDelta{OptionDeltas: map[int64]int{1: -1, 2: 1}})

	assert.Equal(t, 2, snap.TotalVotes)
	assert.Equal(t, 50, snap.Options[0].Percentage)
	assert.Equal(t, 50, snap.Options[1].Percentage)
}

func TestPollExpiry(t *testing.T) {
	created := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	ttl := int64(3600)

	eternal := Poll{CreatedAt: created}
	assert.False(t, eternal.Expired(created.Add(100*time.Hour)))
	_, ok := eternal.ExpiresAt()
	assert.False(t, ok)

	mortal := Poll{CreatedAt: created, ExpiresIn: &ttl}
	at, ok := mortal.ExpiresAt()
	assert.True(t, ok)
	assert.Equal(t, created.Add(time.Hour), at)

	assert.False(t, mortal.Expired(created.Add(59*time.Minute)))
	// threshold itself counts as expired
	assert.True(t, mortal.Expired(created.Add(time.Hour)))
	assert.True(t, mortal.Expired(created.Add(2*time.Hour)))
}
