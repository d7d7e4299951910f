package domain

// Event kinds delivered over live channels.
const (
	EventConnected   = "connected"
	EventPollState   = "poll_state"
	EventPollCreated = "poll_created"
	EventPollUpdate  = "poll_update"
	EventPollDeleted = "poll_deleted"
	EventVoteRemoved = "vote_removed"
)

// Envelope is the JSON notification frame sent to live channels.
// PollID 0 carries events that are not scoped to a specific poll.
type Envelope struct {
	Type   string `json:"type"`
	PollID int64  `json:"poll_id"`
	Data   any    `json:"data"`
}
