package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Hub metrics
var (
	// HubConnectedChannels tracks the number of live channels in the global set
	HubConnectedChannels = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_connected_channels",
			Help: "Number of live channels currently registered with the hub",
		},
	)

	// HubActiveTopics tracks the number of poll topics with at least one subscriber
	HubActiveTopics = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_active_topics",
			Help: "Number of poll topics with at least one subscriber",
		},
	)

	// HubDeadChannelsPruned tracks channels removed after a failed delivery
	HubDeadChannelsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_dead_channels_pruned_total",
			Help: "Channels removed from the hub after a failed delivery attempt",
		},
	)

	// HubEnvelopesPublished tracks published envelopes by scope
	HubEnvelopesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_envelopes_published_total",
			Help: "Notification envelopes published, by scope (global/topic/direct)",
		},
		[]string{"scope"},
	)

	// WebSocketMessageSendDuration tracks websocket write latency in seconds
	WebSocketMessageSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "websocket_message_send_duration_seconds",
			Help:    "WebSocket message send duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// WebSocketPingFailures tracks failed keepalive pings
	WebSocketPingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_ping_failures_total",
			Help: "Total failed WebSocket keepalive pings",
		},
	)
)

// Ledger metrics
var (
	// VotesCastTotal tracks foreground votes by outcome (created/moved/unchanged)
	VotesCastTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "votes_cast_total",
			Help: "Foreground votes cast, by outcome",
		},
		[]string{"outcome"},
	)

	// LikeOpsTotal tracks like/unlike operations by op and status
	LikeOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "like_operations_total",
			Help: "Like/unlike operations, by op and status",
		},
		[]string{"op", "status"},
	)
)

// Scheduler metrics
var (
	// SchedulerTickDuration tracks background tick duration by job
	SchedulerTickDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduler_tick_duration_seconds",
			Help:    "Background scheduler tick duration in seconds, by job",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"job"},
	)

	// SchedulerTickErrors tracks failed ticks by job
	SchedulerTickErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_tick_errors_total",
			Help: "Background scheduler ticks that failed, by job",
		},
		[]string{"job"},
	)

	// SyntheticWritesTotal tracks synthetic ledger writes by kind
	SyntheticWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "synthetic_writes_total",
			Help: "Synthetic ledger writes applied by the traffic simulator, by kind",
		},
		[]string{"kind"},
	)

	// PollsExpiredTotal tracks polls deactivated by the expiry sweeper
	PollsExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "polls_expired_total",
			Help: "Polls deactivated by the expiry sweeper",
		},
	)
)
