// Package hub is the live subscription registry. A single goroutine owns
// all registry state and processes typed commands, so no locking is needed;
// per-connection writers decouple slow clients from the fan-out loop.
package hub

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/anirudhp26/quickpoll/internal/domain"
	"github.com/anirudhp26/quickpoll/internal/metrics"
)

// --- Command types ---

type hubCmd interface{ hubCmd() }

type cmdRegister struct {
	conn  *websocket.Conn
	errCh chan error
}

func (cmdRegister) hubCmd() {}

type cmdSubscribe struct {
	conn   *websocket.Conn
	pollID int64
	errCh  chan error
}

func (cmdSubscribe) hubCmd() {}

type cmdUnregister struct {
	conn *websocket.Conn
}

func (cmdUnregister) hubCmd() {}

type cmdPublish struct {
	pollID int64 // 0 means the global set
	data   []byte
}

func (cmdPublish) hubCmd() {}

type cmdSendDirect struct {
	conn *websocket.Conn
	data []byte
}

func (cmdSendDirect) hubCmd() {}

type cmdClientCount struct {
	pollID  int64 // 0 means the global set
	replyCh chan int
}

func (cmdClientCount) hubCmd() {}

type cmdStop struct {
	doneCh chan struct{}
}

func (cmdStop) hubCmd() {}

// --- Hub ---

// Hub tracks every live channel in a global set plus at most one poll topic
// per channel. Delivery is best-effort: a channel whose buffer is full is
// pruned from everything it belongs to, exactly as if it had disconnected.
type Hub struct {
	cmdCh          chan hubCmd
	done           chan struct{} // closed when the command loop exits; senders bail instead of blocking
	clients        map[*websocket.Conn]*clientWriter
	topics         map[int64]map[*websocket.Conn]struct{}
	topicOf        map[*websocket.Conn]int64
	clock          clockwork.Clock
	maxConnections int
	stopOnce       sync.Once
}

func NewHub(clock clockwork.Clock, maxConnections int) *Hub {
	h := &Hub{
		cmdCh:          make(chan hubCmd, 256),
		done:           make(chan struct{}),
		clients:        make(map[*websocket.Conn]*clientWriter),
		topics:         make(map[int64]map[*websocket.Conn]struct{}),
		topicOf:        make(map[*websocket.Conn]int64),
		clock:          clock,
		maxConnections: maxConnections,
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case cmdRegister:
			h.handleRegister(c)
		case cmdSubscribe:
			h.handleSubscribe(c)
		case cmdUnregister:
			h.handleUnregister(c.conn)
		case cmdPublish:
			h.handlePublish(c)
		case cmdSendDirect:
			h.handleSendDirect(c)
		case cmdClientCount:
			if c.pollID == 0 {
				c.replyCh <- len(h.clients)
			} else {
				c.replyCh <- len(h.topics[c.pollID])
			}
		case cmdStop:
			h.handleStop()
			close(h.done)
			close(c.doneCh)
			return
		}
	}
}

func (h *Hub) handleRegister(c cmdRegister) {
	if len(h.clients) >= h.maxConnections {
		slog.Warn("rejecting channel, connection limit reached", "limit", h.maxConnections)
		_ = c.conn.Close()
		c.errCh <- fmt.Errorf("connection limit (%d) reached", h.maxConnections)
		return
	}

	h.clients[c.conn] = newClientWriter(c.conn, h.clock)
	metrics.HubConnectedChannels.Set(float64(len(h.clients)))
	c.errCh <- nil
}

func (h *Hub) handleSubscribe(c cmdSubscribe) {
	if _, exists := h.clients[c.conn]; !exists {
		c.errCh <- fmt.Errorf("channel is not registered")
		return
	}

	// A channel subscribes to at most one topic; re-subscribing moves it.
	if prev, ok := h.topicOf[c.conn]; ok {
		h.removeFromTopic(c.conn, prev)
	}

	set, ok := h.topics[c.pollID]
	if !ok {
		set = make(map[*websocket.Conn]struct{})
		h.topics[c.pollID] = set
	}
	set[c.conn] = struct{}{}
	h.topicOf[c.conn] = c.pollID
	metrics.HubActiveTopics.Set(float64(len(h.topics)))
	c.errCh <- nil
}

func (h *Hub) handleUnregister(conn *websocket.Conn) {
	cw, exists := h.clients[conn]
	if !exists {
		return
	}

	cw.stop()
	delete(h.clients, conn)
	if pollID, ok := h.topicOf[conn]; ok {
		h.removeFromTopic(conn, pollID)
	}
	metrics.HubConnectedChannels.Set(float64(len(h.clients)))
}

func (h *Hub) removeFromTopic(conn *websocket.Conn, pollID int64) {
	delete(h.topicOf, conn)
	set, ok := h.topics[pollID]
	if !ok {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(h.topics, pollID)
	}
	metrics.HubActiveTopics.Set(float64(len(h.topics)))
}

func (h *Hub) handlePublish(c cmdPublish) {
	var targets map[*websocket.Conn]struct{}
	if c.pollID == 0 {
		targets = make(map[*websocket.Conn]struct{}, len(h.clients))
		for conn := range h.clients {
			targets[conn] = struct{}{}
		}
	} else {
		targets = h.topics[c.pollID]
	}

	var dead []*websocket.Conn
	for conn := range targets {
		cw := h.clients[conn]
		select {
		case cw.sendChannel <- c.data:
		default:
			// buffer full, treat the channel as dead
			dead = append(dead, conn)
		}
	}

	for _, conn := range dead {
		slog.Debug("pruning dead channel during delivery", "poll_id", c.pollID)
		metrics.HubDeadChannelsPruned.Inc()
		h.handleUnregister(conn)
	}
}

func (h *Hub) handleSendDirect(c cmdSendDirect) {
	cw, exists := h.clients[c.conn]
	if !exists {
		return
	}
	select {
	case cw.sendChannel <- c.data:
		metrics.HubEnvelopesPublished.WithLabelValues("direct").Inc()
	default:
		metrics.HubDeadChannelsPruned.Inc()
		h.handleUnregister(c.conn)
	}
}

func (h *Hub) handleStop() {
	for conn, cw := range h.clients {
		cw.stop()
		delete(h.clients, conn)
	}
	h.topics = make(map[int64]map[*websocket.Conn]struct{})
	h.topicOf = make(map[*websocket.Conn]int64)
	metrics.HubConnectedChannels.Set(0)
	metrics.HubActiveTopics.Set(0)
}

// --- Public API ---

// Register adds a channel to the global set.
func (h *Hub) Register(conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	select {
	case h.cmdCh <- cmdRegister{conn: conn, errCh: errCh}:
	case <-h.done:
		_ = conn.Close()
		return fmt.Errorf("hub is stopped")
	}
	select {
	case err := <-errCh:
		return err
	case <-h.done:
		_ = conn.Close()
		return fmt.Errorf("hub is stopped")
	}
}

// Subscribe adds a registered channel to a poll topic. A channel belongs to
// at most one topic at a time.
func (h *Hub) Subscribe(conn *websocket.Conn, pollID int64) error {
	errCh := make(chan error, 1)
	select {
	case h.cmdCh <- cmdSubscribe{conn: conn, pollID: pollID, errCh: errCh}:
	case <-h.done:
		return fmt.Errorf("hub is stopped")
	}
	select {
	case err := <-errCh:
		return err
	case <-h.done:
		return fmt.Errorf("hub is stopped")
	}
}

// Unregister removes a channel from the global set and its topic. Safe to
// call for channels that were never registered or already pruned.
func (h *Hub) Unregister(conn *websocket.Conn) {
	select {
	case h.cmdCh <- cmdUnregister{conn: conn}:
	case <-h.done:
	}
}

// PublishGlobal delivers an envelope to every live channel.
func (h *Hub) PublishGlobal(envelope domain.Envelope) {
	data, err := json.Marshal(envelope)
	if err != nil {
		slog.Error("failed to marshal envelope", "type", envelope.Type, "error", err)
		return
	}
	metrics.HubEnvelopesPublished.WithLabelValues("global").Inc()
	select {
	case h.cmdCh <- cmdPublish{pollID: 0, data: data}:
	case <-h.done:
	}
}

// PublishTopic delivers an envelope to the channels subscribed to a poll.
func (h *Hub) PublishTopic(pollID int64, envelope domain.Envelope) {
	data, err := json.Marshal(envelope)
	if err != nil {
		slog.Error("failed to marshal envelope", "type", envelope.Type, "error", err)
		return
	}
	metrics.HubEnvelopesPublished.WithLabelValues("topic").Inc()
	select {
	case h.cmdCh <- cmdPublish{pollID: pollID, data: data}:
	case <-h.done:
	}
}

// SendDirect delivers an envelope to a single channel, best-effort.
func (h *Hub) SendDirect(conn *websocket.Conn, envelope domain.Envelope) {
	data, err := json.Marshal(envelope)
	if err != nil {
		slog.Error("failed to marshal envelope", "type", envelope.Type, "error", err)
		return
	}
	select {
	case h.cmdCh <- cmdSendDirect{conn: conn, data: data}:
	case <-h.done:
	}
}

// ClientCount returns the size of the global set, 0 once stopped.
func (h *Hub) ClientCount() int {
	return h.count(0)
}

// TopicCount returns the number of channels subscribed to a poll, 0 once
// stopped.
func (h *Hub) TopicCount(pollID int64) int {
	return h.count(pollID)
}

func (h *Hub) count(pollID int64) int {
	replyCh := make(chan int, 1)
	select {
	case h.cmdCh <- cmdClientCount{pollID: pollID, replyCh: replyCh}:
	case <-h.done:
		return 0
	}
	select {
	case n := <-replyCh:
		return n
	case <-h.done:
		return 0
	}
}

// Stop closes every channel and shuts the hub down. Blocks until the
// command loop has drained. Idempotent.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		doneCh := make(chan struct{})
		h.cmdCh <- cmdStop{doneCh: doneCh}
		<-doneCh
	})
}
