package server

import (
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/anirudhp26/quickpoll/internal/domain"
	apperrors "github.com/anirudhp26/quickpoll/internal/errors"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // poll pages embed from arbitrary origins
	},
}

// handleWebSocket attaches a live channel. Path poll_id 0 joins only the
// global set; a real poll id additionally subscribes the channel to that
// poll's topic and primes it with the current snapshot.
func (s *Server) handleWebSocket(c echo.Context) error {
	pollID, err := strconv.ParseInt(c.Param("poll_id"), 10, 64)
	if err != nil || pollID < 0 {
		return apperrors.ValidationError("poll_id must be a non-negative integer")
	}

	// The poll must exist before we upgrade, so HTTP errors stay HTTP errors.
	if pollID != 0 {
		if _, err := s.polls.GetByID(c.Request().Context(), pollID); err != nil {
			return err
		}
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return apperrors.InternalError("failed to upgrade connection", err)
	}

	if err := s.hub.Register(conn); err != nil {
		// Register closed the connection already.
		return nil
	}
	defer s.hub.Unregister(conn)

	if pollID != 0 {
		if err := s.hub.Subscribe(conn, pollID); err != nil {
			return nil
		}
		snapshot, err := s.engine.Snapshot(c.Request().Context(), pollID)
		if err != nil {
			return nil
		}
		s.hub.SendDirect(conn, domain.Envelope{
			Type:   domain.EventPollState,
			PollID: pollID,
			Data:   snapshot,
		})
	} else {
		s.hub.SendDirect(conn, domain.Envelope{
			Type: domain.EventConnected,
			Data: map[string]string{"status": "ok"},
		})
	}

	// Inbound frames are ignored; the read pump only notices disconnects
	// and feeds the pong handler.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}
