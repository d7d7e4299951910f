package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Poll lifecycle and listings
	s.echo.POST("/api/polls", s.handleCreatePoll, s.rateLimit)
	s.echo.GET("/api/polls", s.handleListPolls)
	s.echo.GET("/api/polls/:id", s.handleGetPoll)
	s.echo.DELETE("/api/polls/:id", s.handleDeletePoll)

	// Ledger writes
	s.echo.POST("/api/votes", s.handleCastVote, s.rateLimit)
	s.echo.DELETE("/api/votes/:id", s.handleRemoveVote)
	s.echo.POST("/api/likes", s.handleAddLike, s.rateLimit)
	s.echo.DELETE("/api/likes/:poll_id", s.handleRemoveLike)

	// Live channel
	s.echo.GET("/ws/:poll_id", s.handleWebSocket)
}
