package server

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/anirudhp26/quickpoll/internal/domain"
)

// sessionHeader carries the opaque session token. The server mints one for
// callers that arrive without it and echoes the effective token back, so a
// client can adopt it and keep a stable identity.
const sessionHeader = "X-Session-ID"

// sessionToken returns the caller's session token, minting one when absent.
// The effective token is always echoed in the response header.
func (s *Server) sessionToken(c echo.Context) string {
	token := c.Request().Header.Get(sessionHeader)
	if token == "" {
		token = uuid.NewString()
	}
	c.Response().Header().Set(sessionHeader, token)
	return token
}

// callerIdentity resolves the session token into a persistent identity.
func (s *Server) callerIdentity(c echo.Context) (*domain.Identity, error) {
	return s.resolver.Resolve(c.Request().Context(), s.sessionToken(c))
}

// rateLimit applies the per-session token bucket to write endpoints. Redis
// being unavailable degrades to allowing the write.
func (s *Server) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := s.sessionToken(c)

		allowed, err := s.rateLimiter.Allow(c.Request().Context(), token)
		if err != nil {
			slog.Warn("rate limit check failed, allowing request", "error", err)
			return next(c)
		}
		if !allowed {
			return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
		}
		return next(c)
	}
}
