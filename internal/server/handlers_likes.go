package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "github.com/anirudhp26/quickpoll/internal/errors"
)

type addLikeRequest struct {
	PollID int64 `json:"poll_id"`
}

func (s *Server) handleAddLike(c echo.Context) error {
	ident, err := s.callerIdentity(c)
	if err != nil {
		return err
	}

	var req addLikeRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.PollID <= 0 {
		return apperrors.ValidationError("poll_id is required")
	}

	snapshot, err := s.engine.AddLike(c.Request().Context(), ident.ID, req.PollID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, snapshot)
}

func (s *Server) handleRemoveLike(c echo.Context) error {
	ident, err := s.callerIdentity(c)
	if err != nil {
		return err
	}
	pollID, err := paramInt64(c, "poll_id")
	if err != nil {
		return err
	}

	snapshot, err := s.engine.RemoveLike(c.Request().Context(), ident.ID, pollID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, snapshot)
}
