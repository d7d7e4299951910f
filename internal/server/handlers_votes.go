package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "github.com/anirudhp26/quickpoll/internal/errors"
)

type castVoteRequest struct {
	PollID   int64 `json:"poll_id"`
	OptionID int64 `json:"option_id"`
}

type castVoteResponse struct {
	ID   int64 `json:"id"`
	Poll any   `json:"poll"`
}

func (s *Server) handleCastVote(c echo.Context) error {
	ident, err := s.callerIdentity(c)
	if err != nil {
		return err
	}

	var req castVoteRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.PollID <= 0 || req.OptionID <= 0 {
		return apperrors.ValidationError("poll_id and option_id are required")
	}

	vote, snapshot, err := s.engine.CastVote(c.Request().Context(), ident.ID, req.PollID, req.OptionID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, castVoteResponse{ID: vote.ID, Poll: snapshot})
}

func (s *Server) handleRemoveVote(c echo.Context) error {
	ident, err := s.callerIdentity(c)
	if err != nil {
		return err
	}
	voteID, err := paramInt64(c, "id")
	if err != nil {
		return err
	}

	if err := s.engine.RemoveVote(c.Request().Context(), voteID, ident.ID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
