package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/anirudhp26/quickpoll/internal/domain"
	apperrors "github.com/anirudhp26/quickpoll/internal/errors"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type createPollRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Options     []string `json:"options"`
	Booster     bool     `json:"booster"`
	ExpiresIn   *int64   `json:"expires_in"`
}

func (s *Server) handleCreatePoll(c echo.Context) error {
	ident, err := s.callerIdentity(c)
	if err != nil {
		return err
	}

	var req createPollRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if strings.TrimSpace(req.Title) == "" {
		return apperrors.ValidationError("title is required")
	}
	options := make([]string, 0, len(req.Options))
	for _, opt := range req.Options {
		if trimmed := strings.TrimSpace(opt); trimmed != "" {
			options = append(options, trimmed)
		}
	}
	if len(options) < 2 {
		return apperrors.ValidationError("at least two options are required")
	}
	if req.ExpiresIn != nil {
		if *req.ExpiresIn <= 0 {
			return apperrors.ValidationError("expires_in must be positive")
		}
		if *req.ExpiresIn > int64(s.config.MaxPollTTL/time.Second) {
			return domain.ErrExpiryTooLong
		}
	}

	poll := &domain.Poll{
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		OwnerID:     ident.ID,
		Booster:     req.Booster,
		ExpiresIn:   req.ExpiresIn,
	}

	snapshot, err := s.engine.CreatePoll(c.Request().Context(), poll, options)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, snapshot)
}

type pollListEntry struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	OwnerID       int64     `json:"user_id"`
	OwnerHandle   string    `json:"username"`
	Booster       bool      `json:"booster"`
	ExpiresIn     *int64    `json:"expires_in"`
	Active        bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	TotalVotes    int       `json:"total_votes"`
	TotalLikes    int       `json:"total_likes"`
	VotedOptionID *int64    `json:"voted_option_id"`
	Liked         bool      `json:"liked"`
}

func (s *Server) handleListPolls(c echo.Context) error {
	active := true
	if raw := c.QueryParam("active"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return apperrors.ValidationError("active must be a boolean")
		}
		active = parsed
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		return err
	}
	limit, err := queryInt(c, "limit", defaultListLimit)
	if err != nil {
		return err
	}
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}

	ctx := c.Request().Context()
	items, err := s.polls.List(ctx, active, offset, limit)
	if err != nil {
		return err
	}

	entries := make([]pollListEntry, 0, len(items))
	pollIDs := make([]int64, 0, len(items))
	for _, item := range items {
		pollIDs = append(pollIDs, item.ID)
		entries = append(entries, pollListEntry{
			ID:          item.ID,
			Title:       item.Title,
			Description: item.Description,
			OwnerID:     item.OwnerID,
			OwnerHandle: item.OwnerHandle,
			Booster:     item.Booster,
			ExpiresIn:   item.ExpiresIn,
			Active:      item.Active,
			CreatedAt:   item.CreatedAt,
			TotalVotes:  item.TotalVotes,
			TotalLikes:  item.TotalLikes,
		})
	}

	// Mark the caller's own votes and likes when a session token is present.
	// Listings never mint tokens; anonymous callers just get unmarked rows.
	if token := c.Request().Header.Get(sessionHeader); token != "" && len(pollIDs) > 0 {
		ident, err := s.resolver.Resolve(ctx, token)
		if err != nil {
			return err
		}
		votes, likes, err := s.ledger.CallerMarks(ctx, ident.ID, pollIDs)
		if err != nil {
			return err
		}
		for i := range entries {
			if optionID, ok := votes[entries[i].ID]; ok {
				entries[i].VotedOptionID = &optionID
			}
			_, entries[i].Liked = likes[entries[i].ID]
		}
	}

	return c.JSON(http.StatusOK, map[string]any{"polls": entries})
}

func (s *Server) handleGetPoll(c echo.Context) error {
	pollID, err := paramInt64(c, "id")
	if err != nil {
		return err
	}

	snapshot, err := s.engine.Snapshot(c.Request().Context(), pollID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, snapshot)
}

func (s *Server) handleDeletePoll(c echo.Context) error {
	ident, err := s.callerIdentity(c)
	if err != nil {
		return err
	}
	pollID, err := paramInt64(c, "id")
	if err != nil {
		return err
	}

	if err := s.engine.DeletePoll(c.Request().Context(), pollID, ident.ID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int64{"id": pollID})
}

func paramInt64(c echo.Context, name string) (int64, error) {
	value, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || value <= 0 {
		return 0, apperrors.ValidationError(name + " must be a positive integer")
	}
	return value, nil
}

func queryInt(c echo.Context, name string, fallback int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, apperrors.ValidationError(name + " must be a non-negative integer")
	}
	return value, nil
}
