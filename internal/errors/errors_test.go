package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/anirudhp26/quickpoll/internal/domain"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err    *Error
		status int
	}{
		{ValidationError("bad input"), http.StatusBadRequest},
		{NotFoundError("missing"), http.StatusNotFound},
		{ConflictError("taken"), http.StatusConflict},
		{TransientError("retry", nil), http.StatusServiceUnavailable},
		{InternalError("boom", nil), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, tc.err.HTTPStatus())
	}
}

func TestAsStructuredErrorDomainMapping(t *testing.T) {
	cases := []struct {
		err      error
		expected ErrorType
	}{
		{domain.ErrPollNotFound, TypeNotFound},
		{domain.ErrOptionNotFound, TypeNotFound},
		{domain.ErrVoteNotFound, TypeNotFound},
		{domain.ErrLikeNotFound, TypeNotFound},
		{domain.ErrIdentityNotFound, TypeNotFound},
		{domain.ErrAlreadyLiked, TypeConflict},
		{domain.ErrExpiryTooLong, TypeConflict},
		{domain.ErrPollInactive, TypeConflict},
		{domain.ErrIdentityConflict, TypeTransient},
		{errors.New("mystery"), TypeInternal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.expected, AsStructuredError(tc.err).Type, "%v", tc.err)
	}
}

func TestAsStructuredErrorUnwrapsWrappedSentinels(t *testing.T) {
	wrapped := fmt.Errorf("poll 7: %w", domain.ErrPollInactive)
	structured := AsStructuredError(wrapped)
	assert.Equal(t, TypeConflict, structured.Type)
}

func TestAsStructuredErrorPassesThroughStructured(t *testing.T) {
	original := ValidationError("title is required").WithField("field", "title")
	assert.Same(t, original, AsStructuredError(original))
	assert.Same(t, original, AsStructuredError(fmt.Errorf("handler: %w", original)))
}

func TestErrorMessageAndUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := TransientError("please retry", cause)

	assert.Contains(t, err.Error(), "please retry")
	assert.ErrorIs(t, err, cause)
}

func TestToResponse(t *testing.T) {
	err := ConflictError("already liked").WithField("poll_id", int64(7))
	resp := err.ToResponse()

	assert.Equal(t, "already liked", resp.Error)
	assert.Equal(t, TypeConflict, resp.Type)
	assert.Equal(t, int64(7), resp.Context["poll_id"])
}
