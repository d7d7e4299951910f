package domain

import "errors"

var (
	ErrIdentityNotFound = errors.New("identity not found")
	ErrIdentityExists   = errors.New("identity already exists")
	// ErrIdentityConflict is surfaced when a creation race could not be
	// resolved by re-reading the winner's row.
	ErrIdentityConflict = errors.New("identity creation conflict not resolved")

	ErrPollNotFound   = errors.New("poll not found")
	ErrPollInactive   = errors.New("poll is not active")
	ErrOptionNotFound = errors.New("poll option not found")
	ErrVoteNotFound   = errors.New("vote not found")
	ErrLikeNotFound   = errors.New("like not found")
	ErrAlreadyLiked   = errors.New("poll already liked")
	ErrExpiryTooLong  = errors.New("poll expiry exceeds maximum")
)
