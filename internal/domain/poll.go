package domain

import "time"

// Poll is the root entity. Active starts true and is a one-way latch:
// explicit deletion and expiry both flip it to false, nothing flips it back.
type Poll struct {
	ID          int64
	Title       string
	Description string
	OwnerID     int64
	Booster     bool
	ExpiresIn   *int64 // seconds after creation; nil means the poll never expires
	Active      bool
	CreatedAt   time.Time
}

// ExpiresAt returns the expiry instant, or false if the poll has no TTL.
func (p *Poll) ExpiresAt() (time.Time, bool) {
	if p.ExpiresIn == nil {
		return time.Time{}, false
	}
	return p.CreatedAt.Add(time.Duration(*p.ExpiresIn) * time.Second), true
}

// Expired reports whether now is at or past the poll's TTL threshold.
func (p *Poll) Expired(now time.Time) bool {
	at, ok := p.ExpiresAt()
	if !ok {
		return false
	}
	return !now.Before(at)
}

// Option belongs to exactly one poll. The option set is fixed at creation.
type Option struct {
	ID        int64
	PollID    int64
	Text      string
	CreatedAt time.Time
}

// Vote maps (identity, poll) to an option. The store enforces at most one
// row per pair; a second vote moves the existing row's option.
type Vote struct {
	ID         int64
	IdentityID int64
	PollID     int64
	OptionID   int64
	CreatedAt  time.Time
}

// Like is boolean membership per (identity, poll) pair.
type Like struct {
	ID         int64
	IdentityID int64
	PollID     int64
	CreatedAt  time.Time
}
