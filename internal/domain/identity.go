package domain

import "time"

// Identity is a durable pseudo-user bound to an opaque session token.
// Key is derived from the token and is the stable lookup handle; ID never
// changes once created, while Handle may be refreshed if the derivation does.
type Identity struct {
	ID        int64
	Key       string
	Handle    string
	CreatedAt time.Time
}

// SyntheticIdentity describes one member of the pre-provisioned pool the
// traffic simulator draws from.
type SyntheticIdentity struct {
	Key    string
	Handle string
}
