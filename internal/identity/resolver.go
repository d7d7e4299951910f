// Package identity maps opaque session tokens to persistent identities.
package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/anirudhp26/quickpoll/internal/domain"
)

// handlePrefixLen is how many token characters feed the visitor handle.
const handlePrefixLen = 8

// Resolver resolves session tokens to identities, creating them on first
// contact. Concurrent first contacts with the same token race on the
// unique session key; the loser recovers by re-reading the winner's row.
type Resolver struct {
	identities domain.IdentityRepository
}

func NewResolver(identities domain.IdentityRepository) *Resolver {
	return &Resolver{identities: identities}
}

// DeriveKey returns the storage key for a session token. Tokens are
// client-supplied, so only a digest is persisted.
func DeriveKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// DeriveHandle returns the display handle for a session token.
func DeriveHandle(token string) string {
	prefix := token
	if len(prefix) > handlePrefixLen {
		prefix = prefix[:handlePrefixLen]
	}
	return "visitor_" + prefix
}

// Resolve returns the identity for the session token, creating it if none
// exists. A stored handle that no longer matches the token's derived handle
// is refreshed in place. Returns domain.ErrIdentityConflict when a create
// race cannot be recovered by re-reading.
func (r *Resolver) Resolve(ctx context.Context, token string) (*domain.Identity, error) {
	key := DeriveKey(token)
	handle := DeriveHandle(token)

	ident, err := r.identities.GetByKey(ctx, key)
	switch {
	case err == nil:
		if ident.Handle != handle {
			if err := r.identities.UpdateHandle(ctx, ident.ID, handle); err != nil {
				return nil, fmt.Errorf("failed to refresh identity handle: %w", err)
			}
			ident.Handle = handle
		}
		return ident, nil
	case !errors.Is(err, domain.ErrIdentityNotFound):
		return nil, err
	}

	ident, err = r.identities.Create(ctx, key, handle)
	if err == nil {
		return ident, nil
	}
	if !errors.Is(err, domain.ErrIdentityExists) {
		return nil, err
	}

	// Another request created the identity between our read and write.
	slog.Debug("identity create race, re-reading", "handle", handle)
	ident, err = r.identities.GetByKey(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrIdentityNotFound) {
			return nil, domain.ErrIdentityConflict
		}
		return nil, err
	}
	return ident, nil
}
