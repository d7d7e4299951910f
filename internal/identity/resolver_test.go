package identity

import (
	"context"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anirudhp26/quickpoll/internal/domain"
	"github.com/anirudhp26/quickpoll/internal/memstore"
)

func TestDeriveHandle(t *testing.T) {
	assert.Equal(t, "visitor_a1b2c3d4", DeriveHandle("a1b2c3d4e5f6"))
	// short tokens keep the whole token
	assert.Equal(t, "visitor_abc", DeriveHandle("abc"))
}

func TestDeriveKeyIsStableAndOpaque(t *testing.T) {
	key := DeriveKey("some-token")
	assert.Equal(t, key, DeriveKey("some-token"))
	assert.NotEqual(t, key, DeriveKey("other-token"))
	assert.Len(t, key, 64)
	assert.NotContains(t, key, "some-token")
}

func TestResolveCreatesOnFirstContact(t *testing.T) {
	store := memstore.NewStore(clockwork.NewFakeClock())
	resolver := NewResolver(store.Identities())
	ctx := context.Background()

	ident, err := resolver.Resolve(ctx, "token-one")
	require.NoError(t, err)
	assert.Equal(t, "visitor_token-on", ident.Handle)
	assert.Equal(t, DeriveKey("token-one"), ident.Key)

	again, err := resolver.Resolve(ctx, "token-one")
	require.NoError(t, err)
	assert.Equal(t, ident.ID, again.ID)
}

func TestResolveRefreshesChangedHandle(t *testing.T) {
	store := memstore.NewStore(clockwork.NewFakeClock())
	resolver := NewResolver(store.Identities())
	ctx := context.Background()

	// simulate a row written under an older handle derivation
	_, err := store.Identities().Create(ctx, DeriveKey("token-one"), "legacy_handle")
	require.NoError(t, err)

	ident, err := resolver.Resolve(ctx, "token-one")
	require.NoError(t, err)
	assert.Equal(t, "visitor_token-on", ident.Handle)

	stored, err := store.Identities().GetByKey(ctx, DeriveKey("token-one"))
	require.NoError(t, err)
	assert.Equal(t, "visitor_token-on", stored.Handle)
}

// racingRepo loses the create race: the row appears between the initial
// read and the insert.
type racingRepo struct {
	domain.IdentityRepository
	store       *memstore.Store
	planted     bool
	failReRead  bool
	createCalls int
}

func (r *racingRepo) GetByKey(ctx context.Context, key string) (*domain.Identity, error) {
	if r.planted && r.failReRead {
		return nil, domain.ErrIdentityNotFound
	}
	return r.IdentityRepository.GetByKey(ctx, key)
}

func (r *racingRepo) Create(ctx context.Context, key, handle string) (*domain.Identity, error) {
	r.createCalls++
	if !r.planted {
		// the concurrent winner commits first
		if _, err := r.store.Identities().Create(ctx, key, handle); err != nil {
			return nil, err
		}
		r.planted = true
	}
	return r.IdentityRepository.Create(ctx, key, handle)
}

func TestResolveRecoversFromCreateRace(t *testing.T) {
	store := memstore.NewStore(clockwork.NewFakeClock())
	repo := &racingRepo{IdentityRepository: store.Identities(), store: store}
	resolver := NewResolver(repo)

	ident, err := resolver.Resolve(context.Background(), "token-one")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.createCalls)
	assert.Equal(t, DeriveKey("token-one"), ident.Key)
}

func TestResolveUnrecoverableRaceIsConflict(t *testing.T) {
	store := memstore.NewStore(clockwork.NewFakeClock())
	repo := &racingRepo{IdentityRepository: store.Identities(), store: store, failReRead: true}
	resolver := NewResolver(repo)

	_, err := resolver.Resolve(context.Background(), "token-one")
	assert.ErrorIs(t, err, domain.ErrIdentityConflict)
}
