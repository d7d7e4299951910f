package memstore

import (
	"context"
	"sort"

	"github.com/anirudhp26/quickpoll/internal/domain"
)

// IdentityStore implements domain.IdentityRepository on the shared Store.
type IdentityStore struct {
	store *Store
}

func (r *IdentityStore) GetByID(_ context.Context, id int64) (*domain.Identity, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	ident, ok := s.identitiesByID[id]
	if !ok {
		return nil, domain.ErrIdentityNotFound
	}
	copied := *ident
	return &copied, nil
}

func (r *IdentityStore) GetByKey(_ context.Context, key string) (*domain.Identity, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.identitiesByKey[key]
	if !ok {
		return nil, domain.ErrIdentityNotFound
	}
	copied := *s.identitiesByID[id]
	return &copied, nil
}

func (r *IdentityStore) Create(_ context.Context, key, handle string) (*domain.Identity, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.identitiesByKey[key]; exists {
		return nil, domain.ErrIdentityExists
	}

	ident := &domain.Identity{
		ID:        s.nextID(),
		Key:       key,
		Handle:    handle,
		CreatedAt: s.now(),
	}
	s.identitiesByID[ident.ID] = ident
	s.identitiesByKey[key] = ident.ID

	copied := *ident
	return &copied, nil
}

func (r *IdentityStore) UpdateHandle(_ context.Context, id int64, handle string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	ident, ok := s.identitiesByID[id]
	if !ok {
		return domain.ErrIdentityNotFound
	}
	ident.Handle = handle
	return nil
}

func (r *IdentityStore) EnsurePool(_ context.Context, members []domain.SyntheticIdentity) ([]int64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		if id, exists := s.identitiesByKey[m.Key]; exists {
			ids = append(ids, id)
			continue
		}
		ident := &domain.Identity{
			ID:        s.nextID(),
			Key:       m.Key,
			Handle:    m.Handle,
			CreatedAt: s.now(),
		}
		s.identitiesByID[ident.ID] = ident
		s.identitiesByKey[m.Key] = ident.ID
		ids = append(ids, ident.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
