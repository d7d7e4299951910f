package memstore

import (
	"context"
	"sort"

	"github.com/anirudhp26/quickpoll/internal/domain"
)

// PollStore implements domain.PollRepository on the shared Store.
type PollStore struct {
	store *Store
}

func (r *PollStore) Create(_ context.Context, poll *domain.Poll, optionTexts []string) (*domain.Poll, []domain.Option, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	created := *poll
	created.ID = s.nextID()
	created.Active = true
	created.CreatedAt = s.now()
	s.pollsByID[created.ID] = &created

	options := make([]domain.Option, 0, len(optionTexts))
	for _, text := range optionTexts {
		opt := domain.Option{
			ID:        s.nextID(),
			PollID:    created.ID,
			Text:      text,
			CreatedAt: s.now(),
		}
		s.optionsByID[opt.ID] = &opt
		s.pollOptions[created.ID] = append(s.pollOptions[created.ID], opt.ID)
		options = append(options, opt)
	}

	copied := created
	return &copied, options, nil
}

func (r *PollStore) GetByID(_ context.Context, id int64) (*domain.Poll, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	poll, ok := s.pollsByID[id]
	if !ok {
		return nil, domain.ErrPollNotFound
	}
	copied := *poll
	return &copied, nil
}

func (r *PollStore) List(_ context.Context, active bool, offset, limit int) ([]domain.PollListItem, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	polls := s.pollsNewestFirst(func(p *domain.Poll) bool { return p.Active == active })

	if offset >= len(polls) {
		return nil, nil
	}
	polls = polls[offset:]
	if limit < len(polls) {
		polls = polls[:limit]
	}

	items := make([]domain.PollListItem, 0, len(polls))
	for _, p := range polls {
		item := domain.PollListItem{
			Poll:       *p,
			TotalVotes: s.countVotes(p.ID),
			TotalLikes: s.countLikes(p.ID),
		}
		if owner, ok := s.identitiesByID[p.OwnerID]; ok {
			item.OwnerHandle = owner.Handle
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *PollStore) Options(_ context.Context, pollID int64) ([]domain.Option, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	optionIDs := s.pollOptions[pollID]
	options := make([]domain.Option, 0, len(optionIDs))
	for _, id := range optionIDs {
		options = append(options, *s.optionsByID[id])
	}
	return options, nil
}

func (r *PollStore) GetOption(_ context.Context, optionID, pollID int64) (*domain.Option, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	opt, ok := s.optionsByID[optionID]
	if !ok || opt.PollID != pollID {
		return nil, domain.ErrOptionNotFound
	}
	copied := *opt
	return &copied, nil
}

func (r *PollStore) Deactivate(_ context.Context, id int64) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	poll, ok := s.pollsByID[id]
	if !ok {
		return domain.ErrPollNotFound
	}
	poll.Active = false
	return nil
}

func (r *PollStore) ListBoostedActive(_ context.Context, limit int) ([]domain.Poll, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	polls := s.pollsNewestFirst(func(p *domain.Poll) bool { return p.Active && p.Booster })
	if limit < len(polls) {
		polls = polls[:limit]
	}

	result := make([]domain.Poll, 0, len(polls))
	for _, p := range polls {
		result = append(result, *p)
	}
	return result, nil
}

func (r *PollStore) ListExpirable(_ context.Context) ([]domain.Poll, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Poll
	for _, p := range s.pollsByID {
		if p.Active && p.ExpiresIn != nil {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (r *PollStore) DeactivateAll(_ context.Context, ids []int64) ([]int64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var transitioned []int64
	for _, id := range ids {
		poll, ok := s.pollsByID[id]
		if !ok || !poll.Active {
			continue
		}
		poll.Active = false
		transitioned = append(transitioned, id)
	}
	return transitioned, nil
}

func (s *Store) pollsNewestFirst(keep func(*domain.Poll) bool) []*domain.Poll {
	var polls []*domain.Poll
	for _, p := range s.pollsByID {
		if keep(p) {
			polls = append(polls, p)
		}
	}
	sort.Slice(polls, func(i, j int) bool {
		if !polls[i].CreatedAt.Equal(polls[j].CreatedAt) {
			return polls[i].CreatedAt.After(polls[j].CreatedAt)
		}
		return polls[i].ID > polls[j].ID
	})
	return polls
}
