package scheduler

import (
	"context"
	"fmt"

	"github.com/anirudhp26/quickpoll/internal/domain"
)

// syntheticKeyPrefix namespaces pool members in the identities table. Real
// session keys are hex digests, so the prefix cannot collide with them.
const syntheticKeyPrefix = "synthetic:"

// PoolMembers describes the synthetic identity pool of the given size.
func PoolMembers(size int) []domain.SyntheticIdentity {
	members := make([]domain.SyntheticIdentity, 0, size)
	for i := 1; i <= size; i++ {
		handle := fmt.Sprintf("demo_user_%d", i)
		members = append(members, domain.SyntheticIdentity{
			Key:    syntheticKeyPrefix + handle,
			Handle: handle,
		})
	}
	return members
}

// EnsurePool provisions the synthetic identity pool and returns its ids.
// Idempotent: existing members are kept, missing ones created.
func EnsurePool(ctx context.Context, identities domain.IdentityRepository, size int) ([]int64, error) {
	ids, err := identities.EnsurePool(ctx, PoolMembers(size))
	if err != nil {
		return nil, fmt.Errorf("failed to ensure synthetic pool: %w", err)
	}
	return ids, nil
}
