package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anirudhp26/quickpoll/internal/domain"
)

// identityColumns must match the Scan order in scanIdentity.
const identityColumns = `id, session_key, handle, created_at`

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// IdentityRepo implements domain.IdentityRepository backed by PostgreSQL.
type IdentityRepo struct {
	pool *pgxpool.Pool
}

func NewIdentityRepo(pool *pgxpool.Pool) *IdentityRepo {
	return &IdentityRepo{pool: pool}
}

func scanIdentity(row pgx.Row) (*domain.Identity, error) {
	var ident domain.Identity
	err := row.Scan(&ident.ID, &ident.Key, &ident.Handle, &ident.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &ident, nil
}

func (r *IdentityRepo) GetByID(ctx context.Context, id int64) (*domain.Identity, error) {
	ident, err := scanIdentity(r.pool.QueryRow(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrIdentityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get identity by id: %w", err)
	}
	return ident, nil
}

func (r *IdentityRepo) GetByKey(ctx context.Context, key string) (*domain.Identity, error) {
	ident, err := scanIdentity(r.pool.QueryRow(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE session_key = $1`, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrIdentityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get identity by key: %w", err)
	}
	return ident, nil
}

func (r *IdentityRepo) Create(ctx context.Context, key, handle string) (*domain.Identity, error) {
	ident, err := scanIdentity(r.pool.QueryRow(ctx, `
		INSERT INTO identities (session_key, handle)
		VALUES ($1, $2)
		RETURNING `+identityColumns,
		key, handle))
	if isUniqueViolation(err) {
		return nil, domain.ErrIdentityExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}
	return ident, nil
}

func (r *IdentityRepo) UpdateHandle(ctx context.Context, id int64, handle string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE identities SET handle = $1 WHERE id = $2`, handle, id)
	if err != nil {
		return fmt.Errorf("failed to update identity handle: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrIdentityNotFound
	}
	return nil
}

func (r *IdentityRepo) EnsurePool(ctx context.Context, members []domain.SyntheticIdentity) ([]int64, error) {
	keys := make([]string, 0, len(members))

	batch := &pgx.Batch{}
	for _, m := range members {
		keys = append(keys, m.Key)
		batch.Queue(`
			INSERT INTO identities (session_key, handle)
			VALUES ($1, $2)
			ON CONFLICT (session_key) DO NOTHING
		`, m.Key, m.Handle)
	}

	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return nil, fmt.Errorf("failed to provision identity pool: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id FROM identities WHERE session_key = ANY($1) ORDER BY id`, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to read identity pool: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan identity pool row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read identity pool: %w", err)
	}

	return ids, nil
}
