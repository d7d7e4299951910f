package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anirudhp26/quickpoll/internal/domain"
)

// voteColumns must match the Scan order in scanVote.
const voteColumns = `id, identity_id, poll_id, option_id, created_at`

const likeColumns = `id, identity_id, poll_id, created_at`

// LedgerRepo implements domain.LedgerRepository backed by PostgreSQL.
type LedgerRepo struct {
	pool *pgxpool.Pool
}

func NewLedgerRepo(pool *pgxpool.Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

func scanVote(row pgx.Row) (*domain.Vote, error) {
	var v domain.Vote
	err := row.Scan(&v.ID, &v.IdentityID, &v.PollID, &v.OptionID, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *LedgerRepo) GetVote(ctx context.Context, identityID, pollID int64) (*domain.Vote, error) {
	vote, err := scanVote(r.pool.QueryRow(ctx,
		`SELECT `+voteColumns+` FROM votes WHERE identity_id = $1 AND poll_id = $2`,
		identityID, pollID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrVoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vote: %w", err)
	}
	return vote, nil
}

func (r *LedgerRepo) UpsertVote(ctx context.Context, identityID, pollID, optionID int64) (*domain.Vote, error) {
	vote, err := scanVote(r.pool.QueryRow(ctx, `
		INSERT INTO votes (identity_id, poll_id, option_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (identity_id, poll_id) DO UPDATE SET option_id = EXCLUDED.option_id
		RETURNING `+voteColumns,
		identityID, pollID, optionID))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert vote: %w", err)
	}
	return vote, nil
}

func (r *LedgerRepo) DeleteVote(ctx context.Context, voteID, identityID int64) (*domain.Vote, error) {
	vote, err := scanVote(r.pool.QueryRow(ctx,
		`DELETE FROM votes WHERE id = $1 AND identity_id = $2 RETURNING `+voteColumns,
		voteID, identityID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrVoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete vote: %w", err)
	}
	return vote, nil
}

func (r *LedgerRepo) InsertLike(ctx context.Context, identityID, pollID int64) (*domain.Like, error) {
	var like domain.Like
	err := r.pool.QueryRow(ctx, `
		INSERT INTO poll_likes (identity_id, poll_id)
		VALUES ($1, $2)
		RETURNING `+likeColumns,
		identityID, pollID).Scan(&like.ID, &like.IdentityID, &like.PollID, &like.CreatedAt)
	if isUniqueViolation(err) {
		return nil, domain.ErrAlreadyLiked
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert like: %w", err)
	}
	return &like, nil
}

func (r *LedgerRepo) DeleteLike(ctx context.Context, identityID, pollID int64) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM poll_likes WHERE identity_id = $1 AND poll_id = $2`,
		identityID, pollID)
	if err != nil {
		return fmt.Errorf("failed to delete like: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLikeNotFound
	}
	return nil
}

func (r *LedgerRepo) Aggregates(ctx context.Context, pollID int64) (domain.PollTotals, map[int64]int, error) {
	var totals domain.PollTotals
	err := r.pool.QueryRow(ctx, `
		SELECT (SELECT count(*) FROM votes WHERE poll_id = $1),
		       (SELECT count(*) FROM poll_likes WHERE poll_id = $1)
	`, pollID).Scan(&totals.Votes, &totals.Likes)
	if err != nil {
		return domain.PollTotals{}, nil, fmt.Errorf("failed to count poll totals: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT option_id, count(*) FROM votes
		WHERE poll_id = $1
		GROUP BY option_id
	`, pollID)
	if err != nil {
		return domain.PollTotals{}, nil, fmt.Errorf("failed to count option votes: %w", err)
	}
	defer rows.Close()

	perOption := make(map[int64]int)
	for rows.Next() {
		var optionID int64
		var count int
		if err := rows.Scan(&optionID, &count); err != nil {
			return domain.PollTotals{}, nil, fmt.Errorf("failed to scan option count: %w", err)
		}
		perOption[optionID] = count
	}
	if err := rows.Err(); err != nil {
		return domain.PollTotals{}, nil, fmt.Errorf("failed to count option votes: %w", err)
	}

	return totals, perOption, nil
}

func (r *LedgerRepo) VotesByIdentity(ctx context.Context, pollID int64, identityIDs []int64) (map[int64]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT identity_id, option_id FROM votes
		WHERE poll_id = $1 AND identity_id = ANY($2)
	`, pollID, identityIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to read votes by identity: %w", err)
	}
	defer rows.Close()

	votes := make(map[int64]int64)
	for rows.Next() {
		var identityID, optionID int64
		if err := rows.Scan(&identityID, &optionID); err != nil {
			return nil, fmt.Errorf("failed to scan vote row: %w", err)
		}
		votes[identityID] = optionID
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read votes by identity: %w", err)
	}

	return votes, nil
}

func (r *LedgerRepo) LikesByIdentity(ctx context.Context, pollID int64, identityIDs []int64) (map[int64]struct{}, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT identity_id FROM poll_likes
		WHERE poll_id = $1 AND identity_id = ANY($2)
	`, pollID, identityIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to read likes by identity: %w", err)
	}
	defer rows.Close()

	likes := make(map[int64]struct{})
	for rows.Next() {
		var identityID int64
		if err := rows.Scan(&identityID); err != nil {
			return nil, fmt.Errorf("failed to scan like row: %w", err)
		}
		likes[identityID] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read likes by identity: %w", err)
	}

	return likes, nil
}

func (r *LedgerRepo) ApplyBatch(ctx context.Context, pollID int64, votes []domain.VoteOp, likes []domain.LikeOp) error {
	if len(votes) == 0 && len(likes) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	batch := &pgx.Batch{}
	for _, op := range votes {
		batch.Queue(`
			INSERT INTO votes (identity_id, poll_id, option_id)
			VALUES ($1, $2, $3)
			ON CONFLICT (identity_id, poll_id) DO UPDATE SET option_id = EXCLUDED.option_id
		`, op.IdentityID, pollID, op.OptionID)
	}
	for _, op := range likes {
		batch.Queue(`
			INSERT INTO poll_likes (identity_id, poll_id)
			VALUES ($1, $2)
			ON CONFLICT (identity_id, poll_id) DO NOTHING
		`, op.IdentityID, pollID)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to apply ledger batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit ledger batch: %w", err)
	}

	return nil
}

func (r *LedgerRepo) CallerMarks(ctx context.Context, identityID int64, pollIDs []int64) (map[int64]int64, map[int64]struct{}, error) {
	votes := make(map[int64]int64)
	likes := make(map[int64]struct{})
	if len(pollIDs) == 0 {
		return votes, likes, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT poll_id, option_id FROM votes
		WHERE identity_id = $1 AND poll_id = ANY($2)
	`, identityID, pollIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read caller votes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var pollID, optionID int64
		if err := rows.Scan(&pollID, &optionID); err != nil {
			return nil, nil, fmt.Errorf("failed to scan caller vote: %w", err)
		}
		votes[pollID] = optionID
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read caller votes: %w", err)
	}

	likeRows, err := r.pool.Query(ctx, `
		SELECT poll_id FROM poll_likes
		WHERE identity_id = $1 AND poll_id = ANY($2)
	`, identityID, pollIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read caller likes: %w", err)
	}
	defer likeRows.Close()
	for likeRows.Next() {
		var pollID int64
		if err := likeRows.Scan(&pollID); err != nil {
			return nil, nil, fmt.Errorf("failed to scan caller like: %w", err)
		}
		likes[pollID] = struct{}{}
	}
	if err := likeRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read caller likes: %w", err)
	}

	return votes, likes, nil
}
