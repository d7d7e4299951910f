package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anirudhp26/quickpoll/internal/domain"
)

// pollColumns must match the Scan order in scanPoll.
const pollColumns = `id, title, description, owner_id, booster, expires_in, active, created_at`

const optionColumns = `id, poll_id, text, created_at`

// PollRepo implements domain.PollRepository backed by PostgreSQL.
type PollRepo struct {
	pool *pgxpool.Pool
}

func NewPollRepo(pool *pgxpool.Pool) *PollRepo {
	return &PollRepo{pool: pool}
}

func scanPoll(row pgx.Row) (*domain.Poll, error) {
	var p domain.Poll
	err := row.Scan(&p.ID, &p.Title, &p.Description, &p.OwnerID, &p.Booster,
		&p.ExpiresIn, &p.Active, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PollRepo) Create(ctx context.Context, poll *domain.Poll, optionTexts []string) (*domain.Poll, []domain.Option, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	created, err := scanPoll(tx.QueryRow(ctx, `
		INSERT INTO polls (title, description, owner_id, booster, expires_in)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+pollColumns,
		poll.Title, poll.Description, poll.OwnerID, poll.Booster, poll.ExpiresIn))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to insert poll: %w", err)
	}

	options := make([]domain.Option, 0, len(optionTexts))
	for _, text := range optionTexts {
		var opt domain.Option
		err := tx.QueryRow(ctx, `
			INSERT INTO poll_options (poll_id, text)
			VALUES ($1, $2)
			RETURNING `+optionColumns,
			created.ID, text).Scan(&opt.ID, &opt.PollID, &opt.Text, &opt.CreatedAt)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to insert poll option: %w", err)
		}
		options = append(options, opt)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return created, options, nil
}

func (r *PollRepo) GetByID(ctx context.Context, id int64) (*domain.Poll, error) {
	poll, err := scanPoll(r.pool.QueryRow(ctx,
		`SELECT `+pollColumns+` FROM polls WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPollNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get poll by id: %w", err)
	}
	return poll, nil
}

func (r *PollRepo) List(ctx context.Context, active bool, offset, limit int) ([]domain.PollListItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.title, p.description, p.owner_id, p.booster, p.expires_in, p.active, p.created_at,
		       i.handle,
		       (SELECT count(*) FROM votes v WHERE v.poll_id = p.id) AS total_votes,
		       (SELECT count(*) FROM poll_likes l WHERE l.poll_id = p.id) AS total_likes
		FROM polls p
		JOIN identities i ON i.id = p.owner_id
		WHERE p.active = $1
		ORDER BY p.created_at DESC
		OFFSET $2 LIMIT $3
	`, active, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list polls: %w", err)
	}
	defer rows.Close()

	var items []domain.PollListItem
	for rows.Next() {
		var item domain.PollListItem
		err := rows.Scan(&item.ID, &item.Title, &item.Description, &item.OwnerID,
			&item.Booster, &item.ExpiresIn, &item.Active, &item.CreatedAt,
			&item.OwnerHandle, &item.TotalVotes, &item.TotalLikes)
		if err != nil {
			return nil, fmt.Errorf("failed to scan poll listing row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list polls: %w", err)
	}

	return items, nil
}

func (r *PollRepo) Options(ctx context.Context, pollID int64) ([]domain.Option, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+optionColumns+` FROM poll_options WHERE poll_id = $1 ORDER BY id`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to list poll options: %w", err)
	}
	defer rows.Close()

	var options []domain.Option
	for rows.Next() {
		var opt domain.Option
		if err := rows.Scan(&opt.ID, &opt.PollID, &opt.Text, &opt.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan poll option: %w", err)
		}
		options = append(options, opt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list poll options: %w", err)
	}

	return options, nil
}

func (r *PollRepo) GetOption(ctx context.Context, optionID, pollID int64) (*domain.Option, error) {
	var opt domain.Option
	err := r.pool.QueryRow(ctx,
		`SELECT `+optionColumns+` FROM poll_options WHERE id = $1 AND poll_id = $2`,
		optionID, pollID).Scan(&opt.ID, &opt.PollID, &opt.Text, &opt.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get poll option: %w", err)
	}
	return &opt, nil
}

func (r *PollRepo) Deactivate(ctx context.Context, id int64) error {
	var deactivated int64
	err := r.pool.QueryRow(ctx,
		`UPDATE polls SET active = FALSE WHERE id = $1 RETURNING id`, id).Scan(&deactivated)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrPollNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to deactivate poll: %w", err)
	}
	return nil
}

func (r *PollRepo) ListBoostedActive(ctx context.Context, limit int) ([]domain.Poll, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+pollColumns+` FROM polls
		WHERE active AND booster
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list boosted polls: %w", err)
	}
	defer rows.Close()

	return collectPolls(rows)
}

func (r *PollRepo) ListExpirable(ctx context.Context) ([]domain.Poll, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+pollColumns+` FROM polls
		WHERE active AND expires_in IS NOT NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list expirable polls: %w", err)
	}
	defer rows.Close()

	return collectPolls(rows)
}

func collectPolls(rows pgx.Rows) ([]domain.Poll, error) {
	var polls []domain.Poll
	for rows.Next() {
		var p domain.Poll
		err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.OwnerID, &p.Booster,
			&p.ExpiresIn, &p.Active, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan poll: %w", err)
		}
		polls = append(polls, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read polls: %w", err)
	}
	return polls, nil
}

func (r *PollRepo) DeactivateAll(ctx context.Context, ids []int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`UPDATE polls SET active = FALSE WHERE id = ANY($1) AND active RETURNING id`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to deactivate polls: %w", err)
	}
	defer rows.Close()

	var transitioned []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan deactivated poll id: %w", err)
		}
		transitioned = append(transitioned, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to deactivate polls: %w", err)
	}

	return transitioned, nil
}
