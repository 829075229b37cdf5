package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/adarchive-ingest/internal/entity"
)

// TokenRepoImpl provides the PostgreSQL-backed implementation of the
// TokenRepository interface. The pool is shared across processes, so all
// selection happens under row locks with skip-over semantics.
type TokenRepoImpl struct {
	db *pgxpool.Pool
}

// NewTokenRepo creates a new instance of TokenRepoImpl.
func NewTokenRepo(db *pgxpool.Pool) *TokenRepoImpl {
	return &TokenRepoImpl{db: db}
}

const leasableWhere = `
	(status = 'ACTIVE' AND (cooldown_until IS NULL OR cooldown_until < NOW()))
	OR (status = 'COOLDOWN' AND cooldown_until < NOW())`

// Lease selects the least-recently-used leasable token, promotes it to
// ACTIVE and stamps it used, all in one transaction. Rows another leaser is
// mid-selecting are skipped rather than waited on.
func (r *TokenRepoImpl) Lease(ctx context.Context) (*entity.Token, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var t entity.Token
	err = tx.QueryRow(ctx, `
		SELECT id, secret
		FROM api_tokens
		WHERE `+leasableWhere+`
		ORDER BY last_used_at ASC NULLS FIRST, id ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`,
	).Scan(&t.ID, &t.Secret)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entity.ErrNoLeasableToken
		}
		return nil, err
	}

	now := time.Now()
	_, err = tx.Exec(ctx, `
		UPDATE api_tokens
		SET status = 'ACTIVE', cooldown_until = NULL, last_used_at = $2
		WHERE id = $1`,
		t.ID, now)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	t.Status = entity.TokenActive
	t.LastUsedAt = &now
	return &t, nil
}

// Cooldown suspends a token until now + d. Last write wins when callers race.
func (r *TokenRepoImpl) Cooldown(ctx context.Context, id int64, d time.Duration) error {
	_, err := r.db.Exec(ctx, `
		UPDATE api_tokens
		SET status = 'COOLDOWN', cooldown_until = $2
		WHERE id = $1 AND status <> 'INVALID'`,
		id, time.Now().Add(d))
	return err
}

// Invalidate permanently retires a token.
func (r *TokenRepoImpl) Invalidate(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE api_tokens
		SET status = 'INVALID', cooldown_until = NULL
		WHERE id = $1`,
		id)
	return err
}

// CountLeasable reports how many tokens could be leased right now.
func (r *TokenRepoImpl) CountLeasable(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM api_tokens WHERE `+leasableWhere,
	).Scan(&n)
	return n, err
}
