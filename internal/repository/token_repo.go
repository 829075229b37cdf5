package repository

import (
	"context"
	"time"

	"github.com/user/adarchive-ingest/internal/entity"
)

// TokenRepository manages the shared pool of archive API tokens. The pool is
// contended by many concurrent callers, so Lease must be exclusive at the row
// level without ever blocking on a row another leaser is mid-selecting.
type TokenRepository interface {
	// Lease atomically selects the least-recently-used leasable token,
	// stamps it used and returns it. Returns entity.ErrNoLeasableToken
	// when the pool is exhausted.
	Lease(ctx context.Context) (*entity.Token, error)
	// Cooldown suspends a token for the given duration. Idempotent;
	// concurrent callers may race and the last write wins.
	Cooldown(ctx context.Context, id int64, d time.Duration) error
	// Invalidate permanently retires a token. Invalid tokens are never
	// leased again.
	Invalidate(ctx context.Context, id int64) error
	// CountLeasable returns how many tokens could be leased right now.
	CountLeasable(ctx context.Context) (int, error)
}
