package entity

import (
	"errors"
	"time"
)

// TokenStatus is the lifecycle state of an API access token.
type TokenStatus string

const (
	TokenActive   TokenStatus = "ACTIVE"
	TokenCooldown TokenStatus = "COOLDOWN"
	TokenInvalid  TokenStatus = "INVALID"
)

// ErrNoLeasableToken is returned when every token in the pool is either
// invalid or still cooling down. Callers must treat it as a hard stop.
var ErrNoLeasableToken = errors.New("no leasable token in pool")

// Token mirrors the `api_tokens` PostgreSQL table schema.
type Token struct {
	ID            int64
	Secret        string
	Status        TokenStatus
	CooldownUntil *time.Time
	LastUsedAt    *time.Time
}

// Leasable reports whether the token may be handed out at the given instant.
// A cooled-down token whose window has expired is leasable again; an invalid
// token never is.
func (t *Token) Leasable(now time.Time) bool {
	switch t.Status {
	case TokenActive:
		return t.CooldownUntil == nil || t.CooldownUntil.Before(now)
	case TokenCooldown:
		return t.CooldownUntil != nil && t.CooldownUntil.Before(now)
	default:
		return false
	}
}
