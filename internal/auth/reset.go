package auth

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/dinehub/internal/domain/principal"
	"github.com/geocoder89/dinehub/internal/security"
	"github.com/samber/oops"
)

var ErrResetTokenInvalid = errors.New("reset token invalid or expired")

// ResetClaimer atomically clears a live reset digest and returns its holder.
type ResetClaimer interface {
	ClaimResetToken(ctx context.Context, digest string, now time.Time) (*principal.Principal, error)
}

// ResetTokens draws reset secrets and spends them. Only digests ever reach
// the store.
type ResetTokens struct {
	store ResetClaimer
	ttl   time.Duration
	now   func() time.Time
}

func NewResetTokens(store ResetClaimer, ttl time.Duration) *ResetTokens {
	if ttl <= 0 {
		ttl = security.ResetTokenTTL
	}
	return &ResetTokens{store: store, ttl: ttl, now: time.Now}
}

func (r *ResetTokens) WithClock(now func() time.Time) *ResetTokens {
	r.now = now
	return r
}

func (r *ResetTokens) TTL() time.Duration { return r.ttl }

func (r *ResetTokens) Generate() (security.ResetToken, error) {
	return security.GenerateResetToken(r.now().UTC(), r.ttl)
}

// Consume spends raw: the holder's reset fields are cleared in the same
// store step that finds it, so a token admits exactly one caller even when
// requests overlap. Expiry must be strictly in the future.
func (r *ResetTokens) Consume(ctx context.Context, raw string) (*principal.Principal, error) {
	if raw == "" {
		return nil, ErrResetTokenInvalid
	}

	p, err := r.store.ClaimResetToken(ctx, security.HashResetToken(raw), r.now().UTC())
	if err != nil {
		if errors.Is(err, principal.ErrNotFound) {
			return nil, ErrResetTokenInvalid
		}
		return nil, oops.In("auth").With("op", "reset.consume").Wrap(err)
	}

	return p, nil
}

// Revoke withdraws digest if it is still live. Nothing else on the record
// is written.
func (r *ResetTokens) Revoke(ctx context.Context, digest string) error {
	_, err := r.store.ClaimResetToken(ctx, digest, r.now().UTC())
	if err != nil && !errors.Is(err, principal.ErrNotFound) {
		return oops.In("auth").With("op", "reset.revoke").Wrap(err)
	}
	return nil
}
