package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/samber/oops"
)

const (
	ResetTokenTTL   = 10 * time.Minute
	resetTokenBytes = 32
)

// ResetToken is a freshly drawn reset secret. Raw goes to the user, Hash is
// the only form that may be persisted.
type ResetToken struct {
	Raw       string
	Hash      string
	ExpiresAt time.Time
}

func GenerateResetToken(now time.Time, ttl time.Duration) (ResetToken, error) {
	if ttl <= 0 {
		ttl = ResetTokenTTL
	}

	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return ResetToken{}, oops.In("security").Code("entropy_failed").Wrap(err)
	}

	raw := hex.EncodeToString(buf)

	return ResetToken{
		Raw:       raw,
		Hash:      HashResetToken(raw),
		ExpiresAt: now.Add(ttl),
	}, nil
}

// HashResetToken is the SHA-256 hex digest of the raw hex token.
func HashResetToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
