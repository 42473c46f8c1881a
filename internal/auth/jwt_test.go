package auth_test

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/dinehub/internal/auth"
	"github.com/geocoder89/dinehub/internal/domain/principal"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestTokenManager_IssueAndVerify(t *testing.T) {
	clock := newClock()
	m := auth.NewTokenManager("test-secret", time.Hour).WithClock(clock.Now)

	token, expiresAt, err := m.Issue("user-123", principal.KindUser)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, clock.Now().Add(time.Hour), expiresAt)

	claims, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.PrincipalID())
	assert.Equal(t, principal.KindUser, claims.Kind)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenManager_ExpiredAfterTTL(t *testing.T) {
	clock := newClock()
	m := auth.NewTokenManager("test-secret", time.Second).WithClock(clock.Now)

	token, _, err := m.Issue("user-123", principal.KindUser)
	require.NoError(t, err)

	_, err = m.Verify(token)
	require.NoError(t, err, "token must be accepted immediately")

	clock.Advance(2 * time.Second)

	_, err = m.Verify(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrExpired)
	assert.NotErrorIs(t, err, auth.ErrBadSignature)
}

func TestTokenManager_BadSignature(t *testing.T) {
	issuer := auth.NewTokenManager("secret-a", time.Hour)
	verifier := auth.NewTokenManager("secret-b", time.Hour)

	token, _, err := issuer.Issue("user-123", principal.KindUser)
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, auth.ErrBadSignature)
}

func TestTokenManager_TamperedPayload(t *testing.T) {
	m := auth.NewTokenManager("test-secret", time.Hour)

	token, _, err := m.Issue("user-123", principal.KindUser)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"someone-else","kind":"user","exp":4102444800}`))

	_, err = m.Verify(strings.Join(parts, "."))
	assert.ErrorIs(t, err, auth.ErrBadSignature)
}

func TestTokenManager_RejectsOtherAlgorithms(t *testing.T) {
	m := auth.NewTokenManager("test-secret", time.Hour)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "user-123",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.Verify(raw)
	assert.ErrorIs(t, err, auth.ErrBadSignature)
}

func TestTokenManager_Malformed(t *testing.T) {
	m := auth.NewTokenManager("test-secret", time.Hour)

	for _, raw := range []string{"", "garbage", "a.b.c", "a.b"} {
		_, err := m.Verify(raw)
		assert.ErrorIs(t, err, auth.ErrMalformed, "input %q", raw)
	}
}

func TestTokenManager_MissingSubjectIsMalformed(t *testing.T) {
	m := auth.NewTokenManager("test-secret", time.Hour)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	raw, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = m.Verify(raw)
	assert.ErrorIs(t, err, auth.ErrMalformed)
}

func TestTokenManager_MissingExpiryIsMalformed(t *testing.T) {
	m := auth.NewTokenManager("test-secret", time.Hour)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "user-123"})
	raw, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = m.Verify(raw)
	assert.ErrorIs(t, err, auth.ErrMalformed)
}
