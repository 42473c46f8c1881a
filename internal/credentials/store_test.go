package credentials_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/dinehub/internal/credentials"
	"github.com/geocoder89/dinehub/internal/domain/principal"
	"github.com/geocoder89/dinehub/internal/repo/memory"
	"github.com/geocoder89/dinehub/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type countingHasher struct {
	inner *security.BcryptHasher
	calls int
	err   error
}

func (h *countingHasher) Hash(plain string) (string, error) {
	h.calls++
	if h.err != nil {
		return "", h.err
	}
	return h.inner.Hash(plain)
}

func newStore(t *testing.T) (*credentials.Store, *countingHasher, *memory.PrincipalsRepo) {
	t.Helper()
	repo := memory.NewPrincipalsRepo()
	hasher := &countingHasher{inner: security.NewBcryptHasher(bcrypt.MinCost)}
	return credentials.NewStore(repo, hasher), hasher, repo
}

func userAttrs(email string) principal.SignupAttrs {
	return principal.SignupAttrs{
		Kind:            principal.KindUser,
		Email:           email,
		Password:        "secret12",
		PasswordConfirm: "secret12",
		User: &principal.UserProfile{
			Name:        "Ada",
			Surname:     "Lovelace",
			Gender:      "female",
			DateOfBirth: "1815-12-10",
			Address: principal.Address{
				State: "Greater London", City: "London", PostalCode: "W1", StreetName: "Baker St", StreetNumber: "221",
			},
		},
	}
}

func merchantAttrs(email string) principal.SignupAttrs {
	return principal.SignupAttrs{
		Kind:            principal.KindMerchant,
		Email:           email,
		Password:        "secret12",
		PasswordConfirm: "secret12",
		Merchant: &principal.MerchantProfile{
			RestaurantName: "Bistro",
			Cuisine:        "french",
			Address: principal.Address{
				State: "Rhone", City: "Lyon", PostalCode: "69001", StreetName: "Rue Neuve", StreetNumber: "3",
			},
		},
	}
}

func fieldNames(err error) []string {
	var verr *credentials.ValidationError
	if !errors.As(err, &verr) {
		return nil
	}
	out := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		out = append(out, f.Field)
	}
	return out
}

func TestStore_CreateHashesAndNormalizes(t *testing.T) {
	store, hasher, _ := newStore(t)

	p, err := store.Create(context.Background(), userAttrs("  Ada@Example.COM "))
	require.NoError(t, err)

	assert.Equal(t, "ada@example.com", p.Email)
	assert.NotEmpty(t, p.ID)
	assert.NotEqual(t, "secret12", p.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte("secret12")))
	assert.Nil(t, p.PasswordChangedAt, "creation is not a password change")
	assert.Equal(t, 1, hasher.calls)

	_, pending := p.PendingPassword()
	assert.False(t, pending)
}

func TestStore_CreateValidationRunsBeforeHashing(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*principal.SignupAttrs)
		field  string
	}{
		{"bad email", func(a *principal.SignupAttrs) { a.Email = "not-an-email" }, "email"},
		{"short password", func(a *principal.SignupAttrs) { a.Password, a.PasswordConfirm = "short", "short" }, "password"},
		{"confirmation mismatch", func(a *principal.SignupAttrs) { a.PasswordConfirm = "secret13" }, "passwordConfirm"},
		{"bad gender", func(a *principal.SignupAttrs) { a.User.Gender = "other" }, "gender"},
		{"missing city", func(a *principal.SignupAttrs) { a.User.City = "" }, "city"},
		{"missing profile", func(a *principal.SignupAttrs) { a.User = nil }, "user"},
		{"unknown kind", func(a *principal.SignupAttrs) { a.Kind = "admin" }, "kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, hasher, _ := newStore(t)
			attrs := userAttrs("a@b.com")
			tt.mutate(&attrs)

			_, err := store.Create(context.Background(), attrs)

			var verr *credentials.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, fieldNames(err), tt.field)
			assert.Equal(t, 0, hasher.calls, "no hash may be computed for invalid input")
		})
	}
}

func TestStore_CreateRejectsEmailFromOtherKind(t *testing.T) {
	store, hasher, _ := newStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, userAttrs("shared@b.com"))
	require.NoError(t, err)

	_, err = store.Create(ctx, merchantAttrs("SHARED@b.com"))
	assert.ErrorIs(t, err, principal.ErrEmailTaken)
	assert.Equal(t, 1, hasher.calls)
}

func TestStore_CreateOverlongPasswordIsValidation(t *testing.T) {
	store, _, _ := newStore(t)

	attrs := userAttrs("a@b.com")
	long := strings.Repeat("é", 40)
	attrs.Password, attrs.PasswordConfirm = long, long

	_, err := store.Create(context.Background(), attrs)

	var verr *credentials.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "password", verr.Fields[0].Field)
}

func TestStore_CreateHashFailure(t *testing.T) {
	store, hasher, repo := newStore(t)
	hasher.err = errors.New("entropy exhausted")

	_, err := store.Create(context.Background(), userAttrs("a@b.com"))
	assert.ErrorIs(t, err, credentials.ErrHash)

	_, err = repo.FindByEmail(context.Background(), principal.KindUser, "a@b.com")
	assert.ErrorIs(t, err, principal.ErrNotFound)
}

func TestStore_FindDispatchesAcrossKinds(t *testing.T) {
	store, _, _ := newStore(t)
	ctx := context.Background()

	m, err := store.Create(ctx, merchantAttrs("chef@bistro.io"))
	require.NoError(t, err)

	got, err := store.FindByEmail(ctx, "CHEF@bistro.io")
	require.NoError(t, err)
	assert.Equal(t, principal.KindMerchant, got.Kind)

	got, err = store.FindByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)

	_, err = store.FindByEmailKind(ctx, principal.KindUser, "chef@bistro.io")
	assert.ErrorIs(t, err, principal.ErrNotFound)

	_, err = store.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, principal.ErrNotFound)
}

func TestStore_SaveRehashesStagedPassword(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store, _, _ := newStore(t)
	store.WithClock(func() time.Time { return now })
	ctx := context.Background()

	p, err := store.Create(ctx, userAttrs("a@b.com"))
	require.NoError(t, err)
	oldHash := p.PasswordHash

	p.SetPassword("newsecret1", "newsecret1")
	require.NoError(t, store.Save(ctx, p, credentials.SaveOptions{}))

	got, err := store.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.NotEqual(t, oldHash, got.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(got.PasswordHash), []byte("newsecret1")))
	require.NotNil(t, got.PasswordChangedAt)
	assert.Equal(t, now.Add(-time.Second), *got.PasswordChangedAt)
}

func TestStore_SaveSkipValidationAllowsPartialRecords(t *testing.T) {
	store, _, repo := newStore(t)
	ctx := context.Background()

	p, err := store.Create(ctx, userAttrs("a@b.com"))
	require.NoError(t, err)

	// legacy record with a profile that no longer passes validation
	p.User.City = ""
	require.NoError(t, repo.Update(ctx, p))

	p.SetPassword("newsecret1", "newsecret1")
	err = store.Save(ctx, p, credentials.SaveOptions{})
	assert.Contains(t, fieldNames(err), "city")

	p.SetPassword("newsecret1", "newsecret1")
	require.NoError(t, store.Save(ctx, p, credentials.SaveOptions{SkipValidation: true}))

	got, err := store.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(got.PasswordHash), []byte("newsecret1")))
}

func TestStore_ResetTokenClaimedOnce(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store, _, _ := newStore(t)
	store.WithClock(func() time.Time { return now })
	ctx := context.Background()

	m, err := store.Create(ctx, merchantAttrs("chef@bistro.io"))
	require.NoError(t, err)

	require.NoError(t, store.SetResetToken(ctx, m, "digest", now.Add(10*time.Minute)))
	assert.True(t, m.HasResetToken(), "the caller's copy reflects the write")

	got, err := store.ClaimResetToken(ctx, "digest", now)
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, principal.KindMerchant, got.Kind)
	assert.False(t, got.HasResetToken())

	_, err = store.ClaimResetToken(ctx, "digest", now)
	assert.ErrorIs(t, err, principal.ErrNotFound)
}

func TestStore_SaveLeavesResetFieldsAlone(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store, _, _ := newStore(t)
	store.WithClock(func() time.Time { return now })
	ctx := context.Background()

	p, err := store.Create(ctx, userAttrs("a@b.com"))
	require.NoError(t, err)
	stale := p.Clone()

	require.NoError(t, store.SetResetToken(ctx, p, "digest", now.Add(10*time.Minute)))

	// a copy read before the token was issued must not wipe it
	stale.SetPassword("newsecret1", "newsecret1")
	require.NoError(t, store.Save(ctx, stale, credentials.SaveOptions{}))

	got, err := store.ClaimResetToken(ctx, "digest", now)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(got.PasswordHash), []byte("newsecret1")))
}

func TestStore_SetResetTokenUnknownPrincipal(t *testing.T) {
	store, _, _ := newStore(t)

	p := &principal.Principal{ID: "ghost", Kind: principal.KindUser}
	err := store.SetResetToken(context.Background(), p, "digest", time.Now().Add(time.Minute))
	assert.ErrorIs(t, err, principal.ErrNotFound)
	assert.False(t, p.HasResetToken())
}

func TestStore_SaveSkipValidationStillChecksStagedPassword(t *testing.T) {
	store, _, _ := newStore(t)
	ctx := context.Background()

	p, err := store.Create(ctx, userAttrs("a@b.com"))
	require.NoError(t, err)

	p.SetPassword("short", "short")
	err = store.Save(ctx, p, credentials.SaveOptions{SkipValidation: true})
	assert.Contains(t, fieldNames(err), "password")
}

func TestStore_SaveUnknownPrincipal(t *testing.T) {
	store, _, _ := newStore(t)

	p := &principal.Principal{ID: "ghost", Kind: principal.KindUser, Email: "g@b.com", PasswordHash: "h"}
	err := store.Save(context.Background(), p, credentials.SaveOptions{SkipValidation: true})
	assert.ErrorIs(t, err, principal.ErrNotFound)
}
