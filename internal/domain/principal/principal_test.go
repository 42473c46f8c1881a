package principal_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/geocoder89/dinehub/internal/domain/principal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResetTokenFieldsMoveTogether(t *testing.T) {
	p := &principal.Principal{}
	assert.False(t, p.HasResetToken())

	p.SetResetToken("digest", time.Now().Add(10*time.Minute))
	assert.True(t, p.HasResetToken())

	p.ClearResetToken()
	assert.Nil(t, p.ResetTokenHash)
	assert.Nil(t, p.ResetTokenExpiresAt)
}

func TestPendingPasswordLifecycle(t *testing.T) {
	p := &principal.Principal{}
	_, ok := p.PendingPassword()
	assert.False(t, ok)

	p.SetPassword("secret12", "secret12")
	change, ok := p.PendingPassword()
	require.True(t, ok)
	assert.Equal(t, "secret12", change.Password)

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	p.ApplyPasswordHash("$2a$12$hash", at)

	_, ok = p.PendingPassword()
	assert.False(t, ok)
	assert.Equal(t, "$2a$12$hash", p.PasswordHash)
	require.NotNil(t, p.PasswordChangedAt)
	assert.Equal(t, at, *p.PasswordChangedAt)
}

func TestChangedPasswordAfter(t *testing.T) {
	changed := time.Date(2026, 3, 1, 10, 0, 5, 0, time.UTC)
	p := &principal.Principal{PasswordChangedAt: &changed}

	assert.True(t, p.ChangedPasswordAfter(changed.Add(-2*time.Second)))
	assert.False(t, p.ChangedPasswordAfter(changed))
	assert.False(t, p.ChangedPasswordAfter(changed.Add(500*time.Millisecond)))

	fresh := &principal.Principal{}
	assert.False(t, fresh.ChangedPasswordAfter(changed))
}

func TestCloneIsDeep(t *testing.T) {
	rating := 4.5
	p := &principal.Principal{
		ID:       "m-1",
		Kind:     principal.KindMerchant,
		Merchant: &principal.MerchantProfile{RestaurantName: "Bistro", Rating: &rating},
	}
	p.SetResetToken("digest", time.Now())
	p.SetPassword("secret12", "secret12")

	c := p.Clone()
	*c.Merchant.Rating = 1
	c.Merchant.RestaurantName = "Changed"
	*c.ResetTokenHash = "other"

	assert.Equal(t, 4.5, *p.Merchant.Rating)
	assert.Equal(t, "Bistro", p.Merchant.RestaurantName)
	assert.Equal(t, "digest", *p.ResetTokenHash)

	_, pending := c.PendingPassword()
	assert.False(t, pending)
}

func TestJSONNeverExposesSecrets(t *testing.T) {
	p := &principal.Principal{
		ID:           "u-1",
		Kind:         principal.KindUser,
		Email:        "a@b.com",
		PasswordHash: "$2a$12$secret",
	}
	p.SetResetToken("digest", time.Now())

	b, err := json.Marshal(p)
	require.NoError(t, err)

	body := string(b)
	assert.NotContains(t, body, "secret")
	assert.NotContains(t, body, "digest")
	assert.Contains(t, body, `"email":"a@b.com"`)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@b.com", principal.NormalizeEmail("  A@B.Com "))
}

func TestSignupMerchantRequestAttrs(t *testing.T) {
	rating := 3.0
	attrs := principal.SignupMerchantRequest{
		Email:          "chef@bistro.io",
		Password:       "secret12",
		RestaurantName: "Bistro",
		Cuisine:        "french",
		Rating:         &rating,
		City:           "Lyon",
	}.Attrs()

	assert.Equal(t, principal.KindMerchant, attrs.Kind)
	require.NotNil(t, attrs.Merchant)
	assert.Nil(t, attrs.User)
	assert.Equal(t, "Lyon", attrs.Merchant.City)
	assert.Equal(t, &rating, attrs.Merchant.Rating)
}
