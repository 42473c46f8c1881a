package principal

import (
	"errors"
	"strings"
	"time"
)

// Kind tags which variant a Principal is.
type Kind string

const (
	KindUser     Kind = "user"
	KindMerchant Kind = "merchant"
)

// LookupOrder is the fixed order in which variants are searched when only an
// email or id is known. Users win ties.
var LookupOrder = []Kind{KindUser, KindMerchant}

var (
	ErrNotFound   = errors.New("principal not found")
	ErrEmailTaken = errors.New("email already in use")
)

func (k Kind) Valid() bool {
	return k == KindUser || k == KindMerchant
}

type Address struct {
	State           string `json:"state" validate:"required"`
	City            string `json:"city" validate:"required"`
	PostalCode      string `json:"postalCode" validate:"required"`
	StreetName      string `json:"streetName" validate:"required"`
	StreetNumber    string `json:"streetNumber" validate:"required"`
	ApartmentNumber string `json:"apartmentNumber,omitempty"`
}

type UserProfile struct {
	Name        string `json:"name" validate:"required"`
	Surname     string `json:"surname" validate:"required"`
	Gender      string `json:"gender" validate:"required,oneof=male female"`
	DateOfBirth string `json:"dateOfBirth" validate:"required"`
	Address
}

type MerchantProfile struct {
	RestaurantName string   `json:"restaurantName" validate:"required"`
	Cuisine        string   `json:"cuisine" validate:"required"`
	Rating         *float64 `json:"rating,omitempty" validate:"omitempty,min=0,max=5"`
	Address
}

// PasswordChange is a plaintext password waiting to be hashed by the
// credential store. It never leaves the process.
type PasswordChange struct {
	Password        string `json:"password" validate:"required,min=8,max=72"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

type Principal struct {
	ID                  string     `json:"id"`
	Kind                Kind       `json:"kind"`
	Email               string     `json:"email" validate:"required,email"`
	PasswordHash        string     `json:"-"`
	PasswordChangedAt   *time.Time `json:"passwordChangedAt,omitempty"`
	ResetTokenHash      *string    `json:"-"`
	ResetTokenExpiresAt *time.Time `json:"-"`

	// profiles are validated per kind by the credential store
	User     *UserProfile     `json:"user,omitempty" validate:"-"`
	Merchant *MerchantProfile `json:"restaurant,omitempty" validate:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	pending *PasswordChange
}

// SetPassword stages a new plaintext password. It is validated and hashed
// on the next save.
func (p *Principal) SetPassword(password, confirm string) {
	p.pending = &PasswordChange{Password: password, PasswordConfirm: confirm}
}

func (p *Principal) PendingPassword() (*PasswordChange, bool) {
	return p.pending, p.pending != nil
}

func (p *Principal) DiscardPendingPassword() {
	p.pending = nil
}

// ApplyPasswordHash replaces the stored hash with one computed from the
// pending password and stamps the change time.
func (p *Principal) ApplyPasswordHash(hash string, changedAt time.Time) {
	p.PasswordHash = hash
	p.PasswordChangedAt = &changedAt
	p.pending = nil
}

// ChangedPasswordAfter reports whether the password was changed after t,
// at one second resolution to match token timestamps.
func (p *Principal) ChangedPasswordAfter(t time.Time) bool {
	if p.PasswordChangedAt == nil {
		return false
	}
	return p.PasswordChangedAt.Unix() > t.Unix()
}

// SetResetToken and ClearResetToken keep both reset fields in step.
func (p *Principal) SetResetToken(hash string, expiresAt time.Time) {
	p.ResetTokenHash = &hash
	p.ResetTokenExpiresAt = &expiresAt
}

func (p *Principal) ClearResetToken() {
	p.ResetTokenHash = nil
	p.ResetTokenExpiresAt = nil
}

func (p *Principal) HasResetToken() bool {
	return p.ResetTokenHash != nil && p.ResetTokenExpiresAt != nil
}

// Clone returns a deep copy. The staged password is not copied.
func (p *Principal) Clone() *Principal {
	c := *p
	c.pending = nil

	if p.PasswordChangedAt != nil {
		t := *p.PasswordChangedAt
		c.PasswordChangedAt = &t
	}
	if p.ResetTokenHash != nil {
		h := *p.ResetTokenHash
		c.ResetTokenHash = &h
	}
	if p.ResetTokenExpiresAt != nil {
		t := *p.ResetTokenExpiresAt
		c.ResetTokenExpiresAt = &t
	}
	if p.User != nil {
		u := *p.User
		c.User = &u
	}
	if p.Merchant != nil {
		m := *p.Merchant
		if p.Merchant.Rating != nil {
			r := *p.Merchant.Rating
			m.Rating = &r
		}
		c.Merchant = &m
	}

	return &c
}

// SignupAttrs is everything needed to create a principal.
type SignupAttrs struct {
	Kind            Kind
	Email           string
	Password        string
	PasswordConfirm string
	User            *UserProfile
	Merchant        *MerchantProfile
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
