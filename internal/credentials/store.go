// Package credentials persists principals of both kinds behind one dispatch.
// Writes run an explicit pipeline: validate, then hash, then persist.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/dinehub/internal/domain/principal"
	"github.com/geocoder89/dinehub/internal/security"
	"github.com/google/uuid"
)

var ErrHash = errors.New("password hashing failed")

// Repository is the per-kind persistence contract. Insert must enforce email
// uniqueness across both kinds atomically and report ErrEmailTaken.
//
// Reset fields are written only by SetResetToken and ClaimResetToken; Update
// leaves them as stored. ClaimResetToken clears a digest live at now and
// returns its holder in one atomic step, reporting ErrNotFound to every
// caller but the first.
type Repository interface {
	FindByEmail(ctx context.Context, kind principal.Kind, email string) (*principal.Principal, error)
	FindByID(ctx context.Context, kind principal.Kind, id string) (*principal.Principal, error)
	Insert(ctx context.Context, p *principal.Principal) error
	Update(ctx context.Context, p *principal.Principal) error
	SetResetToken(ctx context.Context, kind principal.Kind, id, digest string, expiresAt, now time.Time) error
	ClaimResetToken(ctx context.Context, kind principal.Kind, digest string, now time.Time) (*principal.Principal, error)
}

type Hasher interface {
	Hash(plain string) (string, error)
}

type SaveOptions struct {
	// SkipValidation persists password changes on records whose profile may
	// predate the current rules.
	SkipValidation bool
}

type Store struct {
	repo      Repository
	hasher    Hasher
	validator *Validator
	now       func() time.Time
}

func NewStore(repo Repository, hasher Hasher) *Store {
	return &Store{
		repo:      repo,
		hasher:    hasher,
		validator: NewValidator(),
		now:       time.Now,
	}
}

func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*principal.Principal, error) {
	email = principal.NormalizeEmail(email)
	return s.dispatch(func(kind principal.Kind) (*principal.Principal, error) {
		return s.repo.FindByEmail(ctx, kind, email)
	})
}

func (s *Store) FindByEmailKind(ctx context.Context, kind principal.Kind, email string) (*principal.Principal, error) {
	return s.repo.FindByEmail(ctx, kind, principal.NormalizeEmail(email))
}

func (s *Store) FindByID(ctx context.Context, id string) (*principal.Principal, error) {
	return s.dispatch(func(kind principal.Kind) (*principal.Principal, error) {
		return s.repo.FindByID(ctx, kind, id)
	})
}

// ClaimResetToken spends a live digest held by either kind.
func (s *Store) ClaimResetToken(ctx context.Context, digest string, now time.Time) (*principal.Principal, error) {
	return s.dispatch(func(kind principal.Kind) (*principal.Principal, error) {
		return s.repo.ClaimResetToken(ctx, kind, digest, now)
	})
}

// SetResetToken stores a reset digest on p without touching its other
// fields, so it cannot clobber a concurrent password change.
func (s *Store) SetResetToken(ctx context.Context, p *principal.Principal, digest string, expiresAt time.Time) error {
	now := s.now().UTC()
	if err := s.repo.SetResetToken(ctx, p.Kind, p.ID, digest, expiresAt, now); err != nil {
		return err
	}

	p.SetResetToken(digest, expiresAt)
	p.UpdatedAt = now
	return nil
}

// dispatch runs find against each kind in LookupOrder and returns the first
// hit. Errors other than ErrNotFound stop the search.
func (s *Store) dispatch(find func(principal.Kind) (*principal.Principal, error)) (*principal.Principal, error) {
	for _, kind := range principal.LookupOrder {
		p, err := find(kind)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, principal.ErrNotFound) {
			return nil, err
		}
	}
	return nil, principal.ErrNotFound
}

// Create validates attrs, rejects an email already held by either kind, and
// only then hashes and inserts. The repository's unique constraint settles
// races between concurrent creates.
func (s *Store) Create(ctx context.Context, attrs principal.SignupAttrs) (*principal.Principal, error) {
	now := s.now().UTC()

	p := &principal.Principal{
		ID:        uuid.NewString(),
		Kind:      attrs.Kind,
		Email:     principal.NormalizeEmail(attrs.Email),
		CreatedAt: now,
		UpdatedAt: now,
	}
	switch attrs.Kind {
	case principal.KindUser:
		p.User = attrs.User
	case principal.KindMerchant:
		p.Merchant = attrs.Merchant
	}
	p.SetPassword(attrs.Password, attrs.PasswordConfirm)

	if err := s.validator.Principal(p); err != nil {
		return nil, err
	}

	existing, err := s.FindByEmail(ctx, p.Email)
	switch {
	case err == nil && existing != nil:
		return nil, principal.ErrEmailTaken
	case err != nil && !errors.Is(err, principal.ErrNotFound):
		return nil, err
	}

	if err := s.hashPending(p); err != nil {
		return nil, err
	}
	// a new account has not changed its password yet
	p.PasswordChangedAt = nil

	if err := s.repo.Insert(ctx, p); err != nil {
		return nil, err
	}

	return p, nil
}

// Save persists the record's password and profile. A staged password is
// hashed and stamped here, so callers never touch PasswordHash directly.
func (s *Store) Save(ctx context.Context, p *principal.Principal, opts SaveOptions) error {
	if !opts.SkipValidation {
		if err := s.validator.Principal(p); err != nil {
			return err
		}
	} else if _, pending := p.PendingPassword(); pending {
		if err := s.validator.Password(p); err != nil {
			return err
		}
	}

	if err := s.hashPending(p); err != nil {
		return err
	}

	if p.PasswordHash == "" {
		return fmt.Errorf("principal %s has no password hash", p.ID)
	}

	p.UpdatedAt = s.now().UTC()

	return s.repo.Update(ctx, p)
}

func (s *Store) hashPending(p *principal.Principal) error {
	change, ok := p.PendingPassword()
	if !ok {
		return nil
	}

	hash, err := s.hasher.Hash(change.Password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooLong) {
			return &ValidationError{Fields: tooLongField()}
		}
		return fmt.Errorf("%w: %w", ErrHash, err)
	}

	// stamped a second early so a token issued right after the change is
	// not treated as older than it
	p.ApplyPasswordHash(hash, s.now().UTC().Add(-time.Second))

	return nil
}
