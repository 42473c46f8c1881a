package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/geocoder89/dinehub/internal/domain/principal"
	"github.com/geocoder89/dinehub/internal/domain/restaurant"
)

type emailOwner struct {
	kind principal.Kind
	id   string
}

// PrincipalsRepo keeps both principal kinds in process. The email and reset
// digest indexes are shared by both kinds and change under the same lock as
// the records they point at.
type PrincipalsRepo struct {
	mu     sync.RWMutex
	items  map[principal.Kind]map[string]*principal.Principal
	emails map[string]emailOwner
	resets map[string]emailOwner
}

func NewPrincipalsRepo() *PrincipalsRepo {
	return &PrincipalsRepo{
		items: map[principal.Kind]map[string]*principal.Principal{
			principal.KindUser:     {},
			principal.KindMerchant: {},
		},
		emails: make(map[string]emailOwner),
		resets: make(map[string]emailOwner),
	}
}

func (r *PrincipalsRepo) FindByEmail(_ context.Context, kind principal.Kind, email string) (*principal.Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owner, ok := r.emails[email]
	if !ok || owner.kind != kind {
		return nil, principal.ErrNotFound
	}
	return r.items[kind][owner.id].Clone(), nil
}

func (r *PrincipalsRepo) FindByID(_ context.Context, kind principal.Kind, id string) (*principal.Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.items[kind][id]
	if !ok {
		return nil, principal.ErrNotFound
	}
	return p.Clone(), nil
}

func (r *PrincipalsRepo) Insert(_ context.Context, p *principal.Principal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.emails[p.Email]; taken {
		return principal.ErrEmailTaken
	}

	r.emails[p.Email] = emailOwner{kind: p.Kind, id: p.ID}
	if p.HasResetToken() {
		r.resets[*p.ResetTokenHash] = emailOwner{kind: p.Kind, id: p.ID}
	}
	r.items[p.Kind][p.ID] = p.Clone()
	return nil
}

// Update replaces the stored record but keeps its reset fields, which only
// SetResetToken and ClaimResetToken may change.
func (r *PrincipalsRepo) Update(_ context.Context, p *principal.Principal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.items[p.Kind][p.ID]
	if !ok {
		return principal.ErrNotFound
	}

	if existing.Email != p.Email {
		if _, taken := r.emails[p.Email]; taken {
			return principal.ErrEmailTaken
		}
		delete(r.emails, existing.Email)
		r.emails[p.Email] = emailOwner{kind: p.Kind, id: p.ID}
	}

	next := p.Clone()
	next.ResetTokenHash, next.ResetTokenExpiresAt = existing.ResetTokenHash, existing.ResetTokenExpiresAt
	r.items[p.Kind][p.ID] = next
	return nil
}

func (r *PrincipalsRepo) SetResetToken(_ context.Context, kind principal.Kind, id, digest string, expiresAt, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.items[kind][id]
	if !ok {
		return principal.ErrNotFound
	}

	r.dropResetToken(p)
	p.SetResetToken(digest, expiresAt)
	p.UpdatedAt = now
	r.resets[digest] = emailOwner{kind: kind, id: id}
	return nil
}

// ClaimResetToken clears a digest that is still live at now and returns the
// record that held it. Concurrent claims of one digest have a single winner.
func (r *PrincipalsRepo) ClaimResetToken(_ context.Context, kind principal.Kind, digest string, now time.Time) (*principal.Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.resets[digest]
	if !ok || owner.kind != kind {
		return nil, principal.ErrNotFound
	}

	p := r.items[kind][owner.id]
	if !p.ResetTokenExpiresAt.After(now) {
		return nil, principal.ErrNotFound
	}

	r.dropResetToken(p)
	p.UpdatedAt = now
	return p.Clone(), nil
}

// ClearExpiredResetTokens drops reset fields whose expiry is at or before now.
func (r *PrincipalsRepo) ClearExpiredResetTokens(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var cleared int64
	for _, byID := range r.items {
		for _, p := range byID {
			if p.ResetTokenExpiresAt != nil && !p.ResetTokenExpiresAt.After(now) {
				r.dropResetToken(p)
				cleared++
			}
		}
	}
	return cleared, nil
}

// dropResetToken clears p's reset fields and their index entry. Callers hold
// the write lock.
func (r *PrincipalsRepo) dropResetToken(p *principal.Principal) {
	if p.ResetTokenHash != nil {
		delete(r.resets, *p.ResetTokenHash)
	}
	p.ClearResetToken()
}

func (r *PrincipalsRepo) ListRestaurants(_ context.Context, f restaurant.ListFilter) ([]restaurant.Restaurant, int, error) {
	r.mu.RLock()
	out := make([]restaurant.Restaurant, 0)
	for _, p := range r.items[principal.KindMerchant] {
		rest := restaurant.FromPrincipal(p)
		if matches(rest, f) {
			out = append(out, rest)
		}
	}
	r.mu.RUnlock()

	sortRestaurants(out, f.Sort)

	total := len(out)
	if f.Offset >= total {
		return []restaurant.Restaurant{}, total, nil
	}
	end := total
	if f.Limit > 0 && f.Offset+f.Limit < end {
		end = f.Offset + f.Limit
	}
	return out[f.Offset:end], total, nil
}

func (r *PrincipalsRepo) GetRestaurant(_ context.Context, id string) (restaurant.Restaurant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.items[principal.KindMerchant][id]
	if !ok {
		return restaurant.Restaurant{}, restaurant.ErrNotFound
	}
	return restaurant.FromPrincipal(p), nil
}

func matches(r restaurant.Restaurant, f restaurant.ListFilter) bool {
	if f.Cuisine != nil && !strings.EqualFold(r.Cuisine, *f.Cuisine) {
		return false
	}
	if f.City != nil && !strings.EqualFold(r.City, *f.City) {
		return false
	}
	if f.MinRating != nil && (r.Rating == nil || *r.Rating < *f.MinRating) {
		return false
	}
	return true
}

func sortRestaurants(items []restaurant.Restaurant, s restaurant.Sort) {
	rating := func(r restaurant.Restaurant) float64 {
		if r.Rating == nil {
			return -1
		}
		return *r.Rating
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		switch s {
		case restaurant.SortRatingAsc:
			if rating(a) != rating(b) {
				return rating(a) < rating(b)
			}
		case restaurant.SortRatingDesc:
			if rating(a) != rating(b) {
				return rating(a) > rating(b)
			}
		case restaurant.SortNameAsc:
			if a.Name != b.Name {
				return a.Name < b.Name
			}
		case restaurant.SortNameDesc:
			if a.Name != b.Name {
				return a.Name > b.Name
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
		}
		return a.ID < b.ID
	})
}
