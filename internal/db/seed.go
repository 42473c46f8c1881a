package db

import (
	"context"
	"errors"
	"log/slog"

	"github.com/geocoder89/dinehub/internal/domain/principal"
)

// SeedCreator is the piece of the credential store the seeder needs.
type SeedCreator interface {
	Create(ctx context.Context, attrs principal.SignupAttrs) (*principal.Principal, error)
}

type SeedMerchant struct {
	Email    string
	Password string
}

// EnsureSeedMerchant creates a demo merchant when credentials are configured.
// An existing account under the same email is left untouched.
func EnsureSeedMerchant(ctx context.Context, store SeedCreator, seed SeedMerchant, log *slog.Logger) error {
	if seed.Email == "" || seed.Password == "" {
		return nil
	}

	p, err := store.Create(ctx, principal.SignupAttrs{
		Kind:            principal.KindMerchant,
		Email:           seed.Email,
		Password:        seed.Password,
		PasswordConfirm: seed.Password,
		Merchant: &principal.MerchantProfile{
			RestaurantName: "DineHub Demo Kitchen",
			Cuisine:        "international",
			Address: principal.Address{
				State:        "Lagos",
				City:         "Lagos",
				PostalCode:   "100001",
				StreetName:   "Marina Road",
				StreetNumber: "1",
			},
		},
	})
	if errors.Is(err, principal.ErrEmailTaken) {
		return nil
	}
	if err != nil {
		return err
	}

	log.Info("seed merchant created", "principal_id", p.ID)
	return nil
}
