package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/geocoder89/dinehub/internal/domain/restaurant"
	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"
)

const restaurantColumns = `id, restaurant_name, cuisine, rating, state, city, postal_code, street_name, street_number, apartment_number, created_at`

func restaurantOrderBy(s restaurant.Sort) string {
	switch s {
	case restaurant.SortRatingAsc:
		return "rating ASC NULLS FIRST, id ASC"
	case restaurant.SortRatingDesc:
		return "rating DESC NULLS LAST, id ASC"
	case restaurant.SortNameAsc:
		return "restaurant_name ASC, id ASC"
	case restaurant.SortNameDesc:
		return "restaurant_name DESC, id ASC"
	default:
		return "created_at DESC, id ASC"
	}
}

// ListRestaurants reads the public merchant directory.
func (r *PrincipalsRepo) ListRestaurants(ctx context.Context, f restaurant.ListFilter) ([]restaurant.Restaurant, int, error) {
	var conds []string
	var args []any
	pos := 1

	if f.Cuisine != nil {
		conds = append(conds, fmt.Sprintf("lower(cuisine) = lower($%d)", pos))
		args = append(args, *f.Cuisine)
		pos++
	}
	if f.City != nil {
		conds = append(conds, fmt.Sprintf("lower(city) = lower($%d)", pos))
		args = append(args, *f.City)
		pos++
	}
	if f.MinRating != nil {
		conds = append(conds, fmt.Sprintf("rating >= $%d", pos))
		args = append(args, *f.MinRating)
		pos++
	}

	query := `SELECT ` + restaurantColumns + `, COUNT(*) OVER() AS total FROM merchants`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY %s LIMIT $%d OFFSET $%d", restaurantOrderBy(f.Sort), pos, pos+1)
	args = append(args, f.Limit, f.Offset)

	out := make([]restaurant.Restaurant, 0, f.Limit)
	total := 0

	err := r.observe("merchants.list", func() error {
		rows, err := r.db.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var rest restaurant.Restaurant
			var t int
			if err := rows.Scan(restaurantDest(&rest, &t)...); err != nil {
				return err
			}
			total = t
			out = append(out, rest)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, oops.In("postgres").With("op", "merchants.list").Wrap(err)
	}

	return out, total, nil
}

func (r *PrincipalsRepo) GetRestaurant(ctx context.Context, id string) (restaurant.Restaurant, error) {
	var rest restaurant.Restaurant

	err := r.observe("merchants.get", func() error {
		return r.db.QueryRow(ctx, `SELECT `+restaurantColumns+` FROM merchants WHERE id = $1`, id).Scan(restaurantDest(&rest)...)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return restaurant.Restaurant{}, restaurant.ErrNotFound
		}
		return restaurant.Restaurant{}, oops.In("postgres").With("op", "merchants.get", "id", id).Wrap(err)
	}

	return rest, nil
}

func restaurantDest(r *restaurant.Restaurant, extra ...any) []any {
	dest := []any{&r.ID, &r.Name, &r.Cuisine, &r.Rating, &r.State, &r.City, &r.PostalCode, &r.StreetName, &r.StreetNumber, &r.ApartmentNumber, &r.CreatedAt}
	return append(dest, extra...)
}
