package restaurant

import (
	"errors"
	"time"

	"github.com/geocoder89/dinehub/internal/domain/principal"
)

var ErrNotFound = errors.New("restaurant not found")

// Restaurant is the public view of a merchant principal.
type Restaurant struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Cuisine         string    `json:"cuisine"`
	Rating          *float64  `json:"rating,omitempty"`
	State           string    `json:"state"`
	City            string    `json:"city"`
	PostalCode      string    `json:"postalCode"`
	StreetName      string    `json:"streetName"`
	StreetNumber    string    `json:"streetNumber"`
	ApartmentNumber string    `json:"apartmentNumber,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

func FromPrincipal(p *principal.Principal) Restaurant {
	r := Restaurant{ID: p.ID, CreatedAt: p.CreatedAt}
	if m := p.Merchant; m != nil {
		r.Name = m.RestaurantName
		r.Cuisine = m.Cuisine
		r.Rating = m.Rating
		r.State = m.State
		r.City = m.City
		r.PostalCode = m.PostalCode
		r.StreetName = m.StreetName
		r.StreetNumber = m.StreetNumber
		r.ApartmentNumber = m.ApartmentNumber
	}
	return r
}

type Sort string

const (
	SortNewest     Sort = "newest"
	SortRatingAsc  Sort = "rating"
	SortRatingDesc Sort = "-rating"
	SortNameAsc    Sort = "name"
	SortNameDesc   Sort = "-name"
)

func ParseSort(s string) (Sort, bool) {
	switch Sort(s) {
	case "":
		return SortNewest, true
	case SortNewest, SortRatingAsc, SortRatingDesc, SortNameAsc, SortNameDesc:
		return Sort(s), true
	}
	return "", false
}

type ListFilter struct {
	Cuisine   *string
	City      *string
	MinRating *float64
	Sort      Sort
	Limit     int
	Offset    int
}
