package utils

import (
	"strconv"
	"strings"

	"github.com/geocoder89/dinehub/internal/domain/restaurant"
)

const RestaurantsListCachePrefix = "restaurants:list:v1:"

// BuildRestaurantsListCacheKey normalizes a listing filter into a stable
// cache key. Text filters are matched case-insensitively, so they are folded
// here too.
func BuildRestaurantsListCacheKey(f restaurant.ListFilter) string {
	cuisine := ""
	if f.Cuisine != nil {
		cuisine = strings.ToLower(strings.TrimSpace(*f.Cuisine))
	}
	city := ""
	if f.City != nil {
		city = strings.ToLower(strings.TrimSpace(*f.City))
	}
	minRating := ""
	if f.MinRating != nil {
		minRating = strconv.FormatFloat(*f.MinRating, 'f', -1, 64)
	}

	return RestaurantsListCachePrefix +
		"cuisine=" + cuisine +
		":city=" + city +
		":min=" + minRating +
		":sort=" + string(f.Sort) +
		":limit=" + strconv.Itoa(f.Limit) +
		":offset=" + strconv.Itoa(f.Offset)
}

func RestaurantCacheKey(id string) string {
	return "restaurants:get:v1:" + id
}
