package utils_test

import (
	"testing"

	"github.com/geocoder89/dinehub/internal/domain/restaurant"
	"github.com/geocoder89/dinehub/internal/utils"
	"github.com/stretchr/testify/assert"
)

func TestBuildRestaurantsListCacheKey(t *testing.T) {
	upper, lower := " Italian ", "italian"
	rating := 4.5

	a := utils.BuildRestaurantsListCacheKey(restaurant.ListFilter{Cuisine: &upper, MinRating: &rating, Sort: restaurant.SortNameAsc, Limit: 20})
	b := utils.BuildRestaurantsListCacheKey(restaurant.ListFilter{Cuisine: &lower, MinRating: &rating, Sort: restaurant.SortNameAsc, Limit: 20})
	assert.Equal(t, a, b)
	assert.Contains(t, a, "min=4.5")

	c := utils.BuildRestaurantsListCacheKey(restaurant.ListFilter{Cuisine: &lower, MinRating: &rating, Sort: restaurant.SortNameAsc, Limit: 20, Offset: 20})
	assert.NotEqual(t, a, c)
}
