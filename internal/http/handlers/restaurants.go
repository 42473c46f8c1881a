package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/geocoder89/dinehub/internal/cache"
	"github.com/geocoder89/dinehub/internal/config"
	"github.com/geocoder89/dinehub/internal/domain/restaurant"
	"github.com/geocoder89/dinehub/internal/utils"
	"github.com/gin-gonic/gin"
)

const (
	defaultRestaurantsLimit = 20
	maxRestaurantsLimit     = 100
)

type RestaurantDirectory interface {
	ListRestaurants(ctx context.Context, f restaurant.ListFilter) ([]restaurant.Restaurant, int, error)
	GetRestaurant(ctx context.Context, id string) (restaurant.Restaurant, error)
}

type RestaurantsHandler struct {
	repo    RestaurantDirectory
	cache   *cache.Cache
	log     *slog.Logger
	timeout time.Duration
}

func NewRestaurantsHandler(repo RestaurantDirectory, c *cache.Cache, log *slog.Logger, timeout time.Duration) *RestaurantsHandler {
	if c == nil {
		c = cache.New(30 * time.Second)
	}
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RestaurantsHandler{repo: repo, cache: c, log: log, timeout: timeout}
}

type ListRestaurantsResponse struct {
	Items []restaurant.Restaurant `json:"items"`
	Page  int                     `json:"page"`
	Limit int                     `json:"limit"`
	Total int                     `json:"total"`
}

// Invalidate drops every cached listing and lookup. Called when a merchant
// signs up.
func (h *RestaurantsHandler) Invalidate() {
	h.cache.DeletePrefix(utils.RestaurantsListCachePrefix)
	h.cache.DeletePrefix(utils.RestaurantCacheKey(""))
}

func (h *RestaurantsHandler) List(ctx *gin.Context) {
	filter, page, fields := parseRestaurantsQuery(ctx)
	if len(fields) > 0 {
		RespondBadRequest(ctx, "Invalid query parameters", gin.H{"fields": fields})
		return
	}

	key := utils.BuildRestaurantsListCacheKey(filter)
	if v, ok := h.cache.Get(key); ok {
		if resp, ok := v.(ListRestaurantsResponse); ok {
			ctx.Header("X-Cache", "HIT")
			RespondJSONWithETag(ctx, http.StatusOK, resp)
			return
		}
	}

	c, cancel := config.RequestTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	items, total, err := h.repo.ListRestaurants(c, filter)
	if err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "list_restaurants_failed", "err", err)
		RespondInternal(ctx, "Could not list restaurants")
		return
	}

	resp := ListRestaurantsResponse{Items: items, Page: page, Limit: filter.Limit, Total: total}
	h.cache.Set(key, resp)

	ctx.Header("X-Cache", "MISS")
	RespondJSONWithETag(ctx, http.StatusOK, resp)
}

func (h *RestaurantsHandler) Get(ctx *gin.Context) {
	id := strings.TrimSpace(ctx.Param("id"))
	key := utils.RestaurantCacheKey(id)

	if v, ok := h.cache.Get(key); ok {
		if r, ok := v.(restaurant.Restaurant); ok {
			ctx.Header("X-Cache", "HIT")
			RespondJSONWithETag(ctx, http.StatusOK, r)
			return
		}
	}

	c, cancel := config.RequestTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	r, err := h.repo.GetRestaurant(c, id)
	if err != nil {
		if errors.Is(err, restaurant.ErrNotFound) {
			RespondNotFound(ctx, "Restaurant not found")
			return
		}
		h.log.ErrorContext(ctx.Request.Context(), "get_restaurant_failed", "id", id, "err", err)
		RespondInternal(ctx, "Could not load restaurant")
		return
	}

	h.cache.Set(key, r)

	ctx.Header("X-Cache", "MISS")
	RespondJSONWithETag(ctx, http.StatusOK, r)
}

func parseRestaurantsQuery(ctx *gin.Context) (restaurant.ListFilter, int, []FieldError) {
	var fields []FieldError
	f := restaurant.ListFilter{Limit: defaultRestaurantsLimit}

	if v := strings.TrimSpace(ctx.Query("cuisine")); v != "" {
		f.Cuisine = &v
	}
	if v := strings.TrimSpace(ctx.Query("city")); v != "" {
		f.City = &v
	}

	if raw := strings.TrimSpace(ctx.Query("minRating")); raw != "" {
		r, err := strconv.ParseFloat(raw, 64)
		if err != nil || r < 0 || r > 5 {
			fields = append(fields, FieldError{Field: "minRating", Rule: "range", Param: "0..5", Message: "must be a number between 0 and 5"})
		} else {
			f.MinRating = &r
		}
	}

	sort, ok := restaurant.ParseSort(strings.TrimSpace(ctx.Query("sort")))
	if !ok {
		fields = append(fields, FieldError{Field: "sort", Rule: "oneof", Param: "newest rating -rating name -name", Message: "must be one of newest, rating, -rating, name, -name"})
	}
	f.Sort = sort

	page := 1
	if raw := strings.TrimSpace(ctx.Query("page")); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil || p < 1 {
			fields = append(fields, FieldError{Field: "page", Rule: "min", Param: "1", Message: "must be at least 1"})
		} else {
			page = p
		}
	}

	if raw := strings.TrimSpace(ctx.Query("limit")); raw != "" {
		l, err := strconv.Atoi(raw)
		if err != nil || l < 1 || l > maxRestaurantsLimit {
			fields = append(fields, FieldError{Field: "limit", Rule: "range", Param: "1..100", Message: "must be between 1 and 100"})
		} else {
			f.Limit = l
		}
	}

	f.Offset = (page - 1) * f.Limit
	return f, page, fields
}
