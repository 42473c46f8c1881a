package http

import (
	"log/slog"
	"time"

	"github.com/geocoder89/dinehub/internal/cache"
	"github.com/geocoder89/dinehub/internal/http/handlers"
	"github.com/geocoder89/dinehub/internal/http/middlewares"
	"github.com/geocoder89/dinehub/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const maxBodyBytes = 1 << 20

// AuthService is everything the router needs from auth.Service.
type AuthService interface {
	handlers.AuthService
	middlewares.Protector
}

type Deps struct {
	Log         *slog.Logger
	Env         string
	ServiceName string

	Auth        AuthService
	Restaurants handlers.RestaurantDirectory

	// Limiter guards the credential endpoints. nil disables rate limiting.
	Limiter middlewares.Limiter

	Prom        *observability.Prom
	Gatherer    prometheus.Gatherer
	Readiness   map[string]handlers.Pinger
	CORSOrigins []string

	RequestTimeout time.Duration
	CacheTTL       time.Duration
}

func NewRouter(d Deps) *gin.Engine {
	if d.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.ServiceName == "" {
		d.ServiceName = "dinehub-api"
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(otelgin.Middleware(d.ServiceName))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.RequestLogger(d.Log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(d.CORSOrigins))
	r.Use(middlewares.MaxBodyBytes(maxBodyBytes))
	r.Use(middlewares.RequireJSON())

	health := handlers.NewHealthHandler(d.Readiness)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)

	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	restaurants := handlers.NewRestaurantsHandler(d.Restaurants, cache.New(d.CacheTTL), d.Log, d.RequestTimeout)
	r.GET("/restaurants", restaurants.List)
	r.GET("/restaurants/:id", restaurants.Get)

	authH := handlers.NewAuthHandler(d.Auth, d.RequestTimeout).OnMerchantCreated(restaurants.Invalidate)
	requireAuth := middlewares.NewAuthMiddleware(d.Auth).RequireAuth()

	var limitByIP, limitByPrincipal gin.HandlerFunc = noop, noop
	if d.Limiter != nil {
		limitByIP = middlewares.RateLimit(d.Limiter, middlewares.KeyByIP, d.Log)
		limitByPrincipal = middlewares.RateLimit(d.Limiter, middlewares.KeyByPrincipalOrIP, d.Log)
	}

	r.POST("/signupUser", limitByIP, authH.SignupUser)
	r.POST("/signupRestaurant", limitByIP, authH.SignupRestaurant)
	r.POST("/login", limitByIP, authH.Login)
	r.POST("/forgotPassword", limitByIP, authH.ForgotPassword)
	r.PATCH("/resetPassword/:token", limitByIP, authH.ResetPassword)

	r.PATCH("/updateMyPassword/:id", requireAuth, limitByPrincipal, authH.UpdateMyPassword)
	r.GET("/me", requireAuth, authH.Me)

	return r
}

func noop(c *gin.Context) { c.Next() }
