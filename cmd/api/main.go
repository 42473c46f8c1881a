package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/dinehub/internal/auth"
	"github.com/geocoder89/dinehub/internal/config"
	"github.com/geocoder89/dinehub/internal/credentials"
	"github.com/geocoder89/dinehub/internal/db"
	httpx "github.com/geocoder89/dinehub/internal/http"
	"github.com/geocoder89/dinehub/internal/http/handlers"
	"github.com/geocoder89/dinehub/internal/http/middlewares"
	"github.com/geocoder89/dinehub/internal/notifications"
	"github.com/geocoder89/dinehub/internal/observability"
	"github.com/geocoder89/dinehub/internal/redisclient"
	"github.com/geocoder89/dinehub/internal/repo/memory"
	"github.com/geocoder89/dinehub/internal/repo/postgres"
	"github.com/geocoder89/dinehub/internal/security"
	"github.com/prometheus/client_golang/prometheus"
)

const serviceName = "dinehub-api"

type principalsRepo interface {
	credentials.Repository
	handlers.RestaurantDirectory
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := observability.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.OtelEnabled {
		shutdownTracer, err := observability.InitTracer(ctx, serviceName, cfg.OtelEndpoint)
		if err != nil {
			observability.LogError(ctx, log, "tracer init failed", err)
			os.Exit(1)
		}
		defer func() {
			c, cancel := config.WithTimeout(5 * time.Second)
			defer cancel()
			_ = shutdownTracer(c)
		}()
	}

	prom := observability.NewProm(prometheus.DefaultRegisterer)
	readiness := map[string]handlers.Pinger{}

	var repo principalsRepo
	switch cfg.StoreDriver {
	case "memory":
		log.Warn("using in-memory store, data is lost on restart")
		repo = memory.NewPrincipalsRepo()
	default:
		pool, err := db.NewPool(ctx, cfg.DBURL)
		if err != nil {
			observability.LogError(ctx, log, "db connect failed", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := db.Migrate(ctx, pool); err != nil {
			observability.LogError(ctx, log, "db migrate failed", err)
			os.Exit(1)
		}

		repo = postgres.NewPrincipalsRepo(pool, prom)
		readiness["postgres"] = pool
	}

	hasher := security.NewBcryptHasher(cfg.BcryptCost)
	store := credentials.NewStore(repo, hasher)

	notifier, err := buildNotifier(cfg.Notifier, log)
	if err != nil {
		observability.LogError(ctx, log, "notifier init failed", err)
		os.Exit(1)
	}

	svc, err := auth.NewService(auth.ServiceConfig{
		Store:        store,
		Tokens:       auth.NewTokenManager(cfg.JWTSecret, cfg.JWTExpiration),
		Hasher:       hasher,
		Resets:       auth.NewResetTokens(store, cfg.ResetTokenTTL),
		Notifier:     notifier,
		Logger:       log,
		Metrics:      prom,
		ResetURLBase: cfg.PublicBaseURL,
	})
	if err != nil {
		observability.LogError(ctx, log, "auth service init failed", err)
		os.Exit(1)
	}

	seed := db.SeedMerchant{Email: cfg.SeedMerchantEmail, Password: cfg.SeedMerchantPassword}
	if err := db.EnsureSeedMerchant(ctx, store, seed, log); err != nil {
		observability.LogError(ctx, log, "seed merchant failed", err)
	}

	var limiter middlewares.Limiter = middlewares.NewRateLimiter(cfg.AuthRateLimit, cfg.AuthRateWindow)
	if cfg.Redis.Addr != "" {
		rdb := redisclient.New(redisclient.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()

		if err := rdb.Ping(ctx); err != nil {
			// limiter fails open, so keep going and let readiness report it
			observability.LogError(ctx, log, "redis ping failed", err)
		}
		limiter = middlewares.NewRedisRateLimiter(rdb.Raw(), cfg.AuthRateLimit, cfg.AuthRateWindow)
		readiness["redis"] = rdb
	}

	router := httpx.NewRouter(httpx.Deps{
		Log:            log,
		Env:            cfg.Env,
		ServiceName:    serviceName,
		Auth:           svc,
		Restaurants:    repo,
		Limiter:        limiter,
		Prom:           prom,
		Gatherer:       prometheus.DefaultGatherer,
		Readiness:      readiness,
		CORSOrigins:    cfg.CORSAllowedOrigins,
		RequestTimeout: 10 * time.Second,
		CacheTTL:       30 * time.Second,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver, "notifier", cfg.Notifier.Driver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("server shutting down")

	shutdownCtx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
		return
	}
	log.Info("shutdown complete")
}

func buildNotifier(cfg config.NotifierConfig, log *slog.Logger) (notifications.Notifier, error) {
	var inner notifications.Notifier

	switch cfg.Driver {
	case "smtp":
		n, err := notifications.NewSMTPNotifier(notifications.SMTPConfig{
			Host:     cfg.Host,
			Port:     cfg.Port,
			Username: cfg.Username,
			Password: cfg.Password,
			From:     cfg.From,
		})
		if err != nil {
			return nil, err
		}
		inner = n
	default:
		n := notifications.NewLogNotifier(log)
		n.Delay = cfg.SimulateDelay
		n.Fail = cfg.SimulateFail
		inner = n
	}

	return notifications.NewProtectedNotifier(inner, notifications.ProtectedNotifierConfig{
		Timeout: cfg.Timeout,
	}), nil
}
