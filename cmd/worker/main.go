package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/geocoder89/dinehub/internal/config"
	"github.com/geocoder89/dinehub/internal/db"
	"github.com/geocoder89/dinehub/internal/observability"
	"github.com/geocoder89/dinehub/internal/repo/postgres"
	"github.com/geocoder89/dinehub/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := observability.NewLogger(cfg.Env).With("component", "worker")

	if cfg.StoreDriver == "memory" {
		log.Error("the sweeper needs a shared store; STORE_DRIVER=memory has nothing to sweep")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DBURL)
	if err != nil {
		observability.LogError(ctx, log, "db connect failed", err)
		os.Exit(1)
	}
	defer pool.Close()

	prom := observability.NewProm(prometheus.DefaultRegisterer)
	repo := postgres.NewPrincipalsRepo(pool, prom)

	var shuttingDown atomic.Bool

	mux := http.NewServeMux()
	mux.Handle("/", worker.HealthHandler(pool, shuttingDown.Load))
	mux.Handle("/metrics", promhttp.Handler())

	healthSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WorkerHealthPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("worker health server starting", "port", cfg.WorkerHealthPort)
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("health server failed", "err", err)
		}
	}()

	sweeper := worker.NewSweeper(worker.Config{Interval: cfg.SweepInterval}, repo, log, prom)

	if err := sweeper.Run(ctx); err != nil {
		log.Error("worker stopped with error", "err", err)
	}

	shuttingDown.Store(true)

	shutdownCtx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()
	_ = healthSrv.Shutdown(shutdownCtx)

	log.Info("worker shutdown complete")
}
