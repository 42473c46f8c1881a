// Package worker runs background maintenance for the API: today that is
// clearing reset-token fields that expired without being used.
package worker

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/samber/oops"
)

// ResetTokenSweeper is implemented by the postgres and memory repositories.
type ResetTokenSweeper interface {
	ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}

type Metrics interface {
	ObserveSweep(cleared int64, err error)
}

type Config struct {
	Interval time.Duration
	// Timeout bounds one sweep.
	Timeout time.Duration
}

type Sweeper struct {
	cfg     Config
	repo    ResetTokenSweeper
	log     *slog.Logger
	metrics Metrics
	now     func() time.Time

	lastOK   atomic.Int64
	failures atomic.Int32
}

func NewSweeper(cfg Config, repo ResetTokenSweeper, log *slog.Logger, metrics Metrics) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{cfg: cfg, repo: repo, log: log, metrics: metrics, now: time.Now}
}

func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// SweepOnce clears every reset token whose expiry is at or before now.
// Expiry is still enforced when a token is consumed; this only keeps stale
// digests from lingering in the tables.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	now := s.now()
	cleared, err := s.repo.ClearExpiredResetTokens(ctx, now)
	if s.metrics != nil {
		s.metrics.ObserveSweep(cleared, err)
	}
	if err != nil {
		s.failures.Add(1)
		return cleared, oops.In("worker").Code("sweep_failed").Wrap(err)
	}

	s.failures.Store(0)
	s.lastOK.Store(now.Unix())
	if cleared > 0 {
		s.log.InfoContext(ctx, "reset tokens swept", "cleared", cleared)
	}
	return cleared, nil
}

// Run sweeps on every tick until ctx is cancelled. Consecutive failures
// stretch the wait with ExponentialBackoff.
func (s *Sweeper) Run(ctx context.Context) error {
	s.log.Info("sweeper started", "interval", s.cfg.Interval.String())

	wait := time.Duration(0)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper received shutdown signal")
			return nil
		case <-time.After(wait):
		}

		if _, err := s.SweepOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			attempt := int(s.failures.Load()) - 1
			wait = ExponentialBackoff(attempt)
			if wait > s.cfg.Interval {
				wait = s.cfg.Interval
			}
			s.log.Error("sweep failed", "err", err, "retry_in", wait.String())
			continue
		}

		wait = s.cfg.Interval
	}
}

// LastSuccess is the time of the last sweep that completed, zero if none has.
func (s *Sweeper) LastSuccess() time.Time {
	v := s.lastOK.Load()
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(v, 0)
}
