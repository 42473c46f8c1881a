package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/geocoder89/dinehub/internal/actorctx"
	"github.com/geocoder89/dinehub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	return m
}

func TestLogger_AddsPrincipalID(t *testing.T) {
	var buf bytes.Buffer
	log := observability.NewLoggerTo(&buf, "prod")

	ctx := actorctx.WithPrincipalID(context.Background(), "p-1")
	log.InfoContext(ctx, "hello")

	line := decodeLine(t, &buf)
	assert.Equal(t, "p-1", line["principal_id"])
	assert.NotContains(t, line, "trace_id")
}

func TestLogger_DebugOnlyInDev(t *testing.T) {
	var buf bytes.Buffer
	observability.NewLoggerTo(&buf, "prod").Debug("hidden")
	assert.Empty(t, buf.String())

	observability.NewLoggerTo(&buf, "dev").Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestLogError_OopsCodeAndContext(t *testing.T) {
	var buf bytes.Buffer
	log := observability.NewLoggerTo(&buf, "prod")

	err := oops.In("smtp").Code("delivery_failed").With("host", "mail.local").Errorf("dial refused")
	observability.LogError(context.Background(), log, "send failed", err)

	line := decodeLine(t, &buf)
	assert.Equal(t, "send failed", line["msg"])
	assert.Equal(t, "delivery_failed", line["code"])
	assert.Equal(t, "smtp", line["domain"])
	assert.Contains(t, line["context"], "host")
}

func TestLogError_PlainError(t *testing.T) {
	var buf bytes.Buffer
	log := observability.NewLoggerTo(&buf, "prod")

	observability.LogError(context.Background(), log, "boom", errors.New("plain"))

	line := decodeLine(t, &buf)
	assert.Equal(t, "plain", line["error"])
	assert.NotContains(t, line, "code")
}

func TestProm_ObserveDBClassifies(t *testing.T) {
	p := observability.NewProm(prometheus.NewRegistry())

	err := p.ObserveDB("users.insert", func() error { return &pgconn.PgError{Code: "23505"} })
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(p.DbErrorsTotal.WithLabelValues("users.insert", "unique_violation")))

	_ = p.ObserveDB("users.find_by_id", func() error { return context.DeadlineExceeded })
	assert.Equal(t, 1.0, testutil.ToFloat64(p.DbErrorsTotal.WithLabelValues("users.find_by_id", "timeout")))

	_ = p.ObserveDB("users.update", func() error { return &pgconn.PgError{Code: "23514"} })
	assert.Equal(t, 1.0, testutil.ToFloat64(p.DbErrorsTotal.WithLabelValues("users.update", "check_violation")))

	_ = p.ObserveDB("users.update", func() error { return errors.New("boom") })
	assert.Equal(t, 1.0, testutil.ToFloat64(p.DbErrorsTotal.WithLabelValues("users.update", "unknown")))
}

func TestProm_ObserveDBNoRowsIsMiss(t *testing.T) {
	p := observability.NewProm(prometheus.NewRegistry())

	err := p.ObserveDB("users.claim_reset_token", func() error { return pgx.ErrNoRows })
	assert.ErrorIs(t, err, pgx.ErrNoRows)

	assert.Equal(t, 0, testutil.CollectAndCount(p.DbErrorsTotal))
	assert.Equal(t, 1, testutil.CollectAndCount(p.DbQueryDuration))

	_ = p.ObserveDB("users.claim_reset_token", func() error { return nil })
	assert.Equal(t, 2, testutil.CollectAndCount(p.DbQueryDuration), "ok and miss are separate series")
}

func TestProm_AuthAndSweep(t *testing.T) {
	p := observability.NewProm(prometheus.NewRegistry())

	p.ObserveAuth("login", "ok", 50*time.Millisecond)
	p.ObserveAuth("login", "auth", 50*time.Millisecond)
	p.ObserveAuth("login", "auth", 50*time.Millisecond)
	assert.Equal(t, 2.0, testutil.ToFloat64(p.AuthOpsTotal.WithLabelValues("login", "auth")))

	p.ObserveSweep(3, nil)
	p.ObserveSweep(0, errors.New("db down"))
	assert.Equal(t, 3.0, testutil.ToFloat64(p.SweptTokens))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.SweepRuns.WithLabelValues("error")))
	assert.Greater(t, testutil.ToFloat64(p.SweepLastRun), 0.0)
}
