package config_test

import (
	"context"
	"testing"
	"time"

	"github.com/geocoder89/dinehub/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"90d", 90 * 24 * time.Hour, false},
		{"1h30m", 90 * time.Minute, false},
		{" 10m ", 10 * time.Minute, false},
		{"xd", 0, true},
		{"soon", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := config.ParseDuration(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoad_DevDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("NOTIFIER_DRIVER", "log")
	t.Setenv("PORT", "9090")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test,")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.NotEmpty(t, cfg.JWTSecret, "dev falls back to a local secret")
	assert.Equal(t, 10*time.Minute, cfg.ResetTokenTTL)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, "http://localhost:9090", cfg.PublicBaseURL)
}

func TestLoad_ProdRequiresSecret(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("NOTIFIER_DRIVER", "log")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoad_CollectsBadValues(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("STORE_DRIVER", "mongo")
	t.Setenv("NOTIFIER_DRIVER", "smtp")
	t.Setenv("EMAIL_HOST", "")
	t.Setenv("JWT_EXPIRATION", "forever")
	t.Setenv("PORT", "eighty")

	_, err := config.Load()
	require.Error(t, err)
	for _, want := range []string{"STORE_DRIVER", "EMAIL_HOST", "JWT_EXPIRATION", "PORT"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestRequestTimeout_DetachesCancellation(t *testing.T) {
	type key struct{}
	parent, cancel := context.WithCancel(context.WithValue(context.Background(), key{}, "v"))

	ctx, stop := config.RequestTimeout(parent, time.Minute)
	defer stop()

	cancel()
	assert.NoError(t, ctx.Err())
	assert.Equal(t, "v", ctx.Value(key{}))

	_, hasDeadline := ctx.Deadline()
	assert.True(t, hasDeadline)
}
