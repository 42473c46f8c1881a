package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type NotifierConfig struct {
	Driver   string // smtp | log
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
	// log driver only
	SimulateDelay time.Duration
	SimulateFail  bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type Config struct {
	Env         string
	Port        int
	StoreDriver string // postgres | memory
	DBURL       string

	JWTSecret     string
	JWTExpiration time.Duration
	ResetTokenTTL time.Duration
	BcryptCost    int
	PublicBaseURL string

	Notifier NotifierConfig
	Redis    RedisConfig

	AuthRateLimit  int
	AuthRateWindow time.Duration

	OtelEnabled  bool
	OtelEndpoint string

	CORSAllowedOrigins []string

	SeedMerchantEmail    string
	SeedMerchantPassword string

	SweepInterval    time.Duration
	WorkerHealthPort int
}

const devJWTSecret = "dev-only-insecure-secret"

// Load reads configuration from the environment, after merging .env when
// one is present. Values already in the environment win.
func Load() (Config, error) {
	_ = godotenv.Load()

	var errs []error

	env := getEnv("APP_ENV", "dev")
	port := getEnvInt("PORT", 8080, &errs)

	cfg := Config{
		Env:         env,
		Port:        port,
		StoreDriver: getEnv("STORE_DRIVER", "postgres"),
		DBURL:       getEnv("DATABASE_URL", buildDBURL()),

		JWTSecret:     os.Getenv("JWT_SECRET"),
		JWTExpiration: getEnvDuration("JWT_EXPIRATION", 90*24*time.Hour, &errs),
		ResetTokenTTL: getEnvDuration("RESET_TOKEN_TTL", 10*time.Minute, &errs),
		BcryptCost:    getEnvInt("BCRYPT_COST", 12, &errs),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", fmt.Sprintf("http://localhost:%d", port)),

		Notifier: NotifierConfig{
			Driver:        getEnv("NOTIFIER_DRIVER", "log"),
			Host:          os.Getenv("EMAIL_HOST"),
			Port:          getEnvInt("EMAIL_PORT", 587, &errs),
			Username:      os.Getenv("EMAIL_USERNAME"),
			Password:      os.Getenv("EMAIL_PASSWORD"),
			From:          getEnv("EMAIL_FROM", "DineHub <no-reply@dinehub.local>"),
			Timeout:       getEnvDuration("NOTIFIER_TIMEOUT", 10*time.Second, &errs),
			SimulateDelay: getEnvDuration("NOTIFIER_SLEEP", 0, &errs),
			SimulateFail:  getEnvBool("NOTIFIER_FAIL", false, &errs),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0, &errs),
		},

		AuthRateLimit:  getEnvInt("AUTH_RATE_LIMIT", 10, &errs),
		AuthRateWindow: getEnvDuration("AUTH_RATE_WINDOW", time.Minute, &errs),

		OtelEnabled:  getEnvBool("OTEL_ENABLED", false, &errs),
		OtelEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),

		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),

		SeedMerchantEmail:    os.Getenv("SEED_MERCHANT_EMAIL"),
		SeedMerchantPassword: os.Getenv("SEED_MERCHANT_PASSWORD"),

		SweepInterval:    getEnvDuration("SWEEP_INTERVAL", 5*time.Minute, &errs),
		WorkerHealthPort: getEnvInt("WORKER_HEALTH_PORT", 8081, &errs),
	}

	if cfg.JWTSecret == "" {
		if env != "dev" && env != "test" {
			errs = append(errs, errors.New("JWT_SECRET is required outside dev"))
		}
		cfg.JWTSecret = devJWTSecret
	}

	switch cfg.StoreDriver {
	case "postgres", "memory":
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be postgres or memory, got %q", cfg.StoreDriver))
	}

	switch cfg.Notifier.Driver {
	case "log":
	case "smtp":
		if cfg.Notifier.Host == "" {
			errs = append(errs, errors.New("EMAIL_HOST is required when NOTIFIER_DRIVER=smtp"))
		}
	default:
		errs = append(errs, fmt.Errorf("NOTIFIER_DRIVER must be smtp or log, got %q", cfg.Notifier.Driver))
	}

	if cfg.JWTExpiration <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRATION must be positive"))
	}

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}

	return cfg, nil
}

func (c Config) IsDev() bool { return c.Env == "dev" }

func buildDBURL() string {
	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "dinehub")
	pass := getEnv("DB_PASSWORD", "dinehub")
	name := getEnv("DB_NAME", "dinehub")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

// RequestTimeout bounds store work for a request. The result keeps the
// parent's values but not its cancellation, so a client hanging up does not
// abort a half-finished signup or reset.
func RequestTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(parent), d)
}

// ParseDuration accepts Go durations plus a day suffix, e.g. "90d".
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid day count %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	num, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return num
}

func getEnvBool(key string, fallback bool, errs *[]error) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
