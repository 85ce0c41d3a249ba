package main

import (
	"context"
	"expvar"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"mpesa/internal/auth"
	"mpesa/internal/db"
	"mpesa/internal/mpesa"
	"mpesa/internal/ratelimiter"
	"mpesa/internal/reference"
	"mpesa/internal/store"
)

var version = "0.3.0"

// LoadRateLimiterConfig retrieves rate limiter settings from environment variables
func LoadRateLimiterConfig(logger *zap.SugaredLogger) ratelimiter.Config {
	return ratelimiter.Config{
		RequestsPerTimeFrame: envInt(logger, "RATELIMITER_REQUESTS_COUNT", 60),
		TimeFrame:            time.Minute,
		Enabled:              envBool(logger, "RATE_LIMITER_ENABLED", true),
	}
}

func envInt(logger *zap.SugaredLogger, key string, fallback int) int {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		logger.Warnw("invalid integer in environment, using default", "key", key, "value", val, "default", fallback)
		return fallback
	}
	return parsed
}

func envBool(logger *zap.SugaredLogger, key string, fallback bool) bool {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		logger.Warnw("invalid boolean in environment, using default", "key", key, "value", val, "default", fallback)
		return fallback
	}
	return parsed
}

func envString(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

// NewLogger creates a new zap logger with color.
func NewLogger(level zapcore.Level) *zap.SugaredLogger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.AddSync(os.Stdout), level)

	return zap.New(core).Sugar()
}

func loadConfig(logger *zap.SugaredLogger) config {
	return config{
		addr: envString("ADDR", ":8080"),
		env:  envString("ENV", "development"),
		db: dbConfig{
			addr:        os.Getenv("DB_ADDR"),
			maxConns:    int32(envInt(logger, "DB_MAX_CONNS", 10)),
			maxIdleTime: envString("DB_MAX_IDLE_TIME", "15m"),
		},
		mpesa: mpesa.Config{
			Mode:                mpesa.Mode(envString("MPESA_MODE", string(mpesa.ModeSandbox))),
			APIKey:              os.Getenv("MPESA_API_KEY"),
			PublicKey:           os.Getenv("MPESA_PUBLIC_KEY"),
			Origin:              os.Getenv("MPESA_ORIGIN"),
			ServiceProviderCode: os.Getenv("MPESA_SERVICE_PROVIDER_CODE"),
		},
		auth: authConfig{
			basic: auth.Credentials{
				Username:     os.Getenv("AUTH_BASIC_USER"),
				PasswordHash: os.Getenv("AUTH_BASIC_PASS_HASH"),
			},
			token: tokenConfig{
				secret:        os.Getenv("AUTH_TOKEN_SECRET"),
				refreshSecret: os.Getenv("AUTH_TOKEN_REFRESH_SECRET"),
				iss:           "mpesa",
			},
		},
		referenceSecret: os.Getenv("REFERENCE_SECRET"),
		rateLimiter:     LoadRateLimiterConfig(logger),
	}
}

func main() {
	logger := NewLogger(zapcore.InfoLevel)
	defer logger.Sync()

	// .env is optional; real deployments inject the environment directly
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warnw("could not load .env", "err", err)
	}

	cfg := loadConfig(logger)
	if cfg.env == "development" {
		logger = NewLogger(zapcore.DebugLevel)
	}

	if cfg.auth.token.secret == "" || cfg.auth.token.refreshSecret == "" {
		logger.Fatal("AUTH_TOKEN_SECRET and AUTH_TOKEN_REFRESH_SECRET are required")
	}

	// An incomplete gateway configuration is not fatal: it can be completed at
	// runtime through PATCH /v1/mpesa/configuration.
	if err := cfg.mpesa.Validate(); err != nil {
		logger.Warnw("mpesa configuration incomplete", "err", err)
	}

	var journal store.Journal = store.NopJournal{}
	var pool *pgxpool.Pool
	if cfg.db.addr != "" {
		var err error
		pool, err = db.New(cfg.db.addr, cfg.db.maxConns, cfg.db.maxIdleTime)
		if err != nil {
			logger.Fatal(err)
		}
		defer pool.Close()
		logger.Info("database connection pool established")

		if err := db.Migrate(context.Background(), pool); err != nil {
			logger.Fatal(err)
		}
		journal = store.NewJournalStore(pool)
	} else {
		logger.Warn("DB_ADDR not set, mpesa exchanges will not be journaled")
	}

	refs, err := reference.NewGenerator(cfg.referenceSecret)
	if err != nil {
		logger.Fatal(fmt.Errorf("REFERENCE_SECRET: %w", err))
	}

	rateLimiter := ratelimiter.NewFixedWindowLimiter(
		cfg.rateLimiter.RequestsPerTimeFrame,
		cfg.rateLimiter.TimeFrame,
	)
	defer rateLimiter.Stop()

	jwtAuthenticator := auth.NewJWTAuthenticator(
		cfg.auth.token.secret,
		cfg.auth.token.refreshSecret,
		cfg.auth.token.iss,
		cfg.auth.token.iss,
	)

	app := newApplication(cfg, logger, journal, refs, jwtAuthenticator, rateLimiter,
		mpesa.NewHTTPTransport(nil, mpesa.DefaultTimeout))

	// Metrics collected http://localhost:8080/v1/debug/vars
	expvar.NewString("version").Set(version)
	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))
	if pool != nil {
		expvar.Publish("database", expvar.Func(func() any {
			s := pool.Stat()
			return map[string]any{
				"total_conns":    s.TotalConns(),
				"idle_conns":     s.IdleConns(),
				"acquired_conns": s.AcquiredConns(),
				"max_conns":      s.MaxConns(),
			}
		}))
	}

	mux := app.mount()

	logger.Fatal(app.run(mux))
}
