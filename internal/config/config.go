package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort              string
	ServerReadHeaderTimeout time.Duration
	ServerWriteTimeout      time.Duration
	ServerIdleTimeout       time.Duration
	RequestTimeout          time.Duration

	DatabaseURL    string
	DBMaxConns     int32
	DBMinConns     int32
	DBQueryTimeout time.Duration

	RedisURL     string
	CacheTimeout time.Duration

	JWTSecret        string
	JWTRefreshSecret string
	JWTIssuer        string
	JWTAccessTTL     time.Duration
	JWTRefreshTTL    time.Duration
	RefreshRotation  bool
	BcryptRounds     int

	CORSOrigins []string

	RateLimitWindow      time.Duration
	RateLimitMax         int
	AuthRateLimitWindow  time.Duration
	AuthRateLimitMax     int
	ResetRateLimitWindow time.Duration
	ResetRateLimitMax    int
	TrustProxyHops       int

	TokenCleanupSchedule string

	LogLevel  string
	LogFormat string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := &envReader{}
	cfg := &Config{
		ServerPort:              getEnv("SERVER_PORT", "8080"),
		ServerReadHeaderTimeout: env.getDuration("SERVER_READ_HEADER_TIMEOUT", 10*time.Second),
		ServerWriteTimeout:      env.getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:       env.getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:          env.getDuration("REQUEST_TIMEOUT", 15*time.Second),
		DatabaseURL:             strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:              int32(env.getInt("DB_MAX_CONNS", 10)),
		DBMinConns:              int32(env.getInt("DB_MIN_CONNS", 2)),
		DBQueryTimeout:          env.getDuration("DB_QUERY_TIMEOUT", 5*time.Second),
		RedisURL:                getEnv("REDIS_URL", "redis://localhost:6379"),
		CacheTimeout:            env.getDuration("CACHE_TIMEOUT", 2*time.Second),
		JWTSecret:               strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTRefreshSecret:        strings.TrimSpace(os.Getenv("JWT_REFRESH_SECRET")),
		JWTIssuer:               getEnv("JWT_ISSUER", "uec-launcher"),
		JWTAccessTTL:            env.getDuration("JWT_EXPIRES_IN", 24*time.Hour),
		JWTRefreshTTL:           env.getDuration("JWT_REFRESH_EXPIRES_IN", 7*24*time.Hour),
		RefreshRotation:         env.getBool("REFRESH_ROTATION", false),
		BcryptRounds:            env.getInt("BCRYPT_ROUNDS", 12),
		CORSOrigins:             splitCSV(getEnv("CORS_ORIGINS", "*")),
		RateLimitWindow:         env.getDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
		RateLimitMax:            env.getInt("RATE_LIMIT_MAX", 100),
		AuthRateLimitWindow:     env.getDuration("AUTH_RATE_LIMIT_WINDOW", 15*time.Minute),
		AuthRateLimitMax:        env.getInt("AUTH_RATE_LIMIT_MAX", 5),
		ResetRateLimitWindow:    env.getDuration("RESET_RATE_LIMIT_WINDOW", time.Hour),
		ResetRateLimitMax:       env.getInt("RESET_RATE_LIMIT_MAX", 3),
		TrustProxyHops:          env.getInt("TRUST_PROXY_HOPS", 1),
		TokenCleanupSchedule:    getEnv("TOKEN_CLEANUP_SCHEDULE", "@every 1h"),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		LogFormat:               getEnv("LOG_FORMAT", "pretty"),
	}

	if err := errors.Join(env.errs...); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if strings.TrimSpace(c.JWTRefreshSecret) == "" {
		return fmt.Errorf("JWT_REFRESH_SECRET is required")
	}

	if c.JWTSecret == c.JWTRefreshSecret {
		return fmt.Errorf("JWT_SECRET and JWT_REFRESH_SECRET must differ")
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.JWTAccessTTL <= 0 || c.JWTRefreshTTL <= 0 {
		return fmt.Errorf("JWT_EXPIRES_IN and JWT_REFRESH_EXPIRES_IN must be positive")
	}

	if c.BcryptRounds < 4 || c.BcryptRounds > 31 {
		return fmt.Errorf("BCRYPT_ROUNDS must be between 4 and 31")
	}

	if c.RequestTimeout <= 0 || c.DBQueryTimeout <= 0 || c.CacheTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT, DB_QUERY_TIMEOUT and CACHE_TIMEOUT must be positive")
	}

	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS/DB_MAX_CONNS are inconsistent")
	}

	limits := []struct {
		name   string
		max    int
		window time.Duration
	}{
		{"RATE_LIMIT", c.RateLimitMax, c.RateLimitWindow},
		{"AUTH_RATE_LIMIT", c.AuthRateLimitMax, c.AuthRateLimitWindow},
		{"RESET_RATE_LIMIT", c.ResetRateLimitMax, c.ResetRateLimitWindow},
	}
	for _, limit := range limits {
		if limit.max <= 0 || limit.window <= 0 {
			return fmt.Errorf("%s_MAX and %s_WINDOW must be positive", limit.name, limit.name)
		}
	}

	if c.TrustProxyHops < 0 {
		return fmt.Errorf("TRUST_PROXY_HOPS cannot be negative")
	}

	if strings.TrimSpace(c.TokenCleanupSchedule) == "" {
		return fmt.Errorf("TOKEN_CLEANUP_SCHEDULE cannot be empty")
	}

	return nil
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

// envReader parses typed variables and collects every malformed value so
// Load can report them together instead of falling back to defaults.
type envReader struct {
	errs []error
}

func (e *envReader) fail(key, raw string, err error) {
	e.errs = append(e.errs, fmt.Errorf("invalid %s %q: %w", key, raw, err))
}

func (e *envReader) getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		e.fail(key, raw, err)
		return fallback
	}

	return v
}

func (e *envReader) getBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		e.fail(key, raw, err)
		return fallback
	}

	return v
}

func (e *envReader) getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := ParseDuration(raw)
	if err != nil {
		e.fail(key, raw, err)
		return fallback
	}

	return v
}

// ParseDuration extends time.ParseDuration with a whole-day suffix ("7d").
func ParseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if days, ok := strings.CutSuffix(raw, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid day duration %q", raw)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}

	return time.ParseDuration(raw)
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
