package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	LockBackendDB    = "db"
	LockBackendRedis = "redis"

	defaultDatabasePath     = "data/fitness-planner.db"
	defaultPort             = "8080"
	defaultLogMode          = "development"
	defaultLockTTL          = 30 * time.Second
	defaultMetricsRetention = 30
)

// Config holds the configuration for the application.
type Config struct {
	DatabasePath string
	Port         string
	JWTSecret    string
	LogMode      string

	// Extend lock
	LockBackend string
	LockTTL     time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MetricsRetentionDays int
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// NewFromEnv creates a new Config object from environment variables.
func NewFromEnv() (*Config, error) {
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable not set")
	}

	lockBackend := strings.ToLower(getenv("LOCK_BACKEND", LockBackendDB))
	if lockBackend != LockBackendDB && lockBackend != LockBackendRedis {
		return nil, fmt.Errorf("LOCK_BACKEND must be %q or %q, got %q", LockBackendDB, LockBackendRedis, lockBackend)
	}

	redisAddr := getenv("REDIS_ADDR", "")
	if lockBackend == LockBackendRedis && redisAddr == "" {
		return nil, fmt.Errorf("REDIS_ADDR environment variable not set")
	}

	var redisDB int
	if v := getenv("REDIS_DB", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB %q: %w", v, err)
		}
		redisDB = n
	}

	lockTTL := defaultLockTTL
	if v := getenv("PLAN_LOCK_TTL", ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid PLAN_LOCK_TTL %q", v)
		}
		lockTTL = d
	}

	retention := defaultMetricsRetention
	if v := getenv("METRICS_RETENTION_DAYS", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid METRICS_RETENTION_DAYS %q", v)
		}
		retention = n
	}

	return &Config{
		DatabasePath:         getenv("DATABASE_PATH", defaultDatabasePath),
		Port:                 getenv("PORT", defaultPort),
		JWTSecret:            jwtSecret,
		LogMode:              getenv("LOG_MODE", defaultLogMode),
		LockBackend:          lockBackend,
		LockTTL:              lockTTL,
		RedisAddr:            redisAddr,
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              redisDB,
		MetricsRetentionDays: retention,
	}, nil
}
