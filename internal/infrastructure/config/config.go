// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds settings shared by the server, worker and migrate commands.
type Config struct {
	AppPort string
	AppEnv  string

	LogLevel string

	// DatabaseURL empty selects the in-memory store
	DatabaseURL    string
	DBMaxConns     int
	DBMinConns     int
	MigrationsPath string

	// RedisAddr empty disables the per-order call lock
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	OrderLockTTL  time.Duration

	// JWTSecret empty trusts the X-User-ID header
	JWTSecret string

	// WriterRoles, when set, are required on every mutating route (JWT identity only)
	WriterRoles []string

	ReconcileInterval time.Duration
	ShutdownTimeout   time.Duration
}

// Load reads the environment, after an optional .env file in the working directory.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppPort:           getEnv("APP_PORT", "8080"),
		AppEnv:            getEnv("APP_ENV", "development"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		DBMaxConns:        getEnvInt("DB_MAX_CONNS", 25),
		DBMinConns:        getEnvInt("DB_MIN_CONNS", 2),
		MigrationsPath:    getEnv("MIGRATIONS_PATH", "migrations"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		OrderLockTTL:      getEnvDuration("ORDER_LOCK_TTL", 30*time.Second),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		WriterRoles:       getEnvList("WRITER_ROLES"),
		ReconcileInterval: getEnvDuration("RECONCILE_INTERVAL", 5*time.Minute),
		ShutdownTimeout:   getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Development reports whether the process runs in development mode.
func (c *Config) Development() bool {
	return c.AppEnv == "development"
}

// UsesPostgres reports whether a database is configured.
func (c *Config) UsesPostgres() bool {
	return c.DatabaseURL != ""
}

func (c *Config) validate() error {
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.ReconcileInterval <= 0 {
		return fmt.Errorf("RECONCILE_INTERVAL must be positive")
	}
	if len(c.WriterRoles) > 0 && c.JWTSecret == "" {
		return fmt.Errorf("WRITER_ROLES requires JWT_SECRET")
	}
	if c.OrderLockTTL <= 0 {
		return fmt.Errorf("ORDER_LOCK_TTL must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.Atoi(value); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
