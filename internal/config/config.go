// Package config loads mcvmd's runtime configuration from the
// environment, the same getEnv-with-default idiom used throughout the
// platform's cmd entrypoints.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the environment-driven settings mcvmd loads at startup.
// mcvm-resolve takes its settings from flags instead, and mcvmd reads the
// MCVM_REPO_* repository locations directly rather than through Config.
type Config struct {
	Mode string // "development" or "production"
	Port string

	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ContentStoreRoot string
	WorkerPoolSize   int
	EvaluateTimeout  time.Duration
	ResolveTimeout   time.Duration

	LogLevel string
}

// Load builds a Config from the environment, applying the same defaults
// the platform's api-server/migrate commands use for the shared ones
// (DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME, DB_SSL_MODE, PORT).
func Load() (*Config, error) {
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	workers, err := strconv.Atoi(getEnv("WORKER_POOL_SIZE", "16"))
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_POOL_SIZE: %w", err)
	}
	evalTimeout, err := time.ParseDuration(getEnv("EVALUATE_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid EVALUATE_TIMEOUT: %w", err)
	}
	resolveTimeout, err := time.ParseDuration(getEnv("RESOLVE_TIMEOUT", "120s"))
	if err != nil {
		return nil, fmt.Errorf("invalid RESOLVE_TIMEOUT: %w", err)
	}

	return &Config{
		Mode: getEnv("APP_MODE", "development"),
		Port: getEnv("PORT", "8080"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     dbPort,
		DBUser:     getEnv("DB_USER", "mcvm"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "mcvm_resolver"),
		DBSSLMode:  getEnv("DB_SSL_MODE", "disable"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       redisDB,

		ContentStoreRoot: getEnv("CONTENT_STORE_ROOT", "/var/lib/mcvmd/content"),
		WorkerPoolSize:   workers,
		EvaluateTimeout:  evalTimeout,
		ResolveTimeout:   resolveTimeout,

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
