// Package store persists resolve-run history and repository sync records
// via GORM, the same connection-pooling and auto-migration pattern the
// platform's database layer uses for its own models.
package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config holds the Postgres connection settings mcvmd reads from
// internal/config.
type Config struct {
	Host            string
	Port            int
	Username        string
	Password        string
	DatabaseName    string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store wraps a GORM handle with the connection-pool defaults and
// migrations mcvmd needs.
type Store struct {
	DB     *gorm.DB
	Config *Config
}

// Open connects to Postgres, configures the connection pool, and verifies
// connectivity with a ping before returning.
func Open(cfg *Config) (*Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("store config is required")
	}
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "require"
	}

	var dsn string
	if cfg.Password != "" {
		dsn = fmt.Sprintf("postgresql://%s:%s@%s:%d/%s?sslmode=%s",
			cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.DatabaseName, cfg.SSLMode)
	} else {
		dsn = fmt.Sprintf("postgresql://%s@%s:%d/%s?sslmode=%s",
			cfg.Username, cfg.Host, cfg.Port, cfg.DatabaseName, cfg.SSLMode)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:      logger.Default.LogMode(logger.Warn),
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to store database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql db instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping store database: %w", err)
	}

	return &Store{DB: db, Config: cfg}, nil
}

// AutoMigrate creates/updates every model's table.
func (s *Store) AutoMigrate() error {
	models := []interface{}{
		&ResolveRunRecord{},
		&RepositorySyncRecord{},
	}
	for _, m := range models {
		if err := s.DB.AutoMigrate(m); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", m, err)
		}
	}
	return nil
}
