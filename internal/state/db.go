// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS refresh_snapshots (
			snapshot_id SERIAL PRIMARY KEY,
			refresh_id UUID NOT NULL,
			refresh_number INTEGER NOT NULL,
			tier VARCHAR(16) NOT NULL,
			started_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			duration_ms BIGINT NOT NULL,
			pool_count INTEGER NOT NULL,
			average_apr DECIMAL(20, 8) NOT NULL,
			sources_succeeded TEXT[],
			sources_failed TEXT[],
			top_pools JSONB
		);
		CREATE INDEX IF NOT EXISTS idx_refresh_snapshots_started ON refresh_snapshots(started_at DESC);
		CREATE INDEX IF NOT EXISTS idx_refresh_snapshots_tier ON refresh_snapshots(tier, started_at DESC);
		CREATE INDEX IF NOT EXISTS idx_refresh_snapshots_refresh_id ON refresh_snapshots(refresh_id);

		CREATE TABLE IF NOT EXISTS strategy_preset_versions (
			preset_id SERIAL PRIMARY KEY,
			version INTEGER NOT NULL DEFAULT 1,
			tier VARCHAR(16) NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			params JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT uq_strategy_preset_tier_version UNIQUE (tier, version)
		);
		CREATE INDEX IF NOT EXISTS idx_strategy_preset_tier_active ON strategy_preset_versions(tier, is_active, created_at DESC);

		-- Refresh counter table for persistent global refresh numbering
		CREATE TABLE IF NOT EXISTS refresh_counter (
			id INTEGER PRIMARY KEY DEFAULT 1,
			current_refresh INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT single_row_check CHECK (id = 1)
		);

		-- Insert initial row if it doesn't exist
		INSERT INTO refresh_counter (id, current_refresh)
		VALUES (1, 0)
		ON CONFLICT (id) DO NOTHING;
	`
	_, err := DB.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := DB.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}
