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
// All decimal values are stored as TEXT in the engine's canonical 18-decimal
// string form so round-trips are exact.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS pool_record (
			id INTEGER PRIMARY KEY DEFAULT 1,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,

			-- Amp/gamma promotion schedule
			initial_amp TEXT NOT NULL, initial_gamma TEXT NOT NULL,
			future_amp TEXT NOT NULL, future_gamma TEXT NOT NULL,
			initial_time BIGINT NOT NULL, future_time BIGINT NOT NULL,

			-- Price state
			oracle_price TEXT NOT NULL, last_price TEXT NOT NULL,
			price_scale TEXT NOT NULL, last_price_update BIGINT NOT NULL,
			xcp_profit TEXT NOT NULL, xcp_profit_real TEXT NOT NULL,

			-- Pool balances and share supply (integer chain amounts)
			balance_0 TEXT NOT NULL, balance_1 TEXT NOT NULL,
			total_share TEXT NOT NULL,

			CONSTRAINT single_pool_check CHECK (id = 1)
		);

		CREATE TABLE IF NOT EXISTS observations (
			position INTEGER PRIMARY KEY,
			ts BIGINT NOT NULL,
			price TEXT NOT NULL,
			cumulative_price TEXT NOT NULL,
			cumulative_volume TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_observations_ts ON observations(ts DESC);

		CREATE TABLE IF NOT EXISTS observation_pending (
			id INTEGER PRIMARY KEY DEFAULT 1,
			ts BIGINT NOT NULL,
			base_amount TEXT NOT NULL,
			quote_amount TEXT NOT NULL,
			CONSTRAINT single_pending_check CHECK (id = 1)
		);

		CREATE TABLE IF NOT EXISTS balance_snapshots (
			height BIGINT PRIMARY KEY,
			snapshot_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			balance_0 TEXT NOT NULL,
			balance_1 TEXT NOT NULL,
			total_share TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS swap_receipts (
			receipt_id SERIAL PRIMARY KEY,
			height BIGINT NOT NULL,
			ts BIGINT NOT NULL,
			offer_asset VARCHAR(128) NOT NULL,
			ask_asset VARCHAR(128) NOT NULL,
			offer_amount TEXT NOT NULL,
			return_amount TEXT NOT NULL,
			spread_amount TEXT NOT NULL,
			total_fee TEXT NOT NULL,
			maker_fee TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_swap_receipts_height ON swap_receipts(height DESC);
		CREATE INDEX IF NOT EXISTS idx_swap_receipts_ts ON swap_receipts(ts DESC);

		-- Height counter for persistent block tracking across restarts
		CREATE TABLE IF NOT EXISTS height_counter (
			id INTEGER PRIMARY KEY DEFAULT 1,
			current_height BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT single_row_check CHECK (id = 1)
		);

		-- Insert initial row if it doesn't exist
		INSERT INTO height_counter (id, current_height)
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
