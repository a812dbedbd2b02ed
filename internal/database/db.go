// Package database persists trades, scan history, and daily IV snapshots in
// PostgreSQL.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// DB wraps the PostgreSQL connection pool.
type DB struct {
	Pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewDB connects to PostgreSQL and verifies the connection.
func NewDB(ctx context.Context, url string, logger zerolog.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("database: parsing connection string: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("database: creating connection pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database: ping failed: %w", err)
	}

	log := logger.With().Str("component", "Database").Logger()
	log.Info().Msg("connected to PostgreSQL")

	return &DB{Pool: pool, logger: log}, nil
}

// Close releases the pool.
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.logger.Info().Msg("database connection closed")
	}
}

// RunMigrations creates the schema if it does not exist yet.
func (db *DB) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS trade_log (
			trade_id UUID PRIMARY KEY,
			symbol TEXT NOT NULL,
			spread_type TEXT NOT NULL,
			short_symbol TEXT NOT NULL,
			long_symbol TEXT NOT NULL,
			short_strike DOUBLE PRECISION NOT NULL,
			long_strike DOUBLE PRECISION NOT NULL,
			lot_size INTEGER NOT NULL,
			entry_credit DOUBLE PRECISION NOT NULL,
			sl_pct DOUBLE PRECISION NOT NULL,
			target_pct DOUBLE PRECISION NOT NULL,
			expiry DATE NOT NULL,
			status TEXT NOT NULL DEFAULT 'OPEN',
			exit_reason TEXT,
			exit_debit DOUBLE PRECISION,
			pnl DOUBLE PRECISION,
			opened_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			closed_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_log_status ON trade_log(status)`,

		`CREATE TABLE IF NOT EXISTS scan_history (
			scan_id UUID PRIMARY KEY,
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL,
			symbols_scanned INTEGER NOT NULL,
			evaluated JSONB NOT NULL,
			qualified JSONB NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS iv_history (
			symbol TEXT NOT NULL,
			trade_date DATE NOT NULL,
			atm_iv DOUBLE PRECISION,
			hv_20 DOUBLE PRECISION,
			spot DOUBLE PRECISION,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (symbol, trade_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_iv_history_symbol ON iv_history(symbol, trade_date)`,
	}

	for _, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("database: migration failed: %w", err)
		}
	}

	db.logger.Info().Int("statements", len(migrations)).Msg("migrations applied")
	return nil
}
