package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"iv-sniper-bot/internal/analyst"
	"iv-sniper-bot/internal/scanner"
	"iv-sniper-bot/internal/watchdog"
)

// Repository provides data access over the pool. It satisfies
// scanner.IVStore, scanner.ScanStore, and watchdog.TradeStore.
type Repository struct {
	db *DB
}

var (
	_ scanner.IVStore     = (*Repository)(nil)
	_ scanner.ScanStore   = (*Repository)(nil)
	_ watchdog.TradeStore = (*Repository)(nil)
)

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// OpenTrade records a new trade from a recommendation and returns its ID.
func (r *Repository) OpenTrade(ctx context.Context, rec *analyst.Recommendation) (string, error) {
	tradeID := uuid.NewString()
	query := `
		INSERT INTO trade_log (
			trade_id, symbol, spread_type, short_symbol, long_symbol,
			short_strike, long_strike, lot_size, entry_credit,
			sl_pct, target_pct, expiry, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		tradeID, rec.Candidate.Symbol, string(rec.Spread.Type),
		rec.Spread.ShortInstrument.Tradingsymbol, rec.Spread.LongInstrument.Tradingsymbol,
		rec.Spread.ShortStrike, rec.Spread.LongStrike, rec.Spread.LotSize,
		rec.Economics.NetCredit, rec.Economics.SLPct, rec.Economics.TargetPct,
		rec.Spread.Expiry, StatusOpen,
	)
	if err != nil {
		return "", fmt.Errorf("database: inserting trade: %w", err)
	}
	return tradeID, nil
}

// OpenTrades returns all trades still under watch.
func (r *Repository) OpenTrades(ctx context.Context) ([]watchdog.Trade, error) {
	query := `
		SELECT trade_id, symbol, spread_type, short_symbol, long_symbol,
		       short_strike, long_strike, lot_size, entry_credit,
		       sl_pct, target_pct, expiry, opened_at
		FROM trade_log
		WHERE status = $1
		ORDER BY opened_at
	`
	rows, err := r.db.Pool.Query(ctx, query, StatusOpen)
	if err != nil {
		return nil, fmt.Errorf("database: querying open trades: %w", err)
	}
	defer rows.Close()

	var trades []watchdog.Trade
	for rows.Next() {
		var t watchdog.Trade
		if err := rows.Scan(
			&t.ID, &t.Symbol, &t.SpreadType, &t.ShortSymbol, &t.LongSymbol,
			&t.ShortStrike, &t.LongStrike, &t.LotSize, &t.EntryCredit,
			&t.SLPct, &t.TargetPct, &t.Expiry, &t.OpenedAt,
		); err != nil {
			return nil, fmt.Errorf("database: scanning trade row: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// CloseTrade marks a trade closed with its exit details.
func (r *Repository) CloseTrade(ctx context.Context, tradeID string, reason watchdog.ExitReason, exitDebit, pnl float64) error {
	query := `
		UPDATE trade_log
		SET status = $2, exit_reason = $3, exit_debit = $4, pnl = $5, closed_at = NOW()
		WHERE trade_id = $1 AND status = $6
	`
	tag, err := r.db.Pool.Exec(ctx, query, tradeID, StatusClosed, string(reason), exitDebit, pnl, StatusOpen)
	if err != nil {
		return fmt.Errorf("database: closing trade: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("database: trade %s not open", tradeID)
	}
	return nil
}

// SaveScan persists one scan result for history and audit.
func (r *Repository) SaveScan(ctx context.Context, result *scanner.Result) error {
	evaluated, err := json.Marshal(result.Evaluated)
	if err != nil {
		return fmt.Errorf("database: encoding evaluated candidates: %w", err)
	}
	qualified, err := json.Marshal(result.Qualified)
	if err != nil {
		return fmt.Errorf("database: encoding qualified candidates: %w", err)
	}

	query := `
		INSERT INTO scan_history (scan_id, started_at, finished_at, symbols_scanned, evaluated, qualified)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = r.db.Pool.Exec(ctx, query,
		result.ScanID, result.StartTime, result.EndTime, result.SymbolsScanned, evaluated, qualified)
	if err != nil {
		return fmt.Errorf("database: inserting scan history: %w", err)
	}
	return nil
}

// UpsertIVReading records a daily IV snapshot, replacing any existing row
// for the same symbol and date.
func (r *Repository) UpsertIVReading(ctx context.Context, reading IVReading) error {
	query := `
		INSERT INTO iv_history (symbol, trade_date, atm_iv, hv_20, spot, recorded_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (symbol, trade_date)
		DO UPDATE SET atm_iv = EXCLUDED.atm_iv, hv_20 = EXCLUDED.hv_20,
		              spot = EXCLUDED.spot, recorded_at = NOW()
	`
	_, err := r.db.Pool.Exec(ctx, query,
		reading.Symbol, reading.TradeDate, reading.ATMIV, reading.HV20, reading.Spot)
	if err != nil {
		return fmt.Errorf("database: upserting IV reading: %w", err)
	}
	return nil
}

// LoggedSymbols returns the symbols that already have a snapshot for the
// given date, so an interrupted logging run can resume.
func (r *Repository) LoggedSymbols(ctx context.Context, date time.Time) (map[string]bool, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT symbol FROM iv_history WHERE trade_date = $1`, dateOnly(date))
	if err != nil {
		return nil, fmt.Errorf("database: querying logged symbols: %w", err)
	}
	defer rows.Close()

	logged := make(map[string]bool)
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("database: scanning symbol: %w", err)
		}
		logged[symbol] = true
	}
	return logged, rows.Err()
}

// IVHistory returns all known ATM IV readings in chronological order. Days
// where the IV solve failed are stored as NULL and skipped here.
func (r *Repository) IVHistory(ctx context.Context, symbol string) ([]float64, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT atm_iv FROM iv_history
		 WHERE symbol = $1 AND atm_iv IS NOT NULL
		 ORDER BY trade_date`, symbol)
	if err != nil {
		return nil, fmt.Errorf("database: querying IV history: %w", err)
	}
	defer rows.Close()

	var history []float64
	for rows.Next() {
		var iv float64
		if err := rows.Scan(&iv); err != nil {
			return nil, fmt.Errorf("database: scanning IV value: %w", err)
		}
		history = append(history, iv)
	}
	return history, rows.Err()
}

// LatestIV returns the most recent ATM IV and 20-day HV snapshot. Both are
// nil when the symbol has never been logged.
func (r *Repository) LatestIV(ctx context.Context, symbol string) (iv, hv20 *float64, err error) {
	row := r.db.Pool.QueryRow(ctx,
		`SELECT atm_iv, hv_20 FROM iv_history
		 WHERE symbol = $1
		 ORDER BY trade_date DESC
		 LIMIT 1`, symbol)

	if err := row.Scan(&iv, &hv20); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("database: querying latest IV: %w", err)
	}
	return iv, hv20, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
