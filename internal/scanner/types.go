package scanner

import (
	"context"
	"time"

	"iv-sniper-bot/internal/trend"
	"iv-sniper-bot/internal/volatility"
)

// Candidate is one evaluated symbol. Unqualified candidates are kept for
// audit; only qualified ones move on to the analysis pipeline.
type Candidate struct {
	Symbol    string            `json:"symbol"`
	Score     float64           `json:"score"`
	Method    volatility.Method `json:"method"`
	Trend     trend.Direction   `json:"trend"`
	EMA50     *float64          `json:"ema_50,omitempty"`
	Spot      float64           `json:"spot"`
	CurrentIV *float64          `json:"current_iv,omitempty"`
	Qualified bool              `json:"qualified"`
}

// Result aggregates one scan cycle.
type Result struct {
	ScanID         string        `json:"scan_id"`
	StartTime      time.Time     `json:"start_time"`
	EndTime        time.Time     `json:"end_time"`
	Duration       time.Duration `json:"duration"`
	SymbolsScanned int           `json:"symbols_scanned"`
	Evaluated      []Candidate   `json:"evaluated"` // every scored symbol, audit trail
	Qualified      []Candidate   `json:"qualified"` // sorted by score desc, truncated
}

// ProgressFunc reports scan progress. It may be invoked from the scan's
// aggregation goroutine while workers are still running, so implementations
// must be safe for concurrent use with the caller's own goroutines.
type ProgressFunc func(processed, total int, message string, qualified int)

// IVStore reads stored daily IV snapshots for scoring.
type IVStore interface {
	// IVHistory returns all stored ATM IV readings in chronological order.
	IVHistory(ctx context.Context, symbol string) ([]float64, error)

	// LatestIV returns the most recent ATM IV and 20-day HV readings.
	// Either may be nil when no snapshot exists.
	LatestIV(ctx context.Context, symbol string) (iv, hv20 *float64, err error)
}

// ScanStore persists scan results for history and audit.
type ScanStore interface {
	SaveScan(ctx context.Context, result *Result) error
}

// Config holds scanner tuning.
type Config struct {
	MinScore      float64       // Minimum IVP / HV Rank to qualify
	MaxCandidates int           // Qualified list is truncated to this
	WorkerCount   int           // Concurrent workers
	TrendLookback int           // Days of candles for trend detection
	EMASpan       int           // EMA span for trend detection
	MinJitter     time.Duration // Randomized pre-request delay bounds
	MaxJitter     time.Duration
}
