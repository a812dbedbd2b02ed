package kite

import "context"

// MarketData is the broker surface the bot depends on. The HTTP client
// implements it for live use; MockClient implements it for tests.
//
// Empty or partial responses are soft failures: callers skip the symbol.
// Retry and backoff on rate limits is handled inside the implementation,
// callers never retry themselves.
type MarketData interface {
	// HistoricalData fetches daily candles for the trailing lookbackDays.
	HistoricalData(ctx context.Context, instrumentToken int, interval string, lookbackDays int) ([]Candle, error)

	// LTP returns last traded prices keyed by "EXCHANGE:TRADINGSYMBOL".
	LTP(ctx context.Context, symbols []string) (map[string]float64, error)

	// Quote returns full quotes keyed by "EXCHANGE:TRADINGSYMBOL".
	Quote(ctx context.Context, symbols []string) (map[string]Quote, error)

	// Instruments fetches the full instrument dump for an exchange.
	Instruments(ctx context.Context, exchange string) ([]Instrument, error)

	// Margins fetches the equity-segment account margin snapshot.
	Margins(ctx context.Context) (*Margins, error)
}
