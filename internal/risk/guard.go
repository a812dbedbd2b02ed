// Package risk gates recommendations with pre-trade safety checks: market
// kill switch, liquidity, circuit proximity, and capital limits.
package risk

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"iv-sniper-bot/internal/analyst"
	"iv-sniper-bot/internal/kite"
)

var (
	// ErrMarketCrash means the index kill switch tripped.
	ErrMarketCrash = errors.New("risk: index crash kill switch tripped")

	// ErrSpreadTooWide means the short leg's bid-ask spread exceeds the
	// liquidity threshold.
	ErrSpreadTooWide = errors.New("risk: bid-ask spread too wide")

	// ErrCircuitRisk means a leg trades at or beyond its circuit limit.
	ErrCircuitRisk = errors.New("risk: leg at circuit limit")

	// ErrInsufficientCapital means the account cannot absorb the trade's
	// max loss within the configured limits.
	ErrInsufficientCapital = errors.New("risk: insufficient capital")
)

// niftyIndexToken is the NSE instrument token for the NIFTY 50 index,
// used when a streaming price source is wired in.
const niftyIndexToken = 256265

// PriceSource serves last prices from a streaming feed. The websocket
// ticker satisfies this; nil falls back to REST quotes.
type PriceSource interface {
	LastPrice(instrumentToken int) (float64, bool)
}

// Config holds the risk thresholds.
type Config struct {
	CapitalRiskLimitPct float64 // Max loss as % of available capital
	NiftyCrashPct       float64 // Kill switch when index is down more
	BidAskSpreadPct     float64 // Max short-leg spread as % of mid
	MinCapital          float64 // Refuse to trade below this balance
}

// Guard runs the pre-trade checks. Every check failure wraps one of the
// package sentinels so callers can classify with errors.Is.
type Guard struct {
	md     kite.MarketData
	prices PriceSource // optional
	cfg    Config
	logger zerolog.Logger
}

// NewGuard creates a risk guard. prices may be nil.
func NewGuard(md kite.MarketData, prices PriceSource, cfg Config, logger zerolog.Logger) *Guard {
	return &Guard{
		md:     md,
		prices: prices,
		cfg:    cfg,
		logger: logger.With().Str("component", "RiskGuard").Logger(),
	}
}

// ApproveTrade runs all checks against a recommendation. The first failing
// check rejects the trade; order is cheapest-first.
func (g *Guard) ApproveTrade(ctx context.Context, rec *analyst.Recommendation) error {
	if err := g.CheckMarketCrash(ctx); err != nil {
		return err
	}
	if err := g.CheckLegLiquidity(ctx, rec); err != nil {
		return err
	}
	if err := g.CheckCapital(ctx, rec.Economics.MaxLoss); err != nil {
		return err
	}
	g.logger.Info().Str("symbol", rec.Candidate.Symbol).Msg("trade approved")
	return nil
}

// CheckMarketCrash trips when the NIFTY 50 index is down more than the
// configured percentage from the previous close. Prefers the streaming
// feed; falls back to a REST quote.
func (g *Guard) CheckMarketCrash(ctx context.Context) error {
	if g.cfg.NiftyCrashPct <= 0 {
		return nil
	}

	const indexKey = "NSE:NIFTY 50"
	quotes, err := g.md.Quote(ctx, []string{indexKey})
	if err != nil {
		return fmt.Errorf("risk: fetching index quote: %w", err)
	}
	quote, ok := quotes[indexKey]
	if !ok || quote.OHLC.Close <= 0 {
		g.logger.Warn().Msg("index quote unavailable, crash check skipped")
		return nil
	}

	last := quote.LastPrice
	if g.prices != nil {
		if streamed, ok := g.prices.LastPrice(niftyIndexToken); ok && streamed > 0 {
			last = streamed
		}
	}

	dropPct := (quote.OHLC.Close - last) / quote.OHLC.Close * 100
	if dropPct >= g.cfg.NiftyCrashPct {
		return fmt.Errorf("%w: NIFTY down %.2f%% (limit %.2f%%)", ErrMarketCrash, dropPct, g.cfg.NiftyCrashPct)
	}
	return nil
}

// CheckLegLiquidity rejects the trade when the short leg's bid-ask spread
// is too wide or either leg is pinned at a circuit limit.
func (g *Guard) CheckLegLiquidity(ctx context.Context, rec *analyst.Recommendation) error {
	shortKey := "NFO:" + rec.Spread.ShortInstrument.Tradingsymbol
	longKey := "NFO:" + rec.Spread.LongInstrument.Tradingsymbol

	quotes, err := g.md.Quote(ctx, []string{shortKey, longKey})
	if err != nil {
		return fmt.Errorf("risk: fetching leg quotes: %w", err)
	}

	for _, key := range []string{shortKey, longKey} {
		quote, ok := quotes[key]
		if !ok {
			return fmt.Errorf("%w: no quote for %s", ErrCircuitRisk, key)
		}
		if quote.UpperCircuitLimit > 0 && quote.LastPrice >= quote.UpperCircuitLimit {
			return fmt.Errorf("%w: %s at upper circuit %.2f", ErrCircuitRisk, key, quote.UpperCircuitLimit)
		}
		if quote.LowerCircuitLimit > 0 && quote.LastPrice <= quote.LowerCircuitLimit {
			return fmt.Errorf("%w: %s at lower circuit %.2f", ErrCircuitRisk, key, quote.LowerCircuitLimit)
		}
	}

	short := quotes[shortKey]
	if short.BestBid > 0 && short.BestAsk > short.BestBid {
		mid := (short.BestBid + short.BestAsk) / 2
		spreadPct := (short.BestAsk - short.BestBid) / mid * 100
		if g.cfg.BidAskSpreadPct > 0 && spreadPct > g.cfg.BidAskSpreadPct {
			return fmt.Errorf("%w: %s spread %.2f%% (limit %.2f%%)",
				ErrSpreadTooWide, shortKey, spreadPct, g.cfg.BidAskSpreadPct)
		}
	}
	return nil
}

// CheckCapital verifies the account can absorb the trade's max loss within
// the per-trade risk limit.
func (g *Guard) CheckCapital(ctx context.Context, maxLoss float64) error {
	margins, err := g.md.Margins(ctx)
	if err != nil {
		return fmt.Errorf("risk: fetching margins: %w", err)
	}

	available := margins.Available
	if available < g.cfg.MinCapital {
		return fmt.Errorf("%w: available %.0f below minimum %.0f", ErrInsufficientCapital, available, g.cfg.MinCapital)
	}

	limit := available * g.cfg.CapitalRiskLimitPct / 100
	if g.cfg.CapitalRiskLimitPct > 0 && maxLoss > limit {
		return fmt.Errorf("%w: max loss %.0f exceeds %.1f%% of capital (%.0f)",
			ErrInsufficientCapital, maxLoss, g.cfg.CapitalRiskLimitPct, limit)
	}
	if math.IsInf(maxLoss, 1) {
		return fmt.Errorf("%w: unbounded max loss", ErrInsufficientCapital)
	}
	return nil
}
