package watchdog

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"iv-sniper-bot/internal/kite"
)

// Config holds monitoring cadence and the expiry square-off rule.
type Config struct {
	PollInterval   time.Duration
	SquareOffTime  string // "HH:MM" in MarketTimezone
	MarketTimezone string
}

// Monitor polls open trades and closes them when an exit rule fires.
type Monitor struct {
	md     kite.MarketData
	store  TradeStore
	cfg    Config
	loc    *time.Location
	now    func() time.Time
	logger zerolog.Logger
}

// NewMonitor creates a trade monitor. An unknown timezone falls back to UTC
// with a warning rather than refusing to start.
func NewMonitor(md kite.MarketData, store TradeStore, cfg Config, logger zerolog.Logger) *Monitor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Minute
	}
	if cfg.SquareOffTime == "" {
		cfg.SquareOffTime = "14:30"
	}
	log := logger.With().Str("component", "Watchdog").Logger()

	loc, err := time.LoadLocation(cfg.MarketTimezone)
	if err != nil {
		log.Warn().Str("timezone", cfg.MarketTimezone).Err(err).Msg("timezone load failed, using UTC")
		loc = time.UTC
	}

	return &Monitor{
		md:     md,
		store:  store,
		cfg:    cfg,
		loc:    loc,
		now:    time.Now,
		logger: log,
	}
}

// Run polls until ctx is cancelled. One failed cycle logs and waits for the
// next tick; the loop itself never dies.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info().Dur("interval", m.cfg.PollInterval).Str("square_off", m.cfg.SquareOffTime).Msg("watchdog started")

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := m.Poll(ctx); err != nil {
			m.logger.Error().Err(err).Msg("poll cycle failed")
		}
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("watchdog stopped")
			return
		case <-ticker.C:
		}
	}
}

// Poll runs one evaluation cycle over all open trades. Leg quotes are
// fetched in a single batch call.
func (m *Monitor) Poll(ctx context.Context) error {
	trades, err := m.store.OpenTrades(ctx)
	if err != nil {
		return fmt.Errorf("watchdog: loading open trades: %w", err)
	}
	if len(trades) == 0 {
		return nil
	}

	var symbols []string
	for _, trade := range trades {
		symbols = append(symbols, "NFO:"+trade.ShortSymbol, "NFO:"+trade.LongSymbol)
	}
	quotes, err := m.md.Quote(ctx, symbols)
	if err != nil {
		return fmt.Errorf("watchdog: fetching leg quotes: %w", err)
	}

	now := m.now().In(m.loc)
	squareOff := squareOffAt(now, m.cfg.SquareOffTime)

	for _, trade := range trades {
		if err := m.evaluateTrade(ctx, trade, quotes, now, squareOff); err != nil {
			m.logger.Warn().Str("trade_id", trade.ID).Str("symbol", trade.Symbol).Err(err).Msg("trade skipped this cycle")
		}
	}
	return nil
}

func (m *Monitor) evaluateTrade(ctx context.Context, trade Trade, quotes map[string]kite.Quote, now, squareOff time.Time) error {
	shortQuote, shortOK := quotes["NFO:"+trade.ShortSymbol]
	longQuote, longOK := quotes["NFO:"+trade.LongSymbol]
	if !shortOK || !longOK || shortQuote.LastPrice <= 0 || longQuote.LastPrice <= 0 {
		return fmt.Errorf("%w: %s / %s", ErrQuoteUnavailable, trade.ShortSymbol, trade.LongSymbol)
	}

	debit := shortQuote.LastPrice - longQuote.LastPrice
	decision := EvaluateExit(trade, debit, now, squareOff)

	m.logger.Debug().
		Str("trade_id", trade.ID).
		Str("symbol", trade.Symbol).
		Float64("debit", decision.Debit).
		Float64("pnl", decision.PnL).
		Bool("exit", decision.Exit).
		Msg("trade evaluated")

	if !decision.Exit {
		return nil
	}

	m.logger.Info().
		Str("trade_id", trade.ID).
		Str("symbol", trade.Symbol).
		Str("reason", string(decision.Reason)).
		Float64("exit_debit", decision.Debit).
		Float64("pnl", decision.PnL).
		Msg("closing trade")

	if err := m.store.CloseTrade(ctx, trade.ID, decision.Reason, decision.Debit, decision.PnL); err != nil {
		return fmt.Errorf("watchdog: closing trade %s: %w", trade.ID, err)
	}
	return nil
}
