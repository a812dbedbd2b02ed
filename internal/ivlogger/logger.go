// Package ivlogger records one ATM implied-volatility snapshot per symbol
// per trading day. The scanner's IV Percentile method only becomes usable
// once enough daily snapshots have accumulated.
package ivlogger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"iv-sniper-bot/internal/database"
	"iv-sniper-bot/internal/kite"
	"iv-sniper-bot/internal/strikes"
	"iv-sniper-bot/internal/volatility"
)

// Store is the persistence the logger needs.
type Store interface {
	UpsertIVReading(ctx context.Context, reading database.IVReading) error
	LoggedSymbols(ctx context.Context, date time.Time) (map[string]bool, error)
}

// hvCandleLookbackDays is the calendar span requested for the HV
// computation. Daily dumps only contain trading days, so the span must be
// far wider than the HV window or weekends and holidays starve it.
const hvCandleLookbackDays = 365

var indexUnderlyings = map[string]bool{
	"NIFTY":      true,
	"BANKNIFTY":  true,
	"FINNIFTY":   true,
	"MIDCPNIFTY": true,
	"NIFTYNXT50": true,
}

// Config holds snapshot tuning.
type Config struct {
	RiskFreeRate float64
	HVWindow     int
	MinJitter    time.Duration
	MaxJitter    time.Duration
}

// Logger walks the F&O universe once and records each symbol's ATM IV and
// 20-day HV. Runs are resume-safe: symbols already logged today are skipped.
type Logger struct {
	md     kite.MarketData
	master *kite.Master
	store  Store
	cfg    Config
	logger zerolog.Logger
}

func New(md kite.MarketData, master *kite.Master, store Store, cfg Config, logger zerolog.Logger) *Logger {
	if cfg.RiskFreeRate <= 0 {
		cfg.RiskFreeRate = 0.07
	}
	if cfg.HVWindow <= 0 {
		cfg.HVWindow = 20
	}
	if cfg.MaxJitter <= 0 {
		cfg.MinJitter = 100 * time.Millisecond
		cfg.MaxJitter = time.Second
	}
	return &Logger{
		md:     md,
		master: master,
		store:  store,
		cfg:    cfg,
		logger: logger.With().Str("component", "IVLogger").Logger(),
	}
}

// Run snapshots every non-index F&O underlying. A failed symbol is logged
// and skipped; the run continues. Returns the number of symbols recorded.
func (l *Logger) Run(ctx context.Context) (int, error) {
	today := time.Now()

	underlyings, err := l.master.FnOUnderlyings(ctx)
	if err != nil {
		return 0, fmt.Errorf("ivlogger: fetching F&O universe: %w", err)
	}
	tokens, err := l.master.NSETokenMap(ctx)
	if err != nil {
		return 0, fmt.Errorf("ivlogger: building token map: %w", err)
	}
	logged, err := l.store.LoggedSymbols(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("ivlogger: loading logged symbols: %w", err)
	}

	recorded := 0
	for _, u := range underlyings {
		if indexUnderlyings[u.Symbol] || logged[u.Symbol] {
			continue
		}
		select {
		case <-ctx.Done():
			return recorded, ctx.Err()
		default:
		}

		l.jitter(ctx)
		if err := l.snapshotSymbol(ctx, u.Symbol, tokens[u.Symbol], today); err != nil {
			l.logger.Warn().Str("symbol", u.Symbol).Err(err).Msg("snapshot failed")
			continue
		}
		recorded++
	}

	l.logger.Info().Int("recorded", recorded).Int("already_logged", len(logged)).Msg("IV logging run complete")
	return recorded, nil
}

// snapshotSymbol solves ATM IV from the nearest-monthly call closest to spot
// and pairs it with the trailing HV. A failed IV solve still records the
// row with a NULL IV so the day is not retried forever.
func (l *Logger) snapshotSymbol(ctx context.Context, symbol string, nseToken int, today time.Time) error {
	ltp, err := l.md.LTP(ctx, []string{"NSE:" + symbol})
	if err != nil {
		return fmt.Errorf("fetching spot: %w", err)
	}
	spot := ltp["NSE:"+symbol]
	if spot <= 0 {
		return fmt.Errorf("%w: no spot price", volatility.ErrInsufficientData)
	}

	chain, err := l.master.OptionChain(ctx, symbol)
	if err != nil {
		return fmt.Errorf("fetching option chain: %w", err)
	}
	expiry, err := strikes.NearestMonthlyExpiry(chain, today)
	if err != nil {
		return err
	}

	atm := atmCall(chain, expiry, spot)
	if atm == nil {
		return fmt.Errorf("%w: no ATM call for expiry %s", volatility.ErrInsufficientData, expiry.Format("2006-01-02"))
	}

	reading := database.IVReading{
		Symbol:    symbol,
		TradeDate: today,
		Spot:      spot,
	}

	optLTP, err := l.md.LTP(ctx, []string{"NFO:" + atm.Tradingsymbol})
	if err != nil {
		return fmt.Errorf("fetching option premium: %w", err)
	}
	optionPrice := optLTP["NFO:"+atm.Tradingsymbol]

	// On expiry day the expiry timestamp (midnight) is already behind the
	// run time; clamp to one day so the solve still has a usable T.
	daysToExpiry := expiry.Sub(today).Hours() / 24
	if daysToExpiry < 1 {
		daysToExpiry = 1
	}
	yearsToExpiry := daysToExpiry / 365
	iv, err := volatility.ImpliedVolatility(optionPrice, spot, atm.Strike, yearsToExpiry, l.cfg.RiskFreeRate, kite.InstrumentCE)
	if err != nil {
		l.logger.Debug().Str("symbol", symbol).Err(err).Msg("IV solve failed, recording NULL")
	} else {
		reading.ATMIV = &iv
	}

	if nseToken != 0 {
		candles, err := l.md.HistoricalData(ctx, nseToken, "day", hvCandleLookbackDays)
		if err == nil {
			if hv, hvErr := volatility.HistoricalVolatility(candles, l.cfg.HVWindow); hvErr == nil {
				reading.HV20 = &hv
			}
		} else if !errors.Is(err, context.Canceled) {
			l.logger.Debug().Str("symbol", symbol).Err(err).Msg("HV candles unavailable")
		}
	}

	return l.store.UpsertIVReading(ctx, reading)
}

// atmCall picks the call at the target expiry whose strike is closest to
// spot.
func atmCall(chain []kite.Instrument, expiry time.Time, spot float64) *kite.Instrument {
	var best *kite.Instrument
	bestDist := math.Inf(1)
	for i := range chain {
		inst := &chain[i]
		if inst.InstrumentType != kite.InstrumentCE || inst.Expiry.IsZero() {
			continue
		}
		ey, em, ed := inst.Expiry.Date()
		ty, tm, td := expiry.Date()
		if ey != ty || em != tm || ed != td {
			continue
		}
		if d := math.Abs(inst.Strike - spot); d < bestDist {
			bestDist = d
			best = inst
		}
	}
	return best
}

func (l *Logger) jitter(ctx context.Context) {
	span := l.cfg.MaxJitter - l.cfg.MinJitter
	delay := l.cfg.MinJitter
	if span > 0 {
		delay += time.Duration(rand.Int63n(int64(span)))
	}
	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
}
