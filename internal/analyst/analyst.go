// Package analyst turns qualified scan candidates into concrete credit-spread
// recommendations by combining the Volume Profile walls with strike selection
// and live premiums.
package analyst

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"iv-sniper-bot/internal/kite"
	"iv-sniper-bot/internal/profile"
	"iv-sniper-bot/internal/scanner"
	"iv-sniper-bot/internal/strikes"
	"iv-sniper-bot/internal/trend"
)

var (
	// ErrNoWall means the profile produced no HVN wall on the side the
	// trend needs.
	ErrNoWall = errors.New("analyst: no HVN wall on required side")

	// ErrPremiumUnavailable means the short leg has no live premium, so
	// the spread economics cannot be computed.
	ErrPremiumUnavailable = errors.New("analyst: short leg premium unavailable")
)

// Recommendation is a fully costed trade idea: the candidate that produced
// it, the structural levels behind it, and the spread with its economics.
type Recommendation struct {
	Candidate   scanner.Candidate `json:"candidate"`
	POC         float64           `json:"poc"`
	ValueHigh   float64           `json:"value_high"`
	ValueLow    float64           `json:"value_low"`
	Wall        float64           `json:"wall"`
	Spread      strikes.Spread    `json:"spread"`
	Economics   strikes.Economics `json:"economics"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// Config holds analysis tuning.
type Config struct {
	LookbackDays int     // Days of candles for the volume profile
	WidthStrikes int     // Strikes between short and long legs
	SLPct        float64 // Stop loss as % of credit
	TargetPct    float64 // Target as % of credit
}

// Analyst builds recommendations for qualified candidates.
type Analyst struct {
	md       kite.MarketData
	master   *kite.Master
	engine   *profile.Engine
	selector *strikes.Selector
	cfg      Config
	logger   zerolog.Logger
}

func New(md kite.MarketData, master *kite.Master, engine *profile.Engine, selector *strikes.Selector, cfg Config, logger zerolog.Logger) *Analyst {
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 60
	}
	if cfg.WidthStrikes <= 0 {
		cfg.WidthStrikes = 1
	}
	return &Analyst{
		md:       md,
		master:   master,
		engine:   engine,
		selector: selector,
		cfg:      cfg,
		logger:   logger.With().Str("component", "Analyst").Logger(),
	}
}

// Analyze builds one recommendation. The candidate must carry a directional
// trend; Unknown is rejected before any network call.
func (a *Analyst) Analyze(ctx context.Context, candidate scanner.Candidate) (*Recommendation, error) {
	if candidate.Trend != trend.Bullish && candidate.Trend != trend.Bearish {
		return nil, fmt.Errorf("%w: %q", strikes.ErrUnknownTrend, candidate.Trend)
	}

	tokens, err := a.master.NSETokenMap(ctx)
	if err != nil {
		return nil, fmt.Errorf("analyst: building token map: %w", err)
	}
	token, ok := tokens[candidate.Symbol]
	if !ok {
		return nil, fmt.Errorf("%w: no NSE token for %s", profile.ErrInsufficientData, candidate.Symbol)
	}

	candles, err := a.md.HistoricalData(ctx, token, "day", a.cfg.LookbackDays)
	if err != nil {
		return nil, fmt.Errorf("analyst: fetching candles for %s: %w", candidate.Symbol, err)
	}

	prof, err := a.engine.Build(candles, 0)
	if err != nil {
		return nil, fmt.Errorf("analyst: building profile for %s: %w", candidate.Symbol, err)
	}

	walls := a.engine.FindHVNWalls(prof, candidate.Spot)

	var wall *float64
	if candidate.Trend == trend.Bullish {
		wall = walls.SupportWall
	} else {
		wall = walls.ResistanceWall
	}
	if wall == nil {
		return nil, fmt.Errorf("%w: %s trend for %s", ErrNoWall, candidate.Trend, candidate.Symbol)
	}

	chain, err := a.master.OptionChain(ctx, candidate.Symbol)
	if err != nil {
		return nil, fmt.Errorf("analyst: fetching option chain for %s: %w", candidate.Symbol, err)
	}

	spread, err := a.selector.Select(*wall, candidate.Spot, candidate.Trend, chain, time.Time{}, a.cfg.WidthStrikes)
	if err != nil {
		return nil, err
	}

	shortPremium, longPremium, err := a.legPremiums(ctx, spread)
	if err != nil {
		return nil, err
	}

	width := spread.ShortStrike - spread.LongStrike
	if width < 0 {
		width = -width
	}
	econ := strikes.ComputeSpreadPnL(shortPremium, longPremium, spread.LotSize, width, a.cfg.SLPct, a.cfg.TargetPct)

	a.logger.Info().
		Str("symbol", candidate.Symbol).
		Str("spread", string(spread.Type)).
		Float64("short_strike", spread.ShortStrike).
		Float64("long_strike", spread.LongStrike).
		Float64("net_credit", econ.NetCredit).
		Float64("max_loss", econ.MaxLoss).
		Msg("recommendation built")

	return &Recommendation{
		Candidate:   candidate,
		POC:         prof.POC,
		ValueHigh:   prof.VAHigh,
		ValueLow:    prof.VALow,
		Wall:        *wall,
		Spread:      *spread,
		Economics:   econ,
		GeneratedAt: time.Now(),
	}, nil
}

// AnalyzeAll runs Analyze over every candidate and keeps going past
// per-symbol failures.
func (a *Analyst) AnalyzeAll(ctx context.Context, candidates []scanner.Candidate) []Recommendation {
	var recs []Recommendation
	for _, candidate := range candidates {
		rec, err := a.Analyze(ctx, candidate)
		if err != nil {
			a.logger.Warn().Str("symbol", candidate.Symbol).Err(err).Msg("candidate dropped")
			continue
		}
		recs = append(recs, *rec)
	}
	return recs
}

// legPremiums fetches live premiums for both legs. A dead short leg kills
// the recommendation; a missing long premium degrades to zero, which only
// understates the credit.
func (a *Analyst) legPremiums(ctx context.Context, spread *strikes.Spread) (shortPremium, longPremium float64, err error) {
	shortKey := "NFO:" + spread.ShortInstrument.Tradingsymbol
	longKey := "NFO:" + spread.LongInstrument.Tradingsymbol

	ltp, err := a.md.LTP(ctx, []string{shortKey, longKey})
	if err != nil {
		return 0, 0, fmt.Errorf("analyst: fetching leg premiums: %w", err)
	}

	shortPremium, ok := ltp[shortKey]
	if !ok || shortPremium <= 0 {
		return 0, 0, fmt.Errorf("%w: %s", ErrPremiumUnavailable, shortKey)
	}
	longPremium = ltp[longKey]
	if longPremium < 0 {
		longPremium = 0
	}
	return shortPremium, longPremium, nil
}
