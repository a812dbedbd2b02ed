package volatility

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"iv-sniper-bot/internal/kite"
)

// Method identifies which scoring regime produced a score.
type Method string

const (
	MethodIVP    Method = "IVP"
	MethodHVRank Method = "HV_RANK"
)

// Score is the volatility-richness verdict for one symbol, 0-100.
type Score struct {
	Method    Method
	Value     float64
	CurrentIV *float64
	HV20      *float64
}

// ScorerConfig holds the scoring thresholds.
type ScorerConfig struct {
	IVPMinDays     int // Min IV history readings before IVP applies
	HVWindow       int // Rolling window for the HV series
	HVLookbackDays int // Calendar days of candles for the HV Rank fallback
}

// Scorer computes IV Percentile when enough IV history exists and falls
// back to HV Rank from one year of daily candles otherwise.
type Scorer struct {
	md     kite.MarketData
	cfg    ScorerConfig
	logger zerolog.Logger
}

// NewScorer creates a volatility scorer.
func NewScorer(md kite.MarketData, cfg ScorerConfig, logger zerolog.Logger) *Scorer {
	if cfg.IVPMinDays <= 0 {
		cfg.IVPMinDays = 30
	}
	if cfg.HVWindow <= 0 {
		cfg.HVWindow = 20
	}
	if cfg.HVLookbackDays <= 0 {
		cfg.HVLookbackDays = 365
	}
	return &Scorer{
		md:     md,
		cfg:    cfg,
		logger: logger.With().Str("component", "VolatilityScorer").Logger(),
	}
}

// IVPercentile is the share of historical readings strictly below the
// current reading, as a percentage.
func IVPercentile(ivHistory []float64, currentIV float64) float64 {
	if len(ivHistory) == 0 {
		return 0
	}
	below := 0
	for _, iv := range ivHistory {
		if iv < currentIV {
			below++
		}
	}
	return float64(below) / float64(len(ivHistory)) * 100
}

// Score evaluates one symbol. ivHistory is the chronological list of stored
// ATM IV readings; currentIV and hv20 may be nil when no snapshot exists.
// Soft failures come back as ErrInsufficientData so the caller can skip.
func (s *Scorer) Score(ctx context.Context, symbol string, ivHistory []float64, currentIV, hv20 *float64, nseToken int) (*Score, error) {
	if len(ivHistory) >= s.cfg.IVPMinDays {
		if currentIV == nil {
			return nil, fmt.Errorf("%w: %s has %d days of IV history but no current IV",
				ErrInsufficientData, symbol, len(ivHistory))
		}
		ivp := IVPercentile(ivHistory, *currentIV)
		s.logger.Debug().Str("symbol", symbol).Float64("ivp", ivp).
			Int("history_days", len(ivHistory)).Msg("scored via IVP")
		return &Score{Method: MethodIVP, Value: ivp, CurrentIV: currentIV, HV20: hv20}, nil
	}

	s.logger.Debug().Str("symbol", symbol).Int("history_days", len(ivHistory)).
		Msg("IV history too short, falling back to HV Rank")

	rank, currentHV, err := s.hvRank(ctx, symbol, nseToken)
	if err != nil {
		return nil, err
	}

	if hv20 == nil {
		hv20 = &currentHV
	}
	return &Score{Method: MethodHVRank, Value: rank, CurrentIV: currentIV, HV20: hv20}, nil
}

// hvRank normalises the latest rolling HV against its one-year min/max.
// Flat volatility scores a neutral 50.
func (s *Scorer) hvRank(ctx context.Context, symbol string, nseToken int) (float64, float64, error) {
	if nseToken == 0 {
		return 0, 0, fmt.Errorf("%w: no NSE token for %s", ErrInsufficientData, symbol)
	}

	candles, err := s.md.HistoricalData(ctx, nseToken, "day", s.cfg.HVLookbackDays)
	if err != nil {
		return 0, 0, fmt.Errorf("fetching candles for %s: %w", symbol, err)
	}

	series := HVSeries(candles, s.cfg.HVWindow)
	if len(series) < 2 {
		return 0, 0, fmt.Errorf("%w: HV series for %s has %d points", ErrInsufficientData, symbol, len(series))
	}

	current := series[len(series)-1]
	minHV, maxHV := series[0], series[0]
	for _, hv := range series[1:] {
		if hv < minHV {
			minHV = hv
		}
		if hv > maxHV {
			maxHV = hv
		}
	}

	if maxHV == minHV {
		return 50, current, nil
	}
	return (current - minHV) / (maxHV - minHV) * 100, current, nil
}
