// Package profile builds price/volume histograms (Volume Profiles) from
// daily candles and derives Point of Control, Value Area and High-Volume-Node
// walls from them.
package profile

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"iv-sniper-bot/internal/kite"
)

// ErrInsufficientData means the candle set is too small or too illiquid to
// produce a meaningful profile.
var ErrInsufficientData = errors.New("profile: insufficient data")

// Bin is one price level of the histogram.
type Bin struct {
	Price  float64
	Volume float64
}

// VolumeProfile is the traded-volume distribution over a candle window.
// Invariants: VALow <= POC <= VAHigh and the bin volumes sum to TotalVolume.
type VolumeProfile struct {
	Bins        []Bin // sorted by price ascending
	POC         float64
	VAHigh      float64
	VALow       float64
	TotalVolume float64
	BinSize     float64
	ADV         float64
}

// Config holds the profile thresholds.
type Config struct {
	ValueAreaPct float64 // Value Area accumulates this % of total volume
	HVNMult      float64 // HVN threshold = this x mean bin volume
	MinADV       float64 // Skip instruments with avg daily volume below this
}

// Engine builds volume profiles. It is a pure function of its inputs:
// identical candles always produce an identical profile.
type Engine struct {
	cfg    Config
	logger zerolog.Logger
}

// NewEngine creates a profile engine.
func NewEngine(cfg Config, logger zerolog.Logger) *Engine {
	if cfg.ValueAreaPct <= 0 {
		cfg.ValueAreaPct = 70
	}
	if cfg.HVNMult <= 0 {
		cfg.HVNMult = 1.5
	}
	return &Engine{
		cfg:    cfg,
		logger: logger.With().Str("component", "VolumeProfile").Logger(),
	}
}

const minCandles = 10

// Build constructs the profile. binSize <= 0 selects the Freedman-Diaconis
// width automatically. Each candle's volume is spread uniformly across every
// bin its [low, high] range touches.
func (e *Engine) Build(candles []kite.Candle, binSize float64) (*VolumeProfile, error) {
	if len(candles) < minCandles {
		return nil, fmt.Errorf("%w: got %d candles, need %d", ErrInsufficientData, len(candles), minCandles)
	}

	var volSum float64
	var volDays int
	for _, c := range candles {
		if c.Volume > 0 {
			volSum += c.Volume
			volDays++
		}
	}
	if volDays == 0 {
		return nil, fmt.Errorf("%w: all candles have zero volume", ErrInsufficientData)
	}

	adv := volSum / float64(volDays)
	if adv < e.cfg.MinADV {
		e.logger.Debug().Float64("adv", adv).Float64("min_adv", e.cfg.MinADV).Msg("skipping illiquid instrument")
		return nil, fmt.Errorf("%w: ADV %.0f below threshold %.0f", ErrInsufficientData, adv, e.cfg.MinADV)
	}

	if binSize <= 0 {
		closes := make([]float64, len(candles))
		for i, c := range candles {
			closes[i] = c.Close
		}
		binSize = freedmanDiaconisWidth(closes)
	}

	bins := make(map[float64]float64)
	for _, c := range candles {
		if c.Volume <= 0 || c.High <= c.Low {
			continue
		}

		lowBin := math.Floor(c.Low/binSize) * binSize
		highBin := math.Floor(c.High/binSize) * binSize
		numBins := math.Max(1, math.Round((highBin-lowBin)/binSize)+1)
		volPerBin := c.Volume / numBins

		// The epsilon keeps float drift from dropping the topmost bin.
		for price := lowBin; price <= highBin+binSize*0.01; price += binSize {
			bins[round2(price)] += volPerBin
		}
	}

	if len(bins) == 0 {
		return nil, fmt.Errorf("%w: no volume bins generated", ErrInsufficientData)
	}

	prices := make([]float64, 0, len(bins))
	for price := range bins {
		prices = append(prices, price)
	}
	sort.Float64s(prices)

	sorted := make([]Bin, len(prices))
	var total float64
	poc := prices[0]
	var pocVol float64
	for i, price := range prices {
		vol := bins[price]
		sorted[i] = Bin{Price: price, Volume: vol}
		total += vol
		if vol > pocVol {
			pocVol = vol
			poc = price
		}
	}

	vaHigh, vaLow := valueArea(sorted, poc, total, e.cfg.ValueAreaPct)

	return &VolumeProfile{
		Bins:        sorted,
		POC:         poc,
		VAHigh:      vaHigh,
		VALow:       vaLow,
		TotalVolume: total,
		BinSize:     binSize,
		ADV:         adv,
	}, nil
}

// valueArea expands outward from the POC until the target share of volume
// is captured, always taking the heavier side (ties go up). This matches
// the standard TPO value-area construction.
func valueArea(bins []Bin, poc, total, pct float64) (vaHigh, vaLow float64) {
	target := total * pct / 100

	pocIdx := 0
	best := math.Inf(1)
	for i, b := range bins {
		if d := math.Abs(b.Price - poc); d < best {
			best = d
			pocIdx = i
		}
	}

	accumulated := bins[pocIdx].Volume
	upper := pocIdx + 1
	lower := pocIdx - 1
	vaHigh, vaLow = poc, poc

	for accumulated < target {
		var volUp, volDown float64
		if upper < len(bins) {
			volUp = bins[upper].Volume
		}
		if lower >= 0 {
			volDown = bins[lower].Volume
		}

		if volUp == 0 && volDown == 0 {
			break
		}

		if volUp >= volDown {
			accumulated += volUp
			vaHigh = bins[upper].Price
			upper++
		} else {
			accumulated += volDown
			vaLow = bins[lower].Price
			lower--
		}
	}
	return vaHigh, vaLow
}

// freedmanDiaconisWidth picks a data-adaptive histogram bin width:
// 2 x IQR x n^(-1/3), clamped to [0.5, 200]. A zero IQR (flat price
// series) falls back to 0.5% of the median close, at least 1.0.
func freedmanDiaconisWidth(closes []float64) float64 {
	sorted := append([]float64(nil), closes...)
	sort.Float64s(sorted)

	n := len(sorted)
	iqr := quantile(sorted, 0.75) - quantile(sorted, 0.25)
	if iqr == 0 || n == 0 {
		return math.Max(1.0, round2(quantile(sorted, 0.5)*0.005))
	}

	width := 2 * iqr * math.Pow(float64(n), -1.0/3.0)
	width = math.Max(0.5, math.Min(200, width))
	return round2(width)
}

// quantile interpolates linearly between order statistics, matching the
// numpy default.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	frac := pos - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
