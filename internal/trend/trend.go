// Package trend classifies a symbol's regime by comparing spot against a
// 50-day exponential moving average.
package trend

import "iv-sniper-bot/internal/kite"

// Direction is the detected market regime.
type Direction string

const (
	Bullish Direction = "Bullish"
	Bearish Direction = "Bearish"
	Unknown Direction = "Unknown"
)

// Result carries the trend verdict and the EMA it was judged against.
// EMA is nil when there were too few candles to compute it.
type Result struct {
	Trend Direction
	EMA   *float64
	Spot  float64
}

// EMA computes the exponential moving average of closing prices with the
// standard span smoothing (alpha = 2/(span+1), seeded from the first close).
// Returns false when fewer than span candles are available.
func EMA(candles []kite.Candle, span int) (float64, bool) {
	if span <= 0 || len(candles) < span {
		return 0, false
	}

	alpha := 2.0 / (float64(span) + 1)
	ema := candles[0].Close
	for _, c := range candles[1:] {
		ema = alpha*c.Close + (1-alpha)*ema
	}
	return ema, true
}

// Detect classifies the regime: Bullish when spot trades above the EMA,
// Bearish otherwise, Unknown when the EMA cannot be computed.
func Detect(candles []kite.Candle, spot float64, span int) Result {
	ema, ok := EMA(candles, span)
	if !ok {
		return Result{Trend: Unknown, Spot: spot}
	}

	direction := Bearish
	if spot > ema {
		direction = Bullish
	}
	return Result{Trend: direction, EMA: &ema, Spot: spot}
}
