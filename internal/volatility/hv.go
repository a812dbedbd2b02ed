package volatility

import (
	"fmt"
	"math"

	"iv-sniper-bot/internal/kite"
)

// TradingDaysPerYear is the annualisation factor for daily volatility.
const TradingDaysPerYear = 252

func logReturns(candles []kite.Candle) []float64 {
	if len(candles) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		prev := candles[i-1].Close
		cur := candles[i].Close
		if prev <= 0 || cur <= 0 {
			continue
		}
		returns = append(returns, math.Log(cur/prev))
	}
	return returns
}

// sampleStdDev is the ddof=1 standard deviation.
func sampleStdDev(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)

	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

// HistoricalVolatility computes annualised volatility from the most recent
// window of daily log returns. Needs window+1 candles for window returns.
func HistoricalVolatility(candles []kite.Candle, window int) (float64, error) {
	if len(candles) < window+1 {
		return 0, fmt.Errorf("%w: need %d candles for a %d-day window, got %d",
			ErrInsufficientData, window+1, window, len(candles))
	}

	returns := logReturns(candles)
	if len(returns) < window {
		return 0, fmt.Errorf("%w: only %d usable returns", ErrInsufficientData, len(returns))
	}

	recent := returns[len(returns)-window:]
	return sampleStdDev(recent) * math.Sqrt(TradingDaysPerYear), nil
}

// HVSeries returns the rolling annualised HV over the full candle history,
// one point per window ending at each day. Used for HV Rank.
func HVSeries(candles []kite.Candle, window int) []float64 {
	returns := logReturns(candles)
	if len(returns) < window {
		return nil
	}

	series := make([]float64, 0, len(returns)-window+1)
	for i := window; i <= len(returns); i++ {
		std := sampleStdDev(returns[i-window : i])
		series = append(series, std*math.Sqrt(TradingDaysPerYear))
	}
	return series
}
