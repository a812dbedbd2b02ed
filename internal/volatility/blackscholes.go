// Package volatility scores symbols by volatility richness (IV Percentile
// with an HV Rank fallback) and houses the Black-Scholes implied-volatility
// solver behind those scores.
package volatility

import (
	"errors"
	"math"
)

var (
	// ErrNoConvergence means the IV solver did not converge, usually deep
	// ITM/OTM options with no volatility sensitivity.
	ErrNoConvergence = errors.New("volatility: solver did not converge")

	// ErrInsufficientData means too few candles or history points to score.
	ErrInsufficientData = errors.New("volatility: insufficient data")
)

func normCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

func normPDF(x float64) float64 {
	return math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
}

func d1(spot, strike, t, r, sigma float64) float64 {
	return (math.Log(spot/strike) + (r+0.5*sigma*sigma)*t) / (sigma * math.Sqrt(t))
}

// BlackScholesPrice returns the theoretical option price. optionType is
// "CE" for calls and "PE" for puts, t is time to expiry in years.
func BlackScholesPrice(spot, strike, t, r, sigma float64, optionType string) float64 {
	dOne := d1(spot, strike, t, r, sigma)
	dTwo := dOne - sigma*math.Sqrt(t)

	if optionType == "CE" {
		return spot*normCDF(dOne) - strike*math.Exp(-r*t)*normCDF(dTwo)
	}
	return strike*math.Exp(-r*t)*normCDF(-dTwo) - spot*normCDF(-dOne)
}

// vega is the derivative of price with respect to sigma, used as the
// Newton-Raphson slope.
func vega(spot, strike, t, r, sigma float64) float64 {
	return spot * normPDF(d1(spot, strike, t, r, sigma)) * math.Sqrt(t)
}

const (
	ivInitialGuess  = 0.25
	ivMaxIterations = 100
	ivPrecision     = 1e-6
	ivMinVega       = 1e-12
	ivMaxSigma      = 5.0
)

// ImpliedVolatility inverts Black-Scholes via Newton-Raphson to extract IV
// from a market price. Returns ErrNoConvergence when vega collapses or
// sigma runs away; ErrInsufficientData when the inputs cannot price at all.
func ImpliedVolatility(optionPrice, spot, strike, timeToExpiryYears, riskFreeRate float64, optionType string) (float64, error) {
	if timeToExpiryYears <= 0 || optionPrice <= 0 {
		return 0, ErrInsufficientData
	}

	sigma := ivInitialGuess
	for i := 0; i < ivMaxIterations; i++ {
		price := BlackScholesPrice(spot, strike, timeToExpiryYears, riskFreeRate, sigma, optionType)
		v := vega(spot, strike, timeToExpiryYears, riskFreeRate, sigma)

		if v < ivMinVega {
			return 0, ErrNoConvergence
		}

		diff := price - optionPrice
		if math.Abs(diff) < ivPrecision {
			return sigma, nil
		}

		sigma -= diff / v

		if sigma <= 0 {
			sigma = 0.001
		} else if sigma > ivMaxSigma {
			return 0, ErrNoConvergence
		}
	}

	return 0, ErrNoConvergence
}
