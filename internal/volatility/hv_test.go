package volatility

import (
	"errors"
	"math"
	"testing"

	"iv-sniper-bot/internal/kite"
)

func candlesWithCloses(closes ...float64) []kite.Candle {
	candles := make([]kite.Candle, len(closes))
	for i, c := range closes {
		candles[i] = kite.Candle{Close: c, Volume: 1000}
	}
	return candles
}

func TestHistoricalVolatilityFlatSeries(t *testing.T) {
	candles := candlesWithCloses(100, 100, 100, 100, 100, 100)
	hv, err := HistoricalVolatility(candles, 5)
	if err != nil {
		t.Fatalf("HistoricalVolatility: %v", err)
	}
	if hv != 0 {
		t.Errorf("flat series HV = %.6f, want 0", hv)
	}
}

func TestHistoricalVolatilityAlternatingSeries(t *testing.T) {
	// Returns alternate +ln(1.1) and -ln(1.1): mean 0, known stdev.
	candles := candlesWithCloses(100, 110, 100, 110, 100)
	hv, err := HistoricalVolatility(candles, 4)
	if err != nil {
		t.Fatalf("HistoricalVolatility: %v", err)
	}

	a := math.Log(1.1)
	want := math.Sqrt(4*a*a/3) * math.Sqrt(TradingDaysPerYear)
	if math.Abs(hv-want) > 1e-9 {
		t.Errorf("HV = %.9f, want %.9f", hv, want)
	}
}

func TestHistoricalVolatilityTooFewCandles(t *testing.T) {
	candles := candlesWithCloses(100, 101, 102)
	if _, err := HistoricalVolatility(candles, 20); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("got %v, want ErrInsufficientData", err)
	}
}

func TestHVSeriesLength(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + float64(i%7)
	}
	series := HVSeries(candlesWithCloses(closes...), 20)

	// 30 candles give 29 returns and 29-20+1 rolling windows.
	if len(series) != 10 {
		t.Errorf("series length = %d, want 10", len(series))
	}
}

func TestHVSeriesTooShort(t *testing.T) {
	if series := HVSeries(candlesWithCloses(100, 101, 102), 20); series != nil {
		t.Errorf("expected nil series, got %d points", len(series))
	}
}
