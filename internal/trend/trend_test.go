package trend

import (
	"math"
	"testing"

	"iv-sniper-bot/internal/kite"
)

func candlesWithCloses(closes ...float64) []kite.Candle {
	candles := make([]kite.Candle, len(closes))
	for i, c := range closes {
		candles[i] = kite.Candle{Close: c}
	}
	return candles
}

func TestEMASeededRecurrence(t *testing.T) {
	// span 3: alpha = 0.5, seeded from the first close.
	// 1 -> 0.5*2 + 0.5*1 = 1.5 -> 0.5*3 + 0.5*1.5 = 2.25
	ema, ok := EMA(candlesWithCloses(1, 2, 3), 3)
	if !ok {
		t.Fatal("EMA reported insufficient data")
	}
	if math.Abs(ema-2.25) > 1e-12 {
		t.Errorf("EMA = %.6f, want 2.25", ema)
	}
}

func TestEMATooFewCandles(t *testing.T) {
	if _, ok := EMA(candlesWithCloses(1, 2), 3); ok {
		t.Error("expected EMA to fail with fewer candles than span")
	}
}

func TestDetect(t *testing.T) {
	flat := make([]float64, 50)
	for i := range flat {
		flat[i] = 100
	}
	candles := candlesWithCloses(flat...)

	cases := []struct {
		name string
		spot float64
		want Direction
	}{
		{"spot above ema", 105, Bullish},
		{"spot below ema", 95, Bearish},
		{"spot at ema", 100, Bearish},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := Detect(candles, tc.spot, 50)
			if result.Trend != tc.want {
				t.Errorf("trend = %s, want %s", result.Trend, tc.want)
			}
			if result.EMA == nil {
				t.Fatal("expected EMA in result")
			}
			if *result.EMA != 100 {
				t.Errorf("EMA = %.2f, want 100", *result.EMA)
			}
		})
	}
}

func TestDetectUnknownWithShortHistory(t *testing.T) {
	result := Detect(candlesWithCloses(100, 101), 105, 50)
	if result.Trend != Unknown {
		t.Errorf("trend = %s, want %s", result.Trend, Unknown)
	}
	if result.EMA != nil {
		t.Errorf("expected nil EMA, got %.2f", *result.EMA)
	}
}
