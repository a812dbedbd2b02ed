package volatility

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"

	"iv-sniper-bot/internal/kite"
)

func TestIVPercentile(t *testing.T) {
	history := []float64{10, 20, 30, 40}

	cases := []struct {
		current float64
		want    float64
	}{
		{35, 75},
		{45, 100},
		{5, 0},
		{20, 25}, // equal readings do not count as below
	}
	for _, tc := range cases {
		if got := IVPercentile(history, tc.current); got != tc.want {
			t.Errorf("IVPercentile(%.0f) = %.1f, want %.1f", tc.current, got, tc.want)
		}
	}

	if got := IVPercentile(nil, 30); got != 0 {
		t.Errorf("empty history percentile = %.1f, want 0", got)
	}
}

func ivHistoryOf(n int, base float64) []float64 {
	history := make([]float64, n)
	for i := range history {
		history[i] = base + float64(i)
	}
	return history
}

func TestScoreUsesIVPWhenHistorySuffices(t *testing.T) {
	scorer := NewScorer(kite.NewMockClient(), ScorerConfig{IVPMinDays: 30}, zerolog.Nop())

	history := ivHistoryOf(30, 20) // 20..49
	currentIV := 45.5              // 26 readings below
	score, err := scorer.Score(context.Background(), "TEST", history, &currentIV, nil, 1)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	if score.Method != MethodIVP {
		t.Errorf("method = %s, want %s", score.Method, MethodIVP)
	}
	want := 26.0 / 30 * 100
	if math.Abs(score.Value-want) > 1e-9 {
		t.Errorf("IVP = %.4f, want %.4f", score.Value, want)
	}
}

func TestScoreIVPRequiresCurrentIV(t *testing.T) {
	scorer := NewScorer(kite.NewMockClient(), ScorerConfig{IVPMinDays: 30}, zerolog.Nop())

	_, err := scorer.Score(context.Background(), "TEST", ivHistoryOf(30, 20), nil, nil, 1)
	if !errors.Is(err, ErrInsufficientData) {
		t.Errorf("got %v, want ErrInsufficientData", err)
	}
}

func TestScoreFallsBackToHVRank(t *testing.T) {
	mc := kite.NewMockClient()
	closes := make([]float64, 300)
	for i := range closes {
		// Volatility regime shifts halfway so the HV series is not flat.
		swing := 1.0
		if i >= 150 {
			swing = 5.0
		}
		closes[i] = 100 + swing*float64(i%3)
	}
	mc.CandlesByToken[7] = candlesWithCloses(closes...)

	scorer := NewScorer(mc, ScorerConfig{IVPMinDays: 30, HVWindow: 20}, zerolog.Nop())

	score, err := scorer.Score(context.Background(), "TEST", ivHistoryOf(5, 20), nil, nil, 7)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if score.Method != MethodHVRank {
		t.Errorf("method = %s, want %s", score.Method, MethodHVRank)
	}
	if score.Value < 0 || score.Value > 100 {
		t.Errorf("HV Rank %.2f out of [0, 100]", score.Value)
	}
	if score.HV20 == nil {
		t.Error("expected HV20 to be filled from the rank computation")
	}
}

func TestScoreHVRankFlatSeriesIsNeutral(t *testing.T) {
	mc := kite.NewMockClient()
	closes := make([]float64, 100)
	for i := range closes {
		closes[i] = 250
	}
	mc.CandlesByToken[7] = candlesWithCloses(closes...)

	scorer := NewScorer(mc, ScorerConfig{IVPMinDays: 30, HVWindow: 20}, zerolog.Nop())

	score, err := scorer.Score(context.Background(), "TEST", nil, nil, nil, 7)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if score.Value != 50 {
		t.Errorf("flat series rank = %.2f, want neutral 50", score.Value)
	}
}

func TestScoreHVRankWithoutToken(t *testing.T) {
	scorer := NewScorer(kite.NewMockClient(), ScorerConfig{IVPMinDays: 30}, zerolog.Nop())

	_, err := scorer.Score(context.Background(), "TEST", nil, nil, nil, 0)
	if !errors.Is(err, ErrInsufficientData) {
		t.Errorf("got %v, want ErrInsufficientData", err)
	}
}
