package risk

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"iv-sniper-bot/internal/analyst"
	"iv-sniper-bot/internal/kite"
	"iv-sniper-bot/internal/scanner"
	"iv-sniper-bot/internal/strikes"
)

func testConfig() Config {
	return Config{
		CapitalRiskLimitPct: 10,
		NiftyCrashPct:       2,
		BidAskSpreadPct:     5,
		MinCapital:          25_000,
	}
}

func testRecommendation() *analyst.Recommendation {
	return &analyst.Recommendation{
		Candidate: scanner.Candidate{Symbol: "AAA", Spot: 100},
		Spread: strikes.Spread{
			Type:            strikes.BullPut,
			ShortStrike:     95,
			LongStrike:      90,
			ShortInstrument: kite.Instrument{Tradingsymbol: "AAA95PE"},
			LongInstrument:  kite.Instrument{Tradingsymbol: "AAA90PE"},
			LotSize:         50,
		},
		Economics: strikes.Economics{NetCredit: 1.5, MaxLoss: 175},
	}
}

func healthyMock() *kite.MockClient {
	mc := kite.NewMockClient()
	mc.AccountMargins = &kite.Margins{Available: 100_000}
	mc.QuoteBySymbol["NSE:NIFTY 50"] = kite.Quote{
		LastPrice: 24_950,
		OHLC:      kite.OHLC{Close: 25_000},
	}
	mc.QuoteBySymbol["NFO:AAA95PE"] = kite.Quote{
		LastPrice: 2.5, BestBid: 2.45, BestAsk: 2.55,
		UpperCircuitLimit: 20, LowerCircuitLimit: 0.05,
	}
	mc.QuoteBySymbol["NFO:AAA90PE"] = kite.Quote{
		LastPrice: 1.0, BestBid: 0.95, BestAsk: 1.05,
		UpperCircuitLimit: 15, LowerCircuitLimit: 0.05,
	}
	return mc
}

func TestApproveTradeHappyPath(t *testing.T) {
	g := NewGuard(healthyMock(), nil, testConfig(), zerolog.Nop())
	if err := g.ApproveTrade(context.Background(), testRecommendation()); err != nil {
		t.Errorf("ApproveTrade: %v", err)
	}
}

func TestCheckMarketCrashTrips(t *testing.T) {
	mc := healthyMock()
	// 3% below the previous close, past the 2% kill switch.
	mc.QuoteBySymbol["NSE:NIFTY 50"] = kite.Quote{
		LastPrice: 24_250,
		OHLC:      kite.OHLC{Close: 25_000},
	}

	g := NewGuard(mc, nil, testConfig(), zerolog.Nop())
	if err := g.ApproveTrade(context.Background(), testRecommendation()); !errors.Is(err, ErrMarketCrash) {
		t.Errorf("got %v, want ErrMarketCrash", err)
	}
}

type staticPrices map[int]float64

func (s staticPrices) LastPrice(token int) (float64, bool) {
	price, ok := s[token]
	return price, ok
}

func TestCheckMarketCrashPrefersStreamedPrice(t *testing.T) {
	mc := healthyMock() // REST quote looks healthy
	stream := staticPrices{niftyIndexToken: 24_000}

	g := NewGuard(mc, stream, testConfig(), zerolog.Nop())
	if err := g.CheckMarketCrash(context.Background()); !errors.Is(err, ErrMarketCrash) {
		t.Errorf("got %v, want ErrMarketCrash from the streamed price", err)
	}
}

func TestCheckLegLiquidityWideSpread(t *testing.T) {
	mc := healthyMock()
	mc.QuoteBySymbol["NFO:AAA95PE"] = kite.Quote{
		LastPrice: 2.5, BestBid: 2.0, BestAsk: 3.0, // 40% of mid
		UpperCircuitLimit: 20, LowerCircuitLimit: 0.05,
	}

	g := NewGuard(mc, nil, testConfig(), zerolog.Nop())
	if err := g.ApproveTrade(context.Background(), testRecommendation()); !errors.Is(err, ErrSpreadTooWide) {
		t.Errorf("got %v, want ErrSpreadTooWide", err)
	}
}

func TestCheckLegLiquidityCircuitPinned(t *testing.T) {
	mc := healthyMock()
	mc.QuoteBySymbol["NFO:AAA90PE"] = kite.Quote{
		LastPrice: 15, BestBid: 14.9, BestAsk: 15,
		UpperCircuitLimit: 15, LowerCircuitLimit: 0.05,
	}

	g := NewGuard(mc, nil, testConfig(), zerolog.Nop())
	if err := g.ApproveTrade(context.Background(), testRecommendation()); !errors.Is(err, ErrCircuitRisk) {
		t.Errorf("got %v, want ErrCircuitRisk", err)
	}
}

func TestCheckCapitalBelowMinimum(t *testing.T) {
	mc := healthyMock()
	mc.AccountMargins = &kite.Margins{Available: 20_000}

	g := NewGuard(mc, nil, testConfig(), zerolog.Nop())
	if err := g.ApproveTrade(context.Background(), testRecommendation()); !errors.Is(err, ErrInsufficientCapital) {
		t.Errorf("got %v, want ErrInsufficientCapital", err)
	}
}

func TestCheckCapitalRiskLimit(t *testing.T) {
	g := NewGuard(healthyMock(), nil, testConfig(), zerolog.Nop())

	// 100k available at 10% per trade caps the max loss at 10k.
	if err := g.CheckCapital(context.Background(), 15_000); !errors.Is(err, ErrInsufficientCapital) {
		t.Errorf("got %v, want ErrInsufficientCapital", err)
	}
	if err := g.CheckCapital(context.Background(), 5_000); err != nil {
		t.Errorf("CheckCapital under limit: %v", err)
	}
}
