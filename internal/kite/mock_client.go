package kite

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// MockClient provides scripted market data for development and testing.
// Unset symbols behave like soft API failures (empty responses).
type MockClient struct {
	mu sync.RWMutex

	CandlesByToken map[int][]Candle
	LTPBySymbol    map[string]float64
	QuoteBySymbol  map[string]Quote
	ByExchange     map[string][]Instrument
	AccountMargins *Margins

	// Err, when set, is returned from every call. Simulates a dead session.
	Err error

	calls map[string]int
}

// NewMockClient creates an empty mock client.
func NewMockClient() *MockClient {
	return &MockClient{
		CandlesByToken: make(map[int][]Candle),
		LTPBySymbol:    make(map[string]float64),
		QuoteBySymbol:  make(map[string]Quote),
		ByExchange:     make(map[string][]Instrument),
		calls:          make(map[string]int),
	}
}

func (mc *MockClient) record(method string) {
	mc.mu.Lock()
	mc.calls[method]++
	mc.mu.Unlock()
}

// Calls returns how many times a method was invoked.
func (mc *MockClient) Calls(method string) int {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.calls[method]
}

func (mc *MockClient) HistoricalData(ctx context.Context, instrumentToken int, interval string, lookbackDays int) ([]Candle, error) {
	mc.record("HistoricalData")
	if mc.Err != nil {
		return nil, mc.Err
	}
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.CandlesByToken[instrumentToken], nil
}

func (mc *MockClient) LTP(ctx context.Context, symbols []string) (map[string]float64, error) {
	mc.record("LTP")
	if mc.Err != nil {
		return nil, mc.Err
	}
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	out := make(map[string]float64)
	for _, s := range symbols {
		if price, ok := mc.LTPBySymbol[s]; ok {
			out[s] = price
		}
	}
	return out, nil
}

func (mc *MockClient) Quote(ctx context.Context, symbols []string) (map[string]Quote, error) {
	mc.record("Quote")
	if mc.Err != nil {
		return nil, mc.Err
	}
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	out := make(map[string]Quote)
	for _, s := range symbols {
		if q, ok := mc.QuoteBySymbol[s]; ok {
			out[s] = q
		}
	}
	return out, nil
}

func (mc *MockClient) Instruments(ctx context.Context, exchange string) ([]Instrument, error) {
	mc.record("Instruments")
	if mc.Err != nil {
		return nil, mc.Err
	}
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.ByExchange[exchange], nil
}

func (mc *MockClient) Margins(ctx context.Context) (*Margins, error) {
	mc.record("Margins")
	if mc.Err != nil {
		return nil, mc.Err
	}
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	if mc.AccountMargins == nil {
		return nil, errors.New("kite: no margin data")
	}
	m := *mc.AccountMargins
	return &m, nil
}

var _ MarketData = (*MockClient)(nil)

// NewSimulatedClient returns a mock pre-loaded with a small scripted market
// so mock-mode runs complete end to end: account margins for the session
// preflight, the index quote the crash check reads, one F&O underlying with
// an accumulation zone below spot, and a full option chain with premiums
// and two-sided quotes.
func NewSimulatedClient() *MockClient {
	mc := NewMockClient()

	now := time.Now()
	expiry := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local).AddDate(0, 0, 28)

	mc.AccountMargins = &Margins{Net: 500_000, Available: 500_000}
	mc.QuoteBySymbol["NSE:NIFTY 50"] = Quote{
		LastPrice: 24_950,
		OHLC:      OHLC{Open: 25_010, High: 25_060, Low: 24_900, Close: 25_000},
	}

	const underlying = "RELIANCE"
	const nseToken = 738_561
	const spot = 2_900.0

	mc.ByExchange["NSE"] = []Instrument{{
		InstrumentToken: nseToken,
		Tradingsymbol:   underlying,
		Name:            underlying,
		Segment:         "NSE",
		Exchange:        "NSE",
	}}
	mc.ByExchange["NFO"] = []Instrument{{
		InstrumentToken: 53_000_001,
		Tradingsymbol:   underlying + "FUT",
		Name:            underlying,
		Segment:         "NFO-FUT",
		InstrumentType:  InstrumentFUT,
		Exchange:        "NFO",
		Expiry:          expiry,
		LotSize:         250,
	}}
	mc.LTPBySymbol["NSE:"+underlying] = spot

	// A heavily traded consolidation band followed by a rally to spot, so
	// the volume profile finds a support wall and the trend reads bullish.
	candles := make([]Candle, 0, 120)
	day := now.AddDate(0, 0, -120)
	for i := 0; i < 80; i++ {
		base := 2_700 + float64(i%6)*10
		candles = append(candles, Candle{
			Date: day, Open: base, High: base + 60, Low: base, Close: base + 40,
			Volume: 2_500_000,
		})
		day = day.AddDate(0, 0, 1)
	}
	for i := 0; i < 40; i++ {
		base := 2_760 + float64(i)*3.5
		candles = append(candles, Candle{
			Date: day, Open: base, High: base + 25, Low: base - 5, Close: base + 20,
			Volume: 900_000,
		})
		day = day.AddDate(0, 0, 1)
	}
	mc.CandlesByToken[nseToken] = candles

	for strike := 2_600.0; strike <= 3_200; strike += 50 {
		for _, optType := range []string{InstrumentCE, InstrumentPE} {
			symbol := fmt.Sprintf("%s%d%s", underlying, int(strike), optType)
			mc.ByExchange["NFO"] = append(mc.ByExchange["NFO"], Instrument{
				Tradingsymbol:  symbol,
				Name:           underlying,
				Segment:        "NFO-OPT",
				InstrumentType: optType,
				Exchange:       "NFO",
				Expiry:         expiry,
				Strike:         strike,
				LotSize:        250,
			})

			distance := strike - spot
			if optType == InstrumentPE {
				distance = spot - strike
			}
			premium := 60 - distance*0.25
			if premium < 2 {
				premium = 2
			}
			mc.LTPBySymbol["NFO:"+symbol] = premium
			mc.QuoteBySymbol["NFO:"+symbol] = Quote{
				LastPrice:         premium,
				BestBid:           premium * 0.99,
				BestAsk:           premium * 1.01,
				UpperCircuitLimit: premium * 3,
				LowerCircuitLimit: premium * 0.1,
			}
		}
	}

	return mc
}
