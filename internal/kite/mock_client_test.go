package kite

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

// The simulated client must carry everything a full dry run reads: margins
// for the session preflight, the index quote for the crash check, candles
// for trend and volatility, and a quoted option chain for spread building.
func TestSimulatedClientSupportsFullDryRun(t *testing.T) {
	mc := NewSimulatedClient()
	ctx := context.Background()

	margins, err := mc.Margins(ctx)
	if err != nil {
		t.Fatalf("Margins: %v", err)
	}
	if margins.Available <= 0 {
		t.Errorf("available margin = %.0f, want positive", margins.Available)
	}

	quotes, err := mc.Quote(ctx, []string{"NSE:NIFTY 50"})
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	nifty, ok := quotes["NSE:NIFTY 50"]
	if !ok || nifty.OHLC.Close <= 0 || nifty.LastPrice <= 0 {
		t.Fatalf("NIFTY quote = %+v, want last price and previous close", nifty)
	}

	master := NewMaster(mc, nil, zerolog.Nop())
	underlyings, err := master.FnOUnderlyings(ctx)
	if err != nil {
		t.Fatalf("FnOUnderlyings: %v", err)
	}
	if len(underlyings) == 0 {
		t.Fatal("expected at least one scripted F&O underlying")
	}
	symbol := underlyings[0].Symbol

	tokens, err := master.NSETokenMap(ctx)
	if err != nil {
		t.Fatalf("NSETokenMap: %v", err)
	}
	token, ok := tokens[symbol]
	if !ok {
		t.Fatalf("no NSE token for %s", symbol)
	}

	ltp, err := mc.LTP(ctx, []string{"NSE:" + symbol})
	if err != nil {
		t.Fatalf("LTP: %v", err)
	}
	if ltp["NSE:"+symbol] <= 0 {
		t.Errorf("spot for %s = %.2f, want positive", symbol, ltp["NSE:"+symbol])
	}

	candles, err := mc.HistoricalData(ctx, token, "day", 365)
	if err != nil {
		t.Fatalf("HistoricalData: %v", err)
	}
	if len(candles) < 51 {
		t.Errorf("candles = %d, want enough for the EMA-50 trend and HV windows", len(candles))
	}

	chain, err := master.OptionChain(ctx, symbol)
	if err != nil {
		t.Fatalf("OptionChain: %v", err)
	}
	if len(chain) == 0 {
		t.Fatal("expected a scripted option chain")
	}
	sawCE, sawPE := false, false
	for _, inst := range chain {
		switch inst.InstrumentType {
		case InstrumentCE:
			sawCE = true
		case InstrumentPE:
			sawPE = true
		}
		if inst.Expiry.IsZero() || inst.LotSize <= 0 {
			t.Errorf("option %s missing expiry or lot size", inst.Tradingsymbol)
		}
		if mc.LTPBySymbol["NFO:"+inst.Tradingsymbol] <= 0 {
			t.Errorf("option %s has no premium", inst.Tradingsymbol)
		}
		q, ok := mc.QuoteBySymbol["NFO:"+inst.Tradingsymbol]
		if !ok || q.BestBid <= 0 || q.BestAsk <= q.BestBid {
			t.Errorf("option %s has no two-sided quote", inst.Tradingsymbol)
		}
	}
	if !sawCE || !sawPE {
		t.Errorf("chain has CE=%v PE=%v, want both sides", sawCE, sawPE)
	}
}
