package watchdog

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"iv-sniper-bot/internal/kite"
)

type fakeTradeStore struct {
	trades []Trade
	closed map[string]ExitReason
}

func newFakeTradeStore(trades ...Trade) *fakeTradeStore {
	return &fakeTradeStore{trades: trades, closed: make(map[string]ExitReason)}
}

func (f *fakeTradeStore) OpenTrades(ctx context.Context) ([]Trade, error) {
	return f.trades, nil
}

func (f *fakeTradeStore) CloseTrade(ctx context.Context, tradeID string, reason ExitReason, exitDebit, pnl float64) error {
	f.closed[tradeID] = reason
	return nil
}

func monitorAt(md kite.MarketData, store TradeStore, now time.Time) *Monitor {
	m := NewMonitor(md, store, Config{
		PollInterval:   time.Minute,
		SquareOffTime:  "14:30",
		MarketTimezone: "UTC",
	}, zerolog.Nop())
	m.now = func() time.Time { return now }
	return m
}

func TestPollClosesTargetTrade(t *testing.T) {
	trade := testTrade()
	store := newFakeTradeStore(trade)

	mc := kite.NewMockClient()
	mc.QuoteBySymbol["NFO:"+trade.ShortSymbol] = kite.Quote{LastPrice: 10}
	mc.QuoteBySymbol["NFO:"+trade.LongSymbol] = kite.Quote{LastPrice: 1.5}

	m := monitorAt(mc, store, time.Date(2025, time.June, 10, 11, 0, 0, 0, time.UTC))
	if err := m.Poll(context.Background()); err != nil {
		t.Fatalf("Poll: %v", err)
	}

	// Debit 8.5 is at or under the 10.0 target level.
	if reason, ok := store.closed[trade.ID]; !ok || reason != ExitTarget {
		t.Errorf("closed = %v, want %s for trade %s", store.closed, ExitTarget, trade.ID)
	}
}

func TestPollLeavesHealthyTradeOpen(t *testing.T) {
	trade := testTrade()
	store := newFakeTradeStore(trade)

	mc := kite.NewMockClient()
	mc.QuoteBySymbol["NFO:"+trade.ShortSymbol] = kite.Quote{LastPrice: 18}
	mc.QuoteBySymbol["NFO:"+trade.LongSymbol] = kite.Quote{LastPrice: 3}

	m := monitorAt(mc, store, time.Date(2025, time.June, 10, 11, 0, 0, 0, time.UTC))
	if err := m.Poll(context.Background()); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(store.closed) != 0 {
		t.Errorf("closed = %v, want no exits", store.closed)
	}
}

func TestPollSkipsTradeWithMissingQuote(t *testing.T) {
	trade := testTrade()
	store := newFakeTradeStore(trade)

	mc := kite.NewMockClient()
	// Only the short leg has a quote; the trade must be left alone even
	// though a lone short LTP of 5 would look like a target hit.
	mc.QuoteBySymbol["NFO:"+trade.ShortSymbol] = kite.Quote{LastPrice: 5}

	m := monitorAt(mc, store, time.Date(2025, time.June, 10, 11, 0, 0, 0, time.UTC))
	if err := m.Poll(context.Background()); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(store.closed) != 0 {
		t.Errorf("closed = %v, want trade skipped", store.closed)
	}
}

func TestPollSkipsTradeWithZeroLongQuote(t *testing.T) {
	trade := testTrade()
	store := newFakeTradeStore(trade)

	mc := kite.NewMockClient()
	// A dead long leg reports zero; treating it as a real price would
	// inflate the debit to 45 and fire a spurious stop loss.
	mc.QuoteBySymbol["NFO:"+trade.ShortSymbol] = kite.Quote{LastPrice: 45}
	mc.QuoteBySymbol["NFO:"+trade.LongSymbol] = kite.Quote{LastPrice: 0}

	m := monitorAt(mc, store, time.Date(2025, time.June, 10, 11, 0, 0, 0, time.UTC))
	if err := m.Poll(context.Background()); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(store.closed) != 0 {
		t.Errorf("closed = %v, want trade skipped until both legs quote", store.closed)
	}
}

func TestPollExpiryDaySquareOff(t *testing.T) {
	trade := testTrade()
	store := newFakeTradeStore(trade)

	mc := kite.NewMockClient()
	mc.QuoteBySymbol["NFO:"+trade.ShortSymbol] = kite.Quote{LastPrice: 18}
	mc.QuoteBySymbol["NFO:"+trade.LongSymbol] = kite.Quote{LastPrice: 3}

	m := monitorAt(mc, store, time.Date(2025, time.June, 26, 14, 35, 0, 0, time.UTC))
	if err := m.Poll(context.Background()); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if reason := store.closed[trade.ID]; reason != ExitExpiry {
		t.Errorf("reason = %s, want %s", reason, ExitExpiry)
	}
}

func TestPollNoOpenTrades(t *testing.T) {
	mc := kite.NewMockClient()
	m := monitorAt(mc, newFakeTradeStore(), time.Now())

	if err := m.Poll(context.Background()); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if mc.Calls("Quote") != 0 {
		t.Error("expected no quote calls with no open trades")
	}
}
