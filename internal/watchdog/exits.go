// Package watchdog monitors open credit spreads and decides when they must
// be closed: target hit, stop loss hit, or expiry-day square-off.
package watchdog

import (
	"context"
	"errors"
	"time"
)

// ErrQuoteUnavailable means a leg has no live quote this cycle. The trade
// is left untouched and re-evaluated on the next poll.
var ErrQuoteUnavailable = errors.New("watchdog: leg quote unavailable")

// ExitReason labels why a position was closed.
type ExitReason string

const (
	ExitTarget ExitReason = "TARGET"
	ExitSL     ExitReason = "SL"
	ExitExpiry ExitReason = "EXPIRY"
	ExitManual ExitReason = "MANUAL"
)

// Trade is an open credit spread under watch.
type Trade struct {
	ID          string
	Symbol      string
	SpreadType  string
	ShortSymbol string // NFO tradingsymbol of the short leg
	LongSymbol  string // NFO tradingsymbol of the long leg
	ShortStrike float64
	LongStrike  float64
	LotSize     int
	EntryCredit float64 // net credit per share at entry
	SLPct       float64
	TargetPct   float64
	Expiry      time.Time
	OpenedAt    time.Time
}

// TradeStore is the persistence the monitor needs.
type TradeStore interface {
	OpenTrades(ctx context.Context) ([]Trade, error)
	CloseTrade(ctx context.Context, tradeID string, reason ExitReason, exitDebit, pnl float64) error
}

// Decision is the outcome of evaluating one trade against live premiums.
type Decision struct {
	Exit   bool
	Reason ExitReason
	Debit  float64 // current cost to close, per share
	PnL    float64 // (credit - debit) x lot size
}

// EvaluateExit applies the exit rules to one trade. Priority is fixed:
// expiry square-off beats target beats stop loss, so an expiry-day exit is
// always labelled EXPIRY even when a target or SL level is also breached.
//
// debit is the current cost to buy back the spread (short LTP minus long
// LTP); a negative debit is clamped to zero.
func EvaluateExit(trade Trade, debit float64, now time.Time, squareOff time.Time) Decision {
	if debit < 0 {
		debit = 0
	}
	pnl := (trade.EntryCredit - debit) * float64(trade.LotSize)

	decision := Decision{Debit: debit, PnL: pnl}

	if sameDay(trade.Expiry, now) && !now.Before(squareOff) {
		decision.Exit = true
		decision.Reason = ExitExpiry
		return decision
	}

	targetDebit := trade.EntryCredit * (1 - trade.TargetPct/100)
	if debit <= targetDebit {
		decision.Exit = true
		decision.Reason = ExitTarget
		return decision
	}

	slDebit := trade.EntryCredit * (1 + trade.SLPct/100)
	if debit >= slDebit {
		decision.Exit = true
		decision.Reason = ExitSL
		return decision
	}

	return decision
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// squareOffAt resolves the "HH:MM" cutoff on now's date in now's location.
func squareOffAt(now time.Time, cutoff string) time.Time {
	t, err := time.Parse("15:04", cutoff)
	if err != nil {
		t, _ = time.Parse("15:04", "14:30")
	}
	return time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
}
