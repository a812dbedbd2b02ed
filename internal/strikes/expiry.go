// Package strikes maps Volume Profile walls to tradeable option strikes and
// assembles defined-risk credit spreads with their economics.
package strikes

import (
	"errors"
	"sort"
	"time"

	"iv-sniper-bot/internal/kite"
)

var (
	// ErrNoExpiry means the option chain holds no usable expiry.
	ErrNoExpiry = errors.New("strikes: no usable expiry in chain")

	// ErrNoQualifyingStrike means no strike satisfies the OTM/wall
	// constraints even after the fallback.
	ErrNoQualifyingStrike = errors.New("strikes: no qualifying strike")

	// ErrUnknownTrend means the trend label routes to neither spread type.
	ErrUnknownTrend = errors.New("strikes: unknown trend")
)

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NearestMonthlyExpiry picks the expiry to trade from an option chain.
//
// Monthly expiries fall on the last Thursday of the month; when that is a
// holiday the exchange shifts to Wednesday, so an expiry counts as monthly
// when it is a Wednesday or Thursday with no later expiry in the same
// calendar month. Falls back to the first expiry at least 15 days out, then
// to the nearest expiry of all.
func NearestMonthlyExpiry(chain []kite.Instrument, today time.Time) (time.Time, error) {
	today = dateOf(today)

	seen := make(map[time.Time]bool)
	var expiries []time.Time
	for _, inst := range chain {
		if inst.Expiry.IsZero() {
			continue
		}
		exp := dateOf(inst.Expiry)
		if exp.Before(today) || seen[exp] {
			continue
		}
		seen[exp] = true
		expiries = append(expiries, exp)
	}

	if len(expiries) == 0 {
		return time.Time{}, ErrNoExpiry
	}
	sort.Slice(expiries, func(i, j int) bool { return expiries[i].Before(expiries[j]) })

	for _, exp := range expiries {
		if isMonthEndExpiry(exp, expiries) {
			return exp, nil
		}
	}

	for _, exp := range expiries {
		if exp.Sub(today) >= 15*24*time.Hour {
			return exp, nil
		}
	}

	return expiries[0], nil
}

func isMonthEndExpiry(exp time.Time, all []time.Time) bool {
	if wd := exp.Weekday(); wd != time.Wednesday && wd != time.Thursday {
		return false
	}
	for _, other := range all {
		if other.Year() == exp.Year() && other.Month() == exp.Month() && other.After(exp) {
			return false
		}
	}
	return true
}
