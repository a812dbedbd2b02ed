package strikes

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"iv-sniper-bot/internal/kite"
	"iv-sniper-bot/internal/trend"
)

// SpreadType identifies which credit spread a recommendation builds.
type SpreadType string

const (
	BullPut  SpreadType = "BULL_PUT"
	BearCall SpreadType = "BEAR_CALL"
)

// Spread is a fully resolved credit-spread recommendation: real tradeable
// instruments for both legs at one expiry. Immutable once built.
type Spread struct {
	Type            SpreadType
	ShortStrike     float64
	LongStrike      float64
	ShortInstrument kite.Instrument
	LongInstrument  kite.Instrument
	Expiry          time.Time
	LotSize         int
}

// Selector maps a wall price to short and long strikes. Pure: the same
// wall/chain inputs always produce the same spread.
type Selector struct {
	logger zerolog.Logger
	now    func() time.Time
}

// NewSelector creates a strike selector.
func NewSelector(logger zerolog.Logger) *Selector {
	return &Selector{
		logger: logger.With().Str("component", "StrikeSelector").Logger(),
		now:    time.Now,
	}
}

// Select picks the short and long strikes for a credit spread.
//
// Bullish trends sell a put at the support wall (Bull Put); bearish trends
// sell a call at the resistance wall (Bear Call). targetExpiry may be zero
// to auto-select the nearest monthly expiry. widthStrikes is the number of
// strikes between the short and long legs.
func (s *Selector) Select(wallPrice, spot float64, direction trend.Direction, chain []kite.Instrument, targetExpiry time.Time, widthStrikes int) (*Spread, error) {
	if widthStrikes <= 0 {
		widthStrikes = 1
	}

	if targetExpiry.IsZero() {
		resolved, err := NearestMonthlyExpiry(chain, s.now())
		if err != nil {
			return nil, err
		}
		targetExpiry = resolved
	}

	expiryChain := filterByExpiry(chain, targetExpiry)
	if len(expiryChain) == 0 {
		return nil, fmt.Errorf("%w: no instruments for expiry %s", ErrNoExpiry, targetExpiry.Format("2006-01-02"))
	}

	switch direction {
	case trend.Bullish:
		return s.selectBullPut(wallPrice, spot, expiryChain, targetExpiry, widthStrikes)
	case trend.Bearish:
		return s.selectBearCall(wallPrice, spot, expiryChain, targetExpiry, widthStrikes)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTrend, direction)
	}
}

func filterByExpiry(chain []kite.Instrument, expiry time.Time) []kite.Instrument {
	expiry = dateOf(expiry)
	var out []kite.Instrument
	for _, inst := range chain {
		if !inst.Expiry.IsZero() && dateOf(inst.Expiry).Equal(expiry) {
			out = append(out, inst)
		}
	}
	return out
}

// selectBullPut sells the highest put strike that sits at or below the
// support wall while staying out-of-the-money, and buys the widthStrikes-th
// lower strike as protection.
func (s *Selector) selectBullPut(supportWall, spot float64, chain []kite.Instrument, expiry time.Time, widthStrikes int) (*Spread, error) {
	puts := instrumentsOfType(chain, kite.InstrumentPE)
	if len(puts) == 0 {
		return nil, fmt.Errorf("%w: no PE instruments in chain", ErrNoQualifyingStrike)
	}
	// Descending: walk down from the highest strike.
	sort.Slice(puts, func(i, j int) bool { return puts[i].Strike > puts[j].Strike })

	var short *kite.Instrument
	for i := range puts {
		if puts[i].Strike <= supportWall && puts[i].Strike < spot {
			short = &puts[i]
			break
		}
	}

	if short == nil {
		// Fallback: the OTM put closest to the wall.
		short = nearestOTM(puts, supportWall, func(strike float64) bool { return strike < spot })
		if short == nil {
			return nil, fmt.Errorf("%w: no OTM puts below spot %.2f", ErrNoQualifyingStrike, spot)
		}
	}

	var lower []kite.Instrument
	for _, inst := range puts {
		if inst.Strike < short.Strike {
			lower = append(lower, inst)
		}
	}
	if len(lower) < widthStrikes {
		return nil, fmt.Errorf("%w: only %d strikes below %.0f, need %d",
			ErrNoQualifyingStrike, len(lower), short.Strike, widthStrikes)
	}
	long := lower[widthStrikes-1] // puts are descending, so [0] is closest below

	s.logger.Info().
		Str("short", short.Tradingsymbol).Float64("short_strike", short.Strike).
		Str("long", long.Tradingsymbol).Float64("long_strike", long.Strike).
		Time("expiry", expiry).Msg("bull put spread selected")

	return &Spread{
		Type:            BullPut,
		ShortStrike:     short.Strike,
		LongStrike:      long.Strike,
		ShortInstrument: *short,
		LongInstrument:  long,
		Expiry:          expiry,
		LotSize:         lotSizeOf(*short),
	}, nil
}

// selectBearCall mirrors selectBullPut on the call side: the lowest call
// strike at or above the resistance wall that is still OTM, protected by
// the widthStrikes-th higher strike.
func (s *Selector) selectBearCall(resistanceWall, spot float64, chain []kite.Instrument, expiry time.Time, widthStrikes int) (*Spread, error) {
	calls := instrumentsOfType(chain, kite.InstrumentCE)
	if len(calls) == 0 {
		return nil, fmt.Errorf("%w: no CE instruments in chain", ErrNoQualifyingStrike)
	}
	sort.Slice(calls, func(i, j int) bool { return calls[i].Strike < calls[j].Strike })

	var short *kite.Instrument
	for i := range calls {
		if calls[i].Strike >= resistanceWall && calls[i].Strike > spot {
			short = &calls[i]
			break
		}
	}

	if short == nil {
		short = nearestOTM(calls, resistanceWall, func(strike float64) bool { return strike > spot })
		if short == nil {
			return nil, fmt.Errorf("%w: no OTM calls above spot %.2f", ErrNoQualifyingStrike, spot)
		}
	}

	var higher []kite.Instrument
	for _, inst := range calls {
		if inst.Strike > short.Strike {
			higher = append(higher, inst)
		}
	}
	if len(higher) < widthStrikes {
		return nil, fmt.Errorf("%w: only %d strikes above %.0f, need %d",
			ErrNoQualifyingStrike, len(higher), short.Strike, widthStrikes)
	}
	long := higher[widthStrikes-1]

	s.logger.Info().
		Str("short", short.Tradingsymbol).Float64("short_strike", short.Strike).
		Str("long", long.Tradingsymbol).Float64("long_strike", long.Strike).
		Time("expiry", expiry).Msg("bear call spread selected")

	return &Spread{
		Type:            BearCall,
		ShortStrike:     short.Strike,
		LongStrike:      long.Strike,
		ShortInstrument: *short,
		LongInstrument:  long,
		Expiry:          expiry,
		LotSize:         lotSizeOf(*short),
	}, nil
}

func instrumentsOfType(chain []kite.Instrument, instrumentType string) []kite.Instrument {
	var out []kite.Instrument
	for _, inst := range chain {
		if inst.InstrumentType == instrumentType {
			out = append(out, inst)
		}
	}
	return out
}

// nearestOTM returns the instrument closest to the wall among those whose
// strike satisfies the OTM predicate.
func nearestOTM(instruments []kite.Instrument, wall float64, otm func(strike float64) bool) *kite.Instrument {
	var best *kite.Instrument
	bestDist := math.Inf(1)
	for i := range instruments {
		if !otm(instruments[i].Strike) {
			continue
		}
		if d := math.Abs(instruments[i].Strike - wall); d < bestDist {
			bestDist = d
			best = &instruments[i]
		}
	}
	return best
}

func lotSizeOf(inst kite.Instrument) int {
	if inst.LotSize > 0 {
		return inst.LotSize
	}
	return 1
}
