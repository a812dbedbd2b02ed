package kite

import (
	"context"

	"github.com/rs/zerolog"
)

// InstrumentCache stores parsed exchange dumps between runs. The dump is a
// few hundred thousand rows and changes once a day, so every caller shares
// one fetch.
type InstrumentCache interface {
	Get(ctx context.Context, exchange string) ([]Instrument, bool)
	Set(ctx context.Context, exchange string, instruments []Instrument)
}

// Master provides F&O universe and token lookups on top of the raw
// instrument dumps. All callers (scanner, analyst, IV logger) go through it
// instead of re-fetching dumps independently.
type Master struct {
	md     MarketData
	cache  InstrumentCache
	logger zerolog.Logger
}

// NewMaster creates an instrument master. cache may be nil.
func NewMaster(md MarketData, cache InstrumentCache, logger zerolog.Logger) *Master {
	return &Master{
		md:     md,
		cache:  cache,
		logger: logger.With().Str("component", "InstrumentMaster").Logger(),
	}
}

func (m *Master) dump(ctx context.Context, exchange string) ([]Instrument, error) {
	if m.cache != nil {
		if instruments, ok := m.cache.Get(ctx, exchange); ok {
			return instruments, nil
		}
	}

	instruments, err := m.md.Instruments(ctx, exchange)
	if err != nil {
		return nil, err
	}

	if m.cache != nil && len(instruments) > 0 {
		m.cache.Set(ctx, exchange, instruments)
	}
	return instruments, nil
}

// FnOUnderlyings returns the deduplicated list of F&O equity underlyings,
// derived from the NFO futures segment.
func (m *Master) FnOUnderlyings(ctx context.Context) ([]Underlying, error) {
	instruments, err := m.dump(ctx, "NFO")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var underlyings []Underlying
	for _, inst := range instruments {
		if inst.Segment != "NFO-FUT" || inst.InstrumentType != InstrumentFUT {
			continue
		}
		if inst.Name == "" || seen[inst.Name] {
			continue
		}
		seen[inst.Name] = true
		underlyings = append(underlyings, Underlying{
			Symbol:          inst.Name,
			ExchangeToken:   inst.ExchangeToken,
			InstrumentToken: inst.InstrumentToken,
		})
	}

	m.logger.Info().Int("count", len(underlyings)).Msg("instrument master: unique F&O underlyings")
	return underlyings, nil
}

// NSETokenMap builds a tradingsymbol -> instrument token map for NSE
// equities, used for historical-data and LTP calls on underlyings.
func (m *Master) NSETokenMap(ctx context.Context) (map[string]int, error) {
	instruments, err := m.dump(ctx, "NSE")
	if err != nil {
		return nil, err
	}

	tokens := make(map[string]int)
	for _, inst := range instruments {
		if inst.Segment == "NSE" {
			tokens[inst.Tradingsymbol] = inst.InstrumentToken
		}
	}

	m.logger.Debug().Int("count", len(tokens)).Msg("NSE token map built")
	return tokens, nil
}

// OptionChain returns all CE and PE instruments for an underlying.
func (m *Master) OptionChain(ctx context.Context, underlying string) ([]Instrument, error) {
	instruments, err := m.dump(ctx, "NFO")
	if err != nil {
		return nil, err
	}

	var chain []Instrument
	for _, inst := range instruments {
		if inst.Name != underlying {
			continue
		}
		if inst.InstrumentType == InstrumentCE || inst.InstrumentType == InstrumentPE {
			chain = append(chain, inst)
		}
	}
	return chain, nil
}
