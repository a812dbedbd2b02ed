package kite

import "time"

// Candle is one daily (or intraday) OHLCV bar.
type Candle struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Instrument type constants as used by the NFO segment.
const (
	InstrumentCE  = "CE"
	InstrumentPE  = "PE"
	InstrumentFUT = "FUT"
)

// Instrument is one row of the exchange instrument dump.
type Instrument struct {
	InstrumentToken int       `json:"instrument_token"`
	ExchangeToken   int       `json:"exchange_token"`
	Tradingsymbol   string    `json:"tradingsymbol"`
	Name            string    `json:"name"`
	Expiry          time.Time `json:"expiry"`
	Strike          float64   `json:"strike"`
	InstrumentType  string    `json:"instrument_type"` // CE, PE, FUT, EQ
	Segment         string    `json:"segment"`
	Exchange        string    `json:"exchange"`
	LotSize         int       `json:"lot_size"`
}

// OHLC holds the previous-day reference prices returned with quotes.
type OHLC struct {
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// Quote is the full market quote for one instrument.
type Quote struct {
	LastPrice         float64 `json:"last_price"`
	OHLC              OHLC    `json:"ohlc"`
	BestBid           float64 `json:"best_bid"`
	BestAsk           float64 `json:"best_ask"`
	UpperCircuitLimit float64 `json:"upper_circuit_limit"`
	LowerCircuitLimit float64 `json:"lower_circuit_limit"`
	Volume            float64 `json:"volume"`
	OI                float64 `json:"oi"`
}

// Margins is the account margin snapshot (equity segment).
type Margins struct {
	Net       float64 `json:"net"`
	Available float64 `json:"available"`
	Utilised  float64 `json:"utilised"`
}

// Underlying identifies one F&O equity underlying.
type Underlying struct {
	Symbol          string `json:"symbol"`
	ExchangeToken   int    `json:"exchange_token"`
	InstrumentToken int    `json:"instrument_token"`
}
