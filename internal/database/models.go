package database

import "time"

// Trade statuses in trade_log.
const (
	StatusOpen   = "OPEN"
	StatusClosed = "CLOSED"
	StatusError  = "ERROR"
)

// TradeRecord is one row of trade_log.
type TradeRecord struct {
	TradeID     string     `json:"trade_id"`
	Symbol      string     `json:"symbol"`
	SpreadType  string     `json:"spread_type"`
	ShortSymbol string     `json:"short_symbol"`
	LongSymbol  string     `json:"long_symbol"`
	ShortStrike float64    `json:"short_strike"`
	LongStrike  float64    `json:"long_strike"`
	LotSize     int        `json:"lot_size"`
	EntryCredit float64    `json:"entry_credit"`
	SLPct       float64    `json:"sl_pct"`
	TargetPct   float64    `json:"target_pct"`
	Expiry      time.Time  `json:"expiry"`
	Status      string     `json:"status"`
	ExitReason  *string    `json:"exit_reason,omitempty"`
	ExitDebit   *float64   `json:"exit_debit,omitempty"`
	PnL         *float64   `json:"pnl,omitempty"`
	OpenedAt    time.Time  `json:"opened_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
}

// IVReading is one daily ATM IV snapshot for a symbol.
type IVReading struct {
	Symbol     string    `json:"symbol"`
	TradeDate  time.Time `json:"trade_date"`
	ATMIV      *float64  `json:"atm_iv,omitempty"`
	HV20       *float64  `json:"hv_20,omitempty"`
	Spot       float64   `json:"spot"`
	RecordedAt time.Time `json:"recorded_at"`
}
