package model

import "time"

// TradeAction indicates what a trade record represents.
type TradeAction string

const (
	ActionEnter  TradeAction = "ENTER"
	ActionExit   TradeAction = "EXIT"
	ActionRotate TradeAction = "ROTATE"
)

// TradeRecord is one append-only entry in the trade log. A rotation is a
// single record carrying both legs, not an independent exit plus entry.
type TradeRecord struct {
	Date     time.Time   `json:"date"`
	Action   TradeAction `json:"action"`
	Sector   string      `json:"sector"`
	Ticker   string      `json:"ticker"`              // entered/exited ticker
	TickerIn string      `json:"ticker_in,omitempty"` // rotation replacement
	Price    float64     `json:"price"`
	PriceIn  float64     `json:"price_in,omitempty"`
	Weight   float64     `json:"weight"`
	Reason   string      `json:"reason,omitempty"`
}

// ClosedTrade pairs an entry with its exit for performance analysis.
type ClosedTrade struct {
	Ticker     string    `json:"ticker"`
	Sector     string    `json:"sector"`
	EntryDate  time.Time `json:"entry_date"`
	ExitDate   time.Time `json:"exit_date"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	Shares     float64   `json:"shares"`
	ExitReason string    `json:"exit_reason"`
}

// PnL returns the realized profit in dollars.
func (t *ClosedTrade) PnL() float64 {
	return (t.ExitPrice - t.EntryPrice) * t.Shares
}

// PnLPercent returns the realized profit as a percentage of entry price.
func (t *ClosedTrade) PnLPercent() float64 {
	if t.EntryPrice == 0 {
		return 0
	}
	return (t.ExitPrice - t.EntryPrice) / t.EntryPrice * 100
}
