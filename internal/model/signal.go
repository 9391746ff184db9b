package model

import "time"

// EntrySignal proposes a new position in an active sector.
type EntrySignal struct {
	Ticker string  `json:"ticker"`
	Sector string  `json:"sector"`
	Score  int     `json:"score"`
	RSI    float64 `json:"rsi"`
	Weight float64 `json:"weight"`
	Reason string  `json:"reason"`
}

// ExitSignal proposes closing a held position.
type ExitSignal struct {
	Ticker string  `json:"ticker"`
	Sector string  `json:"sector"`
	Weight float64 `json:"weight"`
	Reason string  `json:"reason"`
}

// RotationSignal proposes closing one position and opening its replacement in
// the same sector within a single step.
type RotationSignal struct {
	Sector     string  `json:"sector"`
	ExitTicker string  `json:"exit_ticker"`
	ExitReason string  `json:"exit_reason"`
	Ticker     string  `json:"ticker"` // replacement
	Score      int     `json:"score"`
	RSI        float64 `json:"rsi"`
	Weight     float64 `json:"weight"`
}

// SignalSnapshot is the structured output of one evaluation step. Downstream
// renderers and execution collaborators key off these exact fields.
type SignalSnapshot struct {
	AsOf      time.Time              `json:"as_of"`
	Mode      string                 `json:"mode"`
	Regime    string                 `json:"regime,omitempty"`
	Parents   map[string]*TrendState `json:"parents"`
	Entries   []EntrySignal          `json:"entry_signals"`
	Exits     []ExitSignal           `json:"exit_signals"`
	Rotations []RotationSignal       `json:"rotation_signals"`
	Holds     []string               `json:"hold_positions"`
	Positions []Position             `json:"current_positions"`
	Skipped   int                    `json:"skipped_instruments"`
}
