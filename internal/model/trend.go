package model

import "time"

// Direction classifies which side of the stop-and-reverse line a close is on.
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
)

// TrendState is the per-period trend classification of one instrument,
// derived from its price series and stop-and-reverse line.
type TrendState struct {
	Symbol             string    `json:"symbol"`
	AsOf               time.Time `json:"as_of"`
	Direction          Direction `json:"direction"`
	TrendStart         time.Time `json:"trend_start"`
	ConsecutivePeriods int       `json:"consecutive_periods"`
	GapPercent         float64   `json:"gap_percent"`
	ADX                float64   `json:"adx"`
	RSI                float64   `json:"rsi"`
	StrengthScore      float64   `json:"strength_score"`
}

// IsBullish reports whether the instrument closed above its stop-and-reverse
// line in the most recent period.
func (t *TrendState) IsBullish() bool { return t.Direction == Bullish }
