package model

import "time"

// ScoreBreakdown is the SBI composite score plus its components for one
// instrument on one date. It is recomputed every period and never mutated; a
// new breakdown supersedes the prior one.
type ScoreBreakdown struct {
	Symbol       string    `json:"symbol"`
	AsOf         time.Time `json:"as_of"`
	Composite    int       `json:"composite"` // 0-10
	ATRScore     int       `json:"atr_score"`
	SlopeScore   int       `json:"slope_score"`
	ADXScore     int       `json:"adx_score"`
	RSIPenalty   int       `json:"rsi_penalty"`
	DaysInTrend  int       `json:"days_in_trend"`
	ATRPercent   float64   `json:"atr_percent"`
	GapSlope     float64   `json:"gap_slope"`
	ADXValue     float64   `json:"adx_value"`
	RSI14        float64   `json:"rsi14"`
	TrendBullish bool      `json:"trend_bullish"`
	Broken       bool      `json:"broken"`
}
