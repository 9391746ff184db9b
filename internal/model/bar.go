package model

import "time"

// PriceBar represents a single daily candlestick bar.
type PriceBar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Series holds the ordered bar history for one instrument.
type Series struct {
	Symbol string
	Bars   []PriceBar
}

// Len returns the number of bars in the series.
func (s *Series) Len() int { return len(s.Bars) }

// Truncate returns a view of the series containing only bars dated at or
// before cutoff. The underlying array is shared, not copied.
func (s *Series) Truncate(cutoff time.Time) *Series {
	n := len(s.Bars)
	for n > 0 && s.Bars[n-1].Date.After(cutoff) {
		n--
	}
	return &Series{Symbol: s.Symbol, Bars: s.Bars[:n]}
}

// Last returns the most recent bar. The second return value is false when the
// series is empty.
func (s *Series) Last() (PriceBar, bool) {
	if len(s.Bars) == 0 {
		return PriceBar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}
