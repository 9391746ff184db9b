package calculator

import (
	"math"

	"sectorbot/internal/model"
)

// TrueRanges computes the true range for every period. The first period's
// true range is its high-low span (no prior close).
func TrueRanges(bars []model.PriceBar) []float64 {
	tr := make([]float64, len(bars))
	for i := range bars {
		hl := bars[i].High - bars[i].Low
		if i == 0 {
			tr[i] = hl
			continue
		}
		hc := math.Abs(bars[i].High - bars[i-1].Close)
		lc := math.Abs(bars[i].Low - bars[i-1].Close)
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}
	return tr
}

// ATRSeries computes the average true range for every period, smoothed with
// EMA alpha = 2/(period+1) over the true ranges.
func ATRSeries(bars []model.PriceBar, period int) []float64 {
	if len(bars) == 0 || period <= 0 {
		return nil
	}
	return EMASeries(TrueRanges(bars), period)
}

// ATRPercent returns the latest ATR expressed as a percentage of the latest
// closing price.
func ATRPercent(bars []model.PriceBar, period int) (float64, error) {
	if len(bars) < period+1 {
		return 0, model.ErrInsufficientHistory
	}
	atr := ATRSeries(bars, period)
	last := bars[len(bars)-1]
	if last.Close == 0 {
		return 0, model.ErrMissingPeriodData
	}
	return atr[len(atr)-1] / last.Close * 100, nil
}
