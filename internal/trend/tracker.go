// Package trend derives directional state from parabolic SAR positioning.
package trend

import (
	"fmt"

	"sectorbot/internal/calculator"
	"sectorbot/internal/model"
)

// MinBars is the shortest history Evaluate accepts. ADX needs 2*14 bars
// and the SAR needs room to settle past its seed.
const MinBars = 28

// DirectionSeries reports, for every bar, whether the close sits above
// its parabolic SAR.
func DirectionSeries(bars []model.PriceBar) []model.Direction {
	sar := calculator.PSARSeries(bars)
	dirs := make([]model.Direction, len(bars))
	for i := range bars {
		if bars[i].Close > sar[i] {
			dirs[i] = model.Bullish
		} else {
			dirs[i] = model.Bearish
		}
	}
	return dirs
}

// FlippedBearishWithin reports whether the series turned from bullish to
// bearish inside the last n periods and is still bearish at the end.
func FlippedBearishWithin(bars []model.PriceBar, n int) bool {
	dirs := DirectionSeries(bars)
	last := len(dirs) - 1
	if last < 0 || dirs[last] != model.Bearish {
		return false
	}
	start := last - n + 1
	if start < 1 {
		start = 1
	}
	for i := start; i <= last; i++ {
		if dirs[i-1] == model.Bullish && dirs[i] == model.Bearish {
			return true
		}
	}
	return false
}

// Evaluate computes the full trend state of a symbol as of its last bar:
// direction, how long the current run has lasted, the SAR gap, and a
// 0-100 strength score blending gap, ADX and RSI.
func Evaluate(series model.Series) (*model.TrendState, error) {
	bars := series.Bars
	if len(bars) < MinBars {
		return nil, fmt.Errorf("trend %s: %d bars: %w", series.Symbol, len(bars), model.ErrInsufficientHistory)
	}

	sar := calculator.PSARSeries(bars)
	dirs := DirectionSeries(bars)
	last := len(bars) - 1

	run := 1
	for i := last - 1; i >= 0 && dirs[i] == dirs[last]; i-- {
		run++
	}
	startIdx := last - run + 1

	lastBar := bars[last]
	gap := 0.0
	if lastBar.Close != 0 {
		gap = (lastBar.Close - sar[last]) / lastBar.Close * 100
	}

	adx, err := calculator.CalculateADX(bars, 14)
	if err != nil {
		return nil, fmt.Errorf("trend %s: %w", series.Symbol, err)
	}
	rsi, err := calculator.CalculateRSI(bars, 14)
	if err != nil {
		return nil, fmt.Errorf("trend %s: %w", series.Symbol, err)
	}

	strength := 0.0
	if dirs[last] == model.Bullish {
		strength = StrengthScore(gap, adx, rsi)
	}

	return &model.TrendState{
		Symbol:             series.Symbol,
		AsOf:               lastBar.Date,
		Direction:          dirs[last],
		TrendStart:         bars[startIdx].Date,
		ConsecutivePeriods: run,
		GapPercent:         gap,
		ADX:                adx,
		RSI:                rsi,
		StrengthScore:      strength,
	}, nil
}

// StrengthScore folds SAR gap, ADX and RSI into a single 0-100 reading.
// Gap dominates so that symbols with more room above their SAR rank first.
func StrengthScore(gapPercent, adx, rsi float64) float64 {
	score := gapPercent*2 + adx*0.5 + (rsi-50)*0.3
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
