// Package sbi computes the Sector Breakout Index: a 0-10 entry-quality
// score blending volatility, SAR-gap momentum and trend strength, with the
// blend shifting as a trend ages.
package sbi

import (
	"fmt"
	"math"

	"sectorbot/internal/calculator"
	"sectorbot/internal/model"
	"sectorbot/internal/trend"
)

// DurationSource selects whose trend age drives the weight blend.
type DurationSource string

const (
	// DurationChild ages the blend by the instrument's own trend run.
	DurationChild DurationSource = "child"
	// DurationParent ages the blend by the sector parent's trend run.
	DurationParent DurationSource = "parent"
)

// ParseDurationSource validates a configured duration source, defaulting
// to child when empty.
func ParseDurationSource(s string) (DurationSource, error) {
	switch DurationSource(s) {
	case DurationChild, DurationParent:
		return DurationSource(s), nil
	case "":
		return DurationChild, nil
	default:
		return "", fmt.Errorf("duration source %q: %w", s, model.ErrInvalidConfiguration)
	}
}

// BrokenLookback is how many trailing periods a bullish-to-bearish flip
// zeroes the score for.
const BrokenLookback = 5

const (
	atrPeriod  = 14
	adxPeriod  = 14
	rsiPeriod  = 14
	prsiPeriod = 4
)

// Scorer computes score breakdowns for instrument histories. Categories
// scales the ATR component for structurally volatile names.
type Scorer struct {
	Categories model.CategoryMap
}

func NewScorer(categories model.CategoryMap) *Scorer {
	return &Scorer{Categories: categories}
}

// Score evaluates an instrument as of its last bar. daysInTrend is supplied
// by the caller so the blend can follow either the child's or the parent's
// trend age.
func (s *Scorer) Score(series model.Series, daysInTrend int) (*model.ScoreBreakdown, error) {
	bars := series.Bars
	if len(bars) < trend.MinBars {
		return nil, fmt.Errorf("sbi %s: %d bars: %w", series.Symbol, len(bars), model.ErrInsufficientHistory)
	}
	last := len(bars) - 1

	dirs := trend.DirectionSeries(bars)
	bullish := dirs[last] == model.Bullish
	broken := trend.FlippedBearishWithin(bars, BrokenLookback)

	atrPct, err := calculator.ATRPercent(bars, atrPeriod)
	if err != nil {
		return nil, fmt.Errorf("sbi %s: %w", series.Symbol, err)
	}
	category := s.Categories.Lookup(series.Symbol)
	atrScore := scoreATR(atrPct / category.ATRMultiplier())

	slope := gapSlope(bars)
	slopeScore := scoreSlope(slope)

	adx, err := calculator.CalculateADX(bars, adxPeriod)
	if err != nil {
		return nil, fmt.Errorf("sbi %s: %w", series.Symbol, err)
	}
	adxScore := scoreADX(adx)

	rsi14, err := calculator.CalculateRSI(bars, rsiPeriod)
	if err != nil {
		return nil, fmt.Errorf("sbi %s: %w", series.Symbol, err)
	}

	penalty := 0
	if daysInTrend >= 3 && prsiBearish(bars) {
		penalty = 2
	}

	w := BlendWeights(daysInTrend)
	blend := w.ATR*float64(atrScore) + w.Slope*float64(slopeScore) + w.ADX*float64(adxScore)
	composite := clampComposite(int(math.Round(blend - float64(penalty))))
	if broken || !bullish {
		composite = 0
	}

	return &model.ScoreBreakdown{
		Symbol:       series.Symbol,
		AsOf:         bars[last].Date,
		Composite:    composite,
		ATRScore:     atrScore,
		SlopeScore:   slopeScore,
		ADXScore:     adxScore,
		RSIPenalty:   penalty,
		DaysInTrend:  daysInTrend,
		ATRPercent:   atrPct,
		GapSlope:     slope,
		ADXValue:     adx,
		RSI14:        rsi14,
		TrendBullish: bullish,
		Broken:       broken,
	}, nil
}

// gapSlope is the one-period change of the SAR gap, in percentage points.
func gapSlope(bars []model.PriceBar) float64 {
	sar := calculator.PSARSeries(bars)
	last := len(bars) - 1
	return gapPercent(bars[last], sar[last]) - gapPercent(bars[last-1], sar[last-1])
}

func gapPercent(bar model.PriceBar, sar float64) float64 {
	if bar.Close == 0 {
		return 0
	}
	return (bar.Close - sar) / bar.Close * 100
}

// prsiBearish reports whether the short RSI sits below a parabolic SAR run
// over its own values, an early sign the move is exhausting.
func prsiBearish(bars []model.PriceBar) bool {
	rsi := calculator.RSISeries(calculator.Closes(bars), prsiPeriod)
	if len(rsi) <= prsiPeriod+1 {
		return false
	}
	values := rsi[prsiPeriod:] // drop warmup zeros
	_, uptrend := calculator.PSAROnValues(values)
	return !uptrend[len(uptrend)-1]
}

func scoreATR(adjusted float64) int {
	switch {
	case adjusted < 2.0:
		return 10
	case adjusted < 2.5:
		return 9
	case adjusted < 3.0:
		return 8
	case adjusted < 4.0:
		return 7
	case adjusted < 5.0:
		return 6
	default:
		return 4
	}
}

func scoreSlope(slope float64) int {
	switch {
	case slope >= 2.0:
		return 10
	case slope >= 1.0:
		return 9
	case slope >= 0.5:
		return 8
	case slope >= -0.5:
		return 7
	case slope >= -1.0:
		return 5
	case slope >= -2.0:
		return 3
	default:
		return 1
	}
}

func scoreADX(adx float64) int {
	switch {
	case adx >= 40:
		return 10
	case adx >= 30:
		return 8
	case adx >= 25:
		return 6
	case adx >= 20:
		return 4
	default:
		return 2
	}
}

func clampComposite(v int) int {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}
