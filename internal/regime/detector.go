// Package regime classifies broad-market conditions from the benchmark and
// the volatility index, and maps each regime to an allocation mode.
package regime

import (
	"sectorbot/internal/calculator"
	"sectorbot/internal/model"
)

const (
	// SMAPeriod is the benchmark moving-average window for the bear test.
	SMAPeriod = 200
	// VIXThreshold marks the volatile regime.
	VIXThreshold = 25.0
)

// Detect classifies the market from the benchmark series and the latest
// volatility index close. Bear (benchmark under its long average) wins over
// volatile; with too little benchmark history the regime is unknown.
func Detect(benchmark model.Series, vix float64) model.Regime {
	closes := calculator.Closes(benchmark.Bars)
	if len(closes) < SMAPeriod {
		return model.RegimeUnknown
	}
	sma, err := calculator.CalculateSMA(closes, SMAPeriod)
	if err != nil {
		return model.RegimeUnknown
	}
	last := closes[len(closes)-1]
	switch {
	case last < sma:
		return model.RegimeBear
	case vix > VIXThreshold:
		return model.RegimeVolatile
	default:
		return model.RegimeBull
	}
}

// ModeFor maps a regime to the allocation mode auto runs with. Unknown
// defaults to weighted rotation, the most conservative sizing.
func ModeFor(r model.Regime) model.Mode {
	switch r {
	case model.RegimeBear:
		return model.ModeWeightedRotation
	case model.RegimeVolatile:
		return model.ModeRotation
	case model.RegimeBull:
		return model.ModeParentBased
	default:
		return model.ModeWeightedRotation
	}
}
