package calculator

import (
	"math"

	"sectorbot/internal/model"
)

// DMIResult holds the directional movement series. ADX values before index
// 2*period-1 are zero (warmup); +DI/-DI start at index period.
type DMIResult struct {
	ADX     []float64
	PlusDI  []float64
	MinusDI []float64
}

// ADXSeries computes Wilder's directional movement system: true range,
// smoothed +DM/-DM, directional indicators, DX, and a smoothed DX (ADX). The
// smoothing is an SMA seed followed by EMA alpha = 2/(period+1); ADX itself
// is seeded from the mean DX of the second window.
func ADXSeries(bars []model.PriceBar, period int) DMIResult {
	n := len(bars)
	res := DMIResult{
		ADX:     make([]float64, n),
		PlusDI:  make([]float64, n),
		MinusDI: make([]float64, n),
	}
	if period <= 0 || n < period+1 {
		return res
	}

	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	tr := make([]float64, n)
	for i := 1; i < n; i++ {
		upMove := bars[i].High - bars[i-1].High
		downMove := bars[i-1].Low - bars[i].Low
		if upMove > downMove && upMove > 0 {
			plusDM[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i] = downMove
		}
		hl := bars[i].High - bars[i].Low
		hc := math.Abs(bars[i].High - bars[i-1].Close)
		lc := math.Abs(bars[i].Low - bars[i-1].Close)
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}

	alpha := 2.0 / (float64(period) + 1.0)
	atr := make([]float64, n)
	smoothPlus := make([]float64, n)
	smoothMinus := make([]float64, n)
	atr[period-1] = mean(tr[1:period])
	smoothPlus[period-1] = mean(plusDM[1:period])
	smoothMinus[period-1] = mean(minusDM[1:period])
	for i := period; i < n; i++ {
		atr[i] = alpha*tr[i] + (1-alpha)*atr[i-1]
		smoothPlus[i] = alpha*plusDM[i] + (1-alpha)*smoothPlus[i-1]
		smoothMinus[i] = alpha*minusDM[i] + (1-alpha)*smoothMinus[i-1]
	}

	dx := make([]float64, n)
	for i := period; i < n; i++ {
		if atr[i] > 0 {
			res.PlusDI[i] = 100 * smoothPlus[i] / atr[i]
			res.MinusDI[i] = 100 * smoothMinus[i] / atr[i]
		}
		if sum := res.PlusDI[i] + res.MinusDI[i]; sum > 0 {
			dx[i] = 100 * math.Abs(res.PlusDI[i]-res.MinusDI[i]) / sum
		}
	}

	if n < 2*period {
		return res
	}
	res.ADX[2*period-1] = mean(dx[period : 2*period])
	for i := 2 * period; i < n; i++ {
		res.ADX[i] = alpha*dx[i] + (1-alpha)*res.ADX[i-1]
	}
	return res
}

// CalculateADX returns the latest ADX value for a bar series.
func CalculateADX(bars []model.PriceBar, period int) (float64, error) {
	if len(bars) < 2*period {
		return 0, model.ErrInsufficientHistory
	}
	res := ADXSeries(bars, period)
	return res.ADX[len(bars)-1], nil
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
