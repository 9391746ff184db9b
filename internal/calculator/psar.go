package calculator

import (
	"math"

	"sectorbot/internal/model"
)

// Parabolic stop-and-reverse parameters: initial acceleration factor, step
// added on each new extreme, and the acceleration cap.
const (
	PSARInitialAF = 0.02
	PSARStepAF    = 0.02
	PSARMaxAF     = 0.2
)

// PSARSeries computes the parabolic stop-and-reverse line for every period.
// The first bar seeds an uptrend with SAR at its low and the extreme point at
// its high. In an uptrend the SAR is clamped below the prior two lows; in a
// downtrend above the prior two highs. A close-through reverses trend and
// resets the SAR to the prior extreme point.
func PSARSeries(bars []model.PriceBar) []float64 {
	n := len(bars)
	if n == 0 {
		return nil
	}
	psar := make([]float64, n)
	uptrend := make([]bool, n)
	ep := make([]float64, n)
	af := make([]float64, n)

	uptrend[0] = true
	psar[0] = bars[0].Low
	ep[0] = bars[0].High
	af[0] = PSARInitialAF

	for i := 1; i < n; i++ {
		prev := psar[i-1]
		next := prev + af[i-1]*(ep[i-1]-prev)

		if uptrend[i-1] {
			next = math.Min(next, bars[i-1].Low)
			if i >= 2 {
				next = math.Min(next, bars[i-2].Low)
			}
			if bars[i].Low < next {
				// Reversal to downtrend.
				uptrend[i] = false
				psar[i] = ep[i-1]
				ep[i] = bars[i].Low
				af[i] = PSARInitialAF
			} else {
				uptrend[i] = true
				psar[i] = next
				if bars[i].High > ep[i-1] {
					ep[i] = bars[i].High
					af[i] = math.Min(af[i-1]+PSARStepAF, PSARMaxAF)
				} else {
					ep[i] = ep[i-1]
					af[i] = af[i-1]
				}
			}
		} else {
			next = math.Max(next, bars[i-1].High)
			if i >= 2 {
				next = math.Max(next, bars[i-2].High)
			}
			if bars[i].High > next {
				// Reversal to uptrend.
				uptrend[i] = true
				psar[i] = ep[i-1]
				ep[i] = bars[i].High
				af[i] = PSARInitialAF
			} else {
				uptrend[i] = false
				psar[i] = next
				if bars[i].Low < ep[i-1] {
					ep[i] = bars[i].Low
					af[i] = math.Min(af[i-1]+PSARStepAF, PSARMaxAF)
				} else {
					ep[i] = ep[i-1]
					af[i] = af[i-1]
				}
			}
		}
	}
	return psar
}

// PSAROnValues runs the stop-and-reverse recurrence over a bare value series
// (no high/low range), used for the PSAR-on-RSI momentum check. The seed SAR
// sits 2% below the first value. Returns the SAR series and per-period
// uptrend flags.
func PSAROnValues(values []float64) ([]float64, []bool) {
	n := len(values)
	if n == 0 {
		return nil, nil
	}
	psar := make([]float64, n)
	uptrend := make([]bool, n)
	ep := make([]float64, n)
	af := make([]float64, n)

	uptrend[0] = true
	psar[0] = values[0] * 0.98
	ep[0] = values[0]
	af[0] = PSARInitialAF

	for i := 1; i < n; i++ {
		next := psar[i-1] + af[i-1]*(ep[i-1]-psar[i-1])

		if uptrend[i-1] {
			if values[i] < next {
				uptrend[i] = false
				psar[i] = ep[i-1]
				ep[i] = values[i]
				af[i] = PSARInitialAF
			} else {
				uptrend[i] = true
				psar[i] = next
				if values[i] > ep[i-1] {
					ep[i] = values[i]
					af[i] = math.Min(af[i-1]+PSARStepAF, PSARMaxAF)
				} else {
					ep[i] = ep[i-1]
					af[i] = af[i-1]
				}
			}
		} else {
			if values[i] > next {
				uptrend[i] = true
				psar[i] = ep[i-1]
				ep[i] = values[i]
				af[i] = PSARInitialAF
			} else {
				uptrend[i] = false
				psar[i] = next
				if values[i] < ep[i-1] {
					ep[i] = values[i]
					af[i] = math.Min(af[i-1]+PSARStepAF, PSARMaxAF)
				} else {
					ep[i] = ep[i-1]
					af[i] = af[i-1]
				}
			}
		}
	}
	return psar, uptrend
}
