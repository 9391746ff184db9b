package calculator

import (
	"sectorbot/internal/model"
)

// MACD holds the latest MACD line, signal line, and histogram values.
type MACD struct {
	Line      float64
	Signal    float64
	Histogram float64
}

const (
	macdFastPeriod   = 12
	macdSlowPeriod   = 26
	macdSignalPeriod = 9
)

// MACDSeries computes the 12/26/9 MACD for every period, returning the MACD
// line, signal line, and histogram series aligned with the input.
func MACDSeries(closes []float64) (line, signal, histogram []float64) {
	if len(closes) == 0 {
		return nil, nil, nil
	}
	fast := EMASeries(closes, macdFastPeriod)
	slow := EMASeries(closes, macdSlowPeriod)

	line = make([]float64, len(closes))
	for i := range closes {
		line[i] = fast[i] - slow[i]
	}
	signal = EMASeries(line, macdSignalPeriod)

	histogram = make([]float64, len(closes))
	for i := range closes {
		histogram[i] = line[i] - signal[i]
	}
	return line, signal, histogram
}

// CalculateMACD returns the latest MACD values for a bar series.
func CalculateMACD(bars []model.PriceBar) (MACD, error) {
	if len(bars) < macdSlowPeriod+macdSignalPeriod {
		return MACD{}, model.ErrInsufficientHistory
	}
	line, signal, histogram := MACDSeries(Closes(bars))
	n := len(bars) - 1
	return MACD{Line: line[n], Signal: signal[n], Histogram: histogram[n]}, nil
}
