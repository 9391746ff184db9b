package collector

import (
	"context"
	"hash/fnv"
	"math"
	"time"

	"sectorbot/internal/model"
)

// MockFetcher serves deterministic synthetic series for tests and dry runs.
// Fixed series can be injected per symbol via Data; Fail lists symbols that
// return an error, for exercising data-gap handling.
type MockFetcher struct {
	Data map[string]model.Series
	Fail map[string]error
}

func (m *MockFetcher) Name() string { return "mock" }

// FetchDailyBars returns the injected series if present, otherwise a
// synthetic weekday series derived only from the symbol and date range. The
// same inputs always produce the same bars.
func (m *MockFetcher) FetchDailyBars(_ context.Context, symbol string, start, end time.Time) (model.Series, error) {
	if err, ok := m.Fail[symbol]; ok {
		return model.Series{}, err
	}
	if s, ok := m.Data[symbol]; ok {
		return s, nil
	}
	return SyntheticSeries(symbol, start, end), nil
}

// SyntheticSeries generates a weekday bar series with a symbol-dependent
// base price, drift and wave, so distinct symbols score differently but
// reproducibly.
func SyntheticSeries(symbol string, start, end time.Time) model.Series {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	seed := h.Sum32()

	base := 50 + float64(seed%400)              // 50..449
	drift := 0.0005 + float64(seed%7)*0.0004    // mild uptrend
	waveAmp := 0.01 + float64(seed%5)*0.005     // 1..3% wave
	wavePeriod := 15 + float64(seed%10)         // days per cycle

	var bars []model.PriceBar
	i := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		trend := base * math.Pow(1+drift, float64(i))
		wave := 1 + waveAmp*math.Sin(2*math.Pi*float64(i)/wavePeriod)
		c := trend * wave
		bars = append(bars, model.PriceBar{
			Date:   time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC),
			Open:   c * 0.997,
			High:   c * 1.008,
			Low:    c * 0.992,
			Close:  c,
			Volume: float64(1_000_000 + seed%500_000),
		})
		i++
	}
	return model.Series{Symbol: symbol, Bars: bars}
}
