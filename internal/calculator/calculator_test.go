package calculator

import (
	"errors"
	"math"
	"testing"
	"time"

	"sectorbot/internal/model"
)

func barsFromCloses(closes []float64) []model.PriceBar {
	bars := make([]model.PriceBar, len(closes))
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		bars[i] = model.PriceBar{
			Date:   day.AddDate(0, 0, i),
			Open:   c * 0.995,
			High:   c * 1.01,
			Low:    c * 0.99,
			Close:  c,
			Volume: 1_000_000,
		}
	}
	return bars
}

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestCalculateSMA(t *testing.T) {
	prices := []float64{1, 2, 3, 4, 5, 6}
	got, err := CalculateSMA(prices, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 5.0 {
		t.Errorf("expected SMA 5.0, got %v", got)
	}
}

func TestCalculateSMA_InsufficientHistory(t *testing.T) {
	_, err := CalculateSMA([]float64{1, 2}, 5)
	if !errors.Is(err, model.ErrInsufficientHistory) {
		t.Errorf("expected ErrInsufficientHistory, got %v", err)
	}
}

func TestEMASeries_SeedAndSmoothing(t *testing.T) {
	values := []float64{10, 20, 30}
	ema := EMASeries(values, 3) // alpha = 0.5
	if ema[0] != 10 {
		t.Errorf("expected seed 10, got %v", ema[0])
	}
	if !almostEqual(ema[1], 15, 1e-9) {
		t.Errorf("expected 15, got %v", ema[1])
	}
	if !almostEqual(ema[2], 22.5, 1e-9) {
		t.Errorf("expected 22.5, got %v", ema[2])
	}
}

func TestRSISeries_AllGainsIsHundred(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	rsi := RSISeries(closes, 14)
	if last := rsi[len(rsi)-1]; last != 100.0 {
		t.Errorf("expected RSI 100 for monotone gains, got %v", last)
	}
	// Warmup region must be zero.
	for i := 0; i < 14; i++ {
		if rsi[i] != 0 {
			t.Errorf("expected warmup zero at index %d, got %v", i, rsi[i])
		}
	}
}

func TestRSISeries_Bounded(t *testing.T) {
	closes := []float64{44, 44.34, 44.09, 44.15, 43.61, 44.33, 44.83, 45.1,
		45.42, 45.84, 46.08, 45.89, 46.03, 45.61, 46.28, 46.0, 46.03, 46.41}
	rsi := RSISeries(closes, 14)
	for i := 14; i < len(rsi); i++ {
		if rsi[i] < 0 || rsi[i] > 100 {
			t.Errorf("RSI out of bounds at %d: %v", i, rsi[i])
		}
	}
	if rsi[14] < 60 || rsi[14] > 80 {
		t.Errorf("expected first RSI in the 60-80 band for this series, got %v", rsi[14])
	}
}

func TestCalculateRSI_InsufficientHistory(t *testing.T) {
	_, err := CalculateRSI(barsFromCloses([]float64{1, 2, 3}), 14)
	if !errors.Is(err, model.ErrInsufficientHistory) {
		t.Errorf("expected ErrInsufficientHistory, got %v", err)
	}
}

func TestMACDSeries_HistogramIsLineMinusSignal(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + 10*math.Sin(float64(i)/7)
	}
	line, signal, hist := MACDSeries(closes)
	for i := range closes {
		if !almostEqual(hist[i], line[i]-signal[i], 1e-9) {
			t.Fatalf("histogram mismatch at %d", i)
		}
	}
}

func TestCalculateMACD_UptrendPositiveLine(t *testing.T) {
	closes := make([]float64, 80)
	for i := range closes {
		closes[i] = 100 * math.Pow(1.01, float64(i))
	}
	macd, err := CalculateMACD(barsFromCloses(closes))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if macd.Line <= 0 {
		t.Errorf("expected positive MACD line in steady uptrend, got %v", macd.Line)
	}
}

func TestPSARSeries_UptrendStaysBelowLows(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + 2*float64(i)
	}
	bars := barsFromCloses(closes)
	psar := PSARSeries(bars)
	// After the seed, a steady uptrend keeps the SAR below each bar's low.
	for i := 1; i < len(bars); i++ {
		if psar[i] >= bars[i].Low {
			t.Errorf("SAR %v not below low %v at %d", psar[i], bars[i].Low, i)
		}
	}
}

func TestPSARSeries_ReversalOnBreakdown(t *testing.T) {
	closes := []float64{100, 102, 104, 106, 108, 110, 112, 114, 90, 85, 80}
	bars := barsFromCloses(closes)
	psar := PSARSeries(bars)
	n := len(bars) - 1
	if bars[n].Close > psar[n] {
		t.Errorf("expected bearish SAR after breakdown: close %v, sar %v", bars[n].Close, psar[n])
	}
}

func TestPSAROnValues_TracksDirection(t *testing.T) {
	up := []float64{50, 52, 54, 56, 58, 60, 62, 64}
	_, trend := PSAROnValues(up)
	if !trend[len(trend)-1] {
		t.Error("expected uptrend for rising values")
	}

	down := []float64{60, 58, 40, 35, 30, 25, 20, 15}
	_, trend = PSAROnValues(down)
	if trend[len(trend)-1] {
		t.Error("expected downtrend for falling values")
	}
}

func TestATRPercent_ConstantRange(t *testing.T) {
	// Flat closes with a fixed 2% high-low range: ATR% converges near 2.
	bars := barsFromCloses([]float64{
		100, 100, 100, 100, 100, 100, 100, 100, 100, 100,
		100, 100, 100, 100, 100, 100, 100, 100, 100, 100,
	})
	got, err := ATRPercent(bars, 14)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(got, 2.0, 0.1) {
		t.Errorf("expected ATR%% near 2.0, got %v", got)
	}
}

func TestATRPercent_InsufficientHistory(t *testing.T) {
	_, err := ATRPercent(barsFromCloses([]float64{1, 2}), 14)
	if !errors.Is(err, model.ErrInsufficientHistory) {
		t.Errorf("expected ErrInsufficientHistory, got %v", err)
	}
}

func TestADXSeries_StrongTrendHighADX(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + 3*float64(i)
	}
	bars := barsFromCloses(closes)
	res := ADXSeries(bars, 14)
	n := len(bars) - 1
	if res.ADX[n] < 25 {
		t.Errorf("expected strong-trend ADX >= 25, got %v", res.ADX[n])
	}
	if res.PlusDI[n] <= res.MinusDI[n] {
		t.Errorf("expected +DI > -DI in uptrend: %v vs %v", res.PlusDI[n], res.MinusDI[n])
	}
}

func TestADXSeries_WarmupZero(t *testing.T) {
	bars := barsFromCloses(make([]float64, 40))
	for i := range bars {
		bars[i].Close = 100
		bars[i].High = 101
		bars[i].Low = 99
	}
	res := ADXSeries(bars, 14)
	for i := 0; i < 27; i++ {
		if res.ADX[i] != 0 {
			t.Errorf("expected ADX warmup zero at %d, got %v", i, res.ADX[i])
		}
	}
}

func TestCalculateADX_InsufficientHistory(t *testing.T) {
	_, err := CalculateADX(barsFromCloses(make([]float64, 10)), 14)
	if !errors.Is(err, model.ErrInsufficientHistory) {
		t.Errorf("expected ErrInsufficientHistory, got %v", err)
	}
}
