package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"sectorbot/internal/collector"
	"sectorbot/internal/model"
	"sectorbot/internal/strategy"
)

var simStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// weekdaySeries builds an aligned weekday series from closes with tight 1%
// ranges, the shape that scores well on a steady riser.
func weekdaySeries(symbol string, closes []float64) model.Series {
	bars := make([]model.PriceBar, 0, len(closes))
	d := simStart
	for _, c := range closes {
		for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			d = d.AddDate(0, 0, 1)
		}
		bars = append(bars, model.PriceBar{
			Date:   d,
			Open:   c * 0.997,
			High:   c * 1.005,
			Low:    c * 0.995,
			Close:  c,
			Volume: 1_000_000,
		})
		d = d.AddDate(0, 0, 1)
	}
	return model.Series{Symbol: symbol, Bars: bars}
}

func rising(n int, base, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = base + step*float64(i)
	}
	return out
}

func trendingDataset(t *testing.T, days int) *collector.Dataset {
	t.Helper()
	fetcher := &collector.MockFetcher{Data: map[string]model.Series{
		"SPY":  weekdaySeries("SPY", rising(days, 400, 0.5)),
		"XLK":  weekdaySeries("XLK", rising(days, 150, 1.0)),
		"AAPL": weekdaySeries("AAPL", rising(days, 100, 1.5)),
		"MSFT": weekdaySeries("MSFT", rising(days, 300, 2.0)),
	}}
	b := &collector.Builder{Fetcher: fetcher, Log: zerolog.Nop()}
	ds, err := b.Build(context.Background(), "SPY", "",
		map[string][]string{"XLK": {"AAPL", "MSFT"}},
		simStart, simStart.AddDate(1, 0, 0))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return ds
}

func testConfig(policy FillPolicy) Config {
	return Config{
		Mode:       model.ModeParentBased,
		Limits:     strategy.Limits{MaxTotal: 10, MaxPerSector: 2},
		FillPolicy: policy,
		Log:        zerolog.Nop(),
	}
}

// A clean uptrend with a bullish parent produces entries with locked
// weights, and the backtest completes with a marked equity curve.
func TestBacktest_EntersOnStrongTrend(t *testing.T) {
	engine, err := NewEngine(testConfig(FillSameClose), trendingDataset(t, 80))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	res, err := engine.Backtest(context.Background())
	if err != nil {
		t.Fatalf("Backtest: %v", err)
	}
	if len(res.Trades) == 0 {
		t.Fatal("expected entries in a clean uptrend")
	}
	first := res.Trades[0]
	if first.Action != model.ActionEnter {
		t.Errorf("first trade should be an entry: %+v", first)
	}
	if first.Weight != 1.0 && first.Weight != 2.0 {
		t.Errorf("entry weight must be 1.0 or 2.0, got %v", first.Weight)
	}
	if len(res.Equity) == 0 {
		t.Fatal("equity curve empty")
	}
	if res.Equity[len(res.Equity)-1].Value <= 0 {
		t.Errorf("final equity: %v", res.Equity[len(res.Equity)-1].Value)
	}
	if res.Metrics == nil {
		t.Fatal("metrics missing")
	}
	positions := engine.Positions()
	for _, pos := range positions {
		if pos.Weight != 1.0 && pos.Weight != 2.0 {
			t.Errorf("locked weight corrupted: %+v", pos)
		}
	}
}

// Identical inputs must produce identical decisions, trade for trade.
func TestBacktest_Deterministic(t *testing.T) {
	run := func() *Result {
		engine, err := NewEngine(testConfig(FillSameClose), trendingDataset(t, 80))
		if err != nil {
			t.Fatalf("NewEngine: %v", err)
		}
		res, err := engine.Backtest(context.Background())
		if err != nil {
			t.Fatalf("Backtest: %v", err)
		}
		return res
	}
	a, b := run(), run()
	if len(a.Trades) != len(b.Trades) {
		t.Fatalf("trade counts differ: %d vs %d", len(a.Trades), len(b.Trades))
	}
	for i := range a.Trades {
		if a.Trades[i] != b.Trades[i] {
			t.Errorf("trade %d differs: %+v vs %+v", i, a.Trades[i], b.Trades[i])
		}
	}
	if a.Equity[len(a.Equity)-1].Value != b.Equity[len(b.Equity)-1].Value {
		t.Error("final equity differs between identical runs")
	}
	if a.RunID == b.RunID {
		t.Error("each run should carry its own id")
	}
}

// Extending the dataset with future periods must not change any decision
// made at earlier periods.
func TestBacktest_NoLookAhead(t *testing.T) {
	short, err := NewEngine(testConfig(FillSameClose), trendingDataset(t, 60))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	long, err := NewEngine(testConfig(FillSameClose), trendingDataset(t, 90))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	resShort, err := short.Backtest(context.Background())
	if err != nil {
		t.Fatalf("short backtest: %v", err)
	}
	resLong, err := long.Backtest(context.Background())
	if err != nil {
		t.Fatalf("long backtest: %v", err)
	}
	cutoff := resShort.Equity[len(resShort.Equity)-1].Date
	var longPrefix []model.TradeRecord
	for _, tr := range resLong.Trades {
		if !tr.Date.After(cutoff) {
			longPrefix = append(longPrefix, tr)
		}
	}
	if len(longPrefix) != len(resShort.Trades) {
		t.Fatalf("prefix trade counts differ: %d vs %d", len(longPrefix), len(resShort.Trades))
	}
	for i := range longPrefix {
		if longPrefix[i] != resShort.Trades[i] {
			t.Errorf("trade %d differs with longer future: %+v vs %+v", i, longPrefix[i], resShort.Trades[i])
		}
	}
}

// next_open fills the decision one trading day later at the open.
func TestBacktest_NextOpenFill(t *testing.T) {
	sameClose, err := NewEngine(testConfig(FillSameClose), trendingDataset(t, 80))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	nextOpen, err := NewEngine(testConfig(FillNextOpen), trendingDataset(t, 80))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	resClose, err := sameClose.Backtest(context.Background())
	if err != nil {
		t.Fatalf("same_close: %v", err)
	}
	resOpen, err := nextOpen.Backtest(context.Background())
	if err != nil {
		t.Fatalf("next_open: %v", err)
	}
	if len(resClose.Trades) == 0 || len(resOpen.Trades) == 0 {
		t.Fatal("expected trades under both policies")
	}
	fc, fo := resClose.Trades[0], resOpen.Trades[0]
	if fc.Ticker != fo.Ticker {
		t.Fatalf("policies disagree on the first entry: %s vs %s", fc.Ticker, fo.Ticker)
	}
	if !fo.Date.After(fc.Date) {
		t.Errorf("next_open fill should land later: %v vs %v", fo.Date, fc.Date)
	}
	if fo.Price == fc.Price {
		t.Error("next_open should fill at a different price than same-day close")
	}
}

// A gapped child period is skipped and counted without halting the run.
func TestBacktest_CountsSkippedPeriods(t *testing.T) {
	ds := trendingDataset(t, 80)
	aapl := ds.Children["AAPL"]
	// Punch a hole in the middle of the history.
	aapl.Bars = append(aapl.Bars[:50:50], aapl.Bars[52:]...)
	ds.Children["AAPL"] = aapl

	engine, err := NewEngine(testConfig(FillSameClose), ds)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	res, err := engine.Backtest(context.Background())
	if err != nil {
		t.Fatalf("Backtest: %v", err)
	}
	if res.Skipped < 2 {
		t.Errorf("expected at least 2 skipped instrument-periods, got %d", res.Skipped)
	}
}

func TestBacktest_CancelBetweenPeriods(t *testing.T) {
	engine, err := NewEngine(testConfig(FillSameClose), trendingDataset(t, 80))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := engine.Backtest(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestBacktest_InsufficientCalendar(t *testing.T) {
	engine, err := NewEngine(testConfig(FillSameClose), trendingDataset(t, 10))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if _, err := engine.Backtest(context.Background()); !errors.Is(err, model.ErrInsufficientHistory) {
		t.Errorf("expected ErrInsufficientHistory, got %v", err)
	}
}

// Live evaluation is a pure read; holdings only change on Commit.
func TestEvaluateLatest_DoesNotAccumulateSkips(t *testing.T) {
	ds := trendingDataset(t, 80)
	aapl := ds.Children["AAPL"]
	// Drop the final bar so the latest period always has a gap for AAPL.
	aapl.Bars = aapl.Bars[:len(aapl.Bars)-1]
	ds.Children["AAPL"] = aapl

	warmed, err := NewEngine(testConfig(FillSameClose), ds)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	for i := 0; i < 3; i++ {
		snap, err := warmed.EvaluateLatest()
		if err != nil {
			t.Fatalf("EvaluateLatest: %v", err)
		}
		if snap.Skipped != 1 {
			t.Fatalf("expected 1 gap per evaluation, got %d", snap.Skipped)
		}
	}

	fresh, err := NewEngine(testConfig(FillSameClose), ds)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	warmedRes, err := warmed.Backtest(context.Background())
	if err != nil {
		t.Fatalf("Backtest (after evaluations): %v", err)
	}
	freshRes, err := fresh.Backtest(context.Background())
	if err != nil {
		t.Fatalf("Backtest (fresh): %v", err)
	}
	if warmedRes.Skipped != freshRes.Skipped {
		t.Errorf("live evaluations inflated the skip count: %d vs %d",
			warmedRes.Skipped, freshRes.Skipped)
	}
}

func TestEvaluateLatest_ThenCommit(t *testing.T) {
	engine, err := NewEngine(testConfig(FillSameClose), trendingDataset(t, 80))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	snap, err := engine.EvaluateLatest()
	if err != nil {
		t.Fatalf("EvaluateLatest: %v", err)
	}
	if len(snap.Entries) == 0 {
		t.Fatal("expected entry signals at the latest period")
	}
	if len(engine.Positions()) != 0 {
		t.Fatal("evaluation must not open positions")
	}

	trades, err := engine.Commit(snap)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if len(trades) != len(snap.Entries) {
		t.Errorf("expected %d trades, got %d", len(snap.Entries), len(trades))
	}
	if len(engine.Positions()) != len(snap.Entries) {
		t.Errorf("positions after commit: %+v", engine.Positions())
	}
}

func TestParseFillPolicy(t *testing.T) {
	if p, err := ParseFillPolicy(""); err != nil || p != FillSameClose {
		t.Errorf("default: %v %v", p, err)
	}
	if p, err := ParseFillPolicy("next_open"); err != nil || p != FillNextOpen {
		t.Errorf("next_open: %v %v", p, err)
	}
	if _, err := ParseFillPolicy("market"); !errors.Is(err, model.ErrInvalidConfiguration) {
		t.Errorf("expected ErrInvalidConfiguration, got %v", err)
	}
}
