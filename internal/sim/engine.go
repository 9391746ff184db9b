// Package sim runs the simulation loop: a strict left-to-right pass over the
// benchmark trading calendar, recomputing trend and scores from truncated
// history at each period, driving the position state machine, and marking
// the account to market. Live single-step and backtest share the same
// evaluation path so their decisions match exactly.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sectorbot/internal/collector"
	"sectorbot/internal/model"
	"sectorbot/internal/perf"
	"sectorbot/internal/regime"
	"sectorbot/internal/sbi"
	"sectorbot/internal/strategy"
	"sectorbot/internal/trend"
)

// FillPolicy selects the execution price for a period's signals.
type FillPolicy string

const (
	// FillSameClose fills at the decision day's closing price.
	FillSameClose FillPolicy = "same_close"
	// FillNextOpen fills at the next trading day's opening price.
	FillNextOpen FillPolicy = "next_open"
)

// ParseFillPolicy validates a configured fill policy, defaulting to
// same-close when empty.
func ParseFillPolicy(s string) (FillPolicy, error) {
	switch FillPolicy(s) {
	case FillSameClose, FillNextOpen:
		return FillPolicy(s), nil
	case "":
		return FillSameClose, nil
	default:
		return "", fmt.Errorf("%w: unknown fill policy %q", model.ErrInvalidConfiguration, s)
	}
}

// CashBufferFraction of equity is never deployed, so fills and slippage
// cannot drive the cash balance negative.
const CashBufferFraction = 0.05

// Config parameterizes one simulation run.
type Config struct {
	Mode           model.Mode // auto resolves per period from the regime
	Limits         strategy.Limits
	EntryThreshold int
	RotationRSI    float64
	FillPolicy     FillPolicy
	DurationSource sbi.DurationSource
	Categories     model.CategoryMap
	InitialEquity  float64
	RiskFreeRate   float64
	Log            zerolog.Logger
}

// Result is the output of a completed backtest.
type Result struct {
	RunID        string
	Trades       []model.TradeRecord
	Closed       []model.ClosedTrade
	Equity       []perf.EquityPoint
	Metrics      *perf.Metrics
	LastSnapshot *model.SignalSnapshot
	Skipped      int // instrument-periods excluded for data gaps
}

// holding is the share-level view of one position, owned by the engine; the
// state machine only tracks weights.
type holding struct {
	sector     string
	shares     float64
	entryDate  time.Time
	entryPrice float64
}

// Engine owns one run over one dataset. Not safe for concurrent use; run
// one engine per backtest.
type Engine struct {
	cfg     Config
	ds      *collector.Dataset
	machine *strategy.Machine
	scorer  *sbi.Scorer
	log     zerolog.Logger

	runID    string
	cash     float64
	holdings map[string]holding
	equity   []perf.EquityPoint
	trades   []model.TradeRecord
	closed   []model.ClosedTrade
	skipped  int

	pending *model.SignalSnapshot // decisions awaiting next-open fills
}

// NewEngine validates the configuration and binds it to a dataset.
func NewEngine(cfg Config, ds *collector.Dataset) (*Engine, error) {
	if cfg.InitialEquity <= 0 {
		cfg.InitialEquity = 100_000
	}
	if cfg.FillPolicy == "" {
		cfg.FillPolicy = FillSameClose
	}
	if cfg.DurationSource == "" {
		cfg.DurationSource = sbi.DurationChild
	}
	if _, err := ParseFillPolicy(string(cfg.FillPolicy)); err != nil {
		return nil, err
	}
	if _, err := sbi.ParseDurationSource(string(cfg.DurationSource)); err != nil {
		return nil, err
	}
	machine, err := strategy.NewMachine(strategy.Config{
		Limits:         cfg.Limits,
		EntryThreshold: cfg.EntryThreshold,
		RotationRSI:    cfg.RotationRSI,
		Log:            cfg.Log,
	})
	if err != nil {
		return nil, err
	}
	return &Engine{
		cfg:      cfg,
		ds:       ds,
		machine:  machine,
		scorer:   sbi.NewScorer(cfg.Categories),
		log:      cfg.Log,
		runID:    uuid.NewString(),
		cash:     cfg.InitialEquity,
		holdings: make(map[string]holding),
	}, nil
}

// RunID identifies this engine's run in recorded output.
func (e *Engine) RunID() string { return e.runID }

// RestorePositions seeds the machine's holdings, used by a live session
// resuming from persisted state. Share counts are reconstructed from each
// position's entry price and weight.
func (e *Engine) RestorePositions(positions []model.Position) {
	e.machine.Restore(positions)
	for _, pos := range positions {
		shares := 0.0
		if pos.EntryPrice > 0 {
			shares = e.allocationFor(pos.Weight, e.cfg.InitialEquity) / pos.EntryPrice
		}
		e.holdings[pos.Ticker] = holding{
			sector:     pos.Sector,
			shares:     shares,
			entryDate:  pos.EntryDate,
			entryPrice: pos.EntryPrice,
		}
	}
}

// Positions exposes the machine's current holdings.
func (e *Engine) Positions() []model.Position { return e.machine.Positions() }

// Backtest runs the full calendar pass. The context is checked between
// periods only; a cancelled run returns the context error with no partial
// result.
func (e *Engine) Backtest(ctx context.Context) (*Result, error) {
	calendar := e.ds.Benchmark.Bars
	if len(calendar) < trend.MinBars+1 {
		return nil, fmt.Errorf("backtest: %d calendar days: %w", len(calendar), model.ErrInsufficientHistory)
	}

	e.log.Info().
		Str("run_id", e.runID).
		Str("mode", string(e.cfg.Mode)).
		Str("fill_policy", string(e.cfg.FillPolicy)).
		Int("calendar_days", len(calendar)).
		Msg("backtest started")

	var lastSnap *model.SignalSnapshot
	for i := trend.MinBars; i < len(calendar); i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		date := calendar[i].Date

		// Fill the prior period's decisions at today's open.
		if e.pending != nil {
			fills := e.fillPrices(e.pending, date, true)
			if err := e.applyCommit(e.pending, fills, date); err != nil {
				return nil, err
			}
			e.pending = nil
		}

		snap, err := e.evaluate(date)
		if err != nil {
			return nil, err
		}
		lastSnap = snap
		e.skipped += snap.Skipped

		switch e.cfg.FillPolicy {
		case FillSameClose:
			fills := e.fillPrices(snap, date, false)
			if err := e.applyCommit(snap, fills, date); err != nil {
				return nil, err
			}
		case FillNextOpen:
			if hasSignals(snap) {
				e.pending = snap
			}
		}

		e.equity = append(e.equity, perf.EquityPoint{Date: date, Value: e.markToMarket(date)})
	}

	benchmarkCurve := e.benchmarkCurve()
	metrics, err := perf.Analyzer{RiskFreeRate: e.cfg.RiskFreeRate}.Analyze(e.equity, e.closed, benchmarkCurve)
	if err != nil && !errors.Is(err, model.ErrInsufficientHistory) {
		return nil, err
	}

	e.log.Info().
		Str("run_id", e.runID).
		Int("trades", len(e.trades)).
		Int("skipped_instrument_periods", e.skipped).
		Msg("backtest finished")

	return &Result{
		RunID:        e.runID,
		Trades:       e.trades,
		Closed:       e.closed,
		Equity:       e.equity,
		Metrics:      metrics,
		LastSnapshot: lastSnap,
		Skipped:      e.skipped,
	}, nil
}

// EvaluateLatest computes the signal snapshot for the most recent calendar
// date without mutating any state. Live daemons call this each day and
// Commit only when execution is confirmed.
func (e *Engine) EvaluateLatest() (*model.SignalSnapshot, error) {
	last, ok := e.ds.Benchmark.Last()
	if !ok {
		return nil, fmt.Errorf("evaluate: empty benchmark: %w", model.ErrInsufficientHistory)
	}
	return e.evaluate(last.Date)
}

// Commit applies a snapshot at its date's closing prices and returns the
// resulting trades.
func (e *Engine) Commit(snap *model.SignalSnapshot) ([]model.TradeRecord, error) {
	before := len(e.trades)
	fills := e.fillPrices(snap, snap.AsOf, false)
	if err := e.applyCommit(snap, fills, snap.AsOf); err != nil {
		return nil, err
	}
	return e.trades[before:], nil
}

// evaluate recomputes every trend state and score from history truncated at
// date, then steps the machine. Nothing after date is visible to any
// decision.
func (e *Engine) evaluate(date time.Time) (*model.SignalSnapshot, error) {
	mode, detected := e.resolveMode(date)

	parents := make(map[string]*model.TrendState, len(e.ds.Parents))
	skipped := 0
	for symbol := range e.ds.Parents {
		series := e.ds.Parents[symbol]
		cut := series.Truncate(date)
		state, err := trend.Evaluate(*cut)
		if err != nil {
			if errors.Is(err, model.ErrInsufficientHistory) {
				skipped++
				continue
			}
			return nil, err
		}
		parents[symbol] = state
	}

	var children []strategy.ChildEval
	for ticker := range e.ds.Children {
		series := e.ds.Children[ticker]
		sector := e.ds.SectorOf[ticker]
		cut := series.Truncate(date)
		lastBar, ok := cut.Last()
		if !ok || !sameDay(lastBar.Date, date) {
			skipped++ // gap on this date
			continue
		}
		childTrend, err := trend.Evaluate(*cut)
		if err != nil {
			if errors.Is(err, model.ErrInsufficientHistory) {
				skipped++
				continue
			}
			return nil, err
		}
		days := childTrend.ConsecutivePeriods
		if e.cfg.DurationSource == sbi.DurationParent {
			if p, ok := parents[sector]; ok {
				days = p.ConsecutivePeriods
			}
		}
		score, err := e.scorer.Score(*cut, days)
		if err != nil {
			if errors.Is(err, model.ErrInsufficientHistory) {
				skipped++
				continue
			}
			return nil, err
		}
		children = append(children, strategy.ChildEval{
			Ticker: ticker,
			Sector: sector,
			Price:  lastBar.Close,
			Score:  score,
			Trend:  childTrend,
		})
	}
	return e.machine.Step(strategy.StepInput{
		AsOf:     date,
		Mode:     mode,
		Regime:   detected,
		Parents:  parents,
		Children: children,
		Skipped:  skipped,
	})
}

// resolveMode turns auto into a concrete mode using the regime as of date.
func (e *Engine) resolveMode(date time.Time) (model.Mode, model.Regime) {
	if e.cfg.Mode != model.ModeAuto {
		return e.cfg.Mode, ""
	}
	bench := e.ds.Benchmark.Truncate(date)
	vixClose := 0.0
	if vixCut := e.ds.VIX.Truncate(date); vixCut.Len() > 0 {
		lastVIX, _ := vixCut.Last()
		vixClose = lastVIX.Close
	}
	r := regime.Detect(*bench, vixClose)
	return regime.ModeFor(r), r
}

// fillPrices gathers execution prices for every ticker a snapshot touches.
// A ticker with no bar on the fill date is left out, which defers or drops
// that signal.
func (e *Engine) fillPrices(snap *model.SignalSnapshot, date time.Time, atOpen bool) map[string]float64 {
	fills := make(map[string]float64)
	add := func(ticker string) {
		if _, done := fills[ticker]; done {
			return
		}
		if price, ok := e.priceOn(ticker, date, atOpen); ok {
			fills[ticker] = price
		}
	}
	for _, ex := range snap.Exits {
		add(ex.Ticker)
	}
	for _, rot := range snap.Rotations {
		add(rot.ExitTicker)
		add(rot.Ticker)
	}
	for _, en := range snap.Entries {
		add(en.Ticker)
	}
	return fills
}

func (e *Engine) priceOn(ticker string, date time.Time, atOpen bool) (float64, bool) {
	series, ok := e.ds.Children[ticker]
	if !ok {
		return 0, false
	}
	cut := series.Truncate(date)
	bar, ok := cut.Last()
	if !ok || !sameDay(bar.Date, date) {
		return 0, false
	}
	if atOpen {
		return bar.Open, true
	}
	return bar.Close, true
}

// applyCommit drives the machine's commit and maintains the cash and share
// ledger, pairing exits with their entries into closed trades.
func (e *Engine) applyCommit(snap *model.SignalSnapshot, fills map[string]float64, date time.Time) error {
	trades, _, err := e.machine.Commit(snap, fills, date)
	if err != nil {
		return err
	}
	for _, t := range trades {
		switch t.Action {
		case model.ActionExit:
			e.closeHolding(t.Ticker, t.Sector, t.Price, date, t.Reason)
		case model.ActionRotate:
			e.closeHolding(t.Ticker, t.Sector, t.Price, date, t.Reason)
			e.openHolding(t.TickerIn, t.Sector, t.PriceIn, t.Weight, date)
		case model.ActionEnter:
			e.openHolding(t.Ticker, t.Sector, t.Price, t.Weight, date)
		}
	}
	e.trades = append(e.trades, trades...)
	e.normalizeCash()
	return nil
}

func (e *Engine) closeHolding(ticker, sector string, price float64, date time.Time, reason string) {
	h, ok := e.holdings[ticker]
	if !ok {
		return
	}
	delete(e.holdings, ticker)
	e.cash += h.shares * price
	e.closed = append(e.closed, model.ClosedTrade{
		Ticker:     ticker,
		Sector:     sector,
		EntryDate:  h.entryDate,
		ExitDate:   date,
		EntryPrice: h.entryPrice,
		ExitPrice:  price,
		Shares:     h.shares,
		ExitReason: reason,
	})
}

func (e *Engine) openHolding(ticker, sector string, price, weight float64, date time.Time) {
	if price <= 0 {
		return
	}
	alloc := e.allocationFor(weight, e.markToMarket(date))
	if alloc > e.cash {
		alloc = e.cash
	}
	if alloc <= 0 {
		return
	}
	shares := alloc / price
	e.cash -= alloc
	e.holdings[ticker] = holding{
		sector:     sector,
		shares:     shares,
		entryDate:  date,
		entryPrice: price,
	}
}

// allocationFor sizes one position: deployable equity split across the
// total slot budget, scaled by the locked weight.
func (e *Engine) allocationFor(weight, totalEquity float64) float64 {
	maxTotal := e.cfg.Limits.MaxTotal
	if maxTotal <= 0 {
		maxTotal = 10
	}
	return totalEquity * (1 - CashBufferFraction) / float64(maxTotal) * weight
}

// markToMarket values cash plus all holdings at the latest close on or
// before date.
func (e *Engine) markToMarket(date time.Time) float64 {
	total := e.cash
	for ticker, h := range e.holdings {
		series, ok := e.ds.Children[ticker]
		if !ok {
			continue
		}
		cut := series.Truncate(date)
		if bar, ok := cut.Last(); ok {
			total += h.shares * bar.Close
		} else {
			total += h.shares * h.entryPrice
		}
	}
	return total
}

// benchmarkCurve scales the benchmark to the starting equity for
// buy-and-hold comparison over the simulated span.
func (e *Engine) benchmarkCurve() []perf.EquityPoint {
	if len(e.equity) == 0 {
		return nil
	}
	start, end := e.equity[0].Date, e.equity[len(e.equity)-1].Date
	var out []perf.EquityPoint
	var base float64
	for _, bar := range e.ds.Benchmark.Bars {
		if bar.Date.Before(start) || bar.Date.After(end) {
			continue
		}
		if base == 0 {
			base = bar.Close
		}
		out = append(out, perf.EquityPoint{
			Date:  bar.Date,
			Value: e.cfg.InitialEquity * bar.Close / base,
		})
	}
	return out
}

func hasSignals(snap *model.SignalSnapshot) bool {
	return len(snap.Entries) > 0 || len(snap.Exits) > 0 || len(snap.Rotations) > 0
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Drift guards against float accumulation taking cash fractionally below
// zero after many fills.
func (e *Engine) normalizeCash() {
	if e.cash < 0 && math.Abs(e.cash) < 1e-6 {
		e.cash = 0
	}
}
