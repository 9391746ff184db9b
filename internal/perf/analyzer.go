// Package perf computes performance metrics from a backtest's equity curve
// and closed-trade log.
package perf

import (
	"fmt"
	"math"
	"time"

	"sectorbot/internal/model"
)

// TradingDaysPerYear annualizes period returns for the risk ratios.
const TradingDaysPerYear = 252

// EquityPoint is one mark-to-market observation of total account value.
type EquityPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Metrics is the full performance report for one run. Percentages are in
// points (12.5 means 12.5%).
type Metrics struct {
	TotalReturnPct     float64 `json:"total_return_pct"`
	CAGRPct            float64 `json:"cagr_pct"`
	MaxDrawdownPct     float64 `json:"max_drawdown_pct"`
	Sharpe             float64 `json:"sharpe"`
	Sortino            float64 `json:"sortino"`
	WinRatePct         float64 `json:"win_rate_pct"`
	ProfitFactor       float64 `json:"profit_factor"`
	AvgWinPct          float64 `json:"avg_win_pct"`
	AvgLossPct         float64 `json:"avg_loss_pct"`
	Trades             int     `json:"trades"`
	Wins               int     `json:"wins"`
	Losses             int     `json:"losses"`
	BenchmarkReturnPct float64 `json:"benchmark_return_pct"`
	AlphaPct           float64 `json:"alpha_pct"`
}

// Analyzer computes metrics. RiskFreeRate is annual, as a decimal (0.04 for
// 4%).
type Analyzer struct {
	RiskFreeRate float64
}

// Analyze computes the report from an ordered equity curve, the closed
// trades, and an optional buy-and-hold benchmark curve over the same span.
func (a Analyzer) Analyze(equity []EquityPoint, trades []model.ClosedTrade, benchmark []EquityPoint) (*Metrics, error) {
	if len(equity) < 2 {
		return nil, fmt.Errorf("perf: %d equity points: %w", len(equity), model.ErrInsufficientHistory)
	}
	first, last := equity[0], equity[len(equity)-1]
	if first.Value <= 0 {
		return nil, fmt.Errorf("perf: non-positive starting equity %.2f: %w", first.Value, model.ErrInvalidConfiguration)
	}

	m := &Metrics{
		TotalReturnPct: (last.Value/first.Value - 1) * 100,
		MaxDrawdownPct: maxDrawdown(equity),
		Trades:         len(trades),
	}

	// CAGR over the actual calendar span.
	years := last.Date.Sub(first.Date).Hours() / 24 / 365.25
	if years > 0 {
		m.CAGRPct = (math.Pow(last.Value/first.Value, 1/years) - 1) * 100
	}

	returns := periodReturns(equity)
	rfDaily := a.RiskFreeRate / TradingDaysPerYear
	m.Sharpe = sharpe(returns, rfDaily)
	m.Sortino = sortino(returns, rfDaily)

	a.tradeStats(m, trades)

	if len(benchmark) >= 2 && benchmark[0].Value > 0 {
		m.BenchmarkReturnPct = (benchmark[len(benchmark)-1].Value/benchmark[0].Value - 1) * 100
		m.AlphaPct = m.TotalReturnPct - m.BenchmarkReturnPct
	}

	return m, nil
}

func (a Analyzer) tradeStats(m *Metrics, trades []model.ClosedTrade) {
	var grossWin, grossLoss, winPctSum, lossPctSum float64
	for i := range trades {
		t := &trades[i]
		pnl := t.PnL()
		if pnl > 0 {
			m.Wins++
			grossWin += pnl
			winPctSum += t.PnLPercent()
		} else if pnl < 0 {
			m.Losses++
			grossLoss += -pnl
			lossPctSum += t.PnLPercent()
		}
	}
	if m.Trades > 0 {
		m.WinRatePct = float64(m.Wins) / float64(m.Trades) * 100
	}
	if grossLoss > 0 {
		m.ProfitFactor = grossWin / grossLoss
	} else if grossWin > 0 {
		m.ProfitFactor = math.Inf(1)
	}
	if m.Wins > 0 {
		m.AvgWinPct = winPctSum / float64(m.Wins)
	}
	if m.Losses > 0 {
		m.AvgLossPct = lossPctSum / float64(m.Losses)
	}
}

// maxDrawdown returns the worst peak-to-trough decline as a negative
// percentage.
func maxDrawdown(equity []EquityPoint) float64 {
	peak := equity[0].Value
	dd := 0.0
	for _, p := range equity {
		if p.Value > peak {
			peak = p.Value
		}
		if peak > 0 {
			d := (p.Value - peak) / peak * 100
			if d < dd {
				dd = d
			}
		}
	}
	return dd
}

func periodReturns(equity []EquityPoint) []float64 {
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Value
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, equity[i].Value/prev-1)
	}
	return out
}

func sharpe(returns []float64, rfDaily float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - rfDaily
	}
	sd := stddev(excess)
	if sd == 0 {
		return 0
	}
	return meanOf(excess) / sd * math.Sqrt(TradingDaysPerYear)
}

// sortino penalizes downside deviation only.
func sortino(returns []float64, rfDaily float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	var sumExcess, sumSqDown float64
	for _, r := range returns {
		e := r - rfDaily
		sumExcess += e
		if e < 0 {
			sumSqDown += e * e
		}
	}
	down := math.Sqrt(sumSqDown / float64(len(returns)))
	if down == 0 {
		return 0
	}
	return sumExcess / float64(len(returns)) / down * math.Sqrt(TradingDaysPerYear)
}

func meanOf(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	m := meanOf(values)
	var sumSq float64
	for _, v := range values {
		d := v - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}
