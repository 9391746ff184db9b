// Package recorder persists run output for later analysis: run metadata,
// per-period signal snapshots, the append-only trade log, and backtest
// metrics.
package recorder

import (
	"time"

	"sectorbot/internal/model"
	"sectorbot/internal/perf"
)

// RunMeta identifies one scan or backtest run.
type RunMeta struct {
	RunID     string
	Kind      string // "scan" or "backtest"
	Mode      string
	StartedAt time.Time
}

// Recorder persists run output. Implementations must keep the column schema
// stable; downstream renderers and execution collaborators key off these
// exact fields.
type Recorder interface {
	RecordRun(meta *RunMeta) error
	RecordSnapshot(runID string, snap *model.SignalSnapshot) error
	RecordTrades(runID string, trades []model.TradeRecord) error
	RecordMetrics(runID string, m *perf.Metrics) error
	Close() error
}
