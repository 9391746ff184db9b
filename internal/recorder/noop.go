package recorder

import (
	"sectorbot/internal/model"
	"sectorbot/internal/perf"
)

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordRun(_ *RunMeta) error                             { return nil }
func (n *NoopRecorder) RecordSnapshot(_ string, _ *model.SignalSnapshot) error { return nil }
func (n *NoopRecorder) RecordTrades(_ string, _ []model.TradeRecord) error     { return nil }
func (n *NoopRecorder) RecordMetrics(_ string, _ *perf.Metrics) error          { return nil }
func (n *NoopRecorder) Close() error                                           { return nil }
