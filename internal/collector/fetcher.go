// Package collector retrieves and materializes price history. The simulation
// core only ever sees a fully-built Dataset; all network I/O happens here.
package collector

import (
	"context"
	"time"

	"sectorbot/internal/model"
)

// Fetcher retrieves daily price bars for one symbol over a date range,
// ordered ascending.
type Fetcher interface {
	FetchDailyBars(ctx context.Context, symbol string, start, end time.Time) (model.Series, error)
	Name() string
}
