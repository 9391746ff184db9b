package collector

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sectorbot/internal/model"
)

// Dataset is the fully-materialized input to a simulation run: the benchmark
// calendar series, the volatility index, every sector parent, and every
// child instrument. Built once before the run; the core never fetches.
type Dataset struct {
	Benchmark model.Series
	VIX       model.Series
	Parents   map[string]model.Series // parent symbol -> series
	Children  map[string]model.Series // ticker -> series
	SectorOf  map[string]string       // ticker -> parent symbol
	Failed    []string                // symbols that could not be fetched
}

// Builder fans out fetches across a bounded worker pool and joins the
// results into a Dataset.
type Builder struct {
	Fetcher Fetcher
	Workers int
	Log     zerolog.Logger
}

// Build fetches all instruments for [start, end]. The benchmark must fetch
// cleanly since it drives the trading calendar; any other symbol that fails
// is recorded in Failed and treated as a data gap downstream.
func (b *Builder) Build(ctx context.Context, benchmark, vix string, sectors map[string][]string, start, end time.Time) (*Dataset, error) {
	workers := b.Workers
	if workers <= 0 {
		workers = 4
	}

	bench, err := b.Fetcher.FetchDailyBars(ctx, benchmark, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch benchmark %s: %w", benchmark, err)
	}
	if bench.Len() == 0 {
		return nil, fmt.Errorf("benchmark %s: empty series: %w", benchmark, model.ErrMissingPeriodData)
	}

	ds := &Dataset{
		Benchmark: bench,
		Parents:   make(map[string]model.Series),
		Children:  make(map[string]model.Series),
		SectorOf:  make(map[string]string),
	}

	type job struct {
		symbol string
		parent bool
	}
	var jobs []job
	for parent, children := range sectors {
		jobs = append(jobs, job{symbol: parent, parent: true})
		for _, c := range children {
			jobs = append(jobs, job{symbol: c})
			ds.SectorOf[c] = parent
		}
	}
	if vix != "" {
		jobs = append(jobs, job{symbol: vix})
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
		ch = make(chan job)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range ch {
				series, err := b.Fetcher.FetchDailyBars(ctx, j.symbol, start, end)
				mu.Lock()
				if err != nil {
					b.Log.Warn().Err(err).Str("symbol", j.symbol).Msg("fetch failed, instrument excluded")
					ds.Failed = append(ds.Failed, j.symbol)
				} else if j.symbol == vix {
					ds.VIX = series
				} else if j.parent {
					ds.Parents[j.symbol] = series
				} else {
					ds.Children[j.symbol] = series
				}
				mu.Unlock()
			}
		}()
	}
	for _, j := range jobs {
		select {
		case ch <- j:
		case <-ctx.Done():
			close(ch)
			wg.Wait()
			return nil, ctx.Err()
		}
	}
	close(ch)
	wg.Wait()
	sort.Strings(ds.Failed)

	b.Log.Info().
		Int("parents", len(ds.Parents)).
		Int("children", len(ds.Children)).
		Int("failed", len(ds.Failed)).
		Int("calendar_days", ds.Benchmark.Len()).
		Msg("dataset materialized")
	return ds, nil
}
