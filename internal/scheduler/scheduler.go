// Package scheduler runs the daily live scan on a cron schedule: fetch
// fresh history, evaluate the latest period, record the signal snapshot,
// commit the decisions, and persist the session state.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"sectorbot/internal/collector"
	"sectorbot/internal/config"
	"sectorbot/internal/model"
	"sectorbot/internal/recorder"
	"sectorbot/internal/sbi"
	"sectorbot/internal/sim"
	"sectorbot/internal/strategy"
)

// LookbackDays of history fetched per scan: enough for the regime's 200-day
// average plus indicator warmup, in calendar days.
const LookbackDays = 400

// Scheduler manages the daily scan cron task.
type Scheduler struct {
	Cron    *cron.Cron
	cfg     *config.Config
	fetcher collector.Fetcher
	rec     recorder.Recorder
	log     zerolog.Logger
	ctx     context.Context
}

// New creates a Scheduler.
func New(ctx context.Context, cfg *config.Config, fetcher collector.Fetcher, rec recorder.Recorder, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		Cron:    cron.New(cron.WithSeconds()),
		cfg:     cfg,
		fetcher: fetcher,
		rec:     rec,
		log:     log,
		ctx:     ctx,
	}
}

// Register wires the daily scan into the cron table.
func (s *Scheduler) Register(dailyCron string) error {
	if _, err := s.Cron.AddFunc(dailyCron, s.dailyScan); err != nil {
		return fmt.Errorf("register daily scan: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.Cron.Stop()
	s.log.Info().Msg("scheduler stopped")
}

// RunScanNow executes the daily scan immediately (manual trigger or
// RUN_ON_START).
func (s *Scheduler) RunScanNow() error {
	return s.scan()
}

func (s *Scheduler) dailyScan() {
	if err := s.scan(); err != nil {
		s.log.Error().Err(err).Msg("daily scan failed")
	}
}

func (s *Scheduler) scan() error {
	s.log.Info().Msg("running daily scan")
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -LookbackDays)

	builder := &collector.Builder{Fetcher: s.fetcher, Workers: s.cfg.DataSource.Workers, Log: s.log}
	ds, err := builder.Build(s.ctx, s.cfg.Benchmark, s.cfg.VIXSymbol, s.cfg.Sectors, start, end)
	if err != nil {
		return fmt.Errorf("build dataset: %w", err)
	}

	engine, err := s.newEngine(ds)
	if err != nil {
		return err
	}

	state, err := strategy.LoadState(s.cfg.Strategy.StateFile)
	if err != nil {
		return fmt.Errorf("load session state: %w", err)
	}
	engine.RestorePositions(state.Positions)

	snap, err := engine.EvaluateLatest()
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	s.logSignals(snap)

	if err := s.rec.RecordRun(&recorder.RunMeta{
		RunID:     engine.RunID(),
		Kind:      "scan",
		Mode:      snap.Mode,
		StartedAt: time.Now().UTC(),
	}); err != nil {
		s.log.Error().Err(err).Msg("record run")
	}
	if err := s.rec.RecordSnapshot(engine.RunID(), snap); err != nil {
		s.log.Error().Err(err).Msg("record snapshot")
	}

	trades, err := engine.Commit(snap)
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	if len(trades) > 0 {
		if err := s.rec.RecordTrades(engine.RunID(), trades); err != nil {
			s.log.Error().Err(err).Msg("record trades")
		}
	}

	state.Positions = engine.Positions()
	if err := strategy.SaveState(s.cfg.Strategy.StateFile, state); err != nil {
		return fmt.Errorf("save session state: %w", err)
	}
	s.log.Info().
		Int("trades", len(trades)).
		Int("positions", len(state.Positions)).
		Msg("daily scan done")
	return nil
}

func (s *Scheduler) newEngine(ds *collector.Dataset) (*sim.Engine, error) {
	limits, err := strategy.LimitsFor(s.cfg.AccountSize)
	if err != nil {
		return nil, err
	}
	cats, err := s.cfg.CategoryMap()
	if err != nil {
		return nil, err
	}
	mode, err := model.ParseMode(s.cfg.Mode)
	if err != nil {
		return nil, err
	}
	return sim.NewEngine(sim.Config{
		Mode:           mode,
		Limits:         limits,
		EntryThreshold: s.cfg.Strategy.SBIEntryThreshold,
		RotationRSI:    s.cfg.Strategy.RotationRSIThreshold,
		FillPolicy:     sim.FillPolicy(s.cfg.Strategy.FillPolicy),
		DurationSource: sbi.DurationSource(s.cfg.Strategy.DurationSource),
		Categories:     cats,
		InitialEquity:  s.cfg.Strategy.InitialEquity,
		RiskFreeRate:   s.cfg.Strategy.RiskFreeRate,
		Log:            s.log,
	}, ds)
}

func (s *Scheduler) logSignals(snap *model.SignalSnapshot) {
	for _, en := range snap.Entries {
		s.log.Info().Str("ticker", en.Ticker).Str("sector", en.Sector).
			Int("score", en.Score).Float64("weight", en.Weight).Msg("entry signal")
	}
	for _, ex := range snap.Exits {
		s.log.Info().Str("ticker", ex.Ticker).Str("sector", ex.Sector).
			Str("reason", ex.Reason).Msg("exit signal")
	}
	for _, rot := range snap.Rotations {
		s.log.Info().Str("out", rot.ExitTicker).Str("in", rot.Ticker).
			Str("sector", rot.Sector).Msg("rotation signal")
	}
}
