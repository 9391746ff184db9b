package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"sectorbot/internal/collector"
	"sectorbot/internal/config"
	"sectorbot/internal/model"
	"sectorbot/internal/recorder"
	"sectorbot/internal/sbi"
	"sectorbot/internal/scheduler"
	"sectorbot/internal/sim"
	"sectorbot/internal/strategy"
)

var (
	configPath    string
	backtestStart string
	backtestEnd   string
	useMockData   bool
)

var rootCmd = &cobra.Command{
	Use:   "sectorbot",
	Short: "Sector-gated equity scoring and rotating-portfolio engine",
	Long: `sectorbot scores equities for entry quality with a 0-10 composite index,
gates entries on each sector parent's trend, and runs a rotating portfolio
either live (daily scans) or as a deterministic historical backtest.`,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one live scan now and print the signal snapshot",
	RunE:  runScan,
}

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a historical backtest over a date range",
	RunE:  runBacktest,
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the daily scan on a cron schedule until interrupted",
	RunE:  runDaemon,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVar(&useMockData, "mock", false, "use synthetic market data instead of the live source")
	backtestCmd.Flags().StringVar(&backtestStart, "start", "", "backtest start date (YYYY-MM-DD)")
	backtestCmd.Flags().StringVar(&backtestEnd, "end", "", "backtest end date (YYYY-MM-DD)")
	rootCmd.AddCommand(scanCmd, backtestCmd, daemonCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
}

func loadConfig() (*config.Config, error) {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		configPath = v
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newFetcher(cfg *config.Config) collector.Fetcher {
	if useMockData {
		return &collector.MockFetcher{}
	}
	return collector.NewYahooFetcher(cfg.DataSource.Proxy)
}

func newRecorder(cfg *config.Config, log zerolog.Logger) recorder.Recorder {
	if cfg.Database.SQLitePath == "" {
		return recorder.NewNoopRecorder()
	}
	sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log)
	if err != nil {
		log.Warn().Err(err).Msg("sqlite recorder unavailable, recording disabled")
		return recorder.NewNoopRecorder()
	}
	return sr
}

func runScan(cmd *cobra.Command, _ []string) error {
	log := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rec := newRecorder(cfg, log)
	defer rec.Close()

	sched := scheduler.New(cmd.Context(), cfg, newFetcher(cfg), rec, log)
	return sched.RunScanNow()
}

func runBacktest(cmd *cobra.Command, _ []string) error {
	log := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	start, end, err := backtestRange()
	if err != nil {
		return err
	}
	rec := newRecorder(cfg, log)
	defer rec.Close()

	builder := &collector.Builder{Fetcher: newFetcher(cfg), Workers: cfg.DataSource.Workers, Log: log}
	ds, err := builder.Build(cmd.Context(), cfg.Benchmark, cfg.VIXSymbol, cfg.Sectors, start, end)
	if err != nil {
		return fmt.Errorf("build dataset: %w", err)
	}

	limits, err := strategy.LimitsFor(cfg.AccountSize)
	if err != nil {
		return err
	}
	cats, err := cfg.CategoryMap()
	if err != nil {
		return err
	}
	mode, err := model.ParseMode(cfg.Mode)
	if err != nil {
		return err
	}
	engine, err := sim.NewEngine(sim.Config{
		Mode:           mode,
		Limits:         limits,
		EntryThreshold: cfg.Strategy.SBIEntryThreshold,
		RotationRSI:    cfg.Strategy.RotationRSIThreshold,
		FillPolicy:     sim.FillPolicy(cfg.Strategy.FillPolicy),
		DurationSource: sbi.DurationSource(cfg.Strategy.DurationSource),
		Categories:     cats,
		InitialEquity:  cfg.Strategy.InitialEquity,
		RiskFreeRate:   cfg.Strategy.RiskFreeRate,
		Log:            log,
	}, ds)
	if err != nil {
		return err
	}

	if err := rec.RecordRun(&recorder.RunMeta{
		RunID:     engine.RunID(),
		Kind:      "backtest",
		Mode:      cfg.Mode,
		StartedAt: time.Now().UTC(),
	}); err != nil {
		log.Error().Err(err).Msg("record run")
	}

	res, err := engine.Backtest(cmd.Context())
	if err != nil {
		return err
	}
	if err := rec.RecordTrades(res.RunID, res.Trades); err != nil {
		log.Error().Err(err).Msg("record trades")
	}
	if res.Metrics != nil {
		if err := rec.RecordMetrics(res.RunID, res.Metrics); err != nil {
			log.Error().Err(err).Msg("record metrics")
		}
	}
	printBacktestSummary(res)
	return nil
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	log := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rec := newRecorder(cfg, log)
	defer rec.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sched := scheduler.New(ctx, cfg, newFetcher(cfg), rec, log)
	if err := sched.Register(cfg.Schedule.DailyCron); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	if os.Getenv("RUN_ON_START") == "1" {
		if err := sched.RunScanNow(); err != nil {
			log.Error().Err(err).Msg("startup scan failed")
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("shutting down")
	case <-ctx.Done():
	}
	return nil
}

func backtestRange() (time.Time, time.Time, error) {
	end := time.Now().UTC()
	start := end.AddDate(-3, 0, 0)
	var err error
	if backtestStart != "" {
		start, err = time.Parse("2006-01-02", backtestStart)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse --start: %w", err)
		}
	}
	if backtestEnd != "" {
		end, err = time.Parse("2006-01-02", backtestEnd)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse --end: %w", err)
		}
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start %s not before end %s",
			model.ErrInvalidConfiguration, start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	return start, end, nil
}

func printBacktestSummary(res *sim.Result) {
	fmt.Printf("run %s: %d trades, %d instrument-periods skipped\n",
		res.RunID, len(res.Trades), res.Skipped)
	if res.Metrics == nil {
		return
	}
	m := res.Metrics
	fmt.Printf("total return %.2f%%  CAGR %.2f%%  max drawdown %.2f%%\n",
		m.TotalReturnPct, m.CAGRPct, m.MaxDrawdownPct)
	fmt.Printf("sharpe %.2f  sortino %.2f  win rate %.1f%%  profit factor %.2f\n",
		m.Sharpe, m.Sortino, m.WinRatePct, m.ProfitFactor)
	fmt.Printf("benchmark %.2f%%  alpha %.2f%%\n", m.BenchmarkReturnPct, m.AlphaPct)
}
