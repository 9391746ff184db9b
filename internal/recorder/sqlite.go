package recorder

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"sectorbot/internal/model"
	"sectorbot/internal/perf"
)

// SQLiteRecorder persists run output to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	log zerolog.Logger
	mu  sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs
// migrations.
func NewSQLiteRecorder(dbPath string, log zerolog.Logger) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode for concurrent reads while the daemon writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id     TEXT PRIMARY KEY,
			kind       TEXT NOT NULL,
			mode       TEXT NOT NULL,
			started_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS signal_snapshots (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id      TEXT NOT NULL,
			as_of       INTEGER NOT NULL,
			mode        TEXT,
			regime      TEXT,
			parents     TEXT,
			entries     TEXT,
			exits       TEXT,
			rotations   TEXT,
			holds       TEXT,
			positions   TEXT,
			skipped     INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_run ON signal_snapshots(run_id, as_of)`,

		`CREATE TABLE IF NOT EXISTS trades (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id    TEXT NOT NULL,
			date      INTEGER NOT NULL,
			action    TEXT NOT NULL,
			sector    TEXT,
			ticker    TEXT NOT NULL,
			ticker_in TEXT,
			price     REAL,
			price_in  REAL,
			weight    REAL,
			reason    TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id, date)`,

		`CREATE TABLE IF NOT EXISTS backtest_metrics (
			run_id               TEXT PRIMARY KEY,
			total_return_pct     REAL,
			cagr_pct             REAL,
			max_drawdown_pct     REAL,
			sharpe               REAL,
			sortino              REAL,
			win_rate_pct         REAL,
			profit_factor        REAL,
			avg_win_pct          REAL,
			avg_loss_pct         REAL,
			trades               INTEGER,
			benchmark_return_pct REAL,
			alpha_pct            REAL
		)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordRun(meta *RunMeta) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO runs (run_id, kind, mode, started_at) VALUES (?,?,?,?)`,
		meta.RunID, meta.Kind, meta.Mode, meta.StartedAt.Unix())
	return err
}

func (r *SQLiteRecorder) RecordSnapshot(runID string, snap *model.SignalSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cols := map[string][]byte{}
	for name, v := range map[string]any{
		"parents":   snap.Parents,
		"entries":   snap.Entries,
		"exits":     snap.Exits,
		"rotations": snap.Rotations,
		"holds":     snap.Holds,
		"positions": snap.Positions,
	} {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", name, err)
		}
		cols[name] = data
	}
	parents, entries, exits := cols["parents"], cols["entries"], cols["exits"]
	rotations, holds, positions := cols["rotations"], cols["holds"], cols["positions"]

	_, err := r.db.Exec(`INSERT INTO signal_snapshots
		(run_id, as_of, mode, regime, parents, entries, exits, rotations, holds, positions, skipped)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		runID, snap.AsOf.Unix(), snap.Mode, snap.Regime,
		string(parents), string(entries), string(exits), string(rotations),
		string(holds), string(positions), snap.Skipped,
	)
	return err
}

func (r *SQLiteRecorder) RecordTrades(runID string, trades []model.TradeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO trades
		(run_id, date, action, sector, ticker, ticker_in, price, price_in, weight, reason)
		VALUES (?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, t := range trades {
		if _, err := stmt.Exec(runID, t.Date.Unix(), string(t.Action), t.Sector,
			t.Ticker, t.TickerIn, t.Price, t.PriceIn, t.Weight, t.Reason); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) RecordMetrics(runID string, m *perf.Metrics) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT OR REPLACE INTO backtest_metrics
		(run_id, total_return_pct, cagr_pct, max_drawdown_pct, sharpe, sortino,
		 win_rate_pct, profit_factor, avg_win_pct, avg_loss_pct, trades,
		 benchmark_return_pct, alpha_pct)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		runID, m.TotalReturnPct, m.CAGRPct, m.MaxDrawdownPct, m.Sharpe, m.Sortino,
		m.WinRatePct, m.ProfitFactor, m.AvgWinPct, m.AvgLossPct, m.Trades,
		m.BenchmarkReturnPct, m.AlphaPct,
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}

// TradeCount returns how many trades a run recorded, used by tests and the
// backtest summary.
func (r *SQLiteRecorder) TradeCount(runID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM trades WHERE run_id = ?`, runID).Scan(&n)
	return n, err
}
