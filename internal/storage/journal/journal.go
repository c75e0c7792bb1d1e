// Package journal indexes finished backtest runs in SQLite for listing and querying.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/newthinker/triggerlab/internal/backtest"
	"github.com/newthinker/triggerlab/internal/core"
)

// Run is the indexed summary of one stored run
type Run struct {
	ID               string    `json:"id"`
	Symbol           string    `json:"symbol"`
	Asset            string    `json:"asset,omitempty"`
	Mode             string    `json:"mode"`
	Side             string    `json:"side"`
	Threshold        float64   `json:"threshold"`
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	Bars             int       `json:"bars"`
	Trades           int       `json:"trades"`
	HitRate          float64   `json:"hit_rate"`
	AverageReturn    float64   `json:"average_return"`
	CumulativeReturn float64   `json:"cumulative_return"`
	CreatedAt        time.Time `json:"created_at"`
}

// TradeRow is one trade of a run, returns in percent
type TradeRow struct {
	Date       time.Time `json:"date"`
	Weekday    string    `json:"weekday"`
	EntryTime  time.Time `json:"entry_time"`
	EntryPrice float64   `json:"entry_price"`
	ExitTime   time.Time `json:"exit_time"`
	ExitPrice  float64   `json:"exit_price"`
	Return     float64   `json:"return"`
}

// Journal is a SQLite-backed run index
type Journal struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (or creates) the database at path and runs migrations.
// Use ":memory:" for a throwaway journal.
func Open(path string, logger *zap.Logger) (*Journal, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating journal dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer; an in-memory database also lives on a single connection
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
	}

	j := &Journal{db: db, logger: logger}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info("run journal opened", zap.String("path", path))
	return j, nil
}

func (j *Journal) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id                TEXT PRIMARY KEY,
			symbol            TEXT NOT NULL,
			asset             TEXT,
			mode              TEXT NOT NULL,
			side              TEXT NOT NULL,
			threshold         REAL,
			start_date        INTEGER,
			end_date          INTEGER,
			bars              INTEGER,
			trades            INTEGER,
			hit_rate          REAL,
			average_return    REAL,
			cumulative_return REAL,
			created_at        INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_symbol ON runs(symbol)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at)`,

		`CREATE TABLE IF NOT EXISTS trades (
			run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			seq         INTEGER NOT NULL,
			date        INTEGER NOT NULL,
			weekday     TEXT,
			entry_time  INTEGER,
			entry_price REAL,
			exit_time   INTEGER,
			exit_price  REAL,
			return_pct  REAL,
			PRIMARY KEY (run_id, seq)
		)`,
	}

	for _, s := range stmts {
		if _, err := j.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// Record indexes a finished run and its trades in one transaction. It satisfies backtest.Recorder.
func (j *Journal) Record(ctx context.Context, res *backtest.Result) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var trades int
	var hitRate, avg, cum float64
	if res.Report != nil {
		trades = len(res.Trades)
		if s := res.Summary; s != nil {
			hitRate, avg, cum = s.HitRate, s.AverageReturn, s.CumulativeReturn
		}
	}

	_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO runs
		(id, symbol, asset, mode, side, threshold, start_date, end_date,
		 bars, trades, hit_rate, average_return, cumulative_return, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID, res.Symbol, string(res.Asset), string(res.Params.Mode), string(res.Params.Side),
		res.Params.Threshold, unix(res.Start), unix(res.End),
		res.Bars, trades, hitRate, avg, cum, unix(res.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM trades WHERE run_id = ?`, res.ID); err != nil {
		return fmt.Errorf("clear trades: %w", err)
	}
	if res.Report != nil {
		for i, t := range res.Trades {
			_, err := tx.ExecContext(ctx, `INSERT INTO trades
				(run_id, seq, date, weekday, entry_time, entry_price, exit_time, exit_price, return_pct)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				res.ID, i, unix(t.Date), t.Weekday().String(),
				unix(t.EntryTime), t.EntryPrice, unix(t.ExitTime), t.ExitPrice, t.Return()*100,
			)
			if err != nil {
				return fmt.Errorf("insert trade %d: %w", i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	j.logger.Debug("run journaled", zap.String("id", res.ID), zap.Int("trades", trades))
	return nil
}

const runColumns = `id, symbol, asset, mode, side, threshold, start_date, end_date,
	bars, trades, hit_rate, average_return, cumulative_return, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var r Run
	var start, end, created int64
	err := s.Scan(&r.ID, &r.Symbol, &r.Asset, &r.Mode, &r.Side, &r.Threshold, &start, &end,
		&r.Bars, &r.Trades, &r.HitRate, &r.AverageReturn, &r.CumulativeReturn, &created)
	if err != nil {
		return Run{}, err
	}
	r.Start, r.End, r.CreatedAt = fromUnix(start), fromUnix(end), fromUnix(created)
	return r, nil
}

// Get returns one run or core.ErrRunNotFound
func (j *Journal) Get(ctx context.Context, id string) (Run, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, core.ErrRunNotFound
	}
	return r, err
}

// Runs lists the newest runs first, optionally restricted to a symbol
func (j *Journal) Runs(ctx context.Context, symbol string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + runColumns + ` FROM runs`
	args := []any{}
	if symbol != "" {
		q += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	q += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Trades returns a run's trades in order
func (j *Journal) Trades(ctx context.Context, id string) ([]TradeRow, error) {
	if _, err := j.Get(ctx, id); err != nil {
		return nil, err
	}

	rows, err := j.db.QueryContext(ctx, `SELECT date, weekday, entry_time, entry_price, exit_time, exit_price, return_pct
		FROM trades WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRow
	for rows.Next() {
		var t TradeRow
		var date, entry, exit int64
		if err := rows.Scan(&date, &t.Weekday, &entry, &t.EntryPrice, &exit, &t.ExitPrice, &t.Return); err != nil {
			return nil, err
		}
		t.Date, t.EntryTime, t.ExitTime = fromUnix(date), fromUnix(entry), fromUnix(exit)
		out = append(out, t)
	}
	return out, rows.Err()
}

// Close closes the database
func (j *Journal) Close() error {
	return j.db.Close()
}

func unix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func fromUnix(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(v, 0).UTC()
}
