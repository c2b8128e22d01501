// Package sqlite stores bar history for chart tickers.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"livechart/internal/history"
	"livechart/internal/model"
)

const schema = `
	CREATE TABLE IF NOT EXISTS bars (
		ticker TEXT    NOT NULL,
		ts     INTEGER NOT NULL,
		open   REAL    NOT NULL,
		high   REAL    NOT NULL,
		low    REAL    NOT NULL,
		close  REAL    NOT NULL,
		volume REAL,
		PRIMARY KEY (ticker, ts)
	);
`

func open(path string, conns int) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(conns)
	db.SetMaxIdleConns(conns)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return db, nil
}

// Writer stores history bars. Single connection, one transaction per call.
type Writer struct {
	db *sql.DB
}

// NewWriter opens (and if needed creates) the database at path.
func NewWriter(path string) (*Writer, error) {
	db, err := open(path, 1)
	if err != nil {
		return nil, err
	}
	slog.Info("[sqlite] opened writer", "path", path)
	return &Writer{db: db}, nil
}

// WriteBars replaces the stored history of ticker with bars. Tickers are
// stored upper-case.
func (w *Writer) WriteBars(ctx context.Context, ticker string, bars []model.HistoryBar) error {
	ticker = strings.ToUpper(ticker)
	if err := history.Validate(bars); err != nil {
		return fmt.Errorf("sqlite write %s: %w", ticker, err)
	}
	start := time.Now()

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM bars WHERE ticker = ?`, ticker); err != nil {
		return fmt.Errorf("sqlite clear %s: %w", ticker, err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bars (ticker, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		var vol sql.NullFloat64
		if b.Volume != nil {
			vol = sql.NullFloat64{Float64: *b.Volume, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, ticker, b.Time.Unix(), b.Open, b.High, b.Low, b.Close, vol); err != nil {
			return fmt.Errorf("sqlite insert %s: %w", ticker, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	slog.Info("[sqlite] wrote history", "ticker", ticker, "bars", len(bars), "elapsed", time.Since(start))
	return nil
}

// Close releases the database.
func (w *Writer) Close() error { return w.db.Close() }

// Reader is a history.Source backed by the bars table.
type Reader struct {
	db *sql.DB
}

// NewReader opens the database at path for reading.
func NewReader(path string) (*Reader, error) {
	db, err := open(path, 2)
	if err != nil {
		return nil, err
	}
	slog.Info("[sqlite] opened reader", "path", path)
	return &Reader{db: db}, nil
}

// DB returns the underlying sql.DB for health checks.
func (r *Reader) DB() *sql.DB { return r.db }

// Load implements history.Source. Bars are returned in time order.
func (r *Reader) Load(ctx context.Context, ticker string) ([]model.HistoryBar, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, volume
		FROM bars
		WHERE ticker = ?
		ORDER BY ts ASC
	`, strings.ToUpper(ticker))
	if err != nil {
		return nil, fmt.Errorf("sqlite query bars: %w", err)
	}
	defer rows.Close()

	var bars []model.HistoryBar
	for rows.Next() {
		var (
			b   model.HistoryBar
			ts  int64
			vol sql.NullFloat64
		)
		if err := rows.Scan(&ts, &b.Open, &b.High, &b.Low, &b.Close, &vol); err != nil {
			return nil, fmt.Errorf("sqlite scan bars: %w", err)
		}
		b.Time = time.Unix(ts, 0).UTC()
		if vol.Valid {
			v := vol.Float64
			b.Volume = &v
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, history.ErrNotFound
	}
	return bars, nil
}

// Tickers lists the tickers with stored history.
func (r *Reader) Tickers(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT ticker FROM bars ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query tickers: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Close releases the database.
func (r *Reader) Close() error { return r.db.Close() }
