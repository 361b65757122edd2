package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"stockpulse-api/internal/quant"
)

// Store provides SQLite-based persistence: a plain cache of fetched
// price history plus an audit trail of simulation runs.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the database at path and applies the
// schema.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL mode for concurrent readers under the HTTP layer.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS prices (
		symbol TEXT NOT NULL,
		date DATETIME NOT NULL,
		close REAL NOT NULL,
		fetched_at DATETIME NOT NULL,
		PRIMARY KEY (symbol, date)
	);

	CREATE INDEX IF NOT EXISTS idx_prices_symbol_date ON prices(symbol, date);

	CREATE TABLE IF NOT EXISTS simulations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		paths INTEGER NOT NULL,
		horizon INTEGER NOT NULL,
		confidence REAL NOT NULL,
		seed INTEGER NOT NULL,
		mean_path TEXT NOT NULL,
		lower_band TEXT NOT NULL,
		upper_band TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_simulations_symbol ON simulations(symbol, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SavePrices upserts a fetched price series for symbol.
func (s *Store) SavePrices(ctx context.Context, symbol string, series []quant.PricePoint) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO prices (symbol, date, close, fetched_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, p := range series {
		if _, err := stmt.ExecContext(ctx, symbol, p.Date.UTC(), p.Close, now); err != nil {
			return fmt.Errorf("insert price %s %s: %w", symbol, p.Date.Format("2006-01-02"), err)
		}
	}
	return tx.Commit()
}

// LoadPrices returns up to limit most recent closes for symbol in
// chronological order.
func (s *Store) LoadPrices(ctx context.Context, symbol string, limit int) ([]quant.PricePoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, close FROM prices WHERE symbol = ? ORDER BY date DESC LIMIT ?`,
		symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query prices: %w", err)
	}
	defer rows.Close()

	var series []quant.PricePoint
	for rows.Next() {
		var p quant.PricePoint
		if err := rows.Scan(&p.Date, &p.Close); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		series = append(series, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Query is newest-first for the LIMIT; callers want chronological.
	for i, j := 0, len(series)-1; i < j; i, j = i+1, j-1 {
		series[i], series[j] = series[j], series[i]
	}
	return series, nil
}

// LastFetched returns the newest fetched_at timestamp for symbol, or
// the zero time when nothing is cached.
func (s *Store) LastFetched(ctx context.Context, symbol string) (time.Time, error) {
	var fetched time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT fetched_at FROM prices WHERE symbol = ? ORDER BY fetched_at DESC LIMIT 1`,
		symbol).Scan(&fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("query last fetch: %w", err)
	}
	return fetched, nil
}

// SimulationRecord is a persisted summary of one Monte Carlo run.
type SimulationRecord struct {
	ID         int64     `json:"id"`
	Symbol     string    `json:"symbol"`
	CreatedAt  time.Time `json:"createdAt"`
	Paths      int       `json:"paths"`
	Horizon    int       `json:"horizon"`
	Confidence float64   `json:"confidence"`
	Seed       int64     `json:"seed"`
	MeanPath   []float64 `json:"meanPath"`
	Lower      []float64 `json:"lower"`
	Upper      []float64 `json:"upper"`
}

// SaveSimulation records a completed run for symbol.
func (s *Store) SaveSimulation(ctx context.Context, symbol string, res *quant.SimulationResult) error {
	mean, err := json.Marshal(res.MeanPath)
	if err != nil {
		return fmt.Errorf("marshal mean path: %w", err)
	}
	lower, err := json.Marshal(res.Lower)
	if err != nil {
		return fmt.Errorf("marshal lower band: %w", err)
	}
	upper, err := json.Marshal(res.Upper)
	if err != nil {
		return fmt.Errorf("marshal upper band: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO simulations (symbol, created_at, paths, horizon, confidence, seed, mean_path, lower_band, upper_band)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		symbol, time.Now().UTC(), res.Paths, res.Horizon, res.Confidence, res.Seed,
		string(mean), string(lower), string(upper))
	if err != nil {
		return fmt.Errorf("insert simulation: %w", err)
	}
	return nil
}

// RecentSimulations lists the newest runs for symbol, newest first.
func (s *Store) RecentSimulations(ctx context.Context, symbol string, limit int) ([]SimulationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, symbol, created_at, paths, horizon, confidence, seed, mean_path, lower_band, upper_band
		 FROM simulations WHERE symbol = ? ORDER BY created_at DESC, id DESC LIMIT ?`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query simulations: %w", err)
	}
	defer rows.Close()

	var records []SimulationRecord
	for rows.Next() {
		var rec SimulationRecord
		var mean, lower, upper string
		if err := rows.Scan(&rec.ID, &rec.Symbol, &rec.CreatedAt, &rec.Paths, &rec.Horizon,
			&rec.Confidence, &rec.Seed, &mean, &lower, &upper); err != nil {
			return nil, fmt.Errorf("scan simulation: %w", err)
		}
		if err := json.Unmarshal([]byte(mean), &rec.MeanPath); err != nil {
			return nil, fmt.Errorf("decode mean path: %w", err)
		}
		if err := json.Unmarshal([]byte(lower), &rec.Lower); err != nil {
			return nil, fmt.Errorf("decode lower band: %w", err)
		}
		if err := json.Unmarshal([]byte(upper), &rec.Upper); err != nil {
			return nil, fmt.Errorf("decode upper band: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// PurgePrices drops all cached price history. Simulation records are
// kept as history.
func (s *Store) PurgePrices(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM prices`); err != nil {
		return fmt.Errorf("purge prices: %w", err)
	}
	return nil
}
