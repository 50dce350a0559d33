package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Kind of a recorded run.
type Kind string

const (
	KindSimulation  Kind = "simulation"
	KindCalculation Kind = "calculation"
)

// Run is a summary of one calculator or simulation request.
type Run struct {
	ID                  string          `json:"id"`
	Kind                Kind            `json:"kind"`
	Params              json.RawMessage `json:"params"`
	Seed                int64           `json:"seed,omitempty"`
	WinProbability      float64         `json:"winProbability"`
	EdgePercent         float64         `json:"edgePercent"`
	Stake               float64         `json:"stake,omitempty"`
	ProbabilityOfProfit float64         `json:"probabilityOfProfit,omitempty"`
	MeanFinalBankroll   float64         `json:"meanFinalBankroll,omitempty"`
	MedianFinalBankroll float64         `json:"medianFinalBankroll,omitempty"`
	RiskOfRuin          float64         `json:"riskOfRuin,omitempty"`
	DurationMs          int64           `json:"durationMs"`
	CreatedAt           time.Time       `json:"createdAt"`
}

// DB stores run history in SQLite.
type DB struct {
	db *sql.DB
}

// NewDB opens (or creates) the history database at dbPath.
func NewDB(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db: db}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		params TEXT NOT NULL,
		seed INTEGER NOT NULL DEFAULT 0,
		win_probability REAL NOT NULL,
		edge_percent REAL NOT NULL,
		stake REAL NOT NULL DEFAULT 0,
		probability_of_profit REAL NOT NULL DEFAULT 0,
		mean_final_bankroll REAL NOT NULL DEFAULT 0,
		median_final_bankroll REAL NOT NULL DEFAULT 0,
		risk_of_ruin REAL NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind, created_at);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating tables: %w", err)
	}
	return nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

// AddRun inserts run, assigning an ID and timestamp when they are unset.
// It returns the stored run's ID.
func (d *DB) AddRun(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	if len(run.Params) == 0 {
		run.Params = json.RawMessage("{}")
	}

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO runs (id, kind, params, seed, win_probability, edge_percent, stake,
			probability_of_profit, mean_final_bankroll, median_final_bankroll, risk_of_ruin,
			duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Kind, string(run.Params), run.Seed, run.WinProbability, run.EdgePercent, run.Stake,
		run.ProbabilityOfProfit, run.MeanFinalBankroll, run.MedianFinalBankroll, run.RiskOfRuin,
		run.DurationMs, run.CreatedAt.UTC())
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}
	return run.ID, nil
}

const selectRuns = `
	SELECT id, kind, params, seed, win_probability, edge_percent, stake,
		probability_of_profit, mean_final_bankroll, median_final_bankroll, risk_of_ruin,
		duration_ms, created_at
	FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var run Run
	var params string
	err := s.Scan(&run.ID, &run.Kind, &params, &run.Seed, &run.WinProbability, &run.EdgePercent, &run.Stake,
		&run.ProbabilityOfProfit, &run.MeanFinalBankroll, &run.MedianFinalBankroll, &run.RiskOfRuin,
		&run.DurationMs, &run.CreatedAt)
	run.Params = json.RawMessage(params)
	return run, err
}

// GetRun retrieves a run by ID. A missing run returns nil, nil.
func (d *DB) GetRun(ctx context.Context, id string) (*Run, error) {
	row := d.db.QueryRowContext(ctx, selectRuns+` WHERE id = ?`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning run: %w", err)
	}
	return &run, nil
}

// RecentRuns returns up to limit runs, newest first.
func (d *DB) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	return d.query(ctx, selectRuns+` ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
}

// RunsByKind returns up to limit runs of one kind, newest first.
func (d *DB) RunsByKind(ctx context.Context, kind Kind, limit int) ([]Run, error) {
	return d.query(ctx, selectRuns+` WHERE kind = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`, kind, limit)
}

func (d *DB) query(ctx context.Context, q string, args ...any) ([]Run, error) {
	rows, err := d.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// DeleteBefore removes runs created before cutoff and reports how many went.
func (d *DB) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := d.db.ExecContext(ctx, `DELETE FROM runs WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("deleting runs: %w", err)
	}
	return result.RowsAffected()
}
