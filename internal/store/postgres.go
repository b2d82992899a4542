package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/alphalab-research/alphalab/models"
)

// Postgres persists research runs and backtests.
type Postgres struct {
	*sql.DB
}

// NewPostgres opens a connection and creates the schema if it is missing.
func NewPostgres(databaseURL string) (*Postgres, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}

	// Check connection
	if err := db.Ping(); err != nil {
		return nil, err
	}

	// Create tables if they don't exist
	if err := createTables(db); err != nil {
		return nil, err
	}

	return &Postgres{db}, nil
}

// createTables creates the necessary tables if they don't exist
func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS research_runs (
			run_id TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			universe TEXT NOT NULL,
			interval TEXT NOT NULL,
			horizon INT NOT NULL,
			symbols INT NOT NULL,
			signals INT NOT NULL,
			range_from TIMESTAMPTZ,
			range_to TIMESTAMPTZ,
			bar_rows BIGINT NOT NULL,
			cross_section BOOLEAN NOT NULL,
			report JSONB NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS signal_metrics (
			run_id TEXT NOT NULL REFERENCES research_runs(run_id) ON DELETE CASCADE,
			rank INT NOT NULL,
			signal TEXT NOT NULL,
			ic_pearson DOUBLE PRECISION NOT NULL,
			ic_spearman DOUBLE PRECISION NOT NULL,
			ic_kendall DOUBLE PRECISION NOT NULL,
			obs INT NOT NULL,
			ic_ir DOUBLE PRECISION NOT NULL,
			hit_rate DOUBLE PRECISION NOT NULL,
			quantile_spread DOUBLE PRECISION NOT NULL,
			monotonicity DOUBLE PRECISION NOT NULL,
			turnover_mean DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (run_id, signal)
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS quantile_returns (
			run_id TEXT NOT NULL REFERENCES research_runs(run_id) ON DELETE CASCADE,
			signal TEXT NOT NULL,
			quantile INT NOT NULL,
			bucket_count INT NOT NULL,
			mean_return DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (run_id, signal, quantile)
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS backtest_results (
			run_id TEXT NOT NULL,
			signal TEXT NOT NULL,
			mode TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			results JSONB NOT NULL,
			PRIMARY KEY (run_id, signal, mode)
		)
	`)

	return err
}

// SaveReport stores a run and its per-signal metrics in one transaction.
func (db *Postgres) SaveReport(ctx context.Context, report *models.SignalReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO research_runs (
			run_id, created_at, universe, interval, horizon, symbols, signals,
			range_from, range_to, bar_rows, cross_section, report
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		report.RunID, report.CreatedAt, report.Universe, report.Interval,
		report.Horizon, len(report.Symbols), len(report.Signals),
		report.From, report.To, report.Rows, report.CrossSection, payload)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", report.RunID, err)
	}

	for rank, sm := range report.Signals {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO signal_metrics (
				run_id, rank, signal, ic_pearson, ic_spearman, ic_kendall, obs,
				ic_ir, hit_rate, quantile_spread, monotonicity, turnover_mean
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`,
			report.RunID, rank+1, sm.Name,
			sm.IC.Pearson, sm.IC.Spearman, sm.IC.Kendall, sm.IC.Obs,
			sm.Rolling.IR, sm.Rolling.HitRate,
			sm.Quantiles.Spread, sm.Quantiles.Monotonicity, sm.Turnover.Mean)
		if err != nil {
			return fmt.Errorf("inserting metrics for %s: %w", sm.Name, err)
		}

		for _, bucket := range sm.Quantiles.Buckets {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO quantile_returns (run_id, signal, quantile, bucket_count, mean_return)
				VALUES ($1, $2, $3, $4, $5)
			`, report.RunID, sm.Name, bucket.Quantile, bucket.Count, bucket.MeanReturn)
			if err != nil {
				return fmt.Errorf("inserting quantile %d for %s: %w", bucket.Quantile, sm.Name, err)
			}
		}
	}

	return tx.Commit()
}

// SaveBacktest stores or replaces one backtest for a run.
func (db *Postgres) SaveBacktest(ctx context.Context, runID string, results *models.BacktestResults) error {
	payload, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("marshaling backtest: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO backtest_results (run_id, signal, mode, created_at, results)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (run_id, signal, mode)
		DO UPDATE SET
			created_at = EXCLUDED.created_at,
			results = EXCLUDED.results
	`, runID, results.Signal, results.Mode, time.Now().UTC(), payload)

	return err
}

// ListRuns returns stored runs, newest first.
func (db *Postgres) ListRuns(ctx context.Context) ([]models.RunSummary, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT run_id, created_at, universe, interval, symbols, signals
		FROM research_runs
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.RunSummary
	for rows.Next() {
		var r models.RunSummary
		if err := rows.Scan(&r.RunID, &r.CreatedAt, &r.Universe, &r.Interval, &r.Symbols, &r.Signals); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// GetReport loads one run's full report.
func (db *Postgres) GetReport(ctx context.Context, runID string) (*models.SignalReport, error) {
	var payload []byte

	err := db.QueryRowContext(ctx, `
		SELECT report FROM research_runs WHERE run_id = $1
	`, runID).Scan(&payload)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // No run found
		}
		return nil, err
	}

	var report models.SignalReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("unmarshaling report %s: %w", runID, err)
	}

	return &report, nil
}

// GetBacktests loads every stored backtest for a run.
func (db *Postgres) GetBacktests(ctx context.Context, runID string) ([]models.BacktestResults, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT results FROM backtest_results
		WHERE run_id = $1
		ORDER BY created_at
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.BacktestResults
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}

		var res models.BacktestResults
		if err := json.Unmarshal(payload, &res); err != nil {
			return nil, fmt.Errorf("unmarshaling backtest for %s: %w", runID, err)
		}
		out = append(out, res)
	}

	return out, rows.Err()
}
