package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"dev/bravebird/page-verifier/pkg/models"
)

// DB represents the database connection
type DB struct {
	conn *sql.DB
}

// New creates a new database connection
func New(dsn string) (*DB, error) {
	dsn, err := normalizeDSN(dsn)
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{conn: conn}, nil
}

// normalizeDSN turns on parseTime, which scanning DATETIME columns into
// time.Time requires
func normalizeDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid MySQL DSN: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS verification_runs (
		id VARCHAR(36) PRIMARY KEY,
		base_url VARCHAR(512) NOT NULL,
		temporal_workflow_id VARCHAR(255) NOT NULL DEFAULT '',
		temporal_run_id VARCHAR(255) NOT NULL DEFAULT '',
		status VARCHAR(16) NOT NULL,
		screenshot_path VARCHAR(1024) NOT NULL DEFAULT '',
		error_message TEXT,
		started_at DATETIME(3) NULL,
		completed_at DATETIME(3) NULL,
		INDEX idx_started_at (started_at)
	)`,
	`CREATE TABLE IF NOT EXISTS verification_steps (
		run_id VARCHAR(36) NOT NULL,
		step_index INT NOT NULL,
		kind VARCHAR(32) NOT NULL,
		target VARCHAR(1024) NOT NULL,
		status VARCHAR(16) NOT NULL,
		duration_ms BIGINT NOT NULL DEFAULT 0,
		error_message TEXT,
		PRIMARY KEY (run_id, step_index),
		FOREIGN KEY (run_id) REFERENCES verification_runs(id) ON DELETE CASCADE
	)`,
}

// Migrate creates the tables if they do not exist
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// ==================== Verification Runs ====================

// CreateRun inserts a pending or running run
func (db *DB) CreateRun(ctx context.Context, run *models.VerificationRun) error {
	query := `
		INSERT INTO verification_runs (id, base_url, temporal_workflow_id, temporal_run_id, status, error_message, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	if run.StartedAt == nil {
		now := time.Now()
		run.StartedAt = &now
	}

	_, err := db.conn.ExecContext(ctx, query,
		run.ID,
		run.BaseURL,
		run.TemporalWorkflowID,
		run.TemporalRunID,
		run.Status,
		run.ErrorMessage,
		run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID. It returns nil when no such run exists.
func (db *DB) GetRun(ctx context.Context, id string) (*models.VerificationRun, error) {
	query := `
		SELECT id, base_url, temporal_workflow_id, temporal_run_id, status,
		       screenshot_path, COALESCE(error_message, ''), started_at, completed_at
		FROM verification_runs
		WHERE id = ?
	`

	run, err := scanRun(db.conn.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

// ListRuns retrieves the most recent runs
func (db *DB) ListRuns(ctx context.Context, limit int) ([]models.VerificationRun, error) {
	query := `
		SELECT id, base_url, temporal_workflow_id, temporal_run_id, status,
		       screenshot_path, COALESCE(error_message, ''), started_at, completed_at
		FROM verification_runs
		ORDER BY started_at DESC
		LIMIT ?
	`

	rows, err := db.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []models.VerificationRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}

	return runs, rows.Err()
}

// UpdateRunStatus updates the status of a run
func (db *DB) UpdateRunStatus(ctx context.Context, id string, status models.RunStatus, errorMsg string) error {
	query := `
		UPDATE verification_runs
		SET status = ?, error_message = ?,
		    completed_at = CASE WHEN ? IN ('success', 'failed', 'canceled') THEN NOW(3) ELSE completed_at END
		WHERE id = ?
	`

	_, err := db.conn.ExecContext(ctx, query, status, errorMsg, status, id)
	return err
}

// MarkStarted moves a pending run to running once its workflow exists.
// A run that already finished keeps its status.
func (db *DB) MarkStarted(ctx context.Context, id, temporalRunID string) error {
	query := `
		UPDATE verification_runs
		SET status = ?, temporal_run_id = ?
		WHERE id = ? AND status = ?
	`

	_, err := db.conn.ExecContext(ctx, query, models.StatusRunning, temporalRunID, id, models.StatusPending)
	return err
}

// SaveResult records the final outcome of a run together with its steps
func (db *DB) SaveResult(ctx context.Context, result models.VerificationResult) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	completed := result.StartedAt.Add(time.Duration(result.Duration) * time.Millisecond)
	_, err = tx.ExecContext(ctx, `
		UPDATE verification_runs
		SET status = ?, screenshot_path = ?, error_message = ?, completed_at = ?
		WHERE id = ?
	`, result.Status, result.ScreenshotPath, result.ErrorMessage, completed, result.RunID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM verification_steps WHERE run_id = ?`, result.RunID); err != nil {
		return fmt.Errorf("failed to clear steps: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO verification_steps (run_id, step_index, kind, target, status, duration_ms, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, step := range result.Steps {
		_, err := stmt.ExecContext(ctx,
			result.RunID,
			step.Index,
			step.Kind,
			step.Target,
			step.Status,
			step.Duration,
			step.ErrorMessage,
		)
		if err != nil {
			return fmt.Errorf("failed to insert step: %w", err)
		}
	}

	return tx.Commit()
}

// GetSteps retrieves the step results of a run in execution order
func (db *DB) GetSteps(ctx context.Context, runID string) ([]models.StepResult, error) {
	query := `
		SELECT step_index, kind, target, status, duration_ms, COALESCE(error_message, '')
		FROM verification_steps
		WHERE run_id = ?
		ORDER BY step_index
	`

	rows, err := db.conn.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get steps: %w", err)
	}
	defer rows.Close()

	var steps []models.StepResult
	for rows.Next() {
		var step models.StepResult
		err := rows.Scan(
			&step.Index,
			&step.Kind,
			&step.Target,
			&step.Status,
			&step.Duration,
			&step.ErrorMessage,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		steps = append(steps, step)
	}

	return steps, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*models.VerificationRun, error) {
	var run models.VerificationRun
	err := row.Scan(
		&run.ID,
		&run.BaseURL,
		&run.TemporalWorkflowID,
		&run.TemporalRunID,
		&run.Status,
		&run.ScreenshotPath,
		&run.ErrorMessage,
		&run.StartedAt,
		&run.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}
