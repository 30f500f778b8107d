// Package runstore persists deployment run reports in a local SQLite
// database, so operators can inspect what a past run built and where it
// stopped.
package runstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/flowdeploy/flowdeploy/internal/core/plan"
	"github.com/flowdeploy/flowdeploy/internal/shell/provision"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// Store
// =============================================================================

// Store is a SQLite-backed run report store.
type Store struct {
	db *sqlx.DB
}

// Open opens the state database at the given DSN and runs migrations.
// Use ":memory:" for an ephemeral store.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, NewStoreError("Open", "", "failed to open database", ErrConnectionFailed)
	}
	// A single connection keeps an in-memory DSN coherent across the pool.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("Open", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("Open", "", err.Error(), ErrMigrationFailed)
	}

	return &Store{db: db}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{NoTxWrap: true})
	if err != nil {
		return err
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// =============================================================================
// Row Types
// =============================================================================

type runRow struct {
	RunID       string `db:"run_id"`
	Project     string `db:"project"`
	Environment string `db:"environment"`
	StackType   string `db:"stack_type"`
	Target      string `db:"target"`
	StartedAt   string `db:"started_at"`
	FinishedAt  string `db:"finished_at"`
}

type componentRow struct {
	RunID      string `db:"run_id"`
	Position   int    `db:"position"`
	Kind       string `db:"kind"`
	Name       string `db:"name"`
	Variant    string `db:"variant"`
	Status     string `db:"status"`
	Outputs    string `db:"outputs"`
	Error      string `db:"error"`
	DurationMS int64  `db:"duration_ms"`
}

// RunSummary is one row of the run listing.
type RunSummary struct {
	RunID       string
	Project     string
	Environment string
	StackType   string
	Target      string
	StartedAt   time.Time
	Failed      bool
}

// =============================================================================
// Operations
// =============================================================================

// SaveReport persists a run report. The report and its component results are
// written in one transaction.
func (s *Store) SaveReport(ctx context.Context, report *provision.Report) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("SaveReport", report.RunID, "begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO runs (run_id, project, environment, stack_type, target, started_at, finished_at)
		VALUES (:run_id, :project, :environment, :stack_type, :target, :started_at, :finished_at)`,
		runRow{
			RunID:       report.RunID,
			Project:     report.Project,
			Environment: report.Environment,
			StackType:   report.StackType,
			Target:      report.Target,
			StartedAt:   report.StartedAt.UTC().Format(time.RFC3339Nano),
			FinishedAt:  report.FinishedAt.UTC().Format(time.RFC3339Nano),
		})
	if err != nil {
		return NewStoreError("SaveReport", report.RunID, "insert run", err)
	}

	for i, res := range report.Results {
		outputs := "{}"
		if len(res.Outputs) > 0 {
			encoded, err := json.Marshal(res.Outputs)
			if err != nil {
				return NewStoreError("SaveReport", report.RunID, "encode outputs", err)
			}
			outputs = string(encoded)
		}
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO run_components (run_id, position, kind, name, variant, status, outputs, error, duration_ms)
			VALUES (:run_id, :position, :kind, :name, :variant, :status, :outputs, :error, :duration_ms)`,
			componentRow{
				RunID:      report.RunID,
				Position:   i,
				Kind:       string(res.Kind),
				Name:       res.Name,
				Variant:    res.Variant,
				Status:     string(res.Status),
				Outputs:    outputs,
				Error:      res.Error,
				DurationMS: res.Duration.Milliseconds(),
			})
		if err != nil {
			return NewStoreError("SaveReport", report.RunID, "insert component", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("SaveReport", report.RunID, "commit", err)
	}
	return nil
}

// GetRun loads one run report by ID.
func (s *Store) GetRun(ctx context.Context, runID string) (*provision.Report, error) {
	var row runRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM runs WHERE run_id = ?`, runID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewStoreError("GetRun", runID, "no such run", ErrRunNotFound)
	}
	if err != nil {
		return nil, NewStoreError("GetRun", runID, "select run", err)
	}

	var components []componentRow
	err = s.db.SelectContext(ctx, &components,
		`SELECT * FROM run_components WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, NewStoreError("GetRun", runID, "select components", err)
	}

	report := &provision.Report{
		RunID:       row.RunID,
		Project:     row.Project,
		Environment: row.Environment,
		StackType:   row.StackType,
		Target:      row.Target,
	}
	report.StartedAt, _ = time.Parse(time.RFC3339Nano, row.StartedAt)
	report.FinishedAt, _ = time.Parse(time.RFC3339Nano, row.FinishedAt)

	for _, c := range components {
		var outputs plan.Outputs
		if c.Outputs != "" && c.Outputs != "{}" {
			if err := json.Unmarshal([]byte(c.Outputs), &outputs); err != nil {
				return nil, NewStoreError("GetRun", runID, "decode outputs", err)
			}
		}
		report.Results = append(report.Results, provision.ComponentResult{
			Kind:     plan.Kind(c.Kind),
			Name:     c.Name,
			Variant:  c.Variant,
			Status:   provision.ComponentStatus(c.Status),
			Outputs:  outputs,
			Error:    c.Error,
			Duration: time.Duration(c.DurationMS) * time.Millisecond,
		})
	}
	return report, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows []struct {
		runRow
		Failures int `db:"failures"`
	}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT r.*, COUNT(c.run_id) AS failures
		FROM runs r
		LEFT JOIN run_components c ON c.run_id = r.run_id AND c.status = 'failed'
		GROUP BY r.run_id
		ORDER BY r.started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, NewStoreError("ListRuns", "", "select runs", err)
	}

	summaries := make([]RunSummary, 0, len(rows))
	for _, row := range rows {
		started, _ := time.Parse(time.RFC3339Nano, row.StartedAt)
		summaries = append(summaries, RunSummary{
			RunID:       row.RunID,
			Project:     row.Project,
			Environment: row.Environment,
			StackType:   row.StackType,
			Target:      row.Target,
			StartedAt:   started,
			Failed:      row.Failures > 0,
		})
	}
	return summaries, nil
}
