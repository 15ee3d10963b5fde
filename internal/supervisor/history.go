package supervisor

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// RunRecord is one supervisor run as stored in the run_history table.
type RunRecord struct {
	ID           int64
	RunID        string
	Query        string
	MaxRepos     int
	DryRun       bool
	StartedAt    time.Time
	EndedAt      sql.NullTime
	State        State
	ProducerExit sql.NullInt64
	ConsumerExit sql.NullInt64
	Interrupted  bool
}

// HistoryDB wraps the SQL database connection holding run history.
type HistoryDB struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewHistoryDB opens the database and ensures the schema is set up.
func NewHistoryDB(dataSourceName string, logger zerolog.Logger) (*HistoryDB, error) {
	logger = logger.With().Str("module", "HistoryDB").Logger()

	dbDir := filepath.Dir(dataSourceName)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history database directory %s: %w", dbDir, err)
	}

	dbInstance, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("sql.Open failed for %s: %w", dataSourceName, err)
	}
	// A single connection serializes writers; sqlite would otherwise report SQLITE_BUSY.
	dbInstance.SetMaxOpenConns(1)

	h := &HistoryDB{db: dbInstance, logger: logger}
	if err := h.InitSchema(); err != nil {
		h.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	logger.Debug().Str("path", dataSourceName).Msg("History database ready")
	return h, nil
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	if h.db != nil {
		return h.db.Close()
	}
	return nil
}

// InitSchema creates the run_history table if it doesn't already exist.
func (h *HistoryDB) InitSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS run_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT UNIQUE NOT NULL,
		query TEXT NOT NULL,
		max_repos INTEGER NOT NULL DEFAULT 0,
		dry_run INTEGER NOT NULL DEFAULT 0,
		started_at INTEGER NOT NULL,
		ended_at INTEGER,
		state TEXT NOT NULL,
		producer_exit INTEGER,
		consumer_exit INTEGER,
		interrupted INTEGER NOT NULL DEFAULT 0
	);
	`
	if _, err := h.db.Exec(query); err != nil {
		h.logger.Error().Err(err).Msg("Failed to initialize schema")
		return err
	}
	return nil
}

// RecordRunStart inserts a run and returns its row ID.
func (h *HistoryDB) RecordRunStart(ctx context.Context, rec RunRecord) (int64, error) {
	query := `INSERT INTO run_history (run_id, query, max_repos, dry_run, started_at, state) VALUES (?, ?, ?, ?, ?, ?)`
	result, err := h.db.ExecContext(ctx, query, rec.RunID, rec.Query, rec.MaxRepos, rec.DryRun, rec.StartedAt.UnixMilli(), string(rec.State))
	if err != nil {
		return 0, fmt.Errorf("failed to insert run start record: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	h.logger.Debug().Int64("db_id", id).Str("run_id", rec.RunID).Msg("Recorded run start")
	return id, nil
}

// UpdateRunCompletion stores the end state and exit codes of a run.
func (h *HistoryDB) UpdateRunCompletion(ctx context.Context, id int64, rec RunRecord) error {
	var endedAt sql.NullInt64
	if rec.EndedAt.Valid {
		endedAt = sql.NullInt64{Int64: rec.EndedAt.Time.UnixMilli(), Valid: true}
	}
	query := `UPDATE run_history SET ended_at = ?, state = ?, producer_exit = ?, consumer_exit = ?, interrupted = ? WHERE id = ?`
	_, err := h.db.ExecContext(ctx, query, endedAt, string(rec.State), rec.ProducerExit, rec.ConsumerExit, rec.Interrupted, id)
	if err != nil {
		return fmt.Errorf("failed to update run completion for ID %d: %w", id, err)
	}
	h.logger.Debug().Int64("db_id", id).Str("state", string(rec.State)).Msg("Updated run completion")
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (h *HistoryDB) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, run_id, query, max_repos, dry_run, started_at, ended_at, state, producer_exit, consumer_exit, interrupted
		FROM run_history ORDER BY started_at DESC, id DESC LIMIT ?`
	rows, err := h.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query run history: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var (
			rec       RunRecord
			startedAt int64
			endedAt   sql.NullInt64
			state     string
		)
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Query, &rec.MaxRepos, &rec.DryRun, &startedAt, &endedAt, &state, &rec.ProducerExit, &rec.ConsumerExit, &rec.Interrupted); err != nil {
			return nil, fmt.Errorf("failed to scan run history row: %w", err)
		}
		rec.StartedAt = time.UnixMilli(startedAt)
		if endedAt.Valid {
			rec.EndedAt = sql.NullTime{Time: time.UnixMilli(endedAt.Int64), Valid: true}
		}
		rec.State = State(state)
		runs = append(runs, rec)
	}
	return runs, rows.Err()
}
