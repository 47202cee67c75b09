// ABOUTME: SQLite-backed audit store using modernc.org/sqlite.
// ABOUTME: Records every tool invocation with timing and outcome for later review.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Invocation is one recorded tool call.
type Invocation struct {
	ID        string
	Tool      string
	RequestID string
	Elapsed   time.Duration
	IsError   bool
	CreatedAt time.Time
}

// ToolStats aggregates invocation counts for one tool.
type ToolStats struct {
	Tool       string
	Calls      int64
	Errors     int64
	TotalMs    int64
	LastCalled time.Time
}

// SQLiteStore persists the invocation audit log. It satisfies the
// dispatcher's Auditor interface.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) the database at path. Parent directories
// are created and the schema is applied if missing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL allows reads to proceed while an invocation is being recorded.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("audit store initialized", "path", path)
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS invocations (
			id TEXT PRIMARY KEY,
			tool TEXT NOT NULL,
			request_id TEXT NOT NULL,
			elapsed_ms INTEGER NOT NULL,
			is_error INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_invocations_tool
			ON invocations(tool);

		CREATE INDEX IF NOT EXISTS idx_invocations_created
			ON invocations(created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// RecordToolCall inserts one audit row for a completed tool invocation.
func (s *SQLiteStore) RecordToolCall(ctx context.Context, tool, requestID string, elapsed time.Duration, isError bool) error {
	query := `
		INSERT INTO invocations (id, tool, request_id, elapsed_ms, is_error, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.New().String(),
		tool,
		requestID,
		elapsed.Milliseconds(),
		boolToInt(isError),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting invocation: %w", err)
	}

	s.logger.Debug("recorded invocation",
		"tool", tool,
		"request_id", requestID,
		"elapsed", elapsed,
		"is_error", isError,
	)
	return nil
}

// RecentInvocations returns up to limit invocations, newest first.
func (s *SQLiteStore) RecentInvocations(ctx context.Context, limit int) ([]*Invocation, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, tool, request_id, elapsed_ms, is_error, created_at
		FROM invocations
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying invocations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Invocation
	for rows.Next() {
		inv, err := scanInvocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating invocation rows: %w", err)
	}
	return out, nil
}

// StatsByTool aggregates call counts, error counts, and total elapsed time
// per tool over the whole log.
func (s *SQLiteStore) StatsByTool(ctx context.Context) ([]*ToolStats, error) {
	query := `
		SELECT
			tool,
			COUNT(*) as calls,
			COALESCE(SUM(is_error), 0) as errors,
			COALESCE(SUM(elapsed_ms), 0) as total_ms,
			MAX(created_at) as last_called
		FROM invocations
		GROUP BY tool
		ORDER BY calls DESC, tool ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying tool stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*ToolStats
	for rows.Next() {
		var st ToolStats
		var lastCalled string
		if err := rows.Scan(&st.Tool, &st.Calls, &st.Errors, &st.TotalMs, &lastCalled); err != nil {
			return nil, fmt.Errorf("scanning stats row: %w", err)
		}
		st.LastCalled, err = time.Parse(time.RFC3339, lastCalled)
		if err != nil {
			return nil, fmt.Errorf("parsing last_called: %w", err)
		}
		out = append(out, &st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stats rows: %w", err)
	}
	return out, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanInvocation(rows *sql.Rows) (*Invocation, error) {
	var inv Invocation
	var elapsedMs int64
	var isError int
	var createdAt string

	err := rows.Scan(&inv.ID, &inv.Tool, &inv.RequestID, &elapsedMs, &isError, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("scanning invocation row: %w", err)
	}

	inv.Elapsed = time.Duration(elapsedMs) * time.Millisecond
	inv.IsError = isError != 0
	inv.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &inv, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
