// Package store archives recorded runs in a SQLite database so a spec can be
// regenerated later without hitting the servers again.
package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	// SQLite driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/abdul-hamid-achik/livespec/packages/trace"
)

var (
	// ErrNotFound is returned when no run matches an ID.
	ErrNotFound = errors.New("run not found")
	// ErrAmbiguous is returned when an ID prefix matches more than one run.
	ErrAmbiguous = errors.New("run ID prefix is ambiguous")
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	collection TEXT NOT NULL,
	created_at TEXT NOT NULL,
	entries    INTEGER NOT NULL,
	har        BLOB NOT NULL
)`

// RunInfo describes an archived run without its trace.
type RunInfo struct {
	ID         uuid.UUID
	Collection string
	CreatedAt  time.Time
	Entries    int
}

// Store is a SQLite-backed run archive
type Store struct {
	db           *sql.DB
	queryTimeout time.Duration
	now          func() time.Time
}

// Open opens (creating if needed) the archive at connectionString, which is
// a file path optionally prefixed with "sqlite://" or "sqlite:".
func Open(connectionString string) (*Store, error) {
	dsn, err := parseConnectionString(connectionString)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{
		db:           db,
		queryTimeout: 30 * time.Second,
		now:          time.Now,
	}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveRun archives har under the run ID carried in its log comment, or a new
// ID when it has none, and returns that ID.
func (s *Store) SaveRun(ctx context.Context, collection string, har *trace.HAR) (uuid.UUID, error) {
	id, ok := runID(har)
	if !ok {
		id = uuid.New()
	}

	var buf bytes.Buffer
	if err := trace.Encode(&buf, har); err != nil {
		return uuid.Nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, collection, created_at, entries, har) VALUES (?, ?, ?, ?, ?)`,
		id.String(), collection, s.now().UTC().Format(time.RFC3339Nano), len(har.Log.Entries), buf.Bytes(),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to save run: %w", err)
	}
	return id, nil
}

// LoadRun returns the trace of the run whose ID is id or starts with it.
func (s *Store) LoadRun(ctx context.Context, id string) (*trace.HAR, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return nil, ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT har FROM runs WHERE id = ? OR substr(id, 1, ?) = ? LIMIT 2`,
		id, len(id), id,
	)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var blobs [][]byte
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		blobs = append(blobs, blob)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	switch len(blobs) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	case 1:
		return trace.Decode(bytes.NewReader(blobs[0]))
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguous, id)
	}
}

// ListRuns returns every archived run, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]RunInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, collection, created_at, entries FROM runs ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	runs := make([]RunInfo, 0)
	for rows.Next() {
		var (
			info      RunInfo
			id        string
			createdAt string
		)
		if err := rows.Scan(&id, &info.Collection, &createdAt, &info.Entries); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if info.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid run ID %q: %w", id, err)
		}
		if info.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("invalid timestamp for run %s: %w", id, err)
		}
		runs = append(runs, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// runID extracts the ID a Recorder writes into the log comment.
func runID(har *trace.HAR) (uuid.UUID, bool) {
	rest, ok := strings.CutPrefix(har.Log.Comment, "run ")
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(rest)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// parseConnectionString turns a connection string into a SQLite DSN.
// Supported formats:
// - sqlite://path/to/db.sqlite
// - sqlite:./test.db
// - path/to/db.sqlite
func parseConnectionString(connStr string) (string, error) {
	connStr = strings.TrimSpace(connStr)

	if strings.HasPrefix(connStr, "sqlite://") {
		connStr = strings.TrimPrefix(connStr, "sqlite://")
	} else if strings.HasPrefix(connStr, "sqlite:") {
		connStr = strings.TrimPrefix(connStr, "sqlite:")
	} else if i := strings.Index(connStr, "://"); i > 0 {
		return "", fmt.Errorf("unsupported database scheme: %s", connStr[:i])
	}

	if connStr == "" {
		return "", fmt.Errorf("invalid connection string: empty path")
	}
	return connStr, nil
}
