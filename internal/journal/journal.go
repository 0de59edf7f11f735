// Package journal persists the activity log in a local SQLite database.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// DefaultLimit is the number of entries kept when Open is given no limit
const DefaultLimit = 1000

// Entry is one activity log line
type Entry struct {
	ID        string
	SessionID string
	Message   string
	CreatedAt time.Time
}

// Journal is an append-only activity log capped at a fixed number of entries
type Journal struct {
	db    *sql.DB
	limit int
}

// Open opens or creates the journal at path and applies migrations
func Open(ctx context.Context, path string, limit int) (*Journal, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	if err := os.Chmod(path, 0o600); err != nil && !errors.Is(err, os.ErrNotExist) {
		db.Close()
		return nil, fmt.Errorf("chmod journal: %w", err)
	}
	return &Journal{db: db, limit: limit}, nil
}

// Close closes the database
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Append stores an entry and drops the oldest ones beyond the limit. Missing
// ids and timestamps are filled in.
func (j *Journal) Append(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO entries(entry_id, session_id, message, created_at) VALUES (?, ?, ?, ?)`,
		e.ID, e.SessionID, e.Message, ts(e.CreatedAt)); err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
DELETE FROM entries WHERE seq <= (
	SELECT seq FROM entries ORDER BY seq DESC LIMIT 1 OFFSET ?
)`, j.limit); err != nil {
		return fmt.Errorf("trim entries: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// Recent returns up to n of the newest entries, oldest first
func (j *Journal) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		n = j.limit
	}
	rows, err := j.db.QueryContext(ctx, `
SELECT entry_id, session_id, message, created_at FROM (
	SELECT seq, entry_id, session_id, message, created_at
	FROM entries ORDER BY seq DESC LIMIT ?
) ORDER BY seq ASC`, n)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			created string
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Message, &created); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if e.CreatedAt, err = parseTS(created); err != nil {
			return nil, fmt.Errorf("parse entry time: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return out, nil
}

// Session returns every stored entry of one session, oldest first
func (j *Journal) Session(ctx context.Context, sessionID string) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
SELECT entry_id, session_id, message, created_at FROM entries
WHERE session_id = ? ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			created string
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Message, &created); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if e.CreatedAt, err = parseTS(created); err != nil {
			return nil, fmt.Errorf("parse entry time: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count returns the number of stored entries
func (j *Journal) Count(ctx context.Context) (int, error) {
	var n int
	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTS(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
