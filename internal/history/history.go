package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one completed download.
type Entry struct {
	Path        string    `json:"path"`
	VideoID     string    `json:"video_id"`
	Kind        string    `json:"kind"`
	Series      string    `json:"series,omitempty"`
	Title       string    `json:"title"`
	Season      int       `json:"season,omitempty"`
	Episode     int       `json:"episode,omitempty"`
	RunID       string    `json:"run_id"`
	Bytes       int64     `json:"bytes"`
	CompletedAt time.Time `json:"completed_at"`
}

// Store is the SQLite-backed download ledger.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open creates or connects to the ledger at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts entry, replacing any previous row for the same path.
func (s *Store) Record(ctx context.Context, entry Entry) error {
	if strings.TrimSpace(entry.Path) == "" {
		return errors.New("history entry requires a path")
	}
	if entry.CompletedAt.IsZero() {
		entry.CompletedAt = time.Now()
	}
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO downloads (
                path, video_id, kind, series, title, season, episode, run_id, bytes, completed_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
            ON CONFLICT(path) DO UPDATE SET
                video_id = excluded.video_id,
                kind = excluded.kind,
                series = excluded.series,
                title = excluded.title,
                season = excluded.season,
                episode = excluded.episode,
                run_id = excluded.run_id,
                bytes = excluded.bytes,
                completed_at = excluded.completed_at`,
			entry.Path,
			entry.VideoID,
			entry.Kind,
			entry.Series,
			entry.Title,
			entry.Season,
			entry.Episode,
			entry.RunID,
			entry.Bytes,
			entry.CompletedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("record download: %w", err)
		}
		return nil
	})
}

// List returns the most recent entries, newest first. A non-positive limit
// returns every row.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	ctx = ensureContext(ctx)
	query := `SELECT path, video_id, kind, series, title, season, episode, run_id, bytes, completed_at
        FROM downloads ORDER BY completed_at DESC, path ASC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var entries []Entry
	err := retryOnBusy(ctx, func() error {
		entries = entries[:0]
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			entry, err := scanEntry(rows)
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list downloads: %w", err)
	}
	return entries, nil
}

// Count returns the number of recorded downloads.
func (s *Store) Count(ctx context.Context) (int, error) {
	ctx = ensureContext(ctx)
	var count int
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM downloads").Scan(&count)
	})
	if err != nil {
		return 0, fmt.Errorf("count downloads: %w", err)
	}
	return count, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		entry     Entry
		completed string
	)
	if err := row.Scan(
		&entry.Path,
		&entry.VideoID,
		&entry.Kind,
		&entry.Series,
		&entry.Title,
		&entry.Season,
		&entry.Episode,
		&entry.RunID,
		&entry.Bytes,
		&completed,
	); err != nil {
		return Entry{}, err
	}
	parsed, err := time.Parse(time.RFC3339Nano, completed)
	if err != nil {
		return Entry{}, fmt.Errorf("parse completed_at %q: %w", completed, err)
	}
	entry.CompletedAt = parsed
	return entry, nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
