package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// SQLiteStore keeps the history in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// NewSQLiteStore creates a store for the database at path.
// Use ":memory:" for an in-memory database.
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path, now: time.Now}
}

// Open opens the database connection and creates the schema if needed.
func (s *SQLiteStore) Open() error {
	conn, err := sql.Open("sqlite3", s.path)
	if err != nil {
		return fmt.Errorf("open history database: %w", err)
	}

	// One connection: a single writer, and ":memory:" stays one database.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return fmt.Errorf("connect to history database: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		conn.Close()
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if s.path != ":memory:" {
		if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
			conn.Close()
			return fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s.db = conn
	if err := s.createSchema(); err != nil {
		conn.Close()
		return fmt.Errorf("create history schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Add records a scrape of name.
func (s *SQLiteStore) Add(ctx context.Context, name, url string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scrape_history (name_key, name, url, last_scraped, seq)
		VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM scrape_history))
		ON CONFLICT(name_key) DO UPDATE SET
			name = excluded.name,
			url = excluded.url,
			last_scraped = excluded.last_scraped,
			seq = excluded.seq`,
		nameKey(name), name, url, stamp(s.now).Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record %s: %w", name, err)
	}
	return nil
}

// List returns the entries, newest first.
func (s *SQLiteStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, url, last_scraped
		FROM scrape_history
		ORDER BY seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("list scrape history: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e           Entry
			lastScraped string
		)
		if err := rows.Scan(&e.Name, &e.URL, &lastScraped); err != nil {
			return nil, fmt.Errorf("scan scrape history: %w", err)
		}
		e.LastScraped, err = time.Parse(time.RFC3339Nano, lastScraped)
		if err != nil {
			return nil, fmt.Errorf("parse last_scraped of %s: %w", e.Name, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scrape history: %w", err)
	}
	return entries, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS scrape_history (
			name_key TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			url TEXT NOT NULL,
			last_scraped TEXT NOT NULL,
			seq INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_scrape_history_seq ON scrape_history(seq);
	`

	_, err := s.db.Exec(schema)
	return err
}
