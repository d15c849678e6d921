// Package history remembers which monsters were scraped and when.
package history

import (
	"context"
	"path/filepath"
	"strings"
	"time"
)

// Entry is one remembered monster. Entries are unique by case-insensitive
// name.
type Entry struct {
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	LastScraped time.Time `json:"lastScraped"`
}

// Store persists history entries, newest first.
type Store interface {
	// Add records a scrape of name, replacing an earlier entry with the
	// same name and moving it to the front.
	Add(ctx context.Context, name, url string) error
	List(ctx context.Context) ([]Entry, error)
	Close() error
}

// Open picks a store for path: SQLite for .db, .sqlite and .sqlite3 files,
// a JSON file otherwise.
func Open(path string) (Store, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		s := NewSQLiteStore(path)
		if err := s.Open(); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return NewFileStore(path), nil
	}
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func stamp(now func() time.Time) time.Time {
	return now().UTC().Truncate(time.Millisecond)
}
