package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore keeps the history as an indented JSON array. A missing or
// unreadable file reads as an empty history.
type FileStore struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// NewFileStore returns a store backed by the JSON file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

// Add records a scrape of name.
func (s *FileStore) Add(ctx context.Context, name, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.load()
	key := nameKey(name)
	out := make([]Entry, 0, len(entries)+1)
	out = append(out, Entry{Name: name, URL: url, LastScraped: stamp(s.now)})
	for _, e := range entries {
		if nameKey(e.Name) != key {
			out = append(out, e)
		}
	}
	return s.save(out)
}

// List returns the entries, newest first.
func (s *FileStore) List(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(), nil
}

// Close is a no-op; every Add rewrites the file.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) load() []Entry {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("read scrape history", slog.String("path", s.path), slog.Any("error", err))
		}
		return []Entry{}
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		slog.Warn("scrape history is corrupt, starting over", slog.String("path", s.path), slog.Any("error", err))
		return []Entry{}
	}
	if entries == nil {
		return []Entry{}
	}
	return entries
}

func (s *FileStore) save(entries []Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode scrape history: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write scrape history: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace scrape history: %w", err)
	}
	return nil
}
