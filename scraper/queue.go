package scraper

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aluiziolira/go-scrape-drops/models"
)

var (
	// ErrInvalidURL is returned for URLs outside the allowed wiki host.
	ErrInvalidURL = errors.New("invalid wiki url")
	// ErrDuplicateMonster is returned when a URL is already queued.
	ErrDuplicateMonster = errors.New("monster already queued")
)

// Queue holds the monsters of a batch in insertion order.
type Queue struct {
	allowedHost string
	monsters    []models.Monster
}

// NewQueue returns an empty queue accepting URLs that contain allowedHost.
func NewQueue(allowedHost string) *Queue {
	return &Queue{allowedHost: strings.ToLower(allowedHost)}
}

// Add appends a monster. An empty name is filled in from the page heading
// when the monster is scraped.
func (q *Queue) Add(name, rawURL string) error {
	name = strings.TrimSpace(name)
	rawURL = strings.TrimSpace(rawURL)

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	if !strings.Contains(strings.ToLower(parsed.Host), q.allowedHost) {
		return fmt.Errorf("%w: %q is not on %s", ErrInvalidURL, rawURL, q.allowedHost)
	}

	for _, m := range q.monsters {
		if m.URL == rawURL {
			return fmt.Errorf("%w: %s", ErrDuplicateMonster, rawURL)
		}
	}

	q.monsters = append(q.monsters, models.Monster{Name: name, URL: rawURL})
	return nil
}

// Remove drops the monster at index i.
func (q *Queue) Remove(i int) (models.Monster, error) {
	if i < 0 || i >= len(q.monsters) {
		return models.Monster{}, fmt.Errorf("queue index %d out of range", i)
	}
	m := q.monsters[i]
	q.monsters = append(q.monsters[:i], q.monsters[i+1:]...)
	return m, nil
}

// Len returns the number of queued monsters.
func (q *Queue) Len() int {
	return len(q.monsters)
}

// Monsters returns a copy of the queued monsters.
func (q *Queue) Monsters() []models.Monster {
	out := make([]models.Monster, len(q.monsters))
	copy(out, q.monsters)
	return out
}

// ParseMonsterArg splits a "name=url" argument. A bare URL yields an empty
// name.
func ParseMonsterArg(arg string) (name, rawURL string) {
	arg = strings.TrimSpace(arg)
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
		return "", arg
	}
	name, rawURL, found := strings.Cut(arg, "=")
	if !found {
		return "", arg
	}
	return strings.TrimSpace(name), strings.TrimSpace(rawURL)
}

// ReadQueue adds one monster per line of r. Blank lines and lines starting
// with '#' are skipped. Bad lines are reported with their line number.
func (q *Queue) ReadQueue(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	line := 0
	var errs []error
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		name, rawURL := ParseMonsterArg(text)
		if err := q.Add(name, rawURL); err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", line, err))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read queue: %w", err)
	}
	return errors.Join(errs...)
}
