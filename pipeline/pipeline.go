package pipeline

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/aluiziolira/go-scrape-drops/models"
	"github.com/aluiziolira/go-scrape-drops/parser"
)

var (
	// ErrPipelineClosed is returned when Process is called after shutdown.
	ErrPipelineClosed = errors.New("pipeline: closed")
)

// Resolver maps an item name to a catalog id.
type Resolver interface {
	Resolve(name string, noted bool) (int, bool)
}

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Write(report *models.DropReport) error
	Close() error
	Validate() error
}

// Stats counts the drops an aggregation pass left out.
type Stats struct {
	Duplicates int
	Unresolved int
}

type aggregateKey struct {
	base  string
	noted bool
}

// Aggregate resolves raw drops into catalog ids. Drops repeating an earlier
// (base name, noted) pair are skipped, and drops the resolver does not know
// are left out; both only show up in the returned Stats.
func Aggregate(raws iter.Seq[models.RawDrop], r Resolver) ([]models.ResolvedDrop, Stats) {
	var (
		out   []models.ResolvedDrop
		stats Stats
	)
	seen := make(map[aggregateKey]struct{})

	for raw := range raws {
		noted := raw.Noted || parser.HasNotedMarker(raw.ItemName)
		key := aggregateKey{base: parser.BaseName(raw.ItemName), noted: noted}
		if _, dup := seen[key]; dup {
			stats.Duplicates++
			continue
		}
		seen[key] = struct{}{}

		id, ok := r.Resolve(raw.ItemName, noted)
		if !ok {
			stats.Unresolved++
			continue
		}
		out = append(out, models.ResolvedDrop{
			ItemName: parser.StripNoted(parser.CleanText(raw.ItemName)),
			ItemID:   id,
			Noted:    noted,
		})
	}
	return out, stats
}

type lootKey struct {
	id    int
	noted bool
}

// GroupLoot returns the ids of drops, unique per (id, noted) and sorted
// ascending. It serves both a single monster and drops pooled from a group.
func GroupLoot(drops []models.ResolvedDrop) []int {
	seen := make(map[lootKey]struct{}, len(drops))
	ids := make([]int, 0, len(drops))
	for _, d := range drops {
		key := lootKey{id: d.ItemID, noted: d.Noted}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		ids = append(ids, d.ItemID)
	}
	slices.Sort(ids)
	return ids
}

// Pipeline resolves extracted drops per monster and hands the reports to
// the output writer. Monsters are processed one at a time by the caller;
// the mutex only guards against the metrics reporter.
type Pipeline struct {
	writer   OutputWriter
	resolver Resolver
	now      func() time.Time

	metrics metrics

	mu     sync.Mutex // guards closed/err
	closed bool
	err    error

	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// NewPipeline builds a pipeline writing to writer.
func NewPipeline(writer OutputWriter, resolver Resolver) *Pipeline {
	return &Pipeline{
		writer:   writer,
		resolver: resolver,
		now:      time.Now,
		metrics:  newMetrics(),
		shutdown: make(chan struct{}),
	}
}

// Process resolves the drops extracted for monster and writes the report.
// Reports without drops are returned but not written.
func (p *Pipeline) Process(monster models.Monster, raws iter.Seq[models.RawDrop]) (*models.DropReport, error) {
	closed, err := p.state()
	if err != nil {
		return nil, err
	}
	if closed {
		return nil, ErrPipelineClosed
	}

	drops, stats := Aggregate(raws, p.resolver)
	p.metrics.addValidation("duplicate_drop", stats.Duplicates)
	p.metrics.addValidation("unresolved", stats.Unresolved)
	p.metrics.addProcessed(len(drops))

	report := &models.DropReport{
		Monster:         monster.Name,
		URL:             monster.URL,
		ScrapedAt:       p.now().UTC(),
		TotalFoundDrops: len(drops),
		Drops:           drops,
		Unresolved:      stats.Unresolved,
	}
	slog.Debug("monster aggregated",
		slog.String("monster", monster.Name),
		slog.Int("drops", len(drops)),
		slog.Int("unresolved", stats.Unresolved),
		slog.Int("duplicates", stats.Duplicates),
	)

	if len(drops) == 0 {
		return report, nil
	}
	if err := p.writer.Write(report); err != nil {
		err = fmt.Errorf("write drops for %s: %w", monster.Name, err)
		p.setErr(err)
		return report, err
	}
	p.metrics.incrementWritten()
	return report, nil
}

// Fail records a monster that could not be scraped.
func (p *Pipeline) Fail(monster models.Monster, cause error) *models.DropReport {
	p.metrics.incrementFailed()
	return &models.DropReport{
		Monster:   monster.Name,
		URL:       monster.URL,
		ScrapedAt: p.now().UTC(),
		Drops:     []models.ResolvedDrop{},
		Error:     cause.Error(),
	}
}

// Close stops the metrics reporter and closes the writer.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.signalShutdown()
	if err := p.writer.Close(); err != nil {
		p.setErr(fmt.Errorf("close writer: %w", err))
	}
	return p.Err()
}

// Err returns the first error encountered during processing.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

// StartMetricsReporting emits periodic progress logs.
func (p *Pipeline) StartMetricsReporting(interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				metrics := p.GetMetrics()
				slog.Info("pipeline progress",
					slog.Int64("resolved_drops", metrics["resolved_drops"].(int64)),
					slog.Int64("written_reports", metrics["written_reports"].(int64)),
					slog.Int64("failed_monsters", metrics["failed_monsters"].(int64)),
				)
			case <-p.shutdown:
				return
			}
		}
	}()
}

func (p *Pipeline) setErr(err error) {
	if err == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err == nil {
		p.err = err
	}
}

func (p *Pipeline) state() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed, p.err
}

func (p *Pipeline) signalShutdown() {
	p.shutdownOnce.Do(func() {
		close(p.shutdown)
	})
}

type metrics struct {
	mu         sync.Mutex
	resolved   int64
	written    int64
	failed     int64
	validation map[string]int
}

func newMetrics() metrics {
	return metrics{
		validation: make(map[string]int),
	}
}

func (m *metrics) addProcessed(n int) {
	m.mu.Lock()
	m.resolved += int64(n)
	m.mu.Unlock()
}

func (m *metrics) incrementWritten() {
	m.mu.Lock()
	m.written++
	m.mu.Unlock()
}

func (m *metrics) incrementFailed() {
	m.mu.Lock()
	m.failed++
	m.mu.Unlock()
}

func (m *metrics) addValidation(kind string, n int) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	m.validation[kind] += n
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	copyValidation := make(map[string]int, len(m.validation))
	for k, v := range m.validation {
		copyValidation[k] = v
	}

	return map[string]interface{}{
		"resolved_drops":    m.resolved,
		"written_reports":   m.written,
		"failed_monsters":   m.failed,
		"validation_errors": copyValidation,
	}
}
