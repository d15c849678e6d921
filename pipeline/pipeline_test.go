package pipeline

import (
	"errors"
	"iter"
	"reflect"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-drops/catalog"
	"github.com/aluiziolira/go-scrape-drops/models"
	"github.com/aluiziolira/go-scrape-drops/parser"
	"github.com/aluiziolira/go-scrape-drops/resolver"
)

type mockWriter struct {
	mu       sync.Mutex
	reports  []*models.DropReport
	closed   bool
	writeErr error
}

func (mw *mockWriter) Write(report *models.DropReport) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	if mw.writeErr != nil {
		return mw.writeErr
	}
	mw.reports = append(mw.reports, report)
	return nil
}

func (mw *mockWriter) Close() error {
	mw.mu.Lock()
	mw.closed = true
	mw.mu.Unlock()
	return nil
}

func (mw *mockWriter) Validate() error {
	return nil
}

// mapResolver resolves from a fixed table keyed by base name and noted flag.
type mapResolver map[string]int

func (m mapResolver) Resolve(name string, noted bool) (int, bool) {
	key := parser.BaseName(name)
	if noted {
		key += "|noted"
	}
	id, ok := m[key]
	return id, ok
}

func seqOf(drops ...models.RawDrop) iter.Seq[models.RawDrop] {
	return slices.Values(drops)
}

func TestAggregateEndToEnd(t *testing.T) {
	page := `<table>
		<tr><th>Item</th><th>Quantity</th><th>Rarity</th></tr>
		<tr><td>Coal</td><td>5</td><td>Common</td></tr>
		<tr><td>Coal (noted)</td><td>Noted (3)</td><td>Rare</td></tr>
	</table>`

	r := resolver.New(catalog.New([]catalog.Record{{ID: 30, Name: "Coal", NoteData: intPtr(31)}}))
	got, stats := Aggregate(parser.Extract(page), r)

	want := []models.ResolvedDrop{
		{ItemName: "Coal", ItemID: 30, Noted: false},
		{ItemName: "Coal", ItemID: 31, Noted: true},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("drops = %+v, want %+v", got, want)
	}
	if stats != (Stats{}) {
		t.Fatalf("stats = %+v, want zero", stats)
	}
}

func TestAggregateDedupAndUnresolved(t *testing.T) {
	r := mapResolver{"bones": 526, "coal": 453, "coal|noted": 454}

	got, stats := Aggregate(seqOf(
		models.RawDrop{ItemName: "Bones"},
		models.RawDrop{ItemName: "bones "},
		models.RawDrop{ItemName: "Coal (noted)"},
		models.RawDrop{ItemName: "Coal", Noted: true},
		models.RawDrop{ItemName: "Mystery box"},
		models.RawDrop{ItemName: "Coal"},
	), r)

	want := []models.ResolvedDrop{
		{ItemName: "Bones", ItemID: 526},
		{ItemName: "Coal", ItemID: 454, Noted: true},
		{ItemName: "Coal", ItemID: 453},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("drops = %+v, want %+v", got, want)
	}
	if stats.Duplicates != 2 {
		t.Fatalf("duplicates = %d, want 2", stats.Duplicates)
	}
	if stats.Unresolved != 1 {
		t.Fatalf("unresolved = %d, want 1", stats.Unresolved)
	}
}

func TestAggregateResolvesEachKeyOnce(t *testing.T) {
	calls := 0
	r := resolverFunc(func(name string, noted bool) (int, bool) {
		calls++
		return 0, false
	})

	got, stats := Aggregate(seqOf(
		models.RawDrop{ItemName: "Mystery box"},
		models.RawDrop{ItemName: "Mystery box"},
	), r)

	if len(got) != 0 {
		t.Fatalf("drops = %+v, want none", got)
	}
	if stats.Unresolved != 1 || stats.Duplicates != 1 || calls != 1 {
		t.Fatalf("stats = %+v calls = %d, want one unresolved, one duplicate, one call", stats, calls)
	}
}

type resolverFunc func(name string, noted bool) (int, bool)

func (f resolverFunc) Resolve(name string, noted bool) (int, bool) {
	return f(name, noted)
}

func TestGroupLoot(t *testing.T) {
	drops := []models.ResolvedDrop{
		{ItemName: "Coal", ItemID: 454, Noted: true},
		{ItemName: "Bones", ItemID: 526},
		{ItemName: "Coal", ItemID: 453},
		{ItemName: "Coal", ItemID: 454, Noted: true},
		{ItemName: "Bones", ItemID: 526},
	}

	got := GroupLoot(drops)
	want := []int{453, 454, 526}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("GroupLoot = %v, want %v", got, want)
	}

	if got := GroupLoot(nil); len(got) != 0 {
		t.Fatalf("GroupLoot(nil) = %v, want empty", got)
	}
}

func TestPipelineProcess(t *testing.T) {
	writer := &mockWriter{}
	p := NewPipeline(writer, mapResolver{"bones": 526})
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	p.now = func() time.Time { return fixed }

	monster := models.Monster{Name: "Goblin", URL: "https://runescape.wiki/w/Goblin"}
	report, err := p.Process(monster, seqOf(
		models.RawDrop{ItemName: "Bones"},
		models.RawDrop{ItemName: "Bones"},
		models.RawDrop{ItemName: "Nothing"},
	))
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if report.TotalFoundDrops != 1 || report.Monster != "Goblin" || report.URL != monster.URL {
		t.Fatalf("unexpected report: %+v", report)
	}
	if !report.ScrapedAt.Equal(fixed) || report.ScrapedAt.Location() != time.UTC {
		t.Fatalf("scrapedAt = %v, want %v in UTC", report.ScrapedAt, fixed)
	}
	if len(writer.reports) != 1 {
		t.Fatalf("written = %d, want 1", len(writer.reports))
	}

	metrics := p.GetMetrics()
	if metrics["resolved_drops"].(int64) != 1 {
		t.Fatalf("resolved_drops = %v, want 1", metrics["resolved_drops"])
	}
	validation := metrics["validation_errors"].(map[string]int)
	if validation["duplicate_drop"] != 1 || validation["unresolved"] != 1 {
		t.Fatalf("validation = %v", validation)
	}
}

func TestPipelineSkipsEmptyReports(t *testing.T) {
	writer := &mockWriter{}
	p := NewPipeline(writer, mapResolver{})

	report, err := p.Process(models.Monster{Name: "Chicken"}, seqOf(models.RawDrop{ItemName: "Feather"}))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if report.TotalFoundDrops != 0 || len(report.Drops) != 0 {
		t.Fatalf("unexpected drops: %+v", report.Drops)
	}
	if len(writer.reports) != 0 {
		t.Fatalf("written = %d, want 0", len(writer.reports))
	}
}

func TestPipelineWriteError(t *testing.T) {
	writeErr := errors.New("disk full")
	p := NewPipeline(&mockWriter{writeErr: writeErr}, mapResolver{"bones": 526})

	_, err := p.Process(models.Monster{Name: "Goblin"}, seqOf(models.RawDrop{ItemName: "Bones"}))
	if !errors.Is(err, writeErr) {
		t.Fatalf("err = %v, want %v", err, writeErr)
	}
	if !errors.Is(p.Err(), writeErr) {
		t.Fatalf("Err() = %v, want %v", p.Err(), writeErr)
	}

	if _, err := p.Process(models.Monster{Name: "Imp"}, seqOf()); !errors.Is(err, writeErr) {
		t.Fatalf("second process err = %v, want %v", err, writeErr)
	}
}

func TestPipelineFail(t *testing.T) {
	p := NewPipeline(&mockWriter{}, mapResolver{})

	report := p.Fail(models.Monster{Name: "Goblin", URL: "u"}, errors.New("status 404"))
	if !report.Failed() || report.Error != "status 404" {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Drops == nil || len(report.Drops) != 0 {
		t.Fatalf("drops = %#v, want empty slice", report.Drops)
	}
	if got := p.GetMetrics()["failed_monsters"].(int64); got != 1 {
		t.Fatalf("failed_monsters = %d, want 1", got)
	}
}

func TestPipelineClose(t *testing.T) {
	writer := &mockWriter{}
	p := NewPipeline(writer, mapResolver{})
	p.StartMetricsReporting(time.Millisecond)

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if !writer.closed {
		t.Fatal("writer not closed")
	}

	_, err := p.Process(models.Monster{Name: "Goblin"}, seqOf())
	if !errors.Is(err, ErrPipelineClosed) {
		t.Fatalf("err = %v, want ErrPipelineClosed", err)
	}
}

func intPtr(v int) *int { return &v }
