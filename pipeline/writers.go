package pipeline

import (
	"bufio"
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/aluiziolira/go-scrape-drops/models"
)

// ScrapedAtLayout is the timestamp layout of drop JSON files.
const ScrapedAtLayout = "2006-01-02T15:04:05.000Z07:00"

// ErrNoOutput is returned by Validate when nothing was written.
var ErrNoOutput = errors.New("no output files written")

type dropFile struct {
	Monster         string      `json:"monster"`
	ScrapedAt       string      `json:"scrapedAt"`
	TotalFoundDrops int         `json:"totalFoundDrops"`
	Drops           []dropEntry `json:"drops"`
}

type dropEntry struct {
	ItemName string `json:"itemName"`
	ItemID   int    `json:"itemId"`
}

// fileSet remembers the files a writer created so they can be validated.
type fileSet struct {
	paths []string
}

func (fs *fileSet) add(path string) {
	if !slices.Contains(fs.paths, path) {
		fs.paths = append(fs.paths, path)
	}
}

func (fs *fileSet) validate(kind string) error {
	if len(fs.paths) == 0 {
		return fmt.Errorf("%s: %w", kind, ErrNoOutput)
	}
	for _, path := range fs.paths {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("stat %s file: %w", kind, err)
		}
		if info.Size() <= 0 {
			return fmt.Errorf("%s file %q is empty", kind, path)
		}
	}
	return nil
}

// JSONWriter writes one <stem>_drops.json document per monster.
type JSONWriter struct {
	dir   string
	files fileSet
	mu    sync.Mutex
}

// NewJSONWriter initialises the JSON writer, creating dir when needed.
func NewJSONWriter(dir string) (*JSONWriter, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	return &JSONWriter{dir: dir}, nil
}

// Write stores the report of a single monster.
func (jw *JSONWriter) Write(report *models.DropReport) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	doc := dropFile{
		Monster:         report.Monster,
		ScrapedAt:       report.ScrapedAt.UTC().Format(ScrapedAtLayout),
		TotalFoundDrops: report.TotalFoundDrops,
		Drops:           make([]dropEntry, 0, len(report.Drops)),
	}
	for _, d := range report.Drops {
		doc.Drops = append(doc.Drops, dropEntry{ItemName: d.ItemName, ItemID: d.ItemID})
	}

	path := filepath.Join(jw.dir, FileStem(report.Monster)+"_drops.json")
	err := writeFile(path, func(w *bufio.Writer) error {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(doc); err != nil {
			return fmt.Errorf("encode json report: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	jw.files.add(path)
	return nil
}

// Close is a no-op; every document is flushed by Write.
func (jw *JSONWriter) Close() error {
	return nil
}

// Validate ensures at least one non-empty JSON file was written.
func (jw *JSONWriter) Validate() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	return jw.files.validate("json")
}

// Files returns the paths written so far.
func (jw *JSONWriter) Files() []string {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	return slices.Clone(jw.files.paths)
}

// LuaWriter writes one <stem>_drops.lua list table per monster.
type LuaWriter struct {
	dir   string
	files fileSet
	mu    sync.Mutex
}

// NewLuaWriter initialises the list-table writer, creating dir when needed.
func NewLuaWriter(dir string) (*LuaWriter, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	return &LuaWriter{dir: dir}, nil
}

// Write stores the list table of a single monster.
func (lw *LuaWriter) Write(report *models.DropReport) error {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	path := filepath.Join(lw.dir, FileStem(report.Monster)+"_drops.lua")
	body := RenderLua([]string{report.Monster}, GroupLoot(report.Drops))
	if err := writeFile(path, writeString(body)); err != nil {
		return err
	}
	lw.files.add(path)
	return nil
}

// Close is a no-op; every table is flushed by Write.
func (lw *LuaWriter) Close() error {
	return nil
}

// Validate ensures at least one non-empty list-table file was written.
func (lw *LuaWriter) Validate() error {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.files.validate("lua")
}

// Files returns the paths written so far.
func (lw *LuaWriter) Files() []string {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return slices.Clone(lw.files.paths)
}

// GroupWriter pools every report it receives and writes a single list table
// for the whole group on Close.
type GroupWriter struct {
	dir   string
	names []string
	drops []models.ResolvedDrop
	files fileSet
	mu    sync.Mutex
}

// NewGroupWriter initialises the group writer, creating dir when needed.
func NewGroupWriter(dir string) (*GroupWriter, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	return &GroupWriter{dir: dir}, nil
}

// GroupFileName is the name of the list table for n monsters.
func GroupFileName(n int) string {
	return "group__" + strconv.Itoa(n) + "_monsters__drops.lua"
}

// Write adds the report to the group.
func (gw *GroupWriter) Write(report *models.DropReport) error {
	gw.mu.Lock()
	defer gw.mu.Unlock()

	gw.names = append(gw.names, report.Monster)
	gw.drops = append(gw.drops, report.Drops...)
	return nil
}

// Close writes the group table. Nothing is written for an empty group.
func (gw *GroupWriter) Close() error {
	gw.mu.Lock()
	defer gw.mu.Unlock()

	if len(gw.names) == 0 {
		return nil
	}

	names := slices.Clone(gw.names)
	slices.SortStableFunc(names, func(a, b string) int {
		return cmp.Compare(foldName(a), foldName(b))
	})

	path := filepath.Join(gw.dir, GroupFileName(len(names)))
	if err := writeFile(path, writeString(RenderLua(names, GroupLoot(gw.drops)))); err != nil {
		return err
	}
	gw.files.add(path)
	return nil
}

// Validate ensures the group table was written.
func (gw *GroupWriter) Validate() error {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	return gw.files.validate("group")
}

var luaEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

// RenderLua renders the NPC_LIST / LOOT_LIST list table.
func RenderLua(names []string, ids []int) string {
	var b strings.Builder

	b.WriteString("\nlocal NPC_LIST = {\n")
	for i, name := range names {
		if i > 0 {
			b.WriteString(",\n")
		}
		b.WriteString(`    "`)
		b.WriteString(luaEscaper.Replace(name))
		b.WriteString(`"`)
	}
	b.WriteString("\n}\n\n\nlocal LOOT_LIST = {")
	for i, id := range ids {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Itoa(id))
	}
	b.WriteString("}\n")

	return b.String()
}

func writeString(s string) func(*bufio.Writer) error {
	return func(w *bufio.Writer) error {
		if _, err := w.WriteString(s); err != nil {
			return fmt.Errorf("write list table: %w", err)
		}
		return nil
	}
}

func writeFile(path string, fill func(*bufio.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}

	buffer := bufio.NewWriter(f)
	if err := fill(buffer); err != nil {
		f.Close()
		return err
	}
	if err := buffer.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

func ensureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
