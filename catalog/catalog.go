// Package catalog holds the reference item dataset and its lookup indices.
//
// A Catalog is built once from the dataset records and is read-only
// afterwards, so it can be shared freely between resolvers and goroutines.
package catalog

import (
	"strings"

	"github.com/aluiziolira/go-scrape-drops/models"
	"github.com/aluiziolira/go-scrape-drops/parser"
)

// notedKeySuffix marks synthetic name index keys for noted display forms.
const notedKeySuffix = "_noted"

// Record is one item of the dataset as it appears on disk.
type Record struct {
	ID           int    `json:"id" yaml:"id"`
	Name         string `json:"name" yaml:"name"`
	NoteData     *int   `json:"noteData,omitempty" yaml:"noteData,omitempty"`
	NotTradeable bool   `json:"notTradeable,omitempty" yaml:"notTradeable,omitempty"`
	IsOnGE       *bool  `json:"is_on_ge,omitempty" yaml:"is_on_ge,omitempty"`
}

// Tradeable reports whether the record may be traded on the exchange. Items
// are tradeable unless flagged not tradeable or explicitly kept off the
// exchange.
func (r Record) Tradeable() bool {
	if r.NotTradeable {
		return false
	}
	return r.IsOnGE == nil || *r.IsOnGE
}

func (r Record) item() models.CatalogItem {
	item := models.CatalogItem{
		ID:        r.ID,
		Name:      strings.TrimSpace(r.Name),
		Tradeable: r.Tradeable(),
	}
	if r.NoteData != nil {
		item.NotedID = *r.NoteData
	}
	return item
}

// Entry is the value stored in the name index.
type Entry struct {
	ItemID    int
	Tradeable bool
	// NotedID is zero when the item has no noted counterpart.
	NotedID int
}

// Catalog indexes catalog items by id and by lowercased name.
type Catalog struct {
	items  []models.CatalogItem
	byID   map[int]int
	byName map[string]Entry
	byBase map[string][]int
}

// New builds a catalog from records in dataset order. Records with a blank
// name are skipped. When several records share a name, the name index keeps
// the last tradeable one, or the first one if none is tradeable.
func New(records []Record) *Catalog {
	c := &Catalog{
		items:  make([]models.CatalogItem, 0, len(records)),
		byID:   make(map[int]int, len(records)),
		byName: make(map[string]Entry, len(records)),
		byBase: make(map[string][]int, len(records)),
	}

	for _, r := range records {
		if strings.TrimSpace(r.Name) == "" {
			continue
		}
		item := r.item()
		idx := len(c.items)
		c.items = append(c.items, item)
		c.byID[item.ID] = idx

		entry := Entry{ItemID: item.ID, Tradeable: item.Tradeable, NotedID: item.NotedID}
		key := strings.ToLower(item.Name)
		c.index(key, entry)
		if parser.HasNotedMarker(key) {
			c.index(parser.StripNoted(key)+notedKeySuffix, Entry{ItemID: item.ID, Tradeable: item.Tradeable})
		}

		base := parser.BaseName(item.Name)
		c.byBase[base] = append(c.byBase[base], idx)
	}

	return c
}

func (c *Catalog) index(key string, e Entry) {
	if _, exists := c.byName[key]; !exists || e.Tradeable {
		c.byName[key] = e
	}
}

// Len returns the number of indexed items.
func (c *Catalog) Len() int {
	return len(c.items)
}

// Has reports whether id belongs to a catalog item.
func (c *Catalog) Has(id int) bool {
	_, ok := c.byID[id]
	return ok
}

// Item returns the item with the given id.
func (c *Catalog) Item(id int) (models.CatalogItem, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return models.CatalogItem{}, false
	}
	return c.items[idx], true
}

// Lookup returns the preferred entry for name, compared case-insensitively.
func (c *Catalog) Lookup(name string) (Entry, bool) {
	e, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	return e, ok
}

// LookupNoted returns the entry of the item named "<baseName> (noted)", if
// the dataset lists noted variants as items of their own.
func (c *Catalog) LookupNoted(baseName string) (Entry, bool) {
	e, ok := c.byName[parser.BaseName(baseName)+notedKeySuffix]
	return e, ok
}

// Candidates returns every item whose name, with any "(noted)" marker
// stripped, equals baseName. Items are returned in dataset order.
func (c *Catalog) Candidates(baseName string) []models.CatalogItem {
	idxs := c.byBase[parser.BaseName(baseName)]
	out := make([]models.CatalogItem, len(idxs))
	for i, idx := range idxs {
		out[i] = c.items[idx]
	}
	return out
}

// Items returns a copy of all items in dataset order.
func (c *Catalog) Items() []models.CatalogItem {
	out := make([]models.CatalogItem, len(c.items))
	copy(out, c.items)
	return out
}
