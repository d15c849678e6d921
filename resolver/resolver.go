// Package resolver maps drop item names to catalog ids.
package resolver

import (
	"cmp"
	"slices"
	"strings"

	"github.com/aluiziolira/go-scrape-drops/catalog"
	"github.com/aluiziolira/go-scrape-drops/models"
	"github.com/aluiziolira/go-scrape-drops/parser"
)

// Resolver resolves item names against a Catalog. It never modifies the
// catalog and holds no other state, so a single Resolver may be shared.
type Resolver struct {
	catalog *catalog.Catalog
}

// New returns a Resolver backed by c.
func New(c *catalog.Catalog) *Resolver {
	return &Resolver{catalog: c}
}

// Resolve returns the catalog id for an item name. A trailing "(noted)"
// marker on name is ignored; noted selects the noted variant of the item.
func (r *Resolver) Resolve(name string, noted bool) (int, bool) {
	base := parser.BaseName(name)
	if base == "" {
		return 0, false
	}
	if noted {
		return r.resolveNoted(base)
	}
	return r.resolveUnnoted(base)
}

// resolveNoted tries, in decreasing order of confidence: the noted link of a
// base item with exactly this name, a catalog entry named "<base> (noted)",
// and finally the id right after the unnoted item. The last step relies on
// datasets that number noted variants as base id + 1 and can pick a wrong
// item when that convention does not hold.
func (r *Resolver) resolveNoted(base string) (int, bool) {
	for _, item := range r.catalog.Candidates(base) {
		if strings.ToLower(item.Name) == base && item.HasNoted() {
			return item.NotedID, true
		}
	}

	if e, ok := r.catalog.LookupNoted(base); ok {
		return e.ItemID, true
	}

	id, ok := r.resolveUnnoted(base)
	if !ok {
		return 0, false
	}
	if r.catalog.Has(id + 1) {
		return id + 1, true
	}
	return 0, false
}

func (r *Resolver) resolveUnnoted(base string) (int, bool) {
	candidates := r.catalog.Candidates(base)
	if len(candidates) == 0 {
		return 0, false
	}
	slices.SortStableFunc(candidates, candidateOrder(base))
	return candidates[0].ID, true
}

// candidateOrder ranks items sharing a name. Charms rank by id alone: the
// low-id drop charms outrank the higher-id copies used by other game
// mechanics, whatever their tradeability. Everything else ranks tradeable
// items first, then by id.
func candidateOrder(base string) func(a, b models.CatalogItem) int {
	if strings.Contains(base, "charm") {
		return func(a, b models.CatalogItem) int {
			return cmp.Compare(a.ID, b.ID)
		}
	}
	return func(a, b models.CatalogItem) int {
		if a.Tradeable != b.Tradeable {
			if a.Tradeable {
				return -1
			}
			return 1
		}
		return cmp.Compare(a.ID, b.ID)
	}
}
