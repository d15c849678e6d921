package parser

import (
	"iter"
	"slices"
	"strings"

	"github.com/aluiziolira/go-scrape-drops/models"
)

// columns locates the drop table header and the columns read from data rows.
type columns struct {
	header   int
	item     int
	quantity int
}

// findColumns returns the first row whose cell texts mention both "item" and
// "quantity". The item column falls back to 0 and the quantity column to -1
// when no single cell names them.
func findColumns(t *table) (columns, bool) {
	for i, r := range t.rows {
		texts := r.texts()
		if len(texts) == 0 {
			continue
		}
		joined := strings.ToLower(strings.Join(texts, " "))
		if !strings.Contains(joined, "item") || !strings.Contains(joined, "quantity") {
			continue
		}
		cols := columns{header: i, item: 0, quantity: indexContaining(texts, "quantity")}
		if idx := indexContaining(texts, "item"); idx >= 0 {
			cols.item = idx
		}
		return cols, true
	}
	return columns{}, false
}

func indexContaining(texts []string, needle string) int {
	return slices.IndexFunc(texts, func(s string) bool {
		return strings.Contains(strings.ToLower(s), needle)
	})
}

// drop turns a data row into a RawDrop, or reports false when the row does
// not hold a plausible item name.
func (cols columns) drop(r *row) (models.RawDrop, bool) {
	itemCell := r.cellAt(cols.item)
	if itemCell == nil {
		itemCell = r.cells[0]
	}

	name := itemCell.cleanText()
	if !ValidItemName(name) {
		return models.RawDrop{}, false
	}

	quantity := ""
	if q := r.cellAt(cols.quantity); q != nil {
		quantity = q.cleanText()
	}

	noted := DetectNoted(quantity, name, itemCell.alts)
	if noted {
		name = WithNotedMarker(name)
	}
	return models.RawDrop{ItemName: name, Noted: noted}, true
}

type dropKey struct {
	name  string
	noted bool
}

// Extract yields the drops listed in every drop table of markup. A table
// counts as a drop table when one of its rows mentions both "item" and
// "quantity"; all such tables on the page are read. Drops are unique per
// (lowercased name, noted) within one pass, first occurrence winning.
//
// The sequence is lazy and restartable: every range over it scans markup
// again from the start.
func Extract(markup string) iter.Seq[models.RawDrop] {
	return func(yield func(models.RawDrop) bool) {
		seen := make(map[dropKey]struct{})
		scanTables(markup, func(t *table) bool {
			cols, ok := findColumns(t)
			if !ok {
				return true
			}
			for i, r := range t.rows {
				if i == cols.header || len(r.cells) == 0 || r.hasHeaderCell() {
					continue
				}
				d, ok := cols.drop(r)
				if !ok {
					continue
				}
				key := dropKey{name: strings.ToLower(d.ItemName), noted: d.Noted}
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				if !yield(d) {
					return false
				}
			}
			return true
		})
	}
}

// ExtractAll collects Extract into a slice.
func ExtractAll(markup string) []models.RawDrop {
	return slices.Collect(Extract(markup))
}
