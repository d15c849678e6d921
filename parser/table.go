package parser

import "strings"

type cell struct {
	header bool
	text   []string
	alts   []string
}

// cleanText is the cell's text with tags stripped and whitespace collapsed.
func (c *cell) cleanText() string {
	return CleanText(strings.Join(c.text, " "))
}

type row struct {
	cells []*cell
}

func (r *row) hasHeaderCell() bool {
	for _, c := range r.cells {
		if c.header {
			return true
		}
	}
	return false
}

func (r *row) texts() []string {
	out := make([]string, len(r.cells))
	for i, c := range r.cells {
		out[i] = c.cleanText()
	}
	return out
}

// cellAt returns the cell at index, or nil when index is out of range.
func (r *row) cellAt(index int) *cell {
	if index < 0 || index >= len(r.cells) {
		return nil
	}
	return r.cells[index]
}

type table struct {
	rows []*row
}

// scanTables streams every table block in markup to yield. A block runs from
// a <table> open tag to the first </table>; nested open tags are treated as
// content. Cells opened outside a <tr> start an implicit row, and a block
// left open at end of input is still emitted.
func scanTables(markup string, yield func(*table) bool) {
	tz := newTokenizer(markup)

	var (
		tbl *table
		cur *row
		c   *cell
	)
	closeRow := func() {
		if cur != nil {
			tbl.rows = append(tbl.rows, cur)
		}
		cur, c = nil, nil
	}

	for tok, ok := tz.next(); ok; tok, ok = tz.next() {
		if tok.kind == tagToken && tok.name == "table" {
			switch {
			case !tok.end && tbl == nil:
				tbl = &table{}
				continue
			case tok.end && tbl != nil:
				closeRow()
				if !yield(tbl) {
					return
				}
				tbl = nil
				continue
			}
		}
		if tbl == nil {
			continue
		}

		if tok.kind == textToken {
			if c != nil {
				c.text = append(c.text, tok.text)
			}
			continue
		}

		switch tok.name {
		case "tr":
			closeRow()
			if !tok.end {
				cur = &row{}
			}
		case "td", "th":
			if tok.end {
				c = nil
				continue
			}
			if cur == nil {
				cur = &row{}
			}
			c = &cell{header: tok.name == "th"}
			cur.cells = append(cur.cells, c)
		default:
			if c == nil {
				continue
			}
			if tok.name == "img" && !tok.end {
				if alt, ok := tok.attr("alt"); ok {
					c.alts = append(c.alts, alt)
				}
			}
		}
	}

	if tbl != nil {
		closeRow()
		yield(tbl)
	}
}
