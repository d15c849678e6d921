package parser

import (
	"reflect"
	"testing"

	"github.com/aluiziolira/go-scrape-drops/models"
)

const dropTablePage = `<!DOCTYPE html>
<html><body>
<h1 id="firstHeading">Hill Giant</h1>
<table class="infobox"><tr><th>Combat level</th><td>28</td></tr></table>
<h2>Drops</h2>
<table class="wikitable item-drops">
<thead>
<tr><th></th><th>Item</th><th>Quantity</th><th>Rarity</th><th>Price</th></tr>
</thead>
<tbody>
<tr><td><img alt="Big bones.png" src="/images/Big_bones.png"></td><td><a href="/w/Big_bones">Big bones</a></td><td>1</td><td>Always</td><td>250</td></tr>
<tr><td><img alt="Coal.png"></td><td><a href="/w/Coal">Coal</a></td><td>5</td><td>Common</td><td>900</td></tr>
<tr><td><img alt="Coal.png"></td><td>Coal (noted)</td><td>Noted (3)</td><td>Rare</td><td>540</td></tr>
<tr><td><img alt="Limpwurt root.png"></td><td>Limpwurt&nbsp;root</td><td>1</td><td>Uncommon</td><td>300</td></tr>
<tr><td></td><td>12</td><td>1</td><td>Rare</td><td>0</td></tr>
</tbody>
</table>
</body></html>`

func TestExtractDropTable(t *testing.T) {
	got := ExtractAll(dropTablePage)
	want := []models.RawDrop{
		{ItemName: "Big bones", Noted: false},
		{ItemName: "Coal", Noted: false},
		{ItemName: "Coal (noted)", Noted: true},
		{ItemName: "Limpwurt root", Noted: false},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ExtractAll() = %+v, want %+v", got, want)
	}
}

func TestExtractSkipsTablesWithoutDropHeader(t *testing.T) {
	tests := []struct {
		name   string
		markup string
	}{
		{
			name:   "no quantity column",
			markup: `<table><tr><th>Item</th><th>Rarity</th></tr><tr><td>Bones</td><td>Always</td></tr></table>`,
		},
		{
			name:   "no item column",
			markup: `<table><tr><th>Name</th><th>Quantity</th></tr><tr><td>Bones</td><td>1</td></tr></table>`,
		},
		{
			name:   "no table at all",
			markup: `<ul><li>Item</li><li>Quantity</li><li>Bones</li></ul>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractAll(tt.markup); len(got) != 0 {
				t.Fatalf("ExtractAll() = %+v, want no drops", got)
			}
		})
	}
}

func TestExtractNotedDetection(t *testing.T) {
	tests := []struct {
		name string
		row  string
		want models.RawDrop
	}{
		{
			name: "quantity annotation appends marker",
			row:  `<tr><td>Coal</td><td>Noted (1)</td></tr>`,
			want: models.RawDrop{ItemName: "Coal (noted)", Noted: true},
		},
		{
			name: "marker in item text",
			row:  `<tr><td>Coal (noted)</td><td>2</td></tr>`,
			want: models.RawDrop{ItemName: "Coal (noted)", Noted: true},
		},
		{
			name: "image alt",
			row:  `<tr><td><img src="x.png" alt="Coal (noted)"/>Coal</td><td>2</td></tr>`,
			want: models.RawDrop{ItemName: "Coal (noted)", Noted: true},
		},
		{
			name: "unnoted",
			row:  `<tr><td><img alt="Coal"/>Coal</td><td>2</td></tr>`,
			want: models.RawDrop{ItemName: "Coal", Noted: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			markup := `<table><tr><th>Item</th><th>Quantity</th></tr>` + tt.row + `</table>`
			got := ExtractAll(markup)
			if len(got) != 1 || got[0] != tt.want {
				t.Fatalf("ExtractAll() = %+v, want [%+v]", got, tt.want)
			}
		})
	}
}

func TestExtractDeduplicatesWithinPass(t *testing.T) {
	markup := `<table>
<tr><th>Item</th><th>Quantity</th></tr>
<tr><td>Coal (noted)</td><td>Noted (5)</td></tr>
<tr><td>coal (noted)</td><td>Noted (10)</td></tr>
<tr><td>Coal</td><td>Noted (10)</td></tr>
</table>`

	got := ExtractAll(markup)
	want := []models.RawDrop{{ItemName: "Coal (noted)", Noted: true}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ExtractAll() = %+v, want %+v", got, want)
	}
}

func TestExtractUnionsQualifyingTables(t *testing.T) {
	markup := `<h2>Main drops</h2>
<table><tr><th>Item</th><th>Quantity</th></tr><tr><td>Bones</td><td>1</td></tr></table>
<h2>Rare drop table</h2>
<table><tr><th>Item</th><th>Quantity</th></tr><tr><td>Loop half of key</td><td>1</td></tr><tr><td>Bones</td><td>1</td></tr></table>`

	got := ExtractAll(markup)
	want := []models.RawDrop{
		{ItemName: "Bones"},
		{ItemName: "Loop half of key"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ExtractAll() = %+v, want %+v", got, want)
	}
}

func TestExtractHeaderRowWithoutThCells(t *testing.T) {
	markup := `<table>
<tr><td>Ashes</td><td>1</td></tr>
<tr><td>Item</td><td>Quantity</td></tr>
<tr><td>Bones</td><td>1</td></tr>
</table>`

	got := ExtractAll(markup)
	want := []models.RawDrop{{ItemName: "Ashes"}, {ItemName: "Bones"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ExtractAll() = %+v, want %+v", got, want)
	}
}

func TestExtractItemColumnFallsBackToFirstCell(t *testing.T) {
	markup := `<table>
<tr><th>Quantity</th><th>Item</th></tr>
<tr><td>Bones</td></tr>
</table>`

	got := ExtractAll(markup)
	if len(got) != 1 || got[0].ItemName != "Bones" {
		t.Fatalf("ExtractAll() = %+v, want Bones", got)
	}
}

func TestExtractTolerantMarkup(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		want   []models.RawDrop
	}{
		{
			name:   "unclosed cells and rows",
			markup: `<table><tr><th>Item<th>Quantity<tr><td>Bones<td>1<tr><td>Ashes<td>1</table>`,
			want:   []models.RawDrop{{ItemName: "Bones"}, {ItemName: "Ashes"}},
		},
		{
			name:   "truncated page",
			markup: `<table><tr><th>Item</th><th>Quantity</th></tr><tr><td>Bones</td><td>1</td></tr><tr><td>Ashes</td><td>1`,
			want:   []models.RawDrop{{ItemName: "Bones"}, {ItemName: "Ashes"}},
		},
		{
			name:   "upper case tags and entities",
			markup: `<TABLE><TR><TH>ITEM</TH><TH>QUANTITY</TH></TR><TR><TD>Rune&nbsp;&nbsp;axe</TD><TD>1</TD></TR></TABLE>`,
			want:   []models.RawDrop{{ItemName: "Rune axe"}},
		},
		{
			name:   "nested markup inside the cell",
			markup: `<table><tr><th>Item</th><th>Quantity</th></tr><tr><td><span><a href="#">Dragon</a> <b>spear</b></span></td><td>1</td></tr></table>`,
			want:   []models.RawDrop{{ItemName: "Dragon spear"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractAll(tt.markup)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("ExtractAll() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestExtractIsRestartable(t *testing.T) {
	seq := Extract(dropTablePage)

	first := 0
	for range seq {
		first++
	}
	second := 0
	for range seq {
		second++
	}
	if first != 4 || second != 4 {
		t.Fatalf("passes yielded %d and %d drops, want 4 and 4", first, second)
	}

	for d := range seq {
		if d.ItemName != "Big bones" {
			t.Fatalf("first drop = %q, want Big bones", d.ItemName)
		}
		break
	}
}
