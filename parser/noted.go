package parser

import "strings"

// DetectNoted decides whether a drop row is the noted variant of an item.
// The checks run in order and the first match wins: the quantity column
// mentions "noted", the item text carries the "(noted)" marker, or an image
// in the item cell has an alt text mentioning "noted". Wiki drop tables put
// the annotation in the quantity column even when the item column shows the
// base name, so that column is checked first.
func DetectNoted(quantityText, itemText string, imageAlts []string) bool {
	if strings.Contains(strings.ToLower(CleanText(quantityText)), "noted") {
		return true
	}
	if strings.Contains(strings.ToLower(CleanText(itemText)), NotedMarker) {
		return true
	}
	for _, alt := range imageAlts {
		if strings.Contains(strings.ToLower(alt), "noted") {
			return true
		}
	}
	return false
}
