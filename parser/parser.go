// Package parser pulls drop rows out of wiki page markup and normalises item names.
package parser

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// NotedMarker is the display suffix carried by noted item names.
const NotedMarker = "(noted)"

var (
	notedSuffix     = regexp.MustCompile(`(?i)\s*\(noted\)\s*$`)
	itemNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9\s()'-]+$`)
)

// CleanText collapses runs of whitespace into single spaces and trims the result.
func CleanText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// StripNoted removes a trailing "(noted)" marker, keeping the name's casing.
func StripNoted(name string) string {
	return strings.TrimSpace(notedSuffix.ReplaceAllString(name, ""))
}

// BaseName lowercases and trims name and drops any trailing "(noted)" marker.
func BaseName(name string) string {
	return StripNoted(strings.ToLower(strings.TrimSpace(name)))
}

// HasNotedMarker reports whether name contains the "(noted)" marker anywhere.
func HasNotedMarker(name string) bool {
	return strings.Contains(strings.ToLower(name), NotedMarker)
}

// WithNotedMarker appends " (noted)" unless name already carries the marker.
func WithNotedMarker(name string) string {
	if HasNotedMarker(name) {
		return name
	}
	return name + " " + NotedMarker
}

// ValidItemName checks the shape of a cleaned item cell: at least two
// characters, a leading letter, then letters, digits, spaces, parentheses,
// apostrophes or hyphens.
func ValidItemName(name string) bool {
	if utf8.RuneCountInString(name) < 2 {
		return false
	}
	return itemNamePattern.MatchString(name)
}
