package pipeline

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const defaultStem = "monster"

// FileStem turns a monster name into a file name stem: accents are folded to
// ASCII, letters lowercased and every other character replaced by '_'.
func FileStem(name string) string {
	name = strings.ToLower(strings.TrimSpace(transliterate(name)))
	if name == "" {
		return defaultStem
	}

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	return b.String()
}

func transliterate(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return result
}

// foldName is the key monster names are sorted by.
func foldName(name string) string {
	return strings.ToLower(transliterate(name))
}
