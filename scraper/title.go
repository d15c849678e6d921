package scraper

import (
	"bytes"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PageTitle names a monster from its wiki page: the article heading when
// present, otherwise the last path segment of pageURL.
func PageTitle(body []byte, pageURL string) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err == nil {
		for _, selector := range []string{"h1#firstHeading", "h1"} {
			if title := strings.Join(strings.Fields(doc.Find(selector).First().Text()), " "); title != "" {
				return title
			}
		}
	}
	return titleFromURL(pageURL)
}

func titleFromURL(pageURL string) string {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	segment := path.Base(parsed.Path)
	if segment == "." || segment == "/" {
		return ""
	}
	return strings.TrimSpace(strings.ReplaceAll(segment, "_", " "))
}
