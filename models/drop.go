// Package models defines data structures for the scraper.
package models

import "time"

// CatalogItem is one entry of the reference item dataset.
type CatalogItem struct {
	ID   int
	Name string
	// NotedID is the id of the noted counterpart, zero when the item has none.
	NotedID   int
	Tradeable bool
}

// HasNoted reports whether the item links to a noted counterpart.
func (i CatalogItem) HasNoted() bool {
	return i.NotedID != 0
}

// RawDrop is an item row pulled out of a drop table before resolution.
type RawDrop struct {
	ItemName string
	Noted    bool
}

// ResolvedDrop is a drop whose name was matched to a catalog id.
type ResolvedDrop struct {
	ItemName string `json:"itemName"`
	ItemID   int    `json:"itemId"`
	Noted    bool   `json:"isNoted"`
}

// Monster is a queued wiki page to scrape.
type Monster struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// DropReport holds the outcome of scraping a single monster.
type DropReport struct {
	Monster         string
	URL             string
	ScrapedAt       time.Time
	TotalFoundDrops int
	Drops           []ResolvedDrop
	// Unresolved counts drops whose names matched no catalog item.
	Unresolved int
	Error      string
}

// Failed reports whether the monster could not be scraped.
func (r *DropReport) Failed() bool {
	return r.Error != ""
}

// ScraperResult holds the overall result of a scraping operation
type ScraperResult struct {
	Reports      []*DropReport
	StartTime    time.Time
	EndTime      time.Time
	TotalCount   int
	ErrorCount   int
	FailedURLs   []string
	ErrorsByType map[string]int
	RetryCount   int
	RequestCount int
	CacheHits    int
}
