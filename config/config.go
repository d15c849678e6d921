package config

import (
	"fmt"
	"strings"
	"time"
)

// Output formats accepted by Config.OutputFormat.
const (
	FormatJSON = "json"
	FormatLua  = "lua"
	FormatDual = "dual"
)

// Config holds scraper configuration.
type Config struct {
	CatalogPath     string
	OutputDir       string
	OutputFormat    string // json, lua, or dual
	Group           bool
	HistoryPath     string
	Timeout         time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration
	UserAgent       string
	Accept          string
	AllowedHost     string
	CacheSize       int
	MetricsAddr     string
	Verbose         bool
}

// DefaultConfig returns defaults for scraping the RuneScape wiki.
func DefaultConfig() *Config {
	return &Config{
		CatalogPath:     "itemlist.json",
		OutputDir:       "drops",
		OutputFormat:    FormatJSON,
		Group:           false,
		HistoryPath:     "scrape-history.json",
		Timeout:         30 * time.Second,
		MaxRetries:      2,
		RetryBackoff:    200 * time.Millisecond,
		RetryBackoffMax: 2 * time.Second,
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
		Accept:          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		AllowedHost:     "runescape.wiki",
		CacheSize:       64,
		MetricsAddr:     "",
		Verbose:         false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.CatalogPath == "" {
		return fmt.Errorf("catalog path cannot be empty")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output directory cannot be empty")
	}
	switch c.OutputFormat {
	case FormatJSON, FormatLua, FormatDual:
	default:
		return fmt.Errorf("output format must be json, lua, or dual")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if strings.TrimSpace(c.AllowedHost) == "" {
		return fmt.Errorf("allowed host cannot be empty")
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache size cannot be negative")
	}

	return nil
}
