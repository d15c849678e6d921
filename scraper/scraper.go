package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aluiziolira/go-scrape-drops/config"
	"github.com/aluiziolira/go-scrape-drops/models"
	"github.com/aluiziolira/go-scrape-drops/parser"
	"github.com/aluiziolira/go-scrape-drops/pipeline"
	"github.com/gocolly/colly/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Recorder remembers successfully scraped monsters.
type Recorder interface {
	Add(ctx context.Context, name, url string) error
}

// Scraper fetches monster pages one at a time through a colly collector
// and feeds them to the pipeline.
type Scraper struct {
	cfg       *config.Config
	collector *colly.Collector
	retry     *retryPolicy
	cache     *lru.Cache[string, []byte]
	Metrics   *Metrics

	requestCount int64
	errorCount   int64
	cacheHits    int64

	mu           sync.Mutex
	failedURLs   []string
	errorsByType map[string]int
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config) (*Scraper, error) {
	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.ParseHTTPErrorResponse = true
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	s := &Scraper{
		cfg:          cfg,
		collector:    collector,
		errorsByType: make(map[string]int),
		Metrics:      NewMetrics(),
	}
	s.retry = newRetryPolicy(cfg, s.Metrics)

	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, []byte](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("create page cache: %w", err)
		}
		s.cache = cache
	}

	s.configureHandlers()
	return s, nil
}

func (s *Scraper) configureHandlers() {
	s.collector.OnRequest(func(r *colly.Request) {
		r.Ctx.Put("start", time.Now())
		atomic.AddInt64(&s.requestCount, 1)
		s.Metrics.IncRequest("started")
		slog.Debug("fetching monster page", slog.String("url", r.URL.String()))
	})

	s.collector.OnResponse(func(r *colly.Response) {
		r.Ctx.Put("status", r.StatusCode)
		r.Ctx.Put("body", r.Body)
		if start, ok := r.Request.Ctx.GetAny("start").(time.Time); ok {
			s.Metrics.ObserveDuration(time.Since(start))
		}
	})

	s.collector.OnError(func(r *colly.Response, err error) {
		url := ""
		if r != nil && r.Request != nil && r.Request.URL != nil {
			url = r.Request.URL.String()
		}
		slog.Debug("request error", slog.String("url", url), slog.Any("error", err))
	})
}

// Run scrapes every queued monster in order. A monster that fails is
// reported and the batch moves on; cancelling ctx stops the batch before
// the next monster. rec may be nil.
func (s *Scraper) Run(ctx context.Context, queue *Queue, p *pipeline.Pipeline, rec Recorder) (*models.ScraperResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	result := &models.ScraperResult{StartTime: time.Now()}
	var runErr error

	for _, monster := range queue.Monsters() {
		if err := ctx.Err(); err != nil {
			runErr = fmt.Errorf("batch stopped: %w", err)
			break
		}

		report, err := s.Scrape(ctx, monster, p)
		if report != nil {
			result.Reports = append(result.Reports, report)
		}
		result.TotalCount++
		if err != nil {
			slog.Error("monster failed",
				slog.String("monster", monster.Name),
				slog.String("url", monster.URL),
				slog.Any("error", err),
			)
			var fe *FetchError
			if !errors.As(err, &fe) {
				runErr = err
				break
			}
			continue
		}

		if rec != nil {
			if err := rec.Add(ctx, report.Monster, report.URL); err != nil {
				slog.Warn("record scrape history", slog.String("monster", report.Monster), slog.Any("error", err))
			}
		}
	}

	result.EndTime = time.Now()
	result.ErrorCount = int(atomic.LoadInt64(&s.errorCount))
	result.FailedURLs = s.snapshotFailedURLs()
	result.ErrorsByType = s.snapshotErrors()
	result.RetryCount = s.retry.TotalRetries()
	result.RequestCount = int(atomic.LoadInt64(&s.requestCount))
	result.CacheHits = int(atomic.LoadInt64(&s.cacheHits))

	return result, runErr
}

// Scrape fetches one monster page, extracts its drop tables and hands the
// drops to the pipeline. A fetch failure yields a failed report together
// with a *FetchError.
func (s *Scraper) Scrape(ctx context.Context, monster models.Monster, p *pipeline.Pipeline) (*models.DropReport, error) {
	body, err := s.Fetch(ctx, monster.URL)
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			fe.Monster = monster.Name
		}
		s.recordFailure(monster.URL)
		s.Metrics.IncMonster("failed")
		return p.Fail(monster, err), err
	}

	if monster.Name == "" {
		monster.Name = PageTitle(body, monster.URL)
	}

	report, err := p.Process(monster, parser.Extract(string(body)))
	if err != nil {
		s.Metrics.IncMonster("failed")
		return report, err
	}

	s.Metrics.AddDrops(report.TotalFoundDrops, report.Unresolved)
	if report.TotalFoundDrops == 0 {
		s.Metrics.IncMonster("empty")
		slog.Warn("no drops found", slog.String("monster", monster.Name), slog.String("url", monster.URL))
	} else {
		s.Metrics.IncMonster("ok")
		slog.Info("monster scraped",
			slog.String("monster", monster.Name),
			slog.Int("drops", report.TotalFoundDrops),
			slog.Int("unresolved", report.Unresolved),
		)
	}
	return report, nil
}

// Fetch returns the body of pageURL, retrying transient failures. Pages
// fetched earlier in the session come from the page cache.
func (s *Scraper) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	if s.cache != nil {
		if body, ok := s.cache.Get(pageURL); ok {
			atomic.AddInt64(&s.cacheHits, 1)
			s.Metrics.IncCacheHit()
			return body, nil
		}
	}

	for attempt := 1; ; attempt++ {
		body, err := s.fetchOnce(pageURL)
		if err == nil {
			if s.cache != nil {
				s.cache.Add(pageURL, body)
			}
			return body, nil
		}

		if !s.retry.Allow(attempt, err) {
			return nil, err
		}

		delay := s.retry.backoff(attempt)
		slog.Debug("retrying fetch",
			slog.String("url", pageURL),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.Any("error", err),
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, err
		case <-timer.C:
		}
	}
}

func (s *Scraper) fetchOnce(pageURL string) ([]byte, error) {
	cctx := colly.NewContext()
	hdr := http.Header{}
	hdr.Set("Accept", s.cfg.Accept)

	err := s.collector.Request(http.MethodGet, pageURL, nil, cctx, hdr)
	status, _ := cctx.GetAny("status").(int)
	if err != nil {
		s.Metrics.IncRequest("failed")
		return nil, s.fetchError(pageURL, status, classifyError(err, status))
	}

	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		s.Metrics.IncRequest("failed")
		cause := fmt.Errorf("HTTP %d: %s", status, http.StatusText(status))
		return nil, s.fetchError(pageURL, status, classifyError(cause, status))
	}

	s.Metrics.IncRequest("completed")
	body, _ := cctx.GetAny("body").([]byte)
	return body, nil
}

func (s *Scraper) fetchError(pageURL string, status int, err error) *FetchError {
	label := errorTypeLabel(err)
	s.mu.Lock()
	s.errorsByType[label]++
	s.mu.Unlock()
	atomic.AddInt64(&s.errorCount, 1)
	s.Metrics.IncError(label)

	return &FetchError{URL: pageURL, StatusCode: status, Err: err}
}

func (s *Scraper) recordFailure(pageURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failedURLs = append(s.failedURLs, pageURL)
}

func (s *Scraper) snapshotFailedURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.failedURLs))
	copy(out, s.failedURLs)
	return out
}

func (s *Scraper) snapshotErrors() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.errorsByType))
	for k, v := range s.errorsByType {
		out[k] = v
	}
	return out
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if statusCode != 0 {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch {
		case statusCode == http.StatusForbidden:
			return ErrForbidden{Err: wrapped}
		case statusCode == http.StatusNotFound:
			return ErrNotFound{Err: wrapped}
		case statusCode == http.StatusTooManyRequests:
			return ErrRateLimited{Err: wrapped}
		case statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices:
			return ErrHTTPStatus{StatusCode: statusCode, Err: wrapped}
		}
	}

	if err == nil {
		return nil
	}
	return err
}

// retryPolicy decides whether a failed fetch is worth another attempt and
// how long to wait before it.
type retryPolicy struct {
	cfg     *config.Config
	metrics *Metrics

	mu           sync.Mutex
	totalRetries int
}

func newRetryPolicy(cfg *config.Config, metrics *Metrics) *retryPolicy {
	return &retryPolicy{
		cfg:     cfg,
		metrics: metrics,
	}
}

// Allow reports whether attempt, which failed with err, may be retried and
// counts the retry when it may.
func (rp *retryPolicy) Allow(attempt int, err error) bool {
	if attempt > rp.cfg.MaxRetries || !retryable(err) {
		return false
	}

	rp.mu.Lock()
	rp.totalRetries++
	rp.mu.Unlock()
	rp.metrics.IncRetries()
	return true
}

func (rp *retryPolicy) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := rp.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := rp.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

func (rp *retryPolicy) TotalRetries() int {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	return rp.totalRetries
}

// retryable reports transient failures. Missing or forbidden pages fail
// immediately.
func retryable(err error) bool {
	switch errorTypeLabel(err) {
	case "timeout", "connection", "rate_limited":
		return true
	case "http_status":
		var status ErrHTTPStatus
		return errors.As(err, &status) && status.StatusCode >= http.StatusInternalServerError
	default:
		return false
	}
}
