// Package extractor implements the crawl engine: bounded breadth-first
// crawling of single domains, email recognition on the fetched pages and
// the search-level fan-out that drives many domain crawls at once. All
// progress is persisted through the Store interface, the database is the
// only coordination mechanism between workers.
package extractor

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/sadewadee/email-extractor/pkg/monitoring"
)

const (
	DefaultMaxDepth      = 3
	DefaultMaxConcurrent = 1000
	DefaultTimeout       = 30 * time.Second

	crawlBatchSize = 50

	maxPageURLLen = 1000
	maxEmailLen   = 255
	maxErrorLen   = 500
)

// priorityPaths are the path fragments most likely to expose contact
// addresses. Links containing one are enqueued ahead of the rest of their
// depth level.
var priorityPaths = []string{
	"/contact", "/about", "/team", "/careers", "/jobs",
	"/faq", "/privacy", "/support", "/legal", "/terms",
	"/company", "/staff", "/people", "/leadership",
	"/contact-us", "/about-us", "/our-team", "/meet-the-team",
}

// Extractor crawls domains and records what it finds through a Store. It is
// safe for concurrent use, per-domain state lives in the individual crawl.
type Extractor struct {
	store   Store
	fetcher *Fetcher
	logger  *slog.Logger
	metrics *monitoring.MetricsCollector

	maxDepth      int
	maxConcurrent int
}

type Option func(*Extractor)

// WithMaxDepth bounds how many link hops from the start URL are followed.
// Depth zero crawls the start URL alone.
func WithMaxDepth(depth int) Option {
	return func(e *Extractor) {
		e.maxDepth = depth
	}
}

// WithMaxConcurrent caps how many domains of one search crawl in parallel.
func WithMaxConcurrent(n int) Option {
	return func(e *Extractor) {
		e.maxConcurrent = n
	}
}

func WithFetcher(f *Fetcher) Option {
	return func(e *Extractor) {
		e.fetcher = f
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = l
	}
}

func WithMetrics(m *monitoring.MetricsCollector) Option {
	return func(e *Extractor) {
		e.metrics = m
	}
}

func New(store Store, opts ...Option) *Extractor {
	ans := Extractor{
		store:         store,
		maxDepth:      DefaultMaxDepth,
		maxConcurrent: DefaultMaxConcurrent,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(&ans)
	}

	if ans.fetcher == nil {
		ans.fetcher = NewFetcher(DefaultTimeout, ans.logger)
	}

	return &ans
}

type queueItem struct {
	depth int
	url   string
}

type emailHit struct {
	raw    string
	pageID int64
}

// domainCrawl is the state confined to one CrawlDomain call. The mutex
// guards all three maps while a batch of pages is processed in parallel.
type domainCrawl struct {
	mu      sync.Mutex
	visited map[string]struct{}
	queue   []queueItem
	emails  map[string]emailHit
}

// CrawlDomain crawls one domain breadth-first starting at startURL and
// persists pages and emails as it goes. It never reports failure to the
// caller: whatever happens, the domain row ends up completed or failed and
// the outcome is logged.
func (e *Extractor) CrawlDomain(ctx context.Context, domainID int64, startURL, workerID string) {
	baseHost := ExtractHost(NormalizeURL(startURL))

	logger := e.logger.With("domain", baseHost, "domain_id", domainID)

	start := time.Now()

	c := &domainCrawl{
		visited: make(map[string]struct{}),
		queue:   []queueItem{{depth: 0, url: NormalizeURL(startURL)}},
		emails:  make(map[string]emailHit),
	}

	if err := e.crawl(ctx, c, domainID, baseHost, workerID, logger); err != nil {
		logger.Error("domain crawl failed", "error", err)

		if e.metrics != nil {
			e.metrics.RecordDomainCrawled(false, time.Since(start), len(c.visited), 0)
		}

		if dbErr := e.store.FailDomain(ctx, domainID, truncate(err.Error(), maxErrorLen)); dbErr != nil {
			logger.Error("failed to mark domain failed", "error", dbErr)
		}

		return
	}

	logger.Info("domain crawl completed", "pages", len(c.visited), "emails", len(c.emails))

	if e.metrics != nil {
		e.metrics.RecordDomainCrawled(true, time.Since(start), len(c.visited), len(c.emails))
	}
}

func (e *Extractor) crawl(ctx context.Context, c *domainCrawl, domainID int64, baseHost, workerID string, logger *slog.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recovered from panic: %v stack: %s", r, debug.Stack())
		}
	}()

	if err := e.store.MarkDomainCrawling(ctx, domainID, workerID); err != nil {
		return fmt.Errorf("failed to claim domain: %w", err)
	}

	logger.Info("starting crawl", "worker_id", workerID)

	for {
		c.mu.Lock()
		n := min(len(c.queue), crawlBatchSize)
		batch := make([]queueItem, n)
		copy(batch, c.queue[:n])
		c.queue = c.queue[n:]
		c.mu.Unlock()

		if len(batch) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)

		for _, item := range batch {
			g.Go(func() error {
				e.processURL(gctx, c, domainID, baseHost, item, logger)
				return nil
			})
		}

		_ = g.Wait()
	}

	if len(c.emails) > 0 {
		batch := make([]Email, 0, len(c.emails))

		for normalized, hit := range c.emails {
			batch = append(batch, Email{
				DomainID:   domainID,
				PageID:     hit.pageID,
				Raw:        truncate(hit.raw, maxEmailLen),
				Normalized: truncate(normalized, maxEmailLen),
			})
		}

		if err := e.store.InsertEmails(ctx, batch); err != nil {
			logger.Error("failed to store emails", "error", err)
		}
	}

	if err := e.store.CompleteDomain(ctx, domainID, len(c.visited), len(c.emails)); err != nil {
		return fmt.Errorf("failed to mark domain completed: %w", err)
	}

	return nil
}

// processURL handles a single queue item: fetch, record the page row,
// harvest emails and enqueue the next depth level. Runs concurrently with
// its batch siblings.
func (e *Extractor) processURL(ctx context.Context, c *domainCrawl, domainID int64, baseHost string, item queueItem, logger *slog.Logger) {
	if item.depth > e.maxDepth {
		return
	}

	c.mu.Lock()
	if _, ok := c.visited[item.url]; ok {
		c.mu.Unlock()
		return
	}
	c.visited[item.url] = struct{}{}
	c.mu.Unlock()

	body, status := e.fetcher.Fetch(ctx, item.url)

	if e.metrics != nil {
		e.metrics.RecordPageFetched(status, body != nil)
	}

	page := Page{
		DomainID:   domainID,
		URL:        truncate(item.url, maxPageURLLen),
		StatusCode: status,
	}

	if body != nil {
		page.ContentType = "text/html"
	} else {
		page.ErrorMessage = "Failed to fetch"
	}

	pageID, err := e.store.InsertPage(ctx, &page)
	if err != nil {
		logger.Error("failed to store page", "url", item.url, "error", err)
		return
	}

	if body == nil {
		return
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		logger.Error("failed to parse page", "url", item.url, "error", err)
		return
	}

	if candidates := FindEmails(doc); len(candidates) > 0 {
		c.mu.Lock()
		for _, cand := range candidates {
			if _, ok := c.emails[cand.Normalized]; !ok {
				c.emails[cand.Normalized] = emailHit{raw: cand.Raw, pageID: pageID}
			}
		}
		c.mu.Unlock()
	}

	if item.depth >= e.maxDepth {
		return
	}

	priority, rest := partitionLinks(ExtractLinks(doc, item.url, baseHost))

	c.mu.Lock()
	for _, link := range priority {
		if _, ok := c.visited[link]; !ok {
			c.queue = append(c.queue, queueItem{depth: item.depth + 1, url: link})
		}
	}
	for _, link := range rest {
		if _, ok := c.visited[link]; !ok {
			c.queue = append(c.queue, queueItem{depth: item.depth + 1, url: link})
		}
	}
	c.mu.Unlock()
}

// partitionLinks splits links into priority and ordinary groups, keeping
// the relative order within each group.
func partitionLinks(links []string) (priority, rest []string) {
	for _, link := range links {
		if isPriorityLink(link) {
			priority = append(priority, link)
		} else {
			rest = append(rest, link)
		}
	}

	return priority, rest
}

func isPriorityLink(link string) bool {
	lower := strings.ToLower(link)

	for _, p := range priorityPaths {
		if strings.Contains(lower, p) {
			return true
		}
	}

	return false
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}

	return string(runes[:limit])
}
