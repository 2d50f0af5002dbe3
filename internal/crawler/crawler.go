// Package crawler seeds the corpus by walking allowed sites breadth first
// and publishing one ingestion task per discovered page. It never ingests
// directly; everything flows through the same durable queue the webhook
// feeds, so the worker remains the single writer to the corpus.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/ragline/ragline/internal/ingest"
	"github.com/ragline/ragline/internal/security"
)

const (
	defaultMaxVisits = 2000
	defaultDelay     = time.Second
)

// Extensions never worth fetching. PDFs are the exception and become media
// tasks.
var skippedExtensions = map[string]struct{}{
	".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {}, ".ppt": {}, ".pptx": {},
	".zip": {}, ".rar": {}, ".7z": {}, ".tar": {}, ".gz": {},
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".bmp": {}, ".svg": {},
	".mp3": {}, ".wav": {}, ".ogg": {}, ".mp4": {}, ".avi": {}, ".mov": {}, ".wmv": {},
	".css": {}, ".js": {},
}

// Publisher is the slice of the task queue the crawler needs.
type Publisher interface {
	Publish(ctx context.Context, task ingest.Task) error
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithMaxVisits caps the number of pages visited per seed.
func WithMaxVisits(n int) Option {
	return func(c *Crawler) { c.maxVisits = n }
}

// WithDelay sets the politeness delay between requests.
func WithDelay(d time.Duration) Option {
	return func(c *Crawler) { c.delay = d }
}

// Crawler walks pages under the allowed URL prefixes.
type Crawler struct {
	pub       Publisher
	allow     *security.AllowList
	userAgent string
	maxVisits int
	delay     time.Duration
	logger    *slog.Logger
}

// New creates a Crawler. The allow list bounds the walk: links outside the
// configured prefixes are never visited.
func New(pub Publisher, allow *security.AllowList, userAgent string, logger *slog.Logger, opts ...Option) *Crawler {
	c := &Crawler{
		pub:       pub,
		allow:     allow,
		userAgent: userAgent,
		maxVisits: defaultMaxVisits,
		delay:     defaultDelay,
		logger:    logger.With("component", "crawler"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run crawls every seed in order. A seed ending in .pdf is published as a
// single media task without crawling. Seed errors are logged and the next
// seed proceeds.
func (c *Crawler) Run(ctx context.Context, seeds []string) error {
	if c.allow.Empty() {
		return security.ErrAllowListEmpty
	}
	for _, seed := range seeds {
		seed = normalizeSeed(seed)
		if err := c.allow.Check(seed); err != nil {
			c.logger.Warn("seed outside allowed prefixes, skipping", "url", seed)
			continue
		}
		if strings.HasSuffix(strings.ToLower(seed), ".pdf") {
			if err := c.pub.Publish(ctx, ingest.Task{Action: ingest.ActionUpsert, URL: seed, Type: ingest.TypeMedia}); err != nil {
				c.logger.Error("publishing media seed", "url", seed, "error", err)
			}
			continue
		}
		if err := c.crawlSite(ctx, seed); err != nil {
			c.logger.Error("crawl failed", "seed", seed, "error", err)
		}
	}
	return nil
}

func (c *Crawler) crawlSite(ctx context.Context, seed string) error {
	visited := 0

	col := colly.NewCollector(
		colly.UserAgent(c.userAgent),
	)
	if err := col.Limit(&colly.LimitRule{DomainGlob: "*", Delay: c.delay}); err != nil {
		return fmt.Errorf("configuring crawl rate: %w", err)
	}

	col.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		if visited >= c.maxVisits {
			r.Abort()
			return
		}
		if err := c.allow.Check(r.URL.String()); err != nil {
			r.Abort()
			return
		}
		visited++
	})

	col.OnResponse(func(r *colly.Response) {
		pageURL := stripQueryFragment(r.Request.URL)
		contentType := strings.ToLower(r.Headers.Get("Content-Type"))

		task := ingest.Task{Action: ingest.ActionUpsert, URL: pageURL, Type: ingest.TypeContent}
		switch {
		case strings.Contains(contentType, "application/pdf"):
			task.Type = ingest.TypeMedia
		case strings.Contains(contentType, "text/html"):
		default:
			c.logger.Debug("skipping unsupported content type", "url", pageURL, "content_type", contentType)
			return
		}

		if err := c.pub.Publish(ctx, task); err != nil {
			c.logger.Error("publishing crawl task", "url", pageURL, "error", err)
		}
	})

	col.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" || !c.shouldVisit(link) {
			return
		}
		// Visit dedupes internally; revisits return ErrAlreadyVisited.
		_ = e.Request.Visit(link)
	})

	col.OnError(func(r *colly.Response, err error) {
		c.logger.Warn("fetch failed during crawl", "url", r.Request.URL.String(), "status", r.StatusCode, "error", err)
	})

	c.logger.Info("starting crawl", "seed", seed, "max_visits", c.maxVisits)
	if err := col.Visit(seed); err != nil {
		return fmt.Errorf("visiting seed %s: %w", seed, err)
	}
	c.logger.Info("crawl finished", "seed", seed, "visited", visited)
	return nil
}

// shouldVisit filters links to allowed, crawlable URLs. PDFs pass through so
// OnResponse can publish them as media.
func (c *Crawler) shouldVisit(link string) bool {
	if err := c.allow.Check(link); err != nil {
		return false
	}
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if _, skip := skippedExtensions[ext]; skip {
		return false
	}
	return true
}

func normalizeSeed(seed string) string {
	seed = strings.TrimSpace(seed)
	if !strings.HasPrefix(seed, "http://") && !strings.HasPrefix(seed, "https://") {
		seed = "https://" + seed
	}
	return seed
}

func stripQueryFragment(u *url.URL) string {
	clean := *u
	clean.RawQuery = ""
	clean.Fragment = ""
	return clean.String()
}
