// Package crawler walks a website's link graph breadth-first, producing
// page records, broken-link findings and meta-tag findings for one
// check run.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"

	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/domain"
	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/fetch"
	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/monitoring"
	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/urlutil"
)

const robotsAgent = "SiteMonitor"

// ProbeCache remembers recent external-link reachability probes so
// repeated crawls (and sites sharing external links) don't re-fetch
// them within the cache TTL.
type ProbeCache interface {
	GetProbe(ctx context.Context, url string) (status *int, reason string, ok bool, err error)
	SetProbe(ctx context.Context, url string, status *int, reason string) error
}

// Options configure one crawl invocation.
type Options struct {
	MaxDepth      int
	RespectRobots bool
	CheckExternal bool
}

// Crawler performs breadth-first link-graph traversal.
type Crawler struct {
	fetcher *fetch.Fetcher
	probes  ProbeCache
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// New builds a Crawler. probes may be nil, in which case external links
// are probed directly on every crawl.
func New(fetcher *fetch.Fetcher, probes ProbeCache, metrics *monitoring.Metrics, logger *zap.Logger) *Crawler {
	return &Crawler{
		fetcher: fetcher,
		probes:  probes,
		metrics: metrics,
		logger:  logger,
	}
}

type frontierItem struct {
	url      string
	depth    int
	referrer string
}

// Crawl walks the site rooted at rootURL up to opts.MaxDepth. Every URL
// is visited at most once, keyed by its normalized form. A failure on
// one page never aborts the crawl; the page is recorded as broken and
// traversal continues.
func (c *Crawler) Crawl(ctx context.Context, websiteID, rootURL string, opts Options) (*domain.CrawlResult, error) {
	normRoot, err := urlutil.Normalize(rootURL)
	if err != nil {
		return nil, fmt.Errorf("invalid root URL: %w", err)
	}

	result := &domain.CrawlResult{
		WebsiteID: websiteID,
		RootURL:   normRoot,
		Timestamp: time.Now().UTC(),
		Stats:     domain.CrawlStats{StatusCounts: make(map[int]int)},
		Bodies:    make(map[string][]byte),
	}

	var robots *robotstxt.RobotsData
	if opts.RespectRobots {
		robots = c.loadRobots(ctx, normRoot)
	}

	frontier := []frontierItem{{url: normRoot, depth: 0}}
	seen := map[string]struct{}{normRoot: {}}

	for len(frontier) > 0 {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		item := frontier[0]
		frontier = frontier[1:]

		internal := urlutil.IsInternal(item.url, normRoot)

		if !internal {
			if opts.CheckExternal {
				result.Pages = append(result.Pages, c.probeExternal(ctx, item))
			}
			continue
		}

		if robots != nil && !robotsAllowed(robots, item.url) {
			c.logger.Debug("skipping URL disallowed by robots.txt", zap.String("url", item.url))
			continue
		}

		page, facts, body := c.visitInternal(ctx, item)
		result.Pages = append(result.Pages, page)

		if facts == nil {
			continue
		}
		result.Bodies[page.URL] = body

		if findings := InspectMetaTags(page.URL, facts.Title, facts.MetaTags); len(findings) > 0 {
			result.MissingMetaTags = append(result.MissingMetaTags, findings...)
		}

		if item.depth >= opts.MaxDepth {
			continue
		}
		for _, link := range facts.Links {
			if _, dup := seen[link]; dup {
				continue
			}
			seen[link] = struct{}{}
			frontier = append(frontier, frontierItem{url: link, depth: item.depth + 1, referrer: page.URL})
		}
	}

	c.aggregate(result)
	return result, nil
}

// visitInternal fetches one internal page and, when it is healthy HTML,
// extracts its facts for link expansion and downstream comparison. The
// raw body is returned alongside so the caller can retain it.
func (c *Crawler) visitInternal(ctx context.Context, item frontierItem) (domain.PageRecord, *PageFacts, []byte) {
	page := domain.PageRecord{
		URL:        item.url,
		Internal:   true,
		ReferredBy: item.referrer,
		Depth:      item.depth,
	}

	res, err := c.fetcher.Fetch(ctx, item.url)
	if err != nil {
		page.FetchError = classifyFetchError(err)
		c.metrics.IncErrorsTotal("fetch_failed")
		c.logger.Warn("page fetch failed",
			zap.String("url", item.url),
			zap.String("reason", page.FetchError))
		return page, nil, nil
	}

	status := res.StatusCode
	page.StatusCode = &status

	if status >= 400 || !res.HTML() || len(res.Body) == 0 {
		return page, nil, nil
	}

	facts, err := ExtractPageFacts(item.url, string(res.Body))
	if err != nil {
		c.metrics.IncErrorsTotal("extract_failed")
		c.logger.Warn("page parse failed", zap.String("url", item.url), zap.Error(err))
		return page, nil, nil
	}

	page.Title = facts.Title
	page.MetaTags = facts.MetaTags
	page.Links = facts.Links
	page.Images = facts.Images
	page.CanonicalURL = facts.CanonicalURL

	return page, facts, res.Body
}

// probeExternal records reachability of an external link without
// expanding it. Results are shared through the probe cache.
func (c *Crawler) probeExternal(ctx context.Context, item frontierItem) domain.PageRecord {
	page := domain.PageRecord{
		URL:        item.url,
		Internal:   false,
		ReferredBy: item.referrer,
		Depth:      item.depth,
	}

	if c.probes != nil {
		if status, reason, ok, err := c.probes.GetProbe(ctx, item.url); err == nil && ok {
			page.StatusCode = status
			page.FetchError = reason
			return page
		}
	}

	res, err := c.fetcher.Probe(ctx, item.url)
	if err != nil {
		page.FetchError = classifyFetchError(err)
		c.metrics.IncErrorsTotal("probe_failed")
	} else {
		status := res.StatusCode
		page.StatusCode = &status
	}

	if c.probes != nil {
		if err := c.probes.SetProbe(ctx, item.url, page.StatusCode, page.FetchError); err != nil {
			c.logger.Debug("probe cache write failed", zap.String("url", item.url), zap.Error(err))
		}
	}

	return page
}

// aggregate derives broken links and the status histogram from the
// collected page records.
func (c *Crawler) aggregate(result *domain.CrawlResult) {
	for i := range result.Pages {
		page := &result.Pages[i]

		result.Stats.PagesCrawled++
		if page.Internal {
			result.Stats.InternalPages++
		} else {
			result.Stats.ExternalPages++
		}
		if page.StatusCode != nil {
			result.Stats.StatusCounts[*page.StatusCode]++
		}

		if page.Broken() {
			result.Stats.BrokenCount++
			result.BrokenLinks = append(result.BrokenLinks, domain.BrokenLink{
				URL:        page.URL,
				StatusCode: page.StatusCode,
				ReferredBy: page.ReferredBy,
				Reason:     brokenReason(page),
				Internal:   page.Internal,
			})
		}
	}

	c.metrics.PagesCrawledTotal.Add(float64(result.Stats.PagesCrawled))
	c.metrics.BrokenLinksTotal.Add(float64(result.Stats.BrokenCount))
}

func (c *Crawler) loadRobots(ctx context.Context, normRoot string) *robotstxt.RobotsData {
	robotsURL := strings.TrimSuffix(normRoot, "/") + "/robots.txt"
	res, err := c.fetcher.Fetch(ctx, robotsURL)
	if err != nil {
		c.logger.Debug("robots.txt unavailable, crawling everything", zap.Error(err))
		return nil
	}
	data, err := robotstxt.FromStatusAndBytes(res.StatusCode, res.Body)
	if err != nil {
		c.logger.Debug("robots.txt unparsable, crawling everything", zap.Error(err))
		return nil
	}
	return data
}

func robotsAllowed(robots *robotstxt.RobotsData, rawURL string) bool {
	idx := strings.Index(rawURL, "://")
	if idx < 0 {
		return true
	}
	rest := rawURL[idx+3:]
	slash := strings.Index(rest, "/")
	if slash < 0 {
		return true
	}
	return robots.TestAgent(rest[slash:], robotsAgent)
}

// classifyFetchError maps transport errors onto the stable reason
// strings recorded on broken links.
func classifyFetchError(err error) string {
	msg := err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "deadline exceeded"):
		return "timeout"
	case strings.Contains(msg, "no such host"):
		return "dns lookup failed"
	case strings.Contains(msg, "connection refused"):
		return "connection refused"
	default:
		return "fetch failed"
	}
}

func brokenReason(page *domain.PageRecord) string {
	if page.StatusCode == nil {
		if page.FetchError != "" {
			return page.FetchError
		}
		return "fetch failed"
	}
	return fmt.Sprintf("HTTP %d", *page.StatusCode)
}
