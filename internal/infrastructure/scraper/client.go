package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"

	"github.com/pricescout/backend/internal/domain"
	"github.com/pricescout/backend/internal/infrastructure/logging"
)

const (
	defaultUserAgent      = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"
	defaultRequestTimeout = 30 * time.Second
)

// ClientConfig holds settings for the extraction client
type ClientConfig struct {
	UserAgent      string
	RequestTimeout time.Duration
	RatePerSecond  float64
	Burst          int
}

// Client extracts structured records from retailer pages using colly
type Client struct {
	userAgent string
	timeout   time.Duration
	transport http.RoundTripper
	logger    logging.Logger

	limit    rate.Limit
	burst    int
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewClient creates a new extraction client
func NewClient(cfg ClientConfig, logger logging.Logger) *Client {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}

	return &Client{
		userAgent: cfg.UserAgent,
		timeout:   cfg.RequestTimeout,
		transport: http.DefaultTransport,
		logger:    logger,
		limit:     limit,
		burst:     cfg.Burst,
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Extract fetches pageURL and returns one record per schema.Item element,
// in document order. Fields with blank values are left out of the record.
func (c *Client) Extract(ctx context.Context, pageURL string, schema domain.Schema) ([]map[string]string, error) {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid url %q", domain.ErrExtractionFailed, pageURL)
	}
	if schema.Item == "" {
		return nil, fmt.Errorf("%w: schema has no item selector", domain.ErrExtractionFailed)
	}

	if err := c.limiterFor(u.Host).Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	collector := c.newCollector(ctx)

	records := make([]map[string]string, 0)
	collector.OnHTML(schema.Item, func(e *colly.HTMLElement) {
		if record := extractRecord(e.DOM, schema.Fields); len(record) > 0 {
			records = append(records, record)
		}
	})

	start := time.Now()
	if err := collector.Visit(pageURL); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.WithFields(logging.Fields{
			"url":   pageURL,
			"error": err,
		}).Warn("page fetch failed")
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.logger.WithFields(logging.Fields{
		"url":     pageURL,
		"records": len(records),
		"elapsed": time.Since(start),
	}).Debug("page extracted")

	return records, nil
}

// newCollector builds a synchronous collector bound to ctx
func (c *Client) newCollector(ctx context.Context) *colly.Collector {
	collector := colly.NewCollector(
		colly.UserAgent(c.userAgent),
		colly.AllowURLRevisit(),
	)
	collector.WithTransport(&contextTransport{ctx: ctx, base: c.transport})
	collector.SetRequestTimeout(c.timeout)

	collector.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		r.Headers.Set("Accept-Language", "en-IN,en;q=0.9")
		c.logger.WithField("url", r.URL.String()).Debug("visiting")
	})

	return collector
}

// limiterFor returns the rate limiter for host, creating it on first use
func (c *Client) limiterFor(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	limiter, ok := c.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(c.limit, c.burst)
		c.limiters[host] = limiter
	}
	return limiter
}

// extractRecord reads every field of schema relative to one listing element
func extractRecord(item *goquery.Selection, fields map[string]domain.Field) map[string]string {
	record := make(map[string]string, len(fields))
	for name, field := range fields {
		sel := item
		if field.Selector != "" {
			sel = item.Find(field.Selector)
		}
		sel = sel.First()
		if sel.Length() == 0 {
			continue
		}

		var value string
		if field.Attr != "" {
			value, _ = sel.Attr(field.Attr)
		} else {
			value = sel.Text()
		}

		value = strings.Join(strings.Fields(value), " ")
		if value != "" {
			record[name] = value
		}
	}
	return record
}

// contextTransport binds every outgoing request to a context so a cancelled
// search aborts in-flight fetches
type contextTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t *contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(req.WithContext(t.ctx))
}
