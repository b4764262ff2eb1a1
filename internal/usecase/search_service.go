package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/pricescout/backend/internal/domain"
	"github.com/pricescout/backend/internal/infrastructure/logging"
	"github.com/pricescout/backend/internal/infrastructure/scraper"
)

var (
	multipleSpacesRegex = regexp.MustCompile(`\s+`)
)

// Scrape outcomes reported to the observer
const (
	outcomeOK     = "ok"
	outcomeEmpty  = "empty"
	outcomeFailed = "failed"
	outcomeCached = "cached"
)

// SearchObserver receives search and per-source scrape measurements
type SearchObserver interface {
	ObserveSearch()
	ObserveScrape(source, outcome string, elapsed time.Duration)
}

// SearchServiceConfig holds configuration for the search service
type SearchServiceConfig struct {
	Sources  []domain.Source
	CacheTTL time.Duration
	Observer SearchObserver
	Logger   logging.Logger
}

// SearchService searches every configured source for a query and reports
// progress on the request's status stream
type SearchService struct {
	scraper  domain.ProductScraper
	cache    domain.CacheRepository
	status   domain.StatusPublisher
	sources  []domain.Source
	observer SearchObserver
	cacheTTL time.Duration
	logger   logging.Logger
}

// NewSearchService creates a new search service with dependencies
func NewSearchService(
	productScraper domain.ProductScraper,
	cache domain.CacheRepository,
	status domain.StatusPublisher,
	config SearchServiceConfig,
) *SearchService {
	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 15 * time.Minute
	}

	sources := config.Sources
	if len(sources) == 0 {
		sources = scraper.DefaultSources("", "")
	}

	logger := config.Logger
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}

	return &SearchService{
		scraper:  productScraper,
		cache:    cache,
		status:   status,
		sources:  sources,
		observer: config.Observer,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// Search scrapes every source in turn, filters the listings by keyword and
// returns one result per source. A failing source never fails the search.
// The request's status stream is closed when Search returns.
func (s *SearchService) Search(ctx context.Context, request *domain.SearchRequest) (*domain.SearchResult, error) {
	if request == nil {
		return nil, domain.ErrInvalidRequest
	}
	defer s.status.Close(request.RequestID)

	query := strings.TrimSpace(request.Query)
	if query == "" {
		return nil, domain.ErrMissingQuery
	}

	log := s.logger.WithFields(logging.Fields{
		"request_id": request.RequestID,
		"query":      query,
	})
	log.WithField("keywords", request.Keywords).Debug("received search query")

	if s.observer != nil {
		s.observer.ObserveSearch()
	}
	s.publish(request.RequestID, "Starting search for: "+query)

	results := make([]domain.SourceResult, 0, len(s.sources))
	for _, source := range s.sources {
		results = append(results, s.searchSource(ctx, request.RequestID, source, query))
	}

	s.publish(request.RequestID, "Filtering products based on keywords")
	for i := range results {
		result := &results[i]
		result.Products = FilterProducts(result.Products, request.Keywords)
		for j := range result.Products {
			result.Products[j].Price = scraper.CollapseCurrency(result.Products[j].Price)
		}
		if result.Status == domain.SourceStatusOK && len(result.Products) == 0 {
			result.Status = domain.SourceStatusNoMatches
		}
	}

	for _, result := range results {
		s.publish(request.RequestID, fmt.Sprintf("Found %d matching products on %s", len(result.Products), result.Source.Name))
		log.WithFields(logging.Fields{
			"source":  result.Source.Key,
			"status":  result.Status,
			"matches": len(result.Products),
		}).Debug("source result")
	}

	return &domain.SearchResult{
		RequestID: request.RequestID,
		Query:     query,
		Keywords:  request.Keywords,
		Results:   results,
	}, nil
}

// searchSource runs one source through the cache and the scraper.
// Failures are logged and reported on the status stream, then returned as a
// failed result with no products.
func (s *SearchService) searchSource(ctx context.Context, requestID string, source domain.Source, query string) domain.SourceResult {
	start := time.Now()
	log := s.logger.WithFields(logging.Fields{
		"request_id": requestID,
		"source":     source.Key,
	})

	s.publish(requestID, fmt.Sprintf("Searching on %s...", source.Name))

	cacheKey := generateCacheKey(source.Key, query)
	if cached, err := s.getFromCache(ctx, cacheKey); err == nil {
		log.WithField("items", len(cached)).Debug("cache hit")
		s.publish(requestID, fmt.Sprintf("Found %d items on %s", len(cached), source.Name))
		s.observe(source.Key, outcomeCached, start)
		return domain.SourceResult{Source: source, Products: cached, Status: domain.SourceStatusOK, Cached: true}
	}

	log.WithField("url", source.SearchURL(query)).Debug("scraping source")
	products, err := s.scraper.Scrape(ctx, source, query)
	if err != nil {
		log.WithError(err).Error("error scraping source")
		s.publish(requestID, fmt.Sprintf("Error occurred while searching on %s", source.Name))
		s.observe(source.Key, outcomeFailed, start)
		return domain.SourceResult{Source: source, Products: []domain.Product{}, Status: domain.SourceStatusFailed, Err: err}
	}

	s.publish(requestID, fmt.Sprintf("Found %d items on %s", len(products), source.Name))

	if len(products) == 0 {
		s.observe(source.Key, outcomeEmpty, start)
		return domain.SourceResult{Source: source, Products: products, Status: domain.SourceStatusOK}
	}

	// Empty pages are not cached
	if err := s.cache.Set(ctx, cacheKey, products, s.cacheTTL); err != nil {
		log.WithError(err).Warn("failed to cache products")
	}
	s.observe(source.Key, outcomeOK, start)

	return domain.SourceResult{Source: source, Products: products, Status: domain.SourceStatusOK}
}

func (s *SearchService) publish(requestID, message string) {
	s.status.Publish(requestID, message)
}

func (s *SearchService) observe(source, outcome string, start time.Time) {
	if s.observer != nil {
		s.observer.ObserveScrape(source, outcome, time.Since(start))
	}
}

// getFromCache retrieves products from cache. Values may come back as
// decoded JSON, so they are re-decoded into products.
func (s *SearchService) getFromCache(ctx context.Context, key string) ([]domain.Product, error) {
	value, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	if products, ok := value.([]domain.Product); ok {
		return products, nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return nil, domain.ErrCacheMiss
	}
	var products []domain.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, domain.ErrCacheMiss
	}
	return products, nil
}

// generateCacheKey creates a normalized cache key.
// Format: "products:{source}:{normalized_query}"
func generateCacheKey(sourceKey, query string) string {
	return fmt.Sprintf("products:%s:%s", sourceKey, normalizeForCacheKey(query))
}

// normalizeForCacheKey lowercases and collapses whitespace. Punctuation is
// kept since the sites treat "c++" and "c" as different searches.
func normalizeForCacheKey(s string) string {
	result := strings.ToLower(s)
	result = multipleSpacesRegex.ReplaceAllString(result, " ")
	return strings.TrimSpace(result)
}
