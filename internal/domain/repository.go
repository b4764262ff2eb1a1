package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Extractor turns a page into an ordered list of field-name -> value records
type Extractor interface {
	Extract(ctx context.Context, pageURL string, schema Schema) ([]map[string]string, error)
}

// ProductScraper searches a single source and returns normalized products
type ProductScraper interface {
	Scrape(ctx context.Context, source Source, query string) ([]Product, error)
}

// StatusPublisher delivers progress messages for a request
type StatusPublisher interface {
	Publish(requestID, message string)
	Close(requestID string)
}

// StatusSubscriber streams progress messages for a request
type StatusSubscriber interface {
	Subscribe(ctx context.Context, requestID string) (<-chan string, error)
}
