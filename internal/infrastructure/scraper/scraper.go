package scraper

import (
	"context"

	"github.com/pricescout/backend/internal/domain"
)

// Scraper runs a source search through an extractor and normalizes the records
type Scraper struct {
	extractor domain.Extractor
}

// NewScraper creates a new product scraper
func NewScraper(extractor domain.Extractor) *Scraper {
	return &Scraper{extractor: extractor}
}

// Scrape searches source for query and returns products in page order
func (s *Scraper) Scrape(ctx context.Context, source domain.Source, query string) ([]domain.Product, error) {
	records, err := s.extractor.Extract(ctx, source.SearchURL(query), source.Schema)
	if err != nil {
		return nil, err
	}

	products := make([]domain.Product, 0, len(records))
	for _, record := range records {
		products = append(products, MapToProduct(record, source))
	}
	return products, nil
}
