package domain

// Product is a single listing scraped from a retailer search page
type Product struct {
	Title        string `json:"Title"`
	Price        string `json:"Price"`
	Availability string `json:"Availability"`
	Url          string `json:"Url"`
}

// Availability used when a listing carries no stock information
const AvailabilityUnknown = "Unavailable"

// PlaceholderProduct signals "nothing to show" for a source in a response
func PlaceholderProduct() Product {
	return Product{
		Title:        "Unavailable",
		Availability: AvailabilityUnknown,
	}
}

// SearchRequest represents a product search across all configured sources
type SearchRequest struct {
	Query     string   `json:"query"`
	Keywords  []string `json:"keywords,omitempty"`
	RequestID string   `json:"requestId"`
}

// SourceStatus describes how a single source fared during a search
type SourceStatus string

const (
	SourceStatusOK        SourceStatus = "ok"
	SourceStatusNoMatches SourceStatus = "no_matches"
	SourceStatusFailed    SourceStatus = "failed"
)

// SourceResult is the outcome of searching one source
type SourceResult struct {
	Source   Source
	Products []Product
	Status   SourceStatus
	Cached   bool
	Err      error
}

// SearchResult aggregates the per-source results of a search, in source order
type SearchResult struct {
	RequestID string
	Query     string
	Keywords  []string
	Results   []SourceResult
}
