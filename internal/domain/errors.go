package domain

import "errors"

var (
	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrMissingQuery is returned when a search has no query
	ErrMissingQuery = errors.New("query parameter is required")

	// ErrSourceUnavailable is returned when a retailer page cannot be fetched
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrExtractionFailed is returned when a fetched page cannot be parsed
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheUnavailable is returned when cache service is unavailable
	ErrCacheUnavailable = errors.New("cache service unavailable")

	// ErrSubscriberExists is returned when a status stream already has a reader
	ErrSubscriberExists = errors.New("status stream already has a subscriber")
)
