package usecase

import (
	"strings"

	"github.com/pricescout/backend/internal/domain"
)

// ParseKeywords splits a comma-separated keyword list, trimming whitespace
// and dropping empty entries. An empty input yields no keywords.
func ParseKeywords(raw string) []string {
	keywords := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if kw := strings.TrimSpace(part); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return keywords
}

// MatchesAllKeywords reports whether every keyword occurs in title,
// ignoring case. No keywords always matches.
func MatchesAllKeywords(title string, keywords []string) bool {
	titleLower := strings.ToLower(title)
	for _, kw := range keywords {
		if !strings.Contains(titleLower, strings.ToLower(kw)) {
			return false
		}
	}
	return true
}

// FilterProducts keeps the products whose title matches every keyword,
// preserving order
func FilterProducts(products []domain.Product, keywords []string) []domain.Product {
	filtered := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if MatchesAllKeywords(p.Title, keywords) {
			filtered = append(filtered, p)
		}
	}
	return filtered
}
