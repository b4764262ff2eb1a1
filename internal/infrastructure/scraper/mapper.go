package scraper

import (
	"strings"

	"github.com/pricescout/backend/internal/domain"
)

// CurrencySymbol prefixes every normalized price
const CurrencySymbol = "₹"

var priceCleaner = strings.NewReplacer(",", "", CurrencySymbol, "")

// MapToProduct converts an extracted record to our domain Product model
func MapToProduct(record map[string]string, source domain.Source) domain.Product {
	availability := strings.TrimSpace(record[domain.FieldAvailability])
	if availability == "" {
		availability = domain.AvailabilityUnknown
	}

	return domain.Product{
		Title:        strings.TrimSpace(record[domain.FieldTitle]),
		Price:        NormalizePrice(record[domain.FieldPrice]),
		Availability: availability,
		Url:          AbsoluteURL(record[domain.FieldURL], source.BaseURL),
	}
}

// NormalizePrice strips separators and currency marks and prefixes a single
// currency symbol. "1,299." becomes "₹1299"; blank input stays blank.
func NormalizePrice(raw string) string {
	price := priceCleaner.Replace(raw)
	price = strings.Join(strings.Fields(price), "")
	price = strings.TrimSuffix(price, ".")
	if price == "" {
		return ""
	}
	return CurrencySymbol + price
}

// CollapseCurrency reduces any run of currency symbols to one
func CollapseCurrency(price string) string {
	doubled := CurrencySymbol + CurrencySymbol
	for strings.Contains(price, doubled) {
		price = strings.ReplaceAll(price, doubled, CurrencySymbol)
	}
	return price
}

// AbsoluteURL resolves a listing link against the source base URL.
// Links that already start with "http" are kept, except that a base URL
// repeated at the front is collapsed to one.
func AbsoluteURL(raw, baseURL string) string {
	link := strings.TrimSpace(raw)
	if link == "" {
		return ""
	}

	base := strings.TrimSuffix(baseURL, "/")
	if base != "" {
		for strings.HasPrefix(link, base+base) {
			link = link[len(base):]
		}
	}

	switch {
	case strings.HasPrefix(link, "http"):
		return link
	case strings.HasPrefix(link, "//"):
		return "https:" + link
	case !strings.HasPrefix(link, "/"):
		link = "/" + link
	}
	return base + link
}
