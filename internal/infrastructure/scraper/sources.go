package scraper

import "github.com/pricescout/backend/internal/domain"

// Default retailer hosts
const (
	DefaultAmazonBaseURL   = "https://www.amazon.in"
	DefaultFlipkartBaseURL = "https://www.flipkart.com"
)

// Amazon returns the Amazon India search source rooted at baseURL
func Amazon(baseURL string) domain.Source {
	if baseURL == "" {
		baseURL = DefaultAmazonBaseURL
	}
	return domain.Source{
		Key:        "amazon",
		Name:       "Amazon",
		BaseURL:    baseURL,
		SearchPath: "/s?k=",
		Schema: domain.Schema{
			Item: `div.s-result-item[data-component-type="s-search-result"]`,
			Fields: map[string]domain.Field{
				domain.FieldTitle:        {Selector: "h2 span, span.a-size-medium"},
				domain.FieldPrice:        {Selector: "span.a-price-whole"},
				domain.FieldAvailability: {Selector: "div.a-section.a-spacing-none.a-spacing-top-micro"},
				domain.FieldURL:          {Selector: "a.a-link-normal", Attr: "href"},
			},
		},
	}
}

// Flipkart returns the Flipkart search source rooted at baseURL
func Flipkart(baseURL string) domain.Source {
	if baseURL == "" {
		baseURL = DefaultFlipkartBaseURL
	}
	return domain.Source{
		Key:        "flipkart",
		Name:       "Flipkart",
		BaseURL:    baseURL,
		SearchPath: "/search?q=",
		Schema: domain.Schema{
			Item: "div[data-id]",
			Fields: map[string]domain.Field{
				domain.FieldTitle:        {Selector: "div._4rR01T, a.s1Q9rs, a.IRpwTa"},
				domain.FieldPrice:        {Selector: "div._30jeq3"},
				domain.FieldAvailability: {Selector: "div._2Tpdn3, span._192laR"},
				domain.FieldURL:          {Selector: "a._1fQZEK, a.s1Q9rs, a._2rpwqI", Attr: "href"},
			},
		},
	}
}

// DefaultSources returns the sources searched for every query, in search order
func DefaultSources(amazonBaseURL, flipkartBaseURL string) []domain.Source {
	return []domain.Source{
		Amazon(amazonBaseURL),
		Flipkart(flipkartBaseURL),
	}
}
