package domain

import (
	"net/url"
	"strings"
)

// Field describes how to read one named value out of a listing element.
// An empty Selector addresses the listing element itself; an empty Attr
// reads the element text.
type Field struct {
	Selector string
	Attr     string
}

// Schema is the field-name -> selector mapping handed to an extractor
type Schema struct {
	Item   string
	Fields map[string]Field
}

// Extracted field names
const (
	FieldTitle        = "Title"
	FieldPrice        = "Price"
	FieldAvailability = "Availability"
	FieldURL          = "Url"
)

// Source is a retailer that can be searched
type Source struct {
	Key        string // response key, e.g. "amazon"
	Name       string // display name, e.g. "Amazon"
	BaseURL    string // scheme + host, no trailing slash
	SearchPath string // path and query prefix the escaped query is appended to
	Schema     Schema
}

// SearchURL builds the search results URL for query
func (s Source) SearchURL(query string) string {
	return strings.TrimSuffix(s.BaseURL, "/") + s.SearchPath + url.QueryEscape(query)
}
