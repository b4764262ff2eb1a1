package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/pricescout/backend/internal/domain"
)

const listingPage = `<!DOCTYPE html>
<html><body>
	<ul>
		<li class="item"><a class="name" href="/p/1">  Phone   5G 128GB Black </a><span class="price">1,299</span><em>In stock</em></li>
		<li class="item"><a class="name" href="https://example.com/p/2">Phone 4G 64GB</a></li>
		<li class="item"></li>
	</ul>
</body></html>`

var listingSchema = domain.Schema{
	Item: "li.item",
	Fields: map[string]domain.Field{
		domain.FieldTitle:        {Selector: "a.name"},
		domain.FieldPrice:        {Selector: "span.price"},
		domain.FieldAvailability: {Selector: "em"},
		domain.FieldURL:          {Selector: "a.name", Attr: "href"},
	},
}

func newHTMLServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewClient(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		client := NewClient(ClientConfig{}, nil)

		assert.Equal(t, defaultUserAgent, client.userAgent)
		assert.Equal(t, defaultRequestTimeout, client.timeout)
		assert.Equal(t, rate.Inf, client.limit)
		assert.Equal(t, 1, client.burst)
		assert.NotNil(t, client.logger)
	})

	t.Run("keeps custom values", func(t *testing.T) {
		client := NewClient(ClientConfig{
			UserAgent:      "test-agent",
			RequestTimeout: 5 * time.Second,
			RatePerSecond:  2,
			Burst:          4,
		}, nil)

		assert.Equal(t, "test-agent", client.userAgent)
		assert.Equal(t, 5*time.Second, client.timeout)
		assert.Equal(t, rate.Limit(2), client.limit)
		assert.Equal(t, 4, client.burst)
	})
}

func TestExtract_Success(t *testing.T) {
	var gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.UserAgent()
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(listingPage))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{UserAgent: "pricescout-test"}, nil)

	records, err := client.Extract(context.Background(), server.URL+"/search?q=phone", listingSchema)

	require.NoError(t, err)
	assert.Equal(t, "pricescout-test", gotAgent)
	require.Len(t, records, 2)
	assert.Equal(t, map[string]string{
		domain.FieldTitle:        "Phone 5G 128GB Black",
		domain.FieldPrice:        "1,299",
		domain.FieldAvailability: "In stock",
		domain.FieldURL:          "/p/1",
	}, records[0])
	assert.Equal(t, map[string]string{
		domain.FieldTitle: "Phone 4G 64GB",
		domain.FieldURL:   "https://example.com/p/2",
	}, records[1])
}

func TestExtract_ItemSelfSelector(t *testing.T) {
	server := newHTMLServer(t, http.StatusOK, `<html><body>
		<a class="card" href="/x/1">First</a>
		<a class="card" href="/x/2">Second</a>
	</body></html>`)

	client := NewClient(ClientConfig{}, nil)
	schema := domain.Schema{
		Item: "a.card",
		Fields: map[string]domain.Field{
			domain.FieldTitle: {},
			domain.FieldURL:   {Attr: "href"},
		},
	}

	records, err := client.Extract(context.Background(), server.URL, schema)

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "First", records[0][domain.FieldTitle])
	assert.Equal(t, "/x/2", records[1][domain.FieldURL])
}

func TestExtract_NoListings(t *testing.T) {
	server := newHTMLServer(t, http.StatusOK, `<html><body><p>No results</p></body></html>`)
	client := NewClient(ClientConfig{}, nil)

	records, err := client.Extract(context.Background(), server.URL, listingSchema)

	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestExtract_ServerError(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{}, nil)

	records, err := client.Extract(context.Background(), server.URL, listingSchema)

	assert.Nil(t, records)
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
	assert.Equal(t, 1, attempts) // failures are not retried
}

func TestExtract_InvalidURL(t *testing.T) {
	client := NewClient(ClientConfig{}, nil)

	records, err := client.Extract(context.Background(), "://invalid-url", listingSchema)

	assert.Nil(t, records)
	assert.ErrorIs(t, err, domain.ErrExtractionFailed)
}

func TestExtract_MissingItemSelector(t *testing.T) {
	client := NewClient(ClientConfig{}, nil)

	records, err := client.Extract(context.Background(), "https://example.com", domain.Schema{})

	assert.Nil(t, records)
	assert.ErrorIs(t, err, domain.ErrExtractionFailed)
}

func TestExtract_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := NewClient(ClientConfig{}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	records, err := client.Extract(ctx, server.URL, listingSchema)

	assert.Nil(t, records)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExtract_UnreachableHost(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	client := NewClient(ClientConfig{RequestTimeout: time.Second}, nil)

	records, err := client.Extract(context.Background(), addr, listingSchema)

	assert.Nil(t, records)
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
}

func TestLimiterFor(t *testing.T) {
	client := NewClient(ClientConfig{RatePerSecond: 1, Burst: 3}, nil)

	a := client.limiterFor("www.amazon.in")
	b := client.limiterFor("www.amazon.in")
	f := client.limiterFor("www.flipkart.com")

	assert.Same(t, a, b)
	assert.NotSame(t, a, f)
	assert.Equal(t, 3, a.Burst())
}
