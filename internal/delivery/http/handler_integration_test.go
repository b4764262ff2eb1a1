package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pricescout/backend/config"
	"github.com/pricescout/backend/internal/domain"
	"github.com/pricescout/backend/internal/infrastructure/cache"
	"github.com/pricescout/backend/internal/infrastructure/metrics"
	"github.com/pricescout/backend/internal/infrastructure/status"
	"github.com/pricescout/backend/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMain sets up test environment before running tests
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// fakeScraper returns canned products or errors per source key
type fakeScraper struct {
	mu       sync.Mutex
	products map[string][]domain.Product
	errs     map[string]error
	calls    map[string]int
}

func (f *fakeScraper) Scrape(ctx context.Context, source domain.Source, query string) ([]domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[source.Key]++
	if err := f.errs[source.Key]; err != nil {
		return nil, err
	}
	return f.products[source.Key], nil
}

func (f *fakeScraper) callCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

type testServer struct {
	router  *gin.Engine
	hub     *status.Hub
	scraper *fakeScraper
}

// setupTestServer wires the real service, cache, hub and metrics around a fake scraper
func setupTestServer(t *testing.T, fake *fakeScraper) *testServer {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           "5000",
			Environment:    "test",
			AllowedOrigins: []string{"http://localhost:*"},
		},
		Cache: config.CacheConfig{Type: "memory"},
	}

	memoryCache := cache.NewMemoryCache(time.Minute)
	t.Cleanup(func() { memoryCache.Close() })

	hub := status.NewHub(time.Minute, nil)
	t.Cleanup(hub.Stop)

	collector := metrics.NewCollector("pricescout-test", func() float64 {
		return float64(hub.ActiveStreams())
	})

	service := usecase.NewSearchService(fake, memoryCache, hub, usecase.SearchServiceConfig{
		CacheTTL: time.Minute,
		Observer: collector,
	})

	handler := NewHandler(service, hub, nil)
	router := SetupRouter(cfg, handler, collector, nil)
	require.NotNil(t, router)

	return &testServer{router: router, hub: hub, scraper: fake}
}

func phoneScraper() *fakeScraper {
	return &fakeScraper{
		products: map[string][]domain.Product{
			"amazon": {
				{Title: "Galaxy Phone 5G", Price: "₹₹12999", Availability: "In stock", Url: "https://www.amazon.in/dp/1"},
				{Title: "Phone Case", Price: "₹299", Availability: "Unavailable", Url: "https://www.amazon.in/dp/2"},
			},
		},
		errs: map[string]error{
			"flipkart": domain.ErrSourceUnavailable,
		},
	}
}

type searchResponse struct {
	RequestID string                   `json:"requestId"`
	Amazon    []domain.Product         `json:"amazon"`
	Flipkart  []domain.Product         `json:"flipkart"`
	Sources   map[string]sourceSummary `json:"sources"`
}

func doGet(router *gin.Engine, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", target, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// readStream fetches a status stream from a live server and returns the raw body
func readStream(t *testing.T, router *gin.Engine, path string) string {
	t.Helper()

	server := httptest.NewServer(router)
	defer server.Close()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestHealthCheckEndpoint(t *testing.T) {
	t.Run("returns healthy status", func(t *testing.T) {
		ts := setupTestServer(t, &fakeScraper{})

		w := doGet(ts.router, "/health")
		require.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "healthy", response["status"])
		assert.Equal(t, "pricescout-backend", response["service"])
		assert.NotEmpty(t, response["version"])
	})

	t.Run("accepts GET requests only", func(t *testing.T) {
		ts := setupTestServer(t, &fakeScraper{})

		for _, method := range []string{"POST", "PUT", "DELETE", "PATCH"} {
			req := httptest.NewRequest(method, "/health", nil)
			w := httptest.NewRecorder()
			ts.router.ServeHTTP(w, req)

			if w.Code != http.StatusNotFound {
				t.Errorf("Method %s: Status = %d, want %d", method, w.Code, http.StatusNotFound)
			}
		}
	})
}

func TestSearchEndpoint(t *testing.T) {
	t.Run("returns 400 when query is missing", func(t *testing.T) {
		ts := setupTestServer(t, phoneScraper())

		for _, target := range []string{"/search", "/search?query=", "/search?query=%20%20&keywords=5g"} {
			w := doGet(ts.router, target)
			assert.Equal(t, http.StatusBadRequest, w.Code, target)
			assert.JSONEq(t, `{"error":"Query parameter is required"}`, w.Body.String(), target)
		}
		assert.Zero(t, ts.scraper.callCount("amazon"))
	})

	t.Run("filters products and substitutes placeholders", func(t *testing.T) {
		ts := setupTestServer(t, phoneScraper())

		w := doGet(ts.router, "/search?query=phone&keywords=galaxy,%205G%20,&request_id=req-1")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "req-1", w.Header().Get("X-Request-ID"))

		var response searchResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))

		assert.Equal(t, "req-1", response.RequestID)
		require.Len(t, response.Amazon, 1)
		assert.Equal(t, "Galaxy Phone 5G", response.Amazon[0].Title)
		assert.Equal(t, "₹12999", response.Amazon[0].Price)

		require.Len(t, response.Flipkart, 1)
		assert.Equal(t, domain.PlaceholderProduct(), response.Flipkart[0])

		assert.Equal(t, sourceSummary{Status: "ok", Count: 1}, response.Sources["amazon"])
		assert.Equal(t, "failed", response.Sources["flipkart"].Status)
		assert.Equal(t, 0, response.Sources["flipkart"].Count)
		assert.NotEmpty(t, response.Sources["flipkart"].Error)
	})

	t.Run("placeholder wire format", func(t *testing.T) {
		ts := setupTestServer(t, &fakeScraper{})

		w := doGet(ts.router, "/search?query=nothing")
		require.Equal(t, http.StatusOK, w.Code)

		var raw map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
		assert.JSONEq(t, `[{"Title":"Unavailable","Price":"","Availability":"Unavailable","Url":""}]`, string(raw["amazon"]))
		assert.JSONEq(t, `[{"Title":"Unavailable","Price":"","Availability":"Unavailable","Url":""}]`, string(raw["flipkart"]))
	})

	t.Run("no keyword match is reported as no_matches", func(t *testing.T) {
		ts := setupTestServer(t, phoneScraper())

		w := doGet(ts.router, "/search?query=phone&keywords=iphone")
		require.Equal(t, http.StatusOK, w.Code)

		var response searchResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "no_matches", response.Sources["amazon"].Status)
		assert.Equal(t, domain.PlaceholderProduct(), response.Amazon[0])
	})

	t.Run("generated request id is echoed", func(t *testing.T) {
		ts := setupTestServer(t, phoneScraper())

		w := doGet(ts.router, "/search?query=phone")
		require.Equal(t, http.StatusOK, w.Code)

		var response searchResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.NotEmpty(t, response.RequestID)
		assert.Equal(t, response.RequestID, w.Header().Get("X-Request-ID"))
	})

	t.Run("second search is served from cache", func(t *testing.T) {
		ts := setupTestServer(t, phoneScraper())

		doGet(ts.router, "/search?query=phone")
		w := doGet(ts.router, "/search?query=%20PHONE%20")
		require.Equal(t, http.StatusOK, w.Code)

		var response searchResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.True(t, response.Sources["amazon"].Cached)
		assert.Equal(t, 1, ts.scraper.callCount("amazon"))
		// failures are never cached
		assert.Equal(t, 2, ts.scraper.callCount("flipkart"))
	})

	t.Run("punctuation does not share a cache entry", func(t *testing.T) {
		ts := setupTestServer(t, phoneScraper())

		doGet(ts.router, "/search?query=c%2B%2B%20book")
		w := doGet(ts.router, "/search?query=c%20book")
		require.Equal(t, http.StatusOK, w.Code)

		var response searchResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.False(t, response.Sources["amazon"].Cached)
		assert.Equal(t, 2, ts.scraper.callCount("amazon"))
	})
}

func TestStatusEndpoint(t *testing.T) {
	t.Run("streams the progress of a search in order", func(t *testing.T) {
		ts := setupTestServer(t, phoneScraper())

		w := doGet(ts.router, "/search?query=phone&keywords=5g&request_id=req-42")
		require.Equal(t, http.StatusOK, w.Code)

		body := readStream(t, ts.router, "/status/req-42")

		want := "data: Starting search for: phone\n\n" +
			"data: Searching on Amazon...\n\n" +
			"data: Found 2 items on Amazon\n\n" +
			"data: Searching on Flipkart...\n\n" +
			"data: Error occurred while searching on Flipkart\n\n" +
			"data: Filtering products based on keywords\n\n" +
			"data: Found 1 matching products on Amazon\n\n" +
			"data: Found 0 matching products on Flipkart\n\n" +
			"data: DONE\n\n"
		assert.Equal(t, want, body)
	})

	t.Run("query parameter form and invalid search still end with DONE", func(t *testing.T) {
		ts := setupTestServer(t, phoneScraper())

		w := doGet(ts.router, "/search?request_id=req-bad")
		require.Equal(t, http.StatusBadRequest, w.Code)

		body := readStream(t, ts.router, "/status?request_id=req-bad")
		assert.Equal(t, "data: DONE\n\n", body)
	})

	t.Run("streams of different requests stay apart", func(t *testing.T) {
		ts := setupTestServer(t, phoneScraper())

		doGet(ts.router, "/search?query=phone&request_id=a")
		doGet(ts.router, "/search?query=laptop&request_id=b")

		bodyB := readStream(t, ts.router, "/status/b")
		assert.True(t, strings.HasPrefix(bodyB, "data: Starting search for: laptop\n\n"))
		assert.NotContains(t, bodyB, "phone")

		bodyA := readStream(t, ts.router, "/status/a")
		assert.True(t, strings.HasPrefix(bodyA, "data: Starting search for: phone\n\n"))
		assert.NotContains(t, bodyA, "laptop")
	})

	t.Run("returns 400 without a request id", func(t *testing.T) {
		ts := setupTestServer(t, &fakeScraper{})

		w := doGet(ts.router, "/status")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"request_id is required"}`, w.Body.String())
	})

	t.Run("returns 409 for a second subscriber", func(t *testing.T) {
		ts := setupTestServer(t, &fakeScraper{})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		_, err := ts.hub.Subscribe(ctx, "busy")
		require.NoError(t, err)

		w := doGet(ts.router, "/status/busy")
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestWriteEvent(t *testing.T) {
	var buf bytes.Buffer

	writeEvent(&buf, "Found 3 items on Amazon")
	writeEvent(&buf, "line one\nline two")

	assert.Equal(t, "data: Found 3 items on Amazon\n\ndata: line one\ndata: line two\n\n", buf.String())
}

// erroringSearcher fails every search with a fixed error
type erroringSearcher struct{ err error }

func (s erroringSearcher) Search(ctx context.Context, request *domain.SearchRequest) (*domain.SearchResult, error) {
	return nil, s.err
}

func TestSearch_UnexpectedError(t *testing.T) {
	handler := NewHandler(erroringSearcher{err: errors.New("boom")}, nil, nil)
	router := SetupRouter(&config.Config{}, handler, nil, nil)

	w := doGet(router, "/search?query=phone")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, w.Body.String())
}

func TestCORSIntegration(t *testing.T) {
	ts := setupTestServer(t, &fakeScraper{})

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	ts := setupTestServer(t, phoneScraper())

	doGet(ts.router, "/search?query=phone")
	w := doGet(ts.router, "/metrics")

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "pricescout_test_searches_total 1")
	assert.Contains(t, body, `pricescout_test_scrapes_total{outcome="failed",source="flipkart"} 1`)
	assert.Contains(t, body, `pricescout_test_scrapes_total{outcome="ok",source="amazon"} 1`)
	assert.Contains(t, body, "pricescout_test_status_streams_active")
}
