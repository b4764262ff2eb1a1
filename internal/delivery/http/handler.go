package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pricescout/backend/internal/domain"
	"github.com/pricescout/backend/internal/infrastructure/logging"
	"github.com/pricescout/backend/internal/usecase"
)

// ProductSearcher runs a product search across all sources
type ProductSearcher interface {
	Search(ctx context.Context, request *domain.SearchRequest) (*domain.SearchResult, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	searcher ProductSearcher
	status   domain.StatusSubscriber
	logger   logging.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(searcher ProductSearcher, status domain.StatusSubscriber, logger logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &Handler{
		searcher: searcher,
		status:   status,
		logger:   logger,
	}
}

// sourceSummary reports how one source fared, next to its product list
type sourceSummary struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
	Cached bool   `json:"cached"`
	Error  string `json:"error,omitempty"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "pricescout-backend",
		"version": "1.0.0",
	})
}

// Search handles GET /search?query=&keywords=
func (h *Handler) Search(c *gin.Context) {
	request := &domain.SearchRequest{
		Query:     c.Query("query"),
		Keywords:  usecase.ParseKeywords(c.Query("keywords")),
		RequestID: c.GetString(RequestIDKey),
	}

	result, err := h.searcher.Search(c.Request.Context(), request)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMissingQuery):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter is required"})
		case errors.Is(err, domain.ErrInvalidRequest):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.WithError(err).WithField("request_id", request.RequestID).Error("search failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	response := gin.H{"requestId": result.RequestID}
	sources := make(map[string]sourceSummary, len(result.Results))
	for _, r := range result.Results {
		products := r.Products
		if len(products) == 0 {
			products = []domain.Product{domain.PlaceholderProduct()}
		}
		response[r.Source.Key] = products

		summary := sourceSummary{
			Status: string(r.Status),
			Count:  len(r.Products),
			Cached: r.Cached,
		}
		if r.Err != nil {
			summary.Error = r.Err.Error()
		}
		sources[r.Source.Key] = summary
	}
	response["sources"] = sources

	c.JSON(http.StatusOK, response)
}

// Status streams the progress messages of one search as server-sent events.
// The stream ends after the DONE message or when the client goes away.
func (h *Handler) Status(c *gin.Context) {
	requestID := c.Param("requestId")
	if requestID == "" {
		requestID = c.Query("request_id")
	}
	if strings.TrimSpace(requestID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request_id is required"})
		return
	}

	messages, err := h.status.Subscribe(c.Request.Context(), requestID)
	if err != nil {
		if errors.Is(err, domain.ErrSubscriberExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "status stream already has a subscriber"})
			return
		}
		h.logger.WithError(err).WithField("request_id", requestID).Error("status subscribe failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	c.Stream(func(w io.Writer) bool {
		message, ok := <-messages
		if !ok {
			return false
		}
		writeEvent(w, message)
		return message != domain.StatusDone
	})
}

// writeEvent writes message as one event; every line gets its own data field
func writeEvent(w io.Writer, message string) {
	for _, line := range strings.Split(message, "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprint(w, "\n")
}
