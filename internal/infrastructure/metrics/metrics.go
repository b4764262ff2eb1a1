package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector manages Prometheus metrics for the service
type Collector struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	searchesTotal       prometheus.Counter
	scrapesTotal        *prometheus.CounterVec
	scrapeDuration      *prometheus.HistogramVec
}

// NewCollector creates a collector with its own registry. activeStreams,
// when set, is sampled on every scrape of /metrics.
func NewCollector(serviceName string, activeStreams func() float64) *Collector {
	prefix := strings.ReplaceAll(serviceName, "-", "_")

	c := &Collector{registry: prometheus.NewRegistry()}

	c.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	c.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
	c.searchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: prefix + "_searches_total",
		Help: "Total number of product searches",
	})
	c.scrapesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_scrapes_total",
			Help: "Source searches by outcome",
		},
		[]string{"source", "outcome"},
	)
	c.scrapeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_scrape_duration_seconds",
			Help:    "Time spent searching a single source",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"source"},
	)

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.httpRequestsTotal,
		c.httpRequestDuration,
		c.searchesTotal,
		c.scrapesTotal,
		c.scrapeDuration,
	)

	if activeStreams != nil {
		c.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: prefix + "_status_streams_active",
				Help: "Status streams with an attached subscriber",
			},
			activeStreams,
		))
	}

	return c
}

// ObserveSearch counts one search request
func (c *Collector) ObserveSearch() {
	c.searchesTotal.Inc()
}

// ObserveScrape records the outcome and latency of one source search
func (c *Collector) ObserveScrape(source, outcome string, elapsed time.Duration) {
	c.scrapesTotal.WithLabelValues(source, outcome).Inc()
	c.scrapeDuration.WithLabelValues(source).Observe(elapsed.Seconds())
}

// Middleware returns middleware that collects HTTP metrics
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()

		ctx.Next()

		endpoint := ctx.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		method := ctx.Request.Method
		status := strconv.Itoa(ctx.Writer.Status())

		c.httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
		c.httpRequestDuration.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler returns the Prometheus exposition handler
func (c *Collector) Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
}
