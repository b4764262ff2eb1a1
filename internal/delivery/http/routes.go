package http

import (
	"github.com/gin-gonic/gin"
	"github.com/pricescout/backend/config"
	"github.com/pricescout/backend/internal/infrastructure/logging"
	"github.com/pricescout/backend/internal/infrastructure/metrics"
)

// SetupRouter creates and configures the Gin router.
// collector may be nil, in which case /metrics is not served.
func SetupRouter(cfg *config.Config, handler *Handler, collector *metrics.Collector, logger logging.Logger) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}

	router := gin.New()

	// Global middleware
	router.Use(RequestIDMiddleware())
	router.Use(RecoveryMiddleware(logger))
	router.Use(LoggerMiddleware(logger))
	if collector != nil {
		router.Use(collector.Middleware())
	}
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	router.GET("/health", handler.HealthCheck)
	router.GET("/search", handler.Search)
	router.GET("/status", handler.Status)
	router.GET("/status/:requestId", handler.Status)

	if collector != nil {
		router.GET("/metrics", collector.Handler())
	}

	return router
}
