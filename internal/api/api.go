// Package api exposes the detection pipeline over HTTP: submissions,
// triage of reverse-search results, aggregation views and exports.
package api

import (
	"crypto/rand"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/deeptracer/deeptracer-go/internal/analytics"
	"github.com/deeptracer/deeptracer-go/internal/classifier"
	"github.com/deeptracer/deeptracer-go/internal/conf"
	"github.com/deeptracer/deeptracer-go/internal/datastore"
	"github.com/deeptracer/deeptracer-go/internal/detection"
	"github.com/deeptracer/deeptracer-go/internal/feed"
	"github.com/deeptracer/deeptracer-go/internal/logging"
	"github.com/deeptracer/deeptracer-go/internal/observability"
	"github.com/deeptracer/deeptracer-go/internal/triage"
)

// Controller manages the API routes and handlers.
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	DS       datastore.Interface
	Settings *conf.Settings

	Classifier *classifier.Coordinator
	Feed       *feed.Fetcher
	Engine     *analytics.Engine
	Ledger     *triage.Ledger

	metrics   *observability.Metrics
	apiLogger *slog.Logger

	// resultMutex guards the current result set. Handlers that read or
	// replace it serialize here so a stale submission can never clobber a
	// newer one between the staleness check and the install.
	resultMutex   sync.Mutex
	currentResult *detection.Outcome
}

// Option is a functional option for configuring the Controller.
type Option func(*Controller)

// WithMetrics attaches the shared metrics instance.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// New creates the API controller and registers its routes under /api/v1.
func New(e *echo.Echo, ds datastore.Interface, settings *conf.Settings,
	coordinator *classifier.Coordinator, fetcher *feed.Fetcher,
	engine *analytics.Engine, opts ...Option) *Controller {

	c := &Controller{
		Echo:       e,
		DS:         ds,
		Settings:   settings,
		Classifier: coordinator,
		Feed:       fetcher,
		Engine:     engine,
		Ledger:     triage.NewLedger(),
		apiLogger:  logging.ForService("api"),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.Group = e.Group("/api/v1")
	c.initRoutes()
	return c
}

// initRoutes registers all API endpoints.
func (c *Controller) initRoutes() {
	c.Group.GET("/health", c.HealthCheck)
	c.Echo.GET("/healthz", c.HealthCheck)

	c.initDetectRoutes()
	c.initResultRoutes()
	c.initAnalyticsRoutes()
	c.initExportRoutes()

	if c.metrics != nil {
		c.Echo.GET("/metrics", echo.WrapHandler(c.metrics.Handler()))
	}
}

// HealthCheck handles the API health check endpoint.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// ErrorResponse is the JSON body returned for failed requests.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse creates a new API error response.
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	var errorStr string
	if err != nil {
		errorStr = err.Error()
	} else {
		errorStr = message
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
}

// generateCorrelationID creates a short identifier for error tracking.
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// HandleError constructs and returns an appropriate error response.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	errorResp := NewErrorResponse(err, message, code)

	c.apiLogger.Error("API error",
		"correlation_id", errorResp.CorrelationID,
		"message", message,
		"error", errorResp.Error,
		"code", code,
		"path", ctx.Request().URL.Path,
		"method", ctx.Request().Method,
		"ip", ctx.RealIP())

	return ctx.JSON(code, errorResp)
}
