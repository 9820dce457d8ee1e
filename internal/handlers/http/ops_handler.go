package http

import (
	"context"
	"net/http"
	"time"

	"iceflux/internal/infrastructure/middleware"
	"iceflux/internal/infrastructure/monitoring"
	"iceflux/pkg/version"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// OpsHandler serves liveness, readiness, status and metrics of the bridge. It only reads
// monitoring state and never influences collection cycles.
type OpsHandler struct {
	health       *monitoring.HealthChecker
	tracker      *monitoring.CycleTracker
	metrics      http.Handler
	startTime    time.Time
	readyTimeout time.Duration
}

// NewOpsHandler creates the handler. metrics may be nil to disable /metrics.
func NewOpsHandler(
	health *monitoring.HealthChecker,
	tracker *monitoring.CycleTracker,
	metrics http.Handler,
	readyTimeout time.Duration,
) *OpsHandler {
	if readyTimeout <= 0 {
		readyTimeout = 2 * time.Second
	}
	return &OpsHandler{
		health:       health,
		tracker:      tracker,
		metrics:      metrics,
		startTime:    time.Now(),
		readyTimeout: readyTimeout,
	}
}

// NewRouter builds the gin engine with the ops middleware chain and routes.
func NewRouter(h *OpsHandler, logger *zap.SugaredLogger) *gin.Engine {
	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.TracingMiddleware(),
		middleware.RequestLogMiddleware(logger),
	)
	h.SetupRoutes(router)
	return router
}

func (h *OpsHandler) SetupRoutes(router gin.IRouter) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	router.GET("/status", h.Status)
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics))
	}
}

// Health reports that the process is alive.
func (h *OpsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
		"uptime":    time.Since(h.startTime).String(),
		"version":   version.Version,
	})
}

// Ready runs all dependency and freshness checks.
func (h *OpsHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.readyTimeout)
	defer cancel()

	status := h.health.CheckAll(ctx)
	if status.Status != monitoring.StatusHealthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "not_ready",
			"timestamp": status.Timestamp,
			"checks":    status.Checks,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": status.Timestamp,
		"checks":    status.Checks,
	})
}

// Status exposes the cycle counters, the last successful cycle and the last error.
func (h *OpsHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"build":     version.Info(),
		"collector": h.tracker.Status(),
	})
}
