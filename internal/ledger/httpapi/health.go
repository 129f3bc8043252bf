package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// HealthHandler answers liveness/readiness probes for the general-ledger
// service: the outbox publisher and consumer runners have no HTTP surface
// of their own, so this is the only way an orchestrator can tell whether
// the process and its database connection are up.
type HealthHandler struct {
	pool      *pgxpool.Pool
	version   string
	startTime time.Time
}

func NewHealthHandler(pool *pgxpool.Pool, version string) *HealthHandler {
	return &HealthHandler{pool: pool, version: version, startTime: time.Now()}
}

func (h *HealthHandler) RegisterRoutes(router gin.IRouter) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"version": h.version,
		"uptime":  time.Since(h.startTime).Round(time.Second).String(),
	})
}

func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.pool.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false, "database": "unhealthy: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ready": true, "database": "healthy"})
}
