package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/gigstage/settlement_api/internal/cache"
	"github.com/gigstage/settlement_api/internal/utils"
)

var startTime = time.Now()

// HealthHandler provides the health endpoint.
type HealthHandler struct {
	db    *sqlx.DB
	redis *cache.RedisClient
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db *sqlx.DB, redis *cache.RedisClient) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

// GetHealth responds with service, database and cache status.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	dbStatus := "connected"
	if err := h.db.Ping(); err != nil {
		dbStatus = "disconnected"
	}

	redisStatus := "connected"
	if err := h.redis.Ping(c.Request.Context()); err != nil {
		redisStatus = "disconnected"
	}

	utils.Success(c, 200, "Service is healthy", gin.H{
		"status":   "healthy",
		"version":  "1.0.0",
		"uptime":   int(time.Since(startTime).Seconds()),
		"database": dbStatus,
		"redis":    redisStatus,
	})
}
