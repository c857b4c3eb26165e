package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	tplservice "github.com/GoSim-25-26J-441/template-registry/internal/templates/service"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	DB        string    `json:"db,omitempty"`
	Redis     string    `json:"redis,omitempty"`
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	serviceName string
	version     string
	db          Pinger
	redis       *redis.Client
}

// NewHealthHandler creates a HealthHandler. db and rdb may be nil when the
// service runs without them.
func NewHealthHandler(serviceName, version string, db Pinger, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{
		serviceName: serviceName,
		version:     version,
		db:          db,
		redis:       rdb,
	}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	pingCtx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
	defer cancel()

	dbStatus := "disabled"
	if h.db != nil {
		if err := h.db.PingContext(pingCtx); err != nil {
			dbStatus = "down"
		} else {
			dbStatus = "up"
		}
	}

	redisStatus := "disabled"
	if h.redis != nil {
		if err := h.redis.Ping(pingCtx).Err(); err != nil {
			redisStatus = "down"
		} else {
			redisStatus = "up"
		}
	}

	status := "healthy"
	if dbStatus == "down" || redisStatus == "down" {
		status = "degraded"
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Service:   h.serviceName,
		Version:   h.version,
		DB:        dbStatus,
		Redis:     redisStatus,
	})
}

// Metrics exposes the registry counters.
func (h *HealthHandler) Metrics(c *gin.Context) {
	m := tplservice.GetMetrics()
	c.JSON(http.StatusOK, gin.H{
		"templates":     m,
		"conflict_rate": m.ConflictRate(),
	})
}

func (h *HealthHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.HealthCheck)
	r.GET("/healthz", h.HealthCheck)
	r.GET("/metrics", h.Metrics)
}
