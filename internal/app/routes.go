package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/catalog/internal/middleware"
)

// APIPrefix is the mount point of every resource module.
const APIPrefix = "/api/v1"

const healthTimeout = time.Second

// Pinger reports backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouteDeps holds all dependencies needed to register routes.
type RouteDeps struct {
	Modules []Module
	Health  Pinger
	// Metrics, when set, is served at MetricsPath.
	Metrics     *middleware.Metrics
	MetricsPath string
}

// RegisterRoutes registers the health check, metrics endpoint, module routes
// under APIPrefix and the JSON 404 fallback.
func RegisterRoutes(r *gin.Engine, deps *RouteDeps) error {
	if r == nil {
		return errors.New("router is nil")
	}
	if deps == nil {
		return errors.New("route dependencies are nil")
	}
	if len(deps.Modules) == 0 {
		return errors.New("at least one module is required")
	}

	r.GET("/health", healthHandler(deps.Health))
	if deps.Metrics != nil {
		path := deps.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, deps.Metrics.Handler())
	}

	api := r.Group(APIPrefix)
	for i, m := range deps.Modules {
		if m == nil {
			return fmt.Errorf("module at index %d is nil", i)
		}
		m.RegisterRoutes(api)
	}

	r.NoRoute(middleware.NoRoute)
	return nil
}

// healthHandler pings the storage backend and reports status.
func healthHandler(p Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		dbStatus := "ok"
		if p == nil {
			dbStatus = "error"
		} else {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				dbStatus = "error"
			}
		}

		status, code := "ok", http.StatusOK
		if dbStatus != "ok" {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":     status,
			"components": gin.H{"database": dbStatus},
		})
	}
}
