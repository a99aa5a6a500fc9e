package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shift-health/pipeline/pkg/database"
)

// getHealth handles GET /health: per-dependency readiness for the
// database, Redis (dedup store + bus), and this process's worker pools
// (SPEC_FULL.md supplemented feature 2). Unauthenticated by design
// (spec.md §6: "bearer-token auth on all endpoints except health").
func (s *Server) getHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]healthCheck)
	status := "healthy"

	if _, err := database.Health(ctx, s.db.DB.DB); err != nil {
		status = "unhealthy"
		checks["database"] = healthCheck{Status: "unhealthy", Message: err.Error()}
	} else {
		checks["database"] = healthCheck{Status: "healthy"}
	}

	if err := s.redisPing(ctx); err != nil {
		status = "unhealthy"
		checks["redis"] = healthCheck{Status: "unhealthy", Message: err.Error()}
	} else {
		checks["redis"] = healthCheck{Status: "healthy"}
	}

	httpStatus := http.StatusOK
	if status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, healthResponse{
		Status: status,
		Checks: checks,
		Queues: s.queueHealth(),
	})
}
