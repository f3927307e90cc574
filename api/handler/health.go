package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/partfit/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// JobCounter reports how many fitment jobs are still running.
type JobCounter interface {
	Active() int
}

// Health returns a handler for GET /api/v1/health.
//
// The browser session is exclusive, so status degrades while jobs queue
// behind the one holding it.
func Health(jobs JobCounter, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		active := jobs.Active()

		status := "healthy"
		if active > 1 {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:        status,
			Version:       Version,
			ActiveJobs:    active,
			UptimeSeconds: int64(time.Since(startTime).Seconds()),
		})
	}
}
