package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/partfit/jobs"
	"github.com/use-agent/partfit/models"
)

// JobSubmitter starts fitment jobs.
type JobSubmitter interface {
	Submit(req models.FitmentRequest) (*jobs.Job, error)
}

// JobLookup finds jobs by ID.
type JobLookup interface {
	Get(id string) (*jobs.Job, bool)
}

// PostFitment returns a handler for POST /api/v1/fitment.
// The resolution runs in the background; poll GET /api/v1/fitment/:id.
func PostFitment(runner JobSubmitter) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.FitmentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		job, err := runner.Submit(req)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusAccepted, models.FitmentJobResponse{
			ID:     job.ID(),
			Status: job.Status(),
		})
	}
}

// GetFitment returns a handler for GET /api/v1/fitment/:id.
func GetFitment(store JobLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := store.Get(c.Param("id"))
		if !ok {
			respondError(c, models.NewCatalogError(models.ErrCodeJobNotFound, "fitment job not found", nil))
			return
		}
		c.JSON(http.StatusOK, job.Snapshot())
	}
}
