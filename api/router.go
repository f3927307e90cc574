package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/partfit/api/handler"
	"github.com/use-agent/partfit/api/middleware"
	"github.com/use-agent/partfit/config"
	"github.com/use-agent/partfit/jobs"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//	POST /fitment additionally passes SubmissionLimit.
//
// Health stays outside auth so monitoring probes always work.
func NewRouter(cat handler.Catalog, runner *jobs.Runner, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	v1.GET("/health", handler.Health(runner.Store(), startTime))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.POST("/listings", handler.Listings(cat))
	protected.POST("/specifications", handler.Specifications(cat))

	protected.POST("/fitment", middleware.SubmissionLimit(cfg.RateLimit), handler.PostFitment(runner))
	protected.GET("/fitment/:id", handler.GetFitment(runner.Store()))

	return r
}
