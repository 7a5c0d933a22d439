package router

import (
	"net/http"

	"github.com/cuongbtq/texter-jobs/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", healthHandler(deps))

	jobHandler := handler.NewJobHandler(deps)
	timezoneHandler := handler.NewTimezoneHandler(deps)
	campaignHandler := handler.NewCampaignHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			// POST /api/v1/jobs - Create a new job
			jobs.POST("", jobHandler.CreateJob)

			// GET /api/v1/jobs - List jobs with filtering and pagination
			jobs.GET("", jobHandler.ListJobs)

			// GET /api/v1/jobs/:job_id - Get job details
			jobs.GET("/:job_id", jobHandler.GetJob)

			// POST /api/v1/jobs/:job_id/cancel - Cancel a job
			jobs.POST("/:job_id/cancel", jobHandler.CancelJob)

			// DELETE /api/v1/jobs/:job_id - Delete a job
			jobs.DELETE("/:job_id", jobHandler.DeleteJob)
		}

		// GET /api/v1/timezones/:zip - Resolve a zip code to "<offset>_<dst>"
		v1.GET("/timezones/:zip", timezoneHandler.GetTimezone)

		// POST /api/v1/zip-codes - Import a zip code record
		v1.POST("/zip-codes", timezoneHandler.CreateZipCode)

		// GET /api/v1/campaigns/:campaign_id/contacts/stats - Assignment progress
		v1.GET("/campaigns/:campaign_id/contacts/stats", campaignHandler.GetContactStats)
	}

	return r
}

// healthHandler reports 503 naming the first backing service that fails its check
func healthHandler(deps *handler.Dependencies) gin.HandlerFunc {
	checks := []struct {
		name    string
		checker handler.HealthChecker
	}{
		{"database", deps.Database},
		{"broker", deps.Broker},
	}

	return func(c *gin.Context) {
		for _, check := range checks {
			if check.checker == nil {
				continue
			}
			if err := check.checker.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":    "unhealthy",
					"service":   "texter-jobs-api",
					"component": check.name,
					"error":     err.Error(),
				})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "texter-jobs-api",
		})
	}
}
