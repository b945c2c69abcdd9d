package api

import (
	"github.com/gin-gonic/gin"

	"minutesapi/config"
	"minutesapi/job"
)

func SetupRouter(s *job.Scheduler, cfg *config.Config) *gin.Engine {
	r := gin.Default()
	h := NewHandler(s, cfg)

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	v1.Use(AuthMiddleware(cfg))
	{
		v1.POST("/jobs", h.handleSubmitJob)
		v1.GET("/jobs", h.handleListJobs)
		v1.GET("/jobs/:jobId", h.handleGetJobStatus)
		v1.PATCH("/jobs/:jobId/cancel", h.handleCancelJob)

		// File download endpoint (does not need auth if URLs are unguessable)
		// but we put it here for consistency.
		v1.GET("/files/:filename", h.handleGetFile)
	}
	return r
}
