// Package routes wires the HTTP handlers onto the gin engine.
package routes

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"gl-reconciliation-backend/internal/config"
	"gl-reconciliation-backend/internal/handler"
)

// Setup registers every route on a new gin engine.
func Setup(cfg *config.Config, h *handler.HTTPHandler) *gin.Engine {
	if cfg.Service.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	r.Use(cors.New(corsConfig))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": cfg.Service.Name,
			"version": cfg.Service.Version,
		})
	})

	api := r.Group("/api/v1")
	{
		batches := api.Group("/batches")
		{
			batches.POST("/ingest", h.IngestBatch)
			batches.POST("/upload", h.UploadBatch)
			batches.GET("/:batchId/lines", h.ListBatchLines)
			batches.GET("/:batchId/summary", h.BatchSummary)
			batches.POST("/:batchId/reject", h.RejectBatch)
			batches.GET("/:batchId/rejections", h.ListBatchRejections)
		}

		lines := api.Group("/lines")
		{
			lines.GET("/pending", h.ListPending)
			lines.GET("/:id", h.GetLine)
			lines.POST("/:id/advance", h.AdvanceLine)
			lines.POST("/:id/disapprove", h.DisapproveLine)
			lines.POST("/:id/reject", h.RejectLine)
			lines.GET("/:id/comments", h.ListComments)
			lines.POST("/:id/comments", h.AddComment)
			lines.GET("/:id/disapprovals", h.ListDisapprovals)
		}

		responsibilities := api.Group("/responsibilities")
		{
			responsibilities.POST("", h.UpsertResponsibilities)
			responsibilities.POST("/groups", h.UpsertGroupResponsibilities)
		}
	}

	return r
}
