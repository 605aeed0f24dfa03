package api

import (
	"github.com/gin-gonic/gin"

	"github.com/mediavault/transcript-pipeline/internal/api/handlers"
	"github.com/mediavault/transcript-pipeline/internal/api/middleware"
	"github.com/mediavault/transcript-pipeline/internal/platform/logger"
)

type RouterConfig struct {
	Log           *logger.Logger
	HealthHandler *handlers.HealthHandler
	SearchHandler *handlers.SearchHandler
	TriageHandler *handlers.TriageHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.AttachRequestContext())
	r.Use(middleware.RequestLogger(cfg.Log))
	r.Use(middleware.CORS())

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		if cfg.SearchHandler != nil {
			api.GET("/search", cfg.SearchHandler.Search)
		}
		if cfg.TriageHandler != nil {
			api.GET("/triage", cfg.TriageHandler.List)
			api.POST("/triage/:asset_id/retry", cfg.TriageHandler.Retry)
			api.POST("/triage/:asset_id/skip", cfg.TriageHandler.Skip)
		}
	}

	return r
}
