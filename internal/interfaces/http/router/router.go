package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/interfaces/http/handler"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
)

// Config holds the handlers wired into the HTTP surface
type Config struct {
	Sync   *handler.SyncHandler
	Health *handler.HealthHandler
	Logger *zap.Logger
	Mode   string
}

// New builds the gin engine with middleware and routes
func New(cfg Config) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}

	engine := gin.New()

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(cfg.Logger))
	engine.Use(logger.GinMiddleware(cfg.Logger))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORS())

	if cfg.Health != nil {
		engine.GET("/healthz", cfg.Health.Check)
	}

	v1 := engine.Group("/api/v1")
	{
		if cfg.Sync != nil {
			v1.POST("/sync", cfg.Sync.Trigger)
			v1.GET("/sync/status", cfg.Sync.Status)
		}
	}

	return engine
}
