package api

import (
	"github.com/policyops/isebridge/pkg/api/handler"
	"github.com/policyops/isebridge/pkg/api/middleware"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Liveness (no auth required)
	s.engine.GET("/", handler.Root)
	s.engine.GET("/health", handler.Health)
	s.engine.GET("/healthz", handler.Health)

	webhookHandler := handler.NewWebhookHandler(s.svc)

	// Webhook endpoints
	wh := s.engine.Group("/webhook")
	wh.Use(middleware.Auth(s.config.APIKey))
	wh.POST("/create", webhookHandler.Create)
	wh.DELETE("/delete", webhookHandler.Delete)

	// Inspection endpoints
	v1 := s.engine.Group("/api/v1")
	v1.Use(middleware.Auth(s.config.APIKey))
	v1.GET("/rules", webhookHandler.Rules)
	v1.GET("/audit", webhookHandler.Audit)

	// Swagger UI (only in DevMode)
	if s.config.DevMode {
		s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
		s.log.Info("swagger ui enabled", "path", "/swagger/index.html")
	}
}
