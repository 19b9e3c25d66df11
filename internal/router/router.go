// Copyright (c) 2026 HMCTS
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package router provides HTTP routing configuration for the ACR Transfer server.
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/hmcts/acr-transfer/internal/handler"
	"github.com/hmcts/acr-transfer/internal/middleware"
	"github.com/hmcts/acr-transfer/internal/types"
)

// Router manages HTTP request routing and handler registration.
type Router struct {
	transferHandler  *handler.TransferHandler
	inspectHandler   *handler.InspectHandler
	authHandler      *handler.AuthHandler
	sessionValidator middleware.SessionValidator
}

// New creates a new Router instance with the provided handlers.
func New(transferHandler *handler.TransferHandler, inspectHandler *handler.InspectHandler, authHandler *handler.AuthHandler, sessionValidator middleware.SessionValidator) *Router {
	return &Router{
		transferHandler:  transferHandler,
		inspectHandler:   inspectHandler,
		authHandler:      authHandler,
		sessionValidator: sessionValidator,
	}
}

// Setup initializes the Gin engine with middleware and routes.
// It configures the following middleware in order:
//  1. gin.Logger() - HTTP request logging
//  2. gin.Recovery() - Panic recovery
//  3. CORS - Cross-Origin Resource Sharing
//  4. Auth - OIDC session enforcement (if enabled)
//
// Returns a configured *gin.Engine ready to serve HTTP requests.
func (r *Router) Setup(cfg *types.Config) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Logger())
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	engine.Use(middleware.Auth(cfg.OIDC.Enabled, r.sessionValidator))

	// Disable trusted proxy feature for security
	engine.SetTrustedProxies(nil)

	r.registerRoutes(engine)

	return engine
}

// registerRoutes registers all API routes under /api/v1 prefix.
// Available endpoints:
//   - GET    /health               - Health check
//   - GET    /auth/login           - Redirect to OIDC provider for login
//   - GET    /auth/callback        - OIDC callback handler
//   - POST   /auth/logout          - Logout current user
//   - GET    /auth/userinfo        - Get current user information
//   - GET    /transfers            - List transfer tasks with pagination and filtering
//   - POST   /transfers            - Create a new transfer task
//   - GET    /transfers/:id        - Get transfer task status and details
//   - GET    /transfers/:id/logs   - Stream transfer task logs via SSE
//   - GET    /env/defaults         - Get default registry configuration
//   - POST   /inspect              - Inspect a repository's tag inventory
func (r *Router) registerRoutes(engine *gin.Engine) {
	api := engine.Group("/api/v1")
	{
		// Public endpoints (no auth required)
		api.GET("/health", r.transferHandler.Health)

		// Auth endpoints
		auth := api.Group("/auth")
		{
			auth.GET("/login", r.authHandler.Login)
			auth.GET("/callback", r.authHandler.Callback)
			auth.POST("/logout", r.authHandler.Logout)
			auth.GET("/userinfo", r.authHandler.UserInfo)
		}

		// Protected endpoints (require auth if OIDC enabled)
		api.GET("/transfers", r.transferHandler.ListTransfers)
		api.POST("/transfers", r.transferHandler.CreateTransfer)
		api.GET("/transfers/:id", r.transferHandler.GetTransferStatus)
		api.GET("/transfers/:id/logs", r.transferHandler.StreamLogs)
		api.GET("/env/defaults", r.transferHandler.GetEnvDefaults)
		api.POST("/inspect", r.inspectHandler.InspectRepository)
	}
}
