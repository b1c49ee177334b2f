// Package http wires the Gin router.
package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/socialimageapp/authentication-api-service/internal/config"
	"github.com/socialimageapp/authentication-api-service/internal/http/handler"
	httpmiddleware "github.com/socialimageapp/authentication-api-service/internal/http/middleware"
	"github.com/socialimageapp/authentication-api-service/internal/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(cfg config.Config, authHandler *handler.AuthHandler, authMiddleware *httpmiddleware.Auth, rateLimiter *middleware.RateLimiter, logger *zap.Logger) *gin.Engine {
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(logger))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	api := r.Group(cfg.APIBasePath)
	{
		api.GET("/health", authHandler.Health)

		api.POST("/register", authHandler.Register)
		api.GET("/verify", authHandler.Verify)
		api.POST("/verify", authHandler.Verify)
		api.POST("/login", authHandler.Login)
		api.POST("/forgot-password", authHandler.ForgotPassword)
		api.POST("/reset-password", authHandler.ResetPassword)

		api.GET("/login/google", authHandler.GoogleStart)
		api.GET("/login/google/callback", authHandler.GoogleCallback)
		api.POST("/login/google", authHandler.GoogleLogin)

		api.GET("/me", authMiddleware.RequireSession, authHandler.Me)
		api.GET("/logout", authHandler.Logout)
		api.GET("/organizations", authMiddleware.RequireSession, authHandler.Organizations)
		api.GET("/organizations/:id/keys", authMiddleware.RequireSession, authHandler.OrganizationKeys)
	}

	return r
}
