package main

import (
	"github.com/gin-gonic/gin"
	"github.com/memeet/scheduler/internal/config"
	"github.com/memeet/scheduler/internal/middleware"
	"github.com/memeet/scheduler/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, cfg *config.Config, svc *appServices) {
	// Middleware
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	r.GET("/health", svc.healthHandler.CheckHealth)

	api := r.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			limited := auth.Group("", svc.authLimiter.Middleware())
			limited.POST("/register", svc.authHandler.Register)
			limited.POST("/login", svc.authHandler.Login)
			limited.POST("/refresh", svc.authHandler.Refresh)
			auth.GET("/config", svc.authHandler.GetAuthConfig)
		}

		// SSE stream, token may come from the query string
		api.GET("/events/meetings", middleware.AuthRequired(svc.authService), svc.sseHandler.StreamMeetingEvents)

		// Protected routes
		protected := api.Group("")
		protected.Use(middleware.AuthRequired(svc.authService), middleware.AuditLog(svc.auditService))
		{
			// Auth
			protected.GET("/auth/me", svc.authHandler.GetCurrentUser)
			protected.POST("/auth/logout", svc.authHandler.Logout)

			// Users
			protected.GET("/users/profile", svc.userHandler.GetProfile)
			protected.PUT("/users/profile", svc.userHandler.UpdateProfile)
			protected.GET("/users/stats", svc.userHandler.GetStats)
			protected.GET("/users/list", svc.userHandler.List)

			// Availability
			protected.GET("/users/availability", svc.availabilityHandler.GetOwn)
			protected.POST("/users/availability", svc.availabilityHandler.Update)
			protected.GET("/users/:id/availability", svc.availabilityHandler.GetForUser)

			// Meetings
			protected.GET("/meetings", svc.meetingHandler.List)
			protected.POST("/meetings", svc.meetingHandler.Create)
			protected.POST("/meetings/check-availability", svc.meetingHandler.CheckAvailability)
			protected.GET("/meetings/:id", svc.meetingHandler.GetByID)
			protected.PUT("/meetings/:id", svc.meetingHandler.Update)
			protected.DELETE("/meetings/:id", svc.meetingHandler.Delete)
			protected.PUT("/meetings/:id/status", svc.meetingHandler.Respond)
		}
	}
}
