package api

import (
	"net/http"

	"billwatch-backend/internal/auth/delivery"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, h *Handler) {
	// Every route except health goes through auth when it is enabled
	protected := func(c *gin.Context) { c.Next() }
	if h.config == nil || h.config.AuthEnabled {
		protected = delivery.AuthMiddleware(h.authUsecase)
	}

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok", "clients": h.sseManager.ClientCount()})
		})

		// Foreground channel: SSE stream plus completion fragments
		bridgeGroup := api.Group("/bridge")
		bridgeGroup.Use(protected)
		{
			bridgeGroup.GET("/connect", h.bridgeHandler.Connect)
			bridgeGroup.POST("/completions/:id", h.bridgeHandler.PostFragment)
		}

		// Typed client messages and stored statements
		api.POST("/messages", protected, h.statementHandler.HandleMessage)
		api.GET("/summaries", protected, h.statementHandler.ListSummaries)

		// Device routes for push notifications
		devices := api.Group("/devices")
		devices.Use(protected)
		{
			devices.POST("", h.deviceHandler.RegisterDevice)
			devices.DELETE("/:token", h.deviceHandler.UnregisterDevice)
		}

		// Manual triggers
		triggers := api.Group("/triggers")
		triggers.Use(protected)
		{
			triggers.GET("", h.ListTriggers)
			triggers.POST("/:name", h.FireTrigger)
		}

		// Settings routes - runtime engine configuration
		settings := api.Group("/settings")
		settings.Use(protected)
		{
			settings.GET("/engine", h.settingsHandler.GetEngineSettings)
			settings.PUT("/engine", h.settingsHandler.UpdateEngineSettings)
			settings.POST("/engine/test", h.settingsHandler.TestEngineConnection)
		}
	}
}
