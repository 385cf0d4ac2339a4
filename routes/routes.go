package routes

import (
	"net/http"
	"time"

	"visaflow/handlers"
	"visaflow/middleware"
	"visaflow/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterAppointmentRoutes registers slot discovery and booking endpoints.
func RegisterAppointmentRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/appointments")
	{
		api.GET("/slots", hb.Appointments.FindSlotsHandler)
		api.POST("/book", hb.Appointments.BookHandler)
		api.GET("/results/:requestId", hb.Appointments.GetResultHandler)
	}
}

// RegisterMonitoringRoutes registers monitor control endpoints (operators only).
func RegisterMonitoringRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/monitoring")
	{
		api.Use(middleware.JWTAuthOperatorMiddleware(hb.JWTSecret))
		api.POST("/start", hb.Monitoring.StartHandler)
		api.DELETE("/:id", hb.Monitoring.StopHandler)
		api.GET("/status", hb.Monitoring.StatusHandler)
		api.GET("/:id/alerts", hb.Monitoring.AlertsHandler)
	}
}

// RegisterPartnerRoutes registers adapter status and administration endpoints.
func RegisterPartnerRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/partners")
	{
		api.GET("/status", hb.Partners.StatusHandler)

		protected := api.Group("")
		protected.Use(middleware.JWTAuthOperatorMiddleware(hb.JWTSecret))
		protected.PUT("/:id/enabled", hb.Partners.SetEnabledHandler)
		protected.PUT("/:id/reliability", hb.Partners.SetReliabilityHandler)
	}
}

// RegisterHybridRoutes registers the action dispatch endpoint (operators only).
func RegisterHybridRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/hybrid")
	{
		api.Use(middleware.JWTAuthOperatorMiddleware(hb.JWTSecret))
		api.GET("/actions", hb.Hybrid.ActionsHandler)
		api.POST("/:action", hb.Hybrid.DispatchHandler)
	}
}

// RegisterHealthRoute registers health-check and metrics endpoints.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		deps := utils.GetHealthStatus()
		status := "ok"
		for _, s := range []string{deps.Mongo, deps.RedisCache, deps.RedisAlert} {
			if s == utils.HealthDown {
				status = "degraded"
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": status, "message": "visaflow booking orchestrator", "dependencies": deps})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.RequestLoggerMiddleware())
	r.Use(middleware.RateLimitMiddleware(200, 200))

	RegisterHealthRoute(r)
	RegisterAppointmentRoutes(r, hb)
	RegisterMonitoringRoutes(r, hb)
	RegisterPartnerRoutes(r, hb)
	RegisterHybridRoutes(r, hb)
}
