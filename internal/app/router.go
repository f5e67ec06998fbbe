package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"schooltrack/internal/handler"
	"schooltrack/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	TripHandler         *handler.TripHandler
	BoardingHandler     *handler.BoardingHandler
	BehaviorHandler     *handler.BehaviorHandler
	NotificationHandler *handler.NotificationHandler
	DriverHandler       *handler.DriverHandler
	StreamHandler       *handler.StreamHandler
	RedisClient         *redis.Client
	NewRelicApp         *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.Use(middleware.IdempotencyMiddleware(deps.RedisClient))

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API v1 routes. All of v1 requires a resolved identity.
	v1 := router.Group("/v1")
	v1.Use(middleware.RequireIdentity())
	{
		// Trip routes.
		trips := v1.Group("/trips")
		{
			trips.POST("", deps.TripHandler.StartTrip)
			trips.GET("", deps.TripHandler.GetActiveTrips)
			trips.GET("/:id", deps.TripHandler.GetTrip)
			trips.POST("/:id/end", deps.TripHandler.EndTrip)
			trips.POST("/:id/cancel", deps.TripHandler.CancelTrip)
			trips.POST("/:id/board", deps.BoardingHandler.Board)
			trips.POST("/:id/exit", deps.BoardingHandler.Exit)
			trips.GET("/:id/boarding", deps.BoardingHandler.GetBoardingStates)
			trips.POST("/:id/behavior", deps.BehaviorHandler.Report)
			trips.POST("/:id/emergency", deps.BehaviorHandler.Emergency)
		}

		// Driver device routes.
		drivers := v1.Group("/drivers")
		{
			drivers.POST("/:id/position", deps.DriverHandler.ReportPosition)
		}

		// Student routes.
		students := v1.Group("/students")
		{
			students.GET("/:id/behavior", deps.BehaviorHandler.ReportsForStudent)
		}

		// Notification routes.
		notifications := v1.Group("/notifications")
		{
			notifications.GET("", deps.NotificationHandler.List)
			notifications.POST("/:id/read", deps.NotificationHandler.MarkRead)
		}

		// Live change stream.
		v1.GET("/stream", deps.StreamHandler.Subscribe)
	}

	return router
}
