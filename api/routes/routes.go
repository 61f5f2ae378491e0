package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/kulapay/kulapay-backend/internal/config"
	"github.com/kulapay/kulapay-backend/internal/handlers"
	"github.com/kulapay/kulapay-backend/internal/metrics"
	"github.com/kulapay/kulapay-backend/internal/middleware"
	"github.com/kulapay/kulapay-backend/pkg/jwt"
)

// AdminRole is the role required for the admin API.
const AdminRole = "admin"

// HandlerDependencies holds all handler instances needed for routing
type HandlerDependencies struct {
	USSDHandler         *handlers.USSDHandler
	ChatHandler         *handlers.ChatHandler
	VendorHandler       *handlers.VendorHandler
	LedgerHandler       *handlers.LedgerHandler
	NotificationHandler *handlers.NotificationHandler
	HealthHandler       *handlers.HealthHandler
	Tokens              *jwt.TokenService
	Metrics             *metrics.Collector
}

// SetupRouter sets up the router
func SetupRouter(cfg *config.Config, deps HandlerDependencies) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()

	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware())
	router.Use(middleware.RecoveryMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.Server.AllowedHosts))
	if deps.Metrics != nil {
		router.Use(deps.Metrics.Middleware())
		router.GET("/metrics", deps.Metrics.Handler())
	}

	router.GET("/", deps.HealthHandler.Root)
	router.GET("/health", deps.HealthHandler.Health)

	// Gateway callbacks
	router.POST("/ussd", deps.USSDHandler.Callback)
	router.POST("/whatsapp", deps.ChatHandler.WhatsApp)
	router.POST("/messaging/callback", deps.ChatHandler.Callback)

	// Admin API
	admin := router.Group("/api/v1")
	admin.Use(middleware.JWTAuthMiddleware(deps.Tokens), middleware.RequireRole(AdminRole))
	{
		vendors := admin.Group("/vendors")
		{
			vendors.GET("", deps.VendorHandler.ListVendors)
			vendors.POST("", deps.VendorHandler.CreateVendor)
			vendors.GET("/:phone", deps.VendorHandler.GetVendor)
			vendors.GET("/:phone/stats", deps.VendorHandler.GetVendorStats)
		}

		admin.GET("/transactions", deps.LedgerHandler.ListTransactions)
		admin.GET("/customers/:phone", deps.LedgerHandler.GetCustomer)
		admin.POST("/notifications", deps.NotificationHandler.SendNotification)
	}

	return router
}
