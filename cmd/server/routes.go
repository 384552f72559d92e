package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"vendra-system/internal/middleware"
	commissionshandler "vendra-system/internal/services/commissions/handler"
	inventoryhandler "vendra-system/internal/services/inventory/handler"
	ordershandler "vendra-system/internal/services/orders/handler"
	staffhandler "vendra-system/internal/services/staff/handler"
)

func setupRouter(db *gorm.DB, redisClient *redis.Client) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.CORS())
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(middleware.RateLimit())

	staffHandler := staffhandler.NewStaffHandler(db, redisClient)
	inventoryHandler := inventoryhandler.NewInventoryHandler(db, redisClient)
	ordersHandler := ordershandler.NewOrderHandler(db, redisClient)
	commissionsHandler := commissionshandler.NewCommissionHandler(db, redisClient)

	// --- Public API Group ---
	public := r.Group("/api/v1")
	{
		auth := public.Group("/auth")
		{
			auth.POST("/login", staffHandler.Login)
			auth.POST("/register", staffHandler.Register)
		}
	}

	// --- Protected API Group ---
	protected := r.Group("/api/v1")
	protected.Use(middleware.JWTAuth())
	{
		staff := protected.Group("/staff")
		{
			staff.POST("", staffHandler.CreateStaff)
			staff.GET("", staffHandler.ListStaff)
			staff.GET("/:id", staffHandler.GetStaff)
			staff.PUT("/:id", staffHandler.UpdateStaff)
		}

		roles := protected.Group("/roles")
		{
			roles.POST("", staffHandler.CreateRole)
			roles.GET("", staffHandler.ListRoles)
		}

		program := protected.Group("/program")
		{
			program.GET("", staffHandler.GetProgramSettings)
			program.PUT("", staffHandler.UpdateProgramSettings)
		}

		inventory := protected.Group("/inventory")
		{
			inventory.POST("/locations", inventoryHandler.CreateLocation)
			inventory.GET("/locations", inventoryHandler.ListLocations)
			inventory.POST("/variants", inventoryHandler.CreateVariant)
			inventory.GET("/variants", inventoryHandler.ListVariants)
			inventory.GET("/variants/:id/stocks", inventoryHandler.GetVariantStocks)
			inventory.POST("/stocks/add", inventoryHandler.AddStock)
			inventory.POST("/stocks/reserve", inventoryHandler.ReserveStock)
			inventory.POST("/stocks/release", inventoryHandler.ReleaseStock)
			inventory.POST("/stocks/damage", inventoryHandler.DamageStock)
			inventory.POST("/stocks/transfer", inventoryHandler.TransferStock)
			inventory.GET("/adjustments", inventoryHandler.ListAdjustments)
			inventory.GET("/low-stock", inventoryHandler.ListLowStock)
		}

		orders := protected.Group("/orders")
		{
			orders.POST("", ordersHandler.CreateOrder)
			orders.GET("", ordersHandler.ListOrders)
			orders.GET("/:number", ordersHandler.GetOrder)
		}

		commissions := protected.Group("/commissions")
		{
			commissions.GET("/staff/:id/unpaid", commissionsHandler.GetUnpaidCommission)
			commissions.POST("/staff/:id/payouts", commissionsHandler.RecordPayout)
			commissions.GET("/staff/:id/payouts", commissionsHandler.ListPayouts)
			commissions.GET("/staff/:id/summary", commissionsHandler.GetCommissionSummary)
		}
	}

	r.GET("/health", healthCheckHandler)

	return r
}

func healthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"message":   "Server is running",
		"timestamp": time.Now(),
	})
}
