// internal/router/router.go
package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/javajoker/cart-engine/internal/config"
	"github.com/javajoker/cart-engine/internal/handlers"
	"github.com/javajoker/cart-engine/internal/i18n"
	"github.com/javajoker/cart-engine/internal/middleware"
	"github.com/javajoker/cart-engine/internal/pricing"
	"github.com/javajoker/cart-engine/internal/services"
	"github.com/javajoker/cart-engine/internal/utils"
)

const version = "1.0.0"

func Initialize(db *gorm.DB, cfg *config.Config, limiter *middleware.RateLimiter) *gin.Engine {
	calc := pricing.NewCalculator(cfg.Pricing.FreeShippingThreshold, cfg.Pricing.BaseShippingCost, cfg.Pricing.TaxRate)

	// Initialize services
	catalogService := services.NewCatalogService(db)
	cartService := services.NewAccountCartService(db, calc, cfg.Cart.MaxQuantity)

	// Initialize handlers
	productHandler := handlers.NewProductHandler(catalogService)
	cartHandler := handlers.NewCartHandler(cartService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)
	utils.SetJWTIssuer(cfg.JWT.Issuer)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Accept-Language", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "X-Total-Count", "X-Total-Pages"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.I18nMiddleware(cfg.I18n.DefaultLocale))
	if limiter != nil {
		r.Use(limiter.Middleware())
	}

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": version,
			"locales": i18n.GetSupportedLanguages(),
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Product routes
		products := v1.Group("/products")
		products.Use(middleware.OptionalAuth())
		{
			products.GET("", productHandler.GetProducts)
			products.GET("/:productId", productHandler.GetProduct)
		}

		// Cart routes
		cart := v1.Group("/cart")
		cart.Use(middleware.AuthRequired())
		{
			cart.GET("", cartHandler.GetCart)
			cart.DELETE("", cartHandler.ClearCart)
			cart.POST("/items", cartHandler.AddItem)
			cart.PUT("/items/:productId", cartHandler.UpdateItem)
			cart.DELETE("/items/:productId", cartHandler.RemoveItem)
			cart.POST("/coupon", cartHandler.ApplyCoupon)
			cart.PUT("/shipping-address", cartHandler.UpdateShippingAddress)
			cart.PUT("/shipping-method", cartHandler.UpdateShippingMethod)
			cart.POST("/sync", cartHandler.SyncItems)
		}
	}

	return r
}
