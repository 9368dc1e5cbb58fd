// internal/router/router.go
package router

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/datamartlabs/datamart-backend/internal/bank"
	"github.com/datamartlabs/datamart-backend/internal/config"
	"github.com/datamartlabs/datamart-backend/internal/handlers"
	"github.com/datamartlabs/datamart-backend/internal/middleware"
	"github.com/datamartlabs/datamart-backend/internal/models"
	"github.com/datamartlabs/datamart-backend/internal/services"
	"github.com/datamartlabs/datamart-backend/internal/utils"
)

func Initialize(db *gorm.DB, cfg *config.Config) (*gin.Engine, error) {
	// The administrator principal is fixed at startup from the seeded
	// admin account and never changes while the process runs.
	var admin models.User
	if err := db.Where("user_type = ?", models.UserTypeAdmin).First(&admin).Error; err != nil {
		return nil, fmt.Errorf("administrator account not found: %w", err)
	}

	// Initialize services
	storageService, err := services.NewStorageService(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	accountBank := bank.New()
	marketService := services.NewMarketService(db, cfg, accountBank, admin.Principal(), storageService)
	if err := marketService.LoadState(); err != nil {
		return nil, fmt.Errorf("failed to load ledger state: %w", err)
	}

	authService := services.NewAuthService(db, cfg)
	paymentService := services.NewPaymentService(db, cfg, accountBank)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	marketHandler := handlers.NewMarketHandler(marketService)
	walletHandler := handlers.NewWalletHandler(paymentService)
	adminHandler := handlers.NewAdminHandler(marketService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS())
	r.Use(middleware.GeneralRateLimit())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Authentication routes
		auth := v1.Group("/auth")
		auth.Use(middleware.AuthRateLimit())
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.GET("/me", middleware.AuthRequired(), authHandler.GetProfile)
		}

		// Listing routes
		listings := v1.Group("/listings")
		{
			listings.GET("", middleware.OptionalAuth(), marketHandler.GetListings)
			listings.GET("/:id", marketHandler.GetListing)

			// Authenticated routes
			protected := listings.Group("")
			protected.Use(middleware.AuthRequired())
			{
				protected.POST("", marketHandler.CreateListing)
				protected.PUT("/:id", marketHandler.UpdateListing)
				protected.DELETE("/:id", marketHandler.DeactivateListing)
				protected.POST("/:id/purchase", middleware.PurchaseRateLimit(), marketHandler.PurchaseListing)
				protected.GET("/:id/access", marketHandler.GetAccess)
				protected.GET("/:id/access/check", marketHandler.CheckAccess)
			}
		}

		// Aggregate statistics (public reads)
		stats := v1.Group("/stats")
		{
			stats.GET("/sellers/:principal", marketHandler.GetSellerStats)
			stats.GET("/buyers/:principal", marketHandler.GetBuyerStats)
		}

		// Market configuration (public read)
		market := v1.Group("/market")
		{
			market.GET("/fee", marketHandler.GetFeeRate)
		}

		// Wallet routes
		wallet := v1.Group("/wallet")
		wallet.Use(middleware.AuthRequired())
		{
			wallet.GET("/balance", walletHandler.GetBalance)
			wallet.POST("/deposit", walletHandler.CreateDeposit)
			wallet.POST("/deposit/confirm", walletHandler.ConfirmDeposit)
			wallet.GET("/deposits", walletHandler.GetDepositHistory)
		}

		// Admin routes
		adminGroup := v1.Group("/admin")
		adminGroup.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			adminGroup.PUT("/fee", adminHandler.SetFee)
			adminGroup.POST("/revoke-access", adminHandler.RevokeAccess)
		}
	}

	return r, nil
}
