// Package app assembles the storefront's HTTP application from its
// configuration and external collaborators.
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"dryfruits/internal/config"
	"dryfruits/internal/handlers"
	"dryfruits/internal/middleware"
	"dryfruits/internal/repositories"
	"dryfruits/internal/services"
	"dryfruits/pkg/blobstore"
	"dryfruits/pkg/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"gorm.io/gorm"
)

// Deps are the collaborators that talk to the outside world. Publisher and
// Metrics may be nil.
type Deps struct {
	DB        *gorm.DB
	Gateway   services.PaymentGateway
	Carrier   services.Carrier
	Blobs     blobstore.Store
	Publisher services.EventPublisher
	Metrics   *metrics.Metrics
}

// App is the assembled storefront.
type App struct {
	Fiber *fiber.App
	Auth  *services.AuthService
}

// New wires repositories, services and handlers and registers every route.
func New(cfg *config.Config, deps Deps) (*App, error) {
	if deps.DB == nil || deps.Gateway == nil || deps.Carrier == nil || deps.Blobs == nil {
		return nil, fmt.Errorf("app: database, payment gateway, carrier and blob store are required")
	}

	// --- Repositories ---
	productRepo := repositories.NewGORMProductRepository(deps.DB)
	categoryRepo := repositories.NewGORMCategoryRepository(deps.DB)
	userRepo := repositories.NewGORMUserRepository(deps.DB)
	cartRepo := repositories.NewGORMCartRepository(deps.DB)
	intentRepo := repositories.NewGORMIntentRepository(deps.DB)
	orderRepo := repositories.NewGORMOrderRepository(deps.DB)

	// --- Services ---
	authService := services.NewAuthService(userRepo, cfg.JWTSecret)
	productService := services.NewProductService(productRepo)
	categoryService := services.NewCategoryService(categoryRepo)
	uploadService := services.NewUploadService(deps.Blobs)
	cartService := services.NewCartService(cartRepo, productRepo)
	paymentService := services.NewPaymentService(deps.Gateway, cfg.RazorpayKeySecret, cfg.Currency, cfg.MinorUnitFactor)
	orderService := services.NewOrderService(orderRepo, intentRepo, paymentService, deps.Publisher, deps.Metrics)
	checkoutService := services.NewCheckoutService(cartService, paymentService, orderService, intentRepo, cfg.RazorpayKeyID)
	fulfillmentService := services.NewFulfillmentService(orderRepo, deps.Carrier, deps.Publisher, deps.Metrics, services.FulfillmentConfig{
		Timeout:            cfg.CarrierTimeout,
		DefaultWeightGrams: cfg.DefaultParcelWeight,
	})

	if cfg.AdminPhone != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := authService.EnsureAdmin(ctx, cfg.AdminPhone, cfg.AdminPassword); err != nil {
			return nil, fmt.Errorf("failed to bootstrap admin: %w", err)
		}
	}

	// --- Fiber ---
	app := fiber.New(fiber.Config{
		AppName:   "dryfruits",
		BodyLimit: 32 << 20,
	})
	app.Use(logger.New())
	if deps.Metrics != nil {
		app.Use(deps.Metrics.Middleware())
		app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics.Handler()))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		sqlDB, err := deps.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.UserContext())
		}
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status":   "degraded",
				"time":     time.Now().Format(time.RFC3339),
				"database": err.Error(),
			})
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "connected",
		})
	})

	if cfg.BlobBackend == "local" {
		app.Static(cfg.BlobPublicURL, cfg.BlobLocalDir)
	}

	// --- API Routes ---
	apiV1 := app.Group("/api/v1", middleware.ResolvePrincipal(authService))
	handlers.NewAuthHandler(authService).RegisterRoutes(apiV1)
	handlers.NewProductHandler(productService).RegisterRoutes(apiV1)
	handlers.NewCategoryHandler(categoryService).RegisterRoutes(apiV1)
	handlers.NewUploadHandler(uploadService).RegisterRoutes(apiV1)
	handlers.NewCartHandler(cartService).RegisterRoutes(apiV1)
	handlers.NewCheckoutHandler(checkoutService).RegisterRoutes(apiV1)
	handlers.NewOrderHandler(orderService, fulfillmentService).RegisterRoutes(apiV1)

	log.Printf("Routes registered (currency %s, blob backend %s)", cfg.Currency, cfg.BlobBackend)
	return &App{Fiber: app, Auth: authService}, nil
}
