package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"stockpulse-api/internal/config"
	"stockpulse-api/internal/handlers"
	"stockpulse-api/internal/logger"
	"stockpulse-api/internal/services"
	"stockpulse-api/internal/storage"
)

func main() {
	cfg := config.Load()

	sugar, err := logger.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer sugar.Sync()

	store, err := storage.NewStore(cfg.DatabasePath)
	if err != nil {
		sugar.Fatalw("Failed to open database", "path", cfg.DatabasePath, "error", err)
	}
	defer store.Close()

	// Services
	cacheService := services.NewCacheService(time.Duration(cfg.CacheTTLMinutes) * time.Minute)
	marketData := services.NewMarketDataService(cfg, cacheService, store, sugar)
	analysis := services.NewAnalysisService(cfg, marketData, store, cacheService, sugar)

	// Handlers
	stockHandler := handlers.NewStockHandler(analysis, marketData)
	healthHandler := handlers.NewHealthHandler(store)

	app := fiber.New(fiber.Config{
		StrictRouting: true,
		CaseSensitive: true,
		ServerHeader:  "StockPulse-API",
		AppName:       "StockPulse v1.0",
		ReadTimeout:   time.Second * 10,
		WriteTimeout:  time.Second * 30,
		BodyLimit:     1 * 1024 * 1024,
		ErrorHandler:  handlers.CustomErrorHandler,
	})

	// Middleware stack
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
		MaxAge:       3600,
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Rate limit exceeded. Please try again later.",
			})
		},
	}))

	// Routes
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service": "StockPulse API",
			"version": "1.0.0",
			"status":  "running",
		})
	})

	app.Get("/health", healthHandler.Health)
	app.Get("/health/ready", healthHandler.Ready)

	v1 := app.Group("/v1")
	v1.Get("/stocks/:symbol/quote", stockHandler.GetQuote)
	v1.Get("/stocks/:symbol/history", stockHandler.GetHistory)
	v1.Get("/stocks/:symbol/metrics", stockHandler.GetMetrics)
	v1.Get("/stocks/:symbol/monte-carlo", stockHandler.GetMonteCarlo)
	v1.Get("/stocks/:symbol/indicators", stockHandler.GetIndicators)
	v1.Get("/stocks/:symbol/simulations", stockHandler.GetSimulations)
	v1.Get("/stocks/:symbol/chart.png", stockHandler.GetChart)
	v1.Post("/analysis", stockHandler.PostAnalysis)
	v1.Post("/admin/refresh", stockHandler.RefreshCache)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			sugar.Fatalw("Failed to start server", "error", err)
		}
	}()

	sugar.Infow("StockPulse API started", "port", cfg.Port, "environment", cfg.Environment)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	sugar.Info("Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		sugar.Fatalw("Server forced to shutdown", "error", err)
	}

	sugar.Info("Server shutdown complete")
}
