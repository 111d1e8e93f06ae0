package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/iot-persistence/internal/config"
	"github.com/fairyhunter13/iot-persistence/internal/handler"
	"github.com/fairyhunter13/iot-persistence/internal/persistence"
	"github.com/fairyhunter13/iot-persistence/internal/validator"
	"github.com/fairyhunter13/iot-persistence/internal/worker"
)

func main() {
	// Load configuration first
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize zerolog based on configuration
	initLogger(cfg)

	// Create context for startup
	ctx := context.Background()

	// Load the optional store properties. A nil result means the file
	// is missing or empty and the process runs with persistence off.
	props, err := config.LoadStoreProperties(cfg.Store.PropertiesFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read store properties")
	}

	// Background execution service for fire-and-forget bulk writes
	pool := worker.NewPool(cfg.Worker.Size, cfg.Worker.QueueDepth)

	// The manager never fails construction: an unreachable store only
	// means it comes up disabled.
	manager := persistence.New(ctx, props, pool)

	// Initialize Fiber with production-ready configuration
	app := fiber.New(fiber.Config{
		AppName:      "IoT Persistence",
		ReadTimeout:  30 * time.Second,  // Max time to read request
		WriteTimeout: 30 * time.Second,  // Max time to write response
		IdleTimeout:  120 * time.Second, // Max time for keep-alive connections
		BodyLimit:    1 * 1024 * 1024,   // 1MB body limit (explicit, prevents large payloads)
	})

	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New()) // Adds X-Request-ID header to all requests
	app.Use(logger.New())

	// Initialize validator
	validate := validator.New()

	// Wire handlers over the persistence manager
	redeemHandler := handler.NewRedeemHandler(manager, validate)
	healthHandler := handler.NewHealthHandler(manager)

	app.Get("/health", healthHandler.Check)

	// Redeem token routes
	app.Post("/api/redeems", redeemHandler.CreateRedeems)
	app.Post("/api/redeems/redeem", redeemHandler.RedeemToken)
	app.Get("/api/redeems/:token", redeemHandler.GetRedeem)

	// Start server with graceful shutdown
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("starting server")
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	log.Info().Int("timeout_seconds", cfg.Server.ShutdownTimeout).Msg("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second,
	)
	defer shutdownCancel()

	// Shutdown server (waits for in-flight requests)
	log.Info().Msg("waiting for in-flight requests to complete...")
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	// Drain pending background writes before the store goes away
	log.Info().Msg("draining background writes...")
	pool.Close()

	// Close the store AFTER the server and the workers are done
	manager.Close()
	log.Info().Msg("server stopped")
}

// initLogger configures zerolog based on the application configuration.
func initLogger(cfg *config.Config) {
	// Set log level
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Configure output format
	if cfg.Log.Pretty {
		// Human-readable output for development
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	} else {
		// JSON output for production
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}
