package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"

	"github.com/mab0130/MGNBot/config"
	"github.com/mab0130/MGNBot/internal/api/middleware"
	"github.com/mab0130/MGNBot/internal/api/v1/handlers"
	"github.com/mab0130/MGNBot/internal/api/v1/routes"
	"github.com/mab0130/MGNBot/internal/db"
	"github.com/mab0130/MGNBot/internal/db/repos"
	"github.com/mab0130/MGNBot/internal/logger"
	"github.com/mab0130/MGNBot/internal/mgn"
	"github.com/mab0130/MGNBot/internal/orchestrator"
	"github.com/mab0130/MGNBot/internal/services"
)

func main() {
	// A missing .env file is fine; environment variables may be set directly.
	_ = godotenv.Load()

	logger.Initialize()

	database, err := db.New(db.Options{
		Host:     config.GetEnv("DB_HOST", db.DefaultHost),
		User:     config.GetEnv("DB_USER", db.DefaultUser),
		Password: config.GetEnv("DB_PASSWORD", db.DefaultPassword),
		DBName:   config.GetEnv("DB_NAME", db.DefaultDBName),
		Port:     config.GetEnvInt("DB_PORT", db.DefaultPort),
	})
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	mgnClient, err := mgn.NewClient(ctx, mgn.Options{
		Region:  config.GetEnv("AWS_REGION", ""),
		Profile: config.GetEnv("AWS_PROFILE", ""),
	})
	if err != nil {
		logger.Fatalf("Failed to create MGN client: %v", err)
	}

	orchOpts := orchestrator.DefaultOptions()
	orchOpts.PollInterval = config.GetEnvDuration("POLL_INTERVAL", orchestrator.DefaultPollInterval)
	orchOpts.ItemTimeout = config.GetEnvDuration("ITEM_TIMEOUT", orchestrator.DefaultItemTimeout)
	orch := orchestrator.New(mgnClient, orchOpts)

	serverRepo := repos.NewSourceServerRepository(database)
	inventory := services.NewInventoryService(mgnClient, serverRepo)

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})
	app.Use(middleware.Logger())

	routes.RegisterRoutes(
		app,
		handlers.NewBatchHandler(orch),
		handlers.NewServerHandler(inventory),
	)

	// Shut down cleanly on SIGINT/SIGTERM so running batches wind down.
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		logger.Info("Shutting down")
		orch.Close()
		_ = app.ShutdownWithTimeout(30 * time.Second)
	}()

	port := config.GetEnv("PORT", routes.DefaultPort)
	if err := app.Listen(":" + port); err != nil {
		logger.Fatalf("Server stopped: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
