// Package routes defines the API routes and URL structure
package routes

import (
	"fmt"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/mab0130/MGNBot/internal/api/v1/handlers"
)

// API base configuration
const (
	// DefaultPort is the default port for the API
	DefaultPort = "8080"
	// APIv1Prefix is the prefix for all API endpoints
	APIv1Prefix = "/api/v1"
)

// DefaultBaseURL is the default base URL for the API
var DefaultBaseURL = fmt.Sprintf("http://localhost:%s", DefaultPort)

// Endpoint paths used by both the server and the API client
const (
	// HealthEndpoint is the health check path
	HealthEndpoint = "/health"
	// BatchesEndpoint is the batch collection path
	BatchesEndpoint = APIv1Prefix + "/batches"
	// ServersEndpoint is the inventory collection path
	ServersEndpoint = APIv1Prefix + "/servers"
)

// RegisterRoutes configures all the v1 routes
//
// NOTE: route ordering matters because routes match in registration order:
// fixed slugs like /sync must be registered before /:id params.
func RegisterRoutes(
	app *fiber.App,
	batchHandler *handlers.BatchHandler,
	serverHandler *handlers.ServerHandler,
) {
	app.Get(HealthEndpoint, func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	v1 := app.Group(APIv1Prefix)

	// Batch routes
	batches := v1.Group("/batches")
	batches.Get("/", batchHandler.ListBatches)
	batches.Get("/:id", batchHandler.GetBatch)
	batches.Post("/", batchHandler.SubmitBatch)
	batches.Post("/:id/cancel", batchHandler.CancelBatch)

	// Inventory routes
	servers := v1.Group("/servers")
	servers.Get("/", serverHandler.ListServers)
	servers.Post("/sync", serverHandler.SyncServers)
	servers.Get("/:id", serverHandler.GetServer)
}
