package handlers

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/mab0130/MGNBot/internal/db/models"
	"github.com/mab0130/MGNBot/internal/services"
)

// ServerHandler handles HTTP requests for the source server inventory
type ServerHandler struct {
	inventory *services.Inventory
}

// NewServerHandler creates a new server handler instance
func NewServerHandler(inventory *services.Inventory) *ServerHandler {
	return &ServerHandler{
		inventory: inventory,
	}
}

// ListServers returns inventory rows matching the query filters
func (h *ServerHandler) ListServers(c *fiber.Ctx) error {
	opts, err := parseServerListOptions(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	servers, err := h.inventory.List(c.Context(), opts)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("failed to list servers: %v", err),
		})
	}

	return c.JSON(servers)
}

// GetServer returns one inventory row by MGN source server ID
func (h *ServerHandler) GetServer(c *fiber.Ctx) error {
	sourceServerID := c.Params("id")
	if sourceServerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "source server id is required",
		})
	}

	server, err := h.inventory.Get(c.Context(), sourceServerID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": fmt.Sprintf("server not found: %s", sourceServerID),
		})
	}

	return c.JSON(server)
}

// SyncServers refreshes the inventory from the MGN API
func (h *ServerHandler) SyncServers(c *fiber.Ctx) error {
	result, err := h.inventory.Sync(c.Context())
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": fmt.Sprintf("inventory sync failed: %v", err),
		})
	}

	return c.JSON(result)
}

// parseServerListOptions builds list options from the request query
func parseServerListOptions(c *fiber.Ctx) (*models.ServerListOptions, error) {
	opts := &models.ServerListOptions{
		Search:          c.Query("search"),
		IncludeArchived: c.QueryBool("include_archived"),
		Limit:           c.QueryInt("limit"),
		Offset:          c.QueryInt("offset"),
	}

	if state := c.Query("lifecycle_state"); state != "" {
		parsed, err := models.ParseLifecycleState(state)
		if err != nil {
			return nil, err
		}
		opts.LifecycleState = &parsed
	}

	if raw := c.Query("has_test_instance"); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid has_test_instance value: %s", raw)
		}
		opts.HasTestInstance = &value
	}

	return opts, nil
}
