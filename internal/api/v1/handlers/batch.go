// Package handlers contains the HTTP handlers for the v1 API
package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/mab0130/MGNBot/internal/orchestrator"
	"github.com/mab0130/MGNBot/internal/types"
)

// BatchHandler handles HTTP requests for bulk operation batches
type BatchHandler struct {
	orch *orchestrator.Orchestrator
}

// NewBatchHandler creates a new batch handler instance
func NewBatchHandler(orch *orchestrator.Orchestrator) *BatchHandler {
	return &BatchHandler{
		orch: orch,
	}
}

// SubmitBatch handles the request to start a bulk launch or terminate operation
func (h *BatchHandler) SubmitBatch(c *fiber.Ctx) error {
	var req types.BatchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	handle, err := h.orch.Submit(req)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(handle.Snapshot())
}

// ListBatches returns a snapshot of every known batch
func (h *BatchHandler) ListBatches(c *fiber.Ctx) error {
	handles := h.orch.List()
	snapshots := make([]orchestrator.BatchSnapshot, 0, len(handles))
	for _, handle := range handles {
		snapshots = append(snapshots, handle.Snapshot())
	}
	return c.JSON(snapshots)
}

// GetBatch returns the current snapshot of a specific batch
func (h *BatchHandler) GetBatch(c *fiber.Ctx) error {
	batchID := c.Params("id")
	if batchID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "batch id is required",
		})
	}

	handle, ok := h.orch.Get(batchID)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": fmt.Sprintf("batch not found: %s", batchID),
		})
	}

	return c.JSON(handle.Snapshot())
}

// CancelBatch stops a batch from starting new items
func (h *BatchHandler) CancelBatch(c *fiber.Ctx) error {
	batchID := c.Params("id")
	if batchID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "batch id is required",
		})
	}

	if err := h.orch.Cancel(batchID); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	handle, _ := h.orch.Get(batchID)
	return c.JSON(handle.Snapshot())
}
