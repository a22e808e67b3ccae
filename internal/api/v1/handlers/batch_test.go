package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mab0130/MGNBot/internal/mgn"
	"github.com/mab0130/MGNBot/internal/orchestrator"
)

func newTestApp(t *testing.T) (*fiber.App, *orchestrator.Orchestrator) {
	t.Helper()

	opts := orchestrator.DefaultOptions()
	opts.PollInterval = time.Millisecond
	opts.Retry.BaseDelay = time.Millisecond
	orch := orchestrator.New(mgn.NewMockLifecycle(), opts)
	t.Cleanup(orch.Close)

	handler := NewBatchHandler(orch)
	app := fiber.New()
	batches := app.Group("/api/v1/batches")
	batches.Get("/", handler.ListBatches)
	batches.Get("/:id", handler.GetBatch)
	batches.Post("/", handler.SubmitBatch)
	batches.Post("/:id/cancel", handler.CancelBatch)

	return app, orch
}

func submitBody() []byte {
	return []byte(`{
		"operation": "launch",
		"server_ids": ["s-1", "s-2"],
		"network_config": {
			"vpc_id": "vpc-1",
			"subnet_id": "subnet-1",
			"security_group_ids": ["sg-1"]
		},
		"instance_config": {
			"instance_type": "t3.medium"
		}
	}`)
}

func TestSubmitBatchEndpoint(t *testing.T) {
	app, orch := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches/", bytes.NewReader(submitBody()))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var snapshot orchestrator.BatchSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snapshot))
	require.NotEmpty(t, snapshot.BatchID)
	assert.Len(t, snapshot.Items, 2)

	handle, ok := orch.Get(snapshot.BatchID)
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	final, err := handle.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, final.Succeeded())
}

func TestSubmitBatchEndpointRejectsInvalidRequest(t *testing.T) {
	app, _ := newTestApp(t)

	body := []byte(`{"operation": "launch", "server_ids": []}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestGetBatchEndpoint(t *testing.T) {
	app, orch := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches/", bytes.NewReader(submitBody()))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var snapshot orchestrator.BatchSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snapshot))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/batches/"+snapshot.BatchID, nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.Len(t, orch.List(), 1)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/batches/nonexistent", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestCancelBatchEndpoint(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches/", bytes.NewReader(submitBody()))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var snapshot orchestrator.BatchSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snapshot))

	req = httptest.NewRequest(http.MethodPost, "/api/v1/batches/"+snapshot.BatchID+"/cancel", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/batches/nonexistent/cancel", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
