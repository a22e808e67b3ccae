// Package mock provides a mock implementation of the API client for tests
package mock

import (
	"context"

	"github.com/mab0130/MGNBot/internal/db/models"
	"github.com/mab0130/MGNBot/internal/orchestrator"
	"github.com/mab0130/MGNBot/internal/services"
	"github.com/mab0130/MGNBot/internal/types"
	"github.com/mab0130/MGNBot/pkg/api/v1/client"
)

// MockClient implements the client.Client interface with per-method override
// functions. Unset methods return zero values.
type MockClient struct {
	HealthCheckFn func(ctx context.Context) (map[string]string, error)
	SubmitBatchFn func(ctx context.Context, req types.BatchRequest) (orchestrator.BatchSnapshot, error)
	GetBatchesFn  func(ctx context.Context) ([]orchestrator.BatchSnapshot, error)
	GetBatchFn    func(ctx context.Context, id string) (orchestrator.BatchSnapshot, error)
	CancelBatchFn func(ctx context.Context, id string) (orchestrator.BatchSnapshot, error)
	GetServersFn  func(ctx context.Context, opts *models.ServerListOptions) ([]models.SourceServer, error)
	GetServerFn   func(ctx context.Context, sourceServerID string) (models.SourceServer, error)
	SyncServersFn func(ctx context.Context) (services.SyncResult, error)
}

var _ client.Client = &MockClient{}

// HealthCheck implements client.Client
func (m *MockClient) HealthCheck(ctx context.Context) (map[string]string, error) {
	if m.HealthCheckFn != nil {
		return m.HealthCheckFn(ctx)
	}
	return map[string]string{"status": "healthy"}, nil
}

// SubmitBatch implements client.Client
func (m *MockClient) SubmitBatch(ctx context.Context, req types.BatchRequest) (orchestrator.BatchSnapshot, error) {
	if m.SubmitBatchFn != nil {
		return m.SubmitBatchFn(ctx, req)
	}
	return orchestrator.BatchSnapshot{}, nil
}

// GetBatches implements client.Client
func (m *MockClient) GetBatches(ctx context.Context) ([]orchestrator.BatchSnapshot, error) {
	if m.GetBatchesFn != nil {
		return m.GetBatchesFn(ctx)
	}
	return nil, nil
}

// GetBatch implements client.Client
func (m *MockClient) GetBatch(ctx context.Context, id string) (orchestrator.BatchSnapshot, error) {
	if m.GetBatchFn != nil {
		return m.GetBatchFn(ctx, id)
	}
	return orchestrator.BatchSnapshot{}, nil
}

// CancelBatch implements client.Client
func (m *MockClient) CancelBatch(ctx context.Context, id string) (orchestrator.BatchSnapshot, error) {
	if m.CancelBatchFn != nil {
		return m.CancelBatchFn(ctx, id)
	}
	return orchestrator.BatchSnapshot{}, nil
}

// GetServers implements client.Client
func (m *MockClient) GetServers(ctx context.Context, opts *models.ServerListOptions) ([]models.SourceServer, error) {
	if m.GetServersFn != nil {
		return m.GetServersFn(ctx, opts)
	}
	return nil, nil
}

// GetServer implements client.Client
func (m *MockClient) GetServer(ctx context.Context, sourceServerID string) (models.SourceServer, error) {
	if m.GetServerFn != nil {
		return m.GetServerFn(ctx, sourceServerID)
	}
	return models.SourceServer{}, nil
}

// SyncServers implements client.Client
func (m *MockClient) SyncServers(ctx context.Context) (services.SyncResult, error) {
	if m.SyncServersFn != nil {
		return m.SyncServersFn(ctx)
	}
	return services.SyncResult{}, nil
}
