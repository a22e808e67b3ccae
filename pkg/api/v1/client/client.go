// Package client provides the API client for interacting with the MGNBot API
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/mab0130/MGNBot/internal/api/v1/routes"
	"github.com/mab0130/MGNBot/internal/db/models"
	"github.com/mab0130/MGNBot/internal/orchestrator"
	"github.com/mab0130/MGNBot/internal/services"
	"github.com/mab0130/MGNBot/internal/types"
)

// DefaultTimeout is the default timeout for API requests
const DefaultTimeout = 30 * time.Second

// Client is the interface for the API client
type Client interface {
	// Health Check
	HealthCheck(ctx context.Context) (map[string]string, error)

	// Batch Endpoints
	SubmitBatch(ctx context.Context, req types.BatchRequest) (orchestrator.BatchSnapshot, error)
	GetBatches(ctx context.Context) ([]orchestrator.BatchSnapshot, error)
	GetBatch(ctx context.Context, id string) (orchestrator.BatchSnapshot, error)
	CancelBatch(ctx context.Context, id string) (orchestrator.BatchSnapshot, error)

	// Inventory Endpoints
	GetServers(ctx context.Context, opts *models.ServerListOptions) ([]models.SourceServer, error)
	GetServer(ctx context.Context, sourceServerID string) (models.SourceServer, error)
	SyncServers(ctx context.Context) (services.SyncResult, error)
}

var _ Client = &APIClient{}

// Options contains configuration options for the API client
type Options struct {
	// BaseURL is the base URL of the API
	BaseURL string

	// Timeout is the request timeout
	Timeout time.Duration
}

// DefaultOptions returns the default client options
func DefaultOptions() *Options {
	return &Options{
		BaseURL: routes.DefaultBaseURL,
		Timeout: DefaultTimeout,
	}
}

// APIClient implements the Client interface
type APIClient struct {
	baseURL string
	timeout time.Duration
}

// NewClient creates a new API client with the given options
func NewClient(opts *Options) (Client, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}

	return &APIClient{
		baseURL: opts.BaseURL,
		timeout: opts.Timeout,
	}, nil
}

// createAgent creates a new Fiber Agent for the given method and endpoint
func (c *APIClient) createAgent(ctx context.Context, method, endpoint string, body interface{}) (*fiber.Agent, error) {
	fullURL := c.baseURL + endpoint

	var agent *fiber.Agent
	switch method {
	case http.MethodGet:
		agent = fiber.Get(fullURL)
	case http.MethodPost:
		agent = fiber.Post(fullURL)
	case http.MethodDelete:
		agent = fiber.Delete(fullURL)
	default:
		return nil, fmt.Errorf("unsupported HTTP method: %s", method)
	}

	// Set timeout from context or client default
	if deadline, ok := ctx.Deadline(); ok {
		agent.Timeout(time.Until(deadline))
	} else {
		agent.Timeout(c.timeout)
	}

	agent.Set("Content-Type", "application/json")
	agent.Set("Accept", "application/json")

	if body != nil {
		agent.JSON(body)
	}

	return agent, nil
}

// doRequest sends the HTTP request and processes the response
func (c *APIClient) doRequest(agent *fiber.Agent, v interface{}) error {
	statusCode, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("error sending request: %w", errs[0])
	}

	if statusCode < 200 || statusCode >= 300 {
		return &fiber.Error{
			Code:    statusCode,
			Message: string(body),
		}
	}

	if v != nil && len(body) > 0 {
		if err := json.Unmarshal(body, v); err != nil {
			return fmt.Errorf("error decoding response: %w", err)
		}
	}

	return nil
}

// executeRequest creates an agent, sends the request, and processes the response
func (c *APIClient) executeRequest(ctx context.Context, method, endpoint string, body, response interface{}) error {
	agent, err := c.createAgent(ctx, method, endpoint, body)
	if err != nil {
		return err
	}

	return c.doRequest(agent, response)
}

// HealthCheck checks the health of the API
func (c *APIClient) HealthCheck(ctx context.Context) (map[string]string, error) {
	var response map[string]string
	err := c.executeRequest(ctx, http.MethodGet, routes.HealthEndpoint, nil, &response)
	return response, err
}

// SubmitBatch starts a bulk launch or terminate operation
func (c *APIClient) SubmitBatch(ctx context.Context, req types.BatchRequest) (orchestrator.BatchSnapshot, error) {
	var snapshot orchestrator.BatchSnapshot
	err := c.executeRequest(ctx, http.MethodPost, routes.BatchesEndpoint, req, &snapshot)
	return snapshot, err
}

// GetBatches lists a snapshot of every known batch
func (c *APIClient) GetBatches(ctx context.Context) ([]orchestrator.BatchSnapshot, error) {
	var snapshots []orchestrator.BatchSnapshot
	err := c.executeRequest(ctx, http.MethodGet, routes.BatchesEndpoint, nil, &snapshots)
	return snapshots, err
}

// GetBatch retrieves the current snapshot of a batch
func (c *APIClient) GetBatch(ctx context.Context, id string) (orchestrator.BatchSnapshot, error) {
	var snapshot orchestrator.BatchSnapshot
	endpoint := fmt.Sprintf("%s/%s", routes.BatchesEndpoint, url.PathEscape(id))
	err := c.executeRequest(ctx, http.MethodGet, endpoint, nil, &snapshot)
	return snapshot, err
}

// CancelBatch stops a batch from starting new items
func (c *APIClient) CancelBatch(ctx context.Context, id string) (orchestrator.BatchSnapshot, error) {
	var snapshot orchestrator.BatchSnapshot
	endpoint := fmt.Sprintf("%s/%s/cancel", routes.BatchesEndpoint, url.PathEscape(id))
	err := c.executeRequest(ctx, http.MethodPost, endpoint, nil, &snapshot)
	return snapshot, err
}

// GetServers lists inventory rows matching the given options
func (c *APIClient) GetServers(ctx context.Context, opts *models.ServerListOptions) ([]models.SourceServer, error) {
	var servers []models.SourceServer
	endpoint := routes.ServersEndpoint + serverListQuery(opts)
	err := c.executeRequest(ctx, http.MethodGet, endpoint, nil, &servers)
	return servers, err
}

// GetServer retrieves one inventory row by MGN source server ID
func (c *APIClient) GetServer(ctx context.Context, sourceServerID string) (models.SourceServer, error) {
	var server models.SourceServer
	endpoint := fmt.Sprintf("%s/%s", routes.ServersEndpoint, url.PathEscape(sourceServerID))
	err := c.executeRequest(ctx, http.MethodGet, endpoint, nil, &server)
	return server, err
}

// SyncServers refreshes the server inventory from the MGN API
func (c *APIClient) SyncServers(ctx context.Context) (services.SyncResult, error) {
	var result services.SyncResult
	err := c.executeRequest(ctx, http.MethodPost, routes.ServersEndpoint+"/sync", nil, &result)
	return result, err
}

// serverListQuery encodes list options as a query string
func serverListQuery(opts *models.ServerListOptions) string {
	if opts == nil {
		return ""
	}

	query := url.Values{}
	if opts.LifecycleState != nil {
		query.Set("lifecycle_state", opts.LifecycleState.String())
	}
	if opts.Search != "" {
		query.Set("search", opts.Search)
	}
	if opts.HasTestInstance != nil {
		query.Set("has_test_instance", strconv.FormatBool(*opts.HasTestInstance))
	}
	if opts.IncludeArchived {
		query.Set("include_archived", "true")
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		query.Set("offset", strconv.Itoa(opts.Offset))
	}

	if encoded := query.Encode(); encoded != "" {
		return "?" + encoded
	}
	return ""
}
