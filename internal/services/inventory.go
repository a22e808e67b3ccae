// Package services contains the business logic layered between the API
// handlers and the MGN client and database repositories
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/mab0130/MGNBot/internal/db/models"
	"github.com/mab0130/MGNBot/internal/db/repos"
	"github.com/mab0130/MGNBot/internal/logger"
	"github.com/mab0130/MGNBot/internal/mgn"
)

// Inventory maintains the local source server inventory: a cached mirror of
// the MGN source server listing, refreshed on demand
type Inventory struct {
	source mgn.Inventory
	repo   *repos.SourceServerRepository
}

// NewInventoryService creates a new inventory service
func NewInventoryService(source mgn.Inventory, repo *repos.SourceServerRepository) *Inventory {
	return &Inventory{
		source: source,
		repo:   repo,
	}
}

// SyncResult summarizes one inventory sync
type SyncResult struct {
	Synced  int   `json:"synced"`
	Removed int64 `json:"removed"`
}

// Sync refreshes the local inventory from the MGN API. Servers no longer
// reported by MGN are removed.
func (s *Inventory) Sync(ctx context.Context) (*SyncResult, error) {
	startedAt := time.Now()

	servers, err := s.source.DescribeSourceServers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to describe source servers: %w", err)
	}

	for _, info := range servers {
		row := &models.SourceServer{
			SourceServerID:      info.SourceServerID,
			Hostname:            info.Hostname,
			LifecycleState:      models.LifecycleStateFromAPI(info.LifecycleState),
			ReplicationState:    info.ReplicationState,
			RecommendedInstance: info.RecommendedInstance,
			TestInstanceID:      info.TestInstanceID,
			TestInstanceState:   info.TestInstanceState,
			IsArchived:          info.IsArchived,
			Tags:                info.Tags,
			LastSyncedAt:        time.Now(),
		}
		if err := s.repo.Upsert(ctx, row); err != nil {
			return nil, fmt.Errorf("failed to upsert source server %s: %w", info.SourceServerID, err)
		}
	}

	removed, err := s.repo.DeleteStale(ctx, startedAt)
	if err != nil {
		return nil, err
	}

	logger.InfoWithFields("Inventory sync complete", map[string]interface{}{
		"synced":  len(servers),
		"removed": removed,
	})

	return &SyncResult{Synced: len(servers), Removed: removed}, nil
}

// List retrieves inventory rows matching the given options
func (s *Inventory) List(ctx context.Context, opts *models.ServerListOptions) ([]models.SourceServer, error) {
	return s.repo.List(ctx, opts)
}

// Get retrieves one inventory row by its MGN source server ID
func (s *Inventory) Get(ctx context.Context, sourceServerID string) (*models.SourceServer, error) {
	return s.repo.GetBySourceServerID(ctx, sourceServerID)
}

// Count returns the number of inventory rows matching the given options
func (s *Inventory) Count(ctx context.Context, opts *models.ServerListOptions) (int64, error) {
	return s.repo.Count(ctx, opts)
}
