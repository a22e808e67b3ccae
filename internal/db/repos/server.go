// Package repos provides the database repositories for the inventory
package repos

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mab0130/MGNBot/internal/db/models"
)

// SourceServerRepository provides access to source server inventory operations
type SourceServerRepository struct {
	db *gorm.DB
}

// NewSourceServerRepository creates a new source server repository instance
func NewSourceServerRepository(db *gorm.DB) *SourceServerRepository {
	return &SourceServerRepository{db: db}
}

// Upsert inserts or refreshes one inventory row keyed by the MGN source
// server ID
func (r *SourceServerRepository) Upsert(ctx context.Context, server *models.SourceServer) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: models.ServerSourceServerIDField}},
		DoUpdates: clause.AssignmentColumns([]string{
			models.ServerHostnameField,
			"lifecycle_state",
			"replication_state",
			"recommended_instance",
			"test_instance_id",
			"test_instance_state",
			"is_archived",
			"tags",
			models.ServerLastSyncedAtField,
		}),
	}).Create(server).Error
}

// GetBySourceServerID retrieves one inventory row by its MGN source server ID
func (r *SourceServerRepository) GetBySourceServerID(ctx context.Context, sourceServerID string) (*models.SourceServer, error) {
	var server models.SourceServer
	err := r.db.WithContext(ctx).
		Where(&models.SourceServer{SourceServerID: sourceServerID}).
		First(&server).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get source server: %w", err)
	}
	return &server, nil
}

// List retrieves inventory rows matching the given options, ordered by hostname
func (r *SourceServerRepository) List(ctx context.Context, opts *models.ServerListOptions) ([]models.SourceServer, error) {
	var servers []models.SourceServer
	query := r.applyListOptions(r.db.WithContext(ctx).Model(&models.SourceServer{}), opts)
	err := query.Order(models.ServerHostnameField).Find(&servers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list source servers: %w", err)
	}
	return servers, nil
}

// Count returns the number of inventory rows matching the given options
func (r *SourceServerRepository) Count(ctx context.Context, opts *models.ServerListOptions) (int64, error) {
	var count int64
	query := r.applyListOptions(r.db.WithContext(ctx).Model(&models.SourceServer{}), opts)
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count source servers: %w", err)
	}
	return count, nil
}

// DeleteStale removes rows not refreshed since the given time. Called after a
// full sync so servers removed from MGN drop out of the inventory.
func (r *SourceServerRepository) DeleteStale(ctx context.Context, syncedBefore time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where(models.ServerLastSyncedAtField+" < ?", syncedBefore).
		Delete(&models.SourceServer{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete stale source servers: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// applyListOptions applies the list options to the given query
func (r *SourceServerRepository) applyListOptions(query *gorm.DB, opts *models.ServerListOptions) *gorm.DB {
	if opts == nil {
		return query.Where("is_archived = ?", false)
	}

	if !opts.IncludeArchived {
		query = query.Where("is_archived = ?", false)
	}
	if opts.LifecycleState != nil {
		query = query.Where("lifecycle_state = ?", *opts.LifecycleState)
	}
	if opts.HasTestInstance != nil {
		if *opts.HasTestInstance {
			query = query.Where("test_instance_id <> ''")
		} else {
			query = query.Where("test_instance_id = ''")
		}
	}
	if opts.Search != "" {
		pattern := "%" + opts.Search + "%"
		query = query.Where("hostname ILIKE ? OR source_server_id ILIKE ?", pattern, pattern)
	}
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		query = query.Offset(opts.Offset)
	}
	return query
}
