package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmylchreest/audiarr/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// cacheRepo implements MetadataCacheRepository using GORM.
type cacheRepo struct {
	db *gorm.DB
}

// NewMetadataCacheRepository creates a new MetadataCacheRepository.
func NewMetadataCacheRepository(db *gorm.DB) *cacheRepo {
	return &cacheRepo{db: db}
}

// Get retrieves a non-expired cache entry by key.
func (r *cacheRepo) Get(ctx context.Context, key string) (*models.CacheEntry, error) {
	var entry models.CacheEntry
	if err := r.db.WithContext(ctx).First(&entry, "key = ?", key).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("getting cache entry: %w", err)
	}
	if entry.Expired(models.Now()) {
		return nil, models.ErrNotFound
	}
	return &entry, nil
}

// Set stores a value under key with the given TTL, replacing any existing
// entry.
func (r *cacheRepo) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	now := models.Now()
	entry := models.CacheEntry{
		Key:       key,
		Value:     value,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "created_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("setting cache entry: %w", err)
	}
	return nil
}

// DeleteExpired removes entries whose TTL has passed.
func (r *cacheRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&models.CacheEntry{}, "expires_at < ?", time.Now())
	if result.Error != nil {
		return 0, fmt.Errorf("deleting expired cache entries: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Ensure cacheRepo implements MetadataCacheRepository at compile time.
var _ MetadataCacheRepository = (*cacheRepo)(nil)
