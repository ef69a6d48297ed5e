package repository

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jmylchreest/audiarr/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupCacheTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.CacheEntry{})
	require.NoError(t, err)

	return db
}

func TestCacheRepo_SetAndGet(t *testing.T) {
	db := setupCacheTestDB(t)
	repo := NewMetadataCacheRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "movie_603", `{"original_language":"en"}`, time.Hour))

	entry, err := repo.Get(ctx, "movie_603")
	require.NoError(t, err)
	assert.Equal(t, `{"original_language":"en"}`, entry.Value)

	t.Run("missing key", func(t *testing.T) {
		_, err := repo.Get(ctx, "movie_999")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, "movie_603", `{"original_language":"ja"}`, time.Hour))
		entry, err := repo.Get(ctx, "movie_603")
		require.NoError(t, err)
		assert.Equal(t, `{"original_language":"ja"}`, entry.Value)
	})
}

func TestCacheRepo_ExpiredEntryIsMissing(t *testing.T) {
	db := setupCacheTestDB(t)
	repo := NewMetadataCacheRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "tv_1399", `{}`, -time.Minute))

	_, err := repo.Get(ctx, "tv_1399")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCacheRepo_DeleteExpired(t *testing.T) {
	db := setupCacheTestDB(t)
	repo := NewMetadataCacheRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "stale", `{}`, -time.Minute))
	require.NoError(t, repo.Set(ctx, "fresh", `{}`, time.Hour))

	deleted, err := repo.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = repo.Get(ctx, "fresh")
	assert.NoError(t, err)
}
