package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	lifecycledomain "github.com/botio91514/gym-backend/internal/domain/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&lifecycledomain.SchedulerRun{}))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestRunStoreRoundTrip(t *testing.T) {
	repo := NewPostgres(openTestDB(t))
	ctx := context.Background()

	_, ok, err := repo.LastSuccess(ctx, "job")
	require.NoError(t, err)
	assert.False(t, ok)

	first := time.Date(2025, 6, 10, 0, 0, 1, 0, time.UTC)
	require.NoError(t, repo.RecordSuccess(ctx, "job", first))
	last, ok, err := repo.LastSuccess(ctx, "job")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, first.Equal(last))

	later := first.AddDate(0, 0, 1)
	require.NoError(t, repo.RecordSuccess(ctx, "job", later))
	last, _, err = repo.LastSuccess(ctx, "job")
	require.NoError(t, err)
	assert.True(t, later.Equal(last))

	require.NoError(t, repo.RecordSuccess(ctx, "job", first))
	last, _, err = repo.LastSuccess(ctx, "job")
	require.NoError(t, err)
	assert.True(t, later.Equal(last), "older run must not overwrite")

	_, ok, err = repo.LastSuccess(ctx, "other")
	require.NoError(t, err)
	assert.False(t, ok)
}
