package migrations

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db
}

func newMigrator(t *testing.T) (*gorm.DB, *Migrator) {
	t.Helper()
	db := setupTestDB(t)
	m := NewMigrator(db, nil)
	m.RegisterAll(AllMigrations())
	return db, m
}

func TestAllMigrations_VersionsAreUniqueAndOrdered(t *testing.T) {
	migrations := AllMigrations()
	require.Len(t, migrations, 2)
	for i := 1; i < len(migrations); i++ {
		assert.Less(t, migrations[i-1].Version, migrations[i].Version)
	}
}

func TestMigrator_Up(t *testing.T) {
	ctx := context.Background()

	t.Run("creates_tables", func(t *testing.T) {
		db, m := newMigrator(t)
		require.NoError(t, m.Up(ctx))
		assert.True(t, db.Migrator().HasTable("probe_runs"))
		assert.True(t, db.Migrator().HasTable("probe_features"))
		assert.True(t, db.Migrator().HasTable("exclusions"))
	})

	t.Run("idempotent", func(t *testing.T) {
		_, m := newMigrator(t)
		require.NoError(t, m.Up(ctx))
		require.NoError(t, m.Up(ctx))
	})
}

func TestMigrator_Status(t *testing.T) {
	ctx := context.Background()
	_, m := newMigrator(t)

	statuses, err := m.Status(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	for _, s := range statuses {
		assert.False(t, s.Applied)
		assert.Nil(t, s.AppliedAt)
	}

	require.NoError(t, m.Up(ctx))
	statuses, err = m.Status(ctx)
	require.NoError(t, err)
	for _, s := range statuses {
		assert.True(t, s.Applied)
		assert.NotNil(t, s.AppliedAt)
	}
}

func TestMigrator_Down(t *testing.T) {
	ctx := context.Background()
	db, m := newMigrator(t)
	require.NoError(t, m.Up(ctx))

	require.NoError(t, m.Down(ctx))
	assert.False(t, db.Migrator().HasTable("exclusions"))
	assert.True(t, db.Migrator().HasTable("probe_runs"))

	require.NoError(t, m.Down(ctx))
	assert.False(t, db.Migrator().HasTable("probe_runs"))

	// Nothing left to roll back.
	require.NoError(t, m.Down(ctx))

	require.NoError(t, m.Up(ctx))
	assert.True(t, db.Migrator().HasTable("exclusions"))
}
