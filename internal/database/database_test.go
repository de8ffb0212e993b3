package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jmylchreest/hwcodec/internal/config"
)

func memoryConfig() config.DatabaseConfig {
	return config.DatabaseConfig{
		Driver:          "sqlite",
		DSN:             ":memory:",
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
		LogLevel:        "silent",
	}
}

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(memoryConfig(), nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNew(t *testing.T) {
	t.Run("sqlite", func(t *testing.T) {
		db := setupTestDB(t)
		assert.NoError(t, db.Ping(context.Background()))
		assert.Equal(t, "sqlite", db.Driver())
	})

	t.Run("invalid_driver", func(t *testing.T) {
		db, err := New(config.DatabaseConfig{Driver: "invalid", DSN: ":memory:"}, nil, nil)
		assert.Nil(t, db)
		assert.ErrorContains(t, err, "unsupported database driver")
	})

	t.Run("ping_after_close_fails", func(t *testing.T) {
		db, err := New(memoryConfig(), nil, nil)
		require.NoError(t, err)
		require.NoError(t, db.Close())
		assert.Error(t, db.Ping(context.Background()))
	})
}

func TestDB_Migrate(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Migrate(ctx))
	require.NoError(t, db.Migrate(ctx))
	assert.True(t, db.Migrator().HasTable("probe_runs"))
	assert.True(t, db.Migrator().HasTable("exclusions"))
}

func TestDB_Transaction(t *testing.T) {
	db, err := New(memoryConfig(), nil, &Options{PrepareStmt: false})
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	type txItem struct {
		ID    uint   `gorm:"primarykey"`
		Value string `gorm:"not null"`
	}
	require.NoError(t, db.DB.AutoMigrate(&txItem{}))

	require.NoError(t, db.Transaction(ctx, func(tx *gorm.DB) error {
		return tx.Create(&txItem{Value: "kept"}).Error
	}))

	forced := errors.New("forced rollback")
	err = db.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&txItem{Value: "dropped"}).Error; err != nil {
			return err
		}
		return forced
	})
	assert.ErrorIs(t, err, forced)

	var count int64
	require.NoError(t, db.DB.Model(&txItem{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestDB_ForeignKeysEnabled(t *testing.T) {
	db := setupTestDB(t)

	var foreignKeys int
	require.NoError(t, db.DB.Raw("PRAGMA foreign_keys").Scan(&foreignKeys).Error)
	assert.Equal(t, 1, foreignKeys)
}

func TestGormLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected logger.LogLevel
	}{
		{"silent", logger.Silent},
		{"error", logger.Error},
		{"warn", logger.Warn},
		{"info", logger.Info},
		{"unknown", logger.Warn},
		{"", logger.Warn},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, gormLogLevel(tt.level))
		})
	}
}
