package migrations

import (
	"gorm.io/gorm"

	"github.com/jmylchreest/hwcodec/internal/models"
)

// AllMigrations returns all migrations in order:
//   - 001: probe_runs and probe_features
//   - 002: exclusions
func AllMigrations() []Migration {
	return []Migration{
		migration001ProbeRuns(),
		migration002Exclusions(),
	}
}

func dropTables(tx *gorm.DB, tables ...string) error {
	for _, table := range tables {
		if tx.Migrator().HasTable(table) {
			if err := tx.Migrator().DropTable(table); err != nil {
				return err
			}
		}
	}
	return nil
}

func migration001ProbeRuns() Migration {
	return Migration{
		Version:     "001",
		Description: "Create probe run tables",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&models.ProbeRun{}, &models.ProbeFeature{})
		},
		Down: func(tx *gorm.DB) error {
			return dropTables(tx, "probe_features", "probe_runs")
		},
	}
}

func migration002Exclusions() Migration {
	return Migration{
		Version:     "002",
		Description: "Create exclusions table",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&models.Exclusion{})
		},
		Down: func(tx *gorm.DB) error {
			return dropTables(tx, "exclusions")
		},
	}
}
