package database

import (
	"context"
	"fmt"
	"slices"

	"stackit/internal/middleware"

	"gorm.io/gorm"
)

// SchemaStatus describes the migration state of a database.
type SchemaStatus struct {
	Driver            string
	AppliedVersions   []int
	PendingMigrations []Migration
}

// ApplySchema creates or alters the model tables, then runs the SQL
// migrations for what AutoMigrate cannot declare, such as partial indexes.
func ApplySchema(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		return err
	}
	middleware.Logger.InfoContext(ctx, "schema applied", "driver", db.Dialector.Name())
	return nil
}

// GetSchemaStatus reports which registered migrations have been applied.
func GetSchemaStatus(ctx context.Context, db *gorm.DB) (*SchemaStatus, error) {
	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return nil, err
	}
	status := &SchemaStatus{Driver: db.Dialector.Name(), AppliedVersions: applied}
	for _, m := range GetMigrations() {
		if !slices.Contains(applied, m.Version) {
			status.PendingMigrations = append(status.PendingMigrations, m)
		}
	}
	return status, nil
}
