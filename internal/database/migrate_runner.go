package database

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"stackit/internal/middleware"

	"gorm.io/gorm"
)

// appliedMigration is the bookkeeping row written once a migration's up
// script has run. Checksum is the sha256 of the up script at apply time.
type appliedMigration struct {
	Version   int    `gorm:"primaryKey;autoIncrement:false"`
	Name      string `gorm:"size:255;not null"`
	Checksum  string `gorm:"size:64;not null"`
	AppliedAt time.Time
}

func (appliedMigration) TableName() string { return "schema_migrations" }

func checksum(script string) string {
	sum := sha256.Sum256([]byte(script))
	return hex.EncodeToString(sum[:])
}

type migrator struct {
	db       *gorm.DB
	known    []Migration
	clockNow func() time.Time
}

func newMigrator(db *gorm.DB, known []Migration) *migrator {
	return &migrator{db: db, known: known, clockNow: time.Now}
}

// applied returns the recorded rows ordered by version. A database that
// never ran a migration has no table yet and reports nothing.
func (m *migrator) applied(ctx context.Context) ([]appliedMigration, error) {
	if !m.db.Migrator().HasTable(&appliedMigration{}) {
		return nil, nil
	}
	var rows []appliedMigration
	if err := m.db.WithContext(ctx).Order("version").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	return rows, nil
}

func (m *migrator) up(ctx context.Context) error {
	if err := m.db.WithContext(ctx).AutoMigrate(&appliedMigration{}); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	rows, err := m.applied(ctx)
	if err != nil {
		return err
	}
	if err := verifyHistory(rows, m.known); err != nil {
		return err
	}

	done := make(map[int]bool, len(rows))
	for _, row := range rows {
		done[row.Version] = true
	}
	for _, mig := range m.known {
		if done[mig.Version] {
			continue
		}
		if err := m.apply(ctx, mig); err != nil {
			return err
		}
	}
	return nil
}

func (m *migrator) apply(ctx context.Context, mig Migration) error {
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := execScript(tx, mig.UpScript); err != nil {
			return err
		}
		return tx.Create(&appliedMigration{
			Version:   mig.Version,
			Name:      mig.Name,
			Checksum:  checksum(mig.UpScript),
			AppliedAt: m.clockNow().UTC(),
		}).Error
	})
	if err != nil {
		return fmt.Errorf("migration %s: %w", mig.String(), err)
	}
	middleware.Logger.InfoContext(ctx, "migration applied", "migration", mig.String())
	return nil
}

// down reverts version, which has to be the newest applied migration.
func (m *migrator) down(ctx context.Context, version int) error {
	idx := slices.IndexFunc(m.known, func(mig Migration) bool { return mig.Version == version })
	if idx < 0 {
		return fmt.Errorf("migration version %d not found", version)
	}
	mig := m.known[idx]

	rows, err := m.applied(ctx)
	if err != nil {
		return err
	}
	if len(rows) == 0 || !slices.ContainsFunc(rows, func(r appliedMigration) bool { return r.Version == version }) {
		return fmt.Errorf("migration %d has not been applied", version)
	}
	if latest := rows[len(rows)-1]; latest.Version != version {
		return fmt.Errorf("migration %d is not the latest applied; roll back %06d first", version, latest.Version)
	}

	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := execScript(tx, mig.DownScript); err != nil {
			return err
		}
		return tx.Delete(&appliedMigration{}, "version = ?", version).Error
	})
	if err != nil {
		return fmt.Errorf("roll back %s: %w", mig.String(), err)
	}
	middleware.Logger.InfoContext(ctx, "migration rolled back", "migration", mig.String())
	return nil
}

func execScript(tx *gorm.DB, script string) error {
	for _, stmt := range statements(script) {
		if err := tx.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// verifyHistory rejects a database whose recorded migrations are unknown to
// this binary or whose up scripts changed after they were applied.
func verifyHistory(rows []appliedMigration, known []Migration) error {
	byVersion := make(map[int]Migration, len(known))
	for _, mig := range known {
		byVersion[mig.Version] = mig
	}

	var unknown, edited []string
	for _, row := range rows {
		mig, ok := byVersion[row.Version]
		switch {
		case !ok:
			unknown = append(unknown, fmt.Sprintf("%06d", row.Version))
		case row.Checksum != checksum(mig.UpScript):
			edited = append(edited, mig.String())
		}
	}

	var errs []error
	if len(unknown) > 0 {
		errs = append(errs, fmt.Errorf("schema_migrations has versions unknown to this build: %s", strings.Join(unknown, ", ")))
	}
	if len(edited) > 0 {
		errs = append(errs, fmt.Errorf("migrations changed after being applied: %s", strings.Join(edited, ", ")))
	}
	return errors.Join(errs...)
}

// RunMigrations applies every registered migration that is not yet recorded.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	return newMigrator(db, migrations).up(ctx)
}

// RollbackMigration runs the down script of the newest applied migration.
// version must name it; older migrations are reverted one at a time.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	return newMigrator(db, migrations).down(ctx, version)
}

// appliedVersions lists recorded versions in ascending order.
func appliedVersions(ctx context.Context, db *gorm.DB) ([]int, error) {
	rows, err := newMigrator(db, migrations).applied(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(rows))
	for i, row := range rows {
		out[i] = row.Version
	}
	return out, nil
}
