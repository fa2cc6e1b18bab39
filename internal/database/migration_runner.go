package database

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/addonhub/addonhub/internal/models"
)

// MigrationFunc applies a single schema revision. It runs inside a
// transaction and must leave the schema untouched on error.
type MigrationFunc func(ctx context.Context, db *gorm.DB, logger zerolog.Logger) error

// Migration is a versioned schema revision.
type Migration struct {
	Version string
	Name    string
	Run     MigrationFunc
}

// MigrationRunner applies registered schema revisions in version
// order, recording each one in the schema_migrations table so reruns
// are no-ops.
type MigrationRunner struct {
	db         *gorm.DB
	logger     zerolog.Logger
	migrations []Migration
}

// NewMigrationRunner creates a runner with no registered migrations.
func NewMigrationRunner(db *gorm.DB, logger zerolog.Logger) *MigrationRunner {
	return &MigrationRunner{
		db:     db,
		logger: logger,
	}
}

// Register adds a migration to the runner.
func (r *MigrationRunner) Register(migration Migration) {
	r.migrations = append(r.migrations, migration)
}

// Run applies every registered migration that has no
// schema_migrations record yet, in strict version order. Each
// migration and its record commit in one transaction.
func (r *MigrationRunner) Run(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&models.Migration{}); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := r.appliedVersions()
	if err != nil {
		return err
	}

	sort.Slice(r.migrations, func(i, j int) bool {
		return r.migrations[i].Version < r.migrations[j].Version
	})

	for _, migration := range r.migrations {
		if applied[migration.Version] {
			r.logger.Debug().
				Str("version", migration.Version).
				Str("name", migration.Name).
				Msg("Migration already applied, skipping")
			continue
		}
		if err := r.apply(ctx, migration); err != nil {
			return err
		}
	}

	return nil
}

func (r *MigrationRunner) apply(ctx context.Context, migration Migration) error {
	logger := r.logger.With().
		Str("version", migration.Version).
		Str("name", migration.Name).
		Logger()
	logger.Info().Msg("Running migration")

	start := time.Now()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := migration.Run(ctx, tx, logger); err != nil {
			return err
		}
		record := models.Migration{
			Version:   migration.Version,
			Name:      migration.Name,
			AppliedAt: time.Now().UTC(),
		}
		return tx.Create(&record).Error
	})
	if err != nil {
		return fmt.Errorf("migration %s failed: %w", migration.Version, err)
	}

	logger.Info().
		Dur("elapsed", time.Since(start)).
		Msg("Migration applied")
	return nil
}

// GetPendingMigrations returns the registered migrations that have not
// been recorded as applied.
func (r *MigrationRunner) GetPendingMigrations() ([]Migration, error) {
	applied, err := r.appliedVersions()
	if err != nil {
		return nil, err
	}

	var pending []Migration
	for _, migration := range r.migrations {
		if !applied[migration.Version] {
			pending = append(pending, migration)
		}
	}

	return pending, nil
}

func (r *MigrationRunner) appliedVersions() (map[string]bool, error) {
	var versions []string
	if err := r.db.Model(&models.Migration{}).Pluck("version", &versions).Error; err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	applied := make(map[string]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}
