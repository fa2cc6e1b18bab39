package tasks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/addonhub/addonhub/internal/config"
	"github.com/addonhub/addonhub/internal/errs"
	"github.com/addonhub/addonhub/internal/metrics"
	"github.com/addonhub/addonhub/internal/models"
	"github.com/addonhub/addonhub/internal/packaging"
	"github.com/addonhub/addonhub/internal/signing"
)

// StaticThemeCreator turns a single legacy theme into a static theme.
// Extracted as an interface so batch migration can be tested against a
// stub.
type StaticThemeCreator interface {
	AddStaticTheme(ctx context.Context, legacy *models.Addon) (*models.Addon, error)
}

// ThemeMigrator implements the legacy-theme to static-theme migration.
type ThemeMigrator struct {
	db       *gorm.DB
	builder  packaging.ThemeBuilder
	signer   signing.Signer
	activity *ActivityService
	cfg      config.Migration
	uploads  string
	logger   zerolog.Logger

	// Default fallbacks are resolved once per run and cached.
	mu              sync.Mutex
	defaultOwner    *models.User
	defaultCategory *models.Category
}

// NewThemeMigrator creates a new ThemeMigrator
func NewThemeMigrator(db *gorm.DB, builder packaging.ThemeBuilder, signer signing.Signer, activity *ActivityService, cfg config.Migration, uploadDir string, logger zerolog.Logger) *ThemeMigrator {
	return &ThemeMigrator{
		db:       db,
		builder:  builder,
		signer:   signer,
		activity: activity,
		cfg:      cfg,
		uploads:  uploadDir,
		logger:   logger,
	}
}

// AddStaticTheme builds, records and signs a static theme replacing the
// given legacy theme. The legacy record itself is left untouched; batch
// migration handles deletion and the mapping record.
func (m *ThemeMigrator) AddStaticTheme(ctx context.Context, legacy *models.Addon) (*models.Addon, error) {
	var src models.Addon
	err := m.db.WithContext(ctx).
		Preload("Authors").
		Preload("Tags").
		Preload("Categories").
		First(&src, legacy.ID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.WrapNotFoundError("addon", fmt.Sprintf("%d", legacy.ID))
		}
		return nil, errs.WrapDatabaseError("load legacy theme", err)
	}

	dst := filepath.Join(m.uploads, uuid.NewString()+".xpi")
	if err := m.builder.Build(ctx, &src, dst); err != nil {
		return nil, fmt.Errorf("failed to build static theme package: %w", err)
	}

	newAddon := &models.Addon{
		Type:   models.TypeStaticTheme,
		Status: models.StatusNominated,
		Slug:   src.Slug + "-static",
	}
	if err := m.db.WithContext(ctx).Create(newAddon).Error; err != nil {
		return nil, errs.WrapDatabaseError("create static theme", err)
	}

	version := &models.Version{
		AddonID: newAddon.ID,
		Version: "1.0",
	}
	if src.LicenseBuiltin != nil {
		var license models.License
		err := m.db.WithContext(ctx).Where("builtin = ?", *src.LicenseBuiltin).First(&license).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, errs.WrapNotFoundError("license", fmt.Sprintf("builtin %d", *src.LicenseBuiltin))
			}
			return nil, errs.WrapDatabaseError("look up license", err)
		}
		version.LicenseID = &license.ID
	}
	if err := m.db.WithContext(ctx).Create(version).Error; err != nil {
		return nil, errs.WrapDatabaseError("create version", err)
	}

	size, hash, err := fileDigest(dst)
	if err != nil {
		return nil, err
	}
	file := &models.File{
		VersionID: version.ID,
		Filename:  filepath.Base(dst),
		Size:      size,
		Hash:      hash,
		Status:    models.StatusNominated,
	}
	if err := m.db.WithContext(ctx).Create(file).Error; err != nil {
		return nil, errs.WrapDatabaseError("create file", err)
	}

	if err := m.copyAuthors(ctx, &src, newAddon); err != nil {
		return nil, err
	}
	if err := m.copyTags(ctx, &src, newAddon); err != nil {
		return nil, err
	}
	if err := m.copyCategories(ctx, &src, newAddon); err != nil {
		return nil, err
	}
	if err := m.migrateRatings(ctx, &src, newAddon, version); err != nil {
		return nil, err
	}
	if err := m.copyUpdateCounts(ctx, &src, newAddon); err != nil {
		return nil, err
	}

	// Signing must complete before the file can go public.
	serial, err := m.signer.Sign(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("failed to sign static theme file: %w", err)
	}

	fileUpdates := map[string]interface{}{
		"cert_serial_num": serial,
		"status":          models.StatusApproved,
	}
	if src.LastUpdated != nil {
		fileUpdates["date_status_changed"] = *src.LastUpdated
	}
	if err := m.db.WithContext(ctx).Model(file).UpdateColumns(fileUpdates).Error; err != nil {
		return nil, errs.WrapDatabaseError("approve file", err)
	}
	file.CertSerialNum = serial
	file.Status = models.StatusApproved
	file.DateStatusChanged = src.LastUpdated

	// Approve the addon and preserve the legacy timestamps.
	addonUpdates := map[string]interface{}{
		"status":             models.StatusApproved,
		"current_version_id": version.ID,
		"created_at":         src.CreatedAt,
		"updated_at":         src.UpdatedAt,
	}
	if err := m.db.WithContext(ctx).Model(&models.Addon{}).Where("id = ?", newAddon.ID).UpdateColumns(addonUpdates).Error; err != nil {
		return nil, errs.WrapDatabaseError("approve static theme", err)
	}
	newAddon.Status = models.StatusApproved
	newAddon.CurrentVersionID = &version.ID
	newAddon.CreatedAt = src.CreatedAt
	newAddon.UpdatedAt = src.UpdatedAt

	m.logger.Info().
		Uint("legacy_id", src.ID).
		Uint("static_theme_id", newAddon.ID).
		Str("cert_serial_num", serial).
		Msg("Created static theme from legacy theme")

	return newAddon, nil
}

func (m *ThemeMigrator) copyAuthors(ctx context.Context, src, dst *models.Addon) error {
	authors := src.Authors
	if len(authors) == 0 {
		owner, err := m.lookupDefaultOwner(ctx)
		if err != nil {
			return err
		}
		authors = []models.User{*owner}
	}
	if err := m.db.WithContext(ctx).Model(dst).Association("Authors").Append(&authors); err != nil {
		return errs.WrapDatabaseError("copy authors", err)
	}
	return nil
}

func (m *ThemeMigrator) copyTags(ctx context.Context, src, dst *models.Addon) error {
	if len(src.Tags) == 0 {
		return nil
	}
	tags := src.Tags
	if err := m.db.WithContext(ctx).Model(dst).Association("Tags").Append(&tags); err != nil {
		return errs.WrapDatabaseError("copy tags", err)
	}
	return nil
}

func (m *ThemeMigrator) copyCategories(ctx context.Context, src, dst *models.Addon) error {
	categories := src.Categories
	if len(categories) == 0 {
		category, err := m.lookupDefaultCategory(ctx)
		if err != nil {
			return err
		}
		categories = []models.Category{*category}
	}
	if err := m.db.WithContext(ctx).Model(dst).Association("Categories").Append(&categories); err != nil {
		return errs.WrapDatabaseError("copy categories", err)
	}
	return nil
}

// migrateRatings copies every rating from the legacy theme, deleted
// ones included, and logs one add_rating activity entry per rating.
func (m *ThemeMigrator) migrateRatings(ctx context.Context, src, dst *models.Addon, version *models.Version) error {
	var ratings []models.Rating
	err := m.db.WithContext(ctx).Unscoped().
		Where("addon_id = ?", src.ID).
		Order("id ASC").
		Find(&ratings).Error
	if err != nil {
		return errs.WrapDatabaseError("load ratings", err)
	}

	for _, rating := range ratings {
		migrated := models.Rating{
			AddonID:   dst.ID,
			VersionID: &version.ID,
			UserID:    rating.UserID,
			Score:     rating.Score,
			Body:      rating.Body,
			DeletedAt: rating.DeletedAt,
		}
		if err := m.db.WithContext(ctx).Create(&migrated).Error; err != nil {
			return errs.WrapDatabaseError("migrate rating", err)
		}

		userID := rating.UserID
		args := map[string]interface{}{
			"rating": migrated.ID,
			"addon":  dst.ID,
		}
		if err := m.activity.Log(ctx, models.ActionAddRating, dst.ID, &userID, args); err != nil {
			return err
		}
	}

	return nil
}

// copyUpdateCounts copies daily counters to the new addon identity. The
// legacy rows stay in place.
func (m *ThemeMigrator) copyUpdateCounts(ctx context.Context, src, dst *models.Addon) error {
	var counts []models.ThemeUpdateCount
	err := m.db.WithContext(ctx).
		Where("addon_id = ?", src.ID).
		Order("date ASC").
		Find(&counts).Error
	if err != nil {
		return errs.WrapDatabaseError("load update counts", err)
	}

	for _, count := range counts {
		copied := models.UpdateCount{
			AddonID: dst.ID,
			Date:    count.Date,
			Count:   count.Count,
		}
		if err := m.db.WithContext(ctx).Create(&copied).Error; err != nil {
			return errs.WrapDatabaseError("copy update count", err)
		}
	}

	return nil
}

func (m *ThemeMigrator) lookupDefaultOwner(ctx context.Context) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.defaultOwner != nil {
		return m.defaultOwner, nil
	}

	var user models.User
	err := m.db.WithContext(ctx).Where("email = ?", m.cfg.DefaultOwnerEmail).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.WrapNotFoundError("default owner", m.cfg.DefaultOwnerEmail)
		}
		return nil, errs.WrapDatabaseError("look up default owner", err)
	}

	m.defaultOwner = &user
	return m.defaultOwner, nil
}

func (m *ThemeMigrator) lookupDefaultCategory(ctx context.Context) (*models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.defaultCategory != nil {
		return m.defaultCategory, nil
	}

	var category models.Category
	err := m.db.WithContext(ctx).
		Where("type = ? AND slug = ?", models.TypeStaticTheme, m.cfg.DefaultCategorySlug).
		First(&category).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.WrapNotFoundError("default category", m.cfg.DefaultCategorySlug)
		}
		return nil, errs.WrapDatabaseError("look up default category", err)
	}

	m.defaultCategory = &category
	return m.defaultCategory, nil
}

// ThemeBatchMigrator migrates batches of legacy themes, recording the
// migration mapping and retiring the legacy records.
type ThemeBatchMigrator struct {
	db      *gorm.DB
	creator StaticThemeCreator
	logger  zerolog.Logger
}

// NewThemeBatchMigrator creates a new ThemeBatchMigrator
func NewThemeBatchMigrator(db *gorm.DB, creator StaticThemeCreator, logger zerolog.Logger) *ThemeBatchMigrator {
	return &ThemeBatchMigrator{
		db:      db,
		creator: creator,
		logger:  logger,
	}
}

// MigrateBatch migrates the given legacy theme ids. Records already
// migrated or missing are skipped; builder and signer failures abort
// the batch.
func (b *ThemeBatchMigrator) MigrateBatch(ctx context.Context, ids []uint) error {
	for _, id := range ids {
		var legacy models.Addon
		err := b.db.WithContext(ctx).Where("type = ?", models.TypeTheme).First(&legacy, id).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				b.logger.Warn().Uint("addon_id", id).Msg("Legacy theme not found, skipping")
				continue
			}
			return errs.WrapDatabaseError("load legacy theme", err)
		}

		// At most one mapping per legacy record.
		var existing models.MigratedTheme
		err = b.db.WithContext(ctx).Where("legacy_addon_id = ?", id).First(&existing).Error
		if err == nil {
			b.logger.Debug().Uint("addon_id", id).Msg("Legacy theme already migrated, skipping")
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.WrapDatabaseError("check migration mapping", err)
		}

		newAddon, err := b.creator.AddStaticTheme(ctx, &legacy)
		if err != nil {
			metrics.TaskFailures.WithLabelValues("migrate_themes").Inc()
			return fmt.Errorf("failed to migrate legacy theme %d: %w", id, err)
		}

		slug := legacy.Slug
		err = b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			mapping := &models.MigratedTheme{
				LegacyAddonID:      legacy.ID,
				StaticThemeAddonID: newAddon.ID,
			}
			if err := tx.Create(mapping).Error; err != nil {
				return err
			}

			// The legacy record gives up its slug to the new addon.
			retired := map[string]interface{}{
				"status": models.StatusDeleted,
				"slug":   fmt.Sprintf("%s-migrated-%d", slug, legacy.ID),
			}
			if err := tx.Model(&models.Addon{}).Where("id = ?", legacy.ID).UpdateColumns(retired).Error; err != nil {
				return err
			}

			return tx.Model(&models.Addon{}).Where("id = ?", newAddon.ID).UpdateColumn("slug", slug).Error
		})
		if err != nil {
			metrics.TaskFailures.WithLabelValues("migrate_themes").Inc()
			return errs.WrapDatabaseError("record theme migration", err)
		}

		metrics.ThemesMigrated.Inc()
		b.logger.Info().
			Uint("legacy_id", legacy.ID).
			Uint("static_theme_id", newAddon.ID).
			Str("slug", slug).
			Msg("Migrated legacy theme")
	}

	return nil
}

// fileDigest returns the size and sha256 hash of the file at path.
func fileDigest(path string) (int64, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, "", fmt.Errorf("failed to open package: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return 0, "", fmt.Errorf("failed to hash package: %w", err)
	}

	return size, "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}
