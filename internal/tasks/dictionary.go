package tasks

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/addonhub/addonhub/internal/errs"
	"github.com/addonhub/addonhub/internal/metrics"
	"github.com/addonhub/addonhub/internal/models"
	"github.com/addonhub/addonhub/internal/packaging"
	"github.com/addonhub/addonhub/internal/signing"
)

// DictionaryMigrator repackages legacy dictionaries as webextensions.
type DictionaryMigrator struct {
	db       *gorm.DB
	builder  packaging.DictionaryBuilder
	signer   signing.Signer
	activity *ActivityService
	uploads  string
	logger   zerolog.Logger

	// now is replaceable in tests
	now func() time.Time
}

// NewDictionaryMigrator creates a new DictionaryMigrator
func NewDictionaryMigrator(db *gorm.DB, builder packaging.DictionaryBuilder, signer signing.Signer, activity *ActivityService, uploadDir string, logger zerolog.Logger) *DictionaryMigrator {
	return &DictionaryMigrator{
		db:       db,
		builder:  builder,
		signer:   signer,
		activity: activity,
		uploads:  uploadDir,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Migrate converts the given legacy dictionary to a webextension: a new
// signed version/file pair, the target locale from the builder, and an
// add_version activity entry referencing the new version and the addon.
func (m *DictionaryMigrator) Migrate(ctx context.Context, addonID uint) error {
	var addon models.Addon
	err := m.db.WithContext(ctx).
		Preload("CurrentVersion").
		Where("type = ?", models.TypeDictionary).
		First(&addon, addonID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.WrapNotFoundError("dictionary addon", fmt.Sprintf("%d", addonID))
		}
		return errs.WrapDatabaseError("load dictionary addon", err)
	}

	// The upload record exists before the build starts.
	upload := &models.FileUpload{
		UUID: uuid.NewString(),
		Name: addon.Slug + ".xpi",
	}
	upload.Path = filepath.Join(m.uploads, upload.UUID+".xpi")
	if err := m.db.WithContext(ctx).Create(upload).Error; err != nil {
		return errs.WrapDatabaseError("create upload record", err)
	}

	locale, err := m.builder.Build(ctx, &addon, upload.Path)
	if err != nil {
		metrics.TaskFailures.WithLabelValues("migrate_dictionaries").Inc()
		return fmt.Errorf("failed to build webextension dictionary: %w", err)
	}

	versionString := "1.0-webext"
	if addon.CurrentVersion != nil {
		versionString = addon.CurrentVersion.Version + ".1-webext"
	}
	version := &models.Version{
		AddonID: addon.ID,
		Version: versionString,
	}
	if err := m.db.WithContext(ctx).Create(version).Error; err != nil {
		return errs.WrapDatabaseError("create version", err)
	}

	size, hash, err := fileDigest(upload.Path)
	if err != nil {
		return err
	}
	file := &models.File{
		VersionID:      version.ID,
		Filename:       upload.Name,
		Size:           size,
		Hash:           hash,
		Status:         models.StatusNominated,
		IsWebextension: true,
	}
	if err := m.db.WithContext(ctx).Create(file).Error; err != nil {
		return errs.WrapDatabaseError("create file", err)
	}

	serial, err := m.signer.Sign(ctx, file)
	if err != nil {
		metrics.TaskFailures.WithLabelValues("migrate_dictionaries").Inc()
		return fmt.Errorf("failed to sign dictionary file: %w", err)
	}

	migratedAt := m.now()
	fileUpdates := map[string]interface{}{
		"cert_serial_num":     serial,
		"status":              models.StatusApproved,
		"date_status_changed": migratedAt,
	}
	if err := m.db.WithContext(ctx).Model(file).UpdateColumns(fileUpdates).Error; err != nil {
		return errs.WrapDatabaseError("approve file", err)
	}
	file.CertSerialNum = serial
	file.Status = models.StatusApproved
	file.DateStatusChanged = &migratedAt

	addonUpdates := map[string]interface{}{
		"target_locale":      locale,
		"current_version_id": version.ID,
		"status":             models.StatusApproved,
		"last_updated":       migratedAt,
	}
	if err := m.db.WithContext(ctx).Model(&models.Addon{}).Where("id = ?", addon.ID).UpdateColumns(addonUpdates).Error; err != nil {
		return errs.WrapDatabaseError("update dictionary addon", err)
	}

	if err := m.db.WithContext(ctx).Model(upload).UpdateColumn("valid", true).Error; err != nil {
		return errs.WrapDatabaseError("mark upload valid", err)
	}

	args := []map[string]interface{}{
		{"version": version.ID},
		{"addon": addon.ID},
	}
	if err := m.activity.Log(ctx, models.ActionAddVersion, addon.ID, nil, args); err != nil {
		return err
	}

	metrics.DictionariesMigrated.Inc()
	m.logger.Info().
		Uint("addon_id", addon.ID).
		Uint("version_id", version.ID).
		Str("target_locale", locale).
		Msg("Migrated legacy dictionary to webextension")

	return nil
}

// MigrateBatch migrates the given dictionary addon ids in order.
func (m *DictionaryMigrator) MigrateBatch(ctx context.Context, ids []uint) error {
	for _, id := range ids {
		if err := m.Migrate(ctx, id); err != nil {
			if errs.IsNotFoundError(err) {
				m.logger.Warn().Uint("addon_id", id).Msg("Dictionary addon not found, skipping")
				continue
			}
			return err
		}
	}
	return nil
}
