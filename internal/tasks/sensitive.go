package tasks

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/addonhub/addonhub/internal/config"
	"github.com/addonhub/addonhub/internal/errs"
	"github.com/addonhub/addonhub/internal/metrics"
	"github.com/addonhub/addonhub/internal/models"
)

// SensitiveDataFlagger inspects current-file permissions and sets the
// sensitive-data-access flags on addons.
type SensitiveDataFlagger struct {
	db        *gorm.DB
	sensitive map[string]struct{}
	logger    zerolog.Logger
}

// NewSensitiveDataFlagger creates a flagger for the given sensitive
// permission set.
func NewSensitiveDataFlagger(db *gorm.DB, sensitivePermissions []string, logger zerolog.Logger) *SensitiveDataFlagger {
	sensitive := make(map[string]struct{}, len(sensitivePermissions))
	for _, perm := range sensitivePermissions {
		sensitive[perm] = struct{}{}
	}
	return &SensitiveDataFlagger{
		db:        db,
		sensitive: sensitive,
		logger:    logger,
	}
}

// Flag sets requires_sensitive_data_access on every addon whose current
// file declares a sensitive permission, and additionally requests
// reviewer attention unless the file opts in with sensitiveDataUpload.
// Re-running with unchanged permissions yields the same flag state.
func (f *SensitiveDataFlagger) Flag(ctx context.Context, ids []uint) error {
	for _, id := range ids {
		var addon models.Addon
		err := f.db.WithContext(ctx).Preload("CurrentVersion.Files").First(&addon, id).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				f.logger.Warn().Uint("addon_id", id).Msg("Addon not found, skipping")
				continue
			}
			return errs.WrapDatabaseError("load addon", err)
		}

		requires, needsReview := f.inspect(&addon)
		if !requires {
			continue
		}

		updates := map[string]interface{}{
			"requires_sensitive_data_access":     true,
			"needs_sensitive_data_access_review": needsReview,
		}
		if err := f.db.WithContext(ctx).Model(&models.Addon{}).Where("id = ?", id).UpdateColumns(updates).Error; err != nil {
			return errs.WrapDatabaseError("flag addon", err)
		}

		metrics.AddonsFlagged.Inc()
		f.logger.Info().
			Uint("addon_id", id).
			Bool("needs_review", needsReview).
			Msg("Flagged addon for sensitive data access")
	}

	return nil
}

// inspect reports whether the addon's current file requires the access
// flag and whether it also needs reviewer attention.
func (f *SensitiveDataFlagger) inspect(addon *models.Addon) (bool, bool) {
	if addon.CurrentVersion == nil || len(addon.CurrentVersion.Files) == 0 {
		return false, false
	}

	file := &addon.CurrentVersion.Files[0]

	requires := false
	for _, perm := range file.Permissions {
		if _, ok := f.sensitive[perm]; ok {
			requires = true
			break
		}
	}
	if !requires {
		return false, false
	}

	return true, !file.HasPermission(config.SensitiveDataUploadPermission)
}
