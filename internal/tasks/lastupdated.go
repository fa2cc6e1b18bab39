package tasks

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/addonhub/addonhub/internal/errs"
	"github.com/addonhub/addonhub/internal/models"
)

// RecomputeLastUpdated refreshes the derived last_updated timestamp of
// approved addons from the status-change times of their current
// version's approved files. Runs as a separate aggregation pass after
// migration batches.
func RecomputeLastUpdated(ctx context.Context, db *gorm.DB, logger zerolog.Logger) error {
	var addons []models.Addon
	err := db.WithContext(ctx).
		Preload("CurrentVersion.Files").
		Where("status = ? AND current_version_id IS NOT NULL", models.StatusApproved).
		Find(&addons).Error
	if err != nil {
		return errs.WrapDatabaseError("load approved addons", err)
	}

	updated := 0
	for i := range addons {
		addon := &addons[i]

		var latest *time.Time
		if addon.CurrentVersion != nil {
			for _, file := range addon.CurrentVersion.Files {
				if file.Status != models.StatusApproved || file.DateStatusChanged == nil {
					continue
				}
				if latest == nil || file.DateStatusChanged.After(*latest) {
					t := *file.DateStatusChanged
					latest = &t
				}
			}
		}

		if latest == nil {
			continue
		}
		if addon.LastUpdated != nil && addon.LastUpdated.Equal(*latest) {
			continue
		}

		err := db.WithContext(ctx).Model(&models.Addon{}).
			Where("id = ?", addon.ID).
			UpdateColumn("last_updated", *latest).Error
		if err != nil {
			return errs.WrapDatabaseError("update last_updated", err)
		}
		updated++
	}

	logger.Info().Int("updated", updated).Msg("Recomputed last_updated timestamps")
	return nil
}
