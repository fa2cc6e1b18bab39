package tasks

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/addonhub/addonhub/internal/errs"
	"github.com/addonhub/addonhub/internal/images"
	"github.com/addonhub/addonhub/internal/models"
)

// CreateThemePreviews renders the preview thumbnails for a theme and
// touches the addon's modified timestamp once they are written. An
// invalid source image leaves both the destinations and the addon
// record untouched.
func CreateThemePreviews(ctx context.Context, db *gorm.DB, processor *images.Processor, addonID uint, src string, dsts []string) error {
	written, err := processor.CreatePreviewImages(src, dsts)
	if err != nil {
		return err
	}
	if !written {
		return nil
	}

	err = db.WithContext(ctx).Model(&models.Addon{}).
		Where("id = ?", addonID).
		UpdateColumn("updated_at", time.Now().UTC()).Error
	if err != nil {
		return errs.WrapDatabaseError("touch addon modified time", err)
	}

	return nil
}
