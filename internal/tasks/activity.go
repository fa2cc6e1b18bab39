package tasks

import (
	"context"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/addonhub/addonhub/internal/errs"
	"github.com/addonhub/addonhub/internal/models"
)

// ActivityService writes and reads the addon activity log.
type ActivityService struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewActivityService creates a new ActivityService
func NewActivityService(db *gorm.DB, logger zerolog.Logger) *ActivityService {
	return &ActivityService{
		db:     db,
		logger: logger,
	}
}

// Log records an action against an addon with the given arguments.
func (s *ActivityService) Log(ctx context.Context, action string, addonID uint, userID *uint, arguments interface{}) error {
	entry := &models.ActivityLog{
		Action:  action,
		AddonID: addonID,
		UserID:  userID,
	}

	if err := entry.SetArguments(arguments); err != nil {
		s.logger.Error().Err(err).Str("action", action).Msg("Failed to marshal activity arguments")
		return err
	}

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		s.logger.Error().Err(err).Str("action", action).Msg("Failed to log activity")
		return errs.WrapDatabaseError("log activity", err)
	}

	return nil
}

// ListByAction returns the activity entries for an addon and action, in
// insertion order.
func (s *ActivityService) ListByAction(ctx context.Context, addonID uint, action string) ([]models.ActivityLog, error) {
	var entries []models.ActivityLog
	err := s.db.WithContext(ctx).
		Where("addon_id = ? AND action = ?", addonID, action).
		Order("id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, errs.WrapDatabaseError("list activity", err)
	}
	return entries, nil
}
