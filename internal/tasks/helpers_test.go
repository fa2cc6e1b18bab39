package tasks

import (
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/addonhub/addonhub/internal/models"
	"github.com/addonhub/addonhub/internal/packaging"
)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.User{},
		&models.Addon{},
		&models.Version{},
		&models.File{},
		&models.FileUpload{},
		&models.License{},
		&models.Tag{},
		&models.Category{},
		&models.Rating{},
		&models.UpdateCount{},
		&models.ThemeUpdateCount{},
		&models.MigratedTheme{},
		&models.ActivityLog{},
	)
	require.NoError(t, err)

	return db
}

func testLogger() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

// stubThemeBuilder writes a deterministic payload instead of a real XPI.
type stubThemeBuilder struct {
	err    error
	builds []uint
}

func (b *stubThemeBuilder) Build(ctx context.Context, legacy *models.Addon, dst string) error {
	if b.err != nil {
		return b.err
	}
	b.builds = append(b.builds, legacy.ID)
	return os.WriteFile(dst, []byte("xpi:"+legacy.Slug), 0o644)
}

var _ packaging.ThemeBuilder = (*stubThemeBuilder)(nil)

// stubDictionaryBuilder writes a deterministic payload and reports a
// fixed locale.
type stubDictionaryBuilder struct {
	locale string
	err    error
	builds []uint
}

func (b *stubDictionaryBuilder) Build(ctx context.Context, addon *models.Addon, dst string) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	b.builds = append(b.builds, addon.ID)
	if err := os.WriteFile(dst, []byte("dict:"+addon.Slug), 0o644); err != nil {
		return "", err
	}
	locale := b.locale
	if locale == "" {
		locale = packaging.DefaultDictionaryLocale
	}
	return locale, nil
}

var _ packaging.DictionaryBuilder = (*stubDictionaryBuilder)(nil)
