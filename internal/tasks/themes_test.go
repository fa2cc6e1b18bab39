package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/addonhub/addonhub/internal/config"
	"github.com/addonhub/addonhub/internal/errs"
	"github.com/addonhub/addonhub/internal/models"
	"github.com/addonhub/addonhub/internal/signing"
)

func testMigrationConfig() config.Migration {
	return config.Migration{
		DefaultOwnerEmail:    "addons-team@example.com",
		DefaultCategorySlug:  "other",
		ChunkSize:            100,
		Concurrency:          1,
		SensitivePermissions: config.DefaultSensitivePermissions,
	}
}

func newTestThemeMigrator(t *testing.T, db *gorm.DB) (*ThemeMigrator, *stubThemeBuilder, *signing.MockSigner) {
	builder := &stubThemeBuilder{}
	signer := signing.NewMockSigner("abcdefg1234")
	activity := NewActivityService(db, testLogger())
	migrator := NewThemeMigrator(db, builder, signer, activity, testMigrationConfig(), t.TempDir(), testLogger())
	return migrator, builder, signer
}

func TestThemeMigrator_AddStaticTheme(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	migrator, builder, signer := newTestThemeMigrator(t, db)

	author := models.User{Email: "artist@example.com", Username: "artist"}
	require.NoError(t, db.Create(&author).Error)

	tag := models.Tag{TagText: "pink"}
	require.NoError(t, db.Create(&tag).Error)

	category := models.Category{Type: models.TypeTheme, Slug: "nature", Name: "Nature"}
	require.NoError(t, db.Create(&category).Error)

	license := models.License{Builtin: 101, Name: "Creative Commons"}
	require.NoError(t, db.Create(&license).Error)

	created := time.Date(2017, 3, 12, 8, 0, 0, 0, time.UTC)
	modified := time.Date(2018, 6, 1, 12, 30, 0, 0, time.UTC)
	lastUpdated := time.Date(2018, 9, 15, 17, 45, 0, 0, time.UTC)
	builtin := license.Builtin

	legacy := models.Addon{
		Slug:           "pink-sunset",
		Type:           models.TypeTheme,
		Status:         models.StatusApproved,
		LicenseBuiltin: &builtin,
		LastUpdated:    &lastUpdated,
		CreatedAt:      created,
		UpdatedAt:      modified,
		Authors:        []models.User{author},
		Tags:           []models.Tag{tag},
		Categories:     []models.Category{category},
	}
	require.NoError(t, db.Create(&legacy).Error)

	liveRating := models.Rating{AddonID: legacy.ID, UserID: author.ID, Score: 4, Body: "lovely colours"}
	require.NoError(t, db.Create(&liveRating).Error)
	deletedRating := models.Rating{
		AddonID:   legacy.ID,
		UserID:    author.ID,
		Score:     2,
		Body:      "changed my mind",
		DeletedAt: gorm.DeletedAt{Time: time.Now(), Valid: true},
	}
	require.NoError(t, db.Create(&deletedRating).Error)

	day1 := time.Date(2018, 8, 1, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2018, 8, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.Create(&models.ThemeUpdateCount{AddonID: legacy.ID, Date: day1, Count: 123}).Error)
	require.NoError(t, db.Create(&models.ThemeUpdateCount{AddonID: legacy.ID, Date: day2, Count: 456}).Error)
	require.NoError(t, db.Create(&models.UpdateCount{AddonID: 9999, Date: day1, Count: 45}).Error)

	newAddon, err := migrator.AddStaticTheme(ctx, &legacy)
	require.NoError(t, err)
	require.NotNil(t, newAddon)

	assert.Equal(t, []uint{legacy.ID}, builder.builds)

	// New addon identity and preserved timestamps
	var got models.Addon
	require.NoError(t, db.First(&got, newAddon.ID).Error)
	assert.Equal(t, models.TypeStaticTheme, got.Type)
	assert.Equal(t, models.StatusApproved, got.Status)
	assert.Equal(t, "pink-sunset-static", got.Slug)
	require.NotNil(t, got.CurrentVersionID)
	assert.WithinDuration(t, created, got.CreatedAt, time.Second)
	assert.WithinDuration(t, modified, got.UpdatedAt, time.Second)

	// Version carries the looked-up license
	var version models.Version
	require.NoError(t, db.Where("addon_id = ?", newAddon.ID).First(&version).Error)
	assert.Equal(t, "1.0", version.Version)
	require.NotNil(t, version.LicenseID)
	assert.Equal(t, license.ID, *version.LicenseID)
	assert.Equal(t, version.ID, *got.CurrentVersionID)

	// File is hashed, signed and approved with the legacy timestamp
	var file models.File
	require.NoError(t, db.Where("version_id = ?", version.ID).First(&file).Error)
	assert.Equal(t, models.StatusApproved, file.Status)
	assert.Equal(t, "abcdefg1234", file.CertSerialNum)
	assert.True(t, strings.HasPrefix(file.Hash, "sha256:"))
	assert.Equal(t, int64(len("xpi:pink-sunset")), file.Size)
	require.NotNil(t, file.DateStatusChanged)
	assert.WithinDuration(t, lastUpdated, *file.DateStatusChanged, time.Second)
	assert.Equal(t, []uint{file.ID}, signer.Calls())

	// Authors, tags and categories are carried over
	var authors []models.User
	require.NoError(t, db.Model(&got).Association("Authors").Find(&authors))
	require.Len(t, authors, 1)
	assert.Equal(t, author.ID, authors[0].ID)

	var tags []models.Tag
	require.NoError(t, db.Model(&got).Association("Tags").Find(&tags))
	require.Len(t, tags, 1)
	assert.Equal(t, "pink", tags[0].TagText)

	var categories []models.Category
	require.NoError(t, db.Model(&got).Association("Categories").Find(&categories))
	require.Len(t, categories, 1)
	assert.Equal(t, "nature", categories[0].Slug)

	// Ratings migrate in order, deleted ones included
	var migrated []models.Rating
	require.NoError(t, db.Unscoped().Where("addon_id = ?", newAddon.ID).Order("id ASC").Find(&migrated).Error)
	require.Len(t, migrated, 2)
	assert.Equal(t, 4, migrated[0].Score)
	assert.False(t, migrated[0].DeletedAt.Valid)
	assert.Equal(t, 2, migrated[1].Score)
	assert.True(t, migrated[1].DeletedAt.Valid)
	for _, rating := range migrated {
		require.NotNil(t, rating.VersionID)
		assert.Equal(t, version.ID, *rating.VersionID)
		assert.Equal(t, author.ID, rating.UserID)
	}

	var visible int64
	require.NoError(t, db.Model(&models.Rating{}).Where("addon_id = ?", newAddon.ID).Count(&visible).Error)
	assert.Equal(t, int64(1), visible)

	// One add_rating activity entry per migrated rating
	activity := NewActivityService(db, testLogger())
	entries, err := activity.ListByAction(ctx, newAddon.ID, models.ActionAddRating)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for i, entry := range entries {
		args, err := entry.GetArgumentsMap()
		require.NoError(t, err)
		assert.Equal(t, float64(migrated[i].ID), args["rating"])
		assert.Equal(t, float64(newAddon.ID), args["addon"])
	}

	// Update counts are copied, the legacy rows stay in place
	var counts []models.UpdateCount
	require.NoError(t, db.Where("addon_id = ?", newAddon.ID).Order("date ASC").Find(&counts).Error)
	require.Len(t, counts, 2)
	assert.Equal(t, int64(123), counts[0].Count)
	assert.Equal(t, int64(456), counts[1].Count)

	var legacyCounts int64
	require.NoError(t, db.Model(&models.ThemeUpdateCount{}).Where("addon_id = ?", legacy.ID).Count(&legacyCounts).Error)
	assert.Equal(t, int64(2), legacyCounts)

	var unrelated models.UpdateCount
	require.NoError(t, db.Where("addon_id = ?", 9999).First(&unrelated).Error)
	assert.Equal(t, int64(45), unrelated.Count)

	// The legacy record itself is untouched by the single migration
	var legacyAfter models.Addon
	require.NoError(t, db.First(&legacyAfter, legacy.ID).Error)
	assert.Equal(t, models.StatusApproved, legacyAfter.Status)
	assert.Equal(t, "pink-sunset", legacyAfter.Slug)
}

func TestThemeMigrator_AddStaticTheme_Defaults(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	migrator, _, _ := newTestThemeMigrator(t, db)

	owner := models.User{Email: "addons-team@example.com", Username: "addons-team"}
	require.NoError(t, db.Create(&owner).Error)
	fallback := models.Category{Type: models.TypeStaticTheme, Slug: "other", Name: "Other"}
	require.NoError(t, db.Create(&fallback).Error)

	legacy := models.Addon{
		Slug:   "broken-theme",
		Type:   models.TypeTheme,
		Status: models.StatusApproved,
	}
	require.NoError(t, db.Create(&legacy).Error)

	newAddon, err := migrator.AddStaticTheme(ctx, &legacy)
	require.NoError(t, err)

	var authors []models.User
	require.NoError(t, db.Model(newAddon).Association("Authors").Find(&authors))
	require.Len(t, authors, 1)
	assert.Equal(t, owner.ID, authors[0].ID)

	var categories []models.Category
	require.NoError(t, db.Model(newAddon).Association("Categories").Find(&categories))
	require.Len(t, categories, 1)
	assert.Equal(t, fallback.ID, categories[0].ID)

	// No builtin license means no license reference
	var version models.Version
	require.NoError(t, db.Where("addon_id = ?", newAddon.ID).First(&version).Error)
	assert.Nil(t, version.LicenseID)
}

func TestThemeMigrator_AddStaticTheme_LastUpdatedSurvivesRecompute(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	migrator, _, _ := newTestThemeMigrator(t, db)

	owner := models.User{Email: "addons-team@example.com", Username: "addons-team"}
	require.NoError(t, db.Create(&owner).Error)
	fallback := models.Category{Type: models.TypeStaticTheme, Slug: "other", Name: "Other"}
	require.NoError(t, db.Create(&fallback).Error)

	lastUpdated := time.Date(2018, 9, 15, 17, 45, 0, 0, time.UTC)
	legacy := models.Addon{
		Slug:        "sunrise",
		Type:        models.TypeTheme,
		Status:      models.StatusApproved,
		LastUpdated: &lastUpdated,
	}
	require.NoError(t, db.Create(&legacy).Error)

	newAddon, err := migrator.AddStaticTheme(ctx, &legacy)
	require.NoError(t, err)

	// The aggregation pass must land the replacement on the legacy value
	require.NoError(t, RecomputeLastUpdated(ctx, db, testLogger()))

	var got models.Addon
	require.NoError(t, db.First(&got, newAddon.ID).Error)
	require.NotNil(t, got.LastUpdated)
	assert.WithinDuration(t, lastUpdated, *got.LastUpdated, time.Second)
}

func TestThemeMigrator_AddStaticTheme_MissingLicense(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	migrator, _, _ := newTestThemeMigrator(t, db)

	builtin := 999
	legacy := models.Addon{
		Slug:           "orphan-license",
		Type:           models.TypeTheme,
		Status:         models.StatusApproved,
		LicenseBuiltin: &builtin,
	}
	require.NoError(t, db.Create(&legacy).Error)

	_, err := migrator.AddStaticTheme(ctx, &legacy)
	require.Error(t, err)
	assert.True(t, errs.IsNotFoundError(err))
}

func TestThemeMigrator_AddStaticTheme_NotFound(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	migrator, _, _ := newTestThemeMigrator(t, db)

	_, err := migrator.AddStaticTheme(ctx, &models.Addon{ID: 12345})
	require.Error(t, err)
	assert.True(t, errs.IsNotFoundError(err))
}

// stubCreator records calls and creates a minimal static theme record.
type stubCreator struct {
	db    *gorm.DB
	calls []uint
	err   error
}

func (s *stubCreator) AddStaticTheme(ctx context.Context, legacy *models.Addon) (*models.Addon, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.calls = append(s.calls, legacy.ID)
	addon := &models.Addon{
		Slug:   legacy.Slug + "-static",
		Type:   models.TypeStaticTheme,
		Status: models.StatusApproved,
	}
	if err := s.db.Create(addon).Error; err != nil {
		return nil, err
	}
	return addon, nil
}

func TestThemeBatchMigrator_MigrateBatch(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	aurora := models.Addon{Slug: "aurora", Type: models.TypeTheme, Status: models.StatusApproved}
	require.NoError(t, db.Create(&aurora).Error)
	boreal := models.Addon{Slug: "boreal", Type: models.TypeTheme, Status: models.StatusApproved}
	require.NoError(t, db.Create(&boreal).Error)

	// Already migrated: a mapping exists, so it must be skipped.
	done := models.Addon{Slug: "done", Type: models.TypeTheme, Status: models.StatusDeleted}
	require.NoError(t, db.Create(&done).Error)
	require.NoError(t, db.Create(&models.MigratedTheme{LegacyAddonID: done.ID, StaticThemeAddonID: 777}).Error)

	creator := &stubCreator{db: db}
	batch := NewThemeBatchMigrator(db, creator, testLogger())

	err := batch.MigrateBatch(ctx, []uint{aurora.ID, 424242, done.ID, boreal.ID})
	require.NoError(t, err)
	assert.Equal(t, []uint{aurora.ID, boreal.ID}, creator.calls)

	// Mapping rows exist for the migrated themes
	var mapping models.MigratedTheme
	require.NoError(t, db.Where("legacy_addon_id = ?", aurora.ID).First(&mapping).Error)

	var replacement models.Addon
	require.NoError(t, db.First(&replacement, mapping.StaticThemeAddonID).Error)
	assert.Equal(t, "aurora", replacement.Slug)

	// The legacy record is retired and gives up its slug
	var legacyAfter models.Addon
	require.NoError(t, db.First(&legacyAfter, aurora.ID).Error)
	assert.Equal(t, models.StatusDeleted, legacyAfter.Status)
	assert.Equal(t, fmt.Sprintf("aurora-migrated-%d", aurora.ID), legacyAfter.Slug)

	var mappings int64
	require.NoError(t, db.Model(&models.MigratedTheme{}).Count(&mappings).Error)
	assert.Equal(t, int64(3), mappings)

	// Re-running the same batch changes nothing
	require.NoError(t, batch.MigrateBatch(ctx, []uint{aurora.ID, boreal.ID}))
	assert.Equal(t, []uint{aurora.ID, boreal.ID}, creator.calls)
}

func TestThemeBatchMigrator_MigrateBatch_CreatorError(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	legacy := models.Addon{Slug: "stuck", Type: models.TypeTheme, Status: models.StatusApproved}
	require.NoError(t, db.Create(&legacy).Error)

	creator := &stubCreator{db: db, err: errors.New("builder exploded")}
	batch := NewThemeBatchMigrator(db, creator, testLogger())

	err := batch.MigrateBatch(ctx, []uint{legacy.ID})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "builder exploded")

	// No mapping and the legacy record is untouched
	var mappings int64
	require.NoError(t, db.Model(&models.MigratedTheme{}).Count(&mappings).Error)
	assert.Equal(t, int64(0), mappings)

	var legacyAfter models.Addon
	require.NoError(t, db.First(&legacyAfter, legacy.ID).Error)
	assert.Equal(t, models.StatusApproved, legacyAfter.Status)
	assert.Equal(t, "stuck", legacyAfter.Slug)
}

func TestThemeBatchMigrator_MigrateBatch_WrongType(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	extension := models.Addon{Slug: "not-a-theme", Type: models.TypeExtension, Status: models.StatusApproved}
	require.NoError(t, db.Create(&extension).Error)

	creator := &stubCreator{db: db}
	batch := NewThemeBatchMigrator(db, creator, testLogger())

	require.NoError(t, batch.MigrateBatch(ctx, []uint{extension.ID}))
	assert.Empty(t, creator.calls)
}
