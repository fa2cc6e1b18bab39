package tasks

import (
	"context"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/addonhub/addonhub/internal/config"
	"github.com/addonhub/addonhub/internal/models"
)

func seedAddonWithPermissions(t *testing.T, db *gorm.DB, slug string, permissions []string) *models.Addon {
	addon := models.Addon{
		Slug:   slug,
		Type:   models.TypeExtension,
		Status: models.StatusApproved,
	}
	require.NoError(t, db.Create(&addon).Error)

	version := models.Version{AddonID: addon.ID, Version: "1.0"}
	require.NoError(t, db.Create(&version).Error)

	file := models.File{
		VersionID:      version.ID,
		Filename:       slug + ".xpi",
		Status:         models.StatusApproved,
		IsWebextension: true,
		Permissions:    pq.StringArray(permissions),
	}
	require.NoError(t, db.Create(&file).Error)

	err := db.Model(&models.Addon{}).Where("id = ?", addon.ID).
		UpdateColumn("current_version_id", version.ID).Error
	require.NoError(t, err)

	return &addon
}

func reloadFlags(t *testing.T, db *gorm.DB, id uint) (bool, bool) {
	var addon models.Addon
	require.NoError(t, db.First(&addon, id).Error)
	return addon.RequiresSensitiveDataAccess, addon.NeedsSensitiveDataAccessReview
}

func TestSensitiveDataFlagger_Flag(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name          string
		permissions   []string
		wantRequires  bool
		wantReview    bool
	}{
		{
			name:         "sensitive permission sets both flags",
			permissions:  []string{"messagesRead"},
			wantRequires: true,
			wantReview:   true,
		},
		{
			name:         "benign permissions leave flags unset",
			permissions:  []string{"tabs"},
			wantRequires: false,
			wantReview:   false,
		},
		{
			name:         "upload opt-in suppresses the review flag",
			permissions:  []string{"messagesRead", "sensitiveDataUpload"},
			wantRequires: true,
			wantReview:   false,
		},
		{
			name:         "opt-in alone does not require access",
			permissions:  []string{"sensitiveDataUpload"},
			wantRequires: false,
			wantReview:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := setupTestDB(t)
			flagger := NewSensitiveDataFlagger(db, config.DefaultSensitivePermissions, testLogger())

			addon := seedAddonWithPermissions(t, db, "subject", tt.permissions)
			require.NoError(t, flagger.Flag(ctx, []uint{addon.ID}))

			requires, review := reloadFlags(t, db, addon.ID)
			assert.Equal(t, tt.wantRequires, requires)
			assert.Equal(t, tt.wantReview, review)

			// Re-running with unchanged permissions is stable
			require.NoError(t, flagger.Flag(ctx, []uint{addon.ID}))
			requires, review = reloadFlags(t, db, addon.ID)
			assert.Equal(t, tt.wantRequires, requires)
			assert.Equal(t, tt.wantReview, review)
		})
	}
}

func TestSensitiveDataFlagger_Flag_NoCurrentVersion(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	flagger := NewSensitiveDataFlagger(db, config.DefaultSensitivePermissions, testLogger())

	addon := models.Addon{Slug: "versionless", Type: models.TypeExtension, Status: models.StatusIncomplete}
	require.NoError(t, db.Create(&addon).Error)

	require.NoError(t, flagger.Flag(ctx, []uint{addon.ID}))

	requires, review := reloadFlags(t, db, addon.ID)
	assert.False(t, requires)
	assert.False(t, review)
}

func TestSensitiveDataFlagger_Flag_SkipsMissing(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	flagger := NewSensitiveDataFlagger(db, config.DefaultSensitivePermissions, testLogger())

	addon := seedAddonWithPermissions(t, db, "survivor", []string{"accountsRead"})

	require.NoError(t, flagger.Flag(ctx, []uint{98765, addon.ID}))

	requires, review := reloadFlags(t, db, addon.ID)
	assert.True(t, requires)
	assert.True(t, review)
}
