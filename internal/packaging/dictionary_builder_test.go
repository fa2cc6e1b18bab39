package packaging

import (
	"context"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/addonhub/addonhub/internal/models"
)

func TestXPIDictionaryBuilder_Build(t *testing.T) {
	builder := NewXPIDictionaryBuilder()
	dst := filepath.Join(t.TempDir(), "dict.xpi")

	addon := &models.Addon{
		Slug:         "woerterbuch",
		Type:         models.TypeDictionary,
		Status:       models.StatusApproved,
		TargetLocale: "de",
	}

	locale, err := builder.Build(context.Background(), addon, dst)
	require.NoError(t, err)
	assert.Equal(t, "de", locale)

	names := zipEntryNames(t, dst)
	assert.Contains(t, names, "manifest.json")
	assert.Contains(t, names, "dictionaries/de.dic")
	assert.Contains(t, names, "dictionaries/de.aff")

	data := readZipEntry(t, dst, "manifest.json")

	var manifest struct {
		Name         string `json:"name"`
		Applications struct {
			Gecko struct {
				ID string `json:"id"`
			} `json:"gecko"`
		} `json:"applications"`
		Dictionaries map[string]string `json:"dictionaries"`
	}
	require.NoError(t, json.Unmarshal(data, &manifest))

	assert.Equal(t, "woerterbuch", manifest.Name)
	assert.Equal(t, "woerterbuch@dictionaries.addonhub", manifest.Applications.Gecko.ID)
	assert.Equal(t, "dictionaries/de.dic", manifest.Dictionaries["de"])
}

func TestXPIDictionaryBuilder_Build_DefaultLocale(t *testing.T) {
	builder := NewXPIDictionaryBuilder()
	dst := filepath.Join(t.TempDir(), "dict.xpi")

	addon := &models.Addon{Slug: "plain", Type: models.TypeDictionary, Status: models.StatusApproved}

	locale, err := builder.Build(context.Background(), addon, dst)
	require.NoError(t, err)
	assert.Equal(t, DefaultDictionaryLocale, locale)

	names := zipEntryNames(t, dst)
	assert.Contains(t, names, "dictionaries/en-US.dic")
}

func TestXPIDictionaryBuilder_Build_KeepsGUID(t *testing.T) {
	builder := NewXPIDictionaryBuilder()
	dst := filepath.Join(t.TempDir(), "dict.xpi")

	guid := "legacy-guid@dictionaries.example.org"
	addon := &models.Addon{
		Slug:   "with-guid",
		Type:   models.TypeDictionary,
		Status: models.StatusApproved,
		GUID:   &guid,
	}

	_, err := builder.Build(context.Background(), addon, dst)
	require.NoError(t, err)

	data := readZipEntry(t, dst, "manifest.json")

	var manifest struct {
		Applications struct {
			Gecko struct {
				ID string `json:"id"`
			} `json:"gecko"`
		} `json:"applications"`
	}
	require.NoError(t, json.Unmarshal(data, &manifest))
	assert.Equal(t, guid, manifest.Applications.Gecko.ID)
}
