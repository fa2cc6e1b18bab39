package packaging

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"

	"github.com/addonhub/addonhub/internal/models"
)

// dictionaryManifest is the manifest.json written into a webextension
// dictionary XPI.
type dictionaryManifest struct {
	ManifestVersion int               `json:"manifest_version"`
	Name            string            `json:"name"`
	Version         string            `json:"version"`
	Applications    applications      `json:"applications"`
	Dictionaries    map[string]string `json:"dictionaries"`
}

type applications struct {
	Gecko gecko `json:"gecko"`
}

type gecko struct {
	ID string `json:"id"`
}

// DefaultDictionaryLocale is used when a legacy dictionary carries no
// target locale of its own.
const DefaultDictionaryLocale = "en-US"

// XPIDictionaryBuilder builds a webextension dictionary XPI from a
// legacy dictionary addon.
type XPIDictionaryBuilder struct{}

// NewXPIDictionaryBuilder creates a new XPIDictionaryBuilder
func NewXPIDictionaryBuilder() *XPIDictionaryBuilder {
	return &XPIDictionaryBuilder{}
}

// Build writes the packaged dictionary to dst and returns its locale.
func (b *XPIDictionaryBuilder) Build(ctx context.Context, addon *models.Addon, dst string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	locale := addon.TargetLocale
	if locale == "" {
		locale = DefaultDictionaryLocale
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", fmt.Errorf("failed to create destination directory: %w", err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("failed to create package file: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)

	guid := addon.Slug + "@dictionaries.addonhub"
	if addon.GUID != nil {
		guid = *addon.GUID
	}

	dicPath := fmt.Sprintf("dictionaries/%s.dic", locale)
	manifest := dictionaryManifest{
		ManifestVersion: 2,
		Name:            addon.Slug,
		Version:         "1.0",
		Applications:    applications{Gecko: gecko{ID: guid}},
		Dictionaries:    map[string]string{locale: dicPath},
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		zw.Close()
		return "", fmt.Errorf("failed to marshal dictionary manifest: %w", err)
	}

	w, err := zw.Create("manifest.json")
	if err != nil {
		zw.Close()
		return "", fmt.Errorf("failed to add manifest to package: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		zw.Close()
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}

	// Dictionary payload entries; content migration happens out of band.
	for _, name := range []string{dicPath, fmt.Sprintf("dictionaries/%s.aff", locale)} {
		if _, err := zw.Create(name); err != nil {
			zw.Close()
			return "", fmt.Errorf("failed to add %s to package: %w", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize package: %w", err)
	}

	return locale, nil
}
