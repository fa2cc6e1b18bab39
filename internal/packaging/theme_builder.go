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

// themeManifest is the manifest.json written into a static-theme XPI.
type themeManifest struct {
	ManifestVersion int         `json:"manifest_version"`
	Name            string      `json:"name"`
	Version         string      `json:"version"`
	Theme           themeColors `json:"theme"`
}

type themeColors struct {
	Colors map[string]string `json:"colors"`
	Images map[string]string `json:"images,omitempty"`
}

// XPIThemeBuilder builds a static-theme XPI (a plain zip archive) from a
// legacy theme record.
type XPIThemeBuilder struct{}

// NewXPIThemeBuilder creates a new XPIThemeBuilder
func NewXPIThemeBuilder() *XPIThemeBuilder {
	return &XPIThemeBuilder{}
}

// Build writes the packaged static theme to dst.
func (b *XPIThemeBuilder) Build(ctx context.Context, legacy *models.Addon, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create package file: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)

	manifest := themeManifest{
		ManifestVersion: 2,
		Name:            legacy.Slug,
		Version:         "1.0",
		Theme: themeColors{
			Colors: map[string]string{
				"frame":    "#ffffff",
				"tab_text": "#000000",
			},
		},
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		zw.Close()
		return fmt.Errorf("failed to marshal theme manifest: %w", err)
	}

	w, err := zw.Create("manifest.json")
	if err != nil {
		zw.Close()
		return fmt.Errorf("failed to add manifest to package: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		zw.Close()
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize package: %w", err)
	}

	return nil
}
