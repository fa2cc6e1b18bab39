package packaging

import (
	"context"

	"github.com/addonhub/addonhub/internal/models"
)

// ThemeBuilder produces a static-theme package from a legacy lightweight
// theme record, writing the artifact to the destination path.
type ThemeBuilder interface {
	Build(ctx context.Context, legacy *models.Addon, dst string) error
}

// DictionaryBuilder produces a webextension dictionary package from a
// legacy dictionary addon. It returns the target locale discovered while
// building.
type DictionaryBuilder interface {
	Build(ctx context.Context, addon *models.Addon, dst string) (string, error)
}
