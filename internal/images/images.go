package images

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/rs/zerolog"
	xdraw "golang.org/x/image/draw"

	_ "image/gif"
	_ "image/jpeg"
)

// Theme artwork dimensions: the header strip shown on detail pages and
// the icon-sized thumbnail.
var PreviewSizes = []image.Point{
	{X: 680, Y: 100},
	{X: 32, Y: 32},
}

// PNGOptimizer post-processes a written PNG file in place.
type PNGOptimizer interface {
	Optimize(path string) error
}

// ExecOptimizer shells out to a pngcrush-compatible binary.
type ExecOptimizer struct {
	Binary string
}

// Optimize runs the optimizer binary over the file in place.
func (o *ExecOptimizer) Optimize(path string) error {
	binary := o.Binary
	if binary == "" {
		binary = "pngcrush"
	}
	cmd := exec.Command(binary, "-ow", path)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s failed: %w: %s", binary, err, string(out))
	}
	return nil
}

// NoopOptimizer leaves files untouched.
type NoopOptimizer struct{}

// Optimize is a no-op.
func (NoopOptimizer) Optimize(path string) error {
	return nil
}

// Processor converts and resizes theme artwork.
type Processor struct {
	optimizer PNGOptimizer
	logger    zerolog.Logger
}

// NewProcessor creates a Processor using the given optimizer
func NewProcessor(optimizer PNGOptimizer, logger zerolog.Logger) *Processor {
	return &Processor{
		optimizer: optimizer,
		logger:    logger,
	}
}

// SaveThemeImage saves the source image as a PNG at dst and optimizes
// it. If the source is not a valid image nothing is written and no
// error is returned.
func (p *Processor) SaveThemeImage(src, dst string) error {
	img, ok, err := p.decode(src)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	if err := p.writePNG(img, dst); err != nil {
		return err
	}

	return p.optimizer.Optimize(dst)
}

// CreatePreviewImages renders the header and icon thumbnails for a
// theme image, writing one PNG per destination path and optimizing
// each. An invalid source image is a no-op; the written result tells
// the caller whether any thumbnails were produced.
func (p *Processor) CreatePreviewImages(src string, dsts []string) (bool, error) {
	if len(dsts) != len(PreviewSizes) {
		return false, fmt.Errorf("expected %d destination paths, got %d", len(PreviewSizes), len(dsts))
	}

	img, ok, err := p.decode(src)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	for i, size := range PreviewSizes {
		scaled := scale(img, size)
		if err := p.writePNG(scaled, dsts[i]); err != nil {
			return false, err
		}
		if err := p.optimizer.Optimize(dsts[i]); err != nil {
			return false, err
		}
	}

	return true, nil
}

// decode reads the source image. The ok result is false when the file
// exists but does not decode as an image.
func (p *Processor) decode(src string) (image.Image, bool, error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open source image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		p.logger.Warn().
			Str("src", src).
			Err(err).
			Msg("Source is not a valid image, skipping")
		return nil, false, nil
	}

	return img, true, nil
}

func (p *Processor) writePNG(img image.Image, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create destination image: %w", err)
	}
	defer out.Close()

	if err := png.Encode(out, img); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}

	return nil
}

func scale(img image.Image, size image.Point) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Over, nil)
	return dst
}
