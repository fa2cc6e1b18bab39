package images

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingOptimizer records the paths it was asked to optimize.
type recordingOptimizer struct {
	paths []string
	err   error
}

func (o *recordingOptimizer) Optimize(path string) error {
	o.paths = append(o.paths, path)
	return o.err
}

func testLogger() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

func writeTestPNG(t *testing.T, path string, width, height int) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func decodePNG(t *testing.T, path string) image.Image {
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	img, err := png.Decode(f)
	require.NoError(t, err)
	return img
}

func TestProcessor_CreatePreviewImages(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "header.png")
	writeTestPNG(t, src, 1000, 200)

	optimizer := &recordingOptimizer{}
	processor := NewProcessor(optimizer, testLogger())

	dsts := []string{
		filepath.Join(dir, "previews", "header.png"),
		filepath.Join(dir, "previews", "icon.png"),
	}
	written, err := processor.CreatePreviewImages(src, dsts)
	require.NoError(t, err)
	assert.True(t, written)

	header := decodePNG(t, dsts[0])
	assert.Equal(t, 680, header.Bounds().Dx())
	assert.Equal(t, 100, header.Bounds().Dy())

	icon := decodePNG(t, dsts[1])
	assert.Equal(t, 32, icon.Bounds().Dx())
	assert.Equal(t, 32, icon.Bounds().Dy())

	assert.Equal(t, dsts, optimizer.paths)
}

func TestProcessor_CreatePreviewImages_InvalidSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "not-an-image.png")
	require.NoError(t, os.WriteFile(src, []byte("plain text"), 0o644))

	optimizer := &recordingOptimizer{}
	processor := NewProcessor(optimizer, testLogger())

	dsts := []string{
		filepath.Join(dir, "previews", "header.png"),
		filepath.Join(dir, "previews", "icon.png"),
	}
	written, err := processor.CreatePreviewImages(src, dsts)
	require.NoError(t, err)
	assert.False(t, written)

	// Nothing written and the optimizer never ran
	for _, dst := range dsts {
		_, err := os.Stat(dst)
		assert.True(t, os.IsNotExist(err))
	}
	assert.Empty(t, optimizer.paths)
}

func TestProcessor_CreatePreviewImages_WrongDestinationCount(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "header.png")
	writeTestPNG(t, src, 100, 100)

	processor := NewProcessor(NoopOptimizer{}, testLogger())

	_, err := processor.CreatePreviewImages(src, []string{filepath.Join(dir, "only-one.png")})
	require.Error(t, err)
}

func TestProcessor_CreatePreviewImages_MissingSource(t *testing.T) {
	dir := t.TempDir()
	processor := NewProcessor(NoopOptimizer{}, testLogger())

	dsts := []string{
		filepath.Join(dir, "header.png"),
		filepath.Join(dir, "icon.png"),
	}
	_, err := processor.CreatePreviewImages(filepath.Join(dir, "missing.png"), dsts)
	require.Error(t, err)
}

func TestProcessor_SaveThemeImage(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "artwork.png")
	writeTestPNG(t, src, 64, 64)

	optimizer := &recordingOptimizer{}
	processor := NewProcessor(optimizer, testLogger())

	dst := filepath.Join(dir, "saved", "artwork.png")
	require.NoError(t, processor.SaveThemeImage(src, dst))

	img := decodePNG(t, dst)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, []string{dst}, optimizer.paths)
}

func TestProcessor_SaveThemeImage_InvalidSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "bogus.png")
	require.NoError(t, os.WriteFile(src, []byte{0x00, 0x01, 0x02}, 0o644))

	optimizer := &recordingOptimizer{}
	processor := NewProcessor(optimizer, testLogger())

	dst := filepath.Join(dir, "saved.png")
	require.NoError(t, processor.SaveThemeImage(src, dst))

	_, err := os.Stat(dst)
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, optimizer.paths)
}
