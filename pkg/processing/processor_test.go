package processing

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/seedtray-annotator/pkg/geometry"
)

// createTestImage creates an image with a red top-left pixel
func createTestImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 200, 200, 200, 255
	}
	img.SetNRGBA(0, 0, color.NRGBA{255, 0, 0, 255})
	return img
}

func TestDecode(t *testing.T) {
	p := NewProcessor(16)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, createTestImage(40, 20)))
	img, err := p.Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 20), img.Bounds())

	buf.Reset()
	require.NoError(t, jpeg.Encode(&buf, createTestImage(32, 32), nil))
	_, err = p.Decode(buf.Bytes())
	require.NoError(t, err)

	_, err = p.Decode([]byte("not an image"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDecodeRejectsTinyImages(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, createTestImage(8, 100)))

	_, err := NewProcessor(16).Decode(buf.Bytes())
	assert.ErrorIs(t, err, ErrImageTooSmall)
}

func TestRotateClockwise(t *testing.T) {
	src := createTestImage(4, 2)
	red := color.NRGBA{255, 0, 0, 255}

	tests := []struct {
		degrees int
		size    image.Point
		redAt   image.Point
	}{
		{0, image.Pt(4, 2), image.Pt(0, 0)},
		{90, image.Pt(2, 4), image.Pt(1, 0)},
		{180, image.Pt(4, 2), image.Pt(3, 1)},
		{270, image.Pt(2, 4), image.Pt(0, 3)},
		{-90, image.Pt(2, 4), image.Pt(0, 3)},
	}

	for _, tt := range tests {
		out, err := Rotate(src, tt.degrees)
		require.NoError(t, err)
		assert.Equal(t, tt.size, out.Bounds().Size(), "rotate %d", tt.degrees)
		assert.Equal(t, red, out.NRGBAAt(tt.redAt.X, tt.redAt.Y), "rotate %d", tt.degrees)
	}

	_, err := Rotate(src, 45)
	assert.ErrorIs(t, err, ErrInvalidRotation)
}

func TestDisplayScale(t *testing.T) {
	assert.Equal(t, 1.0, DisplayScale(640, 800))
	assert.Equal(t, 0.5, DisplayScale(1600, 800))
	assert.Equal(t, 1.0, DisplayScale(1600, 0))

	p := FromDisplay(geometry.Pt(100, 50), 0.5)
	assert.Equal(t, geometry.Pt(200, 100), p)
}

func TestThumbnail(t *testing.T) {
	out := Thumbnail(createTestImage(1600, 800), 800)
	assert.Equal(t, image.Rect(0, 0, 800, 400), out.Bounds())

	out = Thumbnail(createTestImage(100, 80), 800)
	assert.Equal(t, image.Rect(0, 0, 100, 80), out.Bounds())
}

func TestEncode(t *testing.T) {
	img := createTestImage(20, 20)
	for _, format := range []string{"png", "jpg", "webp"} {
		var buf bytes.Buffer
		require.NoError(t, Encode(&buf, img, format, 90), format)
		assert.NotZero(t, buf.Len(), format)
	}

	assert.Error(t, Encode(&bytes.Buffer{}, img, "bmp", 90))
}

func TestSaveAndLoadImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tray.png")
	p := NewProcessor(1)

	require.NoError(t, p.SaveImage(createTestImage(30, 10), path, "png", 90, false))
	img, raw, err := p.LoadImageSmart(path)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 30, 10), img.Bounds())

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, onDisk, raw)

	_, _, err = p.LoadImage(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}

func TestReadSourceDoesNotDecode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.png")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0644))
	p := NewProcessor(1)

	data, err := p.ReadSource(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("not an image"), data)

	_, _, err = p.LoadImageSmart(path)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = p.ReadSource(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
	_, err = p.ReadSource("ftp://example.com/tray.png")
	assert.Error(t, err)
}
