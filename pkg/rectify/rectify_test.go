package rectify

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/seedtray-annotator/pkg/geometry"
)

// createTestImage creates a tray-like image: dark background with a bright
// rectangle occupying the tray area
func createTestImage(width, height int, tray image.Rectangle) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if (image.Point{x, y}).In(tray) {
				img.Set(x, y, color.NRGBA{200, 220, 180, 255})
			} else {
				img.Set(x, y, color.NRGBA{40, 40, 40, 255})
			}
		}
	}
	return img
}

func TestRectifyScenarioDimensions(t *testing.T) {
	src := createTestImage(101, 201, image.Rect(0, 0, 101, 201))
	corners := geometry.Corners{
		geometry.Pt(0, 0), geometry.Pt(100, 0), geometry.Pt(100, 200), geometry.Pt(0, 200),
	}

	out, err := New().Rectify(src, corners)
	require.NoError(t, err)

	assert.Equal(t, 100, out.RawWidth)
	assert.Equal(t, 200, out.RawHeight)
	assert.Equal(t, geometry.Margins{Top: 14, Bottom: 14, Left: 14, Right: 14}, out.Margins)
	assert.Equal(t, 128, out.FinalWidth)
	assert.Equal(t, 228, out.FinalHeight)
	assert.Equal(t, image.Rect(0, 0, 128, 228), out.Image.Bounds())
	assert.Equal(t, image.Rect(14, 14, 114, 214), out.Inner())
}

func TestRectifyMarginInvariant(t *testing.T) {
	src := createTestImage(640, 480, image.Rect(80, 60, 560, 420))
	selections := []geometry.Corners{
		{geometry.Pt(80, 60), geometry.Pt(560, 60), geometry.Pt(560, 420), geometry.Pt(80, 420)},
		{geometry.Pt(95, 70), geometry.Pt(540, 55), geometry.Pt(575, 430), geometry.Pt(70, 410)},
		{geometry.Pt(300, 10), geometry.Pt(620, 200), geometry.Pt(330, 470), geometry.Pt(15, 260)},
	}

	r := New()
	for i, c := range selections {
		out, err := r.Rectify(src, c)
		require.NoError(t, err, "selection %d", i)

		assert.Equal(t, out.RawWidth+out.Margins.Left+out.Margins.Right, out.FinalWidth, "selection %d", i)
		assert.Equal(t, out.RawHeight+out.Margins.Top+out.Margins.Bottom, out.FinalHeight, "selection %d", i)
		assert.Equal(t, out.RawHeight/14, out.Margins.Top)
		assert.Equal(t, out.RawWidth/7, out.Margins.Left)
		assert.Equal(t, out.FinalWidth, out.Image.Bounds().Dx())
		assert.Equal(t, out.FinalHeight, out.Image.Bounds().Dy())
	}
}

func TestRectifyFillsMarginsWithBackground(t *testing.T) {
	src := createTestImage(300, 300, image.Rect(0, 0, 300, 300))
	corners := geometry.Corners{
		geometry.Pt(50, 50), geometry.Pt(250, 50), geometry.Pt(250, 250), geometry.Pt(50, 250),
	}

	cfg := DefaultConfig()
	cfg.Background = color.NRGBA{255, 0, 255, 255}
	out, err := NewWithConfig(cfg).Rectify(src, corners)
	require.NoError(t, err)

	// The selection sits inside the source, so margins pick up source pixels
	// rather than background.
	assert.Equal(t, color.NRGBA{200, 220, 180, 255}, out.Image.NRGBAAt(2, 2))

	edge := geometry.Corners{
		geometry.Pt(0, 0), geometry.Pt(299, 0), geometry.Pt(299, 299), geometry.Pt(0, 299),
	}
	out, err = NewWithConfig(cfg).Rectify(src, edge)
	require.NoError(t, err)
	assert.Equal(t, cfg.Background, out.Image.NRGBAAt(0, 0))
	inner := out.Inner()
	assert.Equal(t, color.NRGBA{200, 220, 180, 255}, out.Image.NRGBAAt(inner.Min.X+5, inner.Min.Y+5))
}

func TestRectifyDoesNotMutateSource(t *testing.T) {
	src := createTestImage(120, 120, image.Rect(10, 10, 110, 110))
	before := append([]uint8(nil), src.Pix...)

	_, err := New().Rectify(src, geometry.Corners{
		geometry.Pt(10, 10), geometry.Pt(110, 12), geometry.Pt(108, 110), geometry.Pt(12, 108),
	})
	require.NoError(t, err)
	assert.Equal(t, before, src.Pix)
}

func TestRectifyDegenerate(t *testing.T) {
	src := createTestImage(100, 100, image.Rect(0, 0, 100, 100))
	tests := []struct {
		name    string
		corners geometry.Corners
	}{
		{"collinear", geometry.Corners{geometry.Pt(0, 0), geometry.Pt(30, 30), geometry.Pt(60, 60), geometry.Pt(90, 90)}},
		{"coincident", geometry.Corners{geometry.Pt(5, 5), geometry.Pt(5, 5), geometry.Pt(5, 5), geometry.Pt(5, 5)}},
		{"three on a line", geometry.Corners{geometry.Pt(0, 0), geometry.Pt(50, 0), geometry.Pt(99, 0), geometry.Pt(0, 80)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := New().Rectify(src, tt.corners)
			assert.Nil(t, out)
			assert.ErrorIs(t, err, geometry.ErrDegenerateGeometry)
		})
	}
}

func TestRectifyTrapezoid(t *testing.T) {
	src := createTestImage(400, 300, image.Rect(0, 40, 310, 160))
	corners := geometry.Corners{
		geometry.Pt(100, 50), geometry.Pt(200, 50), geometry.Pt(300, 150), geometry.Pt(0, 150),
	}

	out, err := New().Rectify(src, corners)
	require.NoError(t, err)
	assert.Equal(t, 384, out.FinalWidth)
	assert.Equal(t, 161, out.FinalHeight)

	inner := out.Inner()
	center := image.Pt((inner.Min.X+inner.Max.X)/2, (inner.Min.Y+inner.Max.Y)/2)
	assert.Equal(t, color.NRGBA{200, 220, 180, 255}, out.Image.NRGBAAt(center.X, center.Y))
}

func TestRectifySubImageUsesSourceCoordinates(t *testing.T) {
	base := createTestImage(400, 400, image.Rect(150, 150, 250, 250))
	sub := base.SubImage(image.Rect(100, 100, 300, 300))
	corners := geometry.Corners{
		geometry.Pt(150, 150), geometry.Pt(249, 150), geometry.Pt(249, 249), geometry.Pt(150, 249),
	}

	out, err := New().Rectify(sub, corners)
	require.NoError(t, err)

	inner := out.Inner()
	center := image.Pt((inner.Min.X+inner.Max.X)/2, (inner.Min.Y+inner.Max.Y)/2)
	assert.Equal(t, color.NRGBA{200, 220, 180, 255}, out.Image.NRGBAAt(center.X, center.Y))
}

func TestBilinearWarperIdentity(t *testing.T) {
	src := createTestImage(40, 30, image.Rect(10, 10, 30, 20))
	identity := geometry.Homography{1, 0, 0, 0, 1, 0, 0, 0, 1}

	out, err := NewBilinearWarper(3).Warp(src, identity, 40, 30, color.NRGBA{})
	require.NoError(t, err)
	assert.Equal(t, src.Pix, out.Pix)
}

func BenchmarkRectify(b *testing.B) {
	src := createTestImage(1600, 1200, image.Rect(200, 150, 1400, 1050))
	corners := geometry.Corners{
		geometry.Pt(210, 140), geometry.Pt(1390, 160), geometry.Pt(1410, 1060), geometry.Pt(190, 1040),
	}
	r := New()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.Rectify(src, corners)
	}
}
