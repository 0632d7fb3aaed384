package grid

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/seedtray-annotator/pkg/geometry"
	"github.com/menta2k/seedtray-annotator/pkg/rectify"
)

// createTestImage creates a flat grey image
func createTestImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 90, 90, 90, 255
	}
	return img
}

func TestPartitionExactCells(t *testing.T) {
	region := Region{Left: 100, Top: 100, Width: 700, Height: 1400}
	cells, err := Partition(region, Spec{Rows: 14, Cols: 7})
	require.NoError(t, err)
	require.Len(t, cells, 98)

	for _, c := range cells {
		assert.Equal(t, 100, c.Width(), "cell (%d,%d)", c.Row, c.Col)
		assert.Equal(t, 100, c.Height(), "cell (%d,%d)", c.Row, c.Col)
	}
	assert.Equal(t, CellRect{Row: 0, Col: 0, X1: 100, Y1: 100, X2: 200, Y2: 200}, cells[0])
	assert.Equal(t, CellRect{Row: 13, Col: 6, X1: 700, Y1: 1400, X2: 800, Y2: 1500}, cells[97])
}

func TestPartitionTilesRegion(t *testing.T) {
	regions := []Region{
		{Left: 0, Top: 0, Width: 101, Height: 203},
		{Left: 14, Top: 14, Width: 100, Height: 200},
		{Left: 3, Top: 7, Width: 37, Height: 29},
	}
	specs := []Spec{{1, 1}, {14, 7}, {3, 5}, {16, 9}, {29, 37}}

	for _, region := range regions {
		for _, spec := range specs {
			if region.Width < spec.Cols || region.Height < spec.Rows {
				continue
			}
			cells, err := Partition(region, spec)
			require.NoError(t, err)
			require.Len(t, cells, spec.Cells())

			covered := make(map[image.Point]int)
			for _, c := range cells {
				for y := c.Y1; y < c.Y2; y++ {
					for x := c.X1; x < c.X2; x++ {
						covered[image.Pt(x, y)]++
					}
				}
			}
			assert.Len(t, covered, region.Width*region.Height, "region %+v spec %s", region, spec)
			for p, n := range covered {
				if !assert.Equal(t, 1, n, "pixel %v covered %d times", p, n) {
					break
				}
				assert.True(t, p.In(region.Rect()))
			}

			for r := 0; r < spec.Rows; r++ {
				sum := 0
				for c := 0; c < spec.Cols; c++ {
					sum += cells[r*spec.Cols+c].Width()
				}
				assert.Equal(t, region.Width, sum)
			}
			for c := 0; c < spec.Cols; c++ {
				sum := 0
				for r := 0; r < spec.Rows; r++ {
					sum += cells[r*spec.Cols+c].Height()
				}
				assert.Equal(t, region.Height, sum)
			}
		}
	}
}

func TestPartitionLastCellAbsorbsRemainder(t *testing.T) {
	cells, err := Partition(Region{Width: 10, Height: 10}, Spec{Rows: 3, Cols: 3})
	require.NoError(t, err)

	assert.Equal(t, 3, cells[0].Width())
	assert.Equal(t, 4, cells[2].Width())
	assert.Equal(t, 4, cells[8].Height())
}

func TestPartitionErrors(t *testing.T) {
	_, err := Partition(Region{Width: 10, Height: 10}, Spec{Rows: 0, Cols: 3})
	assert.ErrorIs(t, err, ErrInvalidSpec)

	_, err = Partition(Region{Width: 2, Height: 10}, Spec{Rows: 3, Cols: 3})
	assert.ErrorIs(t, err, ErrInvalidRegion)
}

func TestFromRectified(t *testing.T) {
	r := &rectify.RectifiedImage{
		RawWidth: 100, RawHeight: 200,
		FinalWidth: 128, FinalHeight: 228,
		Margins: geometry.Margins{Top: 14, Bottom: 14, Left: 14, Right: 14},
	}
	assert.Equal(t, Region{Left: 14, Top: 14, Width: 100, Height: 200}, FromRectified(r))
}

func TestFromPercent(t *testing.T) {
	region, err := FromPercent(1000, 2000, DefaultPercentBounds())
	require.NoError(t, err)
	assert.Equal(t, Region{Left: 50, Top: 100, Width: 900, Height: 1800}, region)

	// Oversized extents are cut at the image edge.
	region, err = FromPercent(1000, 2000, PercentBounds{Left: 50, Top: 50, Width: 200, Height: 200})
	require.NoError(t, err)
	assert.Equal(t, Region{Left: 500, Top: 1000, Width: 500, Height: 1000}, region)

	_, err = FromPercent(1000, 2000, PercentBounds{Left: 100, Top: 0, Width: 50, Height: 50})
	assert.ErrorIs(t, err, ErrInvalidRegion)

	_, err = FromPercent(1000, 2000, PercentBounds{Left: -1, Top: 0, Width: 50, Height: 50})
	assert.ErrorIs(t, err, ErrInvalidRegion)
}

func TestBothModesShareTiling(t *testing.T) {
	spec := Spec{Rows: 4, Cols: 3}
	viaPercent, err := FromPercent(200, 400, PercentBounds{Left: 10, Top: 10, Width: 60, Height: 50})
	require.NoError(t, err)

	a, err := Partition(viaPercent, spec)
	require.NoError(t, err)
	b, err := Partition(Region{Left: 20, Top: 40, Width: 120, Height: 200}, spec)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCellAt(t *testing.T) {
	cells, err := Partition(Region{Left: 10, Top: 10, Width: 30, Height: 20}, Spec{Rows: 2, Cols: 3})
	require.NoError(t, err)

	c, ok := CellAt(cells, 25, 29)
	require.True(t, ok)
	assert.Equal(t, 1, c.Row)
	assert.Equal(t, 1, c.Col)

	_, ok = CellAt(cells, 9, 10)
	assert.False(t, ok)
	_, ok = CellAt(cells, 40, 10)
	assert.False(t, ok)
}

func TestRenderOverlayDoesNotMutateSource(t *testing.T) {
	src := createTestImage(128, 228)
	before := append([]uint8(nil), src.Pix...)
	cells, err := Partition(Region{Left: 14, Top: 14, Width: 100, Height: 200}, Spec{Rows: 4, Cols: 2})
	require.NoError(t, err)

	out, err := RenderOverlay(src, cells, DefaultStyle())
	require.NoError(t, err)

	assert.Equal(t, before, src.Pix)
	assert.Equal(t, src.Bounds(), out.Bounds())

	green := color.NRGBA{0, 255, 0, 255}
	// internal vertical boundary at x = 64, away from the tag in the top-left
	assert.Equal(t, green, out.NRGBAAt(64, 150))
	// outer border
	assert.Equal(t, green, out.NRGBAAt(14, 150))
	assert.Equal(t, green, out.NRGBAAt(113, 150))
	// outside the grid stays untouched
	assert.Equal(t, color.NRGBA{90, 90, 90, 255}, out.NRGBAAt(5, 5))
	// the tag box padding left of the text is white
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, out.NRGBAAt(16, 30))
}

func TestRenderOverlayRejectsBadStyle(t *testing.T) {
	cells, err := Partition(Region{Width: 10, Height: 10}, Spec{Rows: 1, Cols: 1})
	require.NoError(t, err)

	_, err = RenderOverlay(createTestImage(10, 10), cells, Style{Thickness: 0})
	assert.Error(t, err)
	_, err = RenderOverlay(createTestImage(10, 10), nil, DefaultStyle())
	assert.ErrorIs(t, err, ErrInvalidRegion)
}

func TestRenderRejectsPartialCells(t *testing.T) {
	src := createTestImage(40, 40)
	cells, err := Partition(Region{Width: 40, Height: 40}, Spec{Rows: 2, Cols: 2})
	require.NoError(t, err)

	partial := [][]CellRect{
		cells[3:],
		cells[1:],
		cells[:3],
		{cells[1], cells[0], cells[2], cells[3]},
	}
	for i, p := range partial {
		_, err := RenderOverlay(src, p, DefaultStyle())
		assert.ErrorIs(t, err, ErrInvalidRegion, "overlay %d", i)
		_, err = ContextView(src, p, 0, 0, "")
		assert.ErrorIs(t, err, ErrInvalidRegion, "context %d", i)
	}
}

func TestRenderStatus(t *testing.T) {
	src := createTestImage(40, 20)
	cells, err := Partition(Region{Width: 40, Height: 20}, Spec{Rows: 1, Cols: 2})
	require.NoError(t, err)

	red := color.NRGBA{255, 0, 0, 255}
	blue := color.NRGBA{0, 0, 255, 255}
	out := RenderStatus(src, cells, func(row, col int) color.NRGBA {
		if col == 0 {
			return red
		}
		return blue
	})

	assert.Equal(t, red, out.NRGBAAt(0, 10))
	assert.Equal(t, blue, out.NRGBAAt(39, 10))
	assert.Equal(t, color.NRGBA{90, 90, 90, 255}, out.NRGBAAt(10, 10))
	assert.Equal(t, color.NRGBA{90, 90, 90, 255}, src.NRGBAAt(0, 10))
}

func TestContextView(t *testing.T) {
	src := createTestImage(60, 60)
	cells, err := Partition(Region{Width: 60, Height: 60}, Spec{Rows: 3, Cols: 3})
	require.NoError(t, err)

	view, err := ContextView(src, cells, 0, 0, "")
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 60, 60+contextCaptionHeight), view.Bounds())

	// top-left neighbor of (0,0) is off-tray
	assert.Equal(t, offTrayFill, view.NRGBAAt(5, contextCaptionHeight+5))
	// bottom-right neighbor (1,1) is tray pixels
	assert.Equal(t, color.NRGBA{90, 90, 90, 255}, view.NRGBAAt(50, contextCaptionHeight+50))
	// yellow frame just outside the center cell
	assert.Equal(t, contextCenter, view.NRGBAAt(20-1, contextCaptionHeight+30))

	_, err = ContextView(src, cells, 3, 0, "")
	assert.ErrorIs(t, err, ErrInvalidRegion)
}

func TestParseHexColor(t *testing.T) {
	c, err := ParseHexColor("#00FF00")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{0, 255, 0, 255}, c)

	c, err = ParseHexColor("ff000080")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{255, 0, 0, 128}, c)

	_, err = ParseHexColor("#12")
	assert.Error(t, err)
}

func BenchmarkRenderOverlay(b *testing.B) {
	src := createTestImage(1200, 2000)
	cells, _ := Partition(Region{Left: 100, Top: 100, Width: 1000, Height: 1800}, Spec{Rows: 14, Cols: 7})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		RenderOverlay(src, cells, DefaultStyle())
	}
}
