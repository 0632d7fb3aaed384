package grid

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Style controls the guidance overlay
type Style struct {
	Color     color.NRGBA
	Thickness int
	// LabelSize is the "[r,c]" tag height in pixels; 0 disables tags
	LabelSize float64
}

// DefaultStyle returns green 2px lines with 18px tags
func DefaultStyle() Style {
	return Style{
		Color:     color.NRGBA{0, 255, 0, 255},
		Thickness: 2,
		LabelSize: 18,
	}
}

// borderExtra is how much thicker the outer border is than internal lines
const borderExtra = 3

var (
	tagForeground = color.NRGBA{0, 0, 0, 255}
	tagBackground = color.NRGBA{255, 255, 255, 255}
)

// RenderOverlay returns a copy of img with gridlines at every internal cell
// boundary, an outer border, and a 1-indexed "[r,c]" tag in the top-left
// corner of each cell. img is never modified.
func RenderOverlay(img image.Image, cells []CellRect, style Style) (*image.NRGBA, error) {
	rows, cols, err := gridDims(cells)
	if err != nil {
		return nil, err
	}
	if style.Thickness < 1 {
		return nil, fmt.Errorf("line thickness must be positive, got %d", style.Thickness)
	}

	out := imaging.Clone(img)
	area := bounds(cells)

	for c := 1; c < cols; c++ {
		vLine(out, cells[c].X1, area.Min.Y, area.Max.Y, style.Thickness, style.Color)
	}
	for r := 1; r < rows; r++ {
		hLine(out, cells[r*cols].Y1, area.Min.X, area.Max.X, style.Thickness, style.Color)
	}
	strokeRect(out, area, style.Color, style.Thickness+borderExtra)

	if style.LabelSize > 0 {
		face, err := labelFace(style.LabelSize)
		if err != nil {
			return nil, err
		}
		defer face.Close()

		for _, cell := range cells {
			tag := fmt.Sprintf("[%d,%d]", cell.Row+1, cell.Col+1)
			drawTag(out, face, cell.X1+4, cell.Y1+4, tag, tagForeground, tagBackground, 3)
		}
	}
	return out, nil
}

// Palette maps a cell to its status color
type Palette func(row, col int) color.NRGBA

// statusStroke matches the preview border width of the export review screen
const statusStroke = 6

// RenderStatus returns a copy of img with each cell outlined in the color the
// palette assigns to it. It is a preview aid only.
func RenderStatus(img image.Image, cells []CellRect, palette Palette) *image.NRGBA {
	out := imaging.Clone(img)
	for _, cell := range cells {
		strokeRect(out, cell.Rect(), palette(cell.Row, cell.Col), statusStroke)
	}
	return out
}
