// Package grid partitions the tray region of an image into row/column
// cavities and renders guidance overlays on copies of that image.
//
// A grid is defined in one of two ways: from a rectified image, where the
// tray region is the image minus its margins, or from operator-supplied
// percentage bounds. Both reduce to a pixel Region, and Partition tiles any
// Region the same way.
package grid

import (
	"errors"
	"fmt"
	"image"

	"github.com/menta2k/seedtray-annotator/pkg/rectify"
)

var (
	// ErrInvalidSpec reports a non-positive row or column count
	ErrInvalidSpec = errors.New("invalid grid spec")
	// ErrInvalidRegion reports a region that cannot hold the requested grid
	ErrInvalidRegion = errors.New("invalid grid region")
)

// Spec is the logical cavity layout of a tray
type Spec struct {
	Rows int `json:"nrows"`
	Cols int `json:"ncols"`
}

// Validate checks that both dimensions are positive
func (s Spec) Validate() error {
	if s.Rows < 1 || s.Cols < 1 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSpec, s.Rows, s.Cols)
	}
	return nil
}

// Cells returns Rows * Cols
func (s Spec) Cells() int {
	return s.Rows * s.Cols
}

func (s Spec) String() string {
	return fmt.Sprintf("%dx%d", s.Rows, s.Cols)
}

// Region is the pixel area that gets tiled into cells
type Region struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect returns the region as an image.Rectangle
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.Left, r.Top, r.Left+r.Width, r.Top+r.Height)
}

// FromRectified returns the inner tray region of a rectified image
func FromRectified(r *rectify.RectifiedImage) Region {
	return Region{
		Left:   r.Margins.Left,
		Top:    r.Margins.Top,
		Width:  r.FinalWidth - r.Margins.Left - r.Margins.Right,
		Height: r.FinalHeight - r.Margins.Top - r.Margins.Bottom,
	}
}

// PercentBounds places a grid manually as percentages of the image size.
// Width and Height may exceed 100; the region is cut at the image edge.
type PercentBounds struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DefaultPercentBounds matches the slider defaults: 5% inset, 90% extent
func DefaultPercentBounds() PercentBounds {
	return PercentBounds{Left: 5, Top: 5, Width: 90, Height: 90}
}

// FromPercent converts percentage bounds into a pixel region of an
// imgW x imgH image
func FromPercent(imgW, imgH int, pb PercentBounds) (Region, error) {
	if pb.Left < 0 || pb.Left > 100 || pb.Top < 0 || pb.Top > 100 {
		return Region{}, fmt.Errorf("%w: offset %.1f%%,%.1f%% outside 0..100", ErrInvalidRegion, pb.Left, pb.Top)
	}
	if pb.Width <= 0 || pb.Height <= 0 {
		return Region{}, fmt.Errorf("%w: extent %.1f%%x%.1f%% must be positive", ErrInvalidRegion, pb.Width, pb.Height)
	}

	left := int(pb.Left * float64(imgW) / 100)
	top := int(pb.Top * float64(imgH) / 100)
	width := min(imgW-left, int(pb.Width*float64(imgW)/100))
	height := min(imgH-top, int(pb.Height*float64(imgH)/100))

	if width <= 0 || height <= 0 {
		return Region{}, fmt.Errorf("%w: bounds leave an empty %dx%d region", ErrInvalidRegion, width, height)
	}
	return Region{Left: left, Top: top, Width: width, Height: height}, nil
}

// CellRect is the half-open pixel rectangle [X1,X2) x [Y1,Y2) of cell (Row, Col)
type CellRect struct {
	Row int `json:"row"`
	Col int `json:"col"`
	X1  int `json:"x1"`
	Y1  int `json:"y1"`
	X2  int `json:"x2"`
	Y2  int `json:"y2"`
}

// Rect returns the cell as an image.Rectangle
func (c CellRect) Rect() image.Rectangle {
	return image.Rect(c.X1, c.Y1, c.X2, c.Y2)
}

// Width returns X2 - X1
func (c CellRect) Width() int { return c.X2 - c.X1 }

// Height returns Y2 - Y1
func (c CellRect) Height() int { return c.Y2 - c.Y1 }

// Partition tiles region into spec.Rows x spec.Cols cells in row-major
// order. Cells are floor(width/cols) by floor(height/rows) pixels; the last
// column and row stretch to the region edge so every pixel belongs to exactly
// one cell.
func Partition(region Region, spec Spec) ([]CellRect, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if region.Width < spec.Cols || region.Height < spec.Rows {
		return nil, fmt.Errorf("%w: %dx%d px cannot hold %s cells", ErrInvalidRegion, region.Width, region.Height, spec)
	}

	cellW := region.Width / spec.Cols
	cellH := region.Height / spec.Rows
	right := region.Left + region.Width
	bottom := region.Top + region.Height

	cells := make([]CellRect, 0, spec.Cells())
	for r := 0; r < spec.Rows; r++ {
		y1 := region.Top + r*cellH
		y2 := y1 + cellH
		if r == spec.Rows-1 {
			y2 = bottom
		}
		for c := 0; c < spec.Cols; c++ {
			x1 := region.Left + c*cellW
			x2 := x1 + cellW
			if c == spec.Cols-1 {
				x2 = right
			}
			cells = append(cells, CellRect{Row: r, Col: c, X1: x1, Y1: y1, X2: x2, Y2: y2})
		}
	}
	return cells, nil
}

// PartitionRectified tiles the inner region of a rectified image
func PartitionRectified(r *rectify.RectifiedImage, spec Spec) ([]CellRect, error) {
	return Partition(FromRectified(r), spec)
}

// CellAt returns the cell containing pixel (x, y), if any
func CellAt(cells []CellRect, x, y int) (CellRect, bool) {
	p := image.Pt(x, y)
	for _, c := range cells {
		if p.In(c.Rect()) {
			return c, true
		}
	}
	return CellRect{}, false
}
