// Package geometry provides point math, tray dimension estimation, margin
// computation and the projective transform used to rectify tray photographs.
package geometry

import (
	"errors"
	"fmt"
	"math"
)

// ErrDegenerateGeometry reports corner points that cannot define a transform
// (collinear, coincident, or yielding a zero-sized tray)
var ErrDegenerateGeometry = errors.New("degenerate corner selection")

// Point is a 2D coordinate in source-image pixel space
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Sub returns p - other
func (p Point) Sub(other Point) Point {
	return Point{X: p.X - other.X, Y: p.Y - other.Y}
}

// Cross returns the z component of the cross product of p and other
func (p Point) Cross(other Point) float64 {
	return p.X*other.Y - p.Y*other.X
}

// Distance returns the Euclidean distance between two points
func Distance(p1, p2 Point) float64 {
	return math.Hypot(p1.X-p2.X, p1.Y-p2.Y)
}

// Corners holds the four user-selected tray corners in clockwise order:
// top-left, top-right, bottom-right, bottom-left. The order is a caller
// contract; a wrong order produces a distorted rectification, not an error.
type Corners [4]Point

// TopLeft returns the first corner
func (c Corners) TopLeft() Point { return c[0] }

// TopRight returns the second corner
func (c Corners) TopRight() Point { return c[1] }

// BottomRight returns the third corner
func (c Corners) BottomRight() Point { return c[2] }

// BottomLeft returns the fourth corner
func (c Corners) BottomLeft() Point { return c[3] }

// EstimateDimensions returns the unpadded tray size in pixels. Each side is
// the longer of its two opposite edges, which compensates for the near edge
// of a skewed photo appearing longer than the far one.
func EstimateDimensions(c Corners) (rawWidth, rawHeight int) {
	wA := Distance(c.BottomLeft(), c.BottomRight())
	wB := Distance(c.TopLeft(), c.TopRight())
	hA := Distance(c.TopRight(), c.BottomRight())
	hB := Distance(c.TopLeft(), c.BottomLeft())

	return int(math.Max(wA, wB)), int(math.Max(hA, hB))
}

// Margins are the buffers added around a rectified tray so edge cavities
// survive small alignment errors
type Margins struct {
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
	Right  int `json:"right"`
}

const (
	verticalMarginDivisor   = 14
	horizontalMarginDivisor = 7
)

// ComputeMargins returns floor(rawHeight/14) for top and bottom and
// floor(rawWidth/7) for left and right. A zero raw dimension means the corner
// selection collapsed and is reported as ErrDegenerateGeometry.
func ComputeMargins(rawWidth, rawHeight int) (Margins, error) {
	if rawWidth <= 0 || rawHeight <= 0 {
		return Margins{}, fmt.Errorf("%w: raw size %dx%d", ErrDegenerateGeometry, rawWidth, rawHeight)
	}

	v := rawHeight / verticalMarginDivisor
	h := rawWidth / horizontalMarginDivisor
	return Margins{Top: v, Bottom: v, Left: h, Right: h}, nil
}

// Horizontal returns Left + Right
func (m Margins) Horizontal() int {
	return m.Left + m.Right
}

// Vertical returns Top + Bottom
func (m Margins) Vertical() int {
	return m.Top + m.Bottom
}

// minCornerSpacing is the smallest distance, in pixels, two corners may be apart
const minCornerSpacing = 1.0

// ValidateCorners rejects selections where two corners nearly coincide or
// any three corners are collinear
func ValidateCorners(c Corners) error {
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			if Distance(c[i], c[j]) < minCornerSpacing {
				return fmt.Errorf("%w: corners %d and %d are too close", ErrDegenerateGeometry, i+1, j+1)
			}
		}
	}

	span := 0.0
	for i := 0; i < 4; i++ {
		span = math.Max(span, Distance(c[i], c[(i+2)%4]))
	}
	tolerance := 1e-6 * span * span

	for skip := 0; skip < 4; skip++ {
		var tri []Point
		for i := 0; i < 4; i++ {
			if i != skip {
				tri = append(tri, c[i])
			}
		}
		area2 := tri[1].Sub(tri[0]).Cross(tri[2].Sub(tri[0]))
		if math.Abs(area2) <= tolerance {
			return fmt.Errorf("%w: three corners are collinear", ErrDegenerateGeometry)
		}
	}
	return nil
}
