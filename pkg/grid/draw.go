package grid

import (
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"
	"sync"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

var (
	parsedFont     *opentype.Font
	parsedFontErr  error
	parsedFontOnce sync.Once
)

// labelFace returns the Go Regular face at size points (72 DPI, so points == pixels)
func labelFace(size float64) (font.Face, error) {
	parsedFontOnce.Do(func() {
		parsedFont, parsedFontErr = opentype.Parse(goregular.TTF)
	})
	if parsedFontErr != nil {
		return nil, fmt.Errorf("failed to parse label font: %w", parsedFontErr)
	}
	return opentype.NewFace(parsedFont, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// ParseHexColor parses "#RRGGBB" or "#RRGGBBAA"
func ParseHexColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 && len(hex) != 8 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: want #RRGGBB", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	if len(hex) == 6 {
		v = v<<8 | 0xff
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

func fillRect(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	xdraw.Draw(img, r, image.NewUniform(c), image.Point{}, xdraw.Over)
}

// strokeRect outlines r with stroke pixels drawn inward from its edges
func strokeRect(img *image.NRGBA, r image.Rectangle, c color.NRGBA, stroke int) {
	if stroke <= 0 {
		return
	}
	fillRect(img, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+stroke), c)
	fillRect(img, image.Rect(r.Min.X, r.Max.Y-stroke, r.Max.X, r.Max.Y), c)
	fillRect(img, image.Rect(r.Min.X, r.Min.Y, r.Min.X+stroke, r.Max.Y), c)
	fillRect(img, image.Rect(r.Max.X-stroke, r.Min.Y, r.Max.X, r.Max.Y), c)
}

// vLine draws a vertical line of the given thickness centered on x
func vLine(img *image.NRGBA, x, y0, y1, thickness int, c color.NRGBA) {
	x0 := x - thickness/2
	fillRect(img, image.Rect(x0, y0, x0+thickness, y1), c)
}

// hLine draws a horizontal line of the given thickness centered on y
func hLine(img *image.NRGBA, y, x0, x1, thickness int, c color.NRGBA) {
	y0 := y - thickness/2
	fillRect(img, image.Rect(x0, y0, x1, y0+thickness), c)
}

// drawTag writes text with its top-left corner at (x, y) on a padded box of bg
func drawTag(img *image.NRGBA, face font.Face, x, y int, text string, fg, bg color.NRGBA, pad int) {
	m := face.Metrics()
	w := font.MeasureString(face, text).Ceil()
	h := (m.Ascent + m.Descent).Ceil()

	fillRect(img, image.Rect(x-pad, y-pad, x+w+pad, y+h+pad), bg)

	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(fg),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y) + m.Ascent},
	}
	d.DrawString(text)
}

// dims infers the grid shape from a row-major cell list
func dims(cells []CellRect) (rows, cols int) {
	for _, c := range cells {
		rows = max(rows, c.Row+1)
		cols = max(cols, c.Col+1)
	}
	return rows, cols
}

// gridDims is dims for callers that index cells by row and column. It fails
// unless cells is a complete row-major partition.
func gridDims(cells []CellRect) (rows, cols int, err error) {
	rows, cols = dims(cells)
	if len(cells) == 0 || len(cells) != rows*cols {
		return 0, 0, fmt.Errorf("%w: %d cells do not form a full %dx%d grid", ErrInvalidRegion, len(cells), rows, cols)
	}
	for i, c := range cells {
		if c.Row != i/cols || c.Col != i%cols {
			return 0, 0, fmt.Errorf("%w: cell %d is (%d,%d), not in row-major order", ErrInvalidRegion, i, c.Row, c.Col)
		}
	}
	return rows, cols, nil
}

// bounds returns the union of all cells
func bounds(cells []CellRect) image.Rectangle {
	var u image.Rectangle
	for _, c := range cells {
		u = u.Union(c.Rect())
	}
	return u
}
