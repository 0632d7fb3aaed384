package workflow

import (
	"fmt"
	"image"
	"image/color"

	"github.com/menta2k/seedtray-annotator/pkg/annotation"
	"github.com/menta2k/seedtray-annotator/pkg/grid"
)

// Status colors used by StatusPreview
var (
	ColorGerminated   = color.NRGBA{0, 200, 0, 255}
	ColorAbnormal     = color.NRGBA{255, 140, 0, 255}
	ColorUngerminated = color.NRGBA{220, 0, 0, 255}
	ColorUnknown      = color.NRGBA{128, 128, 128, 255}
)

// LabelColor maps a label to its status preview color
func LabelColor(l annotation.Label) color.NRGBA {
	switch {
	case l == annotation.Germinated:
		return ColorGerminated
	case l == annotation.Ungerminated:
		return ColorUngerminated
	case l.IsAbnormal():
		return ColorAbnormal
	default:
		return ColorUnknown
	}
}

// Clean returns the image that gets exported: the rectified image in
// perspective mode, otherwise the oriented source. It never carries an
// overlay; previews are always drawn on copies.
func (s *Session) Clean() image.Image {
	if s.rectified != nil {
		return s.rectified.Image
	}
	return s.source
}

// Preview renders the gridline overlay on a copy of the clean image
func (s *Session) Preview() (*image.NRGBA, error) {
	if err := s.check(StageMetadata); err != nil {
		return nil, err
	}
	return grid.RenderOverlay(s.Clean(), s.cells, s.opts.Style)
}

// StatusPreview renders every cell border in the color of its label
func (s *Session) StatusPreview() (*image.NRGBA, error) {
	if err := s.check(StageAnnotate); err != nil {
		return nil, err
	}
	labels := s.labels.Snapshot()
	return grid.RenderStatus(s.Clean(), s.cells, func(row, col int) color.NRGBA {
		return LabelColor(labels[row][col])
	}), nil
}

// ContextView renders cell (row, col) among its neighbors, captioned with
// its coordinates and current label
func (s *Session) ContextView(row, col int) (*image.NRGBA, error) {
	if err := s.check(StageAnnotate); err != nil {
		return nil, err
	}
	l, err := s.labels.Get(row, col)
	if err != nil {
		return nil, err
	}
	return grid.ContextView(s.Clean(), s.cells, row, col, fmt.Sprintf("[%d,%d] %s", row+1, col+1, l))
}
