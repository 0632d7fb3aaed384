// Package rectify turns a photographed tray quadrilateral into a padded,
// axis-aligned image whose inner region holds exactly the tray.
package rectify

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"runtime"

	"github.com/menta2k/seedtray-annotator/pkg/geometry"
)

// RectifiedImage is a warped tray image together with the margins that
// surround the tray. FinalWidth = RawWidth + Left + Right and
// FinalHeight = RawHeight + Top + Bottom always hold.
type RectifiedImage struct {
	Image       *image.NRGBA
	RawWidth    int
	RawHeight   int
	FinalWidth  int
	FinalHeight int
	Margins     geometry.Margins
	Transform   geometry.Homography
}

// Inner returns the tray area of the rectified image, excluding margins
func (r *RectifiedImage) Inner() image.Rectangle {
	return image.Rect(
		r.Margins.Left,
		r.Margins.Top,
		r.Margins.Left+r.RawWidth,
		r.Margins.Top+r.RawHeight,
	)
}

// Warper resamples src through the inverse transform inv into a width x height
// canvas filled with bg wherever the source does not reach. inv maps into
// source coordinates relative to src.Bounds().Min.
type Warper interface {
	Warp(src image.Image, inv geometry.Homography, width, height int, bg color.NRGBA) (*image.NRGBA, error)
}

// Config holds configuration for rectification
type Config struct {
	// Background fills the canvas outside the projected tray footprint
	Background color.NRGBA
	// Workers bounds the goroutines used by the default warper
	Workers int
}

// DefaultConfig returns the standard configuration: opaque black background
// and one worker per CPU
func DefaultConfig() Config {
	return Config{
		Background: color.NRGBA{0, 0, 0, 255},
		Workers:    runtime.GOMAXPROCS(0),
	}
}

// Rectifier performs perspective correction with margins
type Rectifier struct {
	config Config
	warper Warper
	logger *slog.Logger
}

// New creates a Rectifier with default configuration
func New() *Rectifier {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a Rectifier with custom configuration
func NewWithConfig(config Config) *Rectifier {
	return &Rectifier{
		config: config,
		warper: NewBilinearWarper(config.Workers),
		logger: slog.Default(),
	}
}

// SetWarper replaces the resampling backend
func (r *Rectifier) SetWarper(w Warper) {
	r.warper = w
}

// SetLogger replaces the logger
func (r *Rectifier) SetLogger(l *slog.Logger) {
	if l != nil {
		r.logger = l
	}
}

// Layout computes raw size, margins, final size and destination corners for
// a corner selection without touching any pixels
func Layout(corners geometry.Corners) (rawW, rawH int, m geometry.Margins, dst [4]geometry.Point, err error) {
	rawW, rawH = geometry.EstimateDimensions(corners)
	m, err = geometry.ComputeMargins(rawW, rawH)
	if err != nil {
		return 0, 0, geometry.Margins{}, dst, err
	}

	left, top := float64(m.Left), float64(m.Top)
	right := left + float64(rawW) - 1
	bottom := top + float64(rawH) - 1
	dst = [4]geometry.Point{
		geometry.Pt(left, top),
		geometry.Pt(right, top),
		geometry.Pt(right, bottom),
		geometry.Pt(left, bottom),
	}
	return rawW, rawH, m, dst, nil
}

// Rectify warps the tray outlined by corners (TL, TR, BR, BL) into an
// axis-aligned image padded by the standard margins. The source image is
// never modified. Degenerate selections fail with geometry.ErrDegenerateGeometry.
func (r *Rectifier) Rectify(src image.Image, corners geometry.Corners) (*RectifiedImage, error) {
	if src == nil {
		return nil, fmt.Errorf("rectify: nil source image")
	}
	if err := geometry.ValidateCorners(corners); err != nil {
		return nil, err
	}

	rawW, rawH, margins, dst, err := Layout(corners)
	if err != nil {
		return nil, err
	}
	finalW := rawW + margins.Horizontal()
	finalH := rawH + margins.Vertical()

	// warpers index the source from (0,0), so corners move into that frame
	local := corners
	if o := src.Bounds().Min; o != (image.Point{}) {
		shift := geometry.Pt(float64(o.X), float64(o.Y))
		for i := range local {
			local[i] = local[i].Sub(shift)
		}
	}

	h, err := geometry.ComputeHomography(local, dst)
	if err != nil {
		return nil, err
	}
	inv, err := h.Inverse()
	if err != nil {
		return nil, err
	}

	r.logger.Debug("rectifying tray",
		slog.Int("raw_width", rawW),
		slog.Int("raw_height", rawH),
		slog.Int("final_width", finalW),
		slog.Int("final_height", finalH),
		slog.Any("margins", margins))

	out, err := r.warper.Warp(src, inv, finalW, finalH, r.config.Background)
	if err != nil {
		return nil, fmt.Errorf("failed to warp image: %w", err)
	}
	if b := out.Bounds(); b.Dx() != finalW || b.Dy() != finalH {
		return nil, fmt.Errorf("warper returned %dx%d, expected %dx%d", b.Dx(), b.Dy(), finalW, finalH)
	}

	return &RectifiedImage{
		Image:       out,
		RawWidth:    rawW,
		RawHeight:   rawH,
		FinalWidth:  finalW,
		FinalHeight: finalH,
		Margins:     margins,
		Transform:   h,
	}, nil
}
