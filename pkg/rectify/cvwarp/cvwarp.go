//go:build opencv

// Package cvwarp resamples rectified trays with OpenCV's warpPerspective.
// It is only built with the opencv tag since it needs the native library.
package cvwarp

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"

	"github.com/menta2k/seedtray-annotator/pkg/geometry"
)

// Warper implements rectify.Warper on top of gocv
type Warper struct {
	interpolation gocv.InterpolationFlags
}

// New creates an OpenCV warper using linear interpolation
func New() *Warper {
	return &Warper{interpolation: gocv.InterpolationLinear}
}

// Warp resamples src into a width x height canvas. inv maps destination
// pixels back to the source, so WARP_INVERSE_MAP is set.
func (w *Warper) Warp(src image.Image, inv geometry.Homography, width, height int, bg color.NRGBA) (*image.NRGBA, error) {
	in, err := gocv.ImageToMatRGBA(src)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image to mat: %w", err)
	}
	defer in.Close()

	m := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	defer m.Close()
	rows := inv.Matrix()
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m.SetDoubleAt(r, c, rows[r][c])
		}
	}

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.WarpPerspectiveWithParams(in, &dst, m, image.Point{X: width, Y: height},
		w.interpolation|gocv.WarpInverseMap, gocv.BorderConstant,
		color.RGBA{R: bg.R, G: bg.G, B: bg.B, A: bg.A})

	out, err := dst.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to convert mat to image: %w", err)
	}
	return imaging.Clone(out), nil
}
