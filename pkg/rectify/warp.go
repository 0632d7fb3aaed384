package rectify

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"

	"github.com/menta2k/seedtray-annotator/pkg/geometry"
)

// rowsPerBand is the number of destination rows handed to one worker
const rowsPerBand = 64

// BilinearWarper resamples with bilinear interpolation in pure Go. Pixel
// centers sit on integer coordinates, matching OpenCV's warpPerspective.
type BilinearWarper struct {
	workers int
}

// NewBilinearWarper creates a warper using at most workers goroutines
func NewBilinearWarper(workers int) *BilinearWarper {
	if workers < 1 {
		workers = 1
	}
	return &BilinearWarper{workers: workers}
}

// Warp implements Warper
func (w *BilinearWarper) Warp(src image.Image, inv geometry.Homography, width, height int, bg color.NRGBA) (*image.NRGBA, error) {
	in := imaging.Clone(src)
	out := image.NewNRGBA(image.Rect(0, 0, width, height))

	var g errgroup.Group
	g.SetLimit(w.workers)
	for y0 := 0; y0 < height; y0 += rowsPerBand {
		y1 := min(y0+rowsPerBand, height)
		g.Go(func() error {
			for y := y0; y < y1; y++ {
				warpRow(in, out, inv, y, bg)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func warpRow(in, out *image.NRGBA, inv geometry.Homography, y int, bg color.NRGBA) {
	sw, sh := in.Bounds().Dx(), in.Bounds().Dy()
	i := y * out.Stride
	for x := 0; x < out.Rect.Dx(); x++ {
		c := bg
		if p, ok := inv.Apply(geometry.Pt(float64(x), float64(y))); ok {
			if p.X >= -0.5 && p.Y >= -0.5 && p.X <= float64(sw)-0.5 && p.Y <= float64(sh)-0.5 {
				c = sampleBilinear(in, p.X, p.Y)
			}
		}
		out.Pix[i+0] = c.R
		out.Pix[i+1] = c.G
		out.Pix[i+2] = c.B
		out.Pix[i+3] = c.A
		i += 4
	}
}

func sampleBilinear(img *image.NRGBA, fx, fy float64) color.NRGBA {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	dx := fx - float64(x0)
	dy := fy - float64(y0)

	px := func(x, y int) []uint8 {
		x = clampInt(x, 0, w-1)
		y = clampInt(y, 0, h-1)
		i := y*img.Stride + x*4
		return img.Pix[i : i+4 : i+4]
	}
	p00, p10 := px(x0, y0), px(x0+1, y0)
	p01, p11 := px(x0, y0+1), px(x0+1, y0+1)

	var c [4]uint8
	for k := 0; k < 4; k++ {
		top := float64(p00[k])*(1-dx) + float64(p10[k])*dx
		bot := float64(p01[k])*(1-dx) + float64(p11[k])*dx
		c[k] = uint8(math.Round(top*(1-dy) + bot*dy))
	}
	return color.NRGBA{c[0], c[1], c[2], c[3]}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
