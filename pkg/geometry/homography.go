package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Homography is a 3x3 projective transform stored row-major. H[8] is 1
// unless the origin maps to infinity.
type Homography [9]float64

// maxCondition bounds the condition number of the 8x8 system; anything above
// it is treated as a singular corner selection
const maxCondition = 1e12

// ComputeHomography solves for the transform mapping src[i] to dst[i]. Both
// point sets are moved to their centroid and scaled to a mean distance of
// sqrt(2) before solving, so the system stays well conditioned for large
// photographs and the normalized origin lies inside each quadrilateral.
func ComputeHomography(src, dst [4]Point) (Homography, error) {
	cs, ss, err := centroidScale(src)
	if err != nil {
		return Homography{}, err
	}
	cd, sd, err := centroidScale(dst)
	if err != nil {
		return Homography{}, err
	}

	// x' = (h0 x + h1 y + h2) / (h6 x + h7 y + 1)
	// y' = (h3 x + h4 y + h5) / (h6 x + h7 y + 1)
	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)

	for i := 0; i < 4; i++ {
		x, y := (src[i].X-cs.X)*ss, (src[i].Y-cs.Y)*ss
		u, v := (dst[i].X-cd.X)*sd, (dst[i].Y-cd.Y)*sd
		r := 2 * i

		a.Set(r, 0, x)
		a.Set(r, 1, y)
		a.Set(r, 2, 1)
		a.Set(r, 6, -x*u)
		a.Set(r, 7, -y*u)
		b.SetVec(r, u)

		a.Set(r+1, 3, x)
		a.Set(r+1, 4, y)
		a.Set(r+1, 5, 1)
		a.Set(r+1, 6, -x*v)
		a.Set(r+1, 7, -y*v)
		b.SetVec(r+1, v)
	}

	if c := mat.Cond(a, 1); math.IsInf(c, 1) || math.IsNaN(c) || c > maxCondition {
		return Homography{}, fmt.Errorf("%w: transform is singular (cond %.3g)", ErrDegenerateGeometry, c)
	}

	var h mat.VecDense
	if err := h.SolveVec(a, b); err != nil {
		return Homography{}, fmt.Errorf("%w: %v", ErrDegenerateGeometry, err)
	}

	hn := mat.NewDense(3, 3, []float64{
		h.AtVec(0), h.AtVec(1), h.AtVec(2),
		h.AtVec(3), h.AtVec(4), h.AtVec(5),
		h.AtVec(6), h.AtVec(7), 1,
	})
	toUnit := mat.NewDense(3, 3, []float64{
		ss, 0, -ss * cs.X,
		0, ss, -ss * cs.Y,
		0, 0, 1,
	})
	fromUnit := mat.NewDense(3, 3, []float64{
		1 / sd, 0, cd.X,
		0, 1 / sd, cd.Y,
		0, 0, 1,
	})

	var full mat.Dense
	full.Product(fromUnit, hn, toUnit)

	return normalize(&full)
}

// centroidScale returns the centroid of pts and the factor bringing their
// mean distance from it to sqrt(2)
func centroidScale(pts [4]Point) (Point, float64, error) {
	var c Point
	for _, p := range pts {
		c.X += p.X / 4
		c.Y += p.Y / 4
	}
	d := 0.0
	for _, p := range pts {
		d += Distance(p, c) / 4
	}
	if d == 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return Point{}, 0, fmt.Errorf("%w: corners coincide", ErrDegenerateGeometry)
	}
	return c, math.Sqrt2 / d, nil
}

// normalize copies m into a Homography with H[8] == 1 when the origin maps
// to a finite point, otherwise scaled to unit Frobenius norm
func normalize(m mat.Matrix) (Homography, error) {
	var out Homography
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[r*3+c] = m.At(r, c)
		}
	}
	norm := mat.Norm(m, 2)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return Homography{}, fmt.Errorf("%w: transform is zero or not finite", ErrDegenerateGeometry)
	}

	div := norm
	if math.Abs(out[8]) > 1e-12*norm {
		div = out[8]
	}
	for i := range out {
		out[i] /= div
	}
	return out, nil
}

// Apply maps p through the transform. ok is false when p maps to infinity.
func (h Homography) Apply(p Point) (Point, bool) {
	w := h[6]*p.X + h[7]*p.Y + h[8]
	if w == 0 {
		return Point{}, false
	}
	return Point{
		X: (h[0]*p.X + h[1]*p.Y + h[2]) / w,
		Y: (h[3]*p.X + h[4]*p.Y + h[5]) / w,
	}, true
}

// Inverse returns the inverse transform, normalized like ComputeHomography
func (h Homography) Inverse() (Homography, error) {
	m := mat.NewDense(3, 3, h[:])

	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return Homography{}, fmt.Errorf("%w: transform is not invertible: %v", ErrDegenerateGeometry, err)
	}

	return normalize(&inv)
}

// Matrix returns the transform as rows
func (h Homography) Matrix() [3][3]float64 {
	return [3][3]float64{
		{h[0], h[1], h[2]},
		{h[3], h[4], h[5]},
		{h[6], h[7], h[8]},
	}
}
