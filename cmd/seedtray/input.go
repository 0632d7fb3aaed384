package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/menta2k/seedtray-annotator/internal/utils"
	"github.com/menta2k/seedtray-annotator/pkg/geometry"
	"github.com/menta2k/seedtray-annotator/pkg/grid"
	"github.com/menta2k/seedtray-annotator/pkg/workflow"
)

// inputFlags selects the photo and how its tray is located
type inputFlags struct {
	in      string
	rotate  int
	corners string
	display bool
	manual  string
	rows    int
	cols    int
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.in, "in", "", "input image path or URL (jpg/png/webp)")
	cmd.Flags().IntVar(&f.rotate, "rotate", 0, "clockwise rotation applied before corner selection: 0|90|180|270")
	cmd.Flags().StringVar(&f.corners, "corners", "", `tray corners TL TR BR BL as "x,y x,y x,y x,y"`)
	cmd.Flags().BoolVar(&f.display, "display-coords", false, "corners are in scaled display pixels (input.display_width)")
	cmd.Flags().StringVar(&f.manual, "manual", "", `skip rectification and place the grid at "left,top,width,height" percent`)
	cmd.Flags().IntVar(&f.rows, "rows", 0, "grid rows (default grid.rows)")
	cmd.Flags().IntVar(&f.cols, "cols", 0, "grid columns (default grid.cols)")
	_ = cmd.MarkFlagRequired("in")
}

// spec returns the grid spec from flags, falling back to configuration
func (f *inputFlags) spec(a *app) grid.Spec {
	s := a.cfg.GridSpec()
	if f.rows > 0 {
		s.Rows = f.rows
	}
	if f.cols > 0 {
		s.Cols = f.cols
	}
	return s
}

// prepare runs a session through upload, orientation, rectification and,
// when defineGrid is set, grid definition
func (a *app) prepare(f *inputFlags, defineGrid bool) (*workflow.Session, error) {
	if !strings.HasPrefix(f.in, "http://") && !strings.HasPrefix(f.in, "https://") && !utils.IsImageFile(f.in) {
		a.logger.Warn("input does not have an image extension, decoding anyway", "path", f.in)
	}
	data, err := a.annotator.ReadImage(f.in)
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}

	s := a.annotator.NewSession()
	if err := s.Upload(data); err != nil {
		return nil, err
	}
	if f.rotate != 0 {
		if err := s.Rotate(f.rotate); err != nil {
			return nil, err
		}
	}

	if f.manual != "" {
		pb, err := parsePercentBounds(f.manual)
		if err != nil {
			return nil, err
		}
		if _, err := s.DefineGridManual(pb, f.spec(a)); err != nil {
			return nil, err
		}
		return s, nil
	}

	corners, err := parseCorners(f.corners)
	if err != nil {
		return nil, err
	}
	for _, p := range corners {
		add := s.AddCorner
		if f.display {
			add = s.AddDisplayCorner
		}
		if _, err := add(p); err != nil {
			return nil, err
		}
	}
	if _, err := s.Rectify(); err != nil {
		return nil, err
	}

	if defineGrid {
		if _, err := s.DefineGrid(f.spec(a)); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// parseCorners reads four "x,y" pairs separated by spaces or semicolons
func parseCorners(s string) (geometry.Corners, error) {
	var c geometry.Corners
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ';' })
	if len(fields) != 4 {
		return c, fmt.Errorf("--corners needs 4 points, got %d", len(fields))
	}
	for i, field := range fields {
		xy, err := parseFloats(field, 2)
		if err != nil {
			return c, fmt.Errorf("corner %d: %w", i+1, err)
		}
		c[i] = geometry.Pt(xy[0], xy[1])
	}
	return c, nil
}

// parsePercentBounds reads "left,top,width,height"
func parsePercentBounds(s string) (grid.PercentBounds, error) {
	v, err := parseFloats(s, 4)
	if err != nil {
		return grid.PercentBounds{}, fmt.Errorf("--manual: %w", err)
	}
	return grid.PercentBounds{Left: v[0], Top: v[1], Width: v[2], Height: v[3]}, nil
}

func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d comma-separated numbers in %q", n, s)
	}
	out := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", p)
		}
		out[i] = v
	}
	return out, nil
}
