package main

import (
	"fmt"
	"image"

	"github.com/spf13/cobra"

	"github.com/menta2k/seedtray-annotator/pkg/grid"
	"github.com/menta2k/seedtray-annotator/pkg/processing"
)

func previewCommand(a *app) *cobra.Command {
	var f inputFlags
	var outPath, cell string
	var width int

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Render the cell grid over the rectified tray",
		Long: `Render the guidance overlay: gridlines, an outer border and a 1-indexed
[r,c] tag in every cell. The overlay is a preview only and never exported.
With --cell the 3x3 neighborhood of one cell is rendered instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.prepare(&f, true)
			if err != nil {
				return err
			}

			var img image.Image
			suffix := "_grid"
			if cell != "" {
				rc, err := parseFloats(cell, 2)
				if err != nil {
					return fmt.Errorf("--cell: %w", err)
				}
				row, col := int(rc[0])-1, int(rc[1])-1
				caption := fmt.Sprintf("[%d,%d]", row+1, col+1)
				if img, err = grid.ContextView(s.Clean(), s.Cells(), row, col, caption); err != nil {
					return err
				}
				suffix = fmt.Sprintf("_cell_%d_%d", row+1, col+1)
			} else if img, err = s.Preview(); err != nil {
				return err
			}

			if width > 0 {
				img = processing.Thumbnail(img, width)
			}

			if outPath == "" {
				outPath = a.defaultOutput(f.in, suffix, a.cfg.Output.PreviewFormat)
			}
			if err := a.writeImage(img, outPath); err != nil {
				return err
			}
			out(cmd, "%s grid preview -> %s", f.spec(a), outPath)
			return nil
		},
	}

	f.register(cmd)
	cmd.Flags().StringVar(&outPath, "out", "", "output image path (default <output.dir>/<name>_grid.<output.preview_format>)")
	cmd.Flags().IntVar(&width, "width", 0, "downscale the preview to at most this many pixels wide")
	cmd.Flags().StringVar(&cell, "cell", "", `render the neighborhood of one cell, "row,col" (1-indexed)`)
	return cmd
}
