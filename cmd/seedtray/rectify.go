package main

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/menta2k/seedtray-annotator/internal/utils"
	"github.com/menta2k/seedtray-annotator/pkg/processing"
)

func rectifyCommand(a *app) *cobra.Command {
	var f inputFlags
	var outPath string

	cmd := &cobra.Command{
		Use:   "rectify",
		Short: "Perspective-correct a tray photo from its four corners",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.prepare(&f, false)
			if err != nil {
				return err
			}
			if outPath == "" {
				outPath = a.defaultOutput(f.in, "_rectified", "png")
			}
			if err := a.writeImage(s.Clean(), outPath); err != nil {
				return err
			}

			if r := s.Rectified(); r != nil {
				out(cmd, "rectified %dx%d (tray %dx%d, margins t=%d b=%d l=%d r=%d) -> %s",
					r.FinalWidth, r.FinalHeight, r.RawWidth, r.RawHeight,
					r.Margins.Top, r.Margins.Bottom, r.Margins.Left, r.Margins.Right, outPath)
			} else {
				out(cmd, "oriented image -> %s", outPath)
			}
			return nil
		},
	}

	f.register(cmd)
	cmd.Flags().StringVar(&outPath, "out", "", "output image path (default <output.dir>/<name>_rectified.png)")
	return cmd
}

// defaultOutput builds <output.dir>/<input name><suffix>.<ext>
func (a *app) defaultOutput(in, suffix, ext string) string {
	base := filepath.Base(in)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return utils.OutputPath(a.cfg.Output.Dir, utils.SanitizeFilename(base)+suffix, ext)
}

// writeImage encodes img by the path's extension, creating parent dirs
func (a *app) writeImage(img image.Image, path string) error {
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := processing.Encode(f, img, utils.GetFileExtension(path), a.cfg.Output.Quality); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	a.logger.Debug("image written", "path", path)
	return nil
}
