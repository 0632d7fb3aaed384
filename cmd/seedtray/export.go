package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/menta2k/seedtray-annotator/internal/utils"
	"github.com/menta2k/seedtray-annotator/pkg/annotation"
	"github.com/menta2k/seedtray-annotator/pkg/export"
	"github.com/menta2k/seedtray-annotator/pkg/metadata"
	"github.com/menta2k/seedtray-annotator/pkg/workflow"
)

func exportCommand(a *app) *cobra.Command {
	var f inputFlags
	var crop, shape, capture, sowing, labelsPath, outDir, statusOut string
	var count int
	var bundle, includeOriginal bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the clean tray image with its annotation record",
		Long: `Rectify the photo, tile it, apply labels and write the clean image and the
JSON record, or a zip bundle of both. Labels come from --labels, a JSON matrix
of label strings or legacy integer codes; without it every cell is "G".
The capture date defaults to the photo's EXIF date and the sowing date to
14 days before capture.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.prepare(&f, true)
			if err != nil {
				return err
			}

			meta, err := a.buildMetadata(s, f, crop, shape, capture, sowing)
			if err != nil {
				return err
			}
			if err := s.SetMetadata(meta); err != nil {
				return err
			}
			if labelsPath != "" {
				if err := applyLabels(s, labelsPath); err != nil {
					return err
				}
			}

			if statusOut != "" {
				status, err := s.StatusPreview()
				if err != nil {
					return err
				}
				if err := a.writeImage(status, statusOut); err != nil {
					return err
				}
				out(cmd, "label preview -> %s", statusOut)
			}

			opts := workflow.ExportOptions{IncludeOriginal: includeOriginal || a.cfg.Output.IncludeOriginal}
			if cmd.Flags().Changed("count") {
				opts.GerminationCount = &count
			}
			exp, err := s.Export(opts)
			if err != nil {
				return err
			}

			if outDir == "" {
				outDir = a.cfg.Output.Dir
			}
			if bundle || (a.cfg.Output.Bundle && !cmd.Flags().Changed("bundle")) {
				data, err := exp.BundleBytes()
				if err != nil {
					return err
				}
				if err := utils.EnsureDir(outDir); err != nil {
					return err
				}
				path := utils.OutputPath(outDir, exp.BaseName, "zip")
				if err := os.WriteFile(path, data, 0644); err != nil {
					return err
				}
				out(cmd, "bundle %s (%s, %d/%d germinated)", path,
					utils.FormatFileSize(int64(len(data))), exp.Record.GerminationCount, meta.Grid.Cells())
				return nil
			}

			paths, err := exp.WriteFiles(outDir)
			if err != nil {
				return err
			}
			for _, p := range paths {
				out(cmd, "%s", p)
			}
			return nil
		},
	}

	f.register(cmd)
	cmd.Flags().StringVar(&crop, "crop", "", "crop name, e.g. "+fmt.Sprint(metadata.Crops))
	cmd.Flags().StringVar(&shape, "shape", metadata.Shapes[0], "cavity shape, e.g. "+fmt.Sprint(metadata.Shapes))
	cmd.Flags().StringVar(&capture, "capture", "", "capture date YYYY-MM-DD (default EXIF date)")
	cmd.Flags().StringVar(&sowing, "sowing", "", "sowing date YYYY-MM-DD (default capture - 14 days)")
	cmd.Flags().StringVar(&labelsPath, "labels", "", "JSON label matrix")
	cmd.Flags().IntVar(&count, "count", 0, "germination count override (default: cells labeled G)")
	cmd.Flags().BoolVar(&bundle, "bundle", false, "write a zip bundle instead of separate files (default output.bundle)")
	cmd.Flags().BoolVar(&includeOriginal, "include-original", false, "add the original upload to the export")
	cmd.Flags().StringVar(&outDir, "out", "", "output directory (default output.dir)")
	cmd.Flags().StringVar(&statusOut, "status-out", "", "also write a preview with cell borders colored by label")
	_ = cmd.MarkFlagRequired("crop")
	return cmd
}

// buildMetadata fills missing dates from EXIF and the default sowing offset
func (a *app) buildMetadata(s *workflow.Session, f inputFlags, crop, shape, capture, sowing string) (metadata.TrialMetadata, error) {
	var captureDate time.Time
	if capture != "" {
		d, err := metadata.ParseDate(capture)
		if err != nil {
			return metadata.TrialMetadata{}, err
		}
		captureDate = d
	} else if d, ok := s.SuggestedCaptureDate(); ok {
		a.logger.Info("capture date taken from EXIF", "date", d.Format(metadata.DateLayout))
		captureDate = d
	} else {
		return metadata.TrialMetadata{}, fmt.Errorf("%w: no EXIF date in photo, pass --capture", metadata.ErrInvalidMetadata)
	}

	sowingDate := metadata.DefaultSowingDate(captureDate)
	if sowing != "" {
		d, err := metadata.ParseDate(sowing)
		if err != nil {
			return metadata.TrialMetadata{}, err
		}
		sowingDate = d
	}

	return metadata.New(captureDate, sowingDate, crop, shape, f.spec(a))
}

// applyLabels copies a label matrix file onto the session grid
func applyLabels(s *workflow.Session, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var raw [][]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	g, err := annotation.Load(s.Vocabulary(), raw)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := s.CanEnter(workflow.StageAnnotate); err != nil {
		return err
	}
	if want := s.Labels().Spec(); g.Spec() != want {
		return fmt.Errorf("%s: %w: labels are %s, grid is %s", path, export.ErrGridMismatch, g.Spec(), want)
	}
	for r, row := range g.Snapshot() {
		for c, l := range row {
			if err := s.Set(r, c, l); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
		}
	}
	return nil
}
