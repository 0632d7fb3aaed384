// Package seedtray annotates photographs of seed-tray germination trials.
//
// A tray photo is perspective-corrected from four clicked corners into a
// padded, axis-aligned image, its inner region is tiled into a row/column
// grid of cavities, each cavity receives a germination label, and the clean
// image is exported with a JSON record of the labels and trial metadata.
//
// Basic usage:
//
//	annotator := seedtray.New()
//	session := annotator.NewSession()
//
//	if err := session.Upload(photo); err != nil {
//		log.Fatal(err)
//	}
//	for _, p := range clicks { // TL, TR, BR, BL
//		session.AddCorner(p)
//	}
//	if _, err := session.Rectify(); err != nil {
//		log.Fatal(err) // geometry.ErrDegenerateGeometry: ask for new corners
//	}
//	session.DefineGrid(grid.Spec{Rows: 14, Cols: 7})
//	session.SetMetadata(meta)
//	session.Cycle(0, 0)
//
//	exp, err := session.Export(workflow.ExportOptions{})
//
// The package consists of these components:
//
// 1. Geometry (pkg/geometry): distances, margins and the homography solver
// 2. Rectify (pkg/rectify): perspective correction with margins
// 3. Grid (pkg/grid): cell partitioning and overlay rendering
// 4. Annotation (pkg/annotation): label vocabularies, grids and migration
// 5. Export (pkg/export): JSON records, clean images and zip bundles
// 6. Workflow (pkg/workflow): the staged session tying them together
package seedtray

import (
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/menta2k/seedtray-annotator/pkg/annotation"
	"github.com/menta2k/seedtray-annotator/pkg/export"
	"github.com/menta2k/seedtray-annotator/pkg/geometry"
	"github.com/menta2k/seedtray-annotator/pkg/grid"
	"github.com/menta2k/seedtray-annotator/pkg/metadata"
	"github.com/menta2k/seedtray-annotator/pkg/processing"
	"github.com/menta2k/seedtray-annotator/pkg/rectify"
	"github.com/menta2k/seedtray-annotator/pkg/workflow"
)

// Version of the seedtray library
const Version = "1.0.0"

// Options configures an Annotator
type Options struct {
	Vocabulary   *annotation.Vocabulary
	Style        grid.Style
	Rectify      rectify.Config
	Warper       rectify.Warper
	MinImageSize int
	DisplayWidth int
	Logger       *slog.Logger
}

// DefaultOptions returns six-state labels, green gridlines, a black
// background and an 800 px display width
func DefaultOptions() Options {
	return Options{
		Vocabulary:   annotation.SixState,
		Style:        grid.DefaultStyle(),
		Rectify:      rectify.DefaultConfig(),
		MinImageSize: 16,
		DisplayWidth: 800,
	}
}

// Annotator provides a high-level interface over the annotation pipeline
type Annotator struct {
	opts      Options
	processor *processing.Processor
	rectifier *rectify.Rectifier
	assembler *export.Assembler
	logger    *slog.Logger
}

// New creates an Annotator with default options
func New() *Annotator {
	return NewWithOptions(DefaultOptions())
}

// NewWithOptions creates an Annotator with custom options
func NewWithOptions(opts Options) *Annotator {
	if opts.Vocabulary == nil {
		opts.Vocabulary = annotation.SixState
	}
	if opts.Style.Thickness == 0 {
		opts.Style = grid.DefaultStyle()
	}
	if opts.Rectify == (rectify.Config{}) {
		opts.Rectify = rectify.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rectifier := rectify.NewWithConfig(opts.Rectify)
	rectifier.SetLogger(logger)
	if opts.Warper != nil {
		rectifier.SetWarper(opts.Warper)
	}

	return &Annotator{
		opts:      opts,
		processor: processing.NewProcessor(opts.MinImageSize),
		rectifier: rectifier,
		assembler: export.NewAssembler(logger),
		logger:    logger,
	}
}

// NewSession starts a workflow session sharing this annotator's components
func (a *Annotator) NewSession() *workflow.Session {
	return workflow.NewSession(workflow.Options{
		Vocabulary:   a.opts.Vocabulary,
		Processor:    a.processor,
		Rectifier:    a.rectifier,
		Assembler:    a.assembler,
		Style:        a.opts.Style,
		DisplayWidth: a.opts.DisplayWidth,
		Logger:       a.logger,
	})
}

// Vocabulary returns the configured label vocabulary
func (a *Annotator) Vocabulary() *annotation.Vocabulary {
	return a.opts.Vocabulary
}

// LoadImage loads an image from a file path or URL along with its raw bytes
func (a *Annotator) LoadImage(source string) (image.Image, []byte, error) {
	return a.processor.LoadImageSmart(source)
}

// ReadImage returns the raw bytes of a file path or URL, leaving decoding to
// the session they are uploaded to
func (a *Annotator) ReadImage(source string) ([]byte, error) {
	return a.processor.ReadSource(source)
}

// SaveImage saves an image, choosing the format from the file extension
func (a *Annotator) SaveImage(img image.Image, path string, quality int) error {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return a.processor.SaveImage(img, path, format, quality, quality >= 100)
}

// Rectify warps the tray outlined by corners into a padded image
func (a *Annotator) Rectify(img image.Image, corners geometry.Corners) (*rectify.RectifiedImage, error) {
	return a.rectifier.Rectify(img, corners)
}

// Partition tiles the inner region of a rectified image
func (a *Annotator) Partition(r *rectify.RectifiedImage, spec grid.Spec) ([]grid.CellRect, error) {
	return grid.PartitionRectified(r, spec)
}

// RenderOverlay draws the guidance grid on a copy of img
func (a *Annotator) RenderOverlay(img image.Image, cells []grid.CellRect) (*image.NRGBA, error) {
	return grid.RenderOverlay(img, cells, a.opts.Style)
}

// Migrate converts a legacy integer-coded grid to labels
func (a *Annotator) Migrate(legacy [][]int) (*annotation.Grid, error) {
	return annotation.Migrate(a.opts.Vocabulary, legacy)
}

// ParseRecord reads a persisted record, migrating legacy label codes
func (a *Annotator) ParseRecord(data []byte) (export.Record, *annotation.Grid, error) {
	return export.ParseRecord(data, a.opts.Vocabulary)
}

// ProcessImageFile is a convenience function that runs a whole pass on one
// file: rectify through corners, tile by the metadata grid spec, apply
// labels when given (nil keeps every cell at the default) and export
func (a *Annotator) ProcessImageFile(source string, corners geometry.Corners, meta metadata.TrialMetadata, labels [][]annotation.Label) (*export.Export, error) {
	data, err := a.ReadImage(source)
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}

	s := a.NewSession()
	if err := s.Upload(data); err != nil {
		return nil, fmt.Errorf("image validation failed: %w", err)
	}
	for _, p := range corners {
		if _, err := s.AddCorner(p); err != nil {
			return nil, err
		}
	}
	if _, err := s.Rectify(); err != nil {
		return nil, fmt.Errorf("rectification failed: %w", err)
	}
	if _, err := s.DefineGrid(meta.Grid); err != nil {
		return nil, err
	}
	if err := s.SetMetadata(meta); err != nil {
		return nil, err
	}

	for r, row := range labels {
		for c, l := range row {
			if err := s.Set(r, c, l); err != nil {
				return nil, fmt.Errorf("label (%d,%d): %w", r, c, err)
			}
		}
	}

	return s.Export(workflow.ExportOptions{})
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
