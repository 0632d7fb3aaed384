// Package workflow drives one annotation pass over a single tray photo:
// upload, rectification, grid definition, metadata, labeling and export.
//
// A Session owns every artifact of the pass. Stages are guarded: an
// operation whose upstream artifact is missing fails with a
// MissingPrerequisiteError naming the stage to go back to. A Session is not
// safe for concurrent use; the presentation layer serializes actions.
package workflow

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/menta2k/seedtray-annotator/pkg/annotation"
	"github.com/menta2k/seedtray-annotator/pkg/export"
	"github.com/menta2k/seedtray-annotator/pkg/geometry"
	"github.com/menta2k/seedtray-annotator/pkg/grid"
	"github.com/menta2k/seedtray-annotator/pkg/metadata"
	"github.com/menta2k/seedtray-annotator/pkg/processing"
	"github.com/menta2k/seedtray-annotator/pkg/rectify"
)

// ErrCornersComplete reports a fifth corner click
var ErrCornersComplete = errors.New("all four corners already selected")

// GridMode records how the grid region was defined
type GridMode int

const (
	// ModeNone means no grid has been defined yet
	ModeNone GridMode = iota
	// ModePerspective tiles the inner region of the rectified image
	ModePerspective
	// ModeManual tiles percentage bounds on the oriented source
	ModeManual
)

func (m GridMode) String() string {
	switch m {
	case ModePerspective:
		return "perspective"
	case ModeManual:
		return "manual"
	default:
		return "none"
	}
}

// Options configures a new Session. Zero values fall back to defaults.
type Options struct {
	Vocabulary   *annotation.Vocabulary
	Processor    *processing.Processor
	Rectifier    *rectify.Rectifier
	Assembler    *export.Assembler
	Style        grid.Style
	DisplayWidth int
	Logger       *slog.Logger
}

// Session is the state of one annotation pass
type Session struct {
	id     uuid.UUID
	stage  Stage
	opts   Options
	logger *slog.Logger

	original []byte
	upload   image.Image
	rotation int
	source   image.Image
	exifDate time.Time

	corners   []geometry.Point
	rectified *rectify.RectifiedImage

	mode   GridMode
	region grid.Region
	spec   grid.Spec
	cells  []grid.CellRect

	meta   *metadata.TrialMetadata
	labels *annotation.Grid
}

// NewSession creates an empty session at the upload stage
func NewSession(opts Options) *Session {
	if opts.Vocabulary == nil {
		opts.Vocabulary = annotation.SixState
	}
	if opts.Processor == nil {
		opts.Processor = processing.NewProcessor(1)
	}
	if opts.Rectifier == nil {
		opts.Rectifier = rectify.New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Assembler == nil {
		opts.Assembler = export.NewAssembler(opts.Logger)
	}
	if opts.Style.Thickness == 0 {
		opts.Style = grid.DefaultStyle()
	}

	id := uuid.New()
	return &Session{
		id:     id,
		stage:  StageUpload,
		opts:   opts,
		logger: opts.Logger.With("session", id.String()),
	}
}

// ID returns the session identifier
func (s *Session) ID() uuid.UUID { return s.id }

// Stage returns the stage the session is currently in
func (s *Session) Stage() Stage { return s.stage }

// Vocabulary returns the label set fixed for this session
func (s *Session) Vocabulary() *annotation.Vocabulary { return s.opts.Vocabulary }

// CanEnter reports nil when every prerequisite of stage is present
func (s *Session) CanEnter(stage Stage) error {
	if _, ok := guards[stage]; !ok {
		return fmt.Errorf("unknown stage %d", int(stage))
	}
	return s.check(stage)
}

// LegalNextStages lists, in order, the stages other than the current one
// whose prerequisites are satisfied
func (s *Session) LegalNextStages() []Stage {
	var out []Stage
	for _, st := range Stages() {
		if st != s.stage && s.check(st) == nil {
			out = append(out, st)
		}
	}
	return out
}

// Goto moves to stage if its prerequisites are present
func (s *Session) Goto(stage Stage) error {
	if err := s.CanEnter(stage); err != nil {
		return err
	}
	s.logger.Debug("stage change", "from", s.stage, "to", stage)
	s.stage = stage
	return nil
}

// enter guards an operation of stage and makes it current
func (s *Session) enter(stage Stage) error {
	if err := s.check(stage); err != nil {
		return err
	}
	s.stage = stage
	return nil
}

// Upload decodes raw image bytes and starts a fresh pass. Everything derived
// from a previous upload is discarded.
func (s *Session) Upload(data []byte) error {
	img, err := s.opts.Processor.Decode(data)
	if err != nil {
		return err
	}

	s.original = data
	s.upload = img
	s.rotation = 0
	s.source = img
	s.exifDate = time.Time{}
	if d, ok := metadata.CaptureDateFromEXIF(bytes.NewReader(data)); ok {
		s.exifDate = d
	}
	s.resetFrom(StageRectify)
	s.stage = StageUpload

	b := img.Bounds()
	s.logger.Info("image uploaded", "width", b.Dx(), "height", b.Dy(), "exif_date", !s.exifDate.IsZero())
	return nil
}

// Rotate orients the upload clockwise by degrees (0, 90, 180 or 270),
// relative to the upload as decoded. Corners and everything downstream are
// discarded.
func (s *Session) Rotate(degrees int) error {
	if err := s.enter(StageRectify); err != nil {
		return err
	}
	rotated, err := processing.Rotate(s.upload, degrees)
	if err != nil {
		return err
	}
	s.source = rotated
	s.rotation = ((degrees % 360) + 360) % 360
	s.resetFrom(StageRectify)
	return nil
}

// Rotation returns the applied clockwise rotation in degrees
func (s *Session) Rotation() int { return s.rotation }

// Source returns the oriented source image
func (s *Session) Source() image.Image { return s.source }

// Original returns the uploaded bytes
func (s *Session) Original() []byte { return s.original }

// DisplayScale returns the factor between source pixels and the display
// the source is shown at
func (s *Session) DisplayScale() float64 {
	if s.source == nil {
		return 1
	}
	return processing.DisplayScale(s.source.Bounds().Dx(), s.opts.DisplayWidth)
}

// AddCorner records a corner click in source pixels, in TL, TR, BR, BL
// order. A click identical to the previous one is ignored. It returns the
// number of corners collected.
func (s *Session) AddCorner(p geometry.Point) (int, error) {
	if err := s.enter(StageRectify); err != nil {
		return 0, err
	}
	if n := len(s.corners); n > 0 && s.corners[n-1] == p {
		return n, nil
	}
	if len(s.corners) == 4 {
		return 4, ErrCornersComplete
	}
	b := s.source.Bounds()
	if p.X < float64(b.Min.X) || p.Y < float64(b.Min.Y) || p.X > float64(b.Max.X) || p.Y > float64(b.Max.Y) {
		return len(s.corners), fmt.Errorf("%w: corner (%.1f,%.1f) outside %dx%d image",
			geometry.ErrDegenerateGeometry, p.X, p.Y, b.Dx(), b.Dy())
	}
	s.corners = append(s.corners, p)
	return len(s.corners), nil
}

// AddDisplayCorner records a click made on the scaled display
func (s *Session) AddDisplayCorner(p geometry.Point) (int, error) {
	return s.AddCorner(processing.FromDisplay(p, s.DisplayScale()))
}

// Corners returns the collected corner clicks
func (s *Session) Corners() []geometry.Point {
	return append([]geometry.Point(nil), s.corners...)
}

// ResetCorners clears the corner selection and anything derived from it
func (s *Session) ResetCorners() {
	s.resetFrom(StageRectify)
}

// Rectify warps the source through the four collected corners. A degenerate
// selection fails with geometry.ErrDegenerateGeometry and keeps the corners
// so the caller can reset and re-select.
func (s *Session) Rectify() (*rectify.RectifiedImage, error) {
	if err := s.enter(StageRectify); err != nil {
		return nil, err
	}
	if len(s.corners) != 4 {
		return nil, &MissingPrerequisiteError{Stage: StageRectify, Missing: fmt.Sprintf("four corners (have %d)", len(s.corners))}
	}

	var c geometry.Corners
	copy(c[:], s.corners)
	r, err := s.opts.Rectifier.Rectify(s.source, c)
	if err != nil {
		s.logger.Warn("rectification rejected", "error", err)
		return nil, err
	}

	s.resetFrom(StageDefineGrid)
	s.rectified = r
	s.logger.Info("image rectified", "width", r.FinalWidth, "height", r.FinalHeight)
	return r, nil
}

// Rectified returns the rectified image, or nil
func (s *Session) Rectified() *rectify.RectifiedImage { return s.rectified }

// DefineGrid tiles the inner region of the rectified image
func (s *Session) DefineGrid(spec grid.Spec) ([]grid.CellRect, error) {
	if err := s.enter(StageDefineGrid); err != nil {
		return nil, err
	}
	if s.rectified == nil {
		return nil, &MissingPrerequisiteError{Stage: StageRectify, Missing: "rectified image"}
	}
	return s.applyGrid(ModePerspective, grid.FromRectified(s.rectified), spec)
}

// DefineGridManual tiles percentage bounds on the oriented source, skipping
// perspective correction
func (s *Session) DefineGridManual(pb grid.PercentBounds, spec grid.Spec) ([]grid.CellRect, error) {
	if err := s.enter(StageDefineGrid); err != nil {
		return nil, err
	}
	b := s.source.Bounds()
	region, err := grid.FromPercent(b.Dx(), b.Dy(), pb)
	if err != nil {
		return nil, err
	}
	s.rectified = nil
	return s.applyGrid(ModeManual, region, spec)
}

func (s *Session) applyGrid(mode GridMode, region grid.Region, spec grid.Spec) ([]grid.CellRect, error) {
	cells, err := grid.Partition(region, spec)
	if err != nil {
		return nil, err
	}
	s.mode = mode
	s.region = region
	s.cells = cells
	if spec != s.spec {
		s.labels = nil
	}
	s.spec = spec
	s.logger.Debug("grid defined", "mode", mode, "spec", spec.String(), "region", region)
	return cells, nil
}

// Cells returns the current cell rectangles
func (s *Session) Cells() []grid.CellRect {
	return append([]grid.CellRect(nil), s.cells...)
}

// Mode returns how the grid was defined
func (s *Session) Mode() GridMode { return s.mode }

// SuggestedCaptureDate returns the EXIF capture date of the upload, if any
func (s *Session) SuggestedCaptureDate() (time.Time, bool) {
	return s.exifDate, !s.exifDate.IsZero()
}

// SetMetadata validates and stores trial metadata. When its grid spec
// differs from the defined grid the region is re-tiled and any existing
// labels are discarded; otherwise existing labels are kept.
func (s *Session) SetMetadata(meta metadata.TrialMetadata) error {
	if err := s.enter(StageMetadata); err != nil {
		return err
	}
	if err := meta.Validate(); err != nil {
		return err
	}

	if meta.Grid != s.spec {
		s.logger.Info("grid spec changed, labels reset", "from", s.spec.String(), "to", meta.Grid.String())
		if _, err := s.applyGrid(s.mode, s.region, meta.Grid); err != nil {
			return err
		}
	}
	if s.labels == nil {
		labels, err := annotation.NewGrid(s.opts.Vocabulary, meta.Grid)
		if err != nil {
			return err
		}
		s.labels = labels
	}
	s.meta = &meta
	return nil
}

// Metadata returns the stored metadata, if any
func (s *Session) Metadata() (metadata.TrialMetadata, bool) {
	if s.meta == nil {
		return metadata.TrialMetadata{}, false
	}
	return *s.meta, true
}

// Get returns the label of cell (r, c)
func (s *Session) Get(r, c int) (annotation.Label, error) {
	if err := s.enter(StageAnnotate); err != nil {
		return "", err
	}
	return s.labels.Get(r, c)
}

// Set overwrites the label of cell (r, c)
func (s *Session) Set(r, c int, l annotation.Label) error {
	if err := s.enter(StageAnnotate); err != nil {
		return err
	}
	return s.labels.Set(r, c, l)
}

// Cycle advances cell (r, c) to its next label and returns it
func (s *Session) Cycle(r, c int) (annotation.Label, error) {
	if err := s.enter(StageAnnotate); err != nil {
		return "", err
	}
	return s.labels.Cycle(r, c)
}

// CycleAt cycles the cell under pixel (x, y) of the clean image
func (s *Session) CycleAt(x, y int) (grid.CellRect, annotation.Label, error) {
	if err := s.enter(StageAnnotate); err != nil {
		return grid.CellRect{}, "", err
	}
	cell, ok := grid.CellAt(s.cells, x, y)
	if !ok {
		return grid.CellRect{}, "", fmt.Errorf("%w: pixel (%d,%d) is not inside any cell", annotation.ErrOutOfRange, x, y)
	}
	l, err := s.labels.Cycle(cell.Row, cell.Col)
	return cell, l, err
}

// Snapshot returns a copy of the current labels
func (s *Session) Snapshot() ([][]annotation.Label, error) {
	if err := s.check(StageAnnotate); err != nil {
		return nil, err
	}
	return s.labels.Snapshot(), nil
}

// Labels returns the live annotation grid, or nil before metadata is set
func (s *Session) Labels() *annotation.Grid { return s.labels }

// ExportOptions adjusts Export
type ExportOptions struct {
	GerminationCount *int
	IncludeOriginal  bool
}

// Export assembles the artifacts of the pass from the clean image
func (s *Session) Export(opts ExportOptions) (*export.Export, error) {
	if err := s.enter(StageExport); err != nil {
		return nil, err
	}
	eo := export.Options{GerminationCount: opts.GerminationCount}
	if opts.IncludeOriginal {
		eo.Original = s.upload
	}

	exp, err := s.opts.Assembler.BuildExport(s.Clean(), s.labels, *s.meta, eo)
	if err != nil {
		return nil, err
	}
	s.logger.Info("export ready", "base", exp.BaseName, "germination_count", exp.Record.GerminationCount)
	return exp, nil
}

// resetFrom discards every artifact produced at or after stage
func (s *Session) resetFrom(stage Stage) {
	if stage <= StageRectify {
		s.corners = nil
		s.rectified = nil
	}
	if stage <= StageDefineGrid {
		s.mode = ModeNone
		s.region = grid.Region{}
		s.spec = grid.Spec{}
		s.cells = nil
		s.labels = nil
		s.meta = nil
	}
}
