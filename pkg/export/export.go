// Package export assembles the persisted artifacts of an annotated tray: the
// clean image, the JSON record and the zip bundle carrying both.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/menta2k/seedtray-annotator/internal/utils"
	"github.com/menta2k/seedtray-annotator/pkg/annotation"
	"github.com/menta2k/seedtray-annotator/pkg/metadata"
	"github.com/menta2k/seedtray-annotator/pkg/processing"
)

var (
	// ErrGridMismatch reports an annotation grid whose shape differs from
	// the metadata grid spec
	ErrGridMismatch = errors.New("annotation grid does not match metadata grid")
	// ErrInvalidCount reports a germination count override outside
	// [0, rows*cols]
	ErrInvalidCount = errors.New("invalid germination count")
)

// TimestampLayout is the timestamp suffix of artifact names
const TimestampLayout = "20060102_150405"

// Record is the persisted annotation record
type Record struct {
	SavedAt          time.Time              `json:"-"`
	Metadata         metadata.TrialMetadata `json:"metadata"`
	AnnotationGrid   [][]annotation.Label   `json:"annotation_grid"`
	GerminationCount int                    `json:"germination_count"`
}

// MarshalJSON writes saved_at as an ISO-8601 timestamp, omitting it for
// records that never had one
func (r Record) MarshalJSON() ([]byte, error) {
	type plain Record
	savedAt := ""
	if !r.SavedAt.IsZero() {
		savedAt = r.SavedAt.Format(time.RFC3339)
	}
	return json.Marshal(struct {
		SavedAt string `json:"saved_at,omitempty"`
		plain
	}{savedAt, plain(r)})
}

// Options adjusts a single export
type Options struct {
	// GerminationCount overrides the count of G cells when non-nil
	GerminationCount *int
	// Original is the unrectified upload to include in the bundle
	Original image.Image
}

// Export holds every artifact of one export, all sharing BaseName
type Export struct {
	BaseName string
	Image    []byte
	Original []byte
	JSON     []byte
	Record   Record
}

// Assembler builds exports
type Assembler struct {
	now    func() time.Time
	logger *slog.Logger
}

// NewAssembler creates an assembler using the wall clock
func NewAssembler(logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{now: time.Now, logger: logger}
}

// SetClock replaces the time source
func (a *Assembler) SetClock(now func() time.Time) {
	a.now = now
}

// Filename returns {crop}_({days}d)_annotated_{YYYYMMDD_HHMMSS}
func Filename(meta metadata.TrialMetadata, at time.Time) string {
	return fmt.Sprintf("%s_(%dd)_annotated_%s",
		utils.SanitizeFilename(meta.Crop), meta.DaysAfterSowing(), at.Format(TimestampLayout))
}

// BuildExport snapshots grid and encodes clean as PNG next to the JSON
// record. clean must be the image without any guidance overlay.
// Label failures abort the export and are logged, since they mean the
// grid was loaded from corrupted or foreign data.
func (a *Assembler) BuildExport(clean image.Image, grid *annotation.Grid, meta metadata.TrialMetadata, opts Options) (*Export, error) {
	if clean == nil {
		return nil, fmt.Errorf("export: no clean image")
	}
	if grid == nil {
		return nil, fmt.Errorf("export: no annotation grid")
	}
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	if grid.Spec() != meta.Grid {
		return nil, fmt.Errorf("%w: grid %s, metadata %s", ErrGridMismatch, grid.Spec(), meta.Grid)
	}

	labels := grid.Snapshot()
	vocab := grid.Vocabulary()
	for r, row := range labels {
		for c, l := range row {
			if !vocab.Contains(l) {
				err := fmt.Errorf("%w: %q at (%d,%d)", annotation.ErrInvalidLabel, l, r, c)
				a.logger.Error("export aborted", "error", err, "vocabulary", vocab.Name())
				return nil, err
			}
		}
	}

	count := grid.Count(annotation.Germinated)
	if opts.GerminationCount != nil {
		n := *opts.GerminationCount
		if n < 0 || n > meta.Grid.Cells() {
			return nil, fmt.Errorf("%w: %d outside 0..%d", ErrInvalidCount, n, meta.Grid.Cells())
		}
		count = n
	}

	now := a.now()
	rec := Record{
		SavedAt:          now,
		Metadata:         meta,
		AnnotationGrid:   labels,
		GerminationCount: count,
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}
	png, err := processing.EncodePNG(clean)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	exp := &Export{
		BaseName: Filename(meta, now),
		Image:    png,
		JSON:     data,
		Record:   rec,
	}
	if opts.Original != nil {
		if exp.Original, err = processing.EncodePNG(opts.Original); err != nil {
			return nil, fmt.Errorf("failed to encode original image: %w", err)
		}
	}

	a.logger.Debug("export built",
		"base", exp.BaseName,
		"germinated", count,
		"cells", meta.Grid.Cells())
	return exp, nil
}

// ParseRecord reads a persisted record. Legacy integer-coded grids are
// migrated through vocab, and the grid must match the metadata dimensions.
func ParseRecord(data []byte, vocab *annotation.Vocabulary) (Record, *annotation.Grid, error) {
	var raw struct {
		SavedAt          string                 `json:"saved_at"`
		Metadata         metadata.TrialMetadata `json:"metadata"`
		AnnotationGrid   [][]any                `json:"annotation_grid"`
		GerminationCount *int                   `json:"germination_count"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Record{}, nil, fmt.Errorf("failed to parse record: %w", err)
	}

	grid, err := annotation.Load(vocab, raw.AnnotationGrid)
	if err != nil {
		return Record{}, nil, err
	}
	if grid.Spec() != raw.Metadata.Grid {
		return Record{}, nil, fmt.Errorf("%w: grid %s, metadata %s", ErrGridMismatch, grid.Spec(), raw.Metadata.Grid)
	}

	rec := Record{
		Metadata:         raw.Metadata,
		AnnotationGrid:   grid.Snapshot(),
		GerminationCount: grid.Count(annotation.Germinated),
	}
	if raw.GerminationCount != nil {
		rec.GerminationCount = *raw.GerminationCount
	}
	if raw.SavedAt != "" {
		if rec.SavedAt, err = parseSavedAt(raw.SavedAt); err != nil {
			return Record{}, nil, err
		}
	}
	return rec, grid, nil
}

// parseSavedAt accepts RFC 3339 and the zone-less ISO form older records use
func parseSavedAt(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("failed to parse saved_at %q", s)
}
