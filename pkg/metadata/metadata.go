// Package metadata describes one germination trial photograph: when it was
// taken, when the tray was sown, and what is growing in it.
package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/menta2k/seedtray-annotator/pkg/grid"
)

// ErrInvalidMetadata reports trial metadata that must be corrected before
// the workflow can continue
var ErrInvalidMetadata = errors.New("invalid metadata")

// DateLayout is the persisted calendar date format
const DateLayout = "2006-01-02"

// DefaultSowingOffset is how far before capture the sowing date is
// pre-filled
const DefaultSowingOffset = 14 * 24 * time.Hour

// Crops lists the crops offered for selection; free text is also accepted
var Crops = []string{"Tomato", "Cucumber", "Hot Pepper", "Cabbage", "Lettuce", "Eggplant", "Other"}

// Shapes lists the cavity shapes offered for selection
var Shapes = []string{"Circle", "Square", "Rectangle", "Hexagon", "Other"}

// TrialMetadata holds the per-photograph trial facts. Dates are calendar
// dates; any time of day is discarded.
type TrialMetadata struct {
	CaptureDate time.Time
	SowingDate  time.Time
	Crop        string
	Shape       string
	Grid        grid.Spec
}

// New builds metadata from its parts and validates it
func New(capture, sowing time.Time, crop, shape string, spec grid.Spec) (TrialMetadata, error) {
	m := TrialMetadata{
		CaptureDate: Date(capture),
		SowingDate:  Date(sowing),
		Crop:        strings.TrimSpace(crop),
		Shape:       strings.TrimSpace(shape),
		Grid:        spec,
	}
	if err := m.Validate(); err != nil {
		return TrialMetadata{}, err
	}
	return m, nil
}

// DaysAfterSowing returns captureDate - sowingDate in whole days
func (m TrialMetadata) DaysAfterSowing() int {
	return int(Date(m.CaptureDate).Sub(Date(m.SowingDate)).Hours() / 24)
}

// Validate enforces sowing < capture, an age of at least one day, a crop
// name and a usable grid
func (m TrialMetadata) Validate() error {
	if m.CaptureDate.IsZero() || m.SowingDate.IsZero() {
		return fmt.Errorf("%w: capture and sowing dates are required", ErrInvalidMetadata)
	}
	if !Date(m.SowingDate).Before(Date(m.CaptureDate)) {
		return fmt.Errorf("%w: sowing date %s must be before capture date %s",
			ErrInvalidMetadata, m.SowingDate.Format(DateLayout), m.CaptureDate.Format(DateLayout))
	}
	if days := m.DaysAfterSowing(); days < 1 {
		return fmt.Errorf("%w: seedlings must be at least 1 day old, got %d", ErrInvalidMetadata, days)
	}
	if strings.TrimSpace(m.Crop) == "" {
		return fmt.Errorf("%w: crop is required", ErrInvalidMetadata)
	}
	if err := m.Grid.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	return nil
}

// LegacyUID returns the identifier older records were keyed by:
// {crop}_{YYMMDD}_{days}d
func (m TrialMetadata) LegacyUID() string {
	return fmt.Sprintf("%s_%s_%dd", m.Crop, m.CaptureDate.Format("060102"), m.DaysAfterSowing())
}

type jsonMetadata struct {
	UIDLegacy       string `json:"UID_legacy,omitempty"`
	CaptureDate     string `json:"capture_date"`
	SowingDate      string `json:"sowing_date"`
	DaysAfterSowing int    `json:"days_after_sowing"`
	Crop            string `json:"crop"`
	Rows            int    `json:"nrows"`
	Cols            int    `json:"ncols"`
	Shape           string `json:"shape"`
}

// MarshalJSON writes the persisted record form with derived fields filled in
func (m TrialMetadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonMetadata{
		UIDLegacy:       m.LegacyUID(),
		CaptureDate:     m.CaptureDate.Format(DateLayout),
		SowingDate:      m.SowingDate.Format(DateLayout),
		DaysAfterSowing: m.DaysAfterSowing(),
		Crop:            m.Crop,
		Rows:            m.Grid.Rows,
		Cols:            m.Grid.Cols,
		Shape:           m.Shape,
	})
}

// UnmarshalJSON reads the persisted form. A stored days_after_sowing that
// disagrees with the dates is rejected.
func (m *TrialMetadata) UnmarshalJSON(data []byte) error {
	var j jsonMetadata
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}

	capture, err := ParseDate(j.CaptureDate)
	if err != nil {
		return err
	}
	sowing, err := ParseDate(j.SowingDate)
	if err != nil {
		return err
	}

	out := TrialMetadata{
		CaptureDate: capture,
		SowingDate:  sowing,
		Crop:        j.Crop,
		Shape:       j.Shape,
		Grid:        grid.Spec{Rows: j.Rows, Cols: j.Cols},
	}
	if err := out.Validate(); err != nil {
		return err
	}
	if j.DaysAfterSowing != 0 && j.DaysAfterSowing != out.DaysAfterSowing() {
		return fmt.Errorf("%w: days_after_sowing %d does not match dates (%d)",
			ErrInvalidMetadata, j.DaysAfterSowing, out.DaysAfterSowing())
	}
	*m = out
	return nil
}

// ParseDate parses a YYYY-MM-DD calendar date
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q: expected YYYY-MM-DD", ErrInvalidMetadata, s)
	}
	return t, nil
}

// Date truncates t to its calendar date in UTC
func Date(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

// DefaultSowingDate pre-fills the sowing date two weeks before capture
func DefaultSowingDate(capture time.Time) time.Time {
	return Date(capture).Add(-DefaultSowingOffset)
}

// CaptureDateFromEXIF reads DateTimeOriginal (or DateTime) from an encoded
// image. ok is false when the image carries no usable date.
func CaptureDateFromEXIF(r io.Reader) (date time.Time, ok bool) {
	x, err := exif.Decode(r)
	if err != nil {
		return time.Time{}, false
	}
	t, err := x.DateTime()
	if err != nil || t.IsZero() {
		return time.Time{}, false
	}
	return Date(t), true
}
