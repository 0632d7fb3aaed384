package annotation

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/menta2k/seedtray-annotator/pkg/grid"
)

// Grid is a fixed-size matrix of labels drawn from one vocabulary. It is not
// safe for concurrent mutation; the owning session serializes edits.
type Grid struct {
	vocab *Vocabulary
	spec  grid.Spec
	cells [][]Label
}

// NewGrid creates a grid with every cell set to the vocabulary default
func NewGrid(vocab *Vocabulary, spec grid.Spec) (*Grid, error) {
	if vocab == nil {
		return nil, fmt.Errorf("annotation: nil vocabulary")
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	cells := make([][]Label, spec.Rows)
	for r := range cells {
		cells[r] = make([]Label, spec.Cols)
		for c := range cells[r] {
			cells[r][c] = vocab.Default()
		}
	}
	return &Grid{vocab: vocab, spec: spec, cells: cells}, nil
}

// Vocabulary returns the grid's label set
func (g *Grid) Vocabulary() *Vocabulary { return g.vocab }

// Spec returns the grid dimensions
func (g *Grid) Spec() grid.Spec { return g.spec }

// Get returns the label of cell (r, c)
func (g *Grid) Get(r, c int) (Label, error) {
	if err := g.check(r, c); err != nil {
		return "", err
	}
	return g.cells[r][c], nil
}

// Set overwrites cell (r, c); the label must belong to the vocabulary
func (g *Grid) Set(r, c int, l Label) error {
	if err := g.check(r, c); err != nil {
		return err
	}
	if !g.vocab.Contains(l) {
		return fmt.Errorf("%w: %q not in %s vocabulary", ErrInvalidLabel, l, g.vocab.name)
	}
	g.cells[r][c] = l
	return nil
}

// Cycle advances cell (r, c) to the next label and returns it
func (g *Grid) Cycle(r, c int) (Label, error) {
	if err := g.check(r, c); err != nil {
		return "", err
	}
	next, err := g.vocab.Next(g.cells[r][c])
	if err != nil {
		return "", err
	}
	g.cells[r][c] = next
	return next, nil
}

// Snapshot returns a deep copy of the labels, unaffected by later edits
func (g *Grid) Snapshot() [][]Label {
	out := make([][]Label, len(g.cells))
	for r, row := range g.cells {
		out[r] = append([]Label(nil), row...)
	}
	return out
}

// Count returns how many cells carry label l
func (g *Grid) Count(l Label) int {
	n := 0
	for _, row := range g.cells {
		for _, v := range row {
			if v == l {
				n++
			}
		}
	}
	return n
}

// Tally counts every label of the vocabulary, including zeros
func (g *Grid) Tally() map[Label]int {
	t := make(map[Label]int, g.vocab.Len())
	for _, l := range g.vocab.cycle {
		t[l] = 0
	}
	for _, row := range g.cells {
		for _, v := range row {
			t[v]++
		}
	}
	return t
}

// MarshalJSON encodes the grid as a matrix of label strings
func (g *Grid) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.cells)
}

func (g *Grid) check(r, c int) error {
	if r < 0 || r >= g.spec.Rows || c < 0 || c >= g.spec.Cols {
		return fmt.Errorf("%w: (%d,%d) in %s grid", ErrOutOfRange, r, c, g.spec)
	}
	return nil
}

// Migrate converts a legacy integer-coded grid to labels via the
// vocabulary's code table. Any unmapped code fails the whole migration.
func Migrate(vocab *Vocabulary, legacy [][]int) (*Grid, error) {
	raw := make([][]any, len(legacy))
	for r, row := range legacy {
		raw[r] = make([]any, len(row))
		for c, code := range row {
			raw[r][c] = code
		}
	}
	return Load(vocab, raw)
}

// Load builds a grid from persisted cells that may mix legacy integer codes
// (including JSON numbers) and label strings. Loading an already migrated
// grid yields the same labels, so Load is idempotent. Rows must be non-empty
// and of equal length.
func Load(vocab *Vocabulary, raw [][]any) (*Grid, error) {
	if len(raw) == 0 || len(raw[0]) == 0 {
		return nil, fmt.Errorf("%w: empty annotation grid", grid.ErrInvalidSpec)
	}
	g, err := NewGrid(vocab, grid.Spec{Rows: len(raw), Cols: len(raw[0])})
	if err != nil {
		return nil, err
	}

	for r, row := range raw {
		if len(row) != g.spec.Cols {
			return nil, fmt.Errorf("%w: row %d has %d cells, expected %d", grid.ErrInvalidSpec, r, len(row), g.spec.Cols)
		}
		for c, v := range row {
			l, err := decodeCell(vocab, v)
			if err != nil {
				return nil, fmt.Errorf("cell (%d,%d): %w", r, c, err)
			}
			g.cells[r][c] = l
		}
	}
	return g, nil
}

func decodeCell(vocab *Vocabulary, v any) (Label, error) {
	switch x := v.(type) {
	case Label:
		return vocab.Parse(string(x))
	case string:
		return vocab.Parse(x)
	case int:
		return vocab.FromCode(x)
	case int64:
		return vocab.FromCode(int(x))
	case float64:
		if x != math.Trunc(x) {
			return "", fmt.Errorf("%w: %v is not an integer", ErrUnknownLegacyCode, x)
		}
		return vocab.FromCode(int(x))
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnknownLegacyCode, x)
		}
		return vocab.FromCode(int(n))
	default:
		return "", fmt.Errorf("%w: unsupported cell value %v (%T)", ErrInvalidLabel, v, v)
	}
}

// Cells converts a label matrix back into the generic form accepted by Load
func Cells(labels [][]Label) [][]any {
	out := make([][]any, len(labels))
	for r, row := range labels {
		out[r] = make([]any, len(row))
		for c, l := range row {
			out[r][c] = string(l)
		}
	}
	return out
}
