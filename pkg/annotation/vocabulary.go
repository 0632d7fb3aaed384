// Package annotation holds per-cavity germination labels for one tray.
package annotation

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidLabel reports a label outside the active vocabulary
	ErrInvalidLabel = errors.New("invalid label")
	// ErrUnknownLegacyCode reports an integer code with no mapping
	ErrUnknownLegacyCode = errors.New("unknown legacy label code")
	// ErrOutOfRange reports a cell coordinate outside the grid
	ErrOutOfRange = errors.New("cell out of range")
)

// Label is a germination state as persisted in annotation records
type Label string

// Label values across both vocabularies
const (
	Ungerminated     Label = "UG"
	Germinated       Label = "G"
	Abnormal         Label = "A"
	AbnormalStunted  Label = "A(S)"
	AbnormalLanky    Label = "A(L)"
	AbnormalDiseased Label = "A(D)"
	AbnormalOther    Label = "A(O)"
)

// IsAbnormal reports whether l is any abnormal variant
func (l Label) IsAbnormal() bool {
	return strings.HasPrefix(string(l), string(Abnormal))
}

// Vocabulary is a closed label set with a fixed cycle order and a legacy
// integer code table. A vocabulary is chosen once per trial.
type Vocabulary struct {
	name    string
	cycle   []Label
	legacy  []Label
	initial Label
}

// ThreeState is the original vocabulary: G -> A -> UG -> G.
// Legacy codes: 0 = UG, 1 = G, 2 = A.
var ThreeState = &Vocabulary{
	name:    "three-state",
	cycle:   []Label{Germinated, Abnormal, Ungerminated},
	legacy:  []Label{Ungerminated, Germinated, Abnormal},
	initial: Germinated,
}

// SixState splits abnormal seedlings by symptom:
// UG -> G -> A(S) -> A(L) -> A(D) -> A(O) -> UG. Legacy codes 0..5 follow
// the same order.
var SixState = &Vocabulary{
	name:    "six-state",
	cycle:   []Label{Ungerminated, Germinated, AbnormalStunted, AbnormalLanky, AbnormalDiseased, AbnormalOther},
	legacy:  []Label{Ungerminated, Germinated, AbnormalStunted, AbnormalLanky, AbnormalDiseased, AbnormalOther},
	initial: Germinated,
}

// VocabularyByName returns ThreeState or SixState
func VocabularyByName(name string) (*Vocabulary, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ThreeState.name, "3", "three":
		return ThreeState, nil
	case SixState.name, "6", "six", "":
		return SixState, nil
	default:
		return nil, fmt.Errorf("unknown vocabulary %q (use three-state or six-state)", name)
	}
}

// Name returns the vocabulary identifier
func (v *Vocabulary) Name() string { return v.name }

// Labels returns the labels in cycle order
func (v *Vocabulary) Labels() []Label {
	return append([]Label(nil), v.cycle...)
}

// Len returns the number of labels
func (v *Vocabulary) Len() int { return len(v.cycle) }

// Default returns the label every cell starts with
func (v *Vocabulary) Default() Label { return v.initial }

// Contains reports whether l belongs to the vocabulary
func (v *Vocabulary) Contains(l Label) bool {
	return v.index(l) >= 0
}

// Next returns the label following l in cycle order, wrapping at the end
func (v *Vocabulary) Next(l Label) (Label, error) {
	i := v.index(l)
	if i < 0 {
		return "", fmt.Errorf("%w: %q not in %s vocabulary", ErrInvalidLabel, l, v.name)
	}
	return v.cycle[(i+1)%len(v.cycle)], nil
}

// FromCode maps a legacy integer code to its label
func (v *Vocabulary) FromCode(code int) (Label, error) {
	if code < 0 || code >= len(v.legacy) {
		return "", fmt.Errorf("%w: %d (%s vocabulary accepts 0..%d)", ErrUnknownLegacyCode, code, v.name, len(v.legacy)-1)
	}
	return v.legacy[code], nil
}

// Parse validates a persisted label string
func (v *Vocabulary) Parse(s string) (Label, error) {
	l := Label(strings.TrimSpace(s))
	if !v.Contains(l) {
		return "", fmt.Errorf("%w: %q not in %s vocabulary", ErrInvalidLabel, s, v.name)
	}
	return l, nil
}

func (v *Vocabulary) index(l Label) int {
	for i, c := range v.cycle {
		if c == l {
			return i
		}
	}
	return -1
}
