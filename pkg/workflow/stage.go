package workflow

import (
	"errors"
	"fmt"
	"strings"
)

// Stage is one step of the annotation workflow
type Stage int

// Stages in workflow order
const (
	StageUpload Stage = iota
	StageRectify
	StageDefineGrid
	StageMetadata
	StageAnnotate
	StageExport
)

var stageNames = [...]string{"upload", "rectify", "define-grid", "metadata", "annotate", "export"}

// Stages lists every stage in order
func Stages() []Stage {
	return []Stage{StageUpload, StageRectify, StageDefineGrid, StageMetadata, StageAnnotate, StageExport}
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// ParseStage maps a stage name back to its Stage
func ParseStage(name string) (Stage, error) {
	for i, n := range stageNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return Stage(i), nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q", name)
}

// ErrMissingPrerequisite matches every MissingPrerequisiteError
var ErrMissingPrerequisite = errors.New("missing prerequisite")

// MissingPrerequisiteError reports a stage entered or operation invoked
// before the upstream artifact it depends on exists. Stage is the step that
// produces the missing artifact.
type MissingPrerequisiteError struct {
	Stage   Stage
	Missing string
}

func (e *MissingPrerequisiteError) Error() string {
	return fmt.Sprintf("missing %s: complete the %s stage first", e.Missing, e.Stage)
}

// Is lets errors.Is match ErrMissingPrerequisite
func (e *MissingPrerequisiteError) Is(target error) bool {
	return target == ErrMissingPrerequisite
}

// prerequisite is one artifact a stage needs, and the stage that produces it
type prerequisite struct {
	what    string
	from    Stage
	present func(*Session) bool
}

var (
	needSource = prerequisite{"source image", StageUpload, func(s *Session) bool { return s.source != nil }}
	needCells  = prerequisite{"grid definition", StageDefineGrid, func(s *Session) bool { return len(s.cells) > 0 }}
	needMeta   = prerequisite{"trial metadata", StageMetadata, func(s *Session) bool { return s.meta != nil }}
	needLabels = prerequisite{"annotation grid", StageMetadata, func(s *Session) bool { return s.labels != nil }}
)

// guards lists the prerequisites of each stage
var guards = map[Stage][]prerequisite{
	StageUpload:     nil,
	StageRectify:    {needSource},
	StageDefineGrid: {needSource},
	StageMetadata:   {needSource, needCells},
	StageAnnotate:   {needSource, needCells, needMeta, needLabels},
	StageExport:     {needSource, needCells, needMeta, needLabels},
}

// check returns the first missing prerequisite of stage, pointing the
// caller at the stage that produces it
func (s *Session) check(stage Stage) error {
	for _, p := range guards[stage] {
		if !p.present(s) {
			return &MissingPrerequisiteError{Stage: p.from, Missing: p.what}
		}
	}
	return nil
}
