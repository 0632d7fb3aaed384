package annotation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/seedtray-annotator/pkg/grid"
)

func TestNewGridDefaultsToGerminated(t *testing.T) {
	for _, v := range []*Vocabulary{ThreeState, SixState} {
		g, err := NewGrid(v, grid.Spec{Rows: 14, Cols: 7})
		require.NoError(t, err)
		assert.Equal(t, 98, g.Count(Germinated), v.Name())
	}

	_, err := NewGrid(SixState, grid.Spec{Rows: 0, Cols: 7})
	assert.ErrorIs(t, err, grid.ErrInvalidSpec)
}

func TestCycleOrder(t *testing.T) {
	tests := []struct {
		vocab *Vocabulary
		want  []Label
	}{
		{ThreeState, []Label{Abnormal, Ungerminated, Germinated}},
		{SixState, []Label{AbnormalStunted, AbnormalLanky, AbnormalDiseased, AbnormalOther, Ungerminated, Germinated}},
	}

	for _, tt := range tests {
		t.Run(tt.vocab.Name(), func(t *testing.T) {
			g, err := NewGrid(tt.vocab, grid.Spec{Rows: 1, Cols: 1})
			require.NoError(t, err)
			for _, want := range tt.want {
				got, err := g.Cycle(0, 0)
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}
		})
	}
}

func TestCycleClosure(t *testing.T) {
	for _, v := range []*Vocabulary{ThreeState, SixState} {
		g, err := NewGrid(v, grid.Spec{Rows: 2, Cols: 2})
		require.NoError(t, err)

		for _, start := range v.Labels() {
			require.NoError(t, g.Set(1, 1, start))
			for i := 0; i < v.Len(); i++ {
				_, err := g.Cycle(1, 1)
				require.NoError(t, err)
			}
			got, err := g.Get(1, 1)
			require.NoError(t, err)
			assert.Equal(t, start, got, "%s from %s", v.Name(), start)
		}
	}
}

func TestSetValidatesLabel(t *testing.T) {
	g, err := NewGrid(ThreeState, grid.Spec{Rows: 2, Cols: 2})
	require.NoError(t, err)

	assert.ErrorIs(t, g.Set(0, 0, AbnormalLanky), ErrInvalidLabel)
	assert.ErrorIs(t, g.Set(0, 0, "X"), ErrInvalidLabel)
	assert.ErrorIs(t, g.Set(2, 0, Germinated), ErrOutOfRange)

	got, err := g.Get(0, 0)
	require.NoError(t, err)
	assert.Equal(t, Germinated, got, "failed set must not change the cell")

	_, err = g.Get(0, -1)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = g.Cycle(5, 5)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestSnapshotIsIndependent(t *testing.T) {
	g, err := NewGrid(SixState, grid.Spec{Rows: 2, Cols: 3})
	require.NoError(t, err)

	snap := g.Snapshot()
	require.NoError(t, g.Set(0, 0, Ungerminated))
	assert.Equal(t, Germinated, snap[0][0])

	snap[1][2] = AbnormalOther
	got, err := g.Get(1, 2)
	require.NoError(t, err)
	assert.Equal(t, Germinated, got)
}

func TestMigrateAllZeros(t *testing.T) {
	legacy := [][]int{{0, 0, 0}, {0, 0, 0}}
	for _, v := range []*Vocabulary{ThreeState, SixState} {
		g, err := Migrate(v, legacy)
		require.NoError(t, err)
		assert.Equal(t, 6, g.Count(Ungerminated), v.Name())
	}
}

func TestMigrateCodeTables(t *testing.T) {
	g, err := Migrate(ThreeState, [][]int{{0, 1, 2}})
	require.NoError(t, err)
	assert.Equal(t, [][]Label{{Ungerminated, Germinated, Abnormal}}, g.Snapshot())

	g, err = Migrate(SixState, [][]int{{0, 1, 2, 3, 4, 5}})
	require.NoError(t, err)
	assert.Equal(t, [][]Label{{Ungerminated, Germinated, AbnormalStunted, AbnormalLanky, AbnormalDiseased, AbnormalOther}}, g.Snapshot())
}

func TestMigrateUnknownCode(t *testing.T) {
	_, err := Migrate(ThreeState, [][]int{{0, 3}})
	assert.ErrorIs(t, err, ErrUnknownLegacyCode)

	_, err = Migrate(SixState, [][]int{{-1}})
	assert.ErrorIs(t, err, ErrUnknownLegacyCode)

	_, err = Migrate(SixState, [][]int{{1, 2}, {3}})
	assert.ErrorIs(t, err, grid.ErrInvalidSpec)
}

func TestLoadIsIdempotent(t *testing.T) {
	g, err := Migrate(SixState, [][]int{{0, 1}, {4, 5}})
	require.NoError(t, err)

	again, err := Load(SixState, Cells(g.Snapshot()))
	require.NoError(t, err)
	assert.Equal(t, g.Snapshot(), again.Snapshot())
}

func TestLoadFromJSON(t *testing.T) {
	var raw [][]any
	require.NoError(t, json.Unmarshal([]byte(`[[0,"G"],[2,"A(D)"]]`), &raw))

	g, err := Load(SixState, raw)
	require.NoError(t, err)
	assert.Equal(t, [][]Label{{Ungerminated, Germinated}, {AbnormalStunted, AbnormalDiseased}}, g.Snapshot())

	require.NoError(t, json.Unmarshal([]byte(`[[1.5]]`), &raw))
	_, err = Load(SixState, raw)
	assert.ErrorIs(t, err, ErrUnknownLegacyCode)

	require.NoError(t, json.Unmarshal([]byte(`[["A"]]`), &raw))
	_, err = Load(SixState, raw)
	assert.ErrorIs(t, err, ErrInvalidLabel)
}

func TestMarshalJSON(t *testing.T) {
	g, err := NewGrid(ThreeState, grid.Spec{Rows: 1, Cols: 2})
	require.NoError(t, err)
	require.NoError(t, g.Set(0, 1, Ungerminated))

	data, err := json.Marshal(g)
	require.NoError(t, err)
	assert.JSONEq(t, `[["G","UG"]]`, string(data))
}

func TestTally(t *testing.T) {
	g, err := Migrate(ThreeState, [][]int{{1, 1, 0}, {2, 1, 1}})
	require.NoError(t, err)

	assert.Equal(t, map[Label]int{Germinated: 4, Ungerminated: 1, Abnormal: 1}, g.Tally())
	assert.Equal(t, 4, g.Count(Germinated))
}

func TestVocabularyByName(t *testing.T) {
	v, err := VocabularyByName("three-state")
	require.NoError(t, err)
	assert.Same(t, ThreeState, v)

	v, err = VocabularyByName("")
	require.NoError(t, err)
	assert.Same(t, SixState, v)

	_, err = VocabularyByName("nine")
	assert.Error(t, err)
}

func TestIsAbnormal(t *testing.T) {
	assert.True(t, Abnormal.IsAbnormal())
	assert.True(t, AbnormalOther.IsAbnormal())
	assert.False(t, Ungerminated.IsAbnormal())
}
