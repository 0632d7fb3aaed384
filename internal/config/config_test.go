package config

import (
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/seedtray-annotator/pkg/annotation"
	"github.com/menta2k/seedtray-annotator/pkg/grid"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, grid.Spec{Rows: 14, Cols: 7}, c.GridSpec())

	style, err := c.Style()
	require.NoError(t, err)
	assert.Equal(t, grid.DefaultStyle(), style)

	v, err := c.Vocabulary()
	require.NoError(t, err)
	assert.Same(t, annotation.SixState, v)

	rc, err := c.RectifierConfig()
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{0, 0, 0, 255}, rc.Background)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero rows", func(c *Config) { c.Grid.Rows = 0 }},
		{"bad color", func(c *Config) { c.Grid.Color = "green" }},
		{"bad background", func(c *Config) { c.Rectify.Background = "#12" }},
		{"thin lines", func(c *Config) { c.Grid.Thickness = 0 }},
		{"vocabulary", func(c *Config) { c.Annotation.Vocabulary = "ten-state" }},
		{"format", func(c *Config) { c.Output.PreviewFormat = "gif" }},
		{"quality", func(c *Config) { c.Output.Quality = 101 }},
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
		{"workers", func(c *Config) { c.Rectify.Workers = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("grid:\n  rows: 16\n  color: \"#FF0000\"\nannotation:\n  vocabulary: three-state\n"), 0644))
	t.Setenv("SEEDTRAY_GRID_COLS", "9")
	t.Setenv("SEEDTRAY_LOG_LEVEL", "debug")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, grid.Spec{Rows: 16, Cols: 9}, c.GridSpec())
	assert.Equal(t, "#FF0000", c.Grid.Color)
	assert.Equal(t, "three-state", c.Annotation.Vocabulary)
	assert.Equal(t, 800, c.Input.DisplayWidth)

	level, err := c.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSaveAndLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	c := Default()
	c.Grid.Rows = 8
	c.Output.IncludeOriginal = true
	require.NoError(t, c.SaveToFile(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, loaded.Grid.Rows)
	assert.True(t, loaded.Output.IncludeOriginal)
}
