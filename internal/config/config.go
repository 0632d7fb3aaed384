package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/menta2k/seedtray-annotator/internal/utils"
	"github.com/menta2k/seedtray-annotator/pkg/annotation"
	"github.com/menta2k/seedtray-annotator/pkg/grid"
	"github.com/menta2k/seedtray-annotator/pkg/rectify"
)

// EnvPrefix prefixes environment overrides, e.g. SEEDTRAY_GRID_ROWS
const EnvPrefix = "SEEDTRAY"

// Config holds the application configuration
type Config struct {
	Input      InputConfig      `json:"input" mapstructure:"input"`
	Rectify    RectifyConfig    `json:"rectify" mapstructure:"rectify"`
	Grid       GridConfig       `json:"grid" mapstructure:"grid"`
	Annotation AnnotationConfig `json:"annotation" mapstructure:"annotation"`
	Output     OutputConfig     `json:"output" mapstructure:"output"`
	Log        LogConfig        `json:"log" mapstructure:"log"`
}

// InputConfig holds configuration for image intake
type InputConfig struct {
	MinImageSize int `json:"min_image_size" mapstructure:"min_image_size"`
	DisplayWidth int `json:"display_width" mapstructure:"display_width"`
}

// RectifyConfig holds configuration for perspective correction
type RectifyConfig struct {
	Background string `json:"background" mapstructure:"background"`
	Workers    int    `json:"workers" mapstructure:"workers"`
}

// GridConfig holds the default grid and overlay style
type GridConfig struct {
	Rows      int     `json:"rows" mapstructure:"rows"`
	Cols      int     `json:"cols" mapstructure:"cols"`
	Color     string  `json:"color" mapstructure:"color"`
	Thickness int     `json:"thickness" mapstructure:"thickness"`
	LabelSize float64 `json:"label_size" mapstructure:"label_size"`
}

// AnnotationConfig holds configuration for labeling
type AnnotationConfig struct {
	Vocabulary string `json:"vocabulary" mapstructure:"vocabulary"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	Dir             string `json:"dir" mapstructure:"dir"`
	PreviewFormat   string `json:"preview_format" mapstructure:"preview_format"`
	Quality         int    `json:"quality" mapstructure:"quality"`
	IncludeOriginal bool   `json:"include_original" mapstructure:"include_original"`
	Bundle          bool   `json:"bundle" mapstructure:"bundle"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `json:"level" mapstructure:"level"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Input: InputConfig{
			MinImageSize: 16,
			DisplayWidth: 800,
		},
		Rectify: RectifyConfig{
			Background: "#000000",
			Workers:    runtime.GOMAXPROCS(0),
		},
		Grid: GridConfig{
			Rows:      14,
			Cols:      7,
			Color:     "#00FF00",
			Thickness: 2,
			LabelSize: 18,
		},
		Annotation: AnnotationConfig{
			Vocabulary: annotation.SixState.Name(),
		},
		Output: OutputConfig{
			Dir:           "./output",
			PreviewFormat: "png",
			Quality:       90,
			Bundle:        true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// setDefaults registers every key so environment overrides reach Unmarshal
func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("input.min_image_size", d.Input.MinImageSize)
	v.SetDefault("input.display_width", d.Input.DisplayWidth)
	v.SetDefault("rectify.background", d.Rectify.Background)
	v.SetDefault("rectify.workers", d.Rectify.Workers)
	v.SetDefault("grid.rows", d.Grid.Rows)
	v.SetDefault("grid.cols", d.Grid.Cols)
	v.SetDefault("grid.color", d.Grid.Color)
	v.SetDefault("grid.thickness", d.Grid.Thickness)
	v.SetDefault("grid.label_size", d.Grid.LabelSize)
	v.SetDefault("annotation.vocabulary", d.Annotation.Vocabulary)
	v.SetDefault("output.dir", d.Output.Dir)
	v.SetDefault("output.preview_format", d.Output.PreviewFormat)
	v.SetDefault("output.quality", d.Output.Quality)
	v.SetDefault("output.include_original", d.Output.IncludeOriginal)
	v.SetDefault("output.bundle", d.Output.Bundle)
	v.SetDefault("log.level", d.Log.Level)
}

// Load reads configuration from a YAML or JSON file with SEEDTRAY_*
// environment overrides. An empty path tries GetConfigPath and falls back to
// defaults when no file exists there.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		if p := GetConfigPath(); utils.FileExists(p) {
			path = p
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Input.MinImageSize < 1 {
		return fmt.Errorf("input.min_image_size must be positive")
	}

	if c.Input.DisplayWidth < 0 {
		return fmt.Errorf("input.display_width cannot be negative")
	}

	if _, err := grid.ParseHexColor(c.Rectify.Background); err != nil {
		return fmt.Errorf("rectify.background: %w", err)
	}

	if c.Rectify.Workers < 1 {
		return fmt.Errorf("rectify.workers must be positive")
	}

	if err := c.GridSpec().Validate(); err != nil {
		return fmt.Errorf("grid: %w", err)
	}

	if _, err := grid.ParseHexColor(c.Grid.Color); err != nil {
		return fmt.Errorf("grid.color: %w", err)
	}

	if c.Grid.Thickness < 1 {
		return fmt.Errorf("grid.thickness must be positive")
	}

	if c.Grid.LabelSize < 0 {
		return fmt.Errorf("grid.label_size cannot be negative")
	}

	if _, err := annotation.VocabularyByName(c.Annotation.Vocabulary); err != nil {
		return fmt.Errorf("annotation.vocabulary: %w", err)
	}

	switch strings.ToLower(c.Output.PreviewFormat) {
	case "png", "jpg", "jpeg", "webp":
	default:
		return fmt.Errorf("output.preview_format must be png, jpg or webp")
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	if _, err := c.SlogLevel(); err != nil {
		return err
	}

	return nil
}

// GridSpec returns the default grid dimensions
func (c *Config) GridSpec() grid.Spec {
	return grid.Spec{Rows: c.Grid.Rows, Cols: c.Grid.Cols}
}

// Style returns the overlay style
func (c *Config) Style() (grid.Style, error) {
	col, err := grid.ParseHexColor(c.Grid.Color)
	if err != nil {
		return grid.Style{}, err
	}
	return grid.Style{Color: col, Thickness: c.Grid.Thickness, LabelSize: c.Grid.LabelSize}, nil
}

// Vocabulary returns the configured label vocabulary
func (c *Config) Vocabulary() (*annotation.Vocabulary, error) {
	return annotation.VocabularyByName(c.Annotation.Vocabulary)
}

// RectifierConfig returns the rectifier settings
func (c *Config) RectifierConfig() (rectify.Config, error) {
	bg, err := grid.ParseHexColor(c.Rectify.Background)
	if err != nil {
		return rectify.Config{}, err
	}
	return rectify.Config{Background: bg, Workers: c.Rectify.Workers}, nil
}

// SlogLevel parses log.level
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".config", "seedtray", "config.yaml")
}
