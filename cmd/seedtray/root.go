package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	seedtray "github.com/menta2k/seedtray-annotator"
	"github.com/menta2k/seedtray-annotator/internal/config"
	"github.com/menta2k/seedtray-annotator/pkg/rectify"
)

// defaultWarper is replaced by the OpenCV warper in opencv builds
var defaultWarper rectify.Warper

// app is the state shared by every subcommand once flags are parsed
type app struct {
	configPath string
	logLevel   string

	cfg       *config.Config
	logger    *slog.Logger
	annotator *seedtray.Annotator
}

func rootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "seedtray",
		Short:         "Seed-tray germination annotator",
		Version:       seedtray.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default "+config.GetConfigPath()+")")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides log.level)")

	rootCmd.AddCommand(
		rectifyCommand(a),
		previewCommand(a),
		exportCommand(a),
		migrateCommand(a),
		configCommand(a),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return a.initialize()
	}

	return rootCmd
}

// initialize loads configuration and builds the logger and annotator
func (a *app) initialize() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(a.logger)

	vocab, err := cfg.Vocabulary()
	if err != nil {
		return err
	}
	style, err := cfg.Style()
	if err != nil {
		return err
	}
	rc, err := cfg.RectifierConfig()
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.annotator = seedtray.NewWithOptions(seedtray.Options{
		Vocabulary:   vocab,
		Style:        style,
		Rectify:      rc,
		Warper:       defaultWarper,
		MinImageSize: cfg.Input.MinImageSize,
		DisplayWidth: cfg.Input.DisplayWidth,
		Logger:       a.logger,
	})
	a.logger.Debug("configuration loaded",
		"vocabulary", vocab.Name(),
		"grid", cfg.GridSpec().String(),
		"opencv", defaultWarper != nil)
	return nil
}

// out prints a result line for the user
func out(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format+"\n", args...)
}
