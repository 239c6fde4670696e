package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/penwyp/ivt-split/internal/analyzer"
	"github.com/penwyp/ivt-split/internal/config"
	apperrors "github.com/penwyp/ivt-split/internal/errors"
	"github.com/penwyp/ivt-split/internal/presentation/formatter"
	"github.com/penwyp/ivt-split/internal/util"
	"github.com/spf13/cobra"
)

var (
	// Logging related
	debug     bool
	logFile   string
	logFormat string

	// Configuration file
	configPath string

	// Loaded in PersistentPreRunE
	appConfig *config.Config

	rootCmd = &cobra.Command{
		Use:   "ivt-split",
		Short: "Split invalid-traffic reports into one file per SSP",
		Long: `ivt-split reads an invalid-traffic (IVT) report and writes one CSV file per
supply-side platform. The SSP name is the part of the publisher id before the
first underscore. Each file starts with a total line for the SSP followed by
its original rows.

Examples:
  ivt-split split report.csv out/               # One file per SSP in out/
  ivt-split route report.csv 100                 # Files in ./report/, SSPs spending >= 100 USD
                                                 # in ./report/spent_more_then_100.0_USD/
  ivt-split route report.xlsx 250 --out /data    # Excel input, custom output root
  ivt-split watch incoming/ 100                  # Split every report dropped into incoming/
  ivt-split formats                              # List known report layouts`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Config file (default ./ivt-split.yaml or ./configs/ivt-split.yaml when present)")

	// System and debugging
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "",
		"Also append logs to this file")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Log format (text, json)")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return apperrors.NewConfigError("invalid flags", err)
	})
}

// setup loads configuration and installs the global logger
func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if debug {
		cfg.Log.Level = "debug"
	}
	if logFile != "" {
		cfg.Log.File = logFile
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.Log.File != "" {
		cfg.Log.File = expandPath(cfg.Log.File)
		if err := ensureDir(filepath.Dir(cfg.Log.File)); err != nil {
			return apperrors.NewConfigError("failed to create log directory", err)
		}
	}

	if err := util.InitLogger(util.Options{
		Level:   cfg.Log.Level,
		Format:  util.LogFormat(cfg.Log.Format),
		File:    cfg.Log.File,
		Console: true,
	}); err != nil {
		return apperrors.NewConfigError("failed to initialize logging", err)
	}

	appConfig = cfg
	return nil
}

func Execute() error {
	return rootCmd.Execute()
}

// Helper functions

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[2:])
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return absPath
}

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}

// exactArgs is cobra.ExactArgs with a configuration error type, so a
// missing argument exits like any other bad invocation
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return apperrors.NewConfigError("invalid arguments", err)
		}
		return nil
	}
}

// parseLimit reads a spend limit in USD
func parseLimit(s string) (float64, error) {
	limit, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, apperrors.NewConfigError("spend limit is not a number", err).WithContext("value", s)
	}
	if err := analyzer.ValidateLimit(limit); err != nil {
		return 0, err
	}
	return limit, nil
}

// summaryPolicy picks the flag value when given, else the configured one
func summaryPolicy(flag string) (formatter.SummaryPolicy, error) {
	value := flag
	if value == "" {
		value = appConfig.SummaryPolicy
	}
	policy, err := formatter.ParseSummaryPolicy(value)
	if err != nil {
		return "", apperrors.NewConfigError("invalid summary policy", err)
	}
	return policy, nil
}

// printReport writes the run report in the requested output kind
func printReport(w io.Writer, kind string, result *analyzer.Result) error {
	f, err := formatter.NewFormatter(kind, w)
	if err != nil {
		return apperrors.NewConfigError("invalid output", err)
	}
	if err := f.Format(result.Report()); err != nil {
		return fmt.Errorf("failed to print run report: %w", err)
	}
	return nil
}
