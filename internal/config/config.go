package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/penwyp/ivt-split/internal/core/model"
	apperrors "github.com/penwyp/ivt-split/internal/errors"
)

// EnvPrefix is prepended to every environment override, e.g. IVT_SPLIT_LOG_LEVEL
const EnvPrefix = "IVT_SPLIT"

// Config is the complete tool configuration
type Config struct {
	Log           LogConfig      `yaml:"log" envconfig:"LOG"`
	SummaryPolicy string         `yaml:"summary_policy" envconfig:"SUMMARY_POLICY" validate:"oneof=append truncate"`
	Formats       []model.Format `yaml:"formats" ignored:"true" validate:"unique=Name,dive"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format string `yaml:"format" envconfig:"FORMAT" validate:"oneof=text json"`
	File   string `yaml:"file" envconfig:"FILE"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		SummaryPolicy: "append",
	}
}

// configLocations are tried in order when no explicit path is given
var configLocations = []string{
	"ivt-split.yaml",
	"configs/ivt-split.yaml",
}

// FindConfigFile returns the first existing default config file, or ""
func FindConfigFile() string {
	for _, location := range configLocations {
		if info, err := os.Stat(location); err == nil && !info.IsDir() {
			return location
		}
	}
	return ""
}

// Load builds the configuration: defaults, then the YAML file at path (or
// a default location when path is empty), then IVT_SPLIT_* environment
// overrides. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = FindConfigFile()
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, apperrors.NewConfigError("failed to load config from env", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile decodes YAML over cfg; unknown keys are rejected
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return apperrors.NewConfigError("failed to read config file", err).WithContext("path", path)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return apperrors.NewConfigError("failed to parse config file", err).WithContext("path", path)
	}
	return nil
}

var validate = validator.New()

// Validate checks field tags, then that every declared format resolves its
// columns and does not reuse a built-in name.
func (c *Config) Validate() error {
	c.Log.Level = strings.ToLower(c.Log.Level)
	c.Log.Format = strings.ToLower(c.Log.Format)
	c.SummaryPolicy = strings.ToLower(c.SummaryPolicy)

	if err := validate.Struct(c); err != nil {
		return apperrors.NewConfigError("config validation failed", describe(err))
	}

	builtins := make(map[string]bool)
	for _, f := range model.BuiltinFormats() {
		builtins[f.Name] = true
	}
	for _, f := range c.Formats {
		if builtins[f.Name] {
			return apperrors.NewConfigError("format name is reserved for a built-in format", nil).
				WithContext("format", f.Name)
		}
		if _, err := f.Layout(); err != nil {
			return apperrors.NewConfigError("invalid format", err).WithContext("format", f.Name)
		}
	}
	return nil
}

// describe turns validator errors into one readable line
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s (got %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
	}
	return errors.New(strings.Join(parts, "; "))
}

// AllFormats returns built-in formats followed by the ones from the config file
func (c *Config) AllFormats() []model.Format {
	formats := model.BuiltinFormats()
	return append(formats, c.Formats...)
}

// Format looks up a report format by name
func (c *Config) Format(name string) (model.Format, error) {
	for _, f := range c.AllFormats() {
		if f.Name == name {
			return f, nil
		}
	}
	names := make([]string, 0, len(c.Formats)+2)
	for _, f := range c.AllFormats() {
		names = append(names, f.Name)
	}
	return model.Format{}, apperrors.NewConfigError("unknown report format", nil).
		WithContext("format", name).
		WithContext("known", strings.Join(names, ","))
}
