// Package config loads the orchestrator settings from a YAML file and the
// environment. Command-line flags are applied on top by the CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/leodido/ffsys"
)

// Config holds the orchestrator settings.
type Config struct {
	Version     string   `yaml:"version"`
	OutDir      string   `yaml:"out_dir"`
	Source      string   `yaml:"source"`
	FFmpegDir   string   `yaml:"ffmpeg_dir"`
	Fetch       string   `yaml:"fetch"`
	Target      string   `yaml:"target"`
	Debug       bool     `yaml:"debug"`
	Jobs        int      `yaml:"jobs"`
	Force       bool     `yaml:"force"`
	Features    []string `yaml:"features"`
	BinDir      string   `yaml:"bin_dir"`
	BindingsDir string   `yaml:"bindings_dir"`
	Package     string   `yaml:"package"`
	Compiler    string   `yaml:"compiler"`
	Log         Log      `yaml:"log"`
}

// Log configures the logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultFeatures are selected when neither the file nor the environment
// names any.
var DefaultFeatures = []string{"avcodec", "avdevice", "avfilter", "avformat", "swresample", "swscale"}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version:  ffsys.DefaultVersion,
		OutDir:   "ffsys-out",
		Source:   ffsys.SourceAuto.String(),
		Fetch:    ffsys.FetchGit.String(),
		Features: slices.Clone(DefaultFeatures),
		Package:  "ffmpeg",
		Log:      Log{Level: "info", Format: "console"},
	}
}

// DefaultPath returns $HOME/.config/ffsys/config.yaml, or "" when the home
// directory is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "ffsys", "config.yaml")
}

// Load reads the configuration at path over the defaults. An empty path
// means [DefaultPath]; a missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
		if path == "" {
			return Default(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with FFSYS_* variables and the feature toggles in
// environ. FFMPEG_DIR is honoured when FFSYS_FFMPEG_DIR is unset.
func (c *Config) ApplyEnv(environ []string) {
	c.Version = ParseString("FFSYS_VERSION", c.Version)
	c.OutDir = ParseString("FFSYS_OUT_DIR", c.OutDir)
	c.Source = ParseString("FFSYS_SOURCE", c.Source)
	c.FFmpegDir = ParseString("FFSYS_FFMPEG_DIR", ParseString("FFMPEG_DIR", c.FFmpegDir))
	c.Fetch = ParseString("FFSYS_FETCH", c.Fetch)
	c.Target = ParseString("FFSYS_TARGET", c.Target)
	c.Debug = ParseBool("FFSYS_DEBUG", c.Debug)
	c.Jobs = ParseInt("FFSYS_JOBS", c.Jobs)
	c.Force = ParseBool("FFSYS_FORCE", c.Force)
	c.BinDir = ParseString("FFSYS_BIN_DIR", c.BinDir)
	c.BindingsDir = ParseString("FFSYS_BINDINGS_DIR", c.BindingsDir)
	c.Compiler = ParseString("FFSYS_CC", c.Compiler)
	c.Log.Level = ParseString("FFSYS_LOG_LEVEL", c.Log.Level)
	c.Log.Format = ParseString("FFSYS_LOG_FORMAT", c.Log.Format)

	enabled, disabled := FeaturesFromEnv(environ)
	features := ffsys.NewFeatureSet(c.Features...).With(enabled...)
	var out []string
	for _, name := range features.Names() {
		if !slices.ContainsFunc(disabled, func(d string) bool { return ffsys.NormalizeFeature(d) == name }) {
			out = append(out, name)
		}
	}
	c.Features = out
}

// Validate reports every setting no run could succeed with.
func (c *Config) Validate() error {
	var errs []error
	if !ffsys.ValidVersion(c.Version) {
		errs = append(errs, fmt.Errorf("version %q: want MAJOR.MINOR", c.Version))
	}
	if c.OutDir == "" {
		errs = append(errs, errors.New("out_dir is required"))
	}
	if _, err := ffsys.ParseSourceMode(c.Source); err != nil {
		errs = append(errs, fmt.Errorf("source: %w", err))
	}
	if _, err := ffsys.ParseFetchMode(c.Fetch); err != nil {
		errs = append(errs, fmt.Errorf("fetch: %w", err))
	}
	if c.Jobs < 0 {
		errs = append(errs, fmt.Errorf("jobs %d: must not be negative", c.Jobs))
	}
	return errors.Join(errs...)
}

// Options converts a validated configuration into orchestrator options.
func (c *Config) Options() (ffsys.Options, error) {
	if err := c.Validate(); err != nil {
		return ffsys.Options{}, err
	}
	source, _ := ffsys.ParseSourceMode(c.Source)
	fetch, _ := ffsys.ParseFetchMode(c.Fetch)
	return ffsys.Options{
		Features:    ffsys.NewFeatureSet(c.Features...),
		Version:     c.Version,
		OutDir:      c.OutDir,
		Source:      source,
		FFmpegDir:   c.FFmpegDir,
		Fetch:       fetch,
		Target:      ffsys.Target(c.Target),
		Debug:       c.Debug,
		Jobs:        c.Jobs,
		Force:       c.Force,
		BinDir:      c.BinDir,
		BindingsDir: c.BindingsDir,
		Package:     c.Package,
		Compiler:    c.Compiler,
	}, nil
}
