// Package config loads the build configuration from buildplan.yaml.
package config

import (
	"bytes"
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/buildplan/internal/errors"
	"github.com/felixgeelhaar/buildplan/internal/log"
	"github.com/felixgeelhaar/buildplan/internal/sources"
)

// FileName is the configuration file looked up in the working directory.
const FileName = "buildplan.yaml"

//go:embed builtin/defaults.yaml
var builtin embed.FS

// Config describes a project build.
type Config struct {
	// OutputDir receives compiled and generated files.
	OutputDir string `yaml:"output_dir"`

	// CacheDir holds the hash store and intermediate objects. Empty means
	// OutputDir/.buildplan.
	CacheDir string `yaml:"cache_dir,omitempty"`

	// MetricsFile, when set, receives Prometheus metrics after each build.
	MetricsFile string `yaml:"metrics_file,omitempty"`

	// Jobs bounds concurrent metadata extraction.
	Jobs int `yaml:"jobs"`

	Log LogConfig `yaml:"log"`

	CSS       ToolConfig `yaml:"css"`
	JS        JSConfig   `yaml:"js"`
	Templates ToolConfig `yaml:"templates"`
	Protos    ToolConfig `yaml:"protos"`
}

// LogConfig selects the log level and format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// RootConfig is a source directory.
type RootConfig struct {
	Path         string `yaml:"path"`
	TestOnly     bool   `yaml:"test_only,omitempty"`
	LoadAsNeeded bool   `yaml:"load_as_needed,omitempty"`
}

// Root converts the configuration to a sources.Root.
func (r RootConfig) Root() sources.Root {
	var props sources.Property
	if r.TestOnly {
		props |= sources.TestOnly
	}
	if r.LoadAsNeeded {
		props |= sources.LoadAsNeeded
	}
	return sources.Root{Path: r.Path, Props: props}
}

// ToolConfig describes one kind of source and the tool that compiles it.
type ToolConfig struct {
	Roots      []RootConfig `yaml:"roots"`
	Extensions []string     `yaml:"extensions"`
	// Command is the tool's command line prefix.
	Command []string `yaml:"command"`
}

// SourceRoots converts the configured roots.
func (t ToolConfig) SourceRoots() []sources.Root {
	roots := make([]sources.Root, len(t.Roots))
	for i, r := range t.Roots {
		roots[i] = r.Root()
	}
	return roots
}

// JSConfig adds the ambient namespaces to the script tool configuration.
type JSConfig struct {
	ToolConfig `yaml:",inline"`
	// Ambient namespaces need no provider.
	Ambient []string `yaml:"ambient"`
}

// Default returns the built-in configuration.
func Default() *Config {
	data, err := builtin.ReadFile("builtin/defaults.yaml")
	if err != nil {
		panic(fmt.Sprintf("built-in defaults missing: %v", err))
	}
	cfg := &Config{}
	if err := decode(bytes.NewReader(data), cfg); err != nil {
		panic(fmt.Sprintf("built-in defaults invalid: %v", err))
	}
	return cfg
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// Load reads the configuration at path over the defaults. Relative paths
// in the result are resolved against the directory holding path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigUnreadable, fmt.Sprintf("failed to read %s", path), err).
			WithSuggestion(fmt.Sprintf("Create %s or pass --config with the path of an existing file", FileName))
	}
	cfg := Default()
	if err := decode(bytes.NewReader(data), cfg); err != nil {
		return nil, errors.NewConfigInvalidError(fmt.Sprintf("%s: %v", path, err))
	}

	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigUnreadable, fmt.Sprintf("failed to resolve %s", path), err)
	}
	cfg.ResolvePaths(abs)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads path when it exists and returns the defaults,
// resolved against dir, when it does not.
func LoadOrDefault(path, dir string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		cfg.ResolvePaths(dir)
		return cfg, cfg.Validate()
	}
	return Load(path)
}

// ResolvePaths makes every relative path absolute against base and fills
// in the cache directory.
func (c *Config) ResolvePaths(base string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	c.OutputDir = abs(c.OutputDir)
	if c.CacheDir == "" {
		c.CacheDir = filepath.Join(c.OutputDir, ".buildplan")
	}
	c.CacheDir = abs(c.CacheDir)
	c.MetricsFile = abs(c.MetricsFile)
	for _, t := range []*ToolConfig{&c.CSS, &c.JS.ToolConfig, &c.Templates, &c.Protos} {
		for i := range t.Roots {
			t.Roots[i].Path = abs(t.Roots[i].Path)
		}
	}
}

// HashStorePath is where the hash store is kept.
func (c *Config) HashStorePath() string {
	return filepath.Join(c.CacheDir, "hashes.json")
}

// ReportPath is where the last run report is kept.
func (c *Config) ReportPath() string {
	return filepath.Join(c.CacheDir, "last-run.json")
}

// ManifestDir is where compiler run manifests are kept.
func (c *Config) ManifestDir() string {
	return filepath.Join(c.CacheDir, "runs")
}

// LoggerConfig converts the log section for the log package.
func (c *Config) LoggerConfig() log.Config {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(c.Log.Level)
	cfg.Format = log.ParseFormat(c.Log.Format)
	return cfg
}

// Validate checks the configuration for values no build can use.
func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return errors.NewConfigInvalidError("output_dir must not be empty")
	}
	if c.Jobs < 1 {
		return errors.NewConfigInvalidError(fmt.Sprintf("jobs must be at least 1, got %d", c.Jobs))
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}

	tools := []struct {
		name string
		cfg  ToolConfig
	}{
		{"css", c.CSS},
		{"js", c.JS.ToolConfig},
		{"templates", c.Templates},
		{"protos", c.Protos},
	}
	for _, t := range tools {
		if err := t.cfg.validate(t.name); err != nil {
			return err
		}
	}
	for _, ns := range c.JS.Ambient {
		if strings.TrimSpace(ns) == "" {
			return errors.NewConfigInvalidError("js.ambient must not contain empty namespaces")
		}
	}
	return nil
}

// Validate checks the log level and format names.
func (l LogConfig) Validate() error {
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return errors.NewConfigInvalidError(fmt.Sprintf("log.level %q must be debug, info, warn or error", l.Level))
	}
	switch strings.ToLower(l.Format) {
	case "text", "json":
	default:
		return errors.NewConfigInvalidError(fmt.Sprintf("log.format %q must be text or json", l.Format))
	}
	return nil
}

func (t ToolConfig) validate(name string) error {
	for i, r := range t.Roots {
		if r.Path == "" {
			return errors.NewConfigInvalidError(fmt.Sprintf("%s.roots[%d].path must not be empty", name, i))
		}
	}
	for _, ext := range t.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return errors.NewConfigInvalidError(fmt.Sprintf("%s.extensions entry %q must start with a dot", name, ext))
		}
	}
	if len(t.Roots) > 0 && len(t.Command) == 0 {
		return errors.NewConfigInvalidError(fmt.Sprintf("%s.command must name the tool when roots are configured", name))
	}
	return nil
}
