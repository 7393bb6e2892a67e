// Package cmd implements the buildplan command line.
package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/buildplan/internal/compiler"
	"github.com/felixgeelhaar/buildplan/internal/config"
	"github.com/felixgeelhaar/buildplan/internal/errors"
	"github.com/felixgeelhaar/buildplan/internal/log"
	"github.com/felixgeelhaar/buildplan/internal/ux"
)

// app holds the global flags and what they resolve to.
type app struct {
	configPath string
	logLevel   string
	logFormat  string
	output     string

	cfg    *config.Config
	logger *log.Logger

	// newCompiler builds the compiler used by build. Tests replace it.
	newCompiler func(cfg *config.Config, runID string, logger *log.Logger) compiler.Compiler
}

func processCompiler(cfg *config.Config, runID string, logger *log.Logger) compiler.Compiler {
	return &compiler.ProcessCompiler{
		ManifestDir: cfg.ManifestDir(),
		RunID:       runID,
		Logger:      logger,
	}
}

// NewRootCommand returns the buildplan command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{newCompiler: processCompiler})
}

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "buildplan",
		Short: "Incremental build planner for stylesheets and scripts",
		Long: `buildplan orders stylesheets and scripts by the symbols they provide and
require, groups scripts into modules and runs the external compilers only for
steps whose inputs changed since the last build.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "config file (default: "+config.FileName+" in the working directory or a parent)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.StringVar(&a.logFormat, "log-format", "", "log format: text or json")
	flags.StringVarP(&a.output, "output", "o", "text", "output format for listings: text, json or yaml")

	rootCmd.AddCommand(
		newBuildCmd(a),
		newReportCmd(a),
		newCSSCmd(a),
		newJSCmd(a),
		newHashesCmd(a),
		newRunsCmd(a),
		newVersionCmd(a),
	)
	return rootCmd
}

// Execute runs the command line against os.Args.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// setup loads the configuration and builds the logger. Commands that do
// not touch the project skip it.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	if err := cfg.Log.Validate(); err != nil {
		return err
	}

	lc := cfg.LoggerConfig()
	lc.Output = cmd.ErrOrStderr()
	a.cfg = cfg
	a.logger = log.New(lc)
	log.SetDefaultLogger(a.logger)
	a.logger.Debug("configuration loaded", "output_dir", cfg.OutputDir, "cache_dir", cfg.CacheDir)
	return nil
}

func (a *app) loadConfig() (*config.Config, error) {
	if a.configPath != "" {
		return config.Load(a.configPath)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigUnreadable, "failed to determine the working directory", err)
	}
	path, found := ux.DiscoverConfigFile(wd, config.FileName)
	if found {
		return config.Load(path)
	}
	return config.LoadOrDefault(path, wd)
}

// format writes data in the format chosen with --output.
func (a *app) format(cmd *cobra.Command, data any) error {
	f, err := ux.NewFormatter(a.output, &ux.FormatterOptions{Writer: cmd.OutOrStdout()})
	if err != nil {
		return errors.New(errors.ErrCodeConfigInvalid, err.Error())
	}
	return f.Format(data)
}
