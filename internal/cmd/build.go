package cmd

import (
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/buildplan/internal/errors"
	"github.com/felixgeelhaar/buildplan/internal/hashstore"
	"github.com/felixgeelhaar/buildplan/internal/metrics"
	"github.com/felixgeelhaar/buildplan/internal/plan"
	"github.com/felixgeelhaar/buildplan/internal/planner"
	"github.com/felixgeelhaar/buildplan/internal/ux"
)

func newBuildCmd(a *app) *cobra.Command {
	var (
		jobs        int
		verbose     bool
		metricsFile string
	)

	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Run every step whose inputs changed",
		Long: `Plan the project build and run it. Steps whose inputs hash to the digest
recorded by the previous build are skipped. The hash store is saved after
every build, including failed ones, so completed steps are not repeated.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd); err != nil {
				return err
			}
			cfg := a.cfg
			if cmd.Flags().Changed("jobs") {
				cfg.Jobs = jobs
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			if metricsFile != "" {
				cfg.MetricsFile = metricsFile
			}

			runID := uuid.NewString()
			logger := a.logger.WithRun(runID)

			store, err := hashstore.Load(cfg.HashStorePath())
			if errors.HasCode(err, errors.ErrCodeHashStoreMalformed) {
				logger.WithError(err).Warn("ignoring unreadable hash store; every step will run", "path", cfg.HashStorePath())
				store = hashstore.New()
			} else if err != nil {
				return err
			}
			logger.Info("starting build", "recorded_steps", len(store.Known()))

			reg, m := metrics.NewRegistry()
			p := planner.New(cfg, m.Compiler(a.newCompiler(cfg, runID, logger)))
			start := time.Now()
			report, runErr := p.Run(cmd.Context(), logger, store)

			m.RecordReport(report)
			m.RecordBuild(time.Since(start), runErr)
			if cfg.MetricsFile != "" {
				if err := metrics.WriteTextfile(cfg.MetricsFile, reg); err != nil {
					logger.WithError(err).Warn("failed to write metrics")
				}
			}

			if err := store.Save(cfg.HashStorePath()); err != nil {
				if runErr != nil {
					logger.WithError(err).Error("failed to save hash store")
					return runErr
				}
				return err
			}
			saved := len(store.Keys())
			logger.Debug("saved hash store", "path", cfg.HashStorePath(), "steps", saved, "dropped", len(store.Known())-saved)
			if runErr != nil {
				return runErr
			}

			report.RunID = runID
			if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
				return errors.NewFileWriteError(cfg.ReportPath(), err)
			}
			if err := plan.SaveReport(report, cfg.ReportPath()); err != nil {
				return errors.NewFileWriteError(cfg.ReportPath(), err)
			}
			logger.Info("build finished",
				"executed", report.Count(plan.OutcomeExecuted),
				"skipped", report.Count(plan.OutcomeSkipped),
				"duration", report.Duration.String())

			return ux.RenderReport(cmd.OutOrStdout(), report, ux.ReportOptions{Verbose: verbose})
		},
	}

	buildCmd.Flags().IntVarP(&jobs, "jobs", "j", 0, "concurrent metadata extraction (overrides the config file)")
	buildCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "list skipped steps too")
	buildCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics for the build to this file (overrides the config file)")
	return buildCmd
}

func newReportCmd(a *app) *cobra.Command {
	var verbose bool

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Show the outcome of the last successful build",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd); err != nil {
				return err
			}
			report, err := plan.LoadReport(a.cfg.ReportPath())
			if err != nil {
				return errors.NewFileReadError(a.cfg.ReportPath(), err).
					WithSuggestion("Run 'buildplan build' first")
			}
			if a.output == "text" || a.output == "" {
				return ux.RenderReport(cmd.OutOrStdout(), report, ux.ReportOptions{Verbose: verbose})
			}
			return a.format(cmd, report)
		},
	}

	reportCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "list skipped steps too")
	return reportCmd
}
