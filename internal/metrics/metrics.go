// Package metrics records build outcomes as Prometheus metrics.
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/felixgeelhaar/buildplan/internal/compiler"
	"github.com/felixgeelhaar/buildplan/internal/errors"
	"github.com/felixgeelhaar/buildplan/internal/plan"
)

// Metrics holds all Prometheus metrics for buildplan
type Metrics struct {
	// Build metrics
	Builds        *prometheus.CounterVec
	BuildDuration prometheus.Histogram

	// Step metrics, labelled by step kind
	Steps        *prometheus.CounterVec
	StepDuration *prometheus.HistogramVec

	// External compiler metrics
	CompilerRuns     *prometheus.CounterVec
	CompilerDuration *prometheus.HistogramVec

	// Error metrics (by error code from structured errors)
	Errors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		Builds: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buildplan_builds_total",
				Help: "Total number of builds",
			},
			[]string{"success"},
		),
		BuildDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "buildplan_build_duration_seconds",
				Help:    "Build duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300},
			},
		),

		Steps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buildplan_steps_total",
				Help: "Total number of evaluated steps",
			},
			[]string{"step", "outcome"},
		),
		StepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "buildplan_step_duration_seconds",
				Help:    "Step evaluation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"step"},
		),

		CompilerRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buildplan_compiler_runs_total",
				Help: "Total number of external compiler invocations",
			},
			[]string{"tool", "success"},
		),
		CompilerDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "buildplan_compiler_duration_seconds",
				Help:    "External compiler duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"tool"},
		),

		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buildplan_errors_total",
				Help: "Total number of failed builds by error code",
			},
			[]string{"error_code"},
		),
	}
}

// RecordReport counts every step in r by kind and outcome.
func (m *Metrics) RecordReport(r *plan.Report) {
	if r == nil {
		return
	}
	for _, res := range r.Results {
		step := res.Key.Prefix()
		m.Steps.WithLabelValues(step, string(res.Outcome)).Inc()
		m.StepDuration.WithLabelValues(step).Observe(res.Duration.Seconds())
	}
}

// RecordBuild records a finished build. A failed build is also counted
// under the code of its outermost coded error, or "unknown".
func (m *Metrics) RecordBuild(d time.Duration, err error) {
	m.Builds.WithLabelValues(strconv.FormatBool(err == nil)).Inc()
	m.BuildDuration.Observe(d.Seconds())
	if err == nil {
		return
	}
	code := string(errors.CodeOf(err))
	if code == "" {
		code = "unknown"
	}
	m.Errors.WithLabelValues(code).Inc()
}

// Compiler wraps c so every invocation is counted and timed.
func (m *Metrics) Compiler(c compiler.Compiler) compiler.Compiler {
	return compiler.Func(func(ctx context.Context, req compiler.Request) (*compiler.Result, error) {
		start := time.Now()
		result, err := c.Compile(ctx, req)
		m.CompilerRuns.WithLabelValues(req.Tool, strconv.FormatBool(err == nil)).Inc()
		m.CompilerDuration.WithLabelValues(req.Tool).Observe(time.Since(start).Seconds())
		return result, err
	})
}
