package css

import (
	"context"
	"os"
	"path/filepath"

	"github.com/felixgeelhaar/buildplan/internal/compiler"
	"github.com/felixgeelhaar/buildplan/internal/errors"
	"github.com/felixgeelhaar/buildplan/internal/log"
	"github.com/felixgeelhaar/buildplan/internal/metadata"
	"github.com/felixgeelhaar/buildplan/internal/plan"
	"github.com/felixgeelhaar/buildplan/internal/sources"
)

const (
	depInfoCacheName = "css-dep-info.json"
	bundlesCacheName = "css-bundles.json"
)

// Options configures stylesheet compilation.
type Options struct {
	// Command is the stylesheet compiler's command line prefix.
	Command   []string
	OutputDir string
	// Jobs bounds concurrent declaration scanning.
	Jobs int
}

// Planner creates the stylesheet steps.
type Planner struct {
	Ingredients *plan.Ingredients
	Compiler    compiler.Compiler
	Options     Options
}

// Plan returns the step that orders the stylesheets in sets and, once it
// ran, adds one compile step per entry point.
func (p *Planner) Plan(sets ...*plan.FileSet) *DepGraphStep {
	inputs := []plan.Ingredient{
		p.Ingredients.StringList(p.Options.Command...),
		p.Ingredients.Path(p.Options.OutputDir),
	}
	for _, fs := range sets {
		inputs = append(inputs, fs)
	}
	return &DepGraphStep{
		StepInfo: plan.NewStepInfo("css-dep-graph", inputs,
			plan.SetOf(plan.CSSSource, plan.CSSGenerated), 0),
		planner: p,
		sets:    sets,
		bundles: plan.StoredObject[[]Bundle](p.Ingredients, bundlesCacheName),
	}
}

// DepGraphStep scans stylesheet declarations and derives the bundles.
type DepGraphStep struct {
	plan.StepInfo
	planner *Planner
	sets    []*plan.FileSet
	bundles *plan.Stored[[]Bundle]

	current []Bundle
}

func (s *DepGraphStep) collect() ([]sources.Source, error) {
	var all []sources.Source
	for _, fs := range s.sets {
		srcs, err := fs.Sources()
		if err != nil {
			return nil, err
		}
		all = append(all, srcs...)
	}
	return all, nil
}

// Execute rescans changed stylesheets and recomputes the bundles.
func (s *DepGraphStep) Execute(ctx context.Context, logger *log.Logger) error {
	srcs, err := s.collect()
	if err != nil {
		return err
	}

	cachePath := filepath.Join(s.planner.Ingredients.CacheDir(), depInfoCacheName)
	prev, err := metadata.Load[DepInfo](cachePath)
	if err != nil {
		return err
	}
	infos, err := metadata.UpdateConcurrent(ctx, prev, metadata.ReadFile, ExtractDepInfo, srcs, s.planner.Options.Jobs)
	if err != nil {
		return err
	}
	if err := metadata.Save(cachePath, infos); err != nil {
		return err
	}

	byPath := make(map[string]DepInfo, len(infos))
	for p, e := range infos {
		byPath[p] = e.Payload
	}
	g, err := NewGraph(srcs, byPath)
	if err != nil {
		return err
	}

	bundles := Bundles(g, s.planner.Options.OutputDir)
	if err := s.bundles.Write(bundles); err != nil {
		return err
	}
	s.current = bundles
	logger.Info("ordered stylesheets", "sources", len(srcs), "entry_points", len(bundles))
	return nil
}

// Skip reloads the bundles computed by an earlier run.
func (s *DepGraphStep) Skip(ctx context.Context, logger *log.Logger) error {
	bundles, err := s.bundles.Read()
	if err != nil {
		logger.WithError(err).Debug("stored bundles unavailable, recomputing")
		return s.Execute(ctx, logger)
	}
	s.current = bundles
	return nil
}

// Bundles returns the bundles found by the last Execute or Skip.
func (s *DepGraphStep) Bundles() []Bundle {
	return append([]Bundle(nil), s.current...)
}

// ExtraSteps returns one compile step per bundle.
func (s *DepGraphStep) ExtraSteps(context.Context, *log.Logger) ([]plan.Step, error) {
	steps := make([]plan.Step, 0, len(s.current))
	for _, b := range s.current {
		steps = append(steps, s.planner.compileStep(b))
	}
	return steps, nil
}

func (p *Planner) compileStep(b Bundle) *CompileStep {
	inputs := make([]plan.Ingredient, 0, len(b.Inputs)+2)
	for _, src := range b.Inputs {
		inputs = append(inputs, p.Ingredients.Source(src))
	}
	inputs = append(inputs,
		p.Ingredients.StringList(p.Options.Command...),
		p.Ingredients.Path(b.Output))
	return &CompileStep{
		StepInfo: plan.NewStepInfo("css-compile", inputs,
			plan.SetOf(plan.CSSSource, plan.CSSGenerated),
			plan.SetOf(plan.CSSCompiled, plan.CSSSourceMap, plan.CSSRenameMap)),
		planner: p,
		bundle:  b,
	}
}

// CompileStep compiles one bundle.
type CompileStep struct {
	plan.StepInfo
	planner *Planner
	bundle  Bundle
}

// Bundle returns the bundle being compiled.
func (s *CompileStep) Bundle() Bundle {
	return s.bundle
}

// Args returns the compiler arguments for the bundle.
func (s *CompileStep) Args() []string {
	args := []string{
		"--output-file", s.bundle.Output,
		"--output-source-map", s.bundle.SourceMap,
		"--output-renaming-map-format", "JSON",
		"--output-renaming-map", s.bundle.RenameMap,
	}
	return append(args, s.bundle.InputPaths()...)
}

// Execute runs the stylesheet compiler.
func (s *CompileStep) Execute(ctx context.Context, logger *log.Logger) error {
	if err := os.MkdirAll(filepath.Dir(s.bundle.Output), 0o755); err != nil {
		return errors.NewFileWriteError(s.bundle.Output, err)
	}
	_, err := s.planner.Compiler.Compile(ctx, compiler.Request{
		Tool:    "css",
		Command: s.planner.Options.Command,
		Args:    s.Args(),
		Inputs:  s.bundle.InputPaths(),
		Outputs: s.bundle.Outputs(),
	})
	if err != nil {
		return err
	}
	logger.Info("compiled stylesheet bundle", "entry_point", s.bundle.EntryPoint, "inputs", len(s.bundle.Inputs))
	return nil
}

// Skip recompiles only when an output went missing.
func (s *CompileStep) Skip(ctx context.Context, logger *log.Logger) error {
	for _, out := range s.bundle.Outputs() {
		if _, err := os.Stat(out); err != nil {
			logger.Debug("output missing, recompiling", "output", out)
			return s.Execute(ctx, logger)
		}
	}
	return nil
}
