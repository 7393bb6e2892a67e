package js

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
	depInfoCacheName = "js-dep-info.json"
	modulesCacheName = "js-modules.json"
)

// Options configures script compilation.
type Options struct {
	// Command is the script compiler's command line prefix.
	Command   []string
	OutputDir string
	// Ambient namespaces need no provider. Nil means DefaultAmbient.
	Ambient []string
	Jobs    int
}

func (o Options) ambient() []string {
	if o.Ambient == nil {
		return DefaultAmbient
	}
	return o.Ambient
}

// Planner creates the script steps.
type Planner struct {
	Ingredients *plan.Ingredients
	Compiler    compiler.Compiler
	Options     Options

	depInfo *plan.Stored[metadata.Map[DepInfo]]
	modules *plan.Stored[Modules]
}

// Plan returns the steps that scan the scripts in sets and group them into
// modules. The module graph step adds the compile step once it ran.
func (p *Planner) Plan(sets ...*plan.FileSet) []plan.Step {
	p.depInfo = plan.StoredObject[metadata.Map[DepInfo]](p.Ingredients, depInfoCacheName)
	p.modules = plan.StoredObject[Modules](p.Ingredients, modulesCacheName)

	scanInputs := make([]plan.Ingredient, 0, len(sets))
	for _, fs := range sets {
		scanInputs = append(scanInputs, fs)
	}
	depInfo := &DepInfoStep{
		StepInfo: plan.NewStepInfo("js-dep-info", scanInputs,
			plan.SetOf(plan.JSSource, plan.JSGenerated),
			plan.SetOf(plan.JSDepInfo)),
		planner: p,
		sets:    sets,
	}

	graphInputs := append([]plan.Ingredient{
		p.Ingredients.StringList(p.Options.ambient()...),
		p.depInfo,
	}, scanInputs...)
	graph := &ModuleGraphStep{
		StepInfo: plan.NewStepInfo("js-module-graph", graphInputs,
			plan.SetOf(plan.JSDepInfo),
			plan.SetOf(plan.JSModules)),
		planner: p,
		sets:    sets,
	}
	return []plan.Step{depInfo, graph}
}

func collect(sets []*plan.FileSet) ([]sources.Source, error) {
	var all []sources.Source
	for _, fs := range sets {
		srcs, err := fs.Sources()
		if err != nil {
			return nil, err
		}
		all = append(all, srcs...)
	}
	return all, nil
}

// DepInfoStep scans the namespace declarations of every script.
type DepInfoStep struct {
	plan.StepInfo
	planner *Planner
	sets    []*plan.FileSet
}

// Execute rescans the scripts whose content changed.
func (s *DepInfoStep) Execute(ctx context.Context, logger *log.Logger) error {
	srcs, err := collect(s.sets)
	if err != nil {
		return err
	}
	prev, found, err := s.planner.depInfo.ReadIfPresent()
	if err != nil {
		return errors.Wrap(errors.ErrCodeMetadataLoadFailed, "failed to load previous script metadata", err)
	}
	if !found {
		logger.Debug("no previous script metadata")
	}
	infos, err := metadata.UpdateConcurrent(ctx, prev, metadata.ReadFile, ExtractDepInfo, srcs, s.planner.Options.Jobs)
	if err != nil {
		return err
	}
	if err := s.planner.depInfo.Write(infos); err != nil {
		return err
	}
	logger.Info("scanned scripts", "sources", len(srcs))
	return nil
}

// Skip rescans only when the stored declarations went missing.
func (s *DepInfoStep) Skip(ctx context.Context, logger *log.Logger) error {
	_, found, err := s.planner.depInfo.ReadIfPresent()
	if err != nil {
		return errors.Wrap(errors.ErrCodeMetadataLoadFailed, "failed to load stored script metadata", err)
	}
	if !found {
		logger.Debug("stored script metadata missing, rescanning")
		return s.Execute(ctx, logger)
	}
	return nil
}

// ModuleGraphStep groups scripts into ordered modules.
type ModuleGraphStep struct {
	plan.StepInfo
	planner *Planner
	sets    []*plan.FileSet

	current *Modules
}

// Execute recomputes the modules from the stored declarations.
func (s *ModuleGraphStep) Execute(_ context.Context, logger *log.Logger) error {
	srcs, err := collect(s.sets)
	if err != nil {
		return err
	}
	stored, err := s.planner.depInfo.Read()
	if err != nil {
		return err
	}
	infos := make(map[string]DepInfo, len(stored))
	for p, e := range stored {
		infos[p] = e.Payload
	}

	modules, err := BuildModules(srcs, infos, s.planner.Options.ambient(), logger)
	if err != nil {
		return err
	}
	if err := s.planner.modules.Write(*modules); err != nil {
		return err
	}
	s.current = modules
	logger.Info("grouped scripts into modules", "sources", len(srcs), "modules", modules.Len())
	return nil
}

// Skip reloads the modules computed by an earlier run.
func (s *ModuleGraphStep) Skip(ctx context.Context, logger *log.Logger) error {
	modules, err := s.planner.modules.Read()
	if err != nil {
		logger.WithError(err).Debug("stored modules unavailable, recomputing")
		return s.Execute(ctx, logger)
	}
	s.current = &modules
	return nil
}

// Modules returns the modules found by the last Execute or Skip.
func (s *ModuleGraphStep) Modules() *Modules {
	return s.current
}

// ExtraSteps returns the compile step for the modules.
func (s *ModuleGraphStep) ExtraSteps(context.Context, *log.Logger) ([]plan.Step, error) {
	if s.current == nil {
		return nil, nil
	}
	return []plan.Step{s.planner.compileStep(s.current)}, nil
}

func (p *Planner) compileStep(modules *Modules) *CompileStep {
	srcs := modules.Sources()
	outDir := filepath.Join(p.Options.OutputDir, "js")
	inputs := make([]plan.Ingredient, 0, len(srcs)+3)
	inputs = append(inputs,
		p.Ingredients.StringList(p.Options.Command...),
		p.modules,
		p.Ingredients.Path(outDir))
	for _, src := range srcs {
		inputs = append(inputs, p.Ingredients.Source(src))
	}
	return &CompileStep{
		StepInfo: plan.NewStepInfo("js-compile", inputs,
			plan.SetOf(plan.JSModules),
			plan.SetOf(plan.JSCompiled, plan.JSSourceMap)),
		planner: p,
		modules: modules,
		outDir:  outDir,
	}
}

// CompileStep compiles every module in one compiler run.
type CompileStep struct {
	plan.StepInfo
	planner *Planner
	modules *Modules
	outDir  string
}

// Outputs lists the compiled file of each module.
func (s *CompileStep) Outputs() []string {
	outs := make([]string, 0, s.modules.Len())
	for _, name := range s.modules.Names() {
		outs = append(outs, filepath.Join(s.outDir, name+".js"))
	}
	return outs
}

// Args returns the compiler arguments.
func (s *CompileStep) Args() []string {
	args := []string{
		"--module_output_path_prefix", s.outDir + string(filepath.Separator),
		"--create_renaming_reports",
		"--create_source_map", "%outname%-source-map.json",
	}
	return append(args, s.modules.Flags()...)
}

// Execute runs the script compiler.
func (s *CompileStep) Execute(ctx context.Context, logger *log.Logger) error {
	if s.modules.Len() == 0 {
		logger.Info("skipping script compilation, no modules")
		return nil
	}
	if err := os.MkdirAll(s.outDir, 0o755); err != nil {
		return errors.NewFileWriteError(s.outDir, err)
	}
	srcs := s.modules.Sources()
	inputs := make([]string, len(srcs))
	for i, src := range srcs {
		inputs[i] = src.CanonicalPath
	}
	_, err := s.planner.Compiler.Compile(ctx, compiler.Request{
		Tool:    "js",
		Command: s.planner.Options.Command,
		Args:    s.Args(),
		Inputs:  inputs,
		Outputs: s.Outputs(),
	})
	if err != nil {
		return err
	}
	logger.Info("compiled script modules", "modules", s.modules.Len(), "sources", len(srcs))
	return nil
}

// Skip recompiles only when an output went missing.
func (s *CompileStep) Skip(ctx context.Context, logger *log.Logger) error {
	for _, out := range s.Outputs() {
		if _, err := os.Stat(out); err != nil {
			logger.Debug("output missing, recompiling", "output", out)
			return s.Execute(ctx, logger)
		}
	}
	return nil
}
