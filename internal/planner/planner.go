// Package planner turns a build configuration into plan steps.
package planner

import (
	"context"

	"github.com/felixgeelhaar/buildplan/internal/compiler"
	"github.com/felixgeelhaar/buildplan/internal/config"
	"github.com/felixgeelhaar/buildplan/internal/css"
	"github.com/felixgeelhaar/buildplan/internal/generate"
	"github.com/felixgeelhaar/buildplan/internal/js"
	"github.com/felixgeelhaar/buildplan/internal/log"
	"github.com/felixgeelhaar/buildplan/internal/metadata"
	"github.com/felixgeelhaar/buildplan/internal/plan"
	"github.com/felixgeelhaar/buildplan/internal/sources"
)

// Planner creates every step of a project build.
type Planner struct {
	cfg         *config.Config
	ingredients *plan.Ingredients

	generate *generate.Planner
	css      *css.Planner
	js       *js.Planner
}

// New returns a planner for cfg whose steps run tools through c.
func New(cfg *config.Config, c compiler.Compiler) *Planner {
	ings := plan.NewIngredients(cfg.CacheDir)
	return &Planner{
		cfg:         cfg,
		ingredients: ings,
		generate: &generate.Planner{
			Ingredients: ings,
			Compiler:    c,
			Dirs:        generate.DirsFor(cfg.OutputDir),
		},
		css: &css.Planner{
			Ingredients: ings,
			Compiler:    c,
			Options: css.Options{
				Command:   cfg.CSS.Command,
				OutputDir: cfg.OutputDir,
				Jobs:      cfg.Jobs,
			},
		},
		js: &js.Planner{
			Ingredients: ings,
			Compiler:    c,
			Options: js.Options{
				Command:   cfg.JS.Command,
				OutputDir: cfg.OutputDir,
				Ambient:   cfg.JS.Ambient,
				Jobs:      cfg.Jobs,
			},
		},
	}
}

// Ingredients returns the shared ingredient factory.
func (p *Planner) Ingredients() *plan.Ingredients {
	return p.ingredients
}

func (p *Planner) fileSet(t config.ToolConfig) (*plan.FileSet, error) {
	fs := p.ingredients.FileSet(plan.FileSetSpec{Roots: t.SourceRoots(), Extensions: t.Extensions})
	if err := fs.Resolve(); err != nil {
		return nil, err
	}
	return fs, nil
}

// Steps returns the initial steps. Generators come first, then the
// stylesheet and script steps; the plan orders them by category anyway.
func (p *Planner) Steps() ([]plan.Step, error) {
	// Generated sets must be resolved even when no generator runs.
	if err := p.generate.Refresh(); err != nil {
		return nil, err
	}

	var steps []plan.Step
	generators := []struct {
		kind generate.Kind
		cfg  config.ToolConfig
	}{
		{generate.Protos, p.cfg.Protos},
		{generate.Templates, p.cfg.Templates},
	}
	for _, g := range generators {
		if len(g.cfg.Roots) == 0 {
			continue
		}
		fs, err := p.fileSet(g.cfg)
		if err != nil {
			return nil, err
		}
		steps = append(steps, p.generate.Step(g.kind, g.cfg.Command, fs))
	}

	if len(p.cfg.CSS.Roots) > 0 {
		fs, err := p.fileSet(p.cfg.CSS)
		if err != nil {
			return nil, err
		}
		steps = append(steps, p.css.Plan(fs))
	}

	if len(p.cfg.JS.Roots) > 0 {
		fs, err := p.fileSet(p.cfg.JS.ToolConfig)
		if err != nil {
			return nil, err
		}
		steps = append(steps, p.js.Plan(fs, p.generate.GeneratedJS())...)
	}
	return steps, nil
}

// Run plans the build and runs it to completion against store.
func (p *Planner) Run(ctx context.Context, logger *log.Logger, store plan.HashStore) (*plan.Report, error) {
	steps, err := p.Steps()
	if err != nil {
		return nil, err
	}
	logger.Debug("planned build", "steps", len(steps), "ingredients", p.ingredients.Len())

	pl, err := plan.New(logger, store, steps...)
	if err != nil {
		return nil, err
	}
	return pl.Run(ctx)
}

// CSSGraph scans the configured stylesheets and orders them without
// compiling anything.
func (p *Planner) CSSGraph(ctx context.Context) (*css.Graph, error) {
	srcs, err := sources.ScanAll(p.cfg.CSS.SourceRoots(), p.cfg.CSS.Extensions...)
	if err != nil {
		return nil, err
	}
	infos, err := metadata.UpdateConcurrent(ctx, nil, metadata.ReadFile, css.ExtractDepInfo, srcs, p.cfg.Jobs)
	if err != nil {
		return nil, err
	}
	return css.NewGraph(srcs, payloads(infos))
}

// JSModules scans the configured scripts, including previously generated
// ones, and groups them into modules without compiling anything.
func (p *Planner) JSModules(ctx context.Context, logger *log.Logger) (*js.Modules, error) {
	srcs, err := sources.ScanAll(p.cfg.JS.SourceRoots(), p.cfg.JS.Extensions...)
	if err != nil {
		return nil, err
	}
	generated, err := sources.Scan(sources.Root{Path: p.generate.Dirs.JS}, ".js")
	if err != nil {
		return nil, err
	}
	srcs = append(srcs, generated...)

	infos, err := metadata.UpdateConcurrent(ctx, nil, metadata.ReadFile, js.ExtractDepInfo, srcs, p.cfg.Jobs)
	if err != nil {
		return nil, err
	}
	ambient := p.cfg.JS.Ambient
	if ambient == nil {
		ambient = js.DefaultAmbient
	}
	return js.BuildModules(srcs, payloads(infos), ambient, logger)
}

func payloads[T any](m metadata.Map[T]) map[string]T {
	out := make(map[string]T, len(m))
	for p, e := range m {
		out[p] = e.Payload
	}
	return out
}
