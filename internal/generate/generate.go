// Package generate runs the tools that turn message templates and
// interface definitions into sources for the other steps.
package generate

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/felixgeelhaar/buildplan/internal/compiler"
	"github.com/felixgeelhaar/buildplan/internal/errors"
	"github.com/felixgeelhaar/buildplan/internal/log"
	"github.com/felixgeelhaar/buildplan/internal/plan"
	"github.com/felixgeelhaar/buildplan/internal/sources"
)

// Kind selects the tool a ToolStep runs.
type Kind int

const (
	// Templates compiles message templates to scripts.
	Templates Kind = iota
	// Protos compiles interface definitions to scripts, Java sources and a
	// descriptor set.
	Protos
)

func (k Kind) String() string {
	if k == Protos {
		return "run-protoc"
	}
	return "soy-to-js"
}

func (k Kind) reads() plan.SourceSet {
	if k == Protos {
		return plan.SetOf(plan.ProtoSource, plan.ProtoGenerated, plan.Protoc, plan.ProtoPackageMap)
	}
	// Templates may refer to messages in the descriptor set.
	return plan.SetOf(plan.SoySource, plan.SoyGenerated, plan.ProtoDescriptorSet)
}

func (k Kind) writes() plan.SourceSet {
	if k == Protos {
		return plan.SetOf(plan.ProtoDescriptorSet, plan.JSGenerated, plan.JavaGenerated)
	}
	return plan.SetOf(plan.JSGenerated)
}

// Dirs are the locations generated files are written to.
type Dirs struct {
	JS            string
	Java          string
	DescriptorSet string
}

// DirsFor lays out the generated file locations under outputDir.
func DirsFor(outputDir string) Dirs {
	return Dirs{
		JS:            filepath.Join(outputDir, "generated", "js"),
		Java:          filepath.Join(outputDir, "generated", "java"),
		DescriptorSet: filepath.Join(outputDir, "generated", "descriptors.pb"),
	}
}

// Planner creates tool steps. Every step it creates refreshes the same
// generated file sets.
type Planner struct {
	Ingredients *plan.Ingredients
	Compiler    compiler.Compiler
	Dirs        Dirs
}

// GeneratedJS is the set of generated scripts.
func (p *Planner) GeneratedJS() *plan.FileSet {
	return p.Ingredients.NamedFileSet("js-generated")
}

// GeneratedJava is the set of generated Java sources.
func (p *Planner) GeneratedJava() *plan.FileSet {
	return p.Ingredients.NamedFileSet("java-generated")
}

// Refresh rescans the generated directories into the generated file sets.
// Missing directories resolve to empty sets.
func (p *Planner) Refresh() error {
	js, err := sources.Scan(sources.Root{Path: p.Dirs.JS}, ".js")
	if err != nil {
		return err
	}
	java, err := sources.Scan(sources.Root{Path: p.Dirs.Java}, ".java")
	if err != nil {
		return err
	}
	p.GeneratedJS().SetSources(js)
	p.GeneratedJava().SetSources(java)
	return nil
}

// Step returns the step running the tool of kind over the files in fs.
func (p *Planner) Step(kind Kind, command []string, fs *plan.FileSet) *ToolStep {
	inputs := []plan.Ingredient{
		p.Ingredients.StringList(command...),
		fs,
		p.Ingredients.Path(p.Dirs.JS),
	}
	if kind == Protos {
		inputs = append(inputs, p.Ingredients.Path(p.Dirs.Java), p.Ingredients.Path(p.Dirs.DescriptorSet))
	}
	return &ToolStep{
		StepInfo: plan.NewStepInfo(kind.String(), inputs, kind.reads(), kind.writes()),
		planner:  p,
		kind:     kind,
		command:  command,
		files:    fs,
	}
}

// ToolStep runs one generator over a file set.
type ToolStep struct {
	plan.StepInfo
	planner *Planner
	kind    Kind
	command []string
	files   *plan.FileSet
}

// Requests returns the tool invocations for srcs.
func (s *ToolStep) Requests(srcs []sources.Source) []compiler.Request {
	if len(srcs) == 0 {
		return nil
	}
	if s.kind == Protos {
		return []compiler.Request{s.protocRequest(srcs)}
	}
	return s.templateRequests(srcs)
}

// templateRequests runs the template compiler once per root, from the
// root, so output paths mirror the relative input paths.
func (s *ToolStep) templateRequests(srcs []sources.Source) []compiler.Request {
	byRoot := make(map[string][]sources.Source)
	for _, src := range srcs {
		byRoot[src.Root.Path] = append(byRoot[src.Root.Path], src)
	}
	roots := make([]string, 0, len(byRoot))
	for r := range byRoot {
		roots = append(roots, r)
	}
	sort.Strings(roots)

	jsDir := s.planner.Dirs.JS
	var reqs []compiler.Request
	for _, root := range roots {
		members := byRoot[root]
		rels := make([]string, len(members))
		inputs := make([]string, len(members))
		outputs := make([]string, len(members))
		for i, src := range members {
			rels[i] = src.RelativePath
			inputs[i] = src.CanonicalPath
			outputs[i] = filepath.Join(jsDir, filepath.FromSlash(sources.TrimExtension(src.RelativePath)+".js"))
		}
		reqs = append(reqs, compiler.Request{
			Tool:    "soy",
			Command: s.command,
			Args: []string{
				"--outputPathFormat", filepath.Join(jsDir, "{INPUT_DIRECTORY}", "{INPUT_FILE_NAME_NO_EXT}.js"),
				"--srcs", strings.Join(rels, ","),
			},
			Workdir: root,
			Inputs:  inputs,
			Outputs: outputs,
		})
	}
	return reqs
}

func (s *ToolStep) protocRequest(srcs []sources.Source) compiler.Request {
	dirs := s.planner.Dirs
	args := []string{
		"--include_imports",
		"--descriptor_set_out", dirs.DescriptorSet,
		"--java_out", dirs.Java,
		"--js_out", dirs.JS,
	}

	seenRoot := make(map[string]bool)
	for _, src := range srcs {
		if !seenRoot[src.Root.Path] {
			seenRoot[src.Root.Path] = true
			args = append(args, "--proto_path", src.Root.Path)
		}
	}
	inputs := make([]string, 0, len(srcs))
	seenRel := make(map[string]bool)
	for _, src := range srcs {
		// Imports resolve by relative path, so the first root wins.
		if seenRel[src.RelativePath] {
			continue
		}
		seenRel[src.RelativePath] = true
		// protoc matches inputs to --proto_path entries textually.
		args = append(args, filepath.Join(src.Root.Path, filepath.FromSlash(src.RelativePath)))
		inputs = append(inputs, src.CanonicalPath)
	}
	return compiler.Request{
		Tool:    "protoc",
		Command: s.command,
		Args:    args,
		Inputs:  inputs,
		Outputs: []string{dirs.DescriptorSet},
	}
}

// Execute runs the tool and rescans the generated directories.
func (s *ToolStep) Execute(ctx context.Context, logger *log.Logger) error {
	srcs, err := s.files.Sources()
	if err != nil {
		return err
	}
	reqs := s.Requests(srcs)
	if len(reqs) == 0 {
		logger.Debug("nothing to generate", "tool", s.kind.String())
		return s.planner.Refresh()
	}

	if err := s.prepareOutputs(); err != nil {
		return err
	}
	for _, req := range reqs {
		for _, out := range req.Outputs {
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return errors.NewFileWriteError(out, err)
			}
		}
		if _, err := s.planner.Compiler.Compile(ctx, req); err != nil {
			return err
		}
	}
	logger.Info("generated sources", "tool", s.kind.String(), "inputs", len(srcs))
	return s.planner.Refresh()
}

// prepareOutputs creates the directories the tool expects to exist.
func (s *ToolStep) prepareOutputs() error {
	dirs := []string{s.planner.Dirs.JS}
	if s.kind == Protos {
		dirs = append(dirs, s.planner.Dirs.Java, filepath.Dir(s.planner.Dirs.DescriptorSet))
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return errors.NewFileWriteError(d, err)
		}
	}
	return nil
}

// Skip regenerates when a declared output went missing and otherwise only
// rescans the generated directories.
func (s *ToolStep) Skip(ctx context.Context, logger *log.Logger) error {
	srcs, err := s.files.Sources()
	if err != nil {
		return err
	}
	for _, req := range s.Requests(srcs) {
		for _, out := range req.Outputs {
			if _, err := os.Stat(out); err != nil {
				logger.Debug("generated output missing, regenerating", "output", out)
				return s.Execute(ctx, logger)
			}
		}
	}
	return s.planner.Refresh()
}
