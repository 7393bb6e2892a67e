package generate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/buildplan/internal/compiler"
	"github.com/felixgeelhaar/buildplan/internal/hashstore"
	"github.com/felixgeelhaar/buildplan/internal/log"
	"github.com/felixgeelhaar/buildplan/internal/plan"
	"github.com/felixgeelhaar/buildplan/internal/sources"
)

// fakeTool writes a placeholder for every declared output.
func fakeTool(requests *[]compiler.Request) compiler.Compiler {
	return compiler.Func(func(_ context.Context, req compiler.Request) (*compiler.Result, error) {
		*requests = append(*requests, req)
		for _, out := range req.Outputs {
			if err := os.WriteFile(out, []byte("goog.provide('generated');"), 0o644); err != nil {
				return nil, err
			}
		}
		return &compiler.Result{}, nil
	})
}

func writeFiles(t *testing.T, root string, rels ...string) {
	t.Helper()
	for _, rel := range rels {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(rel), 0o644))
	}
}

type fixture struct {
	srcDir string
	outDir string
	store  *hashstore.Store
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{srcDir: t.TempDir(), outDir: t.TempDir(), store: hashstore.New()}
	writeFiles(t, f.srcDir, "greeting/hello.soy", "farewell.soy")
	return f
}

func (f *fixture) run(t *testing.T, c compiler.Compiler) (*Planner, *plan.Report) {
	t.Helper()
	ings := plan.NewIngredients(filepath.Join(f.outDir, ".cache"))
	fs := ings.FileSet(plan.FileSetSpec{Roots: []sources.Root{{Path: f.srcDir}}, Extensions: []string{".soy"}})
	require.NoError(t, fs.Resolve())

	p := &Planner{Ingredients: ings, Compiler: c, Dirs: DirsFor(f.outDir)}
	pl, err := plan.New(log.Discard(), f.store, p.Step(Templates, []string{"soy-to-js"}, fs))
	require.NoError(t, err)
	report, err := pl.Run(context.Background())
	require.NoError(t, err)
	return p, report
}

func rels(t *testing.T, fs *plan.FileSet) []string {
	t.Helper()
	srcs, err := fs.Sources()
	require.NoError(t, err)
	out := make([]string, len(srcs))
	for i, s := range srcs {
		out[i] = s.RelativePath
	}
	return out
}

func TestTemplatesGenerateScripts(t *testing.T) {
	f := newFixture(t)
	var requests []compiler.Request

	p, report := f.run(t, fakeTool(&requests))
	assert.Equal(t, 1, report.Count(plan.OutcomeExecuted))
	require.Len(t, requests, 1)

	req := requests[0]
	assert.Equal(t, "soy", req.Tool)
	assert.Equal(t, []string{"soy-to-js"}, req.Command)
	assert.Equal(t, f.srcDir, req.Workdir)
	assert.Equal(t, []string{"--srcs", "farewell.soy,greeting/hello.soy"}, req.Args[2:])
	assert.Equal(t, []string{"farewell.js", "greeting/hello.js"}, rels(t, p.GeneratedJS()))
	assert.Empty(t, rels(t, p.GeneratedJava()))
}

func TestSkippedTemplatesStillResolveOutputs(t *testing.T) {
	f := newFixture(t)
	var requests []compiler.Request
	f.run(t, fakeTool(&requests))

	requests = nil
	p, report := f.run(t, fakeTool(&requests))
	assert.Equal(t, 1, report.Count(plan.OutcomeSkipped))
	assert.Empty(t, requests)
	assert.Equal(t, []string{"farewell.js", "greeting/hello.js"}, rels(t, p.GeneratedJS()))
}

func TestMissingOutputIsRegenerated(t *testing.T) {
	f := newFixture(t)
	var requests []compiler.Request
	f.run(t, fakeTool(&requests))
	require.NoError(t, os.Remove(filepath.Join(f.outDir, "generated", "js", "farewell.js")))

	requests = nil
	p, _ := f.run(t, fakeTool(&requests))
	assert.Len(t, requests, 1)
	assert.Equal(t, []string{"farewell.js", "greeting/hello.js"}, rels(t, p.GeneratedJS()))
}

func TestProtocRequest(t *testing.T) {
	rootA, rootB := t.TempDir(), t.TempDir()
	writeFiles(t, rootA, "api/user.proto", "api/shared.proto")
	writeFiles(t, rootB, "api/shared.proto", "ext/extra.proto")

	ings := plan.NewIngredients(t.TempDir())
	fs := ings.FileSet(plan.FileSetSpec{Roots: []sources.Root{{Path: rootA}, {Path: rootB}}, Extensions: []string{".proto"}})
	require.NoError(t, fs.Resolve())
	srcs, err := fs.Sources()
	require.NoError(t, err)

	dirs := DirsFor("/out")
	p := &Planner{Ingredients: ings, Dirs: dirs}
	step := p.Step(Protos, []string{"protoc"}, fs)
	assert.Equal(t, "run-protoc", step.Key().Prefix())
	assert.True(t, step.Writes().Has(plan.JSGenerated))
	assert.True(t, step.Writes().Has(plan.ProtoDescriptorSet))

	reqs := step.Requests(srcs)
	require.Len(t, reqs, 1)
	args := reqs[0].Args
	assert.Equal(t, []string{
		"--include_imports",
		"--descriptor_set_out", dirs.DescriptorSet,
		"--java_out", dirs.Java,
		"--js_out", dirs.JS,
	}, args[:7])
	assert.Contains(t, args, "--proto_path")
	assert.Len(t, reqs[0].Inputs, 3, "the second api/shared.proto is shadowed")
	assert.Equal(t, []string{dirs.DescriptorSet}, reqs[0].Outputs)
}

func TestTemplatesWaitForDescriptorSet(t *testing.T) {
	ings := plan.NewIngredients(t.TempDir())
	p := &Planner{Ingredients: ings, Dirs: DirsFor(t.TempDir())}
	templates := p.Step(Templates, nil, ings.NamedFileSet("soy"))
	protos := p.Step(Protos, nil, ings.NamedFileSet("proto"))

	assert.True(t, templates.Reads().Intersects(protos.Writes()))
	assert.False(t, protos.Reads().Intersects(templates.Writes()))
}

func TestNoSourcesResolvesEmptySets(t *testing.T) {
	ings := plan.NewIngredients(t.TempDir())
	fs := ings.NamedFileSet("soy")
	fs.SetSources(nil)

	var requests []compiler.Request
	p := &Planner{Ingredients: ings, Compiler: fakeTool(&requests), Dirs: DirsFor(t.TempDir())}
	step := p.Step(Templates, []string{"soy-to-js"}, fs)
	require.NoError(t, step.Execute(context.Background(), log.Discard()))

	assert.Empty(t, requests)
	assert.True(t, p.GeneratedJS().IsResolved())
	assert.Empty(t, rels(t, p.GeneratedJS()))
}
