package js

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/buildplan/internal/compiler"
	"github.com/felixgeelhaar/buildplan/internal/errors"
	"github.com/felixgeelhaar/buildplan/internal/hashstore"
	"github.com/felixgeelhaar/buildplan/internal/log"
	"github.com/felixgeelhaar/buildplan/internal/plan"
	"github.com/felixgeelhaar/buildplan/internal/sources"
	"github.com/felixgeelhaar/buildplan/internal/toposort"
)

var (
	srcRoot  = sources.Root{Path: "/src"}
	testRoot = sources.Root{Path: "/test", Props: sources.TestOnly}
	libRoot  = sources.Root{Path: "/lib", Props: sources.LoadAsNeeded}
)

type file struct {
	root    sources.Root
	rel     string
	content string
}

func (f file) source() sources.Source {
	return sources.Source{
		CanonicalPath: f.root.Path + "/" + f.rel,
		RelativePath:  f.rel,
		Root:          f.root,
	}
}

var exampleFiles = []file{
	{srcRoot, "util/strings.js", "goog.provide('util.strings');\ngoog.require('lib.json');"},
	{srcRoot, "util/dom.js", "goog.provide('util.dom');\ngoog.require('util.strings');"},
	{srcRoot, "app/main.js", "goog.require('util.dom');"},
	{srcRoot, "widgets/widget.js", "goog.module('widgets');\nconst dom = goog.require('util.dom');"},
	{srcRoot, "app/admin-main.js", "goog.require('widgets');\ngoog.require('util.strings');"},
	{testRoot, "helpers.js", "goog.provide('testing.helpers');\ngoog.require('util.strings');"},
	{testRoot, "app/app_test.js", "goog.require('testing.helpers');\ngoog.require('util.dom');"},
	{libRoot, "base.js", "/**\n * @fileoverview Bootstrap.\n * @provideGoog\n */\nvar goog = goog || {};"},
	{libRoot, "json.js", "goog.provide('lib.json');\ngoog.require('lib.core');"},
	{libRoot, "core.js", "goog.provide('lib.core');"},
	{libRoot, "unused.js", "goog.provide('lib.unused');"},
}

func build(t *testing.T, files []file) (*Modules, error) {
	t.Helper()
	srcs := make([]sources.Source, len(files))
	infos := make(map[string]DepInfo, len(files))
	for i, f := range files {
		srcs[i] = f.source()
		infos[srcs[i].CanonicalPath] = ScanDepInfo([]byte(f.content))
	}
	return BuildModules(srcs, infos, DefaultAmbient, log.Discard())
}

func paths(srcs []sources.Source) []string {
	out := make([]string, len(srcs))
	for i, s := range srcs {
		out[i] = s.CanonicalPath
	}
	return out
}

func TestScanDepInfo(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    DepInfo
	}{
		{
			name:    "provides and requires",
			content: "goog.provide('a.b');\ngoog.provide(\"a.c\");\ngoog.require('d');\ngoog.require('d');",
			want:    DepInfo{Provides: []string{"a.b", "a.c"}, Requires: []string{"d"}},
		},
		{
			name:    "module id leads",
			content: "goog.module('m.id');\nconst x = goog.require('x');",
			want:    DepInfo{IsModule: true, Provides: []string{"m.id"}, Requires: []string{"x"}},
		},
		{
			name:    "commented out",
			content: "// goog.require('gone');\n/* goog.provide('gone'); */\ngoog.provide('kept');",
			want:    DepInfo{Provides: []string{"kept"}},
		},
		{
			name:    "provideGoog in leading doc comment",
			content: "/** @provideGoog */\nvar goog = {};",
			want:    DepInfo{Provides: []string{"goog"}},
		},
		{
			name:    "provideGoog later in the file is ignored",
			content: "var x;\n/** @provideGoog */",
			want:    DepInfo{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScanDepInfo([]byte(tt.content)))
		})
	}
}

func TestModuleNameFor(t *testing.T) {
	tests := []struct {
		src  sources.Source
		info DepInfo
		want string
	}{
		{file{srcRoot, "util/dom.js", ""}.source(), DepInfo{}, MainModule},
		{file{testRoot, "helpers.js", ""}.source(), DepInfo{}, TestModule},
		{file{srcRoot, "app/main.js", ""}.source(), DepInfo{}, "app.main"},
		{file{srcRoot, "app/adminMain.js", ""}.source(), DepInfo{}, "app.adminMain"},
		{file{testRoot, "app/app_test.js", ""}.source(), DepInfo{}, "app.app_test"},
		{file{srcRoot, "app/domain.js", ""}.source(), DepInfo{}, MainModule},
		{file{srcRoot, "app/main.js", ""}.source(), DepInfo{IsModule: true, Provides: []string{"x.y"}}, "x.y"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ModuleNameFor(tt.src, tt.info), tt.src.RelativePath)
	}
}

func TestBuildModules(t *testing.T) {
	modules, err := build(t, exampleFiles)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"main:4",
		"app.main:1:main",
		"test:1:main",
		"app.app_test:1:main,test",
		"widgets:1:main",
		"app.admin-main:1:main,widgets",
	}, modules.Records())

	main := modules.Modules[0]
	assert.Equal(t, []string{"/lib/core.js", "/lib/json.js", "/src/util/strings.js", "/src/util/dom.js"}, paths(main.Sources))
	assert.NotContains(t, paths(modules.Sources()), "/lib/unused.js")
	assert.NotContains(t, paths(modules.Sources()), "/lib/base.js")
}

func TestFlags(t *testing.T) {
	modules, err := build(t, exampleFiles)
	require.NoError(t, err)

	flags := modules.Flags()
	assert.Equal(t, []string{
		"--module", "main:4",
		"--js", "/lib/core.js",
		"--js", "/lib/json.js",
		"--js", "/src/util/strings.js",
		"--js", "/src/util/dom.js",
		"--module", "app.main:1:main",
		"--js", "/src/app/main.js",
	}, flags[:14])
	assert.Equal(t, []string{"--module", "app.admin-main:1:main,widgets", "--js", "/src/app/admin-main.js"}, flags[len(flags)-4:])
}

func TestDependencyModulesPrecedeDependents(t *testing.T) {
	modules, err := build(t, exampleFiles)
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, m := range modules.Modules {
		for _, dep := range m.Deps {
			assert.True(t, seen[dep], "%s listed before its dependency %s", m.Name, dep)
		}
		seen[m.Name] = true
	}
}

func TestBuildModulesErrors(t *testing.T) {
	t.Run("missing namespace", func(t *testing.T) {
		_, err := build(t, []file{{srcRoot, "a.js", "goog.require('nowhere');"}})
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeJSMissingRequirement, errors.CodeOf(err))
		var missing *toposort.MissingRequirementError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "nowhere", missing.Required)
	})

	t.Run("ambient namespaces need no provider", func(t *testing.T) {
		_, err := build(t, []file{{srcRoot, "a.js", "goog.require('goog');"}})
		require.NoError(t, err)
	})

	t.Run("module cycle", func(t *testing.T) {
		_, err := build(t, []file{
			{srcRoot, "x-main.js", "goog.provide('x');\ngoog.require('y');"},
			{srcRoot, "y-main.js", "goog.provide('y');\ngoog.require('x');"},
		})
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeJSModuleCycle, errors.CodeOf(err))
		var cycle *toposort.CyclicRequirementError
		require.ErrorAs(t, err, &cycle)
		assert.ElementsMatch(t, []any{"x-main", "y-main"}, cycle.Items())
	})

	t.Run("file cycle within a module", func(t *testing.T) {
		_, err := build(t, []file{
			{srcRoot, "a.js", "goog.provide('a');\ngoog.require('b');"},
			{srcRoot, "b.js", "goog.provide('b');\ngoog.require('a');"},
		})
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeJSFileCycle, errors.CodeOf(err))
		assert.Contains(t, err.Error(), "module main")
	})

	t.Run("source listed twice", func(t *testing.T) {
		a := file{srcRoot, "a.js", "goog.provide('a');"}
		_, err := build(t, []file{a, a})
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeJSInvalidModule, errors.CodeOf(err))
		var dup *toposort.DuplicateItemError
		require.ErrorAs(t, err, &dup)
		assert.Contains(t, err.Error(), "a.js is listed twice")
	})
}

func TestNewModulesValidation(t *testing.T) {
	tests := []struct {
		name string
		mods []Module
	}{
		{"empty name", []Module{{Name: ""}}},
		{"colon in name", []Module{{Name: "a:b"}}},
		{"comma in name", []Module{{Name: "a,b"}}},
		{"duplicate", []Module{{Name: "a"}, {Name: "a"}}},
		{"unknown dep", []Module{{Name: "a", Deps: []string{"zz"}}}},
		{"dep after dependent", []Module{{Name: "a", Deps: []string{"b"}}, {Name: "b"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewModules(tt.mods)
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeJSInvalidModule, errors.CodeOf(err))
		})
	}

	m, err := NewModules([]Module{{Name: "a"}, {Name: "b", Deps: []string{"a"}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a:0", "b:0:a"}, m.Records())
}

// recordingCompiler writes every declared output and records requests.
type recordingCompiler struct {
	mu       sync.Mutex
	requests []compiler.Request
}

func (c *recordingCompiler) Compile(_ context.Context, req compiler.Request) (*compiler.Result, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()
	for _, out := range req.Outputs {
		if err := os.WriteFile(out, []byte(req.Tool), 0o644); err != nil {
			return nil, err
		}
	}
	return &compiler.Result{}, nil
}

func writeProject(t *testing.T) (main, test string) {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"main/util/strings.js":  "goog.provide('util.strings');",
		"main/util/dom.js":      "goog.provide('util.dom');\ngoog.require('util.strings');",
		"main/app/main.js":      "goog.require('util.dom');",
		"test/util/dom_test.js": "goog.require('util.dom');",
	}
	for rel, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return filepath.Join(dir, "main"), filepath.Join(dir, "test")
}

func runJS(t *testing.T, mainDir, testDir, outDir string, store *hashstore.Store, c compiler.Compiler) *plan.Report {
	t.Helper()
	ings := plan.NewIngredients(filepath.Join(outDir, ".cache"))
	fs := ings.FileSet(plan.FileSetSpec{
		Roots:      []sources.Root{{Path: mainDir}, {Path: testDir, Props: sources.TestOnly}},
		Extensions: []string{".js"},
	})
	require.NoError(t, fs.Resolve())

	planner := &Planner{
		Ingredients: ings,
		Compiler:    c,
		Options:     Options{Command: []string{"closure-compiler"}, OutputDir: outDir, Jobs: 2},
	}
	p, err := plan.New(log.Discard(), store, planner.Plan(fs)...)
	require.NoError(t, err)
	report, err := p.Run(context.Background())
	require.NoError(t, err)
	return report
}

func TestPlannerIncrementalRuns(t *testing.T) {
	mainDir, testDir := writeProject(t)
	outDir := t.TempDir()
	store := hashstore.New()
	c := &recordingCompiler{}

	report := runJS(t, mainDir, testDir, outDir, store, c)
	assert.Equal(t, 3, report.Count(plan.OutcomeExecuted))
	require.Len(t, c.requests, 1)
	args := c.requests[0].Args
	assert.Equal(t, "--module_output_path_prefix", args[0])
	assert.Contains(t, args, "main:2")
	assert.Contains(t, args, "app.main:1:main")
	assert.Contains(t, args, "util.dom_test:1:main")
	assert.FileExists(t, filepath.Join(outDir, "js", "app.main.js"))

	c.requests = nil
	report = runJS(t, mainDir, testDir, outDir, store, c)
	assert.Equal(t, 3, report.Count(plan.OutcomeSkipped))
	assert.Empty(t, c.requests)

	require.NoError(t, os.WriteFile(filepath.Join(mainDir, "app", "main.js"),
		[]byte("goog.require('util.dom');\nconsole.log('changed');"), 0o644))
	report = runJS(t, mainDir, testDir, outDir, store, c)
	assert.Equal(t, 3, report.Count(plan.OutcomeExecuted))
	assert.Len(t, c.requests, 1)
}

func TestPlannerSurfacesModuleErrors(t *testing.T) {
	mainDir, testDir := writeProject(t)
	require.NoError(t, os.WriteFile(filepath.Join(mainDir, "util", "strings.js"),
		[]byte("goog.provide('util.strings');\ngoog.require('util.dom');"), 0o644))

	ings := plan.NewIngredients(t.TempDir())
	fs := ings.FileSet(plan.FileSetSpec{Roots: []sources.Root{{Path: mainDir}, {Path: testDir}}, Extensions: []string{".js"}})
	require.NoError(t, fs.Resolve())
	planner := &Planner{Ingredients: ings, Compiler: &recordingCompiler{}, Options: Options{OutputDir: t.TempDir()}}

	store := hashstore.New()
	p, err := plan.New(log.Discard(), store, planner.Plan(fs)...)
	require.NoError(t, err)
	_, err = p.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeStepFailed))
	assert.True(t, errors.HasCode(err, errors.ErrCodeJSFileCycle))
	assert.Equal(t, 1, store.Len(), "only the dep-info step is recorded")
}

func TestCorruptMetadataCacheFailsTheDepInfoStep(t *testing.T) {
	mainDir, testDir := writeProject(t)
	outDir := t.TempDir()
	cache := filepath.Join(outDir, ".cache", depInfoCacheName)

	run := func(store *hashstore.Store) error {
		ings := plan.NewIngredients(filepath.Join(outDir, ".cache"))
		fs := ings.FileSet(plan.FileSetSpec{
			Roots:      []sources.Root{{Path: mainDir}, {Path: testDir, Props: sources.TestOnly}},
			Extensions: []string{".js"},
		})
		require.NoError(t, fs.Resolve())
		planner := &Planner{Ingredients: ings, Compiler: &recordingCompiler{}, Options: Options{OutputDir: outDir}}
		p, err := plan.New(log.Discard(), store, planner.Plan(fs)...)
		require.NoError(t, err)
		_, err = p.Run(context.Background())
		return err
	}

	store := hashstore.New()
	require.NoError(t, run(store), "a missing cache is an empty one")
	require.FileExists(t, cache)

	require.NoError(t, os.WriteFile(cache, []byte("{not json"), 0o644))

	err := run(store)
	require.Error(t, err, "the skipped step reads the cache too")
	assert.True(t, errors.HasCode(err, errors.ErrCodeMetadataLoadFailed))

	err = run(hashstore.New())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeMetadataLoadFailed))
}
