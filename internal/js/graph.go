package js

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/felixgeelhaar/buildplan/internal/errors"
	"github.com/felixgeelhaar/buildplan/internal/log"
	"github.com/felixgeelhaar/buildplan/internal/sources"
	"github.com/felixgeelhaar/buildplan/internal/toposort"
)

// Default module names for sources that name no module of their own.
const (
	MainModule = "main"
	TestModule = "test"
)

// DefaultAmbient lists the namespaces available without a provider.
var DefaultAmbient = []string{"goog"}

// ModuleNameFor returns the module src is compiled into.
//
// A goog.module file goes to the module named by its id. Otherwise a file
// whose extension-less relative path ends with the word main or test gets
// a module of its own, named by that path with dots for separators. Every
// other file goes to the test module when its root is test-only and to
// the main module when not.
func ModuleNameFor(src sources.Source, info DepInfo) string {
	if id, ok := info.ModuleID(); ok {
		return id
	}
	stem := sources.TrimExtension(src.RelativePath)
	if sources.EndsWithWordOrIs(stem, "main") || sources.EndsWithWordOrIs(stem, "test") {
		return strings.ReplaceAll(strings.ReplaceAll(stem, "\\", "."), "/", ".")
	}
	if src.Root.Has(sources.TestOnly) {
		return TestModule
	}
	return MainModule
}

type fileInfo struct {
	src  sources.Source
	info DepInfo
}

func (f fileInfo) optional() bool {
	return f.src.Root.Has(sources.LoadAsNeeded)
}

// selectSources drops load-as-needed files that provide nothing the other
// files need, directly or through other load-as-needed files.
func selectSources(files []fileInfo, logger *log.Logger) []fileInfo {
	used := make([]bool, len(files))
	provided := make(map[string]bool)
	var wanted []string
	include := func(i int) {
		used[i] = true
		for _, p := range files[i].info.Provides {
			provided[p] = true
		}
		wanted = append(wanted, files[i].info.Requires...)
	}
	for i, f := range files {
		if !f.optional() {
			include(i)
		}
	}

	for {
		var missing []string
		for _, req := range wanted {
			if !provided[req] {
				missing = append(missing, req)
			}
		}
		wanted = nil
		if len(missing) == 0 {
			break
		}
		logger.Debug("scripts still require", "namespaces", missing)

		need := make(map[string]bool, len(missing))
		for _, req := range missing {
			need[req] = true
		}
		added := false
		for i, f := range files {
			if used[i] {
				continue
			}
			for _, p := range f.info.Provides {
				if need[p] {
					include(i)
					added = true
					break
				}
			}
		}
		// Anything still missing is diagnosed by the sort.
		if !added {
			break
		}
	}

	var out []fileInfo
	for i, f := range files {
		if used[i] {
			out = append(out, f)
		}
	}
	return out
}

// groupModules partitions files by module name. Names come back sorted and
// each module's files are ordered by relative path.
func groupModules(files []fileInfo) ([]string, map[string][]fileInfo) {
	byName := make(map[string][]fileInfo)
	for _, f := range files {
		name := ModuleNameFor(f.src, f.info)
		byName[name] = append(byName[name], f)
	}
	names := make([]string, 0, len(byName))
	for name, members := range byName {
		names = append(names, name)
		sort.SliceStable(members, func(i, j int) bool {
			if members[i].src.RelativePath != members[j].src.RelativePath {
				return members[i].src.RelativePath < members[j].src.RelativePath
			}
			return members[i].src.CanonicalPath < members[j].src.CanonicalPath
		})
	}
	sort.Strings(names)
	return names, byName
}

// moduleSymbols returns the namespaces a module provides and the ones its
// files require from outside it.
func moduleSymbols(members []fileInfo) (provides, requires []string) {
	seen := make(map[string]bool)
	for _, f := range members {
		for _, p := range f.info.Provides {
			if !seen[p] {
				seen[p] = true
				provides = append(provides, p)
			}
		}
	}
	external := make(map[string]bool)
	for _, f := range members {
		for _, r := range f.info.Requires {
			if !seen[r] && !external[r] {
				external[r] = true
				requires = append(requires, r)
			}
		}
	}
	sort.Strings(requires)
	return provides, requires
}

// BuildModules groups srcs into modules and orders both the modules and
// the files within each. infos holds the declarations of each source keyed
// by canonical path. ambient lists namespaces that need no provider.
func BuildModules(srcs []sources.Source, infos map[string]DepInfo, ambient []string, logger *log.Logger) (*Modules, error) {
	if logger == nil {
		logger = log.Discard()
	}
	files := make([]fileInfo, 0, len(srcs))
	for _, s := range srcs {
		info, ok := infos[s.CanonicalPath]
		if !ok {
			return nil, errors.Newf(errors.ErrCodeJSInvalidModule, "missing dependency info for %s", s.CanonicalPath).
				WithSuggestion("Rerun so the js-dep-info step rescans the sources")
		}
		files = append(files, fileInfo{src: s, info: info})
	}

	names, byName := groupModules(selectSources(files, logger))
	if logger.Enabled(context.Background(), log.LevelDebug) {
		for _, name := range names {
			rels := make([]string, len(byName[name]))
			for i, f := range byName[name] {
				rels[i] = f.src.RelativePath
			}
			logger.Debug("script module", "module", name, "sources", rels)
		}
	}

	provides := make(map[string][]string, len(names))
	requires := make(map[string][]string, len(names))
	for _, name := range names {
		provides[name], requires[name] = moduleSymbols(byName[name])
	}
	moduleGraph, err := toposort.Sort(names, ambient,
		func(m string) []string { return requires[m] },
		func(m string) []string { return provides[m] })
	if err != nil {
		return nil, orderingError(err, "")
	}

	// A file need not wait for namespaces an earlier module provides.
	providedEarlier := make(map[string]bool)
	var modules []Module
	for _, name := range moduleGraph.Sorted() {
		members := byName[name]
		items := make([]sources.Source, len(members))
		infoOf := make(map[sources.Source]DepInfo, len(members))
		for i, f := range members {
			items[i] = f.src
			infoOf[f.src] = f.info
		}
		fileGraph, err := toposort.Sort(items, ambient,
			func(s sources.Source) []string {
				var reqs []string
				for _, r := range infoOf[s].Requires {
					if !providedEarlier[r] {
						reqs = append(reqs, r)
					}
				}
				return reqs
			},
			func(s sources.Source) []string { return infoOf[s].Provides })
		if err != nil {
			return nil, orderingError(err, name)
		}

		ordered := fileGraph.Sorted()
		for _, s := range ordered {
			for _, p := range infoOf[s].Provides {
				providedEarlier[p] = true
			}
		}
		modules = append(modules, Module{
			Name:    name,
			Deps:    moduleGraph.DependenciesTransitive(name),
			Sources: ordered,
		})
	}
	return NewModules(modules)
}

// orderingError classifies a sort failure. module is empty for failures
// of the module-level sort.
func orderingError(err error, module string) error {
	var missing *toposort.MissingRequirementError
	if errors.As(err, &missing) {
		return errors.Wrap(errors.ErrCodeJSMissingRequirement,
			fmt.Sprintf("nothing provides %v", missing.Required), err).
			WithSuggestion(fmt.Sprintf("Add a goog.provide('%v') or drop the goog.require from %v",
				missing.Required, describe(missing.Requirer)))
	}
	var dup *toposort.DuplicateItemError
	if errors.As(err, &dup) {
		return errors.Wrap(errors.ErrCodeJSInvalidModule,
			fmt.Sprintf("%s is listed twice", describe(dup.Item)), err).
			WithSuggestion("Check for overlapping source roots")
	}
	if module == "" {
		return errors.Wrap(errors.ErrCodeJSModuleCycle, "script modules require each other", err).
			WithSuggestion("Move the shared namespaces into a module both can depend on")
	}
	return errors.Wrap(errors.ErrCodeJSFileCycle,
		fmt.Sprintf("scripts in module %s require each other", module), err).
		WithSuggestion("Break the cycle by extracting the shared code into its own file")
}

func describe(item any) string {
	if s, ok := item.(sources.Source); ok {
		return s.RelativePath
	}
	return fmt.Sprintf("module %v", item)
}
