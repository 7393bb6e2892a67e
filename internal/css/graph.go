package css

import (
	"fmt"
	"regexp"

	"github.com/felixgeelhaar/buildplan/internal/errors"
	"github.com/felixgeelhaar/buildplan/internal/sources"
	"github.com/felixgeelhaar/buildplan/internal/toposort"
)

var stylesheetSuffix = regexp.MustCompile(`\.(?:css|gss)$`)

// IsEntryPoint reports whether src is compiled on its own. Entry points
// are named like main.css, foo-main.css or fooMain.gss.
func IsEntryPoint(src sources.Source) bool {
	name := stylesheetSuffix.ReplaceAllString(src.BaseName(), "")
	return sources.EndsWithWordOrIs(name, "main")
}

// Graph is a dependency-ordered set of stylesheets.
type Graph struct {
	infos       map[string]DepInfo
	entryPoints []sources.Source
	topo        *toposort.Graph[sources.Source, string]
}

// selfSymbol is provided implicitly by a stylesheet that declares nothing.
func selfSymbol(src sources.Source) string {
	return "file:" + src.CanonicalPath
}

// NewGraph orders srcs. infos holds the declarations of each source keyed
// by canonical path; a source without an entry declares nothing.
func NewGraph(srcs []sources.Source, infos map[string]DepInfo) (*Graph, error) {
	g := &Graph{infos: infos}
	for _, src := range srcs {
		if IsEntryPoint(src) {
			g.entryPoints = append(g.entryPoints, src)
		}
	}

	topo, err := toposort.Sort(srcs, nil,
		func(s sources.Source) []string { return infos[s.CanonicalPath].Requires },
		func(s sources.Source) []string {
			if p := infos[s.CanonicalPath].Provides; len(p) > 0 {
				return p
			}
			return []string{selfSymbol(s)}
		})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCSSOrdering, "failed to order stylesheets", err).
			WithSuggestion(orderingSuggestion(err))
	}
	g.topo = topo
	return g, nil
}

func orderingSuggestion(err error) string {
	var missing *toposort.MissingRequirementError
	if errors.As(err, &missing) {
		src := missing.Requirer.(sources.Source)
		return fmt.Sprintf("Add a stylesheet with @provide '%v' or drop the @require from %s",
			missing.Required, src.RelativePath)
	}
	var dup *toposort.DuplicateItemError
	if errors.As(err, &dup) {
		return fmt.Sprintf("%s is listed twice; check for overlapping source roots", dup.Item.(sources.Source).RelativePath)
	}
	return "Break the cycle by moving shared rules into a stylesheet both can @require"
}

// EntryPoints returns the sources compiled on their own, in input order.
func (g *Graph) EntryPoints() []sources.Source {
	return append([]sources.Source(nil), g.entryPoints...)
}

// Sorted returns every stylesheet in dependency order.
func (g *Graph) Sorted() []sources.Source {
	return g.topo.Sorted()
}

// TransitiveClosureDeps returns the stylesheets src depends on, directly
// or not, followed by src itself. Each dependency precedes its dependents.
func (g *Graph) TransitiveClosureDeps(src sources.Source) []sources.Source {
	return g.topo.Closure(src)
}

// DepInfo returns the declarations recorded for src.
func (g *Graph) DepInfo(src sources.Source) DepInfo {
	return g.infos[src.CanonicalPath]
}
