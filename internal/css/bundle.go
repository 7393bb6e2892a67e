package css

import (
	"path"
	"path/filepath"

	"github.com/felixgeelhaar/buildplan/internal/sources"
)

// Bundle is an entry point and every stylesheet compiled with it, in
// dependency order, plus the files the compiler writes for it.
type Bundle struct {
	EntryPoint string           `json:"entry_point"`
	Inputs     []sources.Source `json:"inputs"`
	Output     string           `json:"output"`
	SourceMap  string           `json:"source_map"`
	RenameMap  string           `json:"rename_map"`
}

// InputPaths returns the canonical path of each input.
func (b Bundle) InputPaths() []string {
	out := make([]string, len(b.Inputs))
	for i, s := range b.Inputs {
		out[i] = s.CanonicalPath
	}
	return out
}

// Outputs lists the files the compiler must produce.
func (b Bundle) Outputs() []string {
	return []string{b.Output, b.SourceMap, b.RenameMap}
}

// Bundles returns one bundle per entry point of g. Outputs land under
// outputDir/css, mirroring the entry point's directory:
//
//	css/{dir}/compiled-{name}.css
//	css/{dir}/source-map-{name}.json
//	css/{dir}/rename-map-{name}.json
func Bundles(g *Graph, outputDir string) []Bundle {
	var out []Bundle
	for _, ep := range g.EntryPoints() {
		dir := filepath.Join(outputDir, "css", filepath.FromSlash(path.Dir(ep.RelativePath)))
		name := stylesheetSuffix.ReplaceAllString(ep.BaseName(), "")
		out = append(out, Bundle{
			EntryPoint: ep.RelativePath,
			Inputs:     g.TransitiveClosureDeps(ep),
			Output:     filepath.Join(dir, "compiled-"+name+".css"),
			SourceMap:  filepath.Join(dir, "source-map-"+name+".json"),
			RenameMap:  filepath.Join(dir, "rename-map-"+name+".json"),
		})
	}
	return out
}
