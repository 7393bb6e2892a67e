// Package js groups script sources into compilation modules by their
// namespace declarations and plans their compilation.
package js

import (
	"regexp"
	"slices"

	"github.com/felixgeelhaar/buildplan/internal/sources"
)

// DepInfo lists the namespaces a script declares.
type DepInfo struct {
	// IsModule is set for files declared with goog.module. Their first
	// provided namespace is the module id.
	IsModule bool     `json:"is_module,omitempty"`
	Provides []string `json:"provides,omitempty"`
	Requires []string `json:"requires,omitempty"`
}

// ModuleID returns the module id declared by the file, if any.
func (d DepInfo) ModuleID() (string, bool) {
	if !d.IsModule || len(d.Provides) == 0 {
		return "", false
	}
	return d.Provides[0], true
}

var (
	leadingDocComment = regexp.MustCompile(`^\s*/\*\*(?s:(.*?))\*/`)
	blockComment      = regexp.MustCompile(`(?s)/\*.*?\*/`)
	lineComment       = regexp.MustCompile(`(?m)^\s*//.*$`)
	googCall          = regexp.MustCompile(`\bgoog\.(provide|require|module)\(\s*(?:'([^'\\]*)'|"([^"\\]*)")\s*\)`)
	provideGoog       = regexp.MustCompile(`@provideGoog\b`)
)

// ScanDepInfo finds the goog.provide, goog.require and goog.module calls
// in a script. A leading doc comment carrying @provideGoog marks the file
// that defines goog itself.
func ScanDepInfo(content []byte) DepInfo {
	var info DepInfo
	provided := make(map[string]bool)
	required := make(map[string]bool)
	provide := func(ns string) {
		if !provided[ns] {
			provided[ns] = true
			info.Provides = append(info.Provides, ns)
		}
	}

	if m := leadingDocComment.FindSubmatch(content); m != nil && provideGoog.Match(m[1]) {
		provide("goog")
	}

	stripped := lineComment.ReplaceAll(blockComment.ReplaceAll(content, nil), nil)
	for _, m := range googCall.FindAllSubmatch(stripped, -1) {
		ns := string(m[2])
		if m[3] != nil {
			ns = string(m[3])
		}
		switch string(m[1]) {
		case "module":
			if info.IsModule {
				continue
			}
			info.IsModule = true
			// The module id leads the provides.
			if provided[ns] {
				info.Provides = slices.DeleteFunc(info.Provides, func(p string) bool { return p == ns })
			}
			provided[ns] = true
			info.Provides = append([]string{ns}, info.Provides...)
		case "provide":
			provide(ns)
		default:
			if !required[ns] {
				required[ns] = true
				info.Requires = append(info.Requires, ns)
			}
		}
	}
	return info
}

// ExtractDepInfo adapts ScanDepInfo to a metadata extractor.
func ExtractDepInfo(_ sources.Source, content []byte) (DepInfo, error) {
	return ScanDepInfo(content), nil
}
