// Package css orders stylesheets by their @provide and @require
// declarations and plans one compilation per entry point.
package css

import (
	"regexp"

	"github.com/felixgeelhaar/buildplan/internal/sources"
)

// DepInfo lists the symbols a stylesheet declares.
type DepInfo struct {
	Provides []string `json:"provides,omitempty"`
	Requires []string `json:"requires,omitempty"`
}

var (
	commentPattern     = regexp.MustCompile(`(?s)/\*.*?\*/`)
	declarationPattern = regexp.MustCompile(`@(provide|require)\s+(?:'([^'\\]*)'|"([^"\\]*)")`)
)

// Scan finds the @provide and @require declarations in a stylesheet.
func Scan(content []byte) DepInfo {
	stripped := commentPattern.ReplaceAll(content, nil)

	var info DepInfo
	for _, m := range declarationPattern.FindAllSubmatch(stripped, -1) {
		symbol := string(m[2])
		if m[3] != nil {
			symbol = string(m[3])
		}
		if string(m[1]) == "provide" {
			info.Provides = append(info.Provides, symbol)
		} else {
			info.Requires = append(info.Requires, symbol)
		}
	}
	return info
}

// ExtractDepInfo adapts Scan to a metadata extractor.
func ExtractDepInfo(_ sources.Source, content []byte) (DepInfo, error) {
	return Scan(content), nil
}
