package ux

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/felixgeelhaar/buildplan/internal/errors"
)

// RenderError writes err with one line per coded error in its chain,
// followed by the innermost uncoded cause and the collected suggestions.
func RenderError(w io.Writer, err error) error {
	if err == nil {
		return nil
	}
	s := NewStyles(w)

	var (
		b           strings.Builder
		suggestions []string
		docs        string
		indent      = ""
	)
	mark := s.Error.Render("✗")
	for err != nil {
		var be *errors.BuildError
		if !errors.As(err, &be) {
			fmt.Fprintf(&b, "%s%s %s\n", indent, mark, err.Error())
			break
		}
		fmt.Fprintf(&b, "%s%s %s %s\n", indent, mark, s.Code.Render("["+string(be.Code)+"]"), be.Message)
		for _, sug := range be.Suggestions {
			if !slices.Contains(suggestions, sug) {
				suggestions = append(suggestions, sug)
			}
		}
		if be.DocsURL != "" {
			docs = be.DocsURL
		}
		err = be.Cause
		indent += "  "
		mark = s.Muted.Render("↳")
	}

	if len(suggestions) > 0 {
		b.WriteString("\nSuggestions:\n")
		// Innermost advice first.
		slices.Reverse(suggestions)
		for _, sug := range suggestions {
			fmt.Fprintf(&b, "  %s %s\n", s.Suggestion.Render("•"), sug)
		}
	}
	if docs != "" {
		fmt.Fprintf(&b, "\nDocumentation: %s\n", docs)
	}

	_, werr := io.WriteString(w, b.String())
	return werr
}
