package ux

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/buildplan/internal/plan"
)

// ReportOptions controls RenderReport.
type ReportOptions struct {
	// Verbose lists skipped steps too.
	Verbose bool
}

// RenderReport writes a per-step table and a summary line for r.
func RenderReport(w io.Writer, r *plan.Report, opts ReportOptions) error {
	s := NewStyles(w)

	width := 0
	for _, res := range r.Results {
		width = max(width, lipgloss.Width(res.Key.Prefix()))
	}

	var b strings.Builder
	for _, res := range r.Results {
		if res.Outcome == plan.OutcomeSkipped && !opts.Verbose {
			continue
		}
		mark, style := "✓", s.Executed
		if res.Outcome == plan.OutcomeSkipped {
			mark, style = "·", s.Skipped
		}
		line := fmt.Sprintf("  %s %-8s %s %s",
			style.Render(mark),
			style.Render(string(res.Outcome)),
			lipgloss.NewStyle().Width(width).Render(res.Key.Prefix()),
			s.Muted.Render(roundDuration(res.Duration).String()),
		)
		if !res.Recorded {
			line += s.Muted.Render(" (not recorded)")
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	summary := fmt.Sprintf("%d steps: %d executed, %d skipped in %s",
		len(r.Results), r.Count(plan.OutcomeExecuted), r.Count(plan.OutcomeSkipped), roundDuration(r.Duration))
	b.WriteString(s.Title.Render(summary))
	if r.RunID != "" {
		b.WriteString(s.Muted.Render(" (run " + r.RunID + ")"))
	}
	b.WriteByte('\n')

	_, err := io.WriteString(w, b.String())
	return err
}

func roundDuration(d time.Duration) time.Duration {
	switch {
	case d > time.Second:
		return d.Round(10 * time.Millisecond)
	case d > time.Millisecond:
		return d.Round(time.Millisecond)
	default:
		return d.Round(time.Microsecond)
	}
}
