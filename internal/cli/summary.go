package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/skelly-dev/codr/internal/indexer"
)

// styles renders against the command's writer so piped output stays plain.
type styles struct {
	title   lipgloss.Style
	muted   lipgloss.Style
	ok      lipgloss.Style
	warning lipgloss.Style
	errored lipgloss.Style
	added   lipgloss.Style
	removed lipgloss.Style
	hunk    lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("#2CD7C7")),
		muted:   r.NewStyle().Foreground(lipgloss.Color("241")),
		ok:      r.NewStyle().Foreground(lipgloss.Color("42")),
		warning: r.NewStyle().Foreground(lipgloss.Color("214")),
		errored: r.NewStyle().Foreground(lipgloss.Color("196")),
		added:   r.NewStyle().Foreground(lipgloss.Color("42")),
		removed: r.NewStyle().Foreground(lipgloss.Color("196")),
		hunk:    r.NewStyle().Foreground(lipgloss.Color("39")),
	}
}

func PrintBuildReport(w io.Writer, report *indexer.Report) {
	st := newStyles(w)
	fmt.Fprintf(w, "%s %s\n", st.title.Render("build complete"), st.muted.Render(report.Duration.Round(time.Millisecond).String()))
	fmt.Fprintf(w, "generation: %d (%s)\n", report.Generation, report.BuildID)
	fmt.Fprintf(w, "files: processed=%d skipped=%d failed=%d\n", report.Processed, report.Skipped, report.Failed)
	fmt.Fprintf(w, "entities: %d (functions=%d classes=%d)\n", report.Entities, report.Functions, report.Classes)
	fmt.Fprintf(w, "call graph: nodes=%d edges=%d\n", report.Nodes, report.Edges)

	for _, issue := range report.Issues {
		label := st.warning.Render(issue.Severity)
		if issue.Severity == indexer.SeverityError {
			label = st.errored.Render(issue.Severity)
		}
		fmt.Fprintf(w, "  %s %s: %s\n", label, issue.File, issue.Message)
	}
}

// renderDiff colors a unified diff line by line.
func renderDiff(w io.Writer, diff string) {
	st := newStyles(w)
	for _, line := range strings.SplitAfter(diff, "\n") {
		if line == "" {
			continue
		}
		text := strings.TrimSuffix(line, "\n")
		switch {
		case strings.HasPrefix(text, "+++"), strings.HasPrefix(text, "---"):
			text = st.muted.Render(text)
		case strings.HasPrefix(text, "@@"):
			text = st.hunk.Render(text)
		case strings.HasPrefix(text, "+"):
			text = st.added.Render(text)
		case strings.HasPrefix(text, "-"):
			text = st.removed.Render(text)
		}
		fmt.Fprintln(w, text)
	}
}

func SummarizePaths(paths []string, max int) string {
	if len(paths) <= max {
		return strings.Join(paths, ", ")
	}
	return fmt.Sprintf("%s ... (+%d more)", strings.Join(paths[:max], ", "), len(paths)-max)
}
