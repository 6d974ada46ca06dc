package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/sagarmemane135/omnihost/internal/engine"
)

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	hostStyle   = lipgloss.NewStyle().Bold(true)
	metaStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	stderrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	footerStyle = lipgloss.NewStyle().Bold(true).MarginTop(1)
)

// renderInteractive is the human-oriented rendering: the same content as
// plain mode, with color and structure.
func renderInteractive(s *engine.Summary) string {
	var b strings.Builder

	for _, r := range s.Results {
		status := passStyle.Render("OK")
		if !r.Succeeded {
			status = failStyle.Render("FAIL")
		}

		meta := metaStyle.Render(fmt.Sprintf("(exit %d, %s, %dms)",
			r.Final.ExitCode, attemptsLabel(r.Attempts), r.TotalDuration.Milliseconds()))
		fmt.Fprintf(&b, "%s %s %s\n", status, hostStyle.Render(r.Host.Name), meta)

		writeIndented(&b, r.Final.Stdout)
		if r.Final.Stderr != "" {
			writeIndented(&b, stderrStyle.Render(strings.TrimRight(r.Final.Stderr, "\n")))
		}
		if !r.Succeeded && r.Final.Message != "" {
			fmt.Fprintf(&b, "  %s\n", failStyle.Render("error: "+r.Final.Message))
		}
	}

	footer := fmt.Sprintf("%d succeeded, %d failed (%s)",
		s.Succeeded, s.Failed, s.WallClock.Round(time.Millisecond))
	if s.Failed == 0 {
		footer = passStyle.Render(footer)
	} else {
		footer = failStyle.Render(footer)
	}
	b.WriteString(footerStyle.Render(footer))
	b.WriteString("\n")

	return b.String()
}
