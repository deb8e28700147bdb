package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/urbanisierung/copilot-swarm/internal/engine"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	skippedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// renderSummary formats a finished run's summary for the terminal.
func renderSummary(s *engine.Summary) string {
	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("Run %s completed", s.RunID)))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("─", min(width, 60)))
	b.WriteString("\n")

	for _, p := range s.Phases {
		marker := doneStyle.Render("●")
		switch {
		case strings.HasPrefix(p.Status, "skipped"):
			marker = skippedStyle.Render("○")
		case p.Status == "incomplete":
			marker = failStyle.Render("●")
		}
		fmt.Fprintf(&b, "%s %-22s %s\n", marker, p.ID, p.Status)
	}

	if s.StreamsTotal > 0 {
		line := fmt.Sprintf("Streams: %d/%d completed", s.StreamsTotal-s.StreamsFailed, s.StreamsTotal)
		if s.StreamsFailed > 0 {
			line = failStyle.Render(line + fmt.Sprintf(" (%d failed, resume to retry)", s.StreamsFailed))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if s.Verification != "" {
		line := "Verification: " + s.Verification
		if s.Verification != "passed" {
			line = warnStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
