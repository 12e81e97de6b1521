package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/teemow/inboxsense/internal/pipeline"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#16a34a"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))
	urlStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#2563eb")).Underline(true)
	labelStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 1)
)

// sentimentStyle colors a sentiment label.
func sentimentStyle(sentiment string) lipgloss.Style {
	switch sentiment {
	case "Positive":
		return labelStyle.Foreground(lipgloss.Color("#16a34a"))
	case "Negative":
		return labelStyle.Foreground(lipgloss.Color("#dc2626"))
	default:
		return labelStyle.Foreground(lipgloss.Color("#d97706"))
	}
}

// printOutcome renders a pipeline outcome for the terminal.
func printOutcome(w io.Writer, out pipeline.Outcome) {
	if !out.OK {
		fmt.Fprintln(w, errStyle.Render("✗ "+out.Message))
		if out.Err != nil {
			fmt.Fprintln(w, mutedStyle.Render("  "+out.Err.Error()))
		}
		return
	}

	if out.Email != nil {
		fmt.Fprintf(w, "%s %s\n", mutedStyle.Render("Subject:"), titleStyle.Render(out.Email.Subject))
		if out.Email.From != "" {
			fmt.Fprintf(w, "%s %s\n", mutedStyle.Render("From:   "), out.Email.From)
		}
		if out.Email.ReceivedAt != nil {
			fmt.Fprintf(w, "%s %s\n", mutedStyle.Render("Date:   "), out.Email.ReceivedAt.Local().Format("2006-01-02 15:04"))
		}
	}
	fmt.Fprintf(w, "%s %s %s\n",
		successStyle.Render("✓"),
		labelStyle.Render(strings.ToUpper(out.Analysis.Classification)),
		sentimentStyle(out.Analysis.Sentiment).Render(out.Analysis.Sentiment),
	)
}
