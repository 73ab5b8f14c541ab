// Package ui renders the crawler's terminal output: one-line status
// messages and summary panels for the crawl, load and status commands.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

const banner = `pricecrawl :: grocery price traversal`

var (
	mu    sync.Mutex
	out   io.Writer = os.Stdout
	quiet bool
)

// SetOutput redirects all output. nil restores stdout.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		w = os.Stdout
	}
	out = w
}

// SetQuietMode suppresses everything except errors.
func SetQuietMode(q bool) {
	mu.Lock()
	defer mu.Unlock()
	quiet = q
}

func emit(s string, always bool) {
	mu.Lock()
	defer mu.Unlock()
	if quiet && !always {
		return
	}
	fmt.Fprintln(out, s)
}

// PrintBanner prints the program banner.
func PrintBanner() {
	emit(bannerStyle.Render(banner), false)
}

// PrintError prints an error message, with an optional detail.
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg += ": " + fmt.Sprintf("%v", args[0])
	}
	emit(errorStyle.Render(msg), true)
}

// PrintSuccess prints a success message
func PrintSuccess(msg string) {
	emit(successStyle.Render(msg), false)
}

// PrintWarning prints a warning message
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg += ": " + fmt.Sprintf("%v", args[0])
	}
	emit(warningStyle.Render(msg), false)
}

// PrintInfo prints a label and value
func PrintInfo(label string, value string) {
	emit(labelStyle.Render(label+":")+" "+valueStyle.Render(value), false)
}

// PrintHighlight prints a highlighted message
func PrintHighlight(msg string) {
	emit(highlightStyle.Render(msg), false)
}

// PrintPanel prints a bordered panel; see Panel.
func PrintPanel(title string, rows []Row) {
	emit(Panel(title, rows), false)
}

// Row is one label/value line of a panel.
type Row struct {
	Label string
	Value string
}

// Panel renders rows under title inside a rounded border. Labels are
// right-padded to a common width.
func Panel(title string, rows []Row) string {
	width := 0
	for _, r := range rows {
		if n := lipgloss.Width(r.Label); n > width {
			width = n
		}
	}

	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, titleStyle.Render(title))
	for _, r := range rows {
		label := r.Label + strings.Repeat(" ", width-lipgloss.Width(r.Label))
		lines = append(lines, labelStyle.Render(label)+"  "+valueStyle.Render(r.Value))
	}
	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// Bar renders a fixed-width bar for done out of total.
func Bar(done, total, width int) string {
	if width <= 0 {
		return ""
	}
	filled := 0
	if total > 0 {
		filled = done * width / total
	}
	if filled > width {
		filled = width
	}
	return barStyle.Render(strings.Repeat("█", filled)) + barEmptyStyle.Render(strings.Repeat("░", width-filled))
}
