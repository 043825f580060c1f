package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"invasoras/pkg/models"
)

var (
	green  = lipgloss.Color("#39FF14")
	yellow = lipgloss.Color("#FFD700")
	red    = lipgloss.Color("#FF5F56")
	cyan   = lipgloss.Color("#00D7FF")
	dim    = lipgloss.Color("#8A8A8A")

	titleStyle   = lipgloss.NewStyle().Foreground(cyan).Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(cyan).Width(20)
	valueStyle   = lipgloss.NewStyle().Foreground(yellow)
	successStyle = lipgloss.NewStyle().Foreground(green).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(red).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(yellow)
	dimStyle     = lipgloss.NewStyle().Foreground(dim)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(cyan).
			Padding(0, 2)
)

// Printer writes styled, human-facing messages. Log output goes through
// pkg/logger; the printer is for command results.
type Printer struct {
	out      io.Writer
	renderer *lipgloss.Renderer
}

// NewPrinter creates a printer on w. Colors are dropped automatically when
// w is not a terminal.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{out: w, renderer: lipgloss.NewRenderer(w)}
}

func (p *Printer) style(s lipgloss.Style) lipgloss.Style {
	return s.Renderer(p.renderer)
}

// Error prints an error message, optionally followed by a detail
func (p *Printer) Error(msg string, detail ...interface{}) {
	if len(detail) > 0 {
		msg = fmt.Sprintf("%s: %v", msg, detail[0])
	}
	fmt.Fprintln(p.out, p.style(errorStyle).Render(msg))
}

// Warning prints a warning message
func (p *Printer) Warning(msg string) {
	fmt.Fprintln(p.out, p.style(warningStyle).Render(msg))
}

// Success prints a success message
func (p *Printer) Success(msg string) {
	fmt.Fprintln(p.out, p.style(successStyle).Render(msg))
}

// Info prints a label and its value
func (p *Printer) Info(label, value string) {
	fmt.Fprintln(p.out, p.style(labelStyle).Render(label+":")+p.style(valueStyle).Render(value))
}

// Summary renders the result of a crawl in a bordered panel
func (p *Printer) Summary(s *models.Summary, outputDir string) {
	if s == nil {
		return
	}

	row := func(label string, value interface{}) string {
		return p.style(labelStyle).Render(label) + p.style(valueStyle).Render(fmt.Sprint(value))
	}

	lines := []string{
		p.style(titleStyle).Render("CRAWL SUMMARY"),
		"",
		row("Occurrences", s.Occurrences),
		row("Failed pages", s.FailedOccurrences),
		row("Image pages", s.ImagePages),
		row("Downloaded", s.Downloaded),
		row("Failed images", s.Failed),
		row("Duration", s.Duration.Round(time.Millisecond)),
		row("Output", outputDir),
	}

	if s.Failed > 0 || s.FailedOccurrences > 0 {
		lines = append(lines, "", p.style(dimStyle).Render("See the log above for failed pages and images."))
	}

	fmt.Fprintln(p.out, p.style(panelStyle).Render(strings.Join(lines, "\n")))
}
