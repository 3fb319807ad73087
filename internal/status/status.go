// Package status prints run progress and warnings for the CLI. Output goes
// to an io.Writer; when that writer is a color terminal, line prefixes are
// styled, otherwise the text is plain so it can be logged or asserted on.
package status

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Printer writes progress lines and counts warnings.
type Printer struct {
	w       io.Writer
	verbose bool

	warn  lipgloss.Style
	fail  lipgloss.Style
	done  lipgloss.Style
	muted lipgloss.Style

	warnings int
}

// New returns a Printer writing to w. Debug lines are printed only when
// verbose is set.
func New(w io.Writer, verbose bool) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:       w,
		verbose: verbose,
		warn:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("#F9E2AF")),
		fail:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("#F38BA8")),
		done:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("#A6E3A1")),
		muted:   r.NewStyle().Foreground(lipgloss.Color("#6C7086")),
	}
}

// Discard returns a Printer that prints nothing.
func Discard() *Printer {
	return New(io.Discard, false)
}

// Infof prints a plain progress line.
func (p *Printer) Infof(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

// Warnf prints a warning. Warnings never stop a run.
func (p *Printer) Warnf(format string, args ...any) {
	p.warnings++
	fmt.Fprintf(p.w, "%s %s\n", p.warn.Render("warning:"), fmt.Sprintf(format, args...))
}

// Failf prints a failure line.
func (p *Printer) Failf(format string, args ...any) {
	fmt.Fprintf(p.w, "%s %s\n", p.fail.Render("failed:"), fmt.Sprintf(format, args...))
}

// Donef prints a completion line.
func (p *Printer) Donef(format string, args ...any) {
	fmt.Fprintf(p.w, "%s %s\n", p.done.Render("done:"), fmt.Sprintf(format, args...))
}

// Debugf prints a line only in verbose mode.
func (p *Printer) Debugf(format string, args ...any) {
	if p.verbose {
		fmt.Fprintf(p.w, "%s\n", p.muted.Render(fmt.Sprintf(format, args...)))
	}
}

// Warnings returns how many warnings have been printed.
func (p *Printer) Warnings() int {
	return p.warnings
}
