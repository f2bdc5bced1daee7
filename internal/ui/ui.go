// Package ui provides terminal rendering helpers for the pharmsync CLI.
//
// Styles degrade to plain text when stdout is not a terminal or when the
// terminal reports no color support, so command output stays pipeable.
package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

// colorEnabled reports whether styled output should be produced.
func colorEnabled() bool {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return false
	}
	return termenv.ColorProfile() != termenv.Ascii
}

func render(style lipgloss.Style, s string) string {
	if !colorEnabled() {
		return s
	}
	return style.Render(s)
}

// RenderPass renders a success marker, e.g. "synced".
func RenderPass(s string) string { return render(passStyle, s) }

// RenderWarn renders a warning, e.g. "offline" or a low-stock flag.
func RenderWarn(s string) string { return render(warnStyle, s) }

// RenderErr renders an error marker.
func RenderErr(s string) string { return render(errStyle, s) }

// RenderAccent renders an identifier or value worth drawing the eye to.
func RenderAccent(s string) string { return render(accentStyle, s) }

// RenderDim renders secondary detail.
func RenderDim(s string) string { return render(dimStyle, s) }

// RenderHeader renders a section heading.
func RenderHeader(s string) string { return render(headerStyle, s) }

// Width returns the terminal width, or 80 when stdout is not a terminal.
func Width() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}
