package output

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Styles holds the lipgloss styles used in text mode.
type Styles struct {
	Header1 lipgloss.Style
	Header2 lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style

	StatusSuccess lipgloss.Style
	StatusFailed  lipgloss.Style
	Dataset       lipgloss.Style
}

// newStyles binds styles to a lipgloss renderer for w. Without a TTY the
// color profile is forced to plain ASCII so no escape codes are written.
func newStyles(w io.Writer, isTTY bool) *Styles {
	lr := lipgloss.NewRenderer(w)
	if !isTTY {
		lr.SetColorProfile(termenv.Ascii)
	}

	return &Styles{
		Header1: lr.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).MarginBottom(1),
		Header2: lr.NewStyle().Bold(true).Foreground(lipgloss.Color("14")),
		Bold:    lr.NewStyle().Bold(true),
		Muted:   lr.NewStyle().Foreground(lipgloss.Color("8")),
		Error:   lr.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Warning: lr.NewStyle().Foreground(lipgloss.Color("11")),
		Info:    lr.NewStyle().Foreground(lipgloss.Color("12")),

		StatusSuccess: lr.NewStyle().Foreground(lipgloss.Color("10")),
		StatusFailed:  lr.NewStyle().Foreground(lipgloss.Color("9")),
		Dataset:       lr.NewStyle().Bold(true).Foreground(lipgloss.Color("13")),
	}
}
