package ui

import "github.com/charmbracelet/lipgloss"

// 256-color palette.
const (
	ColorAccent   = "39"  // progress, headers
	ColorAccentLo = "31"  // inactive stages
	ColorGray     = "245" // labels
	ColorDarkGray = "238" // borders
	ColorRed      = "196"
	ColorYellow   = "220"
)

// Styles holds the lipgloss styles used by the TUI and status output.
type Styles struct {
	Header    lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Dim       lipgloss.Style
	Stage     lipgloss.Style
	Active    lipgloss.Style
	Border    lipgloss.Style
	Sparkline lipgloss.Style
	Label     lipgloss.Style
}

func DefaultStyles() Styles {
	fg := func(c string) lipgloss.Style { return lipgloss.NewStyle().Foreground(lipgloss.Color(c)) }
	return Styles{
		Header:    fg(ColorAccent).Bold(true),
		Success:   fg(ColorAccent),
		Warning:   fg(ColorYellow),
		Error:     fg(ColorRed),
		Dim:       fg(ColorDarkGray),
		Stage:     fg(ColorAccentLo),
		Active:    fg(ColorAccent).Bold(true),
		Border:    fg(ColorDarkGray),
		Sparkline: fg(ColorAccent),
		Label:     fg(ColorGray),
	}
}

// NoColorStyles renders every element unstyled.
func NoColorStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Header:    plain,
		Success:   plain,
		Warning:   plain,
		Error:     plain,
		Dim:       plain,
		Stage:     plain,
		Active:    plain,
		Border:    plain,
		Sparkline: plain,
		Label:     plain,
	}
}

func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}
