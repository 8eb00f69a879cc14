package output

import "github.com/charmbracelet/lipgloss"

// Palette, ANSI 256.
const (
	ColorLime     = "154"
	ColorLimeDim  = "106"
	ColorWhite    = "255"
	ColorGray     = "245"
	ColorDarkGray = "238"
	ColorRed      = "196"
	ColorYellow   = "220"
)

// Styles holds the CLI text styles.
type Styles struct {
	Header  lipgloss.Style
	Title   lipgloss.Style
	Path    lipgloss.Style
	Source  lipgloss.Style
	Mark    lipgloss.Style
	Label   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
}

// DefaultStyles returns the colored styles bound to r.
func DefaultStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Header:  r.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorLime)),
		Title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorWhite)),
		Path:    r.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Source:  r.NewStyle().Foreground(lipgloss.Color(ColorLimeDim)),
		Mark:    r.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorYellow)),
		Label:   r.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Success: r.NewStyle().Foreground(lipgloss.Color(ColorLime)),
		Warning: r.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Error:   r.NewStyle().Foreground(lipgloss.Color(ColorRed)),
	}
}

// NoColorStyles returns unstyled components for plain output.
func NoColorStyles() Styles {
	s := lipgloss.NewStyle()
	return Styles{
		Header: s, Title: s, Path: s, Source: s, Mark: s,
		Label: s, Success: s, Warning: s, Error: s,
	}
}
