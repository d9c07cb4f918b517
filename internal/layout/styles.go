package layout

import "charm.land/lipgloss/v2"

var (
	ColorHighlight = lipgloss.Color("#00E5CC")
	ColorDim       = lipgloss.Color("#3f3f3f")
	ColorBorder    = lipgloss.Color("#1c1c1c")
	ColorError     = lipgloss.Color("#932e2e")
)

// Styles groups the lipgloss styles the components render with.
type Styles struct {
	Welcome   lipgloss.Style
	Prompt    lipgloss.Style
	Cursor    lipgloss.Style
	Dim       lipgloss.Style
	Highlight lipgloss.Style
	Selected  lipgloss.Style
	Footer    lipgloss.Style
	Border    lipgloss.Style
}

// DefaultStyles returns the standard style set.
func DefaultStyles() Styles {
	return Styles{
		Welcome:   lipgloss.NewStyle().Bold(true).Foreground(ColorHighlight),
		Prompt:    lipgloss.NewStyle().Foreground(ColorHighlight),
		Cursor:    lipgloss.NewStyle().Reverse(true),
		Dim:       lipgloss.NewStyle().Foreground(ColorDim),
		Highlight: lipgloss.NewStyle().Foreground(ColorHighlight),
		Selected:  lipgloss.NewStyle().Reverse(true),
		Footer:    lipgloss.NewStyle().Foreground(ColorDim),
		Border:    lipgloss.NewStyle().Foreground(ColorBorder),
	}
}
