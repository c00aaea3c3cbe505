package output

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles used in text mode.
type Styles struct {
	Header1 lipgloss.Style
	Header2 lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	ID      lipgloss.Style
	Path    lipgloss.Style

	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Info    lipgloss.Style

	StatusSuccess   lipgloss.Style
	StatusUnchanged lipgloss.Style
	StatusFailed    lipgloss.Style
	StatusSkipped   lipgloss.Style
}

// NewStyles builds styles bound to r's color profile.
func NewStyles(r *lipgloss.Renderer) *Styles {
	green := lipgloss.Color("42")
	yellow := lipgloss.Color("214")
	red := lipgloss.Color("196")
	gray := lipgloss.Color("245")
	blue := lipgloss.Color("39")

	return &Styles{
		Header1: r.NewStyle().Bold(true).Foreground(blue),
		Header2: r.NewStyle().Bold(true),
		Bold:    r.NewStyle().Bold(true),
		Muted:   r.NewStyle().Foreground(gray),
		ID:      r.NewStyle().Foreground(blue),
		Path:    r.NewStyle().Foreground(gray).Italic(true),

		Success: r.NewStyle().Foreground(green),
		Warning: r.NewStyle().Foreground(yellow),
		Error:   r.NewStyle().Foreground(red),
		Info:    r.NewStyle().Foreground(blue),

		StatusSuccess:   r.NewStyle().Foreground(green).SetString("✓"),
		StatusUnchanged: r.NewStyle().Foreground(gray).SetString("="),
		StatusFailed:    r.NewStyle().Foreground(red).SetString("✗"),
		StatusSkipped:   r.NewStyle().Foreground(yellow).SetString("-"),
	}
}

// StatusIcon returns the marker for a status name.
func (s *Styles) StatusIcon(status string) string {
	switch status {
	case "success", "generated", "ok":
		return s.StatusSuccess.String()
	case "unchanged":
		return s.StatusUnchanged.String()
	case "failed", "error":
		return s.StatusFailed.String()
	case "warning", "warn":
		return s.Warning.Render("!")
	default:
		return s.StatusSkipped.String()
	}
}
