package tui

import (
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// Palette. Adaptive colors pick the light or dark variant from the
// terminal background.
var (
	ColorAccent = lipgloss.AdaptiveColor{Light: "#0F766E", Dark: "#2DD4BF"}

	// transcript lines in the listen view
	ColorSource = lipgloss.AdaptiveColor{Light: "#1E293B", Dark: "#E2E8F0"}
	ColorTarget = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FBBF24"}
	ColorSeq    = lipgloss.AdaptiveColor{Light: "#94A3B8", Dark: "#475569"}

	ColorStatus = lipgloss.AdaptiveColor{Light: "#64748B", Dark: "#94A3B8"}
	ColorOK     = lipgloss.AdaptiveColor{Light: "#15803D", Dark: "#4ADE80"}
	ColorWarn   = lipgloss.AdaptiveColor{Light: "#C2410C", Dark: "#FB923C"}
	ColorFail   = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}
)

// formTheme styles the configure forms with the listen view's colors.
func formTheme() *huh.Theme {
	t := huh.ThemeBase()

	t.Focused.Title = lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
	t.Focused.Description = lipgloss.NewStyle().Foreground(ColorStatus)
	t.Focused.Base = lipgloss.NewStyle().BorderForeground(ColorAccent)
	t.Focused.SelectedOption = lipgloss.NewStyle().Foreground(ColorTarget)
	t.Focused.UnselectedOption = lipgloss.NewStyle().Foreground(ColorSource)
	t.Focused.ErrorMessage = t.Focused.ErrorMessage.Foreground(ColorFail)

	t.Blurred.Title = lipgloss.NewStyle().Foreground(ColorStatus)
	t.Blurred.Description = lipgloss.NewStyle().Foreground(ColorSeq)

	return t
}
