package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles for the configure screens and doctor output.
var (
	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent).
			MarginBottom(1)

	StyleLabel = lipgloss.NewStyle().
			Foreground(ColorSource).
			Bold(true)

	StyleSuccess = lipgloss.NewStyle().Foreground(ColorOK)
	StyleWarning = lipgloss.NewStyle().Foreground(ColorWarn)
	StyleError   = lipgloss.NewStyle().Foreground(ColorFail).Bold(true)
)

// listenStyles belong to one Listener. They are built from its renderer so
// color support follows the writer, not the process stdout.
type listenStyles struct {
	banner  lipgloss.Style
	seq     lipgloss.Style
	source  lipgloss.Style
	target  lipgloss.Style
	missing lipgloss.Style
	status  lipgloss.Style
	failure lipgloss.Style
}

func newListenStyles(r *lipgloss.Renderer) listenStyles {
	return listenStyles{
		banner:  r.NewStyle().Bold(true).Foreground(ColorAccent),
		seq:     r.NewStyle().Foreground(ColorSeq),
		source:  r.NewStyle().Foreground(ColorSource),
		target:  r.NewStyle().Foreground(ColorTarget).Bold(true),
		missing: r.NewStyle().Foreground(ColorWarn).Italic(true),
		status:  r.NewStyle().Foreground(ColorStatus),
		failure: r.NewStyle().Foreground(ColorFail).Bold(true),
	}
}

const logoASCII = `
 _       _                           _
(_)_ __ | |_ ___ _ __ _ __  _ __ ___| |_
| | '_ \| __/ _ \ '__| '_ \| '__/ _ \ __|
| | | | | ||  __/ |  | |_) | | |  __/ |_
|_|_| |_|\__\___|_|  | .__/|_|  \___|\__|
                     |_|                 `

func Logo() string {
	return StyleHeader.Render(strings.Trim(logoASCII, "\n"))
}
