package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/leonardotrapani/interpret/internal/language"
	"github.com/leonardotrapani/interpret/internal/session"
)

// Listener renders a session feed as it arrives: committed source lines,
// translations in order, and status changes. Partial hypotheses are not
// rendered.
type Listener struct {
	out   io.Writer
	style listenStyles
}

// NewListener styles output for w. Colors are dropped when w is not a
// terminal.
func NewListener(w io.Writer) *Listener {
	r := lipgloss.NewRenderer(w, termenv.WithColorCache(true))
	return &Listener{out: w, style: newListenStyles(r)}
}

// Header prints the session banner.
func (l *Listener) Header(snap session.Snapshot) {
	mode := "auto-detect"
	if snap.Mode == language.ModeFixed {
		mode = "fixed source"
	}
	fmt.Fprintln(l.out, l.style.banner.Render(fmt.Sprintf("Interpreting %s", snap.Device)))
	fmt.Fprintln(l.out, l.style.status.Render(fmt.Sprintf("session %s · %s · target %s", snap.ID, mode, languageLabel(snap.Target))))
	fmt.Fprintln(l.out)
}

// Render writes one event.
func (l *Listener) Render(ev session.Event) {
	switch ev.Type {
	case session.EventSource:
		fmt.Fprintf(l.out, "%s %s\n", l.style.seq.Render(fmt.Sprintf("%3d ›", ev.Seq)), l.style.source.Render(ev.Text))
	case session.EventTarget:
		fmt.Fprintf(l.out, "%s %s\n", l.style.seq.Render(fmt.Sprintf("%3d »", ev.Seq)), l.style.target.Render(ev.Text))
	case session.EventUnavailable:
		fmt.Fprintf(l.out, "%s %s\n", l.style.seq.Render(fmt.Sprintf("%3d »", ev.Seq)), l.style.missing.Render("[translation unavailable]"))
	case session.EventTargetChanged:
		fmt.Fprintln(l.out, l.style.status.Render("── now translating to "+languageLabel(ev.Language)+" ──"))
	case session.EventDropped:
		fmt.Fprintln(l.out, l.style.missing.Render(fmt.Sprintf("audio chunk %d dropped, recognition is falling behind", ev.Seq)))
	case session.EventEnded:
		if ev.Error != "" {
			fmt.Fprintln(l.out, l.style.failure.Render("session ended: "+ev.Error))
			return
		}
		fmt.Fprintln(l.out, l.style.status.Render("session ended"))
	}
}

// Run renders events until the feed closes.
func (l *Listener) Run(events <-chan session.Event) {
	for ev := range events {
		l.Render(ev)
	}
}

// Transcript prints the final source and target texts.
func (l *Listener) Transcript(snap session.Snapshot) {
	fmt.Fprintln(l.out)
	fmt.Fprintln(l.out, l.style.banner.Render("Transcript"))
	fmt.Fprintln(l.out, l.style.source.Render(snap.Source))
	fmt.Fprintln(l.out)
	fmt.Fprintln(l.out, l.style.banner.Render("Translation"))
	fmt.Fprintln(l.out, l.style.target.Render(snap.Text))
}
