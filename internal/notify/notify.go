package notify

import (
	"fmt"
	"os/exec"

	"github.com/rs/zerolog"

	"github.com/leonardotrapani/interpret/internal/logging"
)

const appName = "Interpret"

type Notifier interface {
	SessionStarted(id, device string)
	SessionStopped(id string)
	Error(msg string)
}

// New returns the notifier for a notifications.type value.
func New(kind string) Notifier {
	switch kind {
	case "desktop":
		return Desktop{}
	case "log":
		return NewLog(logging.For("notify"))
	default:
		return Nop{}
	}
}

type Desktop struct{}

func (d Desktop) SessionStarted(id, device string) {
	d.send("normal", fmt.Sprintf("%s: Interpreting", appName), fmt.Sprintf("Listening on %s", device))
}

func (d Desktop) SessionStopped(id string) {
	d.send("normal", fmt.Sprintf("%s: Stopped", appName), "Session "+shortID(id)+" ended")
}

func (d Desktop) Error(msg string) {
	d.send("critical", appName, msg)
}

func (Desktop) send(urgency, title, body string) {
	cmd := exec.Command("notify-send", "-a", appName, "-u", urgency, title, body)
	if err := cmd.Run(); err != nil {
		logger := logging.For("notify")
		logger.Debug().Err(err).Msg("failed to send notification")
	}
}

// Log writes notifications to a logger instead of the desktop.
type Log struct {
	logger zerolog.Logger
}

func NewLog(logger zerolog.Logger) Log {
	return Log{logger: logger}
}

func (l Log) SessionStarted(id, device string) {
	l.logger.Info().Str("session", id).Str("device", device).Msg(appName + ": session started")
}

func (l Log) SessionStopped(id string) {
	l.logger.Info().Str("session", id).Msg(appName + ": session stopped")
}

func (l Log) Error(msg string) {
	l.logger.Error().Msg(appName + ": " + msg)
}

// Nop is a Notifier that does absolutely nothing.
// Useful in unit tests or headless builds.
type Nop struct{}

func (Nop) SessionStarted(id, device string) {}
func (Nop) SessionStopped(id string)         {}
func (Nop) Error(msg string)                 {}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
