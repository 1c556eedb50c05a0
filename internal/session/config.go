package session

import (
	"errors"
	"time"

	"github.com/leonardotrapani/interpret/internal/capture"
	"github.com/leonardotrapani/interpret/internal/language"
	"github.com/leonardotrapani/interpret/internal/transcriber"
	"github.com/leonardotrapani/interpret/internal/translator"
	"github.com/leonardotrapani/interpret/internal/transport"
)

// Config is the per-session snapshot of the daemon configuration. A running
// session keeps the Config it was started with.
type Config struct {
	Device string
	// Source is "auto" (or empty) for detection, otherwise a pinned code.
	Source string
	Target string

	Capture     capture.Config
	PipeWire    capture.PipeWireConfig
	Transcriber transcriber.Config
	Translator  translator.Config
	// Transport switches the session to a realtime server when URL is set.
	// The server then provides both transcriptions and translations.
	Transport transport.Config

	StopTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Source:      language.Auto.Code,
		Target:      language.Chinese,
		Capture:     capture.DefaultConfig(),
		PipeWire:    capture.DefaultPipeWireConfig(),
		Transcriber: transcriber.DefaultConfig(),
		Translator:  translator.DefaultConfig(),
		Transport:   transport.DefaultConfig(),
		StopTimeout: 10 * time.Second,
	}
}

// Capabilities are the remote services one session is bound to.
type Capabilities struct {
	Opener     capture.Opener
	Recognizer transcriber.Recognizer
	// Stream, when set, is used instead of Recognizer.
	Stream     func(hooks transport.Hooks) transcriber.StreamRecognizer
	Translator translator.Translator
}

func (c Capabilities) validate() error {
	if c.Opener == nil {
		return errors.New("capture device opener required")
	}
	if c.Stream == nil && c.Recognizer == nil {
		return errors.New("recognizer required")
	}
	if c.Stream == nil && c.Translator == nil {
		return errors.New("translator required")
	}
	return nil
}

// Builder resolves capabilities for a new session.
type Builder func(cfg Config) (Capabilities, error)

// DefaultBuilder binds PipeWire capture and the providers named in cfg.
func DefaultBuilder(cfg Config) (Capabilities, error) {
	caps := Capabilities{Opener: capture.NewPipeWire(cfg.PipeWire)}

	if cfg.Transport.URL != "" {
		tc := cfg.Transport
		caps.Stream = func(hooks transport.Hooks) transcriber.StreamRecognizer {
			return transport.NewClient(tc, hooks)
		}
		return caps, nil
	}

	rec, err := transcriber.NewRecognizer(cfg.Transcriber)
	if err != nil {
		return Capabilities{}, err
	}
	tr, err := translator.NewTranslator(cfg.Translator)
	if err != nil {
		return Capabilities{}, err
	}
	caps.Recognizer = rec
	caps.Translator = tr
	return caps, nil
}

// DemoBuilder runs a session offline on silent audio with the scripted
// recognizer and translator.
func DemoBuilder(cfg Config) (Capabilities, error) {
	return Capabilities{
		Opener:     capture.SilenceOpener(100*time.Millisecond, 3200),
		Recognizer: transcriber.NewScriptedRecognizer(),
		Translator: translator.NewScriptedTranslator(),
	}, nil
}
