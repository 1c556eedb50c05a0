package config

import (
	"os"

	"github.com/leonardotrapani/interpret/internal/capture"
	"github.com/leonardotrapani/interpret/internal/session"
	"github.com/leonardotrapani/interpret/internal/transcriber"
	"github.com/leonardotrapani/interpret/internal/translator"
	"github.com/leonardotrapani/interpret/internal/transport"
)

// ToSessionConfig snapshots the settings a new session runs with.
func (c *Config) ToSessionConfig() session.Config {
	return session.Config{
		Device: c.Capture.Device,
		Source: c.Transcription.Source,
		Target: c.Translation.Target,
		Capture: capture.Config{
			Interval:     c.Capture.ChunkInterval,
			BufferChunks: c.Capture.BufferChunks,
		},
		PipeWire: capture.PipeWireConfig{
			SampleRate:        c.Capture.SampleRate,
			Channels:          c.Capture.Channels,
			Format:            c.Capture.Format,
			BufferSize:        c.Capture.BufferSize,
			ChannelBufferSize: c.Capture.ChannelBufferSize,
		},
		Transcriber: c.ToTranscriberConfig(),
		Translator:  c.ToTranslatorConfig(),
		Transport: transport.Config{
			URL:              c.Transport.URL,
			APIKey:           c.Transport.APIKey,
			HandshakeTimeout: c.Transport.HandshakeTimeout,
			WriteTimeout:     c.Transport.WriteTimeout,
		},
		StopTimeout: c.Session.StopTimeout,
	}
}

func (c *Config) ToTranscriberConfig() transcriber.Config {
	return transcriber.Config{
		Provider:         c.Transcription.Provider,
		APIKey:           c.resolveAPIKey(c.Transcription.Provider),
		BaseURL:          c.Transcription.BaseURL,
		Model:            c.Transcription.Model,
		Timeout:          c.Transcription.Timeout,
		SampleRate:       c.Capture.SampleRate,
		Channels:         c.Capture.Channels,
		MaxInFlight:      c.Transcription.MaxInFlight,
		FailureThreshold: c.Transcription.MaxFailures,
	}
}

func (c *Config) ToTranslatorConfig() translator.Config {
	return translator.Config{
		Provider: c.Translation.Provider,
		APIKey:   c.resolveAPIKey(c.Translation.Provider),
		BaseURL:  c.Translation.BaseURL,
		Model:    c.Translation.Model,
		Timeout:  c.Translation.Timeout,
		Keywords: c.Keywords,
	}
}

// NotificationType is the notifier kind, "none" when disabled.
func (c *Config) NotificationType() string {
	if !c.Notifications.Enabled {
		return "none"
	}
	return c.Notifications.Type
}

// resolveAPIKey returns the API key for a provider from config, then env.
func (c *Config) resolveAPIKey(provider string) string {
	if c.Providers != nil {
		if pc, ok := c.Providers[provider]; ok && pc.APIKey != "" {
			return pc.APIKey
		}
	}
	if envVar := envVarForProvider(provider); envVar != "" {
		return os.Getenv(envVar)
	}
	return ""
}

func envVarForProvider(provider string) string {
	switch provider {
	case "openai":
		return "OPENAI_API_KEY"
	case "groq":
		return "GROQ_API_KEY"
	case "libretranslate":
		return "LIBRETRANSLATE_API_KEY"
	}
	return ""
}
