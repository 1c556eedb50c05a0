package config

import (
	"fmt"
	"net/url"

	"github.com/leonardotrapani/interpret/internal/language"
)

func (c *Config) Validate() error {
	if c.Capture.SampleRate <= 0 {
		return fmt.Errorf("invalid capture.sample_rate: %d", c.Capture.SampleRate)
	}
	if c.Capture.Channels <= 0 {
		return fmt.Errorf("invalid capture.channels: %d", c.Capture.Channels)
	}
	if c.Capture.Format == "" {
		return fmt.Errorf("invalid capture.format: empty")
	}
	if c.Capture.BufferSize <= 0 {
		return fmt.Errorf("invalid capture.buffer_size: %d", c.Capture.BufferSize)
	}
	if c.Capture.ChannelBufferSize <= 0 {
		return fmt.Errorf("invalid capture.channel_buffer_size: %d", c.Capture.ChannelBufferSize)
	}
	if c.Capture.ChunkInterval <= 0 {
		return fmt.Errorf("invalid capture.chunk_interval: %v", c.Capture.ChunkInterval)
	}
	if c.Capture.BufferChunks <= 0 {
		return fmt.Errorf("invalid capture.buffer_chunks: %d", c.Capture.BufferChunks)
	}

	if src := c.Transcription.Source; src != language.Auto.Code && !language.IsSupported(src) {
		return fmt.Errorf("invalid transcription.source: %s (use auto or one of %v)", src, language.Codes())
	}
	if !language.IsSupported(c.Translation.Target) {
		return fmt.Errorf("invalid translation.target: %s (must be one of %v)", c.Translation.Target, language.Codes())
	}
	if c.Transcription.MaxInFlight <= 0 {
		return fmt.Errorf("invalid transcription.max_in_flight: %d", c.Transcription.MaxInFlight)
	}
	if c.Transcription.MaxFailures <= 0 {
		return fmt.Errorf("invalid transcription.max_failures: %d", c.Transcription.MaxFailures)
	}

	if c.Transport.URL != "" {
		u, err := url.Parse(c.Transport.URL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			return fmt.Errorf("invalid transport.url: %s (must be a ws:// or wss:// URL)", c.Transport.URL)
		}
	} else {
		if err := c.validateProviders(); err != nil {
			return err
		}
	}

	if c.Session.StopTimeout < 0 {
		return fmt.Errorf("invalid session.stop_timeout: %v", c.Session.StopTimeout)
	}
	if c.Server.Enabled && c.Server.Addr == "" {
		return fmt.Errorf("invalid server.addr: empty")
	}

	validTypes := map[string]bool{"desktop": true, "log": true, "none": true}
	if !validTypes[c.Notifications.Type] {
		return fmt.Errorf("invalid notifications.type: %s (must be desktop, log, or none)", c.Notifications.Type)
	}

	return nil
}

func (c *Config) validateProviders() error {
	switch c.Transcription.Provider {
	case "openai", "groq":
		if c.resolveAPIKey(c.Transcription.Provider) == "" {
			return fmt.Errorf("%s API key required: not found in config (providers.%s.api_key) or environment variable (%s)",
				c.Transcription.Provider, c.Transcription.Provider, envVarForProvider(c.Transcription.Provider))
		}
	case "scripted":
	default:
		return fmt.Errorf("unsupported transcription.provider: %s (must be openai, groq, or scripted)", c.Transcription.Provider)
	}
	if c.Transcription.Provider != "scripted" && c.Transcription.Model == "" {
		return fmt.Errorf("invalid transcription.model: empty")
	}

	switch c.Translation.Provider {
	case "openai", "groq":
		if c.resolveAPIKey(c.Translation.Provider) == "" {
			return fmt.Errorf("%s API key required: not found in config (providers.%s.api_key) or environment variable (%s)",
				c.Translation.Provider, c.Translation.Provider, envVarForProvider(c.Translation.Provider))
		}
	case "libretranslate":
		if c.Translation.BaseURL == "" {
			return fmt.Errorf("translation.base_url required for libretranslate")
		}
	case "scripted":
	default:
		return fmt.Errorf("unsupported translation.provider: %s (must be openai, groq, libretranslate, or scripted)", c.Translation.Provider)
	}
	return nil
}
