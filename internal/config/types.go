package config

import "time"

type Config struct {
	Capture       CaptureConfig             `toml:"capture" yaml:"capture"`
	Transcription TranscriptionConfig       `toml:"transcription" yaml:"transcription"`
	Translation   TranslationConfig         `toml:"translation" yaml:"translation"`
	Transport     TransportConfig           `toml:"transport" yaml:"transport"`
	Session       SessionConfig             `toml:"session" yaml:"session"`
	Server        ServerConfig              `toml:"server" yaml:"server"`
	Notifications NotificationsConfig       `toml:"notifications" yaml:"notifications"`
	Log           LogConfig                 `toml:"log" yaml:"log"`
	Providers     map[string]ProviderConfig `toml:"providers" yaml:"providers"`
	Keywords      []string                  `toml:"keywords" yaml:"keywords"`
}

// ProviderConfig holds API key for a provider
type ProviderConfig struct {
	APIKey string `toml:"api_key" yaml:"api_key"`
}

type CaptureConfig struct {
	Device            string        `toml:"device" yaml:"device"`
	SampleRate        int           `toml:"sample_rate" yaml:"sample_rate"`
	Channels          int           `toml:"channels" yaml:"channels"`
	Format            string        `toml:"format" yaml:"format"`
	BufferSize        int           `toml:"buffer_size" yaml:"buffer_size"`
	ChannelBufferSize int           `toml:"channel_buffer_size" yaml:"channel_buffer_size"`
	ChunkInterval     time.Duration `toml:"chunk_interval" yaml:"chunk_interval"`
	BufferChunks      int           `toml:"buffer_chunks" yaml:"buffer_chunks"`
}

type TranscriptionConfig struct {
	Provider string `toml:"provider" yaml:"provider"`
	Model    string `toml:"model" yaml:"model"`
	BaseURL  string `toml:"base_url" yaml:"base_url"`
	// Source is "auto" for detection or a pinned language code.
	Source      string        `toml:"source" yaml:"source"`
	Timeout     time.Duration `toml:"timeout" yaml:"timeout"`
	MaxInFlight int           `toml:"max_in_flight" yaml:"max_in_flight"`
	MaxFailures int           `toml:"max_failures" yaml:"max_failures"`
}

type TranslationConfig struct {
	Provider string        `toml:"provider" yaml:"provider"`
	Model    string        `toml:"model" yaml:"model"`
	BaseURL  string        `toml:"base_url" yaml:"base_url"`
	Target   string        `toml:"target" yaml:"target"`
	Timeout  time.Duration `toml:"timeout" yaml:"timeout"`
}

// TransportConfig points sessions at a realtime server that both transcribes
// and translates. Empty URL keeps the per-chunk providers.
type TransportConfig struct {
	URL              string        `toml:"url" yaml:"url"`
	APIKey           string        `toml:"api_key" yaml:"api_key"`
	HandshakeTimeout time.Duration `toml:"handshake_timeout" yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `toml:"write_timeout" yaml:"write_timeout"`
}

type SessionConfig struct {
	StopTimeout time.Duration `toml:"stop_timeout" yaml:"stop_timeout"`
}

type ServerConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Addr    string `toml:"addr" yaml:"addr"`
}

type NotificationsConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Type    string `toml:"type" yaml:"type"` // "desktop", "log", "none"
}

type LogConfig struct {
	Level string `toml:"level" yaml:"level"`
}
