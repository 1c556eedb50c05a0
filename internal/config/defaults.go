package config

import "time"

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() *Config {
	return &Config{
		Capture: CaptureConfig{
			Device:            "",
			SampleRate:        16000,
			Channels:          1,
			Format:            "s16",
			BufferSize:        8192,
			ChannelBufferSize: 30,
			ChunkInterval:     time.Second,
			BufferChunks:      8,
		},
		Transcription: TranscriptionConfig{
			Provider:    "openai",
			Model:       "whisper-1",
			Source:      "auto",
			Timeout:     15 * time.Second,
			MaxInFlight: 4,
			MaxFailures: 3,
		},
		Translation: TranslationConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
			Target:   "zh",
			Timeout:  10 * time.Second,
		},
		Transport: TransportConfig{
			HandshakeTimeout: 10 * time.Second,
			WriteTimeout:     5 * time.Second,
		},
		Session: SessionConfig{
			StopTimeout: 10 * time.Second,
		},
		Server: ServerConfig{
			Enabled: true,
			Addr:    "127.0.0.1:7788",
		},
		Notifications: NotificationsConfig{
			Enabled: true,
			Type:    "desktop",
		},
		Log: LogConfig{
			Level: "info",
		},
		Providers: make(map[string]ProviderConfig),
	}
}
