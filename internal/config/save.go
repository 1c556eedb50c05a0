package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Save writes config to path in the format its extension selects.
func Save(path string, config *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp := path + ".tmp"
	file, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	if isYAML(path) {
		enc := yaml.NewEncoder(file)
		enc.SetIndent(2)
		err = enc.Encode(config)
		if cerr := enc.Close(); err == nil {
			err = cerr
		}
	} else {
		if _, err = file.WriteString("# Interpret configuration\n# Changes are applied to new sessions without restarting the daemon.\n\n"); err == nil {
			err = toml.NewEncoder(file).Encode(config)
		}
	}
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write config content: %w", err)
	}
	return os.Rename(tmp, path)
}

func SaveDefaultConfig() error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteString(defaultTemplate); err != nil {
		return fmt.Errorf("failed to write config content: %w", err)
	}
	return nil
}

const defaultTemplate = `# Interpret Configuration
# This file is automatically generated with defaults.
# Edit values as needed - new sessions pick up changes without a daemon restart.

# Terms the translator should keep as spelled
keywords = []

# Audio Capture Configuration
[capture]
  device = ""                  # PipeWire device (empty = default microphone)
  sample_rate = 16000          # Sample rate in Hz (16000 recommended for speech)
  channels = 1                 # 1 = mono, 2 = stereo
  format = "s16"               # 16-bit signed integers
  buffer_size = 8192           # pw-record read size in bytes
  channel_buffer_size = 30     # Frames buffered between pw-record and the chunker
  chunk_interval = "1s"        # Audio slice length sent for recognition
  buffer_chunks = 8            # Chunks queued before the oldest is dropped

# Speech Recognition
[transcription]
  provider = "openai"          # "openai", "groq" or "scripted"
  model = "whisper-1"
  source = "auto"              # "auto" for detection, or "en", "zh", "ko", "ja"
  timeout = "15s"
  max_in_flight = 4            # Concurrent recognition requests
  max_failures = 3             # Consecutive failures before the session errors

# Translation
[translation]
  provider = "openai"          # "openai", "groq", "libretranslate" or "scripted"
  model = "gpt-4o-mini"
  base_url = ""                # Required for libretranslate
  target = "zh"                # Initial target; auto mode switches it on detection
  timeout = "10s"

# Realtime server (optional). When url is set the server transcribes and translates.
[transport]
  url = ""
  api_key = ""
  handshake_timeout = "10s"
  write_timeout = "5s"

[session]
  stop_timeout = "10s"         # Time allowed to flush pending audio on stop

# HTTP API and live feed
[server]
  enabled = true
  addr = "127.0.0.1:7788"

# Desktop Notification Configuration
[notifications]
  enabled = true
  type = "desktop"             # "desktop", "log", "none"

[log]
  level = "info"

# API keys (environment variables OPENAI_API_KEY / GROQ_API_KEY also work)
# [providers.openai]
#   api_key = "sk-..."
`
