package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/leonardotrapani/interpret/internal/logging"
)

var ErrConfigNotFound = errors.New("config not found")

// GetConfigPath returns the config file location. INTERPRET_CONFIG overrides
// the default ~/.config/interpret/config.toml.
func GetConfigPath() (string, error) {
	if p := os.Getenv("INTERPRET_CONFIG"); p != "" {
		return p, nil
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}

	dir := filepath.Join(configDir, "interpret")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return filepath.Join(dir, "config.toml"), nil
}

func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(configPath)
}

// LoadFile decodes path as YAML when it ends in .yaml or .yml, TOML
// otherwise. Unset keys keep their defaults.
func LoadFile(path string) (*Config, error) {
	logger := logging.For("config")

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: run interpret configure", ErrConfigNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	logger.Debug().Str("path", path).Msg("loading configuration")
	config := DefaultConfig()
	if isYAML(path) {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	} else {
		meta, err := toml.Decode(string(data), config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		for _, key := range meta.Undecoded() {
			logger.Warn().Str("key", key.String()).Msg("unknown config key ignored")
		}
	}

	if config.Providers == nil {
		config.Providers = make(map[string]ProviderConfig)
	}
	config.Transcription.Source = strings.ToLower(strings.TrimSpace(config.Transcription.Source))
	if config.Transcription.Source == "" {
		config.Transcription.Source = "auto"
	}

	logger.Info().Str("path", path).Msg("configuration loaded")
	return config, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
