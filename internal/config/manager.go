package config

import (
	"context"
	"errors"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/leonardotrapani/interpret/internal/logging"
)

type Manager struct {
	path   string
	logger zerolog.Logger

	mu       sync.RWMutex
	config   *Config
	onReload []func(*Config)

	watcher *fsnotify.Watcher
	wg      sync.WaitGroup
}

// NewManager loads the config file at path, writing the defaults first when
// it does not exist yet. An empty path resolves through GetConfigPath.
func NewManager(path string) (*Manager, error) {
	logger := logging.For("config")

	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	config, err := LoadFile(path)
	if errors.Is(err, ErrConfigNotFound) {
		logger.Info().Str("path", path).Msg("no configuration found, writing defaults")
		if err := Save(path, DefaultConfig()); err != nil {
			return nil, err
		}
		config, err = LoadFile(path)
	}
	if err != nil {
		logger.Error().Err(err).Msg("failed to load initial configuration")
		return nil, err
	}

	if err := config.Validate(); err != nil {
		logger.Warn().Err(err).Msg("configuration validation warning")
	}

	return &Manager{
		path:   path,
		logger: logger,
		config: config,
	}, nil
}

func (m *Manager) Path() string { return m.path }

func (m *Manager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Return a copy to prevent external modification
	configCopy := *m.config
	return &configCopy
}

// OnReload registers fn to run after every successful reload.
func (m *Manager) OnReload(fn func(*Config)) {
	m.mu.Lock()
	m.onReload = append(m.onReload, fn)
	m.mu.Unlock()
}

func (m *Manager) StartWatching(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// watch the directory so editors that replace the file are seen
	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		watcher.Close()
		return err
	}
	m.watcher = watcher

	m.wg.Add(1)
	go m.watchLoop(ctx)

	m.logger.Info().Str("path", m.path).Msg("watching configuration for changes")
	return nil
}

func (m *Manager) Stop() {
	if m.watcher != nil {
		m.watcher.Close()
	}
	m.wg.Wait()
}

func (m *Manager) watchLoop(ctx context.Context) {
	defer m.wg.Done()
	configFileName := filepath.Base(m.path)

	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != configFileName {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				m.logger.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("config file changed")
				m.Reload()
			}

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn().Err(err).Msg("config watcher error")

		case <-ctx.Done():
			return
		}
	}
}

// Reload re-reads the file. An invalid file leaves the current config in
// place.
func (m *Manager) Reload() error {
	newConfig, err := LoadFile(m.path)
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to reload config")
		return err
	}
	if err := newConfig.Validate(); err != nil {
		m.logger.Error().Err(err).Msg("invalid config after reload")
		return err
	}

	m.mu.Lock()
	m.config = newConfig
	hooks := append([]func(*Config){}, m.onReload...)
	m.mu.Unlock()

	for _, fn := range hooks {
		fn(newConfig)
	}
	m.logger.Info().Msg("configuration reloaded")
	return nil
}

// Update validates and persists config, then applies it.
func (m *Manager) Update(config *Config) error {
	if err := config.Validate(); err != nil {
		return err
	}
	if err := Save(m.path, config); err != nil {
		return err
	}
	return m.Reload()
}
