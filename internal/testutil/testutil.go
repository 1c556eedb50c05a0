package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/leonardotrapani/interpret/internal/capture"
	"github.com/leonardotrapani/interpret/internal/config"
	"github.com/leonardotrapani/interpret/internal/session"
	"github.com/leonardotrapani/interpret/internal/transcriber"
	"github.com/leonardotrapani/interpret/internal/translator"
)

// TestConfig returns a valid configuration that needs no network, no audio
// hardware and no desktop.
func TestConfig() *config.Config {
	c := config.DefaultConfig()
	c.Capture.ChunkInterval = 10 * time.Millisecond
	c.Transcription.Provider = "scripted"
	c.Translation.Provider = "scripted"
	c.Session.StopTimeout = 2 * time.Second
	c.Server.Enabled = false
	c.Notifications.Enabled = false
	return c
}

// SaveConfig writes cfg into dir and returns the path.
func SaveConfig(t *testing.T, dir string, cfg *config.Config) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	if err := config.Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	return path
}

// ScriptedBuilder binds every session to a fresh in-memory device and the
// scripted providers. Each new device is also sent on opened, when set, so
// tests can feed audio.
func ScriptedBuilder(opened chan<- *capture.MemoryDevice) session.Builder {
	return func(session.Config) (session.Capabilities, error) {
		return session.Capabilities{
			Opener: capture.OpenerFunc(func(ctx context.Context, device string) (capture.Device, error) {
				dev := capture.NewMemoryDevice(4)
				if opened != nil {
					select {
					case opened <- dev:
					default:
					}
				}
				return dev, nil
			}),
			Recognizer: transcriber.NewScriptedRecognizer(),
			Translator: translator.NewScriptedTranslator(),
		}, nil
	}
}

// WaitForCondition polls condition until it holds or timeout expires.
func WaitForCondition(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition was not met within timeout")
}
