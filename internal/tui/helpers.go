package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/leonardotrapani/interpret/internal/config"
	"github.com/leonardotrapani/interpret/internal/language"
)

// AllProviders lists the services that take an API key.
var AllProviders = []string{"openai", "groq", "libretranslate"}

var TranscriptionProviders = []string{"openai", "groq", "scripted"}

var TranslationProviders = []string{"openai", "groq", "libretranslate", "scripted"}

// providerDisplayNames maps provider IDs to human-readable names.
var providerDisplayNames = map[string]string{
	"openai":         "OpenAI",
	"groq":           "Groq",
	"libretranslate": "LibreTranslate",
	"scripted":       "Scripted (offline demo)",
}

func getProviderDisplayName(providerName string) string {
	if name, ok := providerDisplayNames[providerName]; ok {
		return name
	}
	return providerName
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:7] + "..." + key[len(key)-4:]
}

func getConfiguredProviders(cfg *config.Config) []string {
	providers := make([]string, 0, len(cfg.Providers))
	for name, pc := range cfg.Providers {
		if pc.APIKey != "" {
			providers = append(providers, name)
		}
	}
	sort.Strings(providers)
	return providers
}

// parseKeywords splits comma or newline separated terms, dropping blanks
// and duplicates.
func parseKeywords(input string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range strings.FieldsFunc(input, func(r rune) bool { return r == ',' || r == '\n' }) {
		f = strings.TrimSpace(f)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

func languageLabel(code string) string {
	if code == "" || code == language.Auto.Code {
		return "Auto-detect"
	}
	lang := language.FromCode(code)
	if lang.NativeName != "" && lang.NativeName != lang.Name {
		return fmt.Sprintf("%s (%s)", lang.Name, lang.NativeName)
	}
	return lang.Name
}

// languageOptions lists the meeting languages, with auto-detect first when
// withAuto is set.
func languageOptions(current string, withAuto bool) []huh.Option[string] {
	var options []huh.Option[string]
	if withAuto {
		label := "Auto-detect (switch target on detection)"
		if current == language.Auto.Code {
			label += " (current)"
		}
		options = append(options, huh.NewOption(label, language.Auto.Code))
	}
	for _, lang := range language.List() {
		label := languageLabel(lang.Code)
		if lang.Code == current {
			label += " (current)"
		}
		options = append(options, huh.NewOption(label, lang.Code))
	}
	return options
}

func providerOptions(names []string, current string) []huh.Option[string] {
	options := make([]huh.Option[string], 0, len(names))
	for _, name := range names {
		label := getProviderDisplayName(name)
		if name == current {
			label += " (current)"
		}
		options = append(options, huh.NewOption(label, name))
	}
	return options
}

func formatProvidersLabel(cfg *config.Config) string {
	configured := getConfiguredProviders(cfg)
	if len(configured) == 0 {
		return "Providers (none configured)"
	}
	return fmt.Sprintf("Providers (%s)", strings.Join(configured, ", "))
}

func formatTranscriptionLabel(cfg *config.Config) string {
	return fmt.Sprintf("Transcription (%s, %s)", getProviderDisplayName(cfg.Transcription.Provider), languageLabel(cfg.Transcription.Source))
}

func formatTranslationLabel(cfg *config.Config) string {
	return fmt.Sprintf("Translation (%s, to %s)", getProviderDisplayName(cfg.Translation.Provider), languageLabel(cfg.Translation.Target))
}

func formatCaptureLabel(cfg *config.Config) string {
	device := cfg.Capture.Device
	if device == "" {
		device = "default microphone"
	}
	return fmt.Sprintf("Capture (%s, %s chunks)", device, cfg.Capture.ChunkInterval)
}

func formatKeywordsLabel(cfg *config.Config) string {
	if len(cfg.Keywords) == 0 {
		return "Keywords"
	}
	return fmt.Sprintf("Keywords (%d)", len(cfg.Keywords))
}

func formatNotificationsLabel(cfg *config.Config) string {
	if !cfg.Notifications.Enabled {
		return "Notifications (disabled)"
	}
	return fmt.Sprintf("Notifications (%s)", cfg.Notifications.Type)
}

func formatServerLabel(cfg *config.Config) string {
	if cfg.Transport.URL != "" {
		return fmt.Sprintf("Server (API %s, realtime %s)", serverState(cfg), cfg.Transport.URL)
	}
	return fmt.Sprintf("Server (API %s)", serverState(cfg))
}

func serverState(cfg *config.Config) string {
	if !cfg.Server.Enabled {
		return "off"
	}
	return cfg.Server.Addr
}
