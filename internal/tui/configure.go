package tui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/muesli/termenv"

	"github.com/leonardotrapani/interpret/internal/config"
)

// ConfigureResult holds the configuration result from the TUI
type ConfigureResult struct {
	Config    *config.Config
	Cancelled bool
}

// ConfigSection represents a configuration section
type ConfigSection string

const (
	SectionProviders     ConfigSection = "providers"
	SectionCapture       ConfigSection = "capture"
	SectionTranscription ConfigSection = "transcription"
	SectionTranslation   ConfigSection = "translation"
	SectionKeywords      ConfigSection = "keywords"
	SectionNotifications ConfigSection = "notifications"
	SectionServer        ConfigSection = "server"
	SectionSaveExit      ConfigSection = "save_exit"
	SectionDiscardExit   ConfigSection = "discard_exit"
)

// Run starts the configuration menu on a copy of cfg.
func Run(existing *config.Config) (*ConfigureResult, error) {
	cfg := config.DefaultConfig()
	if existing != nil {
		c := *existing
		c.Providers = make(map[string]config.ProviderConfig, len(existing.Providers))
		for k, v := range existing.Providers {
			c.Providers[k] = v
		}
		cfg = &c
	}

	for {
		clearScreen()
		fmt.Println(Logo())
		fmt.Println()

		section, err := selectSection(cfg)
		if err != nil {
			return &ConfigureResult{Cancelled: true}, nil
		}

		switch section {
		case SectionSaveExit:
			confirmed, err := showSummary(cfg)
			if err != nil {
				return &ConfigureResult{Cancelled: true}, nil
			}
			if confirmed {
				return &ConfigureResult{Config: cfg}, nil
			}

		case SectionDiscardExit:
			return &ConfigureResult{Cancelled: true}, nil

		case SectionProviders:
			_ = editProviders(cfg)
		case SectionCapture:
			_ = editCapture(cfg)
		case SectionTranscription:
			_ = editTranscription(cfg)
		case SectionTranslation:
			_ = editTranslation(cfg)
		case SectionKeywords:
			if keywords, err := inputKeywords(cfg.Keywords); err == nil {
				cfg.Keywords = keywords
			}
		case SectionNotifications:
			_ = editNotifications(cfg)
		case SectionServer:
			_ = editServer(cfg)
		}
	}
}

func selectSection(cfg *config.Config) (ConfigSection, error) {
	options := []huh.Option[ConfigSection]{
		huh.NewOption(formatProvidersLabel(cfg), SectionProviders),
		huh.NewOption(formatCaptureLabel(cfg), SectionCapture),
		huh.NewOption(formatTranscriptionLabel(cfg), SectionTranscription),
		huh.NewOption(formatTranslationLabel(cfg), SectionTranslation),
		huh.NewOption(formatKeywordsLabel(cfg), SectionKeywords),
		huh.NewOption(formatNotificationsLabel(cfg), SectionNotifications),
		huh.NewOption(formatServerLabel(cfg), SectionServer),
		huh.NewOption("Save & Exit", SectionSaveExit),
		huh.NewOption("Discard & Exit", SectionDiscardExit),
	}

	var selected ConfigSection
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[ConfigSection]().
				Title("Configuration Menu").
				Description("↑/↓ navigate • enter select • esc cancel").
				Options(options...).
				Value(&selected),
		),
	).WithTheme(formTheme())

	if err := form.Run(); err != nil {
		return "", err
	}
	return selected, nil
}

func showSummary(cfg *config.Config) (bool, error) {
	fmt.Println()
	fmt.Println(StyleHeader.Render("Configuration Summary"))
	fmt.Println()

	fmt.Print(summary(cfg))
	if err := cfg.Validate(); err != nil {
		fmt.Println()
		fmt.Println(StyleWarning.Render("Warning: " + err.Error()))
	}
	fmt.Println()

	var confirmed bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save this configuration?").
				Affirmative("Save").
				Negative("Cancel").
				Value(&confirmed),
		),
	).WithTheme(formTheme())

	if err := form.Run(); err != nil {
		return false, err
	}
	return confirmed, nil
}

// summary renders the settings a user is about to save.
func summary(cfg *config.Config) string {
	var b strings.Builder
	line := func(label, value string) {
		fmt.Fprintf(&b, "  %s %s\n", StyleLabel.Render(label), value)
	}

	providers := getConfiguredProviders(cfg)
	if len(providers) == 0 {
		line("Providers:", "none")
	} else {
		masked := make([]string, len(providers))
		for i, p := range providers {
			masked[i] = fmt.Sprintf("%s %s", p, maskAPIKey(cfg.Providers[p].APIKey))
		}
		line("Providers:", strings.Join(masked, ", "))
	}
	device := cfg.Capture.Device
	if device == "" {
		device = "default"
	}
	line("Device:", device)
	line("Transcription:", fmt.Sprintf("%s (%s)", cfg.Transcription.Provider, cfg.Transcription.Model))
	line("Source:", languageLabel(cfg.Transcription.Source))
	line("Translation:", fmt.Sprintf("%s (%s)", cfg.Translation.Provider, cfg.Translation.Model))
	line("Target:", languageLabel(cfg.Translation.Target))
	if len(cfg.Keywords) > 0 {
		line("Keywords:", strings.Join(cfg.Keywords, ", "))
	}
	if cfg.Transport.URL != "" {
		line("Realtime:", cfg.Transport.URL)
	}
	line("HTTP API:", serverState(cfg))
	if cfg.Notifications.Enabled {
		line("Notifications:", cfg.Notifications.Type)
	} else {
		line("Notifications:", "disabled")
	}
	return b.String()
}

// clearScreen clears the terminal screen
func clearScreen() {
	output := termenv.NewOutput(os.Stdout)
	output.ClearScreen()
}
