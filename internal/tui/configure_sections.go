package tui

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/leonardotrapani/interpret/internal/config"
)

// editProviders loops over the provider list until the user is done.
func editProviders(cfg *config.Config) error {
	for {
		var options []huh.Option[string]
		for _, name := range AllProviders {
			label := getProviderDisplayName(name)
			if pc, ok := cfg.Providers[name]; ok && pc.APIKey != "" {
				label += " - " + maskAPIKey(pc.APIKey)
			}
			options = append(options, huh.NewOption(label, name))
		}
		options = append(options, huh.NewOption("Done", "back"))

		var selected string
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[string]().
					Title("Provider Settings").
					Description("Select a provider to configure its API key").
					Options(options...).
					Value(&selected),
			),
		).WithTheme(formTheme())

		if err := form.Run(); err != nil {
			return err
		}
		if selected == "back" {
			return nil
		}

		var apiKey string
		keyForm := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title(getProviderDisplayName(selected) + " API Key").
					Description("Leave empty to keep the current key").
					EchoMode(huh.EchoModePassword).
					Value(&apiKey),
			),
		).WithTheme(formTheme())
		if err := keyForm.Run(); err != nil {
			continue
		}
		if apiKey = strings.TrimSpace(apiKey); apiKey != "" {
			if cfg.Providers == nil {
				cfg.Providers = make(map[string]config.ProviderConfig)
			}
			cfg.Providers[selected] = config.ProviderConfig{APIKey: apiKey}
		}
	}
}

func editCapture(cfg *config.Config) error {
	device := cfg.Capture.Device
	interval := cfg.Capture.ChunkInterval.String()
	buffer := strconv.Itoa(cfg.Capture.BufferChunks)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Capture Device").
				Description("PipeWire node name (empty = default microphone)").
				Value(&device),
			huh.NewInput().
				Title("Chunk Interval").
				Description("Audio slice sent for recognition, e.g. 1s or 750ms").
				Value(&interval).
				Validate(validateDuration),
			huh.NewInput().
				Title("Buffered Chunks").
				Description("Chunks queued before the oldest is dropped").
				Value(&buffer).
				Validate(validatePositiveInt),
		),
	).WithTheme(formTheme())

	if err := form.Run(); err != nil {
		return err
	}

	return applyCapture(cfg, device, interval, buffer)
}

// applyCapture stores the capture form values. cfg is left untouched when
// any of them does not parse.
func applyCapture(cfg *config.Config, device, interval, buffer string) error {
	d, err := time.ParseDuration(strings.TrimSpace(interval))
	if err != nil {
		return fmt.Errorf("invalid chunk interval: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("chunk interval must be positive, got %s", d)
	}
	n, err := strconv.Atoi(strings.TrimSpace(buffer))
	if err != nil {
		return fmt.Errorf("invalid buffered chunks: %w", err)
	}
	if n <= 0 {
		return fmt.Errorf("buffered chunks must be positive, got %d", n)
	}

	cfg.Capture.Device = strings.TrimSpace(device)
	cfg.Capture.ChunkInterval = d
	cfg.Capture.BufferChunks = n
	return nil
}

func editTranscription(cfg *config.Config) error {
	provider := cfg.Transcription.Provider
	model := cfg.Transcription.Model
	source := cfg.Transcription.Source

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Transcription Provider").
				Options(providerOptions(TranscriptionProviders, provider)...).
				Value(&provider),
			huh.NewInput().
				Title("Model").
				Description("e.g. whisper-1 (OpenAI) or whisper-large-v3-turbo (Groq)").
				Value(&model),
			huh.NewSelect[string]().
				Title("Source Language").
				Description("Auto-detect switches the translation target with the speaker").
				Options(languageOptions(source, true)...).
				Value(&source),
		),
	).WithTheme(formTheme())

	if err := form.Run(); err != nil {
		return err
	}

	cfg.Transcription.Provider = provider
	cfg.Transcription.Model = strings.TrimSpace(model)
	cfg.Transcription.Source = source
	return nil
}

func editTranslation(cfg *config.Config) error {
	provider := cfg.Translation.Provider
	model := cfg.Translation.Model
	baseURL := cfg.Translation.BaseURL
	target := cfg.Translation.Target

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Translation Provider").
				Options(providerOptions(TranslationProviders, provider)...).
				Value(&provider),
			huh.NewInput().
				Title("Model").
				Description("Chat model for OpenAI or Groq, ignored by LibreTranslate").
				Value(&model),
			huh.NewInput().
				Title("Base URL").
				Description("Required for LibreTranslate, optional override otherwise").
				Value(&baseURL).
				Validate(validateOptionalURL),
			huh.NewSelect[string]().
				Title("Target Language").
				Description("Initial target; auto-detect may switch it").
				Options(languageOptions(target, false)...).
				Value(&target),
		),
	).WithTheme(formTheme())

	if err := form.Run(); err != nil {
		return err
	}

	cfg.Translation.Provider = provider
	cfg.Translation.Model = strings.TrimSpace(model)
	cfg.Translation.BaseURL = strings.TrimSpace(baseURL)
	cfg.Translation.Target = target
	return nil
}

func inputKeywords(current []string) ([]string, error) {
	text := strings.Join(current, ", ")
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Title("Keywords").
				Description("Names and terms the translator should keep as spelled, comma separated").
				Value(&text),
		),
	).WithTheme(formTheme())

	if err := form.Run(); err != nil {
		return nil, err
	}
	return parseKeywords(text), nil
}

func editNotifications(cfg *config.Config) error {
	enabled := cfg.Notifications.Enabled
	notifType := cfg.Notifications.Type
	if notifType == "" {
		notifType = "desktop"
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable notifications?").
				Description("Announce session start, stop and errors").
				Value(&enabled),
			huh.NewSelect[string]().
				Title("Notification Type").
				Options(
					huh.NewOption("Desktop notifications (notify-send)", "desktop"),
					huh.NewOption("Log to console only", "log"),
					huh.NewOption("None (silent)", "none"),
				).
				Value(&notifType),
		),
	).WithTheme(formTheme())

	if err := form.Run(); err != nil {
		return err
	}

	cfg.Notifications.Enabled = enabled
	cfg.Notifications.Type = notifType
	return nil
}

func editServer(cfg *config.Config) error {
	enabled := cfg.Server.Enabled
	addr := cfg.Server.Addr
	realtime := cfg.Transport.URL

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable HTTP API?").
				Description("Session control, live websocket feed and /metrics").
				Value(&enabled),
			huh.NewInput().
				Title("Listen Address").
				Value(&addr),
			huh.NewInput().
				Title("Realtime Server URL").
				Description("ws:// or wss:// endpoint that transcribes and translates (empty = use providers)").
				Value(&realtime).
				Validate(validateOptionalWSURL),
		),
	).WithTheme(formTheme())

	if err := form.Run(); err != nil {
		return err
	}

	cfg.Server.Enabled = enabled
	cfg.Server.Addr = strings.TrimSpace(addr)
	cfg.Transport.URL = strings.TrimSpace(realtime)
	return nil
}

func validateDuration(s string) error {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || d <= 0 {
		return fmt.Errorf("enter a positive duration like 1s")
	}
	return nil
}

func validatePositiveInt(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return fmt.Errorf("enter a positive number")
	}
	return nil
}

func validateOptionalURL(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("enter an http(s) URL")
	}
	return nil
}

func validateOptionalWSURL(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return fmt.Errorf("enter a ws:// or wss:// URL")
	}
	return nil
}
