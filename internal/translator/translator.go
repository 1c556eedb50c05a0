package translator

import (
	"context"
	"fmt"
	"os"
	"time"
)

// Translator renders text from src into dst. src may be empty when the
// source language is unknown.
type Translator interface {
	Translate(ctx context.Context, text, src, dst string) (string, error)
}

type Config struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
	Timeout  time.Duration
	// Keywords are meeting terms the model should keep spelled as given.
	Keywords []string
}

func DefaultConfig() Config {
	return Config{
		Provider: "openai",
		Model:    "gpt-4o-mini",
		Timeout:  10 * time.Second,
	}
}

const groqBaseURL = "https://api.groq.com/openai/v1"

// NewTranslator builds the translator named by cfg.Provider.
func NewTranslator(cfg Config) (Translator, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		return NewOpenAITranslator(cfg), nil
	case "groq":
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("GROQ_API_KEY")
		}
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("Groq API key required")
		}
		if cfg.BaseURL == "" {
			cfg.BaseURL = groqBaseURL
		}
		if cfg.Model == "" || cfg.Model == DefaultConfig().Model {
			cfg.Model = "llama-3.3-70b-versatile"
		}
		return NewOpenAITranslator(cfg), nil
	case "libretranslate":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("LibreTranslate base URL required")
		}
		return NewLibreTranslator(cfg), nil
	case "scripted":
		return NewScriptedTranslator(), nil
	default:
		return nil, fmt.Errorf("unsupported translation provider: %s", cfg.Provider)
	}
}
