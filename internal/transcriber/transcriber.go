package transcriber

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/leonardotrapani/interpret/internal/capture"
)

// Recognition is the outcome of one recognition round-trip.
type Recognition struct {
	Text       string
	Segments   []string // set when the backend splits the chunk into several utterances
	Confidence float64
	Language   string // detected language code, empty when unknown
	IsFinal    bool
}

// Texts returns the non-empty utterances carried by r.
func (r Recognition) Texts() []string {
	parts := r.Segments
	if len(parts) == 0 {
		parts = []string{r.Text}
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Recognizer transcribes one chunk per call. lang is empty for auto-detect.
type Recognizer interface {
	Transcribe(ctx context.Context, chunk capture.Chunk, lang string) (Recognition, error)
}

// UpdateFunc receives streaming results in order. A non-nil error that is not
// a *RecognitionError ends the session.
type UpdateFunc func(Recognition, error)

// StreamRecognizer consumes the chunk stream itself and pushes results back
// over a reliable ordered channel. The returned stop func blocks until no
// further updates will be delivered.
type StreamRecognizer interface {
	Stream(ctx context.Context, chunks <-chan capture.Chunk, lang string, onUpdate UpdateFunc) (func(), error)
}

type Config struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
	Timeout  time.Duration

	// PCM layout of incoming chunks, signed 16-bit little endian.
	SampleRate int
	Channels   int

	MaxInFlight      int
	FailureThreshold int
}

func DefaultConfig() Config {
	return Config{
		Provider:         "openai",
		Model:            "whisper-1",
		Timeout:          15 * time.Second,
		SampleRate:       16000,
		Channels:         1,
		MaxInFlight:      4,
		FailureThreshold: 3,
	}
}

const groqBaseURL = "https://api.groq.com/openai/v1"

// NewRecognizer builds the chunk recognizer named by config.Provider.
func NewRecognizer(config Config) (Recognizer, error) {
	switch config.Provider {
	case "openai":
		if config.APIKey == "" {
			config.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		if config.APIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		return NewOpenAIRecognizer(config), nil
	case "groq":
		if config.APIKey == "" {
			config.APIKey = os.Getenv("GROQ_API_KEY")
		}
		if config.APIKey == "" {
			return nil, fmt.Errorf("Groq API key required")
		}
		if config.BaseURL == "" {
			config.BaseURL = groqBaseURL
		}
		if config.Model == "" || config.Model == DefaultConfig().Model {
			config.Model = "whisper-large-v3-turbo"
		}
		return NewOpenAIRecognizer(config), nil
	case "scripted":
		return NewScriptedRecognizer(), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", config.Provider)
	}
}
