package transcriber

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"github.com/leonardotrapani/interpret/internal/capture"
	"github.com/leonardotrapani/interpret/internal/language"
	"github.com/leonardotrapani/interpret/internal/logging"
)

// OpenAIRecognizer sends each chunk to the Whisper transcription endpoint.
type OpenAIRecognizer struct {
	client *openai.Client
	config Config
	logger zerolog.Logger
}

func NewOpenAIRecognizer(config Config) *OpenAIRecognizer {
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	if config.Model == "" {
		config.Model = DefaultConfig().Model
	}
	if config.SampleRate <= 0 {
		config.SampleRate = DefaultConfig().SampleRate
	}
	if config.Channels <= 0 {
		config.Channels = DefaultConfig().Channels
	}
	return &OpenAIRecognizer{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
		logger: logging.For("openai-recognizer"),
	}
}

func (r *OpenAIRecognizer) Transcribe(ctx context.Context, chunk capture.Chunk, lang string) (Recognition, error) {
	if len(chunk.Data) == 0 {
		return Recognition{IsFinal: true}, nil
	}

	wavData, err := encodeWAV(chunk.Data, r.config.SampleRate, r.config.Channels)
	if err != nil {
		return Recognition{}, NewRecognitionError(chunk.Seq, fmt.Errorf("convert to WAV: %w", err))
	}

	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	req := openai.AudioRequest{
		Model:    r.config.Model,
		Reader:   bytes.NewReader(wavData),
		FilePath: "audio.wav",
		Language: lang,
		Format:   openai.AudioResponseFormatVerboseJSON,
	}

	start := time.Now()
	resp, err := r.client.CreateTranscription(ctx, req)
	duration := time.Since(start)
	if err != nil {
		r.logger.Debug().Err(err).Uint64("chunk", chunk.Seq).Dur("took", duration).Msg("API call failed")
		return Recognition{}, NewRecognitionError(chunk.Seq, fmt.Errorf("openai transcription: %w", err))
	}

	rec := Recognition{
		Text:       resp.Text,
		Language:   language.Normalize(resp.Language),
		Confidence: 1,
		IsFinal:    true,
	}
	if lang != "" && rec.Language == "" {
		rec.Language = lang
	}
	if n := len(resp.Segments); n > 0 {
		var sum float64
		for _, s := range resp.Segments {
			sum += s.AvgLogprob
		}
		rec.Confidence = math.Exp(sum / float64(n))
	}

	r.logger.Debug().
		Uint64("chunk", chunk.Seq).
		Int("bytes", len(chunk.Data)).
		Dur("took", duration).
		Str("language", rec.Language).
		Msg("chunk transcribed")
	return rec, nil
}
