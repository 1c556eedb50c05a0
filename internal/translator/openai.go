package translator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"github.com/leonardotrapani/interpret/internal/logging"
)

// OpenAITranslator translates through a chat completion model. It also
// serves OpenAI-compatible endpoints such as Groq via Config.BaseURL.
type OpenAITranslator struct {
	client *openai.Client
	config Config
	logger zerolog.Logger
}

func NewOpenAITranslator(cfg Config) *OpenAITranslator {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultConfig().Model
	}
	return &OpenAITranslator{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
		logger: logging.For("openai-translator"),
	}
}

func (t *OpenAITranslator) Translate(ctx context.Context, text, src, dst string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	if t.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.Timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model: t.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: BuildSystemPrompt(src, dst, t.config.Keywords)},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0.2,
	}

	start := time.Now()
	resp, err := t.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		t.logger.Debug().Err(err).Dur("took", duration).Msg("API call failed")
		return "", NewTranslationError(src, dst, fmt.Errorf("openai chat completion: %w", err))
	}
	if len(resp.Choices) == 0 {
		return "", NewTranslationError(src, dst, fmt.Errorf("openai chat completion: no response choices"))
	}

	result := strings.TrimSpace(resp.Choices[0].Message.Content)
	t.logger.Debug().Dur("took", duration).Str("dst", dst).Msg("segment translated")
	return result, nil
}
