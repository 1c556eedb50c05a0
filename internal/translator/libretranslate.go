package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// LibreTranslator talks to a LibreTranslate compatible /translate endpoint.
type LibreTranslator struct {
	base   string
	apiKey string
	http   *http.Client
}

func NewLibreTranslator(cfg Config) *LibreTranslator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	return &LibreTranslator{
		base:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey: cfg.APIKey,
		http:   &http.Client{Timeout: timeout},
	}
}

type libreRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type libreResponse struct {
	TranslatedText string `json:"translatedText"`
	Error          string `json:"error"`
}

func (c *LibreTranslator) Translate(ctx context.Context, text, src, dst string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	b, err := json.Marshal(libreRequest{
		Q:      text,
		Source: orAuto(strings.TrimSpace(src)),
		Target: dst,
		Format: "text",
		APIKey: c.apiKey,
	})
	if err != nil {
		return "", NewTranslationError(src, dst, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/translate", bytes.NewReader(b))
	if err != nil {
		return "", NewTranslationError(src, dst, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", NewTranslationError(src, dst, err)
	}
	defer resp.Body.Close()

	var lr libreResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&lr)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if lr.Error != "" {
			return "", NewTranslationError(src, dst, fmt.Errorf("http %d: %s", resp.StatusCode, lr.Error))
		}
		return "", NewTranslationError(src, dst, fmt.Errorf("http %d", resp.StatusCode))
	}
	if decodeErr != nil {
		return "", NewTranslationError(src, dst, fmt.Errorf("decode response: %w", decodeErr))
	}
	return strings.TrimSpace(lr.TranslatedText), nil
}
