package translator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestScriptedTranslator(t *testing.T) {
	tests := []struct {
		name string
		text string
		src  string
		dst  string
		want string
	}{
		{name: "dictionary hit", text: "Hello", src: "en", dst: "zh", want: "你好"},
		{name: "reverse direction", text: "你好，你能听到我说话吗？", src: "zh", dst: "en", want: "Hello, can you hear me?"},
		{name: "unknown source", text: "こんにちは、聞こえますか？", src: "", dst: "en", want: "Hello, can you hear me?"},
		{name: "fallback tag", text: "Quarterly numbers", src: "en", dst: "zh", want: "[zh] Quarterly numbers"},
		{name: "same language", text: "Hello", src: "en", dst: "en", want: "Hello"},
	}

	tr := NewScriptedTranslator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tr.Translate(context.Background(), tt.text, tt.src, tt.dst)
			if err != nil {
				t.Fatalf("Translate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Translate() = %q, want %q", got, tt.want)
			}
		})
	}
	if tr.Calls() != len(tests) {
		t.Errorf("Calls() = %d, want %d", tr.Calls(), len(tests))
	}
}

func TestScriptedTranslator_FailNext(t *testing.T) {
	tr := NewScriptedTranslator()
	tr.FailNext("Hello", 2)

	for i := 0; i < 2; i++ {
		_, err := tr.Translate(context.Background(), "Hello", "en", "zh")
		if !IsTranslationError(err) {
			t.Fatalf("call %d error = %v, want TranslationError", i+1, err)
		}
	}
	got, err := tr.Translate(context.Background(), "Hello", "en", "zh")
	if err != nil || got != "你好" {
		t.Errorf("third call = %q, %v", got, err)
	}
}

func TestScriptedTranslator_Cancelled(t *testing.T) {
	tr := NewScriptedTranslator()
	tr.Delay = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tr.Translate(ctx, "Hello", "en", "zh")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestLibreTranslator(t *testing.T) {
	var got libreRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/translate" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		if got.Q == "boom" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(libreResponse{Error: "bad language pair"})
			return
		}
		json.NewEncoder(w).Encode(libreResponse{TranslatedText: " 你好 "})
	}))
	defer srv.Close()

	tr := NewLibreTranslator(Config{BaseURL: srv.URL + "/", APIKey: "k"})

	out, err := tr.Translate(context.Background(), "Hello", "", "zh")
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if out != "你好" {
		t.Errorf("Translate() = %q, want 你好", out)
	}
	if got.Source != "auto" || got.Target != "zh" || got.Format != "text" || got.APIKey != "k" {
		t.Errorf("request = %+v", got)
	}

	_, err = tr.Translate(context.Background(), "boom", "en", "zh")
	if !IsTranslationError(err) || !strings.Contains(err.Error(), "bad language pair") {
		t.Errorf("error = %v, want TranslationError with server message", err)
	}

	if out, err := tr.Translate(context.Background(), "  ", "en", "zh"); out != "" || err != nil {
		t.Errorf("blank input = %q, %v", out, err)
	}
}

func TestOpenAITranslator(t *testing.T) {
	var system string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) > 0 {
			system = req.Messages[0].Content
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"你好\n"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	tr := NewOpenAITranslator(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	out, err := tr.Translate(context.Background(), "Hello", "en", "zh")
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if out != "你好" {
		t.Errorf("Translate() = %q, want 你好", out)
	}
	if !strings.Contains(system, "English") || !strings.Contains(system, "Chinese") {
		t.Errorf("system prompt = %q", system)
	}
}

func TestOpenAITranslator_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr := NewOpenAITranslator(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	_, err := tr.Translate(context.Background(), "Hello", "en", "zh")
	var te *TranslationError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want *TranslationError", err)
	}
	if te.Src != "en" || te.Dst != "zh" {
		t.Errorf("TranslationError = %+v", te)
	}
}

func TestBuildSystemPrompt(t *testing.T) {
	prompt := BuildSystemPrompt("", "en", []string{"Kubernetes", "Q3"})
	if !strings.Contains(prompt, "the detected language") {
		t.Error("prompt should mention detected language for unknown source")
	}
	if !strings.Contains(prompt, "into English") {
		t.Error("prompt should name the target language")
	}
	if !strings.Contains(prompt, "Kubernetes, Q3") {
		t.Error("prompt should list keywords")
	}
}

func TestNewTranslator(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GROQ_API_KEY", "")

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "openai", cfg: Config{Provider: "openai", APIKey: "sk"}},
		{name: "openai without key", cfg: Config{Provider: "openai"}, wantErr: true},
		{name: "groq", cfg: Config{Provider: "groq", APIKey: "gsk"}},
		{name: "libretranslate", cfg: Config{Provider: "libretranslate", BaseURL: "http://localhost:5000"}},
		{name: "libretranslate without url", cfg: Config{Provider: "libretranslate"}, wantErr: true},
		{name: "scripted", cfg: Config{Provider: "scripted"}},
		{name: "unknown", cfg: Config{Provider: "babelfish"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := NewTranslator(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewTranslator() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && tr == nil {
				t.Error("NewTranslator() returned nil")
			}
		})
	}
}
