package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/leonardotrapani/interpret/internal/aggregator"
	"github.com/leonardotrapani/interpret/internal/capture"
	"github.com/leonardotrapani/interpret/internal/transcriber"
)

// fakeServer answers each stream-audio message with the events produced by
// reply. It closes the connection after closeAfter messages when non-zero.
func fakeServer(t *testing.T, closeAfter int, reply func(n int, msg StreamAudio) []Envelope) (*httptest.Server, func() []StreamAudio) {
	t.Helper()
	var mu sync.Mutex
	var received []StreamAudio
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for n := 1; ; n++ {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var env Envelope
			json.Unmarshal(data, &env)
			var msg StreamAudio
			json.Unmarshal(env.Data, &msg)
			mu.Lock()
			received = append(received, msg)
			mu.Unlock()

			for _, out := range reply(n, msg) {
				b, _ := json.Marshal(out)
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					return
				}
			}
			if closeAfter > 0 && n >= closeAfter {
				return
			}
		}
	}))
	return srv, func() []StreamAudio {
		mu.Lock()
		defer mu.Unlock()
		return append([]StreamAudio(nil), received...)
	}
}

func envelope(t *testing.T, event string, payload any) Envelope {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	return Envelope{Event: event, Data: data}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

type update struct {
	rec transcriber.Recognition
	err error
}

func TestClient_TranscriptionsAndTranslationsPairInOrder(t *testing.T) {
	srv, received := fakeServer(t, 0, func(n int, msg StreamAudio) []Envelope {
		return []Envelope{
			envelope(t, EventTranscription, Transcription{Transcript: fmt.Sprintf("line %d", n), LanguageCode: "en-US"}),
			envelope(t, EventTranslation, Translation{TranslatedText: fmt.Sprintf("第%d行", n)}),
		}
	})
	defer srv.Close()

	translations := make(chan aggregator.TranslationResult, 4)
	client := NewClient(Config{URL: wsURL(srv)}, Hooks{
		Target:      func() string { return "zh" },
		Translation: func(r aggregator.TranslationResult) { translations <- r },
	})

	updates := make(chan update, 4)
	chunks := make(chan capture.Chunk, 2)
	chunks <- capture.Chunk{Seq: 1, Data: []byte{1, 2}}
	chunks <- capture.Chunk{Seq: 2, Data: []byte{3, 4}}

	stop, err := client.Stream(context.Background(), chunks, "", func(rec transcriber.Recognition, err error) {
		updates <- update{rec, err}
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	for i := 1; i <= 2; i++ {
		select {
		case u := <-updates:
			if u.err != nil {
				t.Fatalf("update %d error = %v", i, u.err)
			}
			if u.rec.Text != fmt.Sprintf("line %d", i) || u.rec.Language != "en" || !u.rec.IsFinal {
				t.Errorf("update %d = %+v", i, u.rec)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for update %d", i)
		}
		select {
		case r := <-translations:
			if r.Seq != uint64(i) || r.Text != fmt.Sprintf("第%d行", i) || r.Target != "zh" {
				t.Errorf("translation %d = %+v", i, r)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for translation %d", i)
		}
	}

	stop()
	stop()

	got := received()
	if len(got) != 2 {
		t.Fatalf("server received %d messages, want 2", len(got))
	}
	first := got[0]
	if first.SourceLanguage != "auto" || first.TargetLanguage != "zh" || first.Audio != "AQI=" {
		t.Errorf("first message = %+v", first)
	}
}

func TestClient_InterimDoesNotConsumeTranslation(t *testing.T) {
	interim := false
	srv, _ := fakeServer(t, 0, func(n int, msg StreamAudio) []Envelope {
		return []Envelope{
			envelope(t, EventTranscription, Transcription{Transcript: "Hel", IsFinal: &interim}),
			envelope(t, EventTranscription, Transcription{Transcript: "Hello"}),
			envelope(t, EventTranslation, Translation{TranslatedText: "你好"}),
		}
	})
	defer srv.Close()

	translations := make(chan aggregator.TranslationResult, 1)
	client := NewClient(Config{URL: wsURL(srv)}, Hooks{
		Translation: func(r aggregator.TranslationResult) { translations <- r },
	})

	chunks := make(chan capture.Chunk, 1)
	chunks <- capture.Chunk{Seq: 1}
	stop, err := client.Stream(context.Background(), chunks, "en", func(transcriber.Recognition, error) {})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	defer stop()

	select {
	case r := <-translations:
		if r.Seq != 1 || r.Text != "你好" {
			t.Errorf("translation = %+v, want seq 1", r)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for translation")
	}
}

func TestClient_ChannelLossIsTransportError(t *testing.T) {
	srv, _ := fakeServer(t, 1, func(n int, msg StreamAudio) []Envelope { return nil })
	defer srv.Close()

	updates := make(chan update, 1)
	client := NewClient(Config{URL: wsURL(srv)}, Hooks{})
	chunks := make(chan capture.Chunk, 1)
	chunks <- capture.Chunk{Seq: 1}

	stop, err := client.Stream(context.Background(), chunks, "en", func(rec transcriber.Recognition, err error) {
		updates <- update{rec, err}
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	defer stop()

	select {
	case u := <-updates:
		var te *TransportError
		if !errors.As(u.err, &te) {
			t.Fatalf("error = %v, want *TransportError", u.err)
		}
		if te.Op != "read" {
			t.Errorf("Op = %q, want read", te.Op)
		}
		if transcriber.IsRecognitionError(u.err) {
			t.Error("channel loss must not look like a recognition failure")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for transport error")
	}
}

func TestClient_ServerErrorIsRecognitionError(t *testing.T) {
	srv, _ := fakeServer(t, 0, func(n int, msg StreamAudio) []Envelope {
		return []Envelope{envelope(t, EventError, ErrorMessage{Message: "model overloaded"})}
	})
	defer srv.Close()

	updates := make(chan update, 1)
	client := NewClient(Config{URL: wsURL(srv)}, Hooks{})
	chunks := make(chan capture.Chunk, 1)
	chunks <- capture.Chunk{Seq: 1}

	stop, _ := client.Stream(context.Background(), chunks, "en", func(rec transcriber.Recognition, err error) {
		updates <- update{rec, err}
	})
	defer stop()

	select {
	case u := <-updates:
		if !transcriber.IsRecognitionError(u.err) || !strings.Contains(u.err.Error(), "model overloaded") {
			t.Errorf("error = %v", u.err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for error")
	}
}

func TestClient_DialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	client := NewClient(Config{URL: url, HandshakeTimeout: time.Second}, Hooks{})
	_, err := client.Stream(context.Background(), nil, "", func(transcriber.Recognition, error) {})

	var te *TransportError
	if !errors.As(err, &te) || te.Op != "dial" {
		t.Errorf("error = %v, want dial TransportError", err)
	}
}

func TestClient_WithStreamingTranscriber(t *testing.T) {
	srv, _ := fakeServer(t, 0, func(n int, msg StreamAudio) []Envelope {
		return []Envelope{
			envelope(t, EventTranscription, Transcription{Transcript: "Hello", LanguageCode: "en"}),
		}
	})
	defer srv.Close()

	var mu sync.Mutex
	var segs []aggregator.Segment
	handler := handlerFunc(func(seg aggregator.Segment) {
		mu.Lock()
		segs = append(segs, seg)
		mu.Unlock()
	})

	client := NewClient(Config{URL: wsURL(srv)}, Hooks{})
	tr := transcriber.NewStreaming(client, handler, transcriber.Options{})

	chunks := make(chan capture.Chunk, 2)
	chunks <- capture.Chunk{Seq: 1}
	chunks <- capture.Chunk{Seq: 2}
	if err := tr.Start(context.Background(), chunks); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		mu.Lock()
		n := len(segs)
		mu.Unlock()
		if n == 2 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := tr.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(segs) != 2 || segs[0].Seq != 1 || segs[1].Seq != 2 {
		t.Errorf("segments = %+v", segs)
	}
	if tr.State() != transcriber.Stopped {
		t.Errorf("State() = %s, want stopped", tr.State())
	}
}

func TestClient_StopWaitsForLateResults(t *testing.T) {
	tests := []struct {
		name     string
		delay    time.Duration
		stopWait time.Duration
		want     int
	}{
		{name: "server answers before the deadline", delay: 100 * time.Millisecond, stopWait: 2 * time.Second, want: 1},
		{name: "deadline cuts the wait short", delay: time.Second, stopWait: 50 * time.Millisecond, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := fakeServer(t, 0, func(n int, msg StreamAudio) []Envelope {
				time.Sleep(tt.delay)
				return []Envelope{
					envelope(t, EventTranscription, Transcription{Transcript: "Hello", LanguageCode: "en"}),
				}
			})
			defer srv.Close()

			var mu sync.Mutex
			var segs []aggregator.Segment
			handler := handlerFunc(func(seg aggregator.Segment) {
				mu.Lock()
				segs = append(segs, seg)
				mu.Unlock()
			})

			client := NewClient(Config{URL: wsURL(srv)}, Hooks{})
			tr := transcriber.NewStreaming(client, handler, transcriber.Options{})

			chunks := make(chan capture.Chunk, 1)
			chunks <- capture.Chunk{Seq: 1}
			if err := tr.Start(context.Background(), chunks); err != nil {
				t.Fatalf("Start() error = %v", err)
			}
			time.Sleep(20 * time.Millisecond)

			ctx, cancel := context.WithTimeout(context.Background(), tt.stopWait)
			defer cancel()
			start := time.Now()
			if err := tr.Stop(ctx); err != nil {
				t.Fatalf("Stop() error = %v", err)
			}
			if elapsed := time.Since(start); elapsed > tt.stopWait+time.Second {
				t.Errorf("Stop() took %v", elapsed)
			}

			mu.Lock()
			defer mu.Unlock()
			if len(segs) != tt.want {
				t.Errorf("got %d segments, want %d", len(segs), tt.want)
			}
			if tr.State() != transcriber.Stopped {
				t.Errorf("State() = %s, want stopped", tr.State())
			}
		})
	}
}

func TestClient_TranslationUsesTargetAfterSegment(t *testing.T) {
	srv, _ := fakeServer(t, 0, func(n int, msg StreamAudio) []Envelope {
		return []Envelope{
			envelope(t, EventTranscription, Transcription{Transcript: "こんにちは", LanguageCode: "ja"}),
			envelope(t, EventTranslation, Translation{TranslatedText: "Hello"}),
		}
	})
	defer srv.Close()

	var mu sync.Mutex
	target := "ja"
	translations := make(chan aggregator.TranslationResult, 1)
	client := NewClient(Config{URL: wsURL(srv)}, Hooks{
		Target: func() string {
			mu.Lock()
			defer mu.Unlock()
			return target
		},
		Translation: func(r aggregator.TranslationResult) { translations <- r },
	})

	chunks := make(chan capture.Chunk, 1)
	chunks <- capture.Chunk{Seq: 1}
	stop, err := client.Stream(context.Background(), chunks, "", func(rec transcriber.Recognition, err error) {
		if rec.IsFinal {
			// the segment switches the session target
			mu.Lock()
			target = "en"
			mu.Unlock()
		}
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	defer stop()

	select {
	case r := <-translations:
		if r.Target != "en" {
			t.Errorf("Target = %q, want en", r.Target)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for translation")
	}
}

func TestClient_MalformedServerError(t *testing.T) {
	srv, _ := fakeServer(t, 0, func(n int, msg StreamAudio) []Envelope {
		return []Envelope{{Event: EventError, Data: json.RawMessage(`"boom"`)}}
	})
	defer srv.Close()

	updates := make(chan update, 1)
	client := NewClient(Config{URL: wsURL(srv)}, Hooks{})
	chunks := make(chan capture.Chunk, 1)
	chunks <- capture.Chunk{Seq: 1}

	stop, err := client.Stream(context.Background(), chunks, "en", func(rec transcriber.Recognition, err error) {
		updates <- update{rec, err}
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	defer stop()

	select {
	case u := <-updates:
		if !transcriber.IsRecognitionError(u.err) || !strings.Contains(u.err.Error(), "server error") {
			t.Errorf("error = %v, want recognition error mentioning server error", u.err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for error")
	}
}

type handlerFunc func(aggregator.Segment)

func (f handlerFunc) HandleSegment(seg aggregator.Segment) { f(seg) }
func (f handlerFunc) HandlePartial(transcriber.Partial)    {}
