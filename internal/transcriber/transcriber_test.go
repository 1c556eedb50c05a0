package transcriber

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/leonardotrapani/interpret/internal/aggregator"
	"github.com/leonardotrapani/interpret/internal/capture"
)

type recognizerFunc func(ctx context.Context, chunk capture.Chunk, lang string) (Recognition, error)

func (f recognizerFunc) Transcribe(ctx context.Context, chunk capture.Chunk, lang string) (Recognition, error) {
	return f(ctx, chunk, lang)
}

type recordingHandler struct {
	mu       sync.Mutex
	segments []aggregator.Segment
	partials []Partial
}

func (h *recordingHandler) HandleSegment(seg aggregator.Segment) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.segments = append(h.segments, seg)
}

func (h *recordingHandler) HandlePartial(p Partial) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.partials = append(h.partials, p)
}

func (h *recordingHandler) texts() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.segments))
	for i, s := range h.segments {
		out[i] = s.Text
	}
	return out
}

func chunksOf(n int) chan capture.Chunk {
	ch := make(chan capture.Chunk, n)
	for i := 1; i <= n; i++ {
		ch <- capture.Chunk{Seq: uint64(i), Data: []byte{byte(i), 0}}
	}
	return ch
}

func waitDone(t *testing.T, tr *StreamingTranscriber) {
	t.Helper()
	select {
	case <-tr.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("transcriber did not finish")
	}
}

func TestStreamingTranscriber_CommitsInChunkOrder(t *testing.T) {
	const n = 6
	rec := recognizerFunc(func(ctx context.Context, chunk capture.Chunk, lang string) (Recognition, error) {
		// earlier chunks finish last
		time.Sleep(time.Duration(n-int(chunk.Seq)) * 10 * time.Millisecond)
		return Recognition{Text: fmt.Sprintf("s%d", chunk.Seq), Language: "en", IsFinal: true}, nil
	})
	handler := &recordingHandler{}
	tr := New(rec, handler, Options{MaxInFlight: n})

	chunks := chunksOf(n)
	close(chunks)
	if err := tr.Start(context.Background(), chunks); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitDone(t, tr)

	got := handler.texts()
	if len(got) != n {
		t.Fatalf("committed %d segments, want %d", len(got), n)
	}
	for i, text := range got {
		if want := fmt.Sprintf("s%d", i+1); text != want {
			t.Errorf("segment %d = %q, want %q", i+1, text, want)
		}
		if handler.segments[i].Seq != uint64(i+1) {
			t.Errorf("segment %d has seq %d", i+1, handler.segments[i].Seq)
		}
	}
	if tr.State() != Stopped {
		t.Errorf("State() = %s, want stopped", tr.State())
	}
}

func TestStreamingTranscriber_SegmentsPerResult(t *testing.T) {
	script := map[uint64]Recognition{
		1: {Text: "   ", IsFinal: true},
		2: {Segments: []string{"first", "second"}, IsFinal: true, Language: "en"},
		3: {Text: "hel", IsFinal: false, Language: "en"},
		4: {Text: "hello", IsFinal: true, Language: "en", Confidence: 0.8},
	}
	rec := recognizerFunc(func(ctx context.Context, chunk capture.Chunk, lang string) (Recognition, error) {
		return script[chunk.Seq], nil
	})
	handler := &recordingHandler{}
	tr := New(rec, handler, Options{})

	chunks := chunksOf(len(script))
	close(chunks)
	tr.Start(context.Background(), chunks)
	waitDone(t, tr)

	want := []string{"first", "second", "hello"}
	got := handler.texts()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("segments = %v, want %v", got, want)
	}
	if handler.segments[2].Seq != 3 || handler.segments[2].Confidence != 0.8 {
		t.Errorf("last segment = %+v", handler.segments[2])
	}
	if len(handler.partials) != 1 || handler.partials[0].Text != "hel" {
		t.Errorf("partials = %+v, want one \"hel\"", handler.partials)
	}
	if tr.Committed() != 3 {
		t.Errorf("Committed() = %d, want 3", tr.Committed())
	}
}

func TestStreamingTranscriber_FailureThreshold(t *testing.T) {
	tests := []struct {
		name      string
		failing   map[uint64]bool
		chunks    int
		wantState State
		wantTexts int
	}{
		{
			name:      "two failures tolerated",
			failing:   map[uint64]bool{1: true, 2: true},
			chunks:    4,
			wantState: Stopped,
			wantTexts: 2,
		},
		{
			name:      "success resets counter",
			failing:   map[uint64]bool{1: true, 2: true, 4: true, 5: true},
			chunks:    6,
			wantState: Stopped,
			wantTexts: 2,
		},
		{
			name:      "third consecutive failure is fatal",
			failing:   map[uint64]bool{2: true, 3: true, 4: true},
			chunks:    4,
			wantState: Error,
			wantTexts: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := recognizerFunc(func(ctx context.Context, chunk capture.Chunk, lang string) (Recognition, error) {
				if tt.failing[chunk.Seq] {
					return Recognition{}, errors.New("service unavailable")
				}
				return Recognition{Text: "ok", IsFinal: true}, nil
			})
			handler := &recordingHandler{}
			tr := New(rec, handler, Options{MaxInFlight: 1})

			chunks := chunksOf(tt.chunks)
			close(chunks)
			tr.Start(context.Background(), chunks)
			waitDone(t, tr)

			if tr.State() != tt.wantState {
				t.Errorf("State() = %s, want %s", tr.State(), tt.wantState)
			}
			if got := len(handler.texts()); got != tt.wantTexts {
				t.Errorf("committed %d segments, want %d", got, tt.wantTexts)
			}
			if tt.wantState == Error {
				err := tr.Err()
				if !errors.Is(err, ErrTooManyFailures) {
					t.Errorf("Err() = %v, want ErrTooManyFailures", err)
				}
				if !IsRecognitionError(err) {
					t.Errorf("Err() = %v, want a RecognitionError in the chain", err)
				}
			} else if tr.Err() != nil {
				t.Errorf("Err() = %v, want nil", tr.Err())
			}
		})
	}
}

func TestStreamingTranscriber_StopDrainsQueuedChunks(t *testing.T) {
	release := make(chan struct{})
	rec := recognizerFunc(func(ctx context.Context, chunk capture.Chunk, lang string) (Recognition, error) {
		<-release
		return Recognition{Text: fmt.Sprintf("s%d", chunk.Seq), IsFinal: true}, nil
	})
	handler := &recordingHandler{}
	tr := New(rec, handler, Options{MaxInFlight: 2})

	// left open: Stop must not wait for the producer
	chunks := chunksOf(3)
	if err := tr.Start(context.Background(), chunks); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !tr.IsRecording() {
		t.Error("IsRecording() = false while streaming")
	}

	stopped := make(chan error, 1)
	go func() { stopped <- tr.Stop(context.Background()) }()
	time.Sleep(20 * time.Millisecond)
	close(release)

	select {
	case err := <-stopped:
		if err != nil {
			t.Fatalf("Stop() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Stop() did not return")
	}

	if got := handler.texts(); len(got) != 3 {
		t.Errorf("segments = %v, want all three queued chunks", got)
	}
	if tr.State() != Stopped || tr.IsRecording() || tr.IsProcessing() {
		t.Errorf("after Stop: state=%s recording=%v processing=%v", tr.State(), tr.IsRecording(), tr.IsProcessing())
	}
	if err := tr.Stop(context.Background()); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

func TestStreamingTranscriber_InvalidTransitions(t *testing.T) {
	tr := New(NewScriptedRecognizer(), nil, Options{})

	if err := tr.Stop(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Stop() on idle error = %v, want ErrInvalidTransition", err)
	}

	chunks := make(chan capture.Chunk)
	if err := tr.Start(context.Background(), chunks); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := tr.Start(context.Background(), chunks); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second Start() error = %v, want ErrInvalidTransition", err)
	}
	close(chunks)
	waitDone(t, tr)
}

func TestStreamingTranscriber_FailDiscardsLaterResults(t *testing.T) {
	gate := make(chan struct{})
	rec := recognizerFunc(func(ctx context.Context, chunk capture.Chunk, lang string) (Recognition, error) {
		<-gate
		return Recognition{Text: "late", IsFinal: true}, nil
	})
	handler := &recordingHandler{}
	tr := New(rec, handler, Options{})

	chunks := chunksOf(2)
	tr.Start(context.Background(), chunks)

	lost := &capture.DeviceAccessError{Device: "mic", Err: errors.New("unplugged")}
	tr.Fail(lost)
	close(gate)
	waitDone(t, tr)

	if tr.State() != Error {
		t.Errorf("State() = %s, want error", tr.State())
	}
	if !capture.IsDeviceAccessError(tr.Err()) {
		t.Errorf("Err() = %v, want device access error", tr.Err())
	}
	if got := handler.texts(); len(got) != 0 {
		t.Errorf("segments after Fail = %v, want none", got)
	}
}

func TestStreamingTranscriber_LanguageHint(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	rec := recognizerFunc(func(ctx context.Context, chunk capture.Chunk, lang string) (Recognition, error) {
		mu.Lock()
		seen = append(seen, lang)
		mu.Unlock()
		return Recognition{IsFinal: true}, nil
	})
	tr := New(rec, nil, Options{Language: func() string { return "zh" }})

	chunks := chunksOf(2)
	close(chunks)
	tr.Start(context.Background(), chunks)
	waitDone(t, tr)

	if len(seen) != 2 || seen[0] != "zh" || seen[1] != "zh" {
		t.Errorf("language hints = %v, want [zh zh]", seen)
	}
}

type fakeStream struct {
	updates []Recognition
	errAt   int
	err     error
	stopped chan struct{}
}

func (f *fakeStream) Stream(ctx context.Context, chunks <-chan capture.Chunk, lang string, onUpdate UpdateFunc) (func(), error) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i, u := range f.updates {
			if f.err != nil && i == f.errAt {
				onUpdate(Recognition{}, f.err)
				return
			}
			onUpdate(u, nil)
		}
	}()
	return func() {
		<-done
		close(f.stopped)
	}, nil
}

func TestStreamingTranscriber_StreamRecognizer(t *testing.T) {
	stream := &fakeStream{
		updates: []Recognition{
			{Text: "Hel", Language: "en"},
			{Text: "Hello", Language: "en", IsFinal: true},
			{Text: "你好", Language: "zh", IsFinal: true},
		},
		stopped: make(chan struct{}),
	}
	handler := &recordingHandler{}
	tr := NewStreaming(stream, handler, Options{})

	if err := tr.Start(context.Background(), make(chan capture.Chunk)); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if err := tr.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if got := handler.texts(); fmt.Sprint(got) != fmt.Sprint([]string{"Hello", "你好"}) {
		t.Errorf("segments = %v", got)
	}
	if handler.segments[1].Language != "zh" || handler.segments[1].Seq != 2 {
		t.Errorf("second segment = %+v", handler.segments[1])
	}
	if len(handler.partials) != 1 {
		t.Errorf("partials = %+v", handler.partials)
	}
	if tr.State() != Stopped {
		t.Errorf("State() = %s, want stopped", tr.State())
	}
}

func TestStreamingTranscriber_StreamLossIsFatal(t *testing.T) {
	lost := errors.New("connection reset")
	stream := &fakeStream{
		updates: []Recognition{{Text: "one", IsFinal: true}, {}},
		errAt:   1,
		err:     lost,
		stopped: make(chan struct{}),
	}
	tr := NewStreaming(stream, nil, Options{})
	tr.Start(context.Background(), make(chan capture.Chunk))
	waitDone(t, tr)

	if tr.State() != Error || !errors.Is(tr.Err(), lost) {
		t.Errorf("state=%s err=%v, want error wrapping %v", tr.State(), tr.Err(), lost)
	}
}

func TestScriptedRecognizer(t *testing.T) {
	r := NewScriptedRecognizer()
	ctx := context.Background()

	got, err := r.Transcribe(ctx, capture.Chunk{Seq: 1}, "")
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if got.Text != "Hello, can you hear me?" || got.Language != "en" || !got.IsFinal {
		t.Errorf("chunk 1 = %+v", got)
	}

	got, _ = r.Transcribe(ctx, capture.Chunk{Seq: 8}, "")
	if got.Language != "zh" || got.Text != "你好，你能听到我说话吗？" {
		t.Errorf("chunk 8 = %+v, want first chinese phrase", got)
	}

	got, _ = r.Transcribe(ctx, capture.Chunk{Seq: 2}, "ja")
	if got.Language != "ja" || got.Text != "リアルタイム翻訳システムをテストしています。" {
		t.Errorf("forced ja = %+v", got)
	}

	replay := NewScriptedRecognizerFrom(Recognition{Text: "a", IsFinal: true}, Recognition{Text: "b", IsFinal: true})
	if got, _ := replay.Transcribe(ctx, capture.Chunk{Seq: 3}, ""); got.Text != "a" {
		t.Errorf("replay chunk 3 = %q, want a", got.Text)
	}
}

func TestNewRecognizer(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "openai with key", config: Config{Provider: "openai", APIKey: "sk-test"}},
		{name: "groq with key", config: Config{Provider: "groq", APIKey: "gsk-test"}},
		{name: "scripted", config: Config{Provider: "scripted"}},
		{name: "unknown provider", config: Config{Provider: "nope"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRecognizer(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewRecognizer() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && r == nil {
				t.Error("NewRecognizer() returned nil")
			}
		})
	}
}

func TestEncodeWAV(t *testing.T) {
	pcm := make([]byte, 3200)
	for i := range pcm {
		pcm[i] = byte(i)
	}
	data, err := encodeWAV(pcm, 16000, 1)
	if err != nil {
		t.Fatalf("encodeWAV() error = %v", err)
	}
	if !bytes.HasPrefix(data, []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		t.Errorf("missing RIFF/WAVE header: %q", data[:12])
	}
	if len(data) != 44+len(pcm) {
		t.Errorf("len = %d, want %d", len(data), 44+len(pcm))
	}
}

func TestRecognitionError(t *testing.T) {
	base := errors.New("timeout")
	err := fmt.Errorf("wrapped: %w", NewRecognitionError(4, base))
	if !IsRecognitionError(err) || !errors.Is(err, base) {
		t.Errorf("error chain broken: %v", err)
	}
	if NewRecognitionError(1, nil) != nil {
		t.Error("NewRecognitionError(nil) should be nil")
	}
}
