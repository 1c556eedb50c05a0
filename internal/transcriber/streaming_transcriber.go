package transcriber

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/leonardotrapani/interpret/internal/aggregator"
	"github.com/leonardotrapani/interpret/internal/capture"
	"github.com/leonardotrapani/interpret/internal/logging"
	"github.com/leonardotrapani/interpret/internal/metrics"
)

// Partial is an interim hypothesis. It is shown but never committed.
type Partial struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

// Handler receives committed segments and partials, one call at a time and
// in commit order.
type Handler interface {
	HandleSegment(seg aggregator.Segment)
	HandlePartial(p Partial)
}

type Options struct {
	MaxInFlight      int
	FailureThreshold int
	// Language returns the hint passed to the recognizer for each chunk.
	Language func() string
	Metrics  *metrics.Metrics
}

type result struct {
	index uint64
	rec   Recognition
	err   error
}

// StreamingTranscriber turns the chunk stream into numbered segments.
// Chunks are recognized concurrently but committed strictly in chunk order.
type StreamingTranscriber struct {
	recognizer Recognizer
	stream     StreamRecognizer
	handler    Handler
	opts       Options
	metrics    *metrics.Metrics
	logger     zerolog.Logger

	mu         sync.Mutex
	state      State
	err        error
	cancel     context.CancelFunc
	stopCh     chan struct{}
	stopStream func()
	done       chan struct{}
	doneOnce   sync.Once

	procMu      sync.Mutex
	nextSegment uint64
	failures    int
}

// New returns a transcriber issuing one recognition request per chunk.
func New(recognizer Recognizer, handler Handler, opts Options) *StreamingTranscriber {
	t := newTranscriber(handler, opts)
	t.recognizer = recognizer
	return t
}

// NewStreaming returns a transcriber backed by a streaming recognizer.
func NewStreaming(stream StreamRecognizer, handler Handler, opts Options) *StreamingTranscriber {
	t := newTranscriber(handler, opts)
	t.stream = stream
	return t
}

func newTranscriber(handler Handler, opts Options) *StreamingTranscriber {
	defaults := DefaultConfig()
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = defaults.MaxInFlight
	}
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = defaults.FailureThreshold
	}
	if opts.Language == nil {
		opts.Language = func() string { return "" }
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Discard()
	}
	if handler == nil {
		handler = nopHandler{}
	}
	return &StreamingTranscriber{
		handler: handler,
		opts:    opts,
		metrics: opts.Metrics,
		logger:  logging.For("transcriber"),
		state:   Idle,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start begins consuming chunks. It fails with ErrInvalidTransition unless
// the transcriber is Idle.
func (t *StreamingTranscriber) Start(ctx context.Context, chunks <-chan capture.Chunk) error {
	t.mu.Lock()
	if err := t.transitionLocked(Starting); err != nil {
		t.mu.Unlock()
		return err
	}
	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.mu.Unlock()

	if t.stream == nil {
		t.mu.Lock()
		t.state = Streaming
		t.mu.Unlock()
		go t.run(runCtx, chunks)
		return nil
	}

	stop, err := t.stream.Stream(runCtx, chunks, t.opts.Language(), t.process)
	if err != nil {
		t.Fail(err)
		return err
	}

	t.mu.Lock()
	t.stopStream = stop
	if t.state == Error {
		err := t.err
		t.mu.Unlock()
		go func() {
			stop()
			t.closeDone()
		}()
		return err
	}
	t.state = Streaming
	t.mu.Unlock()
	return nil
}

// Stop stops accepting chunks and waits for in-flight recognition to commit.
// When ctx expires first the remaining requests are cancelled.
func (t *StreamingTranscriber) Stop(ctx context.Context) error {
	t.mu.Lock()
	switch t.state {
	case Streaming:
		t.state = Stopping
		close(t.stopCh)
		stop := t.stopStream
		t.mu.Unlock()
		if t.stream != nil {
			go func() {
				if stop != nil {
					stop()
				}
				t.finish()
			}()
		}
	case Stopping, Stopped, Error:
		t.mu.Unlock()
	default:
		err := checkTransition(t.state, Stopping)
		t.mu.Unlock()
		return err
	}

	select {
	case <-t.done:
	case <-ctx.Done():
		t.logger.Warn().Msg("stop deadline reached, cancelling in-flight recognition")
		t.cancel()
		<-t.done
	}
	return nil
}

// Fail moves an active transcriber to Error. Later results are discarded.
func (t *StreamingTranscriber) Fail(err error) {
	t.mu.Lock()
	if t.state != Starting && t.state != Streaming {
		t.mu.Unlock()
		return
	}
	t.state = Error
	t.err = err
	cancel := t.cancel
	stop := t.stopStream
	t.mu.Unlock()

	t.logger.Error().Err(err).Msg("transcription failed")
	if cancel != nil {
		cancel()
	}
	if t.stream != nil && stop != nil {
		go func() {
			stop()
			t.closeDone()
		}()
	} else if t.stream != nil {
		t.closeDone()
	}
}

func (t *StreamingTranscriber) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Err returns the session-scoped failure, if any.
func (t *StreamingTranscriber) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Done is closed once the transcriber reached a terminal state and no more
// handler calls will be made.
func (t *StreamingTranscriber) Done() <-chan struct{} {
	return t.done
}

func (t *StreamingTranscriber) IsRecording() bool {
	s := t.State()
	return s == Starting || s == Streaming
}

func (t *StreamingTranscriber) IsProcessing() bool {
	s := t.State()
	return s == Streaming || s == Stopping
}

// Committed returns the number of segments committed so far.
func (t *StreamingTranscriber) Committed() uint64 {
	t.procMu.Lock()
	defer t.procMu.Unlock()
	return t.nextSegment
}

func (t *StreamingTranscriber) transitionLocked(to State) error {
	if err := checkTransition(t.state, to); err != nil {
		return err
	}
	t.state = to
	return nil
}

func (t *StreamingTranscriber) finish() {
	t.mu.Lock()
	if t.state == Streaming {
		t.state = Stopping
	}
	if t.state == Stopping {
		t.state = Stopped
	}
	if t.cancel != nil {
		t.cancel()
	}
	t.mu.Unlock()
	t.closeDone()
}

func (t *StreamingTranscriber) closeDone() {
	t.doneOnce.Do(func() { close(t.done) })
}

func (t *StreamingTranscriber) run(ctx context.Context, chunks <-chan capture.Chunk) {
	defer t.finish()

	results := make(chan result, t.opts.MaxInFlight)
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		t.collect(results)
	}()

	sem := make(chan struct{}, t.opts.MaxInFlight)
	var wg sync.WaitGroup
	var index uint64

	submit := func(chunk capture.Chunk) bool {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return false
		}
		index++
		idx := index
		lang := t.opts.Language()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			results <- t.recognize(ctx, idx, chunk, lang)
		}()
		return true
	}

	t.read(ctx, chunks, submit)
	wg.Wait()
	close(results)
	<-collected
}

// read feeds chunks to submit until the channel closes, ctx ends or Stop is
// called. On Stop, chunks already queued are still submitted.
func (t *StreamingTranscriber) read(ctx context.Context, chunks <-chan capture.Chunk, submit func(capture.Chunk) bool) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopCh:
			for {
				select {
				case chunk, ok := <-chunks:
					if !ok || !submit(chunk) {
						return
					}
				default:
					return
				}
			}
		case chunk, ok := <-chunks:
			if !ok || !submit(chunk) {
				return
			}
		}
	}
}

func (t *StreamingTranscriber) recognize(ctx context.Context, idx uint64, chunk capture.Chunk, lang string) result {
	t.metrics.RecognitionRequests.Inc()
	start := time.Now()
	rec, err := t.recognizer.Transcribe(ctx, chunk, lang)
	t.metrics.RecognitionDuration.Observe(time.Since(start).Seconds())
	if err != nil && !IsRecognitionError(err) {
		err = NewRecognitionError(chunk.Seq, err)
	}
	return result{index: idx, rec: rec, err: err}
}

// collect re-serializes results by submission order.
func (t *StreamingTranscriber) collect(results <-chan result) {
	pending := make(map[uint64]result)
	next := uint64(1)
	for r := range results {
		pending[r.index] = r
		for {
			cur, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			t.process(cur.rec, cur.err)
		}
	}
}

func (t *StreamingTranscriber) process(rec Recognition, err error) {
	t.procMu.Lock()
	defer t.procMu.Unlock()

	switch t.State() {
	case Starting, Streaming, Stopping:
	default:
		return
	}

	if err != nil {
		if !IsRecognitionError(err) {
			t.Fail(err)
			return
		}
		t.metrics.RecognitionFailures.Inc()
		t.failures++
		t.logger.Warn().Err(err).Int("consecutive", t.failures).Msg("recognition failed")
		if t.failures >= t.opts.FailureThreshold {
			t.Fail(fmt.Errorf("%w: %w", ErrTooManyFailures, err))
		}
		return
	}
	t.failures = 0

	texts := rec.Texts()
	if !rec.IsFinal {
		for _, text := range texts {
			t.handler.HandlePartial(Partial{Text: text, Language: rec.Language})
		}
		return
	}

	for _, text := range texts {
		t.nextSegment++
		seg := aggregator.Segment{
			Seq:        t.nextSegment,
			Text:       text,
			Confidence: rec.Confidence,
			IsFinal:    true,
			Language:   rec.Language,
		}
		t.metrics.SegmentsCommitted.Inc()
		t.logger.Debug().Uint64("seq", seg.Seq).Str("language", seg.Language).Msg("segment committed")
		t.handler.HandleSegment(seg)
	}
}

type nopHandler struct{}

func (nopHandler) HandleSegment(aggregator.Segment) {}
func (nopHandler) HandlePartial(Partial)            {}
