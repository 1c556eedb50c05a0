package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/leonardotrapani/interpret/internal/aggregator"
	"github.com/leonardotrapani/interpret/internal/language"
	"github.com/leonardotrapani/interpret/internal/logging"
	"github.com/leonardotrapani/interpret/internal/metrics"
	"github.com/leonardotrapani/interpret/internal/translator"
)

// Attempts is the number of requests made per segment before it is marked
// unavailable.
const Attempts = 2

// Sink receives resolved translations. *aggregator.Aggregator implements it.
type Sink interface {
	ApplyTranslation(r aggregator.TranslationResult) bool
	MarkUnavailable(seq uint64) bool
}

// Dispatcher runs one translation task per committed segment. Tasks run
// concurrently and complete in any order; the sink re-serializes them.
type Dispatcher struct {
	translator translator.Translator
	sink       Sink
	metrics    *metrics.Metrics
	logger     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu serializes delivery with Cancel so nothing reaches the sink after
	// cancellation.
	mu        sync.Mutex
	cancelled bool
	inFlight  int
}

func New(ctx context.Context, tr translator.Translator, sink Sink, m *metrics.Metrics) *Dispatcher {
	if m == nil {
		m = metrics.Discard()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Dispatcher{
		translator: tr,
		sink:       sink,
		metrics:    m,
		logger:     logging.For("dispatch"),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Dispatch starts translating seg into target. target is the language in
// effect when the segment was committed; later switches do not affect it.
func (d *Dispatcher) Dispatch(seg aggregator.Segment, target string) bool {
	d.mu.Lock()
	if d.cancelled {
		d.mu.Unlock()
		return false
	}
	d.wg.Add(1)
	d.inFlight++
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		defer func() {
			d.mu.Lock()
			d.inFlight--
			d.mu.Unlock()
		}()
		d.translate(seg, target)
	}()
	return true
}

func (d *Dispatcher) translate(seg aggregator.Segment, target string) {
	src := language.Normalize(seg.Language)

	var lastErr error
	for attempt := 1; attempt <= Attempts; attempt++ {
		if attempt > 1 {
			d.metrics.TranslationRetries.Inc()
		}
		d.metrics.TranslationRequests.Inc()

		start := time.Now()
		text, err := d.translator.Translate(d.ctx, seg.Text, src, target)
		d.metrics.TranslationDuration.Observe(time.Since(start).Seconds())

		if err == nil {
			d.Deliver(aggregator.TranslationResult{Seq: seg.Seq, Text: text, Target: target})
			return
		}
		if d.ctx.Err() != nil {
			d.metrics.TranslationsDiscarded.Inc()
			return
		}
		lastErr = err
		d.logger.Warn().Err(err).Uint64("seq", seg.Seq).Int("attempt", attempt).Msg("translation failed")
	}

	d.logger.Error().Err(lastErr).Uint64("seq", seg.Seq).Msg("translation unavailable")
	if d.MarkUnavailable(seg.Seq) {
		d.metrics.TranslationUnavailable.Inc()
	}
}

// Deliver hands a result to the sink unless the dispatcher was cancelled.
// Server-produced translations use it to share the same guard.
func (d *Dispatcher) Deliver(r aggregator.TranslationResult) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancelled {
		d.metrics.TranslationsDiscarded.Inc()
		return false
	}
	return d.sink.ApplyTranslation(r)
}

// MarkUnavailable seals seq unless the dispatcher was cancelled.
func (d *Dispatcher) MarkUnavailable(seq uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancelled {
		return false
	}
	return d.sink.MarkUnavailable(seq)
}

// Cancel aborts every outstanding task. Once it returns no result reaches
// the sink. Safe to call more than once.
func (d *Dispatcher) Cancel() {
	d.mu.Lock()
	d.cancelled = true
	d.mu.Unlock()
	d.cancel()
}

// Wait blocks until all tasks have exited.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// InFlight returns the number of running tasks.
func (d *Dispatcher) InFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inFlight
}
