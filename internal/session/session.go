package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/leonardotrapani/interpret/internal/aggregator"
	"github.com/leonardotrapani/interpret/internal/capture"
	"github.com/leonardotrapani/interpret/internal/dispatch"
	"github.com/leonardotrapani/interpret/internal/language"
	"github.com/leonardotrapani/interpret/internal/logging"
	"github.com/leonardotrapani/interpret/internal/metrics"
	"github.com/leonardotrapani/interpret/internal/transcriber"
	"github.com/leonardotrapani/interpret/internal/transport"
)

// Session is one live interpretation run bound to one capture device.
type Session struct {
	id      string
	config  Config
	started time.Time
	metrics *metrics.Metrics
	logger  zerolog.Logger

	hub         *capture.Hub
	transcriber *transcriber.StreamingTranscriber
	autoswitch  *language.AutoSwitch
	dispatcher  *dispatch.Dispatcher
	aggregator  *aggregator.Aggregator
	feed        *feed
	// remote is set when the realtime server also translates.
	remote bool

	ctx    context.Context
	cancel context.CancelFunc

	pumpDone chan struct{}
	done     chan struct{}
	endOnce  sync.Once
	onEnd    func(*Session)

	mu       sync.Mutex
	ended    time.Time
	err      error
	stopping bool
}

func newSession(id string, cfg Config, caps Capabilities, registry *capture.Registry, m *metrics.Metrics) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:         id,
		config:     cfg,
		metrics:    m,
		logger:     logging.For("session").With().Str("session", id).Logger(),
		autoswitch: language.NewAutoSwitch(cfg.Source, cfg.Target),
		aggregator: aggregator.New(),
		feed:       newFeed(),
		ctx:        ctx,
		cancel:     cancel,
		pumpDone:   make(chan struct{}),
		done:       make(chan struct{}),
	}
	s.hub = capture.NewHub(cfg.Capture, caps.Opener, registry, id, m)
	s.dispatcher = dispatch.New(ctx, caps.Translator, s.aggregator, m)

	opts := transcriber.Options{
		MaxInFlight:      cfg.Transcriber.MaxInFlight,
		FailureThreshold: cfg.Transcriber.FailureThreshold,
		Language:         s.autoswitch.RecognitionLanguage,
		Metrics:          m,
	}
	if caps.Stream != nil {
		s.remote = true
		stream := caps.Stream(transport.Hooks{
			Target: s.autoswitch.Target,
			Translation: func(r aggregator.TranslationResult) {
				s.dispatcher.Deliver(r)
			},
		})
		s.transcriber = transcriber.NewStreaming(stream, s, opts)
	} else {
		s.transcriber = transcriber.New(caps.Recognizer, s, opts)
	}
	return s
}

// start claims the device and begins streaming. Device errors are returned
// synchronously.
func (s *Session) start() error {
	if err := s.hub.Start(s.ctx, s.config.Device); err != nil {
		s.abort()
		return err
	}
	if err := s.transcriber.Start(s.ctx, s.hub.Chunks()); err != nil {
		s.hub.Stop()
		s.abort()
		return err
	}

	s.started = time.Now()
	updates, _ := s.aggregator.Subscribe()
	go s.pump(updates)
	go s.watch()

	s.logger.Info().
		Str("device", s.deviceName()).
		Str("mode", string(s.autoswitch.Mode())).
		Str("target", s.autoswitch.Target()).
		Msg("session started")
	return nil
}

func (s *Session) abort() {
	s.dispatcher.Cancel()
	s.aggregator.Close()
	s.feed.close()
	s.cancel()
	close(s.pumpDone)
	close(s.done)
}

// HandleSegment runs for every committed segment, in order. Language
// detection happens before dispatch so a segment that flips the target is
// already translated into the new one.
func (s *Session) HandleSegment(seg aggregator.Segment) {
	detected := language.Normalize(seg.Language)
	if target, changed := s.autoswitch.Observe(detected); changed {
		s.metrics.TargetSwitches.Inc()
		s.logger.Info().Str("detected", detected).Str("target", target).Msg("target language switched")
		s.feed.publish(Event{Type: EventTargetChanged, Language: target})
	}
	seg.Language = s.autoswitch.EffectiveSource(detected)

	if err := s.aggregator.CommitSegment(seg); err != nil {
		s.logger.Warn().Err(err).Uint64("seq", seg.Seq).Msg("segment rejected")
		return
	}
	if !s.remote {
		s.dispatcher.Dispatch(seg, s.autoswitch.Target())
	}
}

func (s *Session) HandlePartial(p transcriber.Partial) {
	s.feed.publish(Event{Type: EventPartial, Text: p.Text, Language: language.Normalize(p.Language)})
}

func (s *Session) pump(updates <-chan aggregator.Update) {
	defer close(s.pumpDone)
	for u := range updates {
		s.feed.publish(eventFromUpdate(u))
	}
}

func (s *Session) watch() {
	for {
		select {
		case err := <-s.hub.Errors():
			s.fail(err)
			return
		case d := <-s.hub.Drops():
			s.feed.publish(Event{Type: EventDropped, Seq: d.Seq})
		case <-s.transcriber.Done():
			err := s.transcriber.Err()
			if err == nil {
				// device loss is reported before the chunk stream closes
				select {
				case err = <-s.hub.Errors():
				default:
				}
			}
			if err != nil {
				s.fail(err)
			} else {
				s.Stop(context.Background())
			}
			return
		case <-s.done:
			return
		}
	}
}

// Stop ends the session: pending audio is flushed and transcribed, then
// every outstanding translation is cancelled. Idempotent.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		<-s.done
		return nil
	}
	s.stopping = true
	s.mu.Unlock()

	if s.config.StopTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.StopTimeout)
		defer cancel()
	}

	s.hub.Stop()
	err := s.transcriber.Stop(ctx)
	if errors.Is(err, transcriber.ErrInvalidTransition) {
		err = nil
	}
	s.end(nil)
	return err
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return
	}
	s.stopping = true
	s.mu.Unlock()

	s.logger.Error().Err(err).Msg("session failed")
	s.metrics.SessionErrors.WithLabelValues(errorKind(err)).Inc()
	s.transcriber.Fail(err)
	s.hub.Stop()
	s.end(err)
}

func (s *Session) end(err error) {
	s.endOnce.Do(func() {
		s.dispatcher.Cancel()
		s.dispatcher.Wait()
		s.aggregator.Close()
		<-s.pumpDone

		s.mu.Lock()
		s.err = err
		s.ended = time.Now()
		s.mu.Unlock()

		ev := Event{Type: EventEnded}
		if err != nil {
			ev.Error = err.Error()
		}
		s.feed.publish(ev)
		s.feed.close()
		s.cancel()
		close(s.done)

		s.logger.Info().Int("segments", len(s.aggregator.Segments())).Msg("session ended")
		if s.onEnd != nil {
			s.onEnd(s)
		}
	})
}

func (s *Session) ID() string { return s.id }

func (s *Session) Device() string { return s.config.Device }

func (s *Session) Config() Config { return s.config }

// Done is closed when the session has ended, by Stop or by failure.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns the session-scoped failure, nil after a clean stop.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// State is the transcriber state, or Error once the session failed.
func (s *Session) State() transcriber.State {
	if s.Err() != nil {
		return transcriber.Error
	}
	return s.transcriber.State()
}

// Active reports whether the session is still running.
func (s *Session) Active() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// SetTarget pins the translation target. Segments already dispatched keep
// the target they were sent with.
func (s *Session) SetTarget(code string) error {
	code = language.Normalize(code)
	if code == "" || code == language.Auto.Code {
		return fmt.Errorf("invalid target language %q", code)
	}
	s.autoswitch.SetTarget(code)
	s.feed.publish(Event{Type: EventTargetChanged, Language: code})
	return nil
}

func (s *Session) Target() string { return s.autoswitch.Target() }

// SetSource pins the spoken language, or returns to detection for "auto".
// Chunks already sent for recognition are unaffected.
func (s *Session) SetSource(code string) error {
	code = language.Normalize(code)
	switch {
	case code == language.Auto.Code:
		s.autoswitch.SetAuto()
	case language.IsSupported(code):
		s.autoswitch.SetFixed(code)
	default:
		return fmt.Errorf("invalid source language %q", code)
	}
	s.logger.Info().Str("source", code).Msg("source language changed")
	return nil
}

// Subscribe streams live events until the session ends.
func (s *Session) Subscribe() (<-chan Event, func()) { return s.feed.subscribe() }

// FinalSource returns the committed source transcript.
func (s *Session) FinalSource() string { return s.aggregator.Source() }

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	ID        string               `json:"id"`
	Device    string               `json:"device"`
	Mode      language.Mode        `json:"mode"`
	Detected  string               `json:"detected,omitempty"`
	Target    string               `json:"target"`
	State     transcriber.State    `json:"state"`
	Error     string               `json:"error,omitempty"`
	StartedAt time.Time            `json:"started_at"`
	EndedAt   *time.Time           `json:"ended_at,omitempty"`
	Dropped   uint64               `json:"dropped_chunks"`
	Pending   int                  `json:"pending_translations"`
	Source    string               `json:"source"`
	Text      string               `json:"target_text"`
	Segments  []aggregator.Segment `json:"segments"`
}

func (s *Session) Snapshot() Snapshot {
	agg := s.aggregator.Snapshot()
	snap := Snapshot{
		ID:        s.id,
		Device:    s.deviceName(),
		Mode:      s.autoswitch.Mode(),
		Detected:  s.autoswitch.Detected(),
		Target:    s.autoswitch.Target(),
		State:     s.State(),
		StartedAt: s.started,
		Dropped:   s.hub.Dropped(),
		Pending:   s.aggregator.Pending(),
		Source:    agg.Source,
		Text:      agg.Target,
		Segments:  agg.Segments,
	}
	s.mu.Lock()
	if s.err != nil {
		snap.Error = s.err.Error()
	}
	if !s.ended.IsZero() {
		ended := s.ended
		snap.EndedAt = &ended
	}
	s.mu.Unlock()
	return snap
}

func (s *Session) deviceName() string {
	if s.config.Device == "" {
		return "default"
	}
	return s.config.Device
}

func errorKind(err error) string {
	switch {
	case capture.IsDeviceAccessError(err):
		return "device"
	case transport.IsTransportError(err):
		return "transport"
	case transcriber.IsRecognitionError(err):
		return "recognition"
	default:
		return "other"
	}
}
