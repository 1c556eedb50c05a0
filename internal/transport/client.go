package transport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/leonardotrapani/interpret/internal/aggregator"
	"github.com/leonardotrapani/interpret/internal/capture"
	"github.com/leonardotrapani/interpret/internal/language"
	"github.com/leonardotrapani/interpret/internal/logging"
	"github.com/leonardotrapani/interpret/internal/transcriber"
)

type Config struct {
	URL              string
	APIKey           string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
	}
}

// Hooks connect the client to the session it serves.
type Hooks struct {
	// Target returns the target language in effect right now.
	Target func() string
	// Translation receives server translations tagged with the segment
	// sequence they belong to.
	Translation func(aggregator.TranslationResult)
}

// Client streams chunks to a realtime interpretation server and implements
// transcriber.StreamRecognizer.
type Client struct {
	config Config
	hooks  Hooks
	dialer *websocket.Dialer
	logger zerolog.Logger
}

func NewClient(config Config, hooks Hooks) *Client {
	defaults := DefaultConfig()
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = defaults.HandshakeTimeout
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if hooks.Target == nil {
		hooks.Target = func() string { return language.Chinese }
	}
	if hooks.Translation == nil {
		hooks.Translation = func(aggregator.TranslationResult) {}
	}
	return &Client{
		config: config,
		hooks:  hooks,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: config.HandshakeTimeout,
		},
		logger: logging.For("transport"),
	}
}

type pendingTranslation struct {
	seq    uint64
	target string
}

// stream is one live connection.
type stream struct {
	client   *Client
	conn     *websocket.Conn
	lang     string
	onUpdate transcriber.UpdateFunc

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	finished chan struct{}

	mu sync.Mutex
	// closing is set once the close frame went out
	closing bool
	aborted bool
	failed  bool
	// final transcriptions awaiting their translation, oldest first
	pending []pendingTranslation
	seq     uint64
}

// Stream dials the server and starts forwarding chunks. Every final,
// non-empty transcription becomes exactly one segment, so translations are
// paired with segments first-in first-out.
func (c *Client) Stream(ctx context.Context, chunks <-chan capture.Chunk, lang string, onUpdate transcriber.UpdateFunc) (func(), error) {
	header := http.Header{}
	if c.config.APIKey != "" {
		header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	c.logger.Debug().Str("url", c.config.URL).Msg("connecting")
	conn, resp, err := c.dialer.DialContext(ctx, c.config.URL, header)
	if err != nil {
		if resp != nil {
			c.logger.Debug().Int("status", resp.StatusCode).Msg("dial failed")
		}
		return nil, &TransportError{Op: "dial", URL: c.config.URL, Err: err}
	}

	s := &stream{
		client:   c,
		conn:     conn,
		lang:     lang,
		onUpdate: onUpdate,
		stopCh:   make(chan struct{}),
		finished: make(chan struct{}),
	}

	s.wg.Add(2)
	go s.writeLoop(ctx, chunks)
	go s.readLoop()

	go func() {
		s.wg.Wait()
		close(s.finished)
	}()
	go func() {
		select {
		case <-ctx.Done():
			s.abort()
		case <-s.finished:
		}
	}()

	c.logger.Info().Str("url", c.config.URL).Msg("connected")
	return s.stop, nil
}

func (s *stream) writeLoop(ctx context.Context, chunks <-chan capture.Chunk) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			// chunks already queued still go out
			for {
				select {
				case chunk, ok := <-chunks:
					if !ok {
						s.closeSend()
						return
					}
					if !s.forward(chunk) {
						return
					}
				default:
					s.closeSend()
					return
				}
			}
		case chunk, ok := <-chunks:
			if !ok {
				s.closeSend()
				return
			}
			if !s.forward(chunk) {
				return
			}
		}
	}
}

func (s *stream) forward(chunk capture.Chunk) bool {
	if err := s.send(chunk); err != nil {
		s.fail("write", err)
		return false
	}
	return true
}

// closeSend sends the close frame. The server answers with its own once it
// has delivered every result for the audio it received.
func (s *stream) closeSend() {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	deadline := time.Now().Add(s.client.config.WriteTimeout)
	err := s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	if err != nil {
		s.client.logger.Debug().Err(err).Msg("close frame not sent")
	}
}

func (s *stream) send(chunk capture.Chunk) error {
	src := s.lang
	if src == "" {
		src = language.Auto.Code
	}
	msg, err := Encode(EventStreamAudio, StreamAudio{
		Audio:          base64.StdEncoding.EncodeToString(chunk.Data),
		Language:       src,
		SourceLanguage: src,
		TargetLanguage: s.client.hooks.Target(),
		Seq:            chunk.Seq,
	})
	if err != nil {
		return err
	}
	s.conn.SetWriteDeadline(time.Now().Add(s.client.config.WriteTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, msg)
}

func (s *stream) readLoop() {
	defer s.wg.Done()
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			closing, aborted := s.closing, s.aborted
			s.mu.Unlock()
			switch {
			case aborted:
			case closing:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					s.client.logger.Warn().Err(err).Msg("server went away while closing")
				}
			default:
				s.fail("read", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.client.logger.Warn().Err(err).Msg("malformed message")
			continue
		}
		s.handle(env)
	}
}

func (s *stream) handle(env Envelope) {
	switch env.Event {
	case EventTranscription:
		var tr Transcription
		if err := json.Unmarshal(env.Data, &tr); err != nil {
			s.client.logger.Warn().Err(err).Msg("malformed transcription")
			return
		}
		rec := transcriber.Recognition{
			Text:       tr.Transcript,
			Segments:   tr.Segments,
			Confidence: tr.Confidence,
			Language:   language.Normalize(tr.LanguageCode),
			IsFinal:    tr.Final(),
		}
		if rec.Language == "" {
			rec.Language = s.lang
		}
		s.deliver(rec, nil)
		if rec.IsFinal {
			// read after delivery so a switch caused by this segment applies
			target := s.client.hooks.Target()
			s.mu.Lock()
			for range rec.Texts() {
				s.seq++
				s.pending = append(s.pending, pendingTranslation{seq: s.seq, target: target})
			}
			s.mu.Unlock()
		}

	case EventTranslation:
		var tl Translation
		if err := json.Unmarshal(env.Data, &tl); err != nil {
			s.client.logger.Warn().Err(err).Msg("malformed translation")
			return
		}
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.mu.Unlock()
			s.client.logger.Warn().Msg("translation without a pending transcription")
			return
		}
		next := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()

		target := next.target
		if tl.TargetLanguage != "" {
			target = language.Normalize(tl.TargetLanguage)
		}
		s.client.hooks.Translation(aggregator.TranslationResult{
			Seq:    next.seq,
			Text:   strings.TrimSpace(tl.TranslatedText),
			Target: target,
		})

	case EventError:
		msg := "server error"
		var em ErrorMessage
		if err := json.Unmarshal(env.Data, &em); err != nil {
			s.client.logger.Warn().Err(err).Msg("malformed error message")
		} else if em.Message != "" {
			msg = em.Message
		}
		s.deliver(transcriber.Recognition{}, transcriber.NewRecognitionError(0, errors.New(msg)))

	default:
		s.client.logger.Debug().Str("event", env.Event).Msg("ignoring event")
	}
}

// deliver forwards to onUpdate unless the stream failed or was aborted.
// Results still arrive while a stop drains.
func (s *stream) deliver(rec transcriber.Recognition, err error) {
	s.mu.Lock()
	quiet := s.aborted || s.failed
	s.mu.Unlock()
	if quiet {
		return
	}
	s.onUpdate(rec, err)
}

func (s *stream) fail(op string, err error) {
	s.mu.Lock()
	if s.aborted || s.failed {
		s.mu.Unlock()
		return
	}
	s.failed = true
	s.mu.Unlock()

	terr := &TransportError{Op: op, URL: s.client.config.URL, Err: err}
	s.client.logger.Error().Err(err).Str("op", op).Msg("channel lost")
	s.onUpdate(transcriber.Recognition{}, terr)
	s.conn.Close()
}

// stop forwards the chunks already queued, closes the sending side and
// waits until the server has closed too, so late results are still
// delivered. Cancelling the Stream context cuts the wait short. Idempotent.
func (s *stream) stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.finished
	s.conn.Close()
}

// abort drops the connection without waiting for outstanding results.
func (s *stream) abort() {
	s.mu.Lock()
	s.aborted = true
	s.mu.Unlock()
	s.conn.Close()
}
