package capture

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/leonardotrapani/interpret/internal/logging"
	"github.com/leonardotrapani/interpret/internal/metrics"
)

// Chunk is a time-boxed slice of captured audio.
type Chunk struct {
	Seq        uint64
	Data       []byte
	CapturedAt time.Time
}

// DropEvent is surfaced when the oldest queued chunk was discarded.
type DropEvent struct {
	Seq uint64
	At  time.Time
}

type Config struct {
	Interval     time.Duration
	BufferChunks int
}

func DefaultConfig() Config {
	return Config{
		Interval:     time.Second,
		BufferChunks: 8,
	}
}

// Hub claims one capture device and slices its frames into ordered chunks.
// A Hub is single-use: once stopped it cannot be restarted.
type Hub struct {
	config   Config
	opener   Opener
	registry *Registry
	owner    string
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	chunks chan Chunk
	drops  chan DropEvent
	errs   chan error

	mu       sync.Mutex
	started  bool
	device   string
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	seq     uint64
	dropped atomic.Uint64
}

func NewHub(config Config, opener Opener, registry *Registry, owner string, m *metrics.Metrics) *Hub {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	if config.BufferChunks <= 0 {
		config.BufferChunks = DefaultConfig().BufferChunks
	}
	if m == nil {
		m = metrics.Discard()
	}
	return &Hub{
		config:   config,
		opener:   opener,
		registry: registry,
		owner:    owner,
		metrics:  m,
		logger:   logging.For("capture").With().Str("session", owner).Logger(),
		chunks:   make(chan Chunk, config.BufferChunks),
		drops:    make(chan DropEvent, config.BufferChunks),
		errs:     make(chan error, 1),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Chunks is closed after Stop has flushed the last chunk.
func (h *Hub) Chunks() <-chan Chunk { return h.chunks }

// Drops reports discarded chunks. Signals are best-effort.
func (h *Hub) Drops() <-chan DropEvent { return h.drops }

// Errors reports device loss while streaming.
func (h *Hub) Errors() <-chan error { return h.errs }

// Done is closed once the hub has released its device.
func (h *Hub) Done() <-chan struct{} { return h.done }

func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// Start claims and opens device. A claimed device fails with
// SessionConflictError; an unavailable one with DeviceAccessError.
func (h *Hub) Start(ctx context.Context, device string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started {
		return ErrAlreadyStarted
	}

	release, err := h.registry.Claim(device, h.owner)
	if err != nil {
		return err
	}

	dev, err := h.opener.Open(ctx, device)
	if err != nil {
		release()
		return &DeviceAccessError{Device: device, Err: err}
	}

	h.started = true
	h.device = device
	h.logger.Info().Str("device", device).Dur("interval", h.config.Interval).Msg("capture started")

	go h.run(ctx, dev, release)
	return nil
}

// Stop closes the device, forwards any audio captured but not yet chunked,
// and releases the device claim.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })

	h.mu.Lock()
	started := h.started
	h.mu.Unlock()

	if started {
		<-h.done
	}
}

func (h *Hub) run(ctx context.Context, dev Device, release func()) {
	defer func() {
		close(h.chunks)
		release()
		h.logger.Info().Str("device", h.device).Uint64("chunks", h.seq).Uint64("dropped", h.dropped.Load()).Msg("capture stopped")
		close(h.done)
	}()

	ticker := time.NewTicker(h.config.Interval)
	defer ticker.Stop()

	var (
		pending   []byte
		pendingAt time.Time
		frames    = dev.Frames()
		devErrs   = dev.Errors()
		stopCh    = h.stopCh
		ctxDone   = ctx.Done()
	)

	flush := func() {
		if len(pending) == 0 {
			return
		}
		h.emit(pending, pendingAt)
		pending = nil
	}

	closeDevice := func() {
		stopCh = nil
		ctxDone = nil
		devErrs = nil
		if err := dev.Close(); err != nil {
			h.logger.Warn().Err(err).Msg("closing device")
		}
	}

	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				flush()
				if stopCh != nil {
					// the device went away without being closed
					err := errDeviceEnded
					select {
					case devErr := <-devErrs:
						if devErr != nil {
							err = devErr
						}
					default:
					}
					h.lost(err)
				}
				return
			}
			if len(pending) == 0 {
				pendingAt = frame.Timestamp
			}
			pending = append(pending, frame.Data...)

		case <-ticker.C:
			flush()

		case err := <-devErrs:
			if err == nil {
				continue
			}
			h.lost(err)
			closeDevice()

		case <-stopCh:
			closeDevice()

		case <-ctxDone:
			closeDevice()
		}
	}
}

func (h *Hub) lost(err error) {
	h.logger.Error().Err(err).Msg("device lost")
	select {
	case h.errs <- &DeviceAccessError{Device: h.device, Err: err}:
	default:
	}
}

// emit enqueues a chunk, evicting the oldest queued chunk when full.
func (h *Hub) emit(data []byte, at time.Time) {
	h.seq++
	chunk := Chunk{Seq: h.seq, Data: data, CapturedAt: at}

	for {
		select {
		case h.chunks <- chunk:
			h.metrics.ChunksCaptured.Inc()
			return
		default:
		}

		select {
		case old := <-h.chunks:
			h.dropped.Add(1)
			h.metrics.ChunksDropped.Inc()
			h.logger.Warn().Uint64("seq", old.Seq).Msg("chunk dropped, buffer full")
			select {
			case h.drops <- DropEvent{Seq: old.Seq, At: time.Now()}:
			default:
			}
		default:
		}
	}
}
