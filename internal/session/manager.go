package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/leonardotrapani/interpret/internal/capture"
	"github.com/leonardotrapani/interpret/internal/logging"
	"github.com/leonardotrapani/interpret/internal/metrics"
	"github.com/leonardotrapani/interpret/internal/notify"
)

var ErrNotFound = errors.New("session not found")

// maxFinished bounds how many ended sessions stay queryable.
const maxFinished = 16

// StartOptions override the configured defaults for one session.
type StartOptions struct {
	Device string
	Source string
	Target string
}

// Manager owns the device registry and every session of the process.
type Manager struct {
	config   func() Config
	build    Builder
	registry *capture.Registry
	metrics  *metrics.Metrics
	notifier notify.Notifier
	logger   zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	order    []string
}

// NewManager reads the configuration through config on every Start, so
// reloaded settings apply to new sessions only.
func NewManager(config func() Config, build Builder, m *metrics.Metrics, n notify.Notifier) *Manager {
	if build == nil {
		build = DefaultBuilder
	}
	if m == nil {
		m = metrics.Discard()
	}
	if n == nil {
		n = notify.Nop{}
	}
	return &Manager{
		config:   config,
		build:    build,
		registry: capture.NewRegistry(),
		metrics:  m,
		notifier: n,
		logger:   logging.For("sessions"),
		sessions: make(map[string]*Session),
	}
}

// Start creates and starts a session. A device already in use fails with
// *capture.SessionConflictError and leaves the owner untouched.
func (m *Manager) Start(ctx context.Context, opts StartOptions) (*Session, error) {
	cfg := m.config()
	if opts.Device != "" {
		cfg.Device = opts.Device
	}
	if opts.Source != "" {
		cfg.Source = opts.Source
	}
	if opts.Target != "" {
		cfg.Target = opts.Target
	}

	if owner, busy := m.registry.Owner(cfg.Device); busy {
		return nil, &capture.SessionConflictError{Device: cfg.Device, Owner: owner}
	}

	caps, err := m.build(cfg)
	if err != nil {
		return nil, fmt.Errorf("bind services: %w", err)
	}
	if err := caps.validate(); err != nil {
		return nil, fmt.Errorf("bind services: %w", err)
	}

	s := newSession(uuid.NewString(), cfg, caps, m.registry, m.metrics)
	s.onEnd = m.ended
	if err := s.start(); err != nil {
		m.logger.Warn().Err(err).Str("device", cfg.Device).Msg("session start failed")
		if !capture.IsSessionConflictError(err) {
			m.notifier.Error(fmt.Sprintf("Interpreter failed to start: %v", err))
		}
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.id] = s
	m.order = append(m.order, s.id)
	m.pruneLocked()
	m.mu.Unlock()

	m.metrics.SessionsStarted.Inc()
	m.metrics.ActiveSessions.Inc()
	m.notifier.SessionStarted(s.id, s.deviceName())
	return s, nil
}

func (m *Manager) ended(s *Session) {
	m.metrics.ActiveSessions.Dec()
	if err := s.Err(); err != nil {
		m.notifier.Error(fmt.Sprintf("Interpreter session ended: %v", err))
		return
	}
	m.notifier.SessionStopped(s.id)
}

// pruneLocked forgets the oldest ended sessions beyond maxFinished.
func (m *Manager) pruneLocked() {
	finished := 0
	for i := len(m.order) - 1; i >= 0; i-- {
		if m.sessions[m.order[i]].Active() {
			continue
		}
		finished++
		if finished > maxFinished {
			delete(m.sessions, m.order[i])
			m.order = append(m.order[:i], m.order[i+1:]...)
		}
	}
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// List returns sessions oldest first.
func (m *Manager) List() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.sessions[id])
	}
	return out
}

// Active returns running sessions ordered by start time.
func (m *Manager) Active() []*Session {
	var out []*Session
	for _, s := range m.List() {
		if s.Active() {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].started.Before(out[j].started) })
	return out
}

// OnDevice returns the running session holding device.
func (m *Manager) OnDevice(device string) (*Session, bool) {
	owner, ok := m.registry.Owner(device)
	if !ok {
		return nil, false
	}
	return m.Get(owner)
}

func (m *Manager) Stop(ctx context.Context, id string) (*Session, error) {
	s, ok := m.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return s, s.Stop(ctx)
}

// StopAll stops every running session.
func (m *Manager) StopAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, s := range m.Active() {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			if err := s.Stop(ctx); err != nil {
				m.logger.Warn().Err(err).Str("session", s.id).Msg("stop failed")
			}
		}(s)
	}
	wg.Wait()
}
