package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/leonardotrapani/interpret/internal/capture"
	"github.com/leonardotrapani/interpret/internal/language"
	"github.com/leonardotrapani/interpret/internal/logging"
	"github.com/leonardotrapani/interpret/internal/metrics"
	"github.com/leonardotrapani/interpret/internal/session"
)

// Server exposes sessions over HTTP and their live feeds over websocket.
type Server struct {
	app      *fiber.App
	manager  *session.Manager
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	started  time.Time
	stopWait time.Duration
}

func New(manager *session.Manager, m *metrics.Metrics) *Server {
	if m == nil {
		m = metrics.Discard()
	}
	s := &Server{
		manager:  manager,
		metrics:  m,
		logger:   logging.For("server"),
		started:  time.Now(),
		stopWait: 15 * time.Second,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "interpret",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.app.Use(recover.New())
	s.app.Use(s.requestLogger)
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/healthz", s.handleHealth)
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})))
	s.app.Get("/languages", s.handleLanguages)

	sessions := s.app.Group("/sessions")
	sessions.Post("/", s.handleStart)
	sessions.Get("/", s.handleList)
	sessions.Get("/:id", s.handleGet)
	sessions.Put("/:id/target", s.handleSetTarget)
	sessions.Put("/:id/source", s.handleSetSource)
	sessions.Delete("/:id", s.handleStop)
	sessions.Get("/:id/feed", s.upgradeFeed, websocket.New(s.handleFeed))
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App { return s.app }

// Listen blocks serving on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("http server listening")
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.logger.Debug().
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", c.Response().StatusCode()).
		Dur("took", time.Since(start)).
		Msg("request")
	return err
}

// handleError maps domain errors onto status codes.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
	case errors.Is(err, session.ErrNotFound):
		code = fiber.StatusNotFound
	case capture.IsSessionConflictError(err):
		code = fiber.StatusConflict
	case capture.IsDeviceAccessError(err):
		code = fiber.StatusServiceUnavailable
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "ok",
		"sessions": len(s.manager.Active()),
		"uptime":   time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleLanguages(c *fiber.Ctx) error {
	return c.JSON(language.List())
}

type startRequest struct {
	Device string `json:"device"`
	Source string `json:"source"`
	Target string `json:"target"`
}

func (s *Server) handleStart(c *fiber.Ctx) error {
	var req startRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	}
	if req.Source != "" && req.Source != language.Auto.Code && !language.IsSupported(req.Source) {
		return fiber.NewError(fiber.StatusBadRequest, "unsupported source language "+req.Source)
	}
	if req.Target != "" && !language.IsSupported(req.Target) {
		return fiber.NewError(fiber.StatusBadRequest, "unsupported target language "+req.Target)
	}

	sess, err := s.manager.Start(context.Background(), session.StartOptions{
		Device: req.Device,
		Source: req.Source,
		Target: req.Target,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(sess.Snapshot())
}

func (s *Server) handleList(c *fiber.Ctx) error {
	all := s.manager.List()
	out := make([]session.Snapshot, 0, len(all))
	for _, sess := range all {
		out = append(out, sess.Snapshot())
	}
	return c.JSON(out)
}

func (s *Server) lookup(c *fiber.Ctx) (*session.Session, error) {
	sess, ok := s.manager.Get(c.Params("id"))
	if !ok {
		return nil, session.ErrNotFound
	}
	return sess, nil
}

func (s *Server) handleGet(c *fiber.Ctx) error {
	sess, err := s.lookup(c)
	if err != nil {
		return err
	}
	return c.JSON(sess.Snapshot())
}

type targetRequest struct {
	Target string `json:"target"`
}

func (s *Server) handleSetTarget(c *fiber.Ctx) error {
	sess, err := s.lookup(c)
	if err != nil {
		return err
	}
	var req targetRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if !language.IsSupported(req.Target) {
		return fiber.NewError(fiber.StatusBadRequest, "unsupported target language "+req.Target)
	}
	if !sess.Active() {
		return fiber.NewError(fiber.StatusConflict, "session has ended")
	}
	if err := sess.SetTarget(req.Target); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(sess.Snapshot())
}

type sourceRequest struct {
	Source string `json:"source"`
}

func (s *Server) handleSetSource(c *fiber.Ctx) error {
	sess, err := s.lookup(c)
	if err != nil {
		return err
	}
	var req sourceRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if !sess.Active() {
		return fiber.NewError(fiber.StatusConflict, "session has ended")
	}
	if err := sess.SetSource(req.Source); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(sess.Snapshot())
}

func (s *Server) handleStop(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.stopWait)
	defer cancel()

	sess, err := s.manager.Stop(ctx, c.Params("id"))
	if err != nil && sess == nil {
		return err
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("session", sess.ID()).Msg("stop did not drain cleanly")
	}
	return c.JSON(sess.Snapshot())
}
