package daemon

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/leonardotrapani/interpret/internal/bus"
	"github.com/leonardotrapani/interpret/internal/config"
	"github.com/leonardotrapani/interpret/internal/logging"
	"github.com/leonardotrapani/interpret/internal/metrics"
	"github.com/leonardotrapani/interpret/internal/notify"
	"github.com/leonardotrapani/interpret/internal/server"
	"github.com/leonardotrapani/interpret/internal/session"
)

const shutdownTimeout = 15 * time.Second

type Daemon struct {
	cfg      *config.Manager
	sessions *session.Manager
	server   *server.Server
	notifier notify.Notifier
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New wires the session manager to cfg. A nil builder binds real devices
// and providers; a nil notifier follows the notifications config.
func New(cfg *config.Manager, build session.Builder, n notify.Notifier) *Daemon {
	if n == nil {
		n = notify.New(cfg.GetConfig().NotificationType())
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	ctx, cancel := context.WithCancel(context.Background())
	d := &Daemon{
		cfg:      cfg,
		notifier: n,
		logger:   logging.For("daemon"),
		ctx:      ctx,
		cancel:   cancel,
	}
	d.sessions = session.NewManager(func() session.Config {
		return cfg.GetConfig().ToSessionConfig()
	}, build, m, n)
	d.server = server.New(d.sessions, m)
	return d
}

// Sessions exposes the session manager.
func (d *Daemon) Sessions() *session.Manager { return d.sessions }

func (d *Daemon) Run() error {
	if err := bus.CheckExistingDaemon(); err != nil {
		return err
	}

	ln, err := bus.Listen()
	if err != nil {
		return err
	}
	defer ln.Close()

	if err := bus.CreatePidFile(); err != nil {
		return fmt.Errorf("failed to create PID file: %w", err)
	}
	defer bus.RemovePidFile()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			d.logger.Info().Str("signal", sig.String()).Msg("shutting down gracefully")
			d.cancel()
		case <-d.ctx.Done():
		}
	}()

	if err := d.cfg.StartWatching(d.ctx); err != nil {
		d.logger.Warn().Err(err).Msg("config hot reload disabled")
	}
	defer d.cfg.Stop()
	d.cfg.OnReload(func(c *config.Config) {
		d.logger.Info().Msg("configuration reloaded, applies to new sessions")
	})

	if sc := d.cfg.GetConfig().Server; sc.Enabled {
		go func() {
			if err := d.server.Listen(sc.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				d.logger.Error().Err(err).Str("addr", sc.Addr).Msg("http server failed")
			}
		}()
	}

	// Close the listener when context is done
	go func() {
		<-d.ctx.Done()
		ln.Close()
	}()

	d.logger.Info().Msg("daemon started, listening on socket")

	for {
		c, err := ln.Accept()
		if err != nil {
			if d.ctx.Err() != nil {
				d.logger.Info().Msg("shutdown requested")
				return d.shutdown()
			}
			d.logger.Error().Err(err).Msg("accept error")
			d.shutdown()
			return fmt.Errorf("accept failed: %w", err)
		}
		go d.handle(c)
	}
}

func (d *Daemon) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	d.sessions.StopAll(ctx)
	if err := d.server.Shutdown(ctx); err != nil {
		d.logger.Warn().Err(err).Msg("http server shutdown")
	}
	return nil
}

// Quit stops the daemon as if it received 'q'.
func (d *Daemon) Quit() { d.cancel() }

func (d *Daemon) handle(c net.Conn) {
	defer c.Close()

	line, err := bufio.NewReader(c).ReadString('\n')
	if err != nil {
		d.logger.Warn().Err(err).Msg("client read error")
		fmt.Fprintf(c, "ERR read_error: %v\n", err)
		return
	}
	req, err := bus.ParseRequest(line)
	if err != nil {
		fmt.Fprint(c, "ERR empty\n")
		return
	}

	switch req.Cmd {
	case bus.CmdToggle:
		fmt.Fprint(c, d.toggle(req.Args)+"\n")
	case bus.CmdStart:
		fmt.Fprint(c, d.start(req.Args)+"\n")
	case bus.CmdStop:
		fmt.Fprint(c, d.stop(req.Args)+"\n")
	case bus.CmdTarget:
		fmt.Fprint(c, d.setTarget(req.Args)+"\n")
	case bus.CmdStatus:
		fmt.Fprint(c, d.status()+"\n")
	case bus.CmdVersion:
		fmt.Fprintf(c, "STATUS proto=%s\n", bus.ProtoVer)
	case bus.CmdQuit:
		fmt.Fprint(c, "OK quitting\n")
		d.cancel()
	default:
		d.logger.Warn().Str("cmd", string(req.Cmd)).Msg("unknown command")
		fmt.Fprintf(c, "ERR unknown=%q\n", req.Cmd)
	}
}

// toggle stops the session on the requested device, or starts one.
func (d *Daemon) toggle(args map[string]string) string {
	device := args["device"]
	if device == "" {
		device = d.cfg.GetConfig().Capture.Device
	}
	if s, ok := d.sessions.OnDevice(device); ok {
		return d.stopSession(s)
	}
	return d.start(args)
}

func (d *Daemon) start(args map[string]string) string {
	s, err := d.sessions.Start(d.ctx, session.StartOptions{
		Device: args["device"],
		Source: args["source"],
		Target: args["target"],
	})
	if err != nil {
		return "ERR " + oneLine(err)
	}
	return fmt.Sprintf("OK started id=%s target=%s", s.ID(), s.Target())
}

func (d *Daemon) stop(args map[string]string) string {
	if id := args["id"]; id != "" {
		s, ok := d.sessions.Get(id)
		if !ok {
			return "ERR " + oneLine(session.ErrNotFound)
		}
		return d.stopSession(s)
	}
	active := d.sessions.Active()
	if len(active) == 0 {
		return "ERR no active session"
	}
	return d.stopSession(active[len(active)-1])
}

func (d *Daemon) stopSession(s *session.Session) string {
	ctx, cancel := context.WithTimeout(d.ctx, shutdownTimeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		return "ERR " + oneLine(err)
	}
	return fmt.Sprintf("OK stopped id=%s segments=%d", s.ID(), len(s.Snapshot().Segments))
}

func (d *Daemon) setTarget(args map[string]string) string {
	target := args["target"]
	var s *session.Session
	if id := args["id"]; id != "" {
		s, _ = d.sessions.Get(id)
	} else if active := d.sessions.Active(); len(active) > 0 {
		s = active[len(active)-1]
	}
	if s == nil || !s.Active() {
		return "ERR no active session"
	}
	if err := s.SetTarget(target); err != nil {
		return "ERR " + oneLine(err)
	}
	return fmt.Sprintf("OK target=%s id=%s", s.Target(), s.ID())
}

// status reports every running session on one line.
func (d *Daemon) status() string {
	active := d.sessions.Active()
	var b strings.Builder
	fmt.Fprintf(&b, "STATUS active=%d", len(active))
	for _, s := range active {
		snap := s.Snapshot()
		fmt.Fprintf(&b, " session=%s,device=%s,state=%s,mode=%s,target=%s", snap.ID, snap.Device, snap.State, snap.Mode, snap.Target)
	}
	return b.String()
}

func oneLine(err error) string {
	return strings.ReplaceAll(err.Error(), "\n", " ")
}
