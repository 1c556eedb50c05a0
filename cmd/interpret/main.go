package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/leonardotrapani/interpret/internal/bus"
	"github.com/leonardotrapani/interpret/internal/config"
	"github.com/leonardotrapani/interpret/internal/daemon"
	"github.com/leonardotrapani/interpret/internal/deps"
	"github.com/leonardotrapani/interpret/internal/language"
	"github.com/leonardotrapani/interpret/internal/logging"
	"github.com/leonardotrapani/interpret/internal/notify"
	"github.com/leonardotrapani/interpret/internal/session"
	"github.com/leonardotrapani/interpret/internal/tui"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "interpret",
	Short:        "Live meeting interpretation for the desktop",
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(
		serveCmd(),
		startCmd(),
		stopCmd(),
		toggleCmd(),
		targetCmd(),
		statusCmd(),
		versionCmd(),
		quitCmd(),
		listenCmd(),
		configureCmd(),
		languagesCmd(),
		doctorCmd(),
	)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewManager("")
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			c := cfg.GetConfig()
			logging.Setup(c.Log.Level)

			d := daemon.New(cfg, session.DefaultBuilder, notify.New(c.NotificationType()))
			return d.Run()
		},
	}
}

// sessionFlags are the options shared by start, toggle and listen.
type sessionFlags struct {
	device string
	source string
	target string
}

func (f *sessionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.device, "device", "", "capture device (default from config)")
	cmd.Flags().StringVar(&f.source, "source", "", "source language: auto, en, zh, ko, ja")
	cmd.Flags().StringVar(&f.target, "target", "", "initial target language: en, zh, ko, ja")
}

func (f *sessionFlags) args() []string {
	return []string{
		bus.Arg("device", f.device),
		bus.Arg("source", f.source),
		bus.Arg("target", f.target),
	}
}

// send runs one control command and prints the reply. ERR replies become
// command errors.
func send(cmd *cobra.Command, c byte, what string, args ...string) error {
	resp, err := bus.SendCommand(c, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", what, err)
	}
	resp = strings.TrimSpace(resp)
	if msg, ok := strings.CutPrefix(resp, "ERR "); ok {
		return errors.New(msg)
	}
	fmt.Fprintln(cmd.OutOrStdout(), resp)
	return nil
}

func startCmd() *cobra.Command {
	var f sessionFlags
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start an interpretation session in the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(cmd, bus.CmdStart, "start session", f.args()...)
		},
	}
	f.register(cmd)
	return cmd
}

func stopCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop a session (the newest one by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(cmd, bus.CmdStop, "stop session", bus.Arg("id", id))
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "session to stop")
	return cmd
}

func toggleCmd() *cobra.Command {
	var f sessionFlags
	cmd := &cobra.Command{
		Use:   "toggle",
		Short: "Start a session on the device, or stop the one running",
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(cmd, bus.CmdToggle, "toggle session", f.args()...)
		},
	}
	f.register(cmd)
	return cmd
}

func targetCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "target <language>",
		Short: "Change the target language of a running session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(cmd, bus.CmdTarget, "set target", bus.Arg("target", args[0]), bus.Arg("id", id))
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "session to change (the newest one by default)")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List running sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(cmd, bus.CmdStatus, "get status")
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Get protocol version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(cmd, bus.CmdVersion, "get version")
		},
	}
}

func quitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quit",
		Short: "Stop the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(cmd, bus.CmdQuit, "stop daemon")
		},
	}
}

func listenCmd() *cobra.Command {
	var (
		f    sessionFlags
		demo bool
	)
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Interpret in the foreground until Ctrl-C",
		Long: `Run one session in this terminal without the daemon.
Source lines and translations are printed as they are committed.
With --demo the session runs offline on scripted speech.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListen(cmd, f, demo)
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&demo, "demo", false, "use scripted speech instead of the microphone and providers")
	return cmd
}

func runListen(cmd *cobra.Command, f sessionFlags, demo bool) error {
	cfg := config.DefaultConfig()
	if !demo {
		var err error
		if cfg, err = config.Load(); err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}
	level := cfg.Log.Level
	if level == "info" {
		level = "warn"
	}
	logging.Setup(level)

	sc := cfg.ToSessionConfig()
	build := session.DefaultBuilder
	if demo {
		build = session.DemoBuilder
		if f.device == "" {
			f.device = "demo"
		}
	}
	mgr := session.NewManager(func() session.Config { return sc }, build, nil, nil)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := mgr.Start(ctx, session.StartOptions{Device: f.device, Source: f.source, Target: f.target})
	if err != nil {
		return err
	}

	out := tui.NewListener(cmd.OutOrStdout())
	events, unsubscribe := s.Subscribe()
	defer unsubscribe()
	out.Header(s.Snapshot())

	done := make(chan struct{})
	go func() {
		defer close(done)
		out.Run(events)
	}()

	select {
	case <-ctx.Done():
		stopCtx, cancel := context.WithTimeout(context.Background(), sc.StopTimeout+time.Second)
		defer cancel()
		if err := s.Stop(stopCtx); err != nil {
			return err
		}
		<-done
	case <-done:
	}

	snap := s.Snapshot()
	out.Transcript(snap)
	if snap.Error != "" {
		return errors.New(snap.Error)
	}
	return nil
}

func configureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "configure",
		Short: "Interactive configuration setup",
		Long: `Interactive configuration for interpret.
This will guide you through setting up:
- Provider API keys (OpenAI, Groq, LibreTranslate)
- Capture device and chunking
- Transcription and translation providers and languages
- Realtime server, HTTP API and notifications`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigure()
		},
	}
}

func runConfigure() error {
	// Load existing config or create default
	cfg, err := config.Load()
	if err != nil && !errors.Is(err, config.ErrConfigNotFound) {
		return fmt.Errorf("failed to load config: %w", err)
	}

	result, err := tui.Run(cfg)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if result.Cancelled {
		fmt.Println("Configuration cancelled.")
		return nil
	}

	if err := result.Config.Validate(); err != nil {
		fmt.Printf("Configuration validation failed: %v\n", err)
		return err
	}

	path, err := config.GetConfigPath()
	if err != nil {
		return err
	}
	if err := config.Save(path, result.Config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println()
	fmt.Println("Configuration saved successfully!")
	fmt.Printf("Config file location: %s\n", path)
	fmt.Println("A running daemon picks up the change automatically.")
	return nil
}

func languagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List supported meeting languages",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			for _, l := range language.List() {
				fmt.Fprintf(w, "%-4s %-10s %s\n", l.Code, l.Name, l.NativeName)
			}
			fmt.Fprintf(w, "%-4s %s\n", language.Auto.Code, "detect the source and switch the target")
			return nil
		},
	}
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the external programs interpret needs",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			statuses := deps.CheckAll()
			for _, s := range statuses {
				switch {
				case s.Installed:
					fmt.Fprintf(w, "%s %-12s %s\n", tui.StyleSuccess.Render("ok"), s.Name, s.Version)
				case s.Required:
					fmt.Fprintf(w, "%s %-12s needed for %s\n", tui.StyleError.Render("missing"), s.Name, s.Purpose)
				default:
					fmt.Fprintf(w, "%s %-12s optional, used for %s\n", tui.StyleWarning.Render("missing"), s.Name, s.Purpose)
				}
			}
			if missing := deps.Missing(statuses); len(missing) > 0 {
				return fmt.Errorf("missing required tools: %s", strings.Join(missing, ", "))
			}
			return nil
		},
	}
}
