package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/leonardotrapani/interpret/internal/logging"
)

// PipeWireConfig describes the pw-record invocation.
type PipeWireConfig struct {
	SampleRate        int
	Channels          int
	Format            string
	BufferSize        int
	ChannelBufferSize int
}

func DefaultPipeWireConfig() PipeWireConfig {
	return PipeWireConfig{
		SampleRate:        16000,
		Channels:          1,
		Format:            "s16",
		BufferSize:        8192,
		ChannelBufferSize: 30,
	}
}

func (c PipeWireConfig) validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("invalid SampleRate: %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("invalid Channels: %d", c.Channels)
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("invalid BufferSize: %d", c.BufferSize)
	}
	if c.ChannelBufferSize <= 0 {
		return fmt.Errorf("invalid ChannelBufferSize: %d", c.ChannelBufferSize)
	}
	if c.Format == "" {
		return fmt.Errorf("invalid Format: empty")
	}
	return nil
}

// PipeWire opens capture devices through the pw-record CLI.
type PipeWire struct {
	config PipeWireConfig
}

func NewPipeWire(config PipeWireConfig) *PipeWire {
	return &PipeWire{config: config}
}

func (p *PipeWire) Open(ctx context.Context, device string) (Device, error) {
	if err := p.config.validate(); err != nil {
		return nil, err
	}
	if err := CheckPipeWireAvailable(ctx); err != nil {
		return nil, err
	}

	devCtx, cancel := context.WithCancel(context.Background())
	d := &pwDevice{
		config: p.config,
		device: device,
		frames: make(chan Frame, p.config.ChannelBufferSize),
		errs:   make(chan error, 1),
		cancel: cancel,
	}

	cmd := exec.CommandContext(devCtx, "pw-record", d.args()...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start pw-record: %w", err)
	}
	d.cmd = cmd

	go func() {
		logger := logging.For("pipewire")
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			logger.Debug().Str("device", device).Msg(scanner.Text())
		}
	}()

	d.wg.Add(1)
	go d.readLoop(devCtx, stdout)
	return d, nil
}

type pwDevice struct {
	config PipeWireConfig
	device string
	cmd    *exec.Cmd
	frames chan Frame
	errs   chan error
	cancel context.CancelFunc
	once   sync.Once
	wg     sync.WaitGroup
}

func (d *pwDevice) Frames() <-chan Frame { return d.frames }
func (d *pwDevice) Errors() <-chan error { return d.errs }

func (d *pwDevice) Close() error {
	d.once.Do(d.cancel)
	d.wg.Wait()
	return nil
}

func (d *pwDevice) args() []string {
	args := []string{
		"--format", d.config.Format,
		"--rate", strconv.Itoa(d.config.SampleRate),
		"--channels", strconv.Itoa(d.config.Channels),
		"-",
	}
	if d.device != "" {
		args = append(args, "--target", d.device)
	}
	return args
}

func (d *pwDevice) readLoop(ctx context.Context, stdout io.Reader) {
	logger := logging.For("pipewire")
	waited := false
	defer func() {
		if !waited {
			_ = d.cmd.Wait()
		}
		close(d.frames)
		d.wg.Done()
	}()

	buffer := make([]byte, d.config.BufferSize)
	var dropped int
	lastDropLog := time.Now()

	for {
		n, readErr := stdout.Read(buffer)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buffer[:n])

			select {
			case d.frames <- Frame{Data: data, Timestamp: time.Now()}:
			case <-ctx.Done():
				return
			default:
				dropped++
				if time.Since(lastDropLog) > time.Second {
					logger.Warn().Int("dropped", dropped).Msg("dropped frames due to backpressure")
					lastDropLog = time.Now()
					dropped = 0
				}
			}
		}

		if readErr != nil {
			if ctx.Err() != nil {
				return
			}
			err := fmt.Errorf("read audio: %w", readErr)
			if errors.Is(readErr, io.EOF) {
				waited = true
				if waitErr := d.cmd.Wait(); waitErr != nil {
					err = fmt.Errorf("pw-record exited unexpectedly: %w", waitErr)
				} else {
					err = errors.New("pw-record exited unexpectedly")
				}
			}
			// reported before frames close so the hub sees it
			select {
			case d.errs <- err:
			default:
			}
			return
		}
	}
}

// CheckPipeWireAvailable verifies pw-record exists and the PipeWire daemon
// answers.
func CheckPipeWireAvailable(ctx context.Context) error {
	if _, err := exec.LookPath("pw-record"); err != nil {
		return fmt.Errorf("pw-record not found: %w (install pipewire-tools)", err)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := exec.CommandContext(checkCtx, "pw-cli", "info").Run(); err != nil {
		return fmt.Errorf("PipeWire not running or accessible: %w", err)
	}
	return nil
}
