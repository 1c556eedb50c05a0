package capture

import (
	"context"
	"sync"
	"time"
)

// Frame is a raw slice of PCM read from a device.
type Frame struct {
	Data      []byte
	Timestamp time.Time
}

// Device is an opened capture source. Frames must be closed once the
// device has stopped producing, including after Close.
type Device interface {
	Frames() <-chan Frame
	Errors() <-chan error
	Close() error
}

// Opener acquires a device by reference.
type Opener interface {
	Open(ctx context.Context, device string) (Device, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, device string) (Device, error)

func (f OpenerFunc) Open(ctx context.Context, device string) (Device, error) {
	return f(ctx, device)
}

// MemoryDevice is a Device fed by the caller. It backs tests and the demo
// listener.
type MemoryDevice struct {
	frames chan Frame
	errs   chan error
	done   chan struct{}
	once   sync.Once

	mu     sync.Mutex
	closed bool
}

func NewMemoryDevice(buffer int) *MemoryDevice {
	return &MemoryDevice{
		frames: make(chan Frame, buffer),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
}

func (d *MemoryDevice) Frames() <-chan Frame { return d.frames }
func (d *MemoryDevice) Errors() <-chan error { return d.errs }

// Write queues a frame. It reports false once the device is closed.
func (d *MemoryDevice) Write(data []byte) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	select {
	case d.frames <- Frame{Data: data, Timestamp: time.Now()}:
		return true
	case <-d.done:
		return false
	}
}

// Fail reports a device error, as if the hardware went away.
func (d *MemoryDevice) Fail(err error) {
	select {
	case d.errs <- err:
	default:
	}
}

func (d *MemoryDevice) Close() error {
	d.once.Do(func() { close(d.done) })
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	close(d.frames)
	return nil
}

// StaticOpener hands out a single pre-built device.
func StaticOpener(dev Device) Opener {
	return OpenerFunc(func(ctx context.Context, device string) (Device, error) {
		return dev, nil
	})
}

// SilenceOpener opens devices that emit a zeroed frame of frameSize bytes
// every interval until closed. It drives the offline demo, where the
// scripted recognizer needs chunks but not their content.
func SilenceOpener(interval time.Duration, frameSize int) Opener {
	return OpenerFunc(func(ctx context.Context, device string) (Device, error) {
		dev := NewMemoryDevice(4)
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			frame := make([]byte, frameSize)
			for range ticker.C {
				if !dev.Write(frame) {
					return
				}
			}
		}()
		return dev, nil
	})
}
