package capture

import (
	"errors"
	"fmt"
)

var ErrAlreadyStarted = errors.New("capture: hub already started")

var errDeviceEnded = errors.New("device stream ended unexpectedly")

// DeviceAccessError reports a device that could not be opened or was lost
// while streaming.
type DeviceAccessError struct {
	Device string
	Err    error
}

func (e *DeviceAccessError) Error() string {
	if e == nil || e.Err == nil {
		return fmt.Sprintf("device access error: %s", e.deviceName())
	}
	return fmt.Sprintf("device access error: %s: %v", e.deviceName(), e.Err)
}

func (e *DeviceAccessError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *DeviceAccessError) deviceName() string {
	if e == nil || e.Device == "" {
		return "default"
	}
	return e.Device
}

// SessionConflictError is returned when a device is already claimed by
// another session.
type SessionConflictError struct {
	Device string
	Owner  string
}

func (e *SessionConflictError) Error() string {
	return fmt.Sprintf("device %q already claimed by session %s", e.Device, e.Owner)
}

func IsDeviceAccessError(err error) bool {
	var target *DeviceAccessError
	return errors.As(err, &target)
}

func IsSessionConflictError(err error) bool {
	var target *SessionConflictError
	return errors.As(err, &target)
}
