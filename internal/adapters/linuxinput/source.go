//go:build linux

package linuxinput

import (
	"errors"
	"fmt"
	"sync"

	"gestured/internal/core/gesture"

	evdev "github.com/holoplot/go-evdev"
)

const readBatch = 64

// inputDevice is the part of *evdev.InputDevice a Source drives.
type inputDevice interface {
	Path() string
	Name() (string, error)
	Grab() error
	Ungrab() error
	NonBlock() error
	ReadSlice(count int) ([]evdev.InputEvent, error)
	Close() error
}

var _ inputDevice = (*evdev.InputDevice)(nil)

// Source is one opened physical device, optionally grabbed. It owns the
// device handle; Close releases the grab before the handle on every path.
type Source struct {
	dev  inputDevice
	path string
	name string
	// id tells apart successive opens of the same node.
	id      string
	grabbed bool

	closeOnce sync.Once
	closeErr  error
}

// OpenSource takes ownership of dev. On failure dev is closed.
func OpenSource(dev inputDevice, grab bool) (*Source, error) {
	s := &Source{dev: dev, path: dev.Path()}
	s.id = s.path
	s.name, _ = dev.Name()

	if grab {
		if err := dev.Grab(); err != nil {
			_ = dev.Close()
			return nil, fmt.Errorf("grab %s: %w", s.path, err)
		}
		s.grabbed = true
	}
	if err := dev.NonBlock(); err != nil {
		closeErr := s.Close()
		return nil, errors.Join(fmt.Errorf("set nonblocking mode for %s: %w", s.path, err), closeErr)
	}
	return s, nil
}

func (s *Source) Path() string  { return s.path }
func (s *Source) ID() string    { return s.id }
func (s *Source) Name() string  { return s.name }
func (s *Source) Grabbed() bool { return s.grabbed }

// Read returns the events currently queued on the device. It fails with
// EAGAIN when nothing is pending.
func (s *Source) Read() ([]gesture.Event, error) {
	raw, err := s.dev.ReadSlice(readBatch)
	if err != nil {
		return nil, err
	}
	events := make([]gesture.Event, 0, len(raw))
	for _, event := range raw {
		events = append(events, gesture.Event{
			Type:  uint16(event.Type),
			Code:  uint16(event.Code),
			Value: event.Value,
		})
	}
	return events, nil
}

// Close is safe to call more than once and from any goroutine. Ungrab
// failures on a vanished device are expected and not reported.
func (s *Source) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.grabbed {
			if err := s.dev.Ungrab(); err != nil && !isDeviceClosedError(err) {
				errs = append(errs, fmt.Errorf("ungrab %s: %w", s.path, err))
			}
		}
		if err := s.dev.Close(); err != nil && !isDeviceClosedError(err) {
			errs = append(errs, fmt.Errorf("close %s: %w", s.path, err))
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
