//go:build linux

package linuxinput

import (
	"errors"
	"fmt"
	"time"

	"gestured/internal/core/gesture"
)

const defaultIdentifyTimeout = 10 * time.Second

// KeyPress is what IdentifyNextKey saw.
type KeyPress struct {
	Code   uint16
	Name   string
	Path   string
	Device string
}

// IdentifyNextKey waits for the next key or button press on any device
// filter accepts. Devices are read without grabbing them.
func IdentifyNextKey(filter gesture.DeviceFilter, timeout time.Duration, logger Logger) (KeyPress, error) {
	if timeout <= 0 {
		timeout = defaultIdentifyTimeout
	}
	if filter.Require == nil {
		filter.Require = func(d gesture.PhysicalDevice) bool { return d.Capabilities.HasType(gesture.EventTypeKey) }
	}

	devices, err := Discover(filter, logger)
	if err != nil {
		return KeyPress{}, err
	}
	sources := make([]*Source, 0, len(devices))
	for _, dev := range devices {
		src, err := OpenSource(dev, false)
		if err != nil {
			logger.Warn("Cannot read device", "path", dev.Path(), "err", err)
			continue
		}
		sources = append(sources, src)
	}
	if len(sources) == 0 {
		return KeyPress{}, gesture.ErrNoDevices
	}

	done := make(chan struct{})
	found := make(chan KeyPress, 1)
	for _, src := range sources {
		go watchForPress(src, done, found)
	}
	defer func() {
		close(done)
		var errs []error
		for _, src := range sources {
			errs = append(errs, src.Close())
		}
		if err := errors.Join(errs...); err != nil {
			logger.Debug("Closing devices failed", "err", err)
		}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case press := <-found:
		return press, nil
	case <-timer.C:
		return KeyPress{}, fmt.Errorf("timed out after %s waiting for a key or button press", timeout)
	}
}

func watchForPress(src *Source, done <-chan struct{}, found chan<- KeyPress) {
	for {
		select {
		case <-done:
			return
		default:
		}

		events, err := src.Read()
		if err != nil {
			if isWouldBlockError(err) {
				if !sleepUntil(done, idlePoll) {
					return
				}
				continue
			}
			return
		}
		for _, event := range events {
			if event.Type != gesture.EventTypeKey || event.Value != gesture.ValuePress {
				continue
			}
			select {
			case found <- KeyPress{Code: event.Code, Name: FormatCodeName(event.Code), Path: src.Path(), Device: src.Name()}:
			default:
			}
			return
		}
	}
}

func sleepUntil(done <-chan struct{}, duration time.Duration) bool {
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-done:
		return false
	case <-timer.C:
		return true
	}
}
