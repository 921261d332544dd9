//go:build linux

package linuxinput

import (
	"fmt"

	"gestured/internal/core/gesture"

	evdev "github.com/holoplot/go-evdev"
)

// VirtualDevice is the uinput device every synthesized or forwarded event is
// written to. Its capabilities are fixed at creation.
type VirtualDevice struct {
	dev    *evdev.InputDevice
	name   string
	caps   gesture.Capabilities
	closed bool
}

var _ gesture.Sink = (*VirtualDevice)(nil)

func CreateVirtualDevice(name string, id evdev.InputID, caps gesture.Capabilities) (*VirtualDevice, error) {
	if len(caps) == 0 {
		return nil, fmt.Errorf("virtual device %q declares no capabilities", name)
	}
	if err := checkUinputAccess(); err != nil {
		return nil, err
	}
	dev, err := evdev.CreateDevice(name, id, toEvdevCapabilities(caps))
	if err != nil {
		return nil, err
	}
	return &VirtualDevice{dev: dev, name: name, caps: caps}, nil
}

func (v *VirtualDevice) Capabilities() gesture.Capabilities { return v.caps }

func (v *VirtualDevice) Emit(event gesture.Event) error {
	if v.closed {
		return gesture.ErrSinkClosed
	}
	if !v.caps.Accepts(event) {
		return fmt.Errorf("%w: type %d code %d", gesture.ErrUndeclaredCode, event.Type, event.Code)
	}
	return v.dev.WriteOne(&evdev.InputEvent{
		Type:  evdev.EvType(event.Type),
		Code:  evdev.EvCode(event.Code),
		Value: event.Value,
	})
}

func (v *VirtualDevice) Sync() error {
	if v.closed {
		return gesture.ErrSinkClosed
	}
	return v.dev.WriteOne(&evdev.InputEvent{
		Type: evdev.EV_SYN,
		Code: evdev.SYN_REPORT,
	})
}

// Close destroys the device. Later calls do nothing.
func (v *VirtualDevice) Close() error {
	if v.closed {
		return nil
	}
	v.closed = true
	return v.dev.Close()
}
