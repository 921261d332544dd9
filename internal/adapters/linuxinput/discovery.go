//go:build linux

package linuxinput

import (
	"fmt"
	"os"
	"sort"

	"gestured/internal/core/gesture"

	evdev "github.com/holoplot/go-evdev"
)

type DeviceInfo struct {
	gesture.PhysicalDevice
	Verdict    gesture.Rejection
	IsKeyboard bool
	IsPointer  bool
}

func (d DeviceInfo) IsVirtual() bool {
	return d.BusType == gesture.BusVirtual
}

// ListInputDevices describes every event node and what filter would make of
// it. Nodes that cannot be opened are skipped.
func ListInputDevices(filter gesture.DeviceFilter) ([]DeviceInfo, error) {
	paths, err := listPaths()
	if err != nil {
		return nil, err
	}

	devices := make([]DeviceInfo, 0, len(paths))
	for _, path := range paths {
		dev, err := openInputDevice(path.Path)
		if err != nil {
			continue
		}
		info := describe(dev, path.Name)
		_ = dev.Close()

		devices = append(devices, DeviceInfo{
			PhysicalDevice: info,
			Verdict:        filter.Check(info),
			IsKeyboard:     gesture.IsKeyboard(info),
			IsPointer:      gesture.IsPointer(info),
		})
	}
	return devices, nil
}

// Discover opens every device filter accepts. Devices that cannot be probed
// are skipped; only an empty result is an error.
func Discover(filter gesture.DeviceFilter, logger Logger) ([]*evdev.InputDevice, error) {
	paths, err := listPaths()
	if err != nil {
		return nil, fmt.Errorf("list input devices: %w", err)
	}

	devices := make([]*evdev.InputDevice, 0, len(paths))
	permissionDenied := false
	for _, path := range paths {
		dev, err := openInputDevice(path.Path)
		if err != nil {
			if isPermissionError(err) {
				permissionDenied = true
				logger.Warn("Permission denied probing device", "path", path.Path)
			} else {
				logger.Debug("Cannot open device", "path", path.Path, "err", err)
			}
			continue
		}

		info := describe(dev, path.Name)
		if verdict := filter.Check(info); verdict != gesture.Accepted {
			logger.Debug("Skipping device", "path", info.Path, "name", info.Name, "reason", verdict.String())
			_ = dev.Close()
			continue
		}
		logger.Info("Found device", "path", info.Path, "name", info.Name, "keyboard", gesture.IsKeyboard(info), "pointer", gesture.IsPointer(info))
		devices = append(devices, dev)
	}

	if len(devices) == 0 {
		if permissionDenied {
			return nil, fmt.Errorf("%w: permission denied while probing /dev/input (run as root or fix udev rules)", gesture.ErrNoDevices)
		}
		return nil, gesture.ErrNoDevices
	}
	return devices, nil
}

func listPaths() ([]evdev.InputPath, error) {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return nil, err
	}
	sort.Slice(paths, func(i, j int) bool {
		return paths[i].Path < paths[j].Path
	})
	return paths, nil
}

func openInputDevice(path string) (*evdev.InputDevice, error) {
	return evdev.OpenWithFlags(path, os.O_RDONLY)
}

func describe(dev *evdev.InputDevice, fallbackName string) gesture.PhysicalDevice {
	info := gesture.PhysicalDevice{
		Path:         dev.Path(),
		Name:         fallbackName,
		Capabilities: capabilitiesOf(dev),
	}
	if name, err := dev.Name(); err == nil && name != "" {
		info.Name = name
	}
	if id, err := dev.InputID(); err == nil {
		info.BusType = id.BusType
		info.Vendor = id.Vendor
		info.Product = id.Product
	}
	return info
}

func capabilitiesOf(dev *evdev.InputDevice) gesture.Capabilities {
	caps := make(gesture.Capabilities)
	for _, eventType := range dev.CapableTypes() {
		if eventType == evdev.EV_SYN {
			continue
		}
		codes := dev.CapableEvents(eventType)
		if len(codes) == 0 {
			continue
		}
		converted := make([]uint16, 0, len(codes))
		for _, code := range codes {
			converted = append(converted, uint16(code))
		}
		caps[uint16(eventType)] = converted
	}
	return caps
}

// mirrorable keeps the capability types the virtual device re-emits.
func mirrorable(caps gesture.Capabilities) gesture.Capabilities {
	out := make(gesture.Capabilities)
	for _, eventType := range []uint16{gesture.EventTypeKey, gesture.EventTypeRel, gesture.EventTypeMsc} {
		if codes := caps[eventType]; len(codes) > 0 {
			out[eventType] = append([]uint16(nil), codes...)
		}
	}
	return out
}

func toEvdevCapabilities(caps gesture.Capabilities) map[evdev.EvType][]evdev.EvCode {
	out := make(map[evdev.EvType][]evdev.EvCode, len(caps))
	for eventType, codes := range caps {
		converted := make([]evdev.EvCode, 0, len(codes))
		for _, code := range codes {
			converted = append(converted, evdev.EvCode(code))
		}
		out[evdev.EvType(eventType)] = converted
	}
	return out
}
