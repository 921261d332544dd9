//go:build linux

package main

import (
	"os"

	"gestured/internal/adapters/linuxinput"
	"gestured/internal/cli"
	"gestured/internal/config"
	"gestured/internal/core/gesture"

	evdev "github.com/holoplot/go-evdev"
)

var daemon = cli.Daemon{
	Command: cli.Command{
		Name:          "tiling-rightclick",
		Summary:       "turn a right click during a window drag into a modifier chord",
		DefaultConfig: config.DragSettingsPath,
		Keys:          cli.FlagModifier | cli.FlagDeviceName,
	},
	Build: buildBehavior,
}

// pointerBaseline is declared even when no discovered mouse reports it, so a
// mouse plugged in later still has its common codes re-emitted.
func pointerBaseline(modifier uint16) gesture.Capabilities {
	return gesture.Capabilities{
		gesture.EventTypeKey: {
			uint16(evdev.BTN_LEFT),
			uint16(evdev.BTN_RIGHT),
			uint16(evdev.BTN_MIDDLE),
			uint16(evdev.BTN_SIDE),
			uint16(evdev.BTN_EXTRA),
			modifier,
		},
		gesture.EventTypeRel: {
			uint16(evdev.REL_X),
			uint16(evdev.REL_Y),
			uint16(evdev.REL_HWHEEL),
			uint16(evdev.REL_WHEEL),
		},
		gesture.EventTypeMsc: {uint16(evdev.MSC_SCAN)},
	}
}

// buildBehavior grabs every mouse and re-emits it through one combined
// mouse and keyboard device.
func buildBehavior(settings config.Settings, logger gesture.Logger) (linuxinput.Behavior, error) {
	modifier := linuxinput.ResolveKey("modifier_key", settings.ModifierKey, config.DefaultModifierKey, logger)
	logger.Info("Drag chord configured",
		"modifier", linuxinput.FormatCodeName(modifier),
		"device_name", settings.DeviceName)

	return linuxinput.Behavior{
		Name: cli.DragDeviceName,
		Filter: gesture.DeviceFilter{
			ProxyMarkers: cli.ProxyMarkers(),
			Require:      gesture.IsPointer,
			NameContains: settings.DeviceName,
		},
		Grab: true,
		// Reported as USB so compositors treat it like a real mouse.
		InputID: evdev.InputID{
			BusType: uint16(evdev.BUS_USB),
			Vendor:  0x1,
			Product: 0x1,
			Version: 0x3,
		},
		BaseCapabilities: pointerBaseline(modifier),
		MirrorSources:    true,
		NewClassifier: func(sink gesture.Sink) (gesture.Classifier, error) {
			proxy, err := gesture.NewDragProxy(gesture.DragConfig{
				ModifierCode: modifier,
				Delay:        gesture.SynthesisDelay,
			}, sink, gesture.SystemClock{}, logger)
			if err != nil {
				return nil, err
			}
			return proxy, nil
		},
	}, nil
}

func main() {
	os.Exit(cli.Run(daemon, os.Args[1:], os.Stdout, os.Stderr))
}
