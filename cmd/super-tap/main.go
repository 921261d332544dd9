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
		Name:          "super-tap",
		Summary:       "turn a clean tap of the trigger key into an injected shortcut key",
		DefaultConfig: config.TapSettingsPath,
		Keys:          cli.FlagTrigger | cli.FlagInject,
	},
	Build: buildBehavior,
}

// buildBehavior observes keyboards and mice without grabbing them. Mice are
// read so that wheel scrolls and button presses disqualify a tap.
func buildBehavior(settings config.Settings, logger gesture.Logger) (linuxinput.Behavior, error) {
	trigger := linuxinput.ResolveKey("trigger_key", settings.TriggerKey, config.DefaultTriggerKey, logger)
	inject := linuxinput.ResolveKey("injection_key", settings.InjectionKey, config.DefaultInjectionKey, logger)
	logger.Info("Tap gesture configured",
		"trigger", linuxinput.FormatCodeName(trigger),
		"inject", linuxinput.FormatCodeName(inject))

	return linuxinput.Behavior{
		Name: cli.TapDeviceName,
		Filter: gesture.DeviceFilter{
			ProxyMarkers: cli.ProxyMarkers(),
			Require:      gesture.AnyOf(gesture.IsKeyboard, gesture.IsPointer),
		},
		Grab: false,
		InputID: evdev.InputID{
			BusType: uint16(evdev.BUS_VIRTUAL),
			Vendor:  0x1,
			Product: 0x1,
			Version: 1,
		},
		BaseCapabilities: gesture.Capabilities{gesture.EventTypeKey: {inject}},
		NewClassifier: func(sink gesture.Sink) (gesture.Classifier, error) {
			detector, err := gesture.NewTapDetector(gesture.TapConfig{
				TriggerCode: trigger,
				InjectCode:  inject,
				Window:      gesture.DefaultTapWindow,
				Delay:       gesture.SynthesisDelay,
			}, sink, gesture.SystemClock{}, logger)
			if err != nil {
				return nil, err
			}
			return detector, nil
		},
	}, nil
}

func main() {
	os.Exit(cli.Run(daemon, os.Args[1:], os.Stdout, os.Stderr))
}
