package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"gestured/internal/config"

	"github.com/spf13/pflag"
)

// Virtual device names of the two daemons. Each daemon skips both, so one
// never reads the other's output back as input.
const (
	TapDeviceName  = "Super Activity Daemon"
	DragDeviceName = "Tiling Shell Proxy Device"
)

func ProxyMarkers() []string {
	return []string{TapDeviceName, DragDeviceName}
}

// KeyFlag selects which settings a daemon lets the command line override.
type KeyFlag int

const (
	FlagTrigger KeyFlag = 1 << iota
	FlagInject
	FlagModifier
	FlagDeviceName
)

type Command struct {
	Name          string
	Summary       string
	DefaultConfig string
	Keys          KeyFlag
}

type Options struct {
	ConfigPath string
	Trigger    string
	Inject     string
	Modifier   string
	DeviceName string
	// deviceNameSet distinguishes --device-name "" (all devices) from an
	// absent flag.
	deviceNameSet bool

	LogLevel        string
	LogFormat       string
	ListDevices     bool
	IdentifyKey     bool
	IdentifyTimeout time.Duration
	NoHotplug       bool
}

// ParseOptions parses args for cmd. It returns pflag.ErrHelp when usage was
// requested.
func ParseOptions(cmd Command, args []string, stderr io.Writer) (Options, error) {
	opts := Options{}
	flags := pflag.NewFlagSet(cmd.Name, pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() {
		fmt.Fprintf(stderr, "%s: %s\n\nUsage:\n  %s [flags]\n\nFlags:\n", cmd.Name, cmd.Summary, cmd.Name)
		flags.PrintDefaults()
	}

	flags.StringVarP(&opts.ConfigPath, "config", "c", cmd.DefaultConfig, "Settings file (JSON).")
	if cmd.Keys&FlagTrigger != 0 {
		flags.StringVar(&opts.Trigger, "trigger", "", "Key whose clean tap triggers the shortcut, e.g. KEY_LEFTMETA. Overrides trigger_key.")
	}
	if cmd.Keys&FlagInject != 0 {
		flags.StringVar(&opts.Inject, "inject", "", "Key injected on a clean tap, e.g. KEY_LEFTCTRL. Overrides injection_key.")
	}
	if cmd.Keys&FlagModifier != 0 {
		flags.StringVar(&opts.Modifier, "modifier", "", "Key held while right-clicking during a drag, e.g. KEY_LEFTCTRL. Overrides modifier_key.")
	}
	if cmd.Keys&FlagDeviceName != 0 {
		flags.StringVar(&opts.DeviceName, "device-name", "", "Only use devices whose name contains this text. Overrides device_name.")
	}
	flags.StringVar(&opts.LogLevel, "log-level", "info", "Log verbosity: debug, info, warning, error.")
	flags.StringVar(&opts.LogFormat, "log-format", "text", "Log format: text or json.")
	flags.BoolVar(&opts.ListDevices, "list-devices", false, "Print input devices and whether they would be used, then exit.")
	flags.BoolVar(&opts.IdentifyKey, "identify-key", false, "Wait for the next key or button press and print its name, then exit.")
	flags.DurationVar(&opts.IdentifyTimeout, "identify-timeout", 10*time.Second, "How long --identify-key waits.")
	flags.BoolVar(&opts.NoHotplug, "no-hotplug", false, "Do not pick up devices plugged in after startup.")

	if err := flags.Parse(args); err != nil {
		return opts, err
	}
	if flags.NArg() > 0 {
		return opts, fmt.Errorf("unexpected arguments: %s", strings.Join(flags.Args(), " "))
	}
	if opts.ListDevices && opts.IdentifyKey {
		return opts, fmt.Errorf("--list-devices and --identify-key are mutually exclusive")
	}
	if opts.IdentifyTimeout <= 0 {
		return opts, fmt.Errorf("--identify-timeout must be > 0")
	}
	opts.deviceNameSet = flags.Changed("device-name")
	return opts, nil
}

// Apply overlays the flags that were given on settings.
func (o Options) Apply(settings config.Settings) config.Settings {
	if v := strings.TrimSpace(o.Trigger); v != "" {
		settings.TriggerKey = v
	}
	if v := strings.TrimSpace(o.Inject); v != "" {
		settings.InjectionKey = v
	}
	if v := strings.TrimSpace(o.Modifier); v != "" {
		settings.ModifierKey = v
	}
	if o.deviceNameSet {
		settings.DeviceName = strings.TrimSpace(o.DeviceName)
	}
	return settings
}
