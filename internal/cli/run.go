//go:build linux

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"gestured/internal/adapters/linuxinput"
	"gestured/internal/config"
	"gestured/internal/core/gesture"
	"gestured/internal/logging"

	"github.com/spf13/pflag"
)

const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

// Daemon is one gesture daemon: its command line and how its settings turn
// into a runtime behavior.
type Daemon struct {
	Command
	Build func(settings config.Settings, logger gesture.Logger) (linuxinput.Behavior, error)
}

// Run is the whole process: it returns once a signal arrives and teardown is
// complete (0), on a fatal error (1) or on bad usage (2).
func Run(d Daemon, args []string, stdout, stderr io.Writer) int {
	opts, err := ParseOptions(d.Command, args, stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	logger, err := logging.New(logging.Options{Level: opts.LogLevel, Format: opts.LogFormat, Output: stderr})
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		logger.Warn("Ignoring unreadable settings, using defaults", "err", err)
	}
	settings = opts.Apply(settings)
	logger.Debug("Loaded settings", "source", settings.Source, "trigger", settings.TriggerKey,
		"injection", settings.InjectionKey, "modifier", settings.ModifierKey, "device_name", settings.DeviceName)

	behavior, err := d.Build(settings, logger)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFatal
	}
	behavior.Hotplug = !opts.NoHotplug
	behavior.Filter.OwnName = behavior.Name

	switch {
	case opts.ListDevices:
		return listDevices(behavior, stdout, stderr)
	case opts.IdentifyKey:
		return identifyKey(behavior, opts, logger, stdout, stderr)
	}

	// Installed before any device is grabbed.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runtime, err := linuxinput.NewRuntime(behavior, logger)
	if err != nil {
		return fatal(stderr, err)
	}
	return serve(ctx, runtime, logger, stderr)
}

type lifecycle interface {
	Start() error
	Wait(ctx context.Context) error
	Stop() error
}

// serve runs rt until ctx is cancelled or rt fails on its own.
func serve(ctx context.Context, rt lifecycle, logger gesture.Logger, stderr io.Writer) int {
	if err := rt.Start(); err != nil {
		return fatal(stderr, err)
	}

	waitErr := rt.Wait(ctx)
	if ctx.Err() != nil {
		logger.Info("Shutdown requested")
	}
	// Teardown errors are logged by Stop and never change the outcome.
	_ = rt.Stop()
	if waitErr != nil {
		return fatal(stderr, waitErr)
	}
	return exitOK
}

func fatal(stderr io.Writer, err error) int {
	fmt.Fprintln(stderr, err)
	if linuxinput.IsPermissionError(err) {
		fmt.Fprintln(stderr, permissionDeniedHint())
	}
	return exitFatal
}

func permissionDeniedHint() string {
	return "Permission denied: run as root, or grant read access to /dev/input/event* and write access to /dev/uinput through udev rules."
}

func listDevices(behavior linuxinput.Behavior, stdout, stderr io.Writer) int {
	devices, err := linuxinput.ListInputDevices(behavior.Filter)
	if err != nil {
		return fatal(stderr, err)
	}

	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tNAME\tBUS:VENDOR:PRODUCT\tKIND\tUSED")
	for _, dev := range devices {
		kind := "physical"
		if dev.IsVirtual() {
			kind = "virtual"
		}
		switch {
		case dev.IsKeyboard && dev.IsPointer:
			kind += ",keyboard,pointer"
		case dev.IsKeyboard:
			kind += ",keyboard"
		case dev.IsPointer:
			kind += ",pointer"
		}
		used := "yes"
		if dev.Verdict != gesture.Accepted {
			used = "no (" + dev.Verdict.String() + ")"
		}
		fmt.Fprintf(w, "%s\t%s\t%04x:%04x:%04x\t%s\t%s\n", dev.Path, dev.Name, dev.BusType, dev.Vendor, dev.Product, kind, used)
	}
	if err := w.Flush(); err != nil {
		fmt.Fprintln(stderr, err)
		return exitFatal
	}
	return exitOK
}

func identifyKey(behavior linuxinput.Behavior, opts Options, logger gesture.Logger, stdout, stderr io.Writer) int {
	filter := gesture.DeviceFilter{
		OwnName:      behavior.Name,
		ProxyMarkers: behavior.Filter.ProxyMarkers,
	}
	fmt.Fprintf(stderr, "Press a key or button within %s...\n", opts.IdentifyTimeout)
	press, err := linuxinput.IdentifyNextKey(filter, opts.IdentifyTimeout, logger)
	if err != nil {
		return fatal(stderr, err)
	}
	fmt.Fprintf(stdout, "%s (%d) from %s [%s]\n", press.Name, press.Code, press.Device, press.Path)
	return exitOK
}
