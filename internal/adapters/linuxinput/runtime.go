//go:build linux

package linuxinput

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"gestured/internal/core/gesture"

	evdev "github.com/holoplot/go-evdev"
)

// Readers poll a nonblocking device. Right after input they poll fast so a
// forwarded frame waits at most activePoll; once a device has been quiet for
// activeWindow they fall back to idlePoll.
const (
	activePoll   = time.Millisecond
	idlePoll     = 10 * time.Millisecond
	activeWindow = 250 * time.Millisecond
)

func pollDelay(sinceInput time.Duration) time.Duration {
	if sinceInput < activeWindow {
		return activePoll
	}
	return idlePoll
}

// Behavior describes one daemon: which devices it reads, whether it takes
// them exclusively, and the classifier it feeds.
type Behavior struct {
	// Name is the virtual device name. Discovery always skips it.
	Name    string
	Filter  gesture.DeviceFilter
	Grab    bool
	InputID evdev.InputID
	// BaseCapabilities is declared on the virtual device regardless of the
	// sources found.
	BaseCapabilities gesture.Capabilities
	// MirrorSources adds every key, relative and misc code of the discovered
	// sources to the virtual device. Grabbing behaviors need it, since
	// everything they forward must be re-emitted.
	MirrorSources bool
	Hotplug       bool
	NewClassifier func(gesture.Sink) (gesture.Classifier, error)
}

// outputDevice is the virtual device as the runtime sees it.
type outputDevice interface {
	gesture.Sink
	Capabilities() gesture.Capabilities
}

type Runtime struct {
	behavior Behavior
	devices  []inputDevice
	sink     outputDevice
	engine   *gesture.Engine
	logger   Logger

	mu      sync.Mutex
	sources map[string]*Source
	opens   int
	closing bool

	hotplug   *hotplugWatcher
	stopCh    chan struct{}
	stopOnce  sync.Once
	stopErr   error
	readersWG sync.WaitGroup
}

// NewRuntime discovers the devices, creates the virtual device and the
// classifier. Nothing is grabbed yet; every failure here is fatal and leaves
// no device open.
func NewRuntime(behavior Behavior, logger Logger) (*Runtime, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}
	if behavior.NewClassifier == nil {
		return nil, fmt.Errorf("behavior %q has no classifier", behavior.Name)
	}
	behavior.Filter.OwnName = behavior.Name

	discovered, err := Discover(behavior.Filter, logger)
	if err != nil {
		return nil, err
	}

	caps := gesture.Capabilities{}.Merge(behavior.BaseCapabilities)
	devices := make([]inputDevice, 0, len(discovered))
	for _, dev := range discovered {
		if behavior.MirrorSources {
			caps = caps.Merge(mirrorable(capabilitiesOf(dev)))
		}
		devices = append(devices, dev)
	}

	sink, err := CreateVirtualDevice(behavior.Name, behavior.InputID, caps)
	if err != nil {
		closeAll(devices)
		return nil, fmt.Errorf("create virtual device %q: %w", behavior.Name, err)
	}

	r, err := newRuntime(behavior, devices, sink, logger)
	if err != nil {
		_ = sink.Close()
		closeAll(devices)
		return nil, err
	}
	logger.Info("Created virtual device", "name", behavior.Name, "types", len(caps))
	return r, nil
}

// newRuntime wires already opened devices and sink to a classifier. The
// caller keeps ownership of both when it fails.
func newRuntime(behavior Behavior, devices []inputDevice, sink outputDevice, logger Logger) (*Runtime, error) {
	classifier, err := behavior.NewClassifier(sink)
	if err != nil {
		return nil, err
	}
	if missing := sink.Capabilities().Missing(classifier.Required()); len(missing) > 0 {
		return nil, fmt.Errorf("virtual device %q does not declare %s", behavior.Name, describeMissing(missing))
	}
	engine, err := gesture.NewEngine(classifier, sink, logger)
	if err != nil {
		return nil, err
	}
	return &Runtime{
		behavior: behavior,
		devices:  devices,
		sink:     sink,
		engine:   engine,
		logger:   logger,
		sources:  make(map[string]*Source, len(devices)),
		stopCh:   make(chan struct{}),
	}, nil
}

// Start opens every discovered device and begins dispatch. A device that
// cannot be grabbed is skipped; having none left is fatal, and in that case
// the runtime has already been torn down.
func (r *Runtime) Start() error {
	opened := make([]*Source, 0, len(r.devices))
	for _, dev := range r.devices {
		src, err := OpenSource(dev, r.behavior.Grab)
		if err != nil {
			switch {
			case isBusyError(err):
				r.logger.Warn("Device is grabbed by another process, skipping", "path", dev.Path(), "err", err)
			case isPermissionError(err):
				r.logger.Warn("Permission denied opening device, skipping", "path", dev.Path(), "err", err)
			default:
				r.logger.Warn("Cannot open device, skipping", "path", dev.Path(), "err", err)
			}
			continue
		}
		if src.Grabbed() {
			r.logger.Info("Grabbed source device", "path", src.Path(), "name", src.Name())
		}
		opened = append(opened, src)
	}
	r.devices = nil

	if len(opened) == 0 {
		err := fmt.Errorf("%w: none of the matching devices could be opened", gesture.ErrNoDevices)
		return errors.Join(err, r.Stop())
	}

	r.mu.Lock()
	for _, src := range opened {
		r.trackLocked(src)
	}
	r.mu.Unlock()

	r.engine.Start()

	if r.behavior.Hotplug {
		watcher, err := watchHotplug(r.logger, r.attach)
		if err != nil {
			r.logger.Warn("Hotplug monitoring unavailable", "err", err)
		} else {
			r.hotplug = watcher
		}
	}
	r.logger.Info("Runtime started", "behavior", r.behavior.Name, "sources", len(opened), "grab", r.behavior.Grab)
	return nil
}

// trackLocked gives src an id unique among every open so far, registers it
// with the engine ahead of its first event, then starts its reader.
func (r *Runtime) trackLocked(src *Source) bool {
	r.opens++
	src.id = fmt.Sprintf("%s#%d", src.Path(), r.opens)
	if !r.engine.Attach(src.ID()) {
		return false
	}
	r.sources[src.Path()] = src
	r.readersWG.Add(1)
	go r.readLoop(src)
	return true
}

// Wait blocks until ctx is cancelled, which is a clean shutdown, or until
// dispatch ends on its own, which is returned as an error.
func (r *Runtime) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	case <-r.engine.Done():
		return r.engine.Err()
	}
}

// Stop releases every grab, waits for the readers, then releases held keys
// and closes the virtual device. Each step runs even when an earlier one
// failed. Later calls return the first result.
func (r *Runtime) Stop() error {
	r.stopOnce.Do(func() {
		close(r.stopCh)
		if r.hotplug != nil {
			r.hotplug.Stop()
		}

		r.mu.Lock()
		r.closing = true
		sources := make([]*Source, 0, len(r.sources))
		for _, src := range r.sources {
			sources = append(sources, src)
		}
		r.mu.Unlock()

		var errs []error
		for _, src := range sources {
			if err := src.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		closeAll(r.devices)
		r.readersWG.Wait()

		if err := r.engine.Stop(); err != nil {
			errs = append(errs, err)
		}
		r.stopErr = errors.Join(errs...)
		if r.stopErr != nil {
			r.logger.Error("Teardown finished with errors", "err", r.stopErr)
		} else {
			r.logger.Info("Runtime stopped", "behavior", r.behavior.Name)
		}
	})
	return r.stopErr
}

func (r *Runtime) readLoop(src *Source) {
	defer r.readersWG.Done()

	lastInput := time.Now()
	for {
		events, err := src.Read()
		if err != nil {
			if r.stopped() {
				return
			}
			if isWouldBlockError(err) {
				if !r.sleepWithStop(pollDelay(time.Since(lastInput))) {
					return
				}
				continue
			}
			r.dropSource(src, err)
			return
		}

		lastInput = time.Now()
		for _, event := range events {
			if !r.engine.Submit(src.ID(), event) {
				return
			}
		}
	}
}

// dropSource handles a disconnect: the grab is released and the engine is
// told the source is gone, after any events it already queued.
func (r *Runtime) dropSource(src *Source, cause error) {
	r.mu.Lock()
	if r.sources[src.Path()] == src {
		delete(r.sources, src.Path())
	}
	r.mu.Unlock()

	r.logger.Warn("Device disconnected", "path", src.Path(), "name", src.Name(), "err", cause)
	if err := src.Close(); err != nil {
		r.logger.Debug("Closing disconnected device failed", "path", src.Path(), "err", err)
	}
	r.engine.Detach(src.ID(), cause)
}

// attach brings a hotplugged node into the active set when it passes the
// same filter discovery applies.
func (r *Runtime) attach(path string) {
	if r.known(path) {
		return
	}

	dev, err := openInputDevice(path)
	if err != nil {
		r.logger.Warn("Cannot open new device", "path", path, "err", err)
		return
	}
	info := describe(dev, "")
	if verdict := r.behavior.Filter.Check(info); verdict != gesture.Accepted {
		r.logger.Debug("Skipping new device", "path", path, "name", info.Name, "reason", verdict.String())
		_ = dev.Close()
		return
	}
	if r.behavior.MirrorSources {
		if missing := r.sink.Capabilities().Missing(mirrorable(info.Capabilities)); len(missing) > 0 {
			r.logger.Warn("New device has codes the virtual device cannot re-emit; they will be dropped",
				"path", path, "name", info.Name, "codes", len(missing))
		}
	}
	r.attachDevice(dev)
}

func (r *Runtime) known(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sources[path]
	return ok || r.closing
}

// attachDevice opens dev as a source and joins it to the running engine.
func (r *Runtime) attachDevice(dev inputDevice) {
	src, err := OpenSource(dev, r.behavior.Grab)
	if err != nil {
		r.logger.Warn("Cannot acquire new device", "path", dev.Path(), "err", err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.sources[src.Path()]; dup || r.closing || !r.trackLocked(src) {
		_ = src.Close()
		return
	}
	r.logger.Info("Attached new device", "path", src.Path(), "name", src.Name(), "grabbed", src.Grabbed())
}

func (r *Runtime) stopped() bool {
	select {
	case <-r.stopCh:
		return true
	default:
		return false
	}
}

func (r *Runtime) sleepWithStop(duration time.Duration) bool {
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-r.stopCh:
		return false
	case <-timer.C:
		return true
	}
}

func closeAll(devices []inputDevice) {
	for _, dev := range devices {
		_ = dev.Close()
	}
}

func describeMissing(missing []gesture.Event) string {
	names := make([]string, 0, len(missing))
	for _, event := range missing {
		if event.Type == gesture.EventTypeKey {
			names = append(names, FormatCodeName(event.Code))
			continue
		}
		names = append(names, fmt.Sprintf("type %d code %d", event.Type, event.Code))
	}
	sort.Strings(names)
	return fmt.Sprintf("%v", names)
}
