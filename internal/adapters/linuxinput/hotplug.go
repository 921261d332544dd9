//go:build linux

package linuxinput

import (
	"context"
	"fmt"
	"strings"

	udev "github.com/jochenvg/go-udev"
)

type hotplugWatcher struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// watchHotplug calls onAdd with the node path of every event device the
// kernel announces. onAdd runs on the watcher goroutine.
func watchHotplug(logger Logger, onAdd func(path string)) (*hotplugWatcher, error) {
	u := udev.Udev{}
	m := u.NewMonitorFromNetlink("udev")
	if m == nil {
		return nil, fmt.Errorf("open udev netlink monitor")
	}
	if err := m.FilterAddMatchSubsystem("input"); err != nil {
		return nil, fmt.Errorf("filter udev monitor: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	devices, err := m.DeviceChan(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("start udev monitor: %w", err)
	}

	w := &hotplugWatcher{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(w.done)
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-devices:
				if !ok {
					return
				}
				if d == nil || d.Action() != "add" {
					continue
				}
				node := d.Devnode()
				if !isEventNode(node) {
					continue
				}
				logger.Debug("Input device added", "path", node)
				onAdd(node)
			}
		}
	}()
	logger.Debug("Watching for new input devices")
	return w, nil
}

func (w *hotplugWatcher) Stop() {
	w.cancel()
	<-w.done
}

func isEventNode(node string) bool {
	return strings.HasPrefix(node, "/dev/input/event")
}
