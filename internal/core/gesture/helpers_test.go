package gesture

import (
	"sync"
	"time"
)

// syncMarker stands in for a Sync call in recorded output.
var syncMarker = Event{Type: EventTypeSyn, Code: SynReportCode}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	caps   Capabilities
	closed bool
	closes int
	failOn *Event
}

func (r *recordingSink) Emit(event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrSinkClosed
	}
	if r.failOn != nil && *r.failOn == event {
		return errInjected
	}
	if r.caps != nil && !r.caps.Accepts(event) {
		return ErrUndeclaredCode
	}
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) Sync() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrSinkClosed
	}
	r.events = append(r.events, syncMarker)
	return nil
}

func (r *recordingSink) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closes++
	r.closed = true
	return nil
}

func (r *recordingSink) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recordingSink) withoutSync() []Event {
	var out []Event
	for _, event := range r.snapshot() {
		if event != syncMarker {
			out = append(out, event)
		}
	}
	return out
}

// heldOnSink counts presses of code written without a later release.
func (r *recordingSink) heldOnSink(code uint16) int {
	held := 0
	for _, event := range r.snapshot() {
		if event.Type != EventTypeKey || event.Code != code {
			continue
		}
		switch event.Value {
		case ValuePress:
			held++
		case ValueRelease:
			if held > 0 {
				held--
			}
		}
	}
	return held
}

type injectedError struct{}

func (injectedError) Error() string { return "injected failure" }

var errInjected error = injectedError{}

// fakeClock advances only when told to; Sleep advances it and records the
// requested duration together with the number of events written so far.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
	marks  []int
	sink   *recordingSink
}

func newFakeClock(sink *recordingSink) *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0), sink: sink}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.sleeps = append(c.sleeps, d)
	if c.sink != nil {
		c.marks = append(c.marks, len(c.sink.snapshot()))
	}
	c.now = c.now.Add(d)
}

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

func press(code uint16) Event   { return KeyEvent(code, ValuePress) }
func release(code uint16) Event { return KeyEvent(code, ValueRelease) }

func equalEvents(a, b []Event) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
