package gesture

import (
	"testing"
	"time"
)

func newTestTap(t *testing.T) (*TapDetector, *recordingSink, *fakeClock) {
	t.Helper()
	sink := &recordingSink{}
	clock := newFakeClock(sink)
	tap, err := NewTapDetector(TapConfig{TriggerCode: KeyLeftMeta, InjectCode: KeyLeftCtrl}, sink, clock, noopLogger{})
	if err != nil {
		t.Fatalf("NewTapDetector() error = %v", err)
	}
	return tap, sink, clock
}

func feed(t *testing.T, c Classifier, events ...Event) {
	t.Helper()
	for _, event := range events {
		if err := c.Handle(event); err != nil {
			t.Fatalf("Handle(%#v) error = %v", event, err)
		}
	}
}

func TestCleanTapInjectsPressThenRelease(t *testing.T) {
	tap, sink, clock := newTestTap(t)

	feed(t, tap, press(KeyLeftMeta))
	clock.advance(120 * time.Millisecond)
	feed(t, tap, release(KeyLeftMeta))

	want := []Event{press(KeyLeftCtrl), syncMarker, release(KeyLeftCtrl), syncMarker}
	if got := sink.snapshot(); !equalEvents(got, want) {
		t.Fatalf("events = %#v, want %#v", got, want)
	}
	if len(clock.sleeps) != 1 || clock.sleeps[0] != SynthesisDelay {
		t.Fatalf("sleeps = %v, want [%v]", clock.sleeps, SynthesisDelay)
	}
	if clock.marks[0] != 2 {
		t.Fatalf("delay happened after %d events, want after press+sync", clock.marks[0])
	}
	if tap.State() != TapIdle {
		t.Fatalf("state = %v, want idle", tap.State())
	}
	if tap.HeldCount() != 0 || sink.heldOnSink(KeyLeftCtrl) != 0 {
		t.Fatalf("inject key left held")
	}
}

func TestTapIgnoresAutorepeatOfTrigger(t *testing.T) {
	tap, sink, clock := newTestTap(t)

	feed(t, tap, press(KeyLeftMeta), KeyEvent(KeyLeftMeta, ValueRepeat), KeyEvent(KeyLeftMeta, ValueRepeat))
	clock.advance(100 * time.Millisecond)
	feed(t, tap, release(KeyLeftMeta))

	if got := len(sink.withoutSync()); got != 2 {
		t.Fatalf("expected one injected pair, got %d events", got)
	}
}

func TestTapNegatedByOtherKey(t *testing.T) {
	cases := []struct {
		name   string
		events []Event
	}{
		{"letter", []Event{press(KeyA), release(KeyA)}},
		{"mouse button", []Event{press(LeftButtonCode), release(LeftButtonCode)}},
		{"key still down at release", []Event{press(KeySpace)}},
		{"wheel", []Event{{Type: EventTypeRel, Code: RelWheelCode, Value: -1}}},
		{"horizontal wheel", []Event{{Type: EventTypeRel, Code: RelHWheelCode, Value: 1}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tap, sink, clock := newTestTap(t)
			feed(t, tap, press(KeyLeftMeta))
			feed(t, tap, tc.events...)
			if tap.State() != TapTriggerHeldDirty {
				t.Fatalf("state = %v, want dirty", tap.State())
			}
			clock.advance(10 * time.Millisecond)
			feed(t, tap, release(KeyLeftMeta))
			if got := sink.snapshot(); len(got) != 0 {
				t.Fatalf("expected no injection, got %#v", got)
			}
		})
	}
}

func TestTapNotNegatedByMotionOrZeroWheel(t *testing.T) {
	tap, sink, clock := newTestTap(t)

	feed(t, tap,
		press(KeyLeftMeta),
		Event{Type: EventTypeRel, Code: RelXCode, Value: 5},
		Event{Type: EventTypeRel, Code: RelWheelCode, Value: 0},
		Event{Type: EventTypeMsc, Code: 4, Value: 0x7002c},
		KeyEvent(KeyA, ValueRelease),
	)
	clock.advance(10 * time.Millisecond)
	feed(t, tap, release(KeyLeftMeta))

	if got := len(sink.withoutSync()); got != 2 {
		t.Fatalf("expected injection, got %d events", got)
	}
}

func TestTapHeldTooLong(t *testing.T) {
	for _, held := range []time.Duration{DefaultTapWindow, DefaultTapWindow + time.Millisecond, 3 * time.Second} {
		tap, sink, clock := newTestTap(t)
		feed(t, tap, press(KeyLeftMeta))
		clock.advance(held)
		feed(t, tap, release(KeyLeftMeta))
		if got := sink.snapshot(); len(got) != 0 {
			t.Fatalf("held %v: expected no injection, got %#v", held, got)
		}
	}
}

func TestTapOtherKeysIgnoredWhileIdle(t *testing.T) {
	tap, sink, clock := newTestTap(t)

	feed(t, tap, press(KeyA), release(KeyA), release(KeyLeftMeta))
	if len(sink.snapshot()) != 0 {
		t.Fatalf("idle events must not be injected or forwarded")
	}

	// A dirty flag from an earlier gesture does not leak into the next one.
	feed(t, tap, press(KeyLeftMeta), press(KeyA), release(KeyLeftMeta))
	feed(t, tap, press(KeyLeftMeta))
	clock.advance(50 * time.Millisecond)
	feed(t, tap, release(KeyLeftMeta))
	if got := len(sink.withoutSync()); got != 2 {
		t.Fatalf("expected injection on clean second tap, got %d events", got)
	}
}

func TestTapReleaseAfterFailedRelease(t *testing.T) {
	sink := &recordingSink{}
	failing := release(KeyLeftCtrl)
	sink.failOn = &failing
	tap, err := NewTapDetector(TapConfig{TriggerCode: KeyLeftMeta, InjectCode: KeyLeftCtrl}, sink, newFakeClock(sink), noopLogger{})
	if err != nil {
		t.Fatalf("NewTapDetector() error = %v", err)
	}

	feed(t, tap, press(KeyLeftMeta))
	if err := tap.Handle(release(KeyLeftMeta)); err == nil {
		t.Fatalf("expected release failure to surface")
	}
	if tap.HeldCount() != 1 || sink.heldOnSink(KeyLeftCtrl) != 1 {
		t.Fatalf("held count %d does not match sink %d", tap.HeldCount(), sink.heldOnSink(KeyLeftCtrl))
	}

	sink.failOn = nil
	if err := tap.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if tap.HeldCount() != 0 || sink.heldOnSink(KeyLeftCtrl) != 0 {
		t.Fatalf("inject key still held after Release")
	}
	if err := tap.Release(); err != nil {
		t.Fatalf("second Release() error = %v", err)
	}
}

func TestTapRequiredCapabilities(t *testing.T) {
	tap, _, _ := newTestTap(t)
	if !tap.Required().Has(EventTypeKey, KeyLeftCtrl) {
		t.Fatalf("required capabilities miss inject key: %#v", tap.Required())
	}
}
