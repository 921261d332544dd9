package gesture

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingClassifier struct {
	mu       sync.Mutex
	handled  []Event
	released int
	held     int
}

func (c *recordingClassifier) Handle(event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handled = append(c.handled, event)
	return nil
}

func (c *recordingClassifier) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released++
	c.held = 0
	return nil
}

func (c *recordingClassifier) Required() Capabilities { return nil }

func (c *recordingClassifier) HeldCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.held
}

func (c *recordingClassifier) snapshot() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.handled))
	copy(out, c.handled)
	return out
}

func newTestEngine(t *testing.T, classifier Classifier, sink Sink) *Engine {
	t.Helper()
	engine, err := NewEngine(classifier, sink, noopLogger{})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return engine
}

func waitDone(t *testing.T, engine *Engine) {
	t.Helper()
	select {
	case <-engine.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("engine did not finish")
	}
}

func TestEnginePreservesPerSourceOrder(t *testing.T) {
	classifier := &recordingClassifier{}
	engine := newTestEngine(t, classifier, &recordingSink{})
	engine.Attach("a")
	engine.Attach("b")
	engine.Start()

	const perSource = 200
	var wg sync.WaitGroup
	for _, source := range []struct {
		name string
		code uint16
	}{{"a", 1}, {"b", 2}} {
		wg.Add(1)
		go func(name string, code uint16) {
			defer wg.Done()
			for i := 0; i < perSource; i++ {
				if !engine.Submit(name, Event{Type: EventTypeRel, Code: code, Value: int32(i)}) {
					t.Errorf("Submit(%s) rejected", name)
					return
				}
			}
			engine.Detach(name, nil)
		}(source.name, source.code)
	}
	wg.Wait()
	waitDone(t, engine)

	next := map[uint16]int32{1: 0, 2: 0}
	for _, event := range classifier.snapshot() {
		if event.Value != next[event.Code] {
			t.Fatalf("source %d out of order: got %d, want %d", event.Code, event.Value, next[event.Code])
		}
		next[event.Code]++
	}
	if next[1] != perSource || next[2] != perSource {
		t.Fatalf("missing events: %v", next)
	}
	if !errors.Is(engine.Err(), ErrNoSources) {
		t.Fatalf("Err() = %v, want ErrNoSources", engine.Err())
	}
}

func TestEngineKeepsRunningWhileSourcesRemain(t *testing.T) {
	classifier := &recordingClassifier{}
	engine := newTestEngine(t, classifier, &recordingSink{})
	engine.Attach("a")
	engine.Attach("b")
	engine.Start()

	engine.Detach("a", errors.New("no such device"))
	engine.Detach("a", errors.New("no such device"))
	engine.Submit("b", press(KeyA))

	deadline := time.After(2 * time.Second)
	for len(classifier.snapshot()) == 0 {
		select {
		case <-engine.Done():
			t.Fatalf("engine ended with a source still attached: %v", engine.Err())
		case <-deadline:
			t.Fatalf("event from remaining source not handled")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if err := engine.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if engine.Err() != nil {
		t.Fatalf("Err() after Stop = %v, want nil", engine.Err())
	}
}

func TestEngineStopReleasesThenClosesOnce(t *testing.T) {
	classifier := &recordingClassifier{held: 1}
	sink := &recordingSink{}
	engine := newTestEngine(t, classifier, sink)
	engine.Attach("a")
	engine.Start()

	if err := engine.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := engine.Stop(); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}
	if classifier.released != 1 {
		t.Fatalf("Release called %d times, want 1", classifier.released)
	}
	if sink.closes != 1 {
		t.Fatalf("sink closed %d times, want 1", sink.closes)
	}
	if classifier.HeldCount() != 0 {
		t.Fatalf("held keys remain after Stop")
	}
	if engine.Submit("a", press(KeyA)) {
		t.Fatalf("Submit accepted after Stop")
	}
}

func TestEngineStopWithoutStart(t *testing.T) {
	sink := &recordingSink{}
	engine := newTestEngine(t, &recordingClassifier{}, sink)

	if err := engine.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	waitDone(t, engine)
	engine.Start()
	if sink.closes != 1 {
		t.Fatalf("sink closed %d times, want 1", sink.closes)
	}
}

func TestEngineDrainedReleasesSynthesizedKeys(t *testing.T) {
	sink := &recordingSink{}
	drag, err := NewDragProxy(DragConfig{ModifierCode: KeyLeftMeta}, sink, newFakeClock(sink), noopLogger{})
	if err != nil {
		t.Fatalf("NewDragProxy() error = %v", err)
	}
	engine := newTestEngine(t, drag, sink)
	engine.Attach("mouse")
	engine.Start()

	engine.Submit("mouse", press(LeftButtonCode))
	engine.Submit("mouse", press(RightButtonCode))
	engine.Detach("mouse", errors.New("no such device"))
	waitDone(t, engine)

	if !errors.Is(engine.Err(), ErrNoSources) {
		t.Fatalf("Err() = %v, want ErrNoSources", engine.Err())
	}
	if sink.heldOnSink(KeyLeftMeta) != 1 {
		t.Fatalf("expected modifier held before teardown")
	}

	if err := engine.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if sink.heldOnSink(KeyLeftMeta) != 0 || sink.heldOnSink(LeftButtonCode) != 0 {
		t.Fatalf("keys left held after teardown: %#v", sink.snapshot())
	}
	if !sink.closed {
		t.Fatalf("sink not closed")
	}
}
