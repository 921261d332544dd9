package gesture

import (
	"errors"
	"fmt"
	"time"
)

// DefaultTapWindow is the longest press-to-release time still counted as a tap.
const DefaultTapWindow = 500 * time.Millisecond

type TapState int

const (
	TapIdle TapState = iota
	TapTriggerHeld
	TapTriggerHeldDirty
)

func (s TapState) String() string {
	switch s {
	case TapIdle:
		return "idle"
	case TapTriggerHeld:
		return "trigger-held"
	case TapTriggerHeldDirty:
		return "trigger-held-dirty"
	default:
		return "unknown"
	}
}

type TapConfig struct {
	TriggerCode uint16
	InjectCode  uint16
	Window      time.Duration
	Delay       time.Duration
}

// TapDetector turns a clean tap of the trigger key into an injected key tap.
// It never forwards physical events; it only observes them.
type TapDetector struct {
	cfg    TapConfig
	sink   Sink
	clock  Clock
	logger Logger

	state     TapState
	pressedAt time.Time
	// injectHeld is true between a written inject press and its release.
	injectHeld bool
}

func NewTapDetector(cfg TapConfig, sink Sink, clock Clock, logger Logger) (*TapDetector, error) {
	if sink == nil {
		return nil, fmt.Errorf("sink is nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultTapWindow
	}
	if cfg.Delay <= 0 {
		cfg.Delay = SynthesisDelay
	}
	return &TapDetector{cfg: cfg, sink: sink, clock: clock, logger: logger}, nil
}

func (t *TapDetector) State() TapState { return t.state }

func (t *TapDetector) Required() Capabilities {
	return Capabilities{EventTypeKey: {t.cfg.InjectCode}}
}

func (t *TapDetector) HeldCount() int {
	if t.injectHeld {
		return 1
	}
	return 0
}

func (t *TapDetector) Handle(event Event) error {
	switch event.Type {
	case EventTypeKey:
		if event.Code == t.cfg.TriggerCode {
			return t.handleTrigger(event.Value)
		}
		if t.state == TapTriggerHeld && event.Value == ValuePress {
			t.logger.Debug("Tap negated by key press", "code", event.Code)
			t.state = TapTriggerHeldDirty
		}
	case EventTypeRel:
		if t.state == TapTriggerHeld && event.Value != 0 &&
			(event.Code == RelWheelCode || event.Code == RelHWheelCode) {
			t.logger.Debug("Tap negated by scroll", "code", event.Code)
			t.state = TapTriggerHeldDirty
		}
	}
	return nil
}

func (t *TapDetector) handleTrigger(value int32) error {
	switch value {
	case ValuePress:
		t.state = TapTriggerHeld
		t.pressedAt = t.clock.Now()
		t.logger.Debug("Trigger pressed")
	case ValueRelease:
		state := t.state
		t.state = TapIdle
		switch state {
		case TapIdle:
			return nil
		case TapTriggerHeldDirty:
			t.logger.Info("Trigger release ignored", "cause", "other interaction")
			return nil
		}
		elapsed := t.clock.Now().Sub(t.pressedAt)
		if elapsed >= t.cfg.Window {
			t.logger.Info("Trigger release ignored", "cause", "held too long", "elapsed", elapsed)
			return nil
		}
		t.logger.Info("Clean tap detected", "elapsed", elapsed)
		return t.inject()
	}
	return nil
}

func (t *TapDetector) inject() error {
	if err := t.sink.Emit(KeyEvent(t.cfg.InjectCode, ValuePress)); err != nil {
		return fmt.Errorf("inject press: %w", err)
	}
	t.injectHeld = true
	if err := t.sink.Sync(); err != nil {
		// The press may still be queued; release it so the host cannot keep it.
		return errors.Join(fmt.Errorf("sync inject press: %w", err), t.Release())
	}
	t.clock.Sleep(t.cfg.Delay)
	return t.Release()
}

func (t *TapDetector) Release() error {
	if !t.injectHeld {
		return nil
	}
	if err := t.sink.Emit(KeyEvent(t.cfg.InjectCode, ValueRelease)); err != nil {
		return fmt.Errorf("inject release: %w", err)
	}
	t.injectHeld = false
	if err := t.sink.Sync(); err != nil {
		return fmt.Errorf("sync inject release: %w", err)
	}
	return nil
}
